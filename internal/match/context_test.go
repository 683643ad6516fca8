package match

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"matchday/internal/config"
)

func buildTestContext(t *testing.T) (*MatchState, *TickContext) {
	t.Helper()
	m, err := New(fullRoster(), testOptions(11))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tickN(t, m, 25)
	return m.state, BuildContext(m.state, m.field, m.tactics)
}

func TestDistanceIsSymmetric(t *testing.T) {
	_, ctx := buildTestContext(t)
	agents := ctx.Agents()
	for i := range agents {
		for j := range agents {
			a, b := agents[i].ID, agents[j].ID
			ab, err := ctx.Distance(a, b)
			if err != nil {
				t.Fatalf("Distance(%d, %d): %v", a, b, err)
			}
			ba, _ := ctx.Distance(b, a)
			if ab != ba {
				t.Fatalf("Distance(%d, %d) = %v, Distance(%d, %d) = %v", a, b, ab, b, a, ba)
			}
			if want := agents[i].Position.Sub(agents[j].Position).Len(); ab != want {
				t.Fatalf("Distance(%d, %d) = %v, want %v", a, b, ab, want)
			}
		}
	}
}

func TestBuildContextIsIdempotent(t *testing.T) {
	s, first := buildTestContext(t)
	second := BuildContext(s, first.Field, first.Tactics)

	for _, a := range first.Agents() {
		for _, radius := range []float64{10, 50, 100, 300} {
			o1, _ := first.NearbyOpponents(a.ID, radius)
			o2, _ := second.NearbyOpponents(a.ID, radius)
			if !reflect.DeepEqual(o1, o2) {
				t.Fatalf("NearbyOpponents(%d, %v) differs between builds", a.ID, radius)
			}
			m1, _ := first.NearbyTeammates(a.ID, radius)
			m2, _ := second.NearbyTeammates(a.ID, radius)
			if !reflect.DeepEqual(m1, m2) {
				t.Fatalf("NearbyTeammates(%d, %v) differs between builds", a.ID, radius)
			}
		}
		d1, _ := first.BallDistance(a.ID)
		d2, _ := second.BallDistance(a.ID)
		if d1 != d2 {
			t.Fatalf("BallDistance(%d) differs between builds", a.ID)
		}
	}
}

func TestUnknownAgentIsNotFound(t *testing.T) {
	_, ctx := buildTestContext(t)

	queries := map[string]func() error{
		"Agent":           func() error { _, err := ctx.Agent(999); return err },
		"Distance":        func() error { _, err := ctx.Distance(1, 999); return err },
		"BallDistance":    func() error { _, err := ctx.BallDistance(999); return err },
		"NearbyOpponents": func() error { _, err := ctx.NearbyOpponents(999, 50); return err },
		"NearbyTeammates": func() error { _, err := ctx.NearbyTeammates(999, 50); return err },
		"IsBallTowards":   func() error { _, err := ctx.IsBallTowardsAgent(999, 0.8); return err },
	}
	for name, q := range queries {
		t.Run(name, func(t *testing.T) {
			err := q()
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("error = %v, want ErrNotFound", err)
			}
			var nf NotFoundError
			if !errors.As(err, &nf) || nf.AgentID != 999 {
				t.Errorf("error = %#v, want NotFoundError{999}", err)
			}
		})
	}
}

func TestNearbyQueries(t *testing.T) {
	agents := []Agent{
		newAgent(1, Home, RoleDefender, 100, 100),
		newAgent(2, Home, RoleMidfielder, 130, 100),
		newAgent(3, Away, RoleForward, 110, 100),
		newAgent(4, Away, RoleForward, 100, 120),
		newAgent(5, Away, RoleMidfielder, 400, 400),
	}
	s := newMatchState(agents, NewEventLog())
	s.Ball = Ball{Position: mgl64.Vec3{200, 100, 0}, Velocity: mgl64.Vec3{-3, 0, 0}}
	ctx := BuildContext(s, NewField(config.DefaultField()), config.DefaultTactics())

	opp, err := ctx.NearbyOpponents(1, 25)
	if err != nil {
		t.Fatal(err)
	}
	if len(opp) != 2 || opp[0].ID != 3 || opp[1].ID != 4 {
		t.Errorf("NearbyOpponents = %+v, want agents 3 then 4", opp)
	}

	mates, _ := ctx.NearbyTeammates(1, 25)
	if len(mates) != 0 {
		t.Errorf("NearbyTeammates within 25 = %+v, want none", mates)
	}
	mates, _ = ctx.NearbyTeammates(1, 30)
	if len(mates) != 1 || mates[0].ID != 2 {
		t.Errorf("NearbyTeammates within 30 = %+v, want agent 2", mates)
	}

	tests := []struct {
		id   AgentID
		want bool
	}{
		{1, true},  // straight down the ball's path
		{5, false}, // off to the side
	}
	for _, tt := range tests {
		got, err := ctx.IsBallTowardsAgent(tt.id, 0.8)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("IsBallTowardsAgent(%d) = %v, want %v", tt.id, got, tt.want)
		}
	}

	s.Ball.Velocity = mgl64.Vec3{}
	still := BuildContext(s, ctx.Field, ctx.Tactics)
	if got, _ := still.IsBallTowardsAgent(1, 0.8); got {
		t.Error("a still ball is heading at agent 1")
	}
}

func TestNearbyUnboundedRadius(t *testing.T) {
	_, ctx := buildTestContext(t)

	for _, radius := range []float64{math.Inf(1), math.MaxFloat64, 1e6} {
		opp, err := ctx.NearbyOpponents(1, radius)
		if err != nil {
			t.Fatal(err)
		}
		if len(opp) != 11 {
			t.Errorf("NearbyOpponents(1, %v) = %d agents, want 11", radius, len(opp))
		}
		mates, _ := ctx.NearbyTeammates(1, radius)
		if len(mates) != 10 {
			t.Errorf("NearbyTeammates(1, %v) = %d agents, want 10", radius, len(mates))
		}
	}
}

func TestPredictBall(t *testing.T) {
	s := newMatchState([]Agent{newAgent(1, Home, RoleDefender, 100, 100)}, NewEventLog())
	s.Ball = Ball{Position: mgl64.Vec3{200, 100, 0}, Velocity: mgl64.Vec3{10, 0, 0}}
	ctx := BuildContext(s, NewField(config.DefaultField()), config.DefaultTactics())

	if got := ctx.predictBall(0); got != s.Ball.Position {
		t.Errorf("predictBall(0) = %v, want the ball position", got)
	}
	if got := ctx.predictBall(2); math.Abs(got.X()-(200+10+9.7)) > 1e-9 {
		t.Errorf("predictBall(2) = %v, want x 219.7", got)
	}
	// A rolling ball stops short of speed/(1-friction) units.
	far := ctx.predictBall(10000)
	if far.X() >= 200+10/(1-ballFriction) || far.X() <= 300 {
		t.Errorf("predictBall(10000) = %v", far)
	}
}
