package match

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

func uniformSkills(v float64) Skills {
	return Skills{
		Technical:   Technical{Passing: v, Dribbling: v, Finishing: v, LongShots: v, Tackling: v, Technique: v, FirstTouch: v},
		Mental:      Mental{Composure: v, Aggression: v, Decisions: v, Vision: v, Positioning: v, Anticipation: v, WorkRate: v},
		Physical:    Physical{Pace: v, Acceleration: v, Agility: v, Stamina: v, Strength: v, NaturalFitness: v},
		Goalkeeping: Goalkeeping{Handling: v, Reflexes: v, Kicking: v, OneOnOnes: v},
	}
}

func newAgent(id AgentID, side Side, role Role, x, y float64) Agent {
	p := mgl64.Vec3{x, y, 0}
	return Agent{
		ID:        id,
		Name:      fmt.Sprintf("agent-%d", id),
		Side:      side,
		Role:      role,
		Position:  p,
		Start:     p,
		Skills:    uniformSkills(10),
		Condition: 100,
	}
}

// fullRoster lines both sides up 4-4-2 on the default pitch, IDs 1-11 home
// and 12-22 away.
func fullRoster() []Agent {
	const w, h = 840.0, 545.0
	type slot struct {
		role Role
		x, y float64
	}
	shape := []slot{
		{RoleGoalkeeper, 20, 0.5},
		{RoleDefender, 150, 0.2}, {RoleDefender, 150, 0.4}, {RoleDefender, 150, 0.6}, {RoleDefender, 150, 0.8},
		{RoleMidfielder, 290, 0.2}, {RoleMidfielder, 290, 0.4}, {RoleMidfielder, 290, 0.6}, {RoleMidfielder, 290, 0.8},
		{RoleForward, 390, 0.4}, {RoleForward, 390, 0.6},
	}

	var out []Agent
	for _, side := range []Side{Home, Away} {
		for i, s := range shape {
			id := AgentID(i + 1)
			x := s.x
			if side == Away {
				id += AgentID(len(shape))
				x = w - s.x
			}
			out = append(out, newAgent(id, side, s.role, x, s.y*h))
		}
	}
	return out
}

func testOptions(seed uint64) Options {
	opts := DefaultOptions()
	opts.Seed = seed
	opts.Engine.HalfLength = 30 * time.Second
	opts.Label = "test"
	return opts
}

// scenario builds a match and then places every agent on its roster
// position with the given ball, replacing the kickoff setup.
func scenario(t testing.TB, agents []Agent, ball Ball) *Match {
	t.Helper()
	m, err := New(agents, testOptions(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := range m.state.Agents {
		a := &m.state.Agents[i]
		a.Position, a.Velocity = a.Start, mgl64.Vec3{}
	}
	m.state.Ball = ball
	if !ball.Loose() {
		owner, ok := m.state.Agent(ball.Owner)
		if !ok {
			t.Fatalf("ball owner %d not in roster", ball.Owner)
		}
		m.state.Ball.LastTouch = owner.ID
		m.state.Ball.follow(owner)
	}
	return m
}

func tickN(t testing.TB, m *Match, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := m.Tick(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
}
