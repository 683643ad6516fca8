package match

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"matchday/internal/match/neural"
)

func TestNewRejectsInvalidRosters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Agent) []Agent
	}{
		{"empty", func([]Agent) []Agent { return nil }},
		{"zero id", func(a []Agent) []Agent { a[3].ID = NoAgent; return a }},
		{"duplicate id", func(a []Agent) []Agent { a[4].ID = a[5].ID; return a }},
		{"unknown role", func(a []Agent) []Agent { a[2].Role = RoleUnknown; return a }},
		{"two goalkeepers", func(a []Agent) []Agent { a[1].Role = RoleGoalkeeper; return a }},
		{"twelve a side", func(a []Agent) []Agent {
			return append(a, newAgent(99, Home, RoleMidfielder, 300, 100))
		}},
		{"state of another role", func(a []Agent) []Agent { a[2].State = ForwardShooting; return a }},
		{"condition out of range", func(a []Agent) []Agent { a[6].Condition = 120; return a }},
		{"non-finite position", func(a []Agent) []Agent { a[7].Position[0] = math.NaN(); return a }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.mutate(fullRoster()), testOptions(1))
			if !errors.Is(err, ErrInvalidRoster) {
				t.Errorf("New() error = %v, want ErrInvalidRoster", err)
			}
		})
	}
}

func TestNewRejectsInvalidTactics(t *testing.T) {
	opts := testOptions(1)
	opts.Tactics.SlidingTackleDistance = opts.Tactics.TacklingDistance / 2
	if _, err := New(fullRoster(), opts); err == nil {
		t.Error("New accepted a sliding tackle shorter than a standing one")
	}
}

// TestMatchPlaysFootball plays default matches and checks that the ball
// gets contested: shots are taken, tackles are made and goalkeepers have
// something to do.
func TestMatchPlaysFootball(t *testing.T) {
	if testing.Short() {
		t.Skip("plays long matches")
	}
	for _, seed := range []uint64{1, 2, 3} {
		opts := DefaultOptions()
		opts.Seed = seed
		opts.Engine.HalfLength = 15 * time.Minute
		m, err := New(fullRoster(), opts)
		if err != nil {
			t.Fatalf("seed %d: New: %v", seed, err)
		}

		keeperBusy := false
		for i := 0; !m.Done(); i++ {
			if err := m.Tick(); err != nil {
				t.Fatalf("seed %d tick %d: %v", seed, i, err)
			}
			for _, a := range m.state.Agents {
				if a.Role == RoleGoalkeeper && a.State != GoalkeeperStanding && a.State != GoalkeeperWalking {
					keeperBusy = true
				}
			}
		}

		events := m.Events().Events()
		if n := len(eventsOf(events, EventShoot)); n == 0 {
			t.Errorf("seed %d: no shots", seed)
		}
		if n := len(eventsOf(events, EventTackle)); n == 0 {
			t.Errorf("seed %d: no tackles", seed)
		}
		if !keeperBusy {
			t.Errorf("seed %d: goalkeepers never left their line", seed)
		}
	}
}

func TestNewSetsUpKickoff(t *testing.T) {
	m, err := New(fullRoster(), testOptions(3))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Lowest-ID home forward kicks off.
	if m.state.Ball.Owner != 10 {
		t.Errorf("kickoff owner = %d, want 10", m.state.Ball.Owner)
	}
	for _, a := range m.state.Agents {
		if a.State != InitialState(a.Role) {
			t.Errorf("agent %d starts in %s", a.ID, a.State)
		}
	}
	if snap := m.Snapshot(); snap == nil || len(snap.Agents) != 22 {
		t.Errorf("initial snapshot = %+v", snap)
	}
}

// TestMatchInvariants plays a match and checks the per-tick properties:
// the ball owner is a known agent or nobody, and condition never rises
// within a half.
func TestMatchInvariants(t *testing.T) {
	m, err := New(fullRoster(), testOptions(42))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	prev := map[AgentID]float64{}
	period := m.state.Period
	for i := 0; !m.Done(); i++ {
		if err := m.Tick(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		s := m.state
		if !s.Ball.Loose() {
			if _, ok := s.Agent(s.Ball.Owner); !ok {
				t.Fatalf("tick %d: ball owned by unknown agent %d", i, s.Ball.Owner)
			}
		}
		if s.Period != period {
			period = s.Period
			clear(prev)
		}
		for _, a := range s.Agents {
			if c, ok := prev[a.ID]; ok && a.Condition > c {
				t.Fatalf("tick %d: agent %d condition rose %.4f -> %.4f", i, a.ID, c, a.Condition)
			}
			prev[a.ID] = a.Condition
		}
	}

	res := m.Result()
	if len(res.Events) == 0 || !res.Completed {
		t.Fatalf("result = %d events, completed %v", len(res.Events), res.Completed)
	}
	for i, e := range res.Events {
		if e.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, e.Seq)
		}
		if i > 0 && e.ID.Compare(res.Events[i-1].ID) <= 0 {
			t.Fatalf("event %d id %s not after %s", i, e.ID, res.Events[i-1].ID)
		}
	}
}

func TestSameSeedSameMatch(t *testing.T) {
	run := func(parallel bool) *Result {
		opts := testOptions(2024)
		opts.Engine.ParallelAgents = parallel
		m, err := New(fullRoster(), opts)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		res, err := m.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	}

	a, b, c := run(true), run(true), run(false)
	if !reflect.DeepEqual(a.Events, b.Events) {
		t.Error("two parallel runs with the same seed diverged")
	}
	if !reflect.DeepEqual(a.Events, c.Events) {
		t.Error("parallel and sequential runs with the same seed diverged")
	}
	if a.Score != c.Score {
		t.Errorf("scores differ: %s vs %s", a.Score, c.Score)
	}
}

func TestRunStopsEarly(t *testing.T) {
	t.Run("stop", func(t *testing.T) {
		m, err := New(fullRoster(), testOptions(5))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		tickN(t, m, 3)
		m.Stop()

		res, err := m.Run(context.Background())
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("Run() error = %v, want ErrStopped", err)
		}
		if res.Completed || res.Reason == "" || res.Ticks != 3 {
			t.Errorf("partial result = completed %v, reason %q, ticks %d", res.Completed, res.Reason, res.Ticks)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		m, err := New(fullRoster(), testOptions(5))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := m.Run(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
		if res.Completed || res.Ticks != 0 {
			t.Errorf("partial result = completed %v, ticks %d", res.Completed, res.Ticks)
		}
	})
}

// lonelyDefender is a defender with nothing to react to, so only the slow
// path can move it.
func lonelyDefender(t *testing.T, eval neural.Evaluator) *Match {
	t.Helper()
	def := newAgent(1, Home, RoleDefender, 150, 272.5)
	fwd := newAgent(2, Away, RoleForward, 700, 60)

	opts := testOptions(1)
	opts.Evaluator = eval
	m, err := New([]Agent{def, fwd}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := range m.state.Agents {
		m.state.Agents[i].Position = m.state.Agents[i].Start
	}
	m.state.Ball = Ball{Owner: 2, LastTouch: 2}
	m.state.Ball.follow(&m.state.Agents[1])
	return m
}

func TestSlowPathUsesInjectedEvaluator(t *testing.T) {
	var calls atomic.Int64
	stub := neural.EvaluatorFunc(func(key neural.Key, _ neural.Features) (neural.Scores, error) {
		calls.Add(1)
		if key.Role != "defender" {
			return neural.Scores{}, neural.ErrNoModel
		}
		return neural.Scores{Labels: []string{"stay", "marking"}, Probs: []float64{0.1, 0.9}}, nil
	})

	m := lonelyDefender(t, stub)
	tickN(t, m, 1)

	a, _ := m.state.Agent(1)
	if a.State != DefenderMarking {
		t.Errorf("state = %s, want %s", a.State, DefenderMarking)
	}
	if calls.Load() == 0 {
		t.Error("evaluator was never consulted")
	}
}

func TestPanickingHandlerStalls(t *testing.T) {
	boom := neural.EvaluatorFunc(func(neural.Key, neural.Features) (neural.Scores, error) {
		panic("corrupt weights")
	})

	m := lonelyDefender(t, boom)
	tickN(t, m, 3)

	a, _ := m.state.Agent(1)
	if a.State != DefenderStanding {
		t.Errorf("state = %s, want unchanged %s", a.State, DefenderStanding)
	}
	if m.state.Stalls < 3 {
		t.Errorf("Stalls = %d, want at least 3", m.state.Stalls)
	}
}

func TestNoProgressEndsMatch(t *testing.T) {
	m, err := New([]Agent{newAgent(1, Home, RoleDefender, 200, 200)}, testOptions(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// A state with no handler stalls every tick.
	m.state.Agents[0].State = StateID(uint16(RoleDefender)<<8 | 0xff)

	res, err := m.Run(context.Background())
	if !errors.Is(err, ErrNoProgress) {
		t.Fatalf("Run() error = %v, want ErrNoProgress", err)
	}
	if res.Completed || res.Ticks != maxStalledTicks {
		t.Errorf("result = completed %v after %d ticks", res.Completed, res.Ticks)
	}
	if err := m.Tick(); !errors.Is(err, ErrNoProgress) {
		t.Errorf("Tick after abort = %v", err)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	m, err := New(fullRoster(), testOptions(9))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tickN(t, m, 5)
	snap := m.Snapshot()
	pos := snap.Agents[0].Position

	tickN(t, m, 5)
	if snap.Agents[0].Position != pos {
		t.Error("published snapshot changed after later ticks")
	}
	if next := m.Snapshot(); next.Sequence <= snap.Sequence || next.Tick != 10 {
		t.Errorf("latest snapshot seq %d tick %d", next.Sequence, next.Tick)
	}
}

func TestResultLeaders(t *testing.T) {
	res := &Result{Agents: []Agent{
		{ID: 1, Side: Home, Stats: Stats{Goals: 1, PossessionTicks: 30}},
		{ID: 2, Side: Away, Stats: Stats{Goals: 2, PossessionTicks: 10}},
		{ID: 3, Side: Home, Stats: Stats{TacklesWon: 4}},
	}}

	top := res.TopPerformers(2)
	if len(top) != 2 || top[0].ID != 2 || top[1].ID != 1 {
		t.Errorf("TopPerformers = %v", []AgentID{top[0].ID, top[1].ID})
	}
	home, away := res.Possession()
	if home != 0.75 || away != 0.25 {
		t.Errorf("Possession = %.2f/%.2f, want 0.75/0.25", home, away)
	}
}

func BenchmarkTick(b *testing.B) {
	for _, parallel := range []bool{false, true} {
		name := "sequential"
		if parallel {
			name = "parallel"
		}
		b.Run(name, func(b *testing.B) {
			opts := testOptions(1)
			opts.Engine.ParallelAgents = parallel
			opts.Engine.HalfLength *= 1000
			m, err := New(fullRoster(), opts)
			if err != nil {
				b.Fatalf("New: %v", err)
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := m.Tick(); err != nil {
					b.Fatalf("tick: %v", err)
				}
			}
		})
	}
}
