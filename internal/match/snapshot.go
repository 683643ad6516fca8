package match

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// AgentSnapshot is an immutable copy of the agent fields a live view needs.
// Value types only, so a published snapshot never aliases match state.
type AgentSnapshot struct {
	ID        AgentID    `json:"id"`
	Name      string     `json:"name"`
	Side      Side       `json:"side"`
	Role      Role       `json:"role"`
	State     StateID    `json:"state"`
	Position  mgl64.Vec3 `json:"position"`
	Velocity  mgl64.Vec3 `json:"velocity"`
	Condition float64    `json:"condition"`
}

// BallSnapshot is an immutable copy of the ball.
type BallSnapshot struct {
	Position mgl64.Vec3 `json:"position"`
	Velocity mgl64.Vec3 `json:"velocity"`
	Owner    AgentID    `json:"owner,omitempty"`
}

// Snapshot is the state published after every tick for lock-free readers.
type Snapshot struct {
	Sequence uint64          `json:"sequence"`
	Tick     uint64          `json:"tick"`
	Clock    time.Duration   `json:"clock"`
	Period   Period          `json:"period"`
	Score    Score           `json:"score"`
	Ball     BallSnapshot    `json:"ball"`
	Agents   []AgentSnapshot `json:"agents"`
	Events   int             `json:"events"`
}

// Snapshot returns the latest published snapshot. It never blocks on the
// match loop.
func (m *Match) Snapshot() *Snapshot {
	return m.snapshot.Load()
}

// publish produces a fresh snapshot and swaps it in. Called at the end of
// every tick while the loop holds the match lock.
func (m *Match) publish() {
	s := m.state
	m.sequence++
	snap := &Snapshot{
		Sequence: m.sequence,
		Tick:     s.Tick,
		Clock:    s.Elapsed,
		Period:   s.Period,
		Score:    s.Score,
		Ball: BallSnapshot{
			Position: s.Ball.Position,
			Velocity: s.Ball.Velocity,
			Owner:    s.Ball.Owner,
		},
		Agents: make([]AgentSnapshot, len(s.Agents)),
		Events: s.Events.Len(),
	}
	for i := range s.Agents {
		a := &s.Agents[i]
		snap.Agents[i] = AgentSnapshot{
			ID:        a.ID,
			Name:      a.Name,
			Side:      a.Side,
			Role:      a.Role,
			State:     a.State,
			Position:  a.Position,
			Velocity:  a.Velocity,
			Condition: a.Condition,
		}
	}
	m.snapshot.Store(snap)
}
