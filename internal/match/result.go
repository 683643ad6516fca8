package match

import (
	"sort"
	"time"
)

// Result is the in-memory outcome of a match: what persistence and
// presentation consume.
type Result struct {
	Seed      uint64         `json:"seed"`
	Score     Score          `json:"score"`
	Periods   []PeriodMarker `json:"periods"`
	Events    []Event        `json:"events"`
	Agents    []Agent        `json:"agents"`
	Conflicts []Conflict     `json:"conflicts"`
	Ticks     uint64         `json:"ticks"`
	Clock     time.Duration  `json:"clock"`
	Stalls    uint64         `json:"stalls"`
	Rejected  uint64         `json:"rejected"`
	Completed bool           `json:"completed"`
	Reason    string         `json:"reason,omitempty"`
}

// Result copies the current state into a Result. Before full time it is a
// partial result.
func (m *Match) Result() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state
	res := &Result{
		Seed:      m.opts.Seed,
		Score:     s.Score,
		Periods:   append([]PeriodMarker(nil), s.Markers...),
		Events:    s.Events.Events(),
		Agents:    append([]Agent(nil), s.Agents...),
		Conflicts: append([]Conflict(nil), s.Conflicts...),
		Ticks:     s.Tick,
		Clock:     s.Elapsed,
		Stalls:    s.Stalls,
		Rejected:  s.Rejected,
		Completed: s.Period == FullTime,
	}
	if m.err != nil {
		res.Reason = m.err.Error()
	}
	return res
}

// Possession returns each side's share of owned-ball ticks, 0..1.
func (r *Result) Possession() (home, away float64) {
	var h, a uint64
	for i := range r.Agents {
		if r.Agents[i].Side == Home {
			h += r.Agents[i].Stats.PossessionTicks
		} else {
			a += r.Agents[i].Stats.PossessionTicks
		}
	}
	if h+a == 0 {
		return 0, 0
	}
	return float64(h) / float64(h+a), float64(a) / float64(h+a)
}

// TopPerformers returns up to n agents ranked by goals, then shots on
// target, tackles won and completed passes. Ties keep ID order.
func (r *Result) TopPerformers(n int) []Agent {
	out := append([]Agent(nil), r.Agents...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i].Stats, &out[j].Stats
		if a.Goals != b.Goals {
			return a.Goals > b.Goals
		}
		if a.ShotsOnTarget != b.ShotsOnTarget {
			return a.ShotsOnTarget > b.ShotsOnTarget
		}
		if a.TacklesWon != b.TacklesWon {
			return a.TacklesWon > b.TacklesWon
		}
		return a.PassesCompleted > b.PassesCompleted
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}
