package match

import (
	"fmt"
	"time"
)

// Period of play. Transitions are strictly forward.
type Period uint8

const (
	FirstHalf Period = iota
	HalfTime
	SecondHalf
	FullTime
)

func (p Period) String() string {
	switch p {
	case FirstHalf:
		return "first_half"
	case HalfTime:
		return "half_time"
	case SecondHalf:
		return "second_half"
	case FullTime:
		return "full_time"
	default:
		return fmt.Sprintf("period(%d)", uint8(p))
	}
}

// MarshalText encodes the period by name.
func (p Period) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes a period name.
func (p *Period) UnmarshalText(text []byte) error {
	for q := FirstHalf; q <= FullTime; q++ {
		if q.String() == string(text) {
			*p = q
			return nil
		}
	}
	return fmt.Errorf("unknown period %q", text)
}

// Score is the running scoreline.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

func (s Score) String() string { return fmt.Sprintf("%d-%d", s.Home, s.Away) }

func (s *Score) add(side Side) {
	if side == Home {
		s.Home++
	} else {
		s.Away++
	}
}

// PeriodMarker records when a period began.
type PeriodMarker struct {
	Period Period        `json:"period"`
	Tick   uint64        `json:"tick"`
	Clock  time.Duration `json:"clock"`
}

// MatchState is the authoritative state of one match. It is owned by the
// match loop and mutated only by the commit step.
type MatchState struct {
	Tick       uint64        // ticks committed so far
	Elapsed    time.Duration // match clock
	Period     Period
	PeriodTick uint64 // ticks played in the current period
	Score      Score
	Agents     []Agent // ascending ID
	Ball       Ball
	Kickoff    Side // side that kicked off the first half
	Markers    []PeriodMarker
	Conflicts  []Conflict
	Stalls     uint64 // agent evaluations that ended in no decision due to an error
	Rejected   uint64 // proposals dropped as invalid
	Events     *EventLog

	index map[AgentID]int
}

// newMatchState takes ownership of agents, sorted by ID.
func newMatchState(agents []Agent, log *EventLog) *MatchState {
	s := &MatchState{
		Agents: agents,
		Events: log,
		index:  make(map[AgentID]int, len(agents)),
	}
	for i := range agents {
		s.index[agents[i].ID] = i
	}
	return s
}

// Agent returns the live record of an agent.
func (s *MatchState) Agent(id AgentID) (*Agent, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return &s.Agents[i], true
}

// Possession returns the side owning the ball, if any.
func (s *MatchState) Possession() (Side, bool) {
	if s.Ball.Loose() {
		return Home, false
	}
	a, ok := s.Agent(s.Ball.Owner)
	if !ok {
		return Home, false
	}
	return a.Side, true
}

// checkInvariants verifies the state after a commit.
func (s *MatchState) checkInvariants() error {
	if !s.Ball.Loose() {
		if _, ok := s.Agent(s.Ball.Owner); !ok {
			return consistencyError("ball owned by unknown agent %d", s.Ball.Owner)
		}
	}
	if !finite(s.Ball.Position) || !finite(s.Ball.Velocity) {
		return consistencyError("ball state is not finite: %v %v", s.Ball.Position, s.Ball.Velocity)
	}
	for i := range s.Agents {
		a := &s.Agents[i]
		if !finite(a.Position) || !finite(a.Velocity) {
			return consistencyError("agent %d state is not finite", a.ID)
		}
		if a.State.Role() != a.Role {
			return consistencyError("agent %d is a %s in state %s", a.ID, a.Role, a.State)
		}
		if a.Condition < 0 || a.Condition > 100 {
			return consistencyError("agent %d condition %.2f out of range", a.ID, a.Condition)
		}
	}
	return nil
}
