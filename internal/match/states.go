package match

import "fmt"

// StateID tags an agent's behavioural state. The high byte is the Role and
// the low byte the state within that role, so a state can never be shared
// between roles.
type StateID uint16

// StateNone means "no transition" in a StateChange.
const StateNone StateID = 0

const (
	GoalkeeperStanding StateID = StateID(RoleGoalkeeper)<<8 + iota
	GoalkeeperWalking
	GoalkeeperComingOut
	GoalkeeperDiving
	GoalkeeperCatching
	GoalkeeperHolding
	GoalkeeperDistributing
	GoalkeeperReturningToGoal
)

const (
	DefenderStanding StateID = StateID(RoleDefender)<<8 + iota
	DefenderMarking
	DefenderTackling
	DefenderSlidingTackle
	DefenderPressing
	DefenderIntercepting
	DefenderReturning
	DefenderResting
	DefenderHoldingLine
	DefenderRunning
	DefenderPassing
	DefenderClearing
)

const (
	MidfielderStanding StateID = StateID(RoleMidfielder)<<8 + iota
	MidfielderDribbling
	MidfielderPressing
	MidfielderAttackSupporting
	MidfielderTackling
	MidfielderPassing
	MidfielderIntercepting
	MidfielderReturning
	MidfielderRunning
	MidfielderHoldingPossession
	MidfielderDistanceShooting
	MidfielderResting
)

const (
	ForwardStanding StateID = StateID(RoleForward)<<8 + iota
	ForwardDribbling
	ForwardShooting
	ForwardPassing
	ForwardHoldingUpPlay
	ForwardRunning
	ForwardTakeBall
	ForwardReturning
	ForwardResting
)

var stateNames = map[StateID]string{
	GoalkeeperStanding:        "standing",
	GoalkeeperWalking:         "walking",
	GoalkeeperComingOut:       "coming_out",
	GoalkeeperDiving:          "diving",
	GoalkeeperCatching:        "catching",
	GoalkeeperHolding:         "holding",
	GoalkeeperDistributing:    "distributing",
	GoalkeeperReturningToGoal: "returning_to_goal",

	DefenderStanding:      "standing",
	DefenderMarking:       "marking",
	DefenderTackling:      "tackling",
	DefenderSlidingTackle: "sliding_tackle",
	DefenderPressing:      "pressing",
	DefenderIntercepting:  "intercepting",
	DefenderReturning:     "returning",
	DefenderResting:       "resting",
	DefenderHoldingLine:   "holding_line",
	DefenderRunning:       "running",
	DefenderPassing:       "passing",
	DefenderClearing:      "clearing",

	MidfielderStanding:          "standing",
	MidfielderDribbling:         "dribbling",
	MidfielderPressing:          "pressing",
	MidfielderAttackSupporting:  "attack_supporting",
	MidfielderTackling:          "tackling",
	MidfielderPassing:           "passing",
	MidfielderIntercepting:      "intercepting",
	MidfielderReturning:         "returning",
	MidfielderRunning:           "running",
	MidfielderHoldingPossession: "holding_possession",
	MidfielderDistanceShooting:  "distance_shooting",
	MidfielderResting:           "resting",

	ForwardStanding:      "standing",
	ForwardDribbling:     "dribbling",
	ForwardShooting:      "shooting",
	ForwardPassing:       "passing",
	ForwardHoldingUpPlay: "holding_up_play",
	ForwardRunning:       "running",
	ForwardTakeBall:      "take_ball",
	ForwardReturning:     "returning",
	ForwardResting:       "resting",
}

// Role returns the role a state belongs to.
func (s StateID) Role() Role { return Role(s >> 8) }

// Name is the state's name within its role, e.g. "sliding_tackle".
func (s StateID) Name() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s StateID) String() string {
	return s.Role().String() + "/" + s.Name()
}

// MarshalText encodes the state as "role/name", and StateNone as "".
func (s StateID) MarshalText() ([]byte, error) {
	if s == StateNone {
		return []byte{}, nil
	}
	return []byte(s.String()), nil
}

// Valid reports whether s is a defined state.
func (s StateID) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

// InitialState is the state every agent of a role starts and restarts in.
func InitialState(r Role) StateID {
	switch r {
	case RoleGoalkeeper:
		return GoalkeeperStanding
	case RoleDefender:
		return DefenderStanding
	case RoleMidfielder:
		return MidfielderStanding
	case RoleForward:
		return ForwardStanding
	default:
		return StateNone
	}
}

// StatesOf lists the states of a role in declaration order.
func StatesOf(r Role) []StateID {
	var out []StateID
	first := InitialState(r)
	if first == StateNone {
		return nil
	}
	for s := first; s.Valid(); s++ {
		out = append(out, s)
	}
	return out
}

// UnmarshalText decodes a "role/name" state. The empty string is StateNone.
func (s *StateID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = StateNone
		return nil
	}
	for id := range stateNames {
		if id.String() == string(text) {
			*s = id
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}
