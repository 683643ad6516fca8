package match

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// AgentID identifies an agent within one match. Zero means "nobody".
type AgentID uint32

// NoAgent is the zero AgentID, used for a loose ball.
const NoAgent AgentID = 0

// Side of the pitch a team defends. Home defends the goal at x=0.
type Side uint8

const (
	Home Side = iota
	Away
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == Home {
		return Away
	}
	return Home
}

func (s Side) String() string {
	if s == Home {
		return "home"
	}
	return "away"
}

// MarshalText encodes the side by name.
func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes "home" or "away".
func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "home":
		*s = Home
	case "away":
		*s = Away
	default:
		return fmt.Errorf("unknown side %q", text)
	}
	return nil
}

// Role is an agent's tactical role. Roles start at 1 so that the zero
// StateID never belongs to a role.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleGoalkeeper
	RoleDefender
	RoleMidfielder
	RoleForward
)

func (r Role) String() string {
	switch r {
	case RoleGoalkeeper:
		return "goalkeeper"
	case RoleDefender:
		return "defender"
	case RoleMidfielder:
		return "midfielder"
	case RoleForward:
		return "forward"
	default:
		return "unknown"
	}
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText decodes a role name or its short form.
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	if *r == RoleUnknown {
		return fmt.Errorf("unknown role %q", text)
	}
	return nil
}

// ParseRole is the inverse of Role.String.
func ParseRole(s string) Role {
	switch s {
	case "goalkeeper", "gk":
		return RoleGoalkeeper
	case "defender", "def":
		return RoleDefender
	case "midfielder", "mid":
		return RoleMidfielder
	case "forward", "fwd":
		return RoleForward
	default:
		return RoleUnknown
	}
}

// Skills are bounded 1..20 attribute values.
type Skills struct {
	Technical   Technical   `json:"technical"`
	Mental      Mental      `json:"mental"`
	Physical    Physical    `json:"physical"`
	Goalkeeping Goalkeeping `json:"goalkeeping"`
}

type Technical struct {
	Passing    float64 `json:"passing"`
	Dribbling  float64 `json:"dribbling"`
	Finishing  float64 `json:"finishing"`
	LongShots  float64 `json:"longShots"`
	Tackling   float64 `json:"tackling"`
	Technique  float64 `json:"technique"`
	FirstTouch float64 `json:"firstTouch"`
}

type Mental struct {
	Composure    float64 `json:"composure"`
	Aggression   float64 `json:"aggression"`
	Decisions    float64 `json:"decisions"`
	Vision       float64 `json:"vision"`
	Positioning  float64 `json:"positioning"`
	Anticipation float64 `json:"anticipation"`
	WorkRate     float64 `json:"workRate"`
}

type Physical struct {
	Pace           float64 `json:"pace"`
	Acceleration   float64 `json:"acceleration"`
	Agility        float64 `json:"agility"`
	Stamina        float64 `json:"stamina"`
	Strength       float64 `json:"strength"`
	NaturalFitness float64 `json:"naturalFitness"`
}

type Goalkeeping struct {
	Handling  float64 `json:"handling"`
	Reflexes  float64 `json:"reflexes"`
	Kicking   float64 `json:"kicking"`
	OneOnOnes float64 `json:"oneOnOnes"`
}

// Stats are per-agent cumulative match statistics.
type Stats struct {
	Passes           int     `json:"passes"`
	PassesCompleted  int     `json:"passesCompleted"`
	Shots            int     `json:"shots"`
	ShotsOnTarget    int     `json:"shotsOnTarget"`
	Goals            int     `json:"goals"`
	OwnGoals         int     `json:"ownGoals"`
	TacklesAttempted int     `json:"tacklesAttempted"`
	TacklesWon       int     `json:"tacklesWon"`
	FoulsCommitted   int     `json:"foulsCommitted"`
	FoulsSuffered    int     `json:"foulsSuffered"`
	BallGains        int     `json:"ballGains"`
	Saves            int     `json:"saves"`
	Distance         float64 `json:"distance"`
	PossessionTicks  uint64  `json:"possessionTicks"`
}

// Agent is an on-pitch player record owned by MatchState.
type Agent struct {
	ID        AgentID    `json:"id"`
	Name      string     `json:"name"`
	Side      Side       `json:"side"`
	Role      Role       `json:"role"`
	State     StateID    `json:"state"`
	InState   uint64     `json:"inState"` // ticks spent in State
	Position  mgl64.Vec3 `json:"position"`
	Velocity  mgl64.Vec3 `json:"velocity"`
	Start     mgl64.Vec3 `json:"start"`
	Skills    Skills     `json:"skills"`
	Condition float64    `json:"condition"` // 0..100
	Stats     Stats      `json:"stats"`
}

// tackleSkill is mean(tackling, composure) scaled to 0..1.
func (a *Agent) tackleSkill() float64 {
	return (a.Skills.Technical.Tackling + a.Skills.Mental.Composure) / 2 / 20
}
