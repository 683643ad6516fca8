package match

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oklog/ulid/v2"
)

// EventKind classifies proposed and committed events.
type EventKind uint8

const (
	EventUnknown    EventKind = iota
	EventPass                 // owner plays the ball to a teammate
	EventShoot                // owner shoots at a point
	EventClear                // owner kicks the ball long to a point
	EventTackle               // attempt to take the ball from its owner
	EventFoul                 // foul on an agent
	EventGainBall             // claim a loose ball
	EventCaughtBall           // goalkeeper claims the ball with the hands
	EventMovePlayer           // position override
	EventGoal                 // committed by the engine only
	EventOutOfPlay            // committed by the engine only
	EventKickoff              // committed by the engine only
	EventPeriod               // period boundary, committed by the engine only
)

var eventKindNames = [...]string{
	EventUnknown:    "unknown",
	EventPass:       "pass",
	EventShoot:      "shoot",
	EventClear:      "clear",
	EventTackle:     "tackle",
	EventFoul:       "foul",
	EventGainBall:   "gain_ball",
	EventCaughtBall: "caught_ball",
	EventMovePlayer: "move_player",
	EventGoal:       "goal",
	EventOutOfPlay:  "out_of_play",
	EventKickoff:    "kickoff",
	EventPeriod:     "period",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *EventKind) UnmarshalText(text []byte) error {
	for i, n := range eventKindNames {
		if n == string(text) {
			*k = EventKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", text)
}

// isClaim reports whether the kind is resolved against the ball owner at
// the moment it is applied, first claim wins.
func (k EventKind) isClaim() bool {
	return k == EventGainBall || k == EventCaughtBall || k == EventFoul
}

// Proposal is an intended action returned by a state handler. It never
// mutates shared state by itself.
type Proposal struct {
	Kind    EventKind
	Agent   AgentID    // originator
	Target  AgentID    // receiver, tackle or foul victim
	Point   mgl64.Vec3 // shot/clear target or position override
	Force   float64    // normalized 0..1
	Sliding bool       // tackle variant
}

// Pass proposes a pass to a teammate.
func Pass(from, to AgentID, force float64) Proposal {
	return Proposal{Kind: EventPass, Agent: from, Target: to, Force: force}
}

// Shoot proposes a shot at point.
func Shoot(from AgentID, at mgl64.Vec3, force float64) Proposal {
	return Proposal{Kind: EventShoot, Agent: from, Point: at, Force: force}
}

// Clear proposes a long kick towards point.
func Clear(from AgentID, at mgl64.Vec3, force float64) Proposal {
	return Proposal{Kind: EventClear, Agent: from, Point: at, Force: force}
}

// Tackle proposes a tackle on the ball owner.
func Tackle(from, victim AgentID, sliding bool) Proposal {
	return Proposal{Kind: EventTackle, Agent: from, Target: victim, Sliding: sliding}
}

// Foul proposes a foul on victim.
func Foul(from, victim AgentID) Proposal {
	return Proposal{Kind: EventFoul, Agent: from, Target: victim}
}

// GainBall proposes claiming the loose ball.
func GainBall(by AgentID) Proposal {
	return Proposal{Kind: EventGainBall, Agent: by}
}

// CaughtBall proposes a goalkeeper catch.
func CaughtBall(by AgentID) Proposal {
	return Proposal{Kind: EventCaughtBall, Agent: by}
}

// MovePlayer proposes moving an agent straight to p.
func MovePlayer(id AgentID, p mgl64.Vec3) Proposal {
	return Proposal{Kind: EventMovePlayer, Agent: id, Point: p}
}

// Event is an immutable entry of the committed event log.
type Event struct {
	ID      ulid.ULID     `json:"id"`
	Seq     uint64        `json:"seq"`
	Tick    uint64        `json:"tick"`
	Clock   time.Duration `json:"clock"`
	Period  Period        `json:"period"`
	Kind    EventKind     `json:"kind"`
	Agent   AgentID       `json:"agent,omitempty"`
	Target  AgentID       `json:"target,omitempty"`
	Side    Side          `json:"side"`
	Point   mgl64.Vec3    `json:"point"`
	Force   float64       `json:"force,omitempty"`
	Outcome string        `json:"outcome,omitempty"`
}

// Conflict records a claim dropped because ownership already changed in
// the same tick.
type Conflict struct {
	Tick   uint64    `json:"tick"`
	Kind   EventKind `json:"kind"`
	Agent  AgentID   `json:"agent"`
	Winner AgentID   `json:"winner"`
}
