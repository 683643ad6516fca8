package match

import (
	"github.com/go-gl/mathgl/mgl64"
)

const (
	ballFriction  = 0.97 // velocity kept per tick while rolling
	ballStopSpeed = 0.05 // below this a loose ball stops
	kickCooldown  = 4    // ticks before the kicker may claim the ball again
	maxKickSpeed  = 14.0
	minKickSpeed  = 2.0
)

// Ball is the match ball. Owner is NoAgent while the ball is loose.
type Ball struct {
	Position mgl64.Vec3 `json:"position"`
	Velocity mgl64.Vec3 `json:"velocity"`
	Owner    AgentID    `json:"owner"`

	LastTouch AgentID `json:"lastTouch"`
	KickTick  uint64  `json:"kickTick"`
	pass      pendingPass
}

// pendingPass remembers the last kick until someone touches the ball.
type pendingPass struct {
	from AgentID
	side Side
	shot bool
	live bool
}

// Loose reports whether nobody owns the ball.
func (b *Ball) Loose() bool { return b.Owner == NoAgent }

// Speed is the ball's current speed in units per tick.
func (b *Ball) Speed() float64 { return b.Velocity.Len() }

// kickSpeedFor returns the launch speed that rolls the ball roughly dist units.
func kickSpeedFor(dist float64) float64 {
	return clamp(dist*(1-ballFriction), minKickSpeed, maxKickSpeed)
}

// roll advances a loose ball by one tick.
func (b *Ball) roll() {
	b.Position = b.Position.Add(b.Velocity)
	b.Velocity = b.Velocity.Mul(ballFriction)
	if b.Velocity.Len() < ballStopSpeed {
		b.Velocity = mgl64.Vec3{}
	}
}

// follow keeps an owned ball at its owner's feet.
func (b *Ball) follow(owner *Agent) {
	offset := mgl64.Vec3{}
	if v := owner.Velocity.Len(); v > 1e-9 {
		offset = owner.Velocity.Mul(0.8 / v)
	}
	b.Position = owner.Position.Add(offset)
	b.Velocity = owner.Velocity
}

// stop kills the ball's motion and clears possession.
func (b *Ball) stop() {
	b.Velocity = mgl64.Vec3{}
	b.Owner = NoAgent
	b.pass = pendingPass{}
}
