// Package steering converts targets and kinematic limits into velocities.
//
// Every primitive is a pure function. Velocities are expressed in pitch units
// per tick, and no primitive returns a vector longer than the max speed it is
// given.
package steering

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon below which a vector is treated as zero length.
const Epsilon = 1e-9

// Kinematics holds the per-agent movement limits for the current tick.
type Kinematics struct {
	MaxSpeed float64 // units per tick
	MaxAccel float64 // max change of velocity per tick
}

// Seek moves straight towards target at full speed.
func Seek(pos, target mgl64.Vec3, maxSpeed float64) mgl64.Vec3 {
	return towards(target.Sub(pos), maxSpeed)
}

// Flee moves straight away from threat at full speed.
func Flee(pos, threat mgl64.Vec3, maxSpeed float64) mgl64.Vec3 {
	return towards(pos.Sub(threat), maxSpeed)
}

// Arrive moves towards target and slows down linearly inside slowing.
// At the target itself the result is exactly zero.
func Arrive(pos, target mgl64.Vec3, maxSpeed, slowing float64) mgl64.Vec3 {
	offset := target.Sub(pos)
	dist := offset.Len()
	if dist <= 0 || maxSpeed <= 0 {
		return mgl64.Vec3{}
	}

	speed := maxSpeed
	if slowing > 0 && dist < slowing {
		speed = maxSpeed * dist / slowing
	}
	return offset.Mul(speed / dist)
}

// Pursue seeks the point the target will reach if it keeps its velocity.
// The lead grows with distance and is capped at maxLead ticks.
func Pursue(pos, target, targetVel mgl64.Vec3, maxSpeed, maxLead float64) mgl64.Vec3 {
	if maxSpeed <= 0 {
		return mgl64.Vec3{}
	}
	lead := target.Sub(pos).Len() / maxSpeed
	if lead > maxLead {
		lead = maxLead
	}
	return Seek(pos, target.Add(targetVel.Mul(lead)), maxSpeed)
}

// WanderParams shapes a wander circle projected ahead of the agent.
type WanderParams struct {
	Radius   float64 // radius of the wander circle
	Distance float64 // distance of the circle centre ahead of the agent
	Jitter   float64 // max heading swing in radians
	Speed    float64 // fraction of max speed, 0..1
}

// Wander returns a slowly varying heading around target. seed fixes the
// agent's personal phase and t is the elapsed tick count, so the same
// inputs always give the same velocity.
func Wander(pos, target mgl64.Vec3, p WanderParams, seed, t, maxSpeed float64) mgl64.Vec3 {
	heading := target.Sub(pos)
	if heading.Len() < Epsilon {
		heading = mgl64.Vec3{1, 0, 0}
	}
	heading = heading.Normalize()

	angle := seed + p.Jitter*math.Sin(t*0.05+seed)
	centre := pos.Add(heading.Mul(p.Distance))
	point := centre.Add(mgl64.Vec3{math.Cos(angle) * p.Radius, math.Sin(angle) * p.Radius, 0})

	speed := maxSpeed * clamp01(p.Speed)
	return Arrive(pos, point, speed, p.Distance+p.Radius)
}

// Limit steers current towards desired without exceeding k.MaxAccel of change
// and k.MaxSpeed of magnitude.
func Limit(current, desired mgl64.Vec3, k Kinematics) mgl64.Vec3 {
	delta := Truncate(desired.Sub(current), k.MaxAccel)
	return Truncate(current.Add(delta), k.MaxSpeed)
}

// Truncate shortens v to max if it is longer.
func Truncate(v mgl64.Vec3, max float64) mgl64.Vec3 {
	if max <= 0 {
		return mgl64.Vec3{}
	}
	l := v.Len()
	if l <= max {
		return v
	}
	return v.Mul(max / l)
}

// Direction returns the unit vector from a to b, or zero if they coincide.
func Direction(a, b mgl64.Vec3) mgl64.Vec3 {
	d := b.Sub(a)
	l := d.Len()
	if l < Epsilon {
		return mgl64.Vec3{}
	}
	return d.Mul(1 / l)
}

func towards(offset mgl64.Vec3, maxSpeed float64) mgl64.Vec3 {
	l := offset.Len()
	if l < Epsilon || maxSpeed <= 0 {
		return mgl64.Vec3{}
	}
	return offset.Mul(maxSpeed / l)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
