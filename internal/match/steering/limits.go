package steering

// Attribute scale bounds used by skill values.
const (
	MinAttribute = 1.0
	MaxAttribute = 20.0
)

// Top speed of a pace-20 player in full condition, in units per tick.
const TopSpeed = 7.0

// MaxSpeed returns an agent's current top speed. Pace sets the ceiling and
// condition (0..100) scales it down to half when exhausted.
func MaxSpeed(pace, condition float64) float64 {
	p := normalize(pace)
	c := clamp01(condition / 100)
	return TopSpeed * (0.45 + 0.55*p) * (0.5 + 0.5*c)
}

// MaxAccel returns the per-tick velocity change an agent can make.
// Acceleration and agility share the weight.
func MaxAccel(acceleration, agility, maxSpeed float64) float64 {
	a := normalize(acceleration)
	g := normalize(agility)
	return maxSpeed * (0.15 + 0.25*(0.6*a+0.4*g))
}

// For builds the kinematic limits for one tick.
func For(pace, acceleration, agility, condition float64) Kinematics {
	top := MaxSpeed(pace, condition)
	return Kinematics{
		MaxSpeed: top,
		MaxAccel: MaxAccel(acceleration, agility, top),
	}
}

func normalize(attr float64) float64 {
	return clamp01((attr - MinAttribute) / (MaxAttribute - MinAttribute))
}
