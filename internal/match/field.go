package match

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"matchday/internal/config"
)

// penaltyDepth is how far the penalty area reaches from the goal line.
const penaltyDepth = 140.0

// Field is the pitch geometry of one match. Home defends the goal at x=0
// for the whole match.
type Field struct {
	Width     float64
	Height    float64
	GoalWidth float64
}

// NewField converts configuration into match geometry.
func NewField(cfg config.FieldConfig) Field {
	return Field{Width: cfg.Width, Height: cfg.Height, GoalWidth: cfg.GoalWidth}
}

// Centre returns the centre spot.
func (f Field) Centre() mgl64.Vec3 {
	return mgl64.Vec3{f.Width / 2, f.Height / 2, 0}
}

// OwnGoal returns the centre of the goal a side defends.
func (f Field) OwnGoal(s Side) mgl64.Vec3 {
	if s == Home {
		return mgl64.Vec3{0, f.Height / 2, 0}
	}
	return mgl64.Vec3{f.Width, f.Height / 2, 0}
}

// OpponentGoal returns the centre of the goal a side attacks.
func (f Field) OpponentGoal(s Side) mgl64.Vec3 {
	return f.OwnGoal(s.Opponent())
}

// AttackDir is +1 when a side attacks towards increasing x.
func (f Field) AttackDir(s Side) float64 {
	if s == Home {
		return 1
	}
	return -1
}

// InGoalMouth reports whether y lies between the posts.
func (f Field) InGoalMouth(y float64) bool {
	return math.Abs(y-f.Height/2) <= f.GoalWidth/2
}

// Contains reports whether p is on the pitch, lines included.
func (f Field) Contains(p mgl64.Vec3) bool {
	return p.X() >= 0 && p.X() <= f.Width && p.Y() >= 0 && p.Y() <= f.Height
}

// InPenaltyArea reports whether p is inside the area in front of side's goal.
func (f Field) InPenaltyArea(s Side, p mgl64.Vec3) bool {
	goal := f.OwnGoal(s)
	return math.Abs(p.X()-goal.X()) <= penaltyDepth && math.Abs(p.Y()-goal.Y()) <= penaltyDepth+f.GoalWidth/2
}

// Clamp keeps p within margin of the pitch.
func (f Field) Clamp(p mgl64.Vec3, margin float64) mgl64.Vec3 {
	return mgl64.Vec3{
		clamp(p.X(), -margin, f.Width+margin),
		clamp(p.Y(), -margin, f.Height+margin),
		0,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
