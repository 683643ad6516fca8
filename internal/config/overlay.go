package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay is a parsed YAML document that overrides pitch and tactics values.
// Keys absent from the document keep their current value.
//
//	field:
//	  width: 1050
//	tactics:
//	  marking_distance: 3.0
//	  stamina_floor: 25
type Overlay struct {
	raw []byte
}

type overlayDoc struct {
	Field   FieldConfig   `yaml:"field"`
	Tactics TacticsConfig `yaml:"tactics"`
}

// ParseOverlay validates a YAML overlay document.
func ParseOverlay(data []byte) (Overlay, error) {
	doc := overlayDoc{Field: DefaultField(), Tactics: DefaultTactics()}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Overlay{}, fmt.Errorf("parse tactics overlay: %w", err)
	}
	if err := doc.validate(); err != nil {
		return Overlay{}, err
	}
	return Overlay{raw: data}, nil
}

// LoadTacticsFile reads and validates an overlay file.
func LoadTacticsFile(path string) (Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overlay{}, fmt.Errorf("read tactics overlay: %w", err)
	}
	return ParseOverlay(data)
}

// Apply overlays the document onto field and tactics. Both are left
// untouched when the merged values do not validate.
func (o Overlay) Apply(field *FieldConfig, tactics *TacticsConfig) error {
	if len(o.raw) == 0 {
		return nil
	}
	doc := overlayDoc{Field: *field, Tactics: *tactics}
	if err := yaml.Unmarshal(o.raw, &doc); err != nil {
		return fmt.Errorf("parse tactics overlay: %w", err)
	}
	if err := doc.validate(); err != nil {
		return err
	}
	*field = doc.Field
	*tactics = doc.Tactics
	return nil
}

func (d *overlayDoc) validate() error {
	if err := d.Field.Validate(); err != nil {
		return err
	}
	return d.Tactics.Validate()
}

// Validate rejects degenerate pitch geometry.
func (f FieldConfig) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid pitch size %.1fx%.1f", f.Width, f.Height)
	}
	if f.GoalWidth <= 0 || f.GoalWidth >= f.Height {
		return fmt.Errorf("invalid goal width %.1f for pitch height %.1f", f.GoalWidth, f.Height)
	}
	return nil
}

// Validate rejects thresholds the state machines cannot work with.
func (t TacticsConfig) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"marking_distance", t.MarkingDistance},
		{"tackling_distance", t.TacklingDistance},
		{"sliding_tackle_distance", t.SlidingTackleDistance},
		{"ball_proximity", t.BallProximity},
		{"claim_distance", t.ClaimDistance},
		{"marking_scan_radius", t.MarkingScanRadius},
		{"pressing_distance", t.PressingDistance},
		{"tackling_approach", t.TacklingApproach},
		{"intercept_distance", t.InterceptDistance},
		{"shooting_distance", t.ShootingDistance},
		{"passing_range", t.PassingRange},
		{"short_pass_range", t.ShortPassRange},
		{"dribble_space", t.DribbleSpace},
		{"pressure_radius", t.PressureRadius},
		{"start_small_band", t.StartSmallBand},
	}
	for _, p := range positive {
		if !(p.v > 0) || math.IsInf(p.v, 1) {
			return fmt.Errorf("tactics: %s must be a positive distance, got %v", p.name, p.v)
		}
	}

	switch {
	case t.SlidingTackleDistance < t.TacklingDistance:
		return fmt.Errorf("tactics: sliding_tackle_distance %v is shorter than tackling_distance %v", t.SlidingTackleDistance, t.TacklingDistance)
	case t.LongShotDistance < 0 || t.LongShotDistance >= t.ShootingDistance:
		return fmt.Errorf("tactics: long_shot_distance %v must lie in [0, shooting_distance %v)", t.LongShotDistance, t.ShootingDistance)
	case t.StartMediumBand <= t.StartSmallBand:
		return fmt.Errorf("tactics: start bands must grow, got %v then %v", t.StartSmallBand, t.StartMediumBand)
	case !(t.PassPowerMin < t.PassPowerMax):
		return fmt.Errorf("tactics: pass_power_min %v must be below pass_power_max %v", t.PassPowerMin, t.PassPowerMax)
	case t.StaminaFloor < 0 || t.TackleStaminaFloor < 0 || t.RecoveredStamina > 100:
		return fmt.Errorf("tactics: stamina thresholds must lie in 0..100")
	case t.RecoveredStamina <= t.StaminaFloor:
		return fmt.Errorf("tactics: recovered_stamina %v must exceed stamina_floor %v", t.RecoveredStamina, t.StaminaFloor)
	case t.InterceptAngle < -1 || t.InterceptAngle > 1 || t.ClearShotDot < -1 || t.ClearShotDot > 1:
		return fmt.Errorf("tactics: intercept_angle and clear_shot_dot are cosines in -1..1")
	case t.ConfidenceFloor < 0 || t.ConfidenceFloor > 1:
		return fmt.Errorf("tactics: confidence_floor %v outside 0..1", t.ConfidenceFloor)
	case t.HoldingTicks == 0 || t.PossessionTicks == 0 || t.DiveTicks == 0:
		return fmt.Errorf("tactics: tick counts must be positive")
	}
	return nil
}
