// Package roster turns team sheets into the agent list a match is played with.
package roster

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"matchday/internal/config"
	"matchday/internal/match"
)

// ErrInvalidSheet is returned for team sheets that cannot be lined up.
var ErrInvalidSheet = errors.New("invalid team sheet")

// DefaultFormation is used when a sheet names none.
const DefaultFormation = "4-4-2"

// PlayerSheet is one player as submitted.
type PlayerSheet struct {
	Name      string       `json:"name"`
	Role      match.Role   `json:"role"`
	Skills    match.Skills `json:"skills"`
	Condition float64      `json:"condition"`
}

// TeamSheet is one side's submitted lineup. Players are placed into the
// formation in role order, keeping their order within a role.
type TeamSheet struct {
	Name      string        `json:"name"`
	Formation string        `json:"formation,omitempty"`
	Players   []PlayerSheet `json:"players"`
}

// Formation is the number of outfield players per line, back to front.
type Formation struct {
	Defenders   int
	Midfielders int
	Forwards    int
}

// ParseFormation reads "D-M-F" notation, e.g. "4-4-2" or "3-5-2".
func ParseFormation(s string) (Formation, error) {
	if s == "" {
		s = DefaultFormation
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return Formation{}, fmt.Errorf("%w: formation %q must have three lines", ErrInvalidSheet, s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return Formation{}, fmt.Errorf("%w: formation %q", ErrInvalidSheet, s)
		}
		n[i] = v
	}
	f := Formation{Defenders: n[0], Midfielders: n[1], Forwards: n[2]}
	if f.Outfield() > match.MaxAgentsPerSide-1 {
		return Formation{}, fmt.Errorf("%w: formation %q has more than %d outfield players",
			ErrInvalidSheet, s, match.MaxAgentsPerSide-1)
	}
	return f, nil
}

// Outfield returns the number of outfield slots.
func (f Formation) Outfield() int { return f.Defenders + f.Midfielders + f.Forwards }

func (f Formation) String() string {
	return fmt.Sprintf("%d-%d-%d", f.Defenders, f.Midfielders, f.Forwards)
}

func (f Formation) count(r match.Role) int {
	switch r {
	case match.RoleGoalkeeper:
		return 1
	case match.RoleDefender:
		return f.Defenders
	case match.RoleMidfielder:
		return f.Midfielders
	case match.RoleForward:
		return f.Forwards
	}
	return 0
}

// Line depth as a fraction of the pitch length, measured from the own goal.
var lineDepth = map[match.Role]float64{
	match.RoleGoalkeeper: 0.025,
	match.RoleDefender:   0.18,
	match.RoleMidfielder: 0.35,
	match.RoleForward:    0.46,
}

var roleOrder = []match.Role{
	match.RoleGoalkeeper,
	match.RoleDefender,
	match.RoleMidfielder,
	match.RoleForward,
}

// Validate checks a sheet against its formation. A sheet may field fewer
// players than the formation has slots but never more in any line.
func (t *TeamSheet) Validate() error {
	f, err := ParseFormation(t.Formation)
	if err != nil {
		return err
	}
	if len(t.Players) == 0 {
		return fmt.Errorf("%w: %q has no players", ErrInvalidSheet, t.Name)
	}
	if len(t.Players) > match.MaxAgentsPerSide {
		return fmt.Errorf("%w: %q has %d players", ErrInvalidSheet, t.Name, len(t.Players))
	}

	perRole := map[match.Role]int{}
	for i, p := range t.Players {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: %q player %d has no name", ErrInvalidSheet, t.Name, i)
		}
		if p.Role == match.RoleUnknown {
			return fmt.Errorf("%w: %s has no role", ErrInvalidSheet, p.Name)
		}
		if p.Condition < 0 || p.Condition > 100 {
			return fmt.Errorf("%w: %s condition %.1f outside 0..100", ErrInvalidSheet, p.Name, p.Condition)
		}
		if err := checkSkills(&p.Skills); err != nil {
			return fmt.Errorf("%w: %s %v", ErrInvalidSheet, p.Name, err)
		}
		perRole[p.Role]++
	}
	for _, r := range roleOrder {
		if perRole[r] > f.count(r) {
			return fmt.Errorf("%w: %q fields %d %ss, formation %s allows %d",
				ErrInvalidSheet, t.Name, perRole[r], r, f, f.count(r))
		}
	}
	return nil
}

func checkSkills(s *match.Skills) error {
	values := []float64{
		s.Technical.Passing, s.Technical.Dribbling, s.Technical.Finishing, s.Technical.LongShots,
		s.Technical.Tackling, s.Technical.Technique, s.Technical.FirstTouch,
		s.Mental.Composure, s.Mental.Aggression, s.Mental.Decisions, s.Mental.Vision,
		s.Mental.Positioning, s.Mental.Anticipation, s.Mental.WorkRate,
		s.Physical.Pace, s.Physical.Acceleration, s.Physical.Agility, s.Physical.Stamina,
		s.Physical.Strength, s.Physical.NaturalFitness,
		s.Goalkeeping.Handling, s.Goalkeeping.Reflexes, s.Goalkeeping.Kicking, s.Goalkeeping.OneOnOnes,
	}
	for _, v := range values {
		if v < 1 || v > 20 {
			return fmt.Errorf("skill %.1f outside 1..20", v)
		}
	}
	return nil
}

// Build lines both sheets up on the pitch. Home players get IDs 1..n in
// role order, away players continue from there. Away positions mirror the
// home ones across the halfway line.
func Build(home, away TeamSheet, field config.FieldConfig) ([]match.Agent, error) {
	if err := home.Validate(); err != nil {
		return nil, err
	}
	if err := away.Validate(); err != nil {
		return nil, err
	}

	var agents []match.Agent
	next := match.AgentID(1)
	for _, side := range []match.Side{match.Home, match.Away} {
		sheet := &home
		if side == match.Away {
			sheet = &away
		}
		f, _ := ParseFormation(sheet.Formation)

		for _, role := range roleOrder {
			slots := f.count(role)
			slot := 0
			for _, p := range sheet.Players {
				if p.Role != role {
					continue
				}
				pos := slotPosition(field, side, role, slot, slots)
				agents = append(agents, match.Agent{
					ID:        next,
					Name:      p.Name,
					Side:      side,
					Role:      role,
					Position:  pos,
					Start:     pos,
					Skills:    p.Skills,
					Condition: p.Condition,
				})
				next++
				slot++
			}
		}
	}
	return agents, nil
}

// slotPosition spreads a line's slots evenly across the pitch width.
func slotPosition(field config.FieldConfig, side match.Side, role match.Role, slot, slots int) mgl64.Vec3 {
	x := lineDepth[role] * field.Width
	if side == match.Away {
		x = field.Width - x
	}
	y := field.Height / 2
	if slots > 1 {
		y = field.Height * float64(slot+1) / float64(slots+1)
	}
	return mgl64.Vec3{x, y, 0}
}
