package roster

import (
	"math/rand/v2"

	petname "github.com/dustinkirkland/golang-petname"

	"matchday/internal/match"
)

// Skill focus per role: attributes the role leans on get a higher mean.
type profile struct {
	passing, finishing, tackling, pace, keeping float64
}

var profiles = map[match.Role]profile{
	match.RoleGoalkeeper: {passing: 8, finishing: 3, tackling: 5, pace: 8, keeping: 14},
	match.RoleDefender:   {passing: 10, finishing: 5, tackling: 14, pace: 11, keeping: 3},
	match.RoleMidfielder: {passing: 14, finishing: 9, tackling: 10, pace: 12, keeping: 3},
	match.RoleForward:    {passing: 11, finishing: 14, tackling: 6, pace: 14, keeping: 3},
}

// Generate builds a full demo side for formation. Skills and condition are
// drawn from seed, so two calls with the same seed field identical players.
// Names come from petname and differ between calls.
func Generate(seed uint64, team, formation string) (TeamSheet, error) {
	f, err := ParseFormation(formation)
	if err != nil {
		return TeamSheet{}, err
	}
	rng := rand.New(rand.NewPCG(seed, 0x726f73746572))

	sheet := TeamSheet{Name: team, Formation: f.String()}
	for _, role := range roleOrder {
		for i := 0; i < f.count(role); i++ {
			sheet.Players = append(sheet.Players, PlayerSheet{
				Name:      petname.Generate(2, "-"),
				Role:      role,
				Skills:    skillsFor(rng, profiles[role]),
				Condition: 85 + 15*rng.Float64(),
			})
		}
	}
	return sheet, nil
}

func skillsFor(rng *rand.Rand, p profile) match.Skills {
	draw := func(mean float64) float64 {
		v := mean + 3*rng.NormFloat64()
		switch {
		case v < 1:
			return 1
		case v > 20:
			return 20
		}
		return v
	}
	general := 11.0
	return match.Skills{
		Technical: match.Technical{
			Passing:    draw(p.passing),
			Dribbling:  draw((p.passing + p.finishing) / 2),
			Finishing:  draw(p.finishing),
			LongShots:  draw(p.finishing - 1),
			Tackling:   draw(p.tackling),
			Technique:  draw(general),
			FirstTouch: draw(general),
		},
		Mental: match.Mental{
			Composure:    draw(general),
			Aggression:   draw(p.tackling - 2),
			Decisions:    draw(general),
			Vision:       draw(p.passing),
			Positioning:  draw(general),
			Anticipation: draw(general),
			WorkRate:     draw(general),
		},
		Physical: match.Physical{
			Pace:           draw(p.pace),
			Acceleration:   draw(p.pace),
			Agility:        draw(general),
			Stamina:        draw(general),
			Strength:       draw(general),
			NaturalFitness: draw(general),
		},
		Goalkeeping: match.Goalkeeping{
			Handling:  draw(p.keeping),
			Reflexes:  draw(p.keeping),
			Kicking:   draw(p.keeping - 2),
			OneOnOnes: draw(p.keeping),
		},
	}
}
