package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchday/internal/config"
	"matchday/internal/match"
)

func TestParseFormation(t *testing.T) {
	tests := []struct {
		in      string
		want    Formation
		wantErr bool
	}{
		{"", Formation{4, 4, 2}, false},
		{"4-4-2", Formation{4, 4, 2}, false},
		{"3-5-2", Formation{3, 5, 2}, false},
		{"4-3-3", Formation{4, 3, 3}, false},
		{"5-5-5", Formation{}, true},
		{"4-4", Formation{}, true},
		{"4-x-2", Formation{}, true},
		{"-1-4-2", Formation{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormation(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSheet)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateIsSeeded(t *testing.T) {
	a, err := Generate(7, "Reds", "4-3-3")
	require.NoError(t, err)
	b, err := Generate(7, "Reds", "4-3-3")
	require.NoError(t, err)
	c, err := Generate(8, "Reds", "4-3-3")
	require.NoError(t, err)

	require.Len(t, a.Players, match.MaxAgentsPerSide)
	for i := range a.Players {
		assert.Equal(t, a.Players[i].Role, b.Players[i].Role)
		assert.Equal(t, a.Players[i].Skills, b.Players[i].Skills)
		assert.Equal(t, a.Players[i].Condition, b.Players[i].Condition)
		assert.NotEmpty(t, a.Players[i].Name)
	}
	assert.NotEqual(t, a.Players[5].Skills, c.Players[5].Skills)
	assert.NoError(t, a.Validate())
}

func TestBuildLinesUpBothSides(t *testing.T) {
	home, err := Generate(1, "Home", "4-4-2")
	require.NoError(t, err)
	away, err := Generate(2, "Away", "3-5-2")
	require.NoError(t, err)

	field := config.DefaultField()
	agents, err := Build(home, away, field)
	require.NoError(t, err)
	require.Len(t, agents, 22)

	for i, a := range agents {
		assert.Equal(t, match.AgentID(i+1), a.ID)
		assert.Equal(t, a.Position, a.Start)
		if a.Side == match.Home {
			assert.Less(t, a.Position.X(), field.Width/2, "home agent %d in the away half", a.ID)
		} else {
			assert.Greater(t, a.Position.X(), field.Width/2, "away agent %d in the home half", a.ID)
		}
	}
	assert.Equal(t, match.RoleGoalkeeper, agents[0].Role)
	assert.Equal(t, match.Away, agents[11].Side)
	assert.Equal(t, match.RoleGoalkeeper, agents[11].Role)

	// The built roster is playable.
	_, err = match.New(agents, match.DefaultOptions())
	assert.NoError(t, err)
}

func TestValidateRejects(t *testing.T) {
	base := func() TeamSheet {
		s, err := Generate(3, "Blues", "4-4-2")
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name   string
		mutate func(*TeamSheet)
	}{
		{"no players", func(s *TeamSheet) { s.Players = nil }},
		{"twelve players", func(s *TeamSheet) { s.Players = append(s.Players, s.Players[3]) }},
		{"blank name", func(s *TeamSheet) { s.Players[2].Name = " " }},
		{"no role", func(s *TeamSheet) { s.Players[2].Role = match.RoleUnknown }},
		{"skill out of range", func(s *TeamSheet) { s.Players[4].Skills.Technical.Passing = 25 }},
		{"condition out of range", func(s *TeamSheet) { s.Players[4].Condition = -1 }},
		{"too many forwards", func(s *TeamSheet) { s.Players[5].Role = match.RoleForward }},
		{"bad formation", func(s *TeamSheet) { s.Formation = "4-4-2-1" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSheet)
		})
	}
}

func TestShortSideIsAllowed(t *testing.T) {
	s, err := Generate(4, "Ten", "4-4-2")
	require.NoError(t, err)
	s.Players = s.Players[:10]
	require.NoError(t, s.Validate())

	away, err := Generate(5, "Eleven", "")
	require.NoError(t, err)
	agents, err := Build(s, away, config.DefaultField())
	require.NoError(t, err)
	assert.Len(t, agents, 21)
}
