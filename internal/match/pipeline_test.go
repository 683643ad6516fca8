package match

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func stay(id AgentID, events ...Proposal) evaluation {
	return evaluation{agent: id, change: Stay(events...), decided: true}
}

func TestCommitFoulOrdering(t *testing.T) {
	spot := mgl64.Vec3{420, 272.5, 0}
	goal := mgl64.Vec3{840, 272.5, 0}

	tests := []struct {
		name         string
		ball         Ball
		evals        []evaluation
		wantOwner    AgentID
		wantFouls    int
		wantRejected uint64
		wantConflict *Conflict
	}{
		{
			name:         "claim then foul",
			ball:         Ball{Position: spot},
			evals:        []evaluation{stay(1, GainBall(1)), stay(2, Foul(2, 1))},
			wantOwner:    1,
			wantConflict: &Conflict{Kind: EventFoul, Agent: 2, Winner: 1},
		},
		{
			name:         "foul on a loose ball",
			ball:         Ball{Position: spot},
			evals:        []evaluation{stay(1, Foul(1, 2)), stay(2, GainBall(2))},
			wantOwner:    2,
			wantRejected: 1,
		},
		{
			name:         "foul stops the victim's shot",
			ball:         Ball{Owner: 2},
			evals:        []evaluation{stay(1, Foul(1, 2)), stay(2, Shoot(2, goal, 1))},
			wantOwner:    2,
			wantFouls:    1,
			wantConflict: &Conflict{Kind: EventShoot, Agent: 2, Winner: 1},
		},
		{
			name:         "foul out of reach",
			ball:         Ball{Owner: 3},
			evals:        []evaluation{stay(1, Foul(1, 3))},
			wantOwner:    3,
			wantRejected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := scenario(t, []Agent{
				newAgent(1, Home, RoleDefender, 419.5, 272.5),
				newAgent(2, Away, RoleForward, 420.5, 272.5),
				newAgent(3, Away, RoleForward, 440, 272.5),
			}, tt.ball)
			before := uint64(m.Events().Len())

			m.commit(tt.evals)

			if got := m.state.Ball.Owner; got != tt.wantOwner {
				t.Errorf("owner = %d, want %d", got, tt.wantOwner)
			}
			if n := len(eventsOf(m.Events().Since(before), EventFoul)); n != tt.wantFouls {
				t.Errorf("got %d foul events, want %d", n, tt.wantFouls)
			}
			if m.state.Rejected != tt.wantRejected {
				t.Errorf("Rejected = %d, want %d", m.state.Rejected, tt.wantRejected)
			}
			if tt.wantConflict == nil {
				if len(m.state.Conflicts) != 0 {
					t.Errorf("conflicts = %+v, want none", m.state.Conflicts)
				}
				return
			}
			if len(m.state.Conflicts) != 1 {
				t.Fatalf("got %d conflicts, want 1", len(m.state.Conflicts))
			}
			c := m.state.Conflicts[0]
			if c.Kind != tt.wantConflict.Kind || c.Agent != tt.wantConflict.Agent || c.Winner != tt.wantConflict.Winner {
				t.Errorf("conflict = %+v, want %+v", c, *tt.wantConflict)
			}
		})
	}
}

// TestBeatenDefenderFouls verifies an aggressive defender who has been
// passed near goal pulls the runner down, and the runner keeps the ball
// without getting the shot away.
func TestBeatenDefenderFouls(t *testing.T) {
	def := newAgent(1, Home, RoleDefender, 150, 272.5)
	def.Skills.Mental.Aggression = 20
	fwd := newAgent(2, Away, RoleForward, 148, 272.5)

	m := scenario(t, []Agent{def, fwd}, Ball{Owner: 2})
	before := uint64(m.Events().Len())

	tickN(t, m, 1)

	events := m.Events().Since(before)
	fouls := eventsOf(events, EventFoul)
	if len(fouls) != 1 || fouls[0].Agent != 1 || fouls[0].Target != 2 {
		t.Fatalf("fouls = %+v, want one by agent 1 on agent 2", fouls)
	}
	if n := len(eventsOf(events, EventShoot)); n != 0 {
		t.Errorf("got %d shoot events after the foul, want 0", n)
	}
	if m.state.Ball.Owner != 2 {
		t.Errorf("owner = %d, want the fouled forward", m.state.Ball.Owner)
	}
	a, _ := m.state.Agent(1)
	if a.State != DefenderTackling || a.Stats.FoulsCommitted != 1 {
		t.Errorf("defender state = %s, fouls = %d, want %s and 1", a.State, a.Stats.FoulsCommitted, DefenderTackling)
	}
	v, _ := m.state.Agent(2)
	if v.Stats.FoulsSuffered != 1 {
		t.Errorf("FoulsSuffered = %d, want 1", v.Stats.FoulsSuffered)
	}
}

// TestPressingDefenderTackles verifies a pressing defender that closes to
// tackling distance challenges on the same tick.
func TestPressingDefenderTackles(t *testing.T) {
	def := newAgent(1, Home, RoleDefender, 400, 272.5)
	fwd := newAgent(2, Away, RoleForward, 402.5, 272.5)

	m := scenario(t, []Agent{def, fwd}, Ball{Owner: 2})
	m.state.Agents[0].State = DefenderPressing
	before := uint64(m.Events().Len())

	tickN(t, m, 1)

	a, _ := m.state.Agent(1)
	if a.State != DefenderTackling {
		t.Fatalf("state = %s, want %s", a.State, DefenderTackling)
	}
	tackles := eventsOf(m.Events().Since(before), EventTackle)
	if len(tackles) != 1 || tackles[0].Agent != 1 || tackles[0].Target != 2 {
		t.Errorf("tackles = %+v, want one by agent 1 on agent 2", tackles)
	}
	if a.Stats.TacklesAttempted != 1 {
		t.Errorf("TacklesAttempted = %d, want 1", a.Stats.TacklesAttempted)
	}
}
