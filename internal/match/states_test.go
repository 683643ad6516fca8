package match

import (
	"encoding/json"
	"testing"
)

func TestStateIDText(t *testing.T) {
	for _, r := range []Role{RoleGoalkeeper, RoleDefender, RoleMidfielder, RoleForward} {
		for _, s := range StatesOf(r) {
			text, err := s.MarshalText()
			if err != nil {
				t.Fatalf("%v MarshalText: %v", s, err)
			}
			var got StateID
			if err := got.UnmarshalText(text); err != nil || got != s {
				t.Errorf("UnmarshalText(%q) = %v, %v, want %v", text, got, err, s)
			}
		}
	}

	tests := []struct {
		name    string
		text    string
		want    StateID
		wantErr bool
	}{
		{"empty is none", "", StateNone, false},
		{"known", "defender/sliding_tackle", DefenderSlidingTackle, false},
		{"unknown name", "defender/offside_trap", StateNone, true},
		{"unknown role", "coach/standing", StateNone, true},
		{"bare name", "standing", StateNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefenderStanding
			err := got.UnmarshalText([]byte(tt.text))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalText(%q) error = %v, wantErr %v", tt.text, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("UnmarshalText(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestAgentJSONRejectsUnknownState(t *testing.T) {
	var a Agent
	err := json.Unmarshal([]byte(`{"id": 4, "state": "goalkeeper/punching"}`), &a)
	if err == nil {
		t.Fatalf("decoded unknown state as %v", a.State)
	}

	none, err := json.Marshal(Agent{ID: 4, Role: RoleDefender})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Agent
	if err := json.Unmarshal(none, &back); err != nil || back.State != StateNone {
		t.Errorf("round trip of a stateless agent = %v, %v", back.State, err)
	}
}

func TestEventKindText(t *testing.T) {
	for k := EventPass; k <= EventPeriod; k++ {
		var got EventKind
		if err := got.UnmarshalText([]byte(k.String())); err != nil || got != k {
			t.Errorf("UnmarshalText(%q) = %v, %v", k.String(), got, err)
		}
	}

	var k EventKind
	if err := k.UnmarshalText([]byte("handball")); err == nil {
		t.Errorf("UnmarshalText(handball) = %v, want error", k)
	}
}
