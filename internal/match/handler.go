package match

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	"matchday/internal/config"
	"matchday/internal/match/neural"
)

// StateChange is what a state handler decides for one tick: an optional
// next state and the events to propose.
type StateChange struct {
	Next   StateID
	Events []Proposal
}

// To transitions to next.
func To(next StateID, events ...Proposal) StateChange {
	return StateChange{Next: next, Events: events}
}

// Stay keeps the current state and proposes events.
func Stay(events ...Proposal) StateChange {
	return StateChange{Events: events}
}

// Handler is the capability set every state provides.
//
// TryFast runs first every tick. When it decides, ProcessSlow is skipped.
// Velocity is the intended movement for this tick regardless of any
// transition. None of them mutates shared state.
type Handler interface {
	TryFast(sc *StateContext) (StateChange, bool)
	ProcessSlow(sc *StateContext) (StateChange, bool)
	Velocity(sc *StateContext) mgl64.Vec3
}

type decideFunc func(sc *StateContext) (StateChange, bool)

// stateHandler builds a Handler from plain functions. A nil fast or slow
// never decides; a nil velocity holds the start position.
type stateHandler struct {
	fast     decideFunc
	slow     decideFunc
	velocity func(sc *StateContext) mgl64.Vec3
}

func (h stateHandler) TryFast(sc *StateContext) (StateChange, bool) {
	if h.fast == nil {
		return StateChange{}, false
	}
	return h.fast(sc)
}

func (h stateHandler) ProcessSlow(sc *StateContext) (StateChange, bool) {
	if h.slow == nil {
		return StateChange{}, false
	}
	return h.slow(sc)
}

func (h stateHandler) Velocity(sc *StateContext) mgl64.Vec3 {
	if h.velocity == nil {
		return sc.arriveAt(sc.Agent.Start, 0.5)
	}
	return h.velocity(sc)
}

// handlers maps every state to its handler; filled by the role files.
var handlers = map[StateID]Handler{}

func register(table map[StateID]Handler) {
	for id, h := range table {
		handlers[id] = h
	}
}

// HandlerFor returns the handler of a state.
func HandlerFor(id StateID) (Handler, bool) {
	h, ok := handlers[id]
	return h, ok
}

// StateContext is what a handler sees of the world: the tick snapshot plus
// the evaluated agent. Query failures are recorded and turn the whole
// evaluation into "no decision".
type StateContext struct {
	Tick    *TickContext
	Agent   *Agent
	Tactics *config.TacticsConfig

	eval neural.Evaluator
	rng  *rand.Rand
	err  error
}

func newStateContext(ctx *TickContext, a *Agent, eval neural.Evaluator, rng *rand.Rand) *StateContext {
	return &StateContext{
		Tick:    ctx,
		Agent:   a,
		Tactics: &ctx.Tactics,
		eval:    eval,
		rng:     rng,
	}
}

// Err returns the first query error of this evaluation.
func (sc *StateContext) Err() error { return sc.err }

func (sc *StateContext) fail(err error) {
	if sc.err == nil {
		sc.err = err
	}
}

// Chance returns true with probability p, from the agent's per-tick source.
func (sc *StateContext) Chance(p float64) bool {
	if sc.rng == nil {
		return p >= 1
	}
	return sc.rng.Float64() < p
}

// slowPath consults the evaluator for the current state and maps the winning
// label to a transition. "stay" and unmapped labels mean no decision.
func slowPath(labels map[string]StateID) decideFunc {
	return func(sc *StateContext) (StateChange, bool) {
		if sc.eval == nil {
			return StateChange{}, false
		}
		key := neural.Key{Role: sc.Agent.Role.String(), State: sc.Agent.State.Name()}
		scores, err := sc.eval.Evaluate(key, sc.Features())
		if err != nil {
			return StateChange{}, false
		}
		label, ok := scores.Best(sc.Tactics.ConfidenceFloor)
		if !ok {
			return StateChange{}, false
		}
		next, ok := labels[label]
		if !ok || next == sc.Agent.State {
			return StateChange{}, false
		}
		return To(next), true
	}
}
