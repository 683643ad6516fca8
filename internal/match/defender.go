package match

import (
	"github.com/go-gl/mathgl/mgl64"

	"matchday/internal/match/steering"
)

func init() {
	register(map[StateID]Handler{
		DefenderStanding: stateHandler{
			fast: defenderStanding,
			slow: slowPath(map[string]StateID{
				"marking":      DefenderMarking,
				"pressing":     DefenderPressing,
				"intercepting": DefenderIntercepting,
				"returning":    DefenderReturning,
			}),
			velocity: func(sc *StateContext) mgl64.Vec3 { return sc.arriveAt(sc.shadowBall(0.15), 0.5) },
		},
		DefenderMarking:       stateHandler{fast: defenderMarking, velocity: defenderMarkingVelocity},
		DefenderTackling:      stateHandler{fast: defenderTackling, velocity: func(sc *StateContext) mgl64.Vec3 { return sc.pursueOwner(1) }},
		DefenderSlidingTackle: stateHandler{fast: defenderSlidingTackle, velocity: slidingVelocity},
		DefenderPressing:      stateHandler{fast: defenderPressing, velocity: pressingVelocity},
		DefenderIntercepting:  stateHandler{fast: defenderIntercepting, velocity: func(sc *StateContext) mgl64.Vec3 { return sc.interceptBall(1) }},
		DefenderReturning:     stateHandler{fast: defenderReturning, velocity: func(sc *StateContext) mgl64.Vec3 { return sc.arriveAt(sc.Agent.Start, 1) }},
		DefenderResting:       stateHandler{fast: defenderResting, velocity: restingVelocity},
		DefenderHoldingLine:   stateHandler{fast: defenderHoldingLine, velocity: holdingLineVelocity},
		DefenderRunning:       stateHandler{fast: defenderRunning, velocity: func(sc *StateContext) mgl64.Vec3 { return sc.seek(sc.OpponentGoal(), 0.7) }},
		DefenderPassing:       stateHandler{fast: defenderPassing, velocity: stillVelocity},
		DefenderClearing:      stateHandler{fast: defenderClearing, velocity: stillVelocity},
	})
}

// defenderOnBall covers the rules shared by every defender state when the
// agent owns the ball.
func defenderOnBall(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return StateChange{}, false
	}
	if sc.UnderPressure() {
		if _, ok := sc.BestPassTarget(); ok {
			return To(DefenderPassing), true
		}
		return To(DefenderClearing), true
	}
	return To(DefenderRunning), true
}

func defenderStanding(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(DefenderResting), true
	}
	if c, ok := defenderOnBall(sc); ok {
		return c, true
	}
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if sc.OpponentsHaveBall() {
		if d, ok := sc.OwnerDistance(); ok {
			switch {
			case sc.CanTackle(d):
				return To(DefenderTackling, sc.Challenge(false)), true
			case d <= sc.Tactics.PressingDistance:
				return To(DefenderPressing), true
			}
		}
		if _, ok := sc.NearestOpponent(sc.Tactics.MarkingScanRadius); ok {
			return To(DefenderMarking), true
		}
	}
	if sc.shouldChaseLooseBall() {
		return To(DefenderIntercepting), true
	}
	if sc.StartBand() == BandBig {
		return To(DefenderReturning), true
	}
	if sc.TeamHasBall() {
		return To(DefenderHoldingLine), true
	}
	return StateChange{}, false
}

func defenderMarking(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(DefenderResting), true
	}
	if c, ok := defenderOnBall(sc); ok {
		return c, true
	}
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if sc.TeamHasBall() {
		return To(DefenderHoldingLine), true
	}
	if d, ok := sc.OwnerDistance(); ok && sc.OpponentsHaveBall() {
		switch {
		case sc.CanTackle(d):
			return To(DefenderTackling, sc.Challenge(false)), true
		case d <= sc.Tactics.SlidingTackleDistance && sc.Agent.Condition >= sc.Tactics.TackleStaminaFloor:
			return To(DefenderSlidingTackle), true
		}
	}
	if _, ok := sc.NearestOpponent(sc.Tactics.MarkingScanRadius); !ok {
		return To(DefenderReturning), true
	}
	return StateChange{}, false
}

// defenderMarkingVelocity goes goal-side of the nearest opponent at marking
// distance.
func defenderMarkingVelocity(sc *StateContext) mgl64.Vec3 {
	n, ok := sc.NearestOpponent(sc.Tactics.MarkingScanRadius)
	if !ok {
		return sc.arriveAt(sc.Agent.Start, 0.6)
	}
	opp, err := sc.Tick.Agent(n.ID)
	if err != nil {
		sc.fail(err)
		return mgl64.Vec3{}
	}
	guard := steering.Direction(opp.Position, sc.OwnGoal()).Mul(sc.Tactics.MarkingDistance)
	return sc.arriveAt(opp.Position.Add(guard), 0.9)
}

// tackleEvery is the number of ticks between repeated tackle attempts.
const tackleEvery = 5

// tackling is shared by defenders and midfielders. The first challenge is
// made on entering the state, repeats follow every tackleEvery ticks.
func tackling(sc *StateContext, returning StateID) (StateChange, bool) {
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if !sc.OpponentsHaveBall() {
		return To(returning), true
	}
	d, ok := sc.OwnerDistance()
	if !ok {
		return StateChange{}, false
	}
	if d > sc.Tactics.TacklingApproach {
		return To(returning), true
	}
	if d <= sc.Tactics.TacklingDistance && (sc.Agent.InState+1)%tackleEvery == 0 {
		return Stay(sc.Challenge(false)), true
	}
	return StateChange{}, false
}

func defenderTackling(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(DefenderResting), true
	}
	if c, ok := defenderOnBall(sc); ok {
		return c, true
	}
	return tackling(sc, DefenderReturning)
}

const (
	slideCommitTicks  = 2 // ticks spent lunging
	slideRecoverTicks = 6 // ticks until back on the feet
)

func defenderSlidingTackle(sc *StateContext) (StateChange, bool) {
	if sc.HasBall() {
		return To(DefenderPassing), true
	}
	if sc.Agent.InState == 0 && sc.OpponentsHaveBall() {
		if d, ok := sc.OwnerDistance(); ok && d <= sc.Tactics.SlidingTackleDistance {
			return Stay(sc.Challenge(true)), true
		}
	}
	if sc.Agent.InState >= slideRecoverTicks {
		return To(DefenderStanding), true
	}
	return StateChange{}, false
}

func slidingVelocity(sc *StateContext) mgl64.Vec3 {
	if sc.Agent.InState < slideCommitTicks {
		return sc.pursueOwner(1)
	}
	return mgl64.Vec3{}
}

// pressing is shared by defenders and midfielders.
func pressing(sc *StateContext, tackle, standing, returning StateID) (StateChange, bool) {
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if !sc.OpponentsHaveBall() {
		return To(standing), true
	}
	d, ok := sc.OwnerDistance()
	if !ok {
		return StateChange{}, false
	}
	switch {
	case sc.CanTackle(d):
		return To(tackle, sc.Challenge(false)), true
	case d > sc.Tactics.PressingDistance*2:
		return To(returning), true
	}
	return StateChange{}, false
}

func defenderPressing(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(DefenderResting), true
	}
	if c, ok := defenderOnBall(sc); ok {
		return c, true
	}
	return pressing(sc, DefenderTackling, DefenderStanding, DefenderReturning)
}

func pressingVelocity(sc *StateContext) mgl64.Vec3 {
	return sc.pursueOwner(0.85)
}

// intercepting is shared by defenders and midfielders.
func intercepting(sc *StateContext, standing StateID) (StateChange, bool) {
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if !sc.BallLoose() {
		return To(standing), true
	}
	if !sc.shouldChaseLooseBall() {
		return To(standing), true
	}
	return StateChange{}, false
}

func defenderIntercepting(sc *StateContext) (StateChange, bool) {
	if c, ok := defenderOnBall(sc); ok {
		return c, true
	}
	return intercepting(sc, DefenderStanding)
}

func defenderReturning(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(DefenderResting), true
	}
	if c, ok := defenderOnBall(sc); ok {
		return c, true
	}
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if d, ok := sc.OwnerDistance(); ok && sc.OpponentsHaveBall() && d <= sc.Tactics.PressingDistance {
		return To(DefenderPressing), true
	}
	if sc.StartBand() == BandSmall {
		return To(DefenderStanding), true
	}
	return StateChange{}, false
}

// resting is shared by every outfield role.
func resting(sc *StateContext, onBall, standing StateID) (StateChange, bool) {
	if sc.HasBall() {
		return To(onBall), true
	}
	if sc.Agent.Condition >= sc.Tactics.RecoveredStamina {
		return To(standing), true
	}
	return StateChange{}, false
}

func defenderResting(sc *StateContext) (StateChange, bool) {
	return resting(sc, DefenderPassing, DefenderStanding)
}

func restingVelocity(sc *StateContext) mgl64.Vec3 {
	return sc.arriveAt(sc.Agent.Start, 0.3)
}

func defenderHoldingLine(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(DefenderResting), true
	}
	if c, ok := defenderOnBall(sc); ok {
		return c, true
	}
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if !sc.TeamHasBall() {
		return To(DefenderStanding), true
	}
	return StateChange{}, false
}

// holdingLineVelocity steps the line up with the ball, never past halfway.
func holdingLineVelocity(sc *StateContext) mgl64.Vec3 {
	f := sc.Tick.Field
	start := sc.Agent.Start
	x := start.X() + (sc.BallPos().X()-start.X())*0.35
	if sc.Agent.Side == Home {
		x = clamp(x, 0, f.Width/2)
	} else {
		x = clamp(x, f.Width/2, f.Width)
	}
	return sc.arriveAt(mgl64.Vec3{x, start.Y(), 0}, 0.6)
}

func defenderRunning(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(DefenderReturning), true
	}
	if sc.UnderPressure() || sc.Agent.InState > sc.Tactics.PossessionTicks/2 {
		if _, ok := sc.BestPassTarget(); ok {
			return To(DefenderPassing), true
		}
		return To(DefenderClearing), true
	}
	return StateChange{}, false
}

func defenderPassing(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(DefenderReturning), true
	}
	if id, ok := sc.BestPassTarget(); ok {
		return Stay(sc.PassTo(id)), true
	}
	return To(DefenderClearing), true
}

func defenderClearing(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(DefenderReturning), true
	}
	return Stay(sc.ClearUpfield()), true
}

func stillVelocity(*StateContext) mgl64.Vec3 {
	return mgl64.Vec3{}
}
