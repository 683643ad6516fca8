package match

import (
	"github.com/go-gl/mathgl/mgl64"

	"matchday/internal/match/steering"
)

func init() {
	register(map[StateID]Handler{
		MidfielderStanding: stateHandler{
			fast: midfielderStanding,
			slow: slowPath(map[string]StateID{
				"pressing":          MidfielderPressing,
				"attack_supporting": MidfielderAttackSupporting,
				"intercepting":      MidfielderIntercepting,
				"returning":         MidfielderReturning,
			}),
			velocity: func(sc *StateContext) mgl64.Vec3 { return sc.arriveAt(sc.shadowBall(0.25), 0.5) },
		},
		MidfielderDribbling:         stateHandler{fast: midfielderDribbling, velocity: dribblingVelocity},
		MidfielderPressing:          stateHandler{fast: midfielderPressing, velocity: pressingVelocity},
		MidfielderAttackSupporting:  stateHandler{fast: midfielderAttackSupporting, velocity: attackSupportingVelocity},
		MidfielderTackling:          stateHandler{fast: midfielderTackling, velocity: func(sc *StateContext) mgl64.Vec3 { return sc.pursueOwner(1) }},
		MidfielderPassing:           stateHandler{fast: midfielderPassing, velocity: stillVelocity},
		MidfielderIntercepting:      stateHandler{fast: midfielderIntercepting, velocity: func(sc *StateContext) mgl64.Vec3 { return sc.interceptBall(1) }},
		MidfielderReturning:         stateHandler{fast: midfielderReturning, velocity: func(sc *StateContext) mgl64.Vec3 { return sc.arriveAt(sc.Agent.Start, 0.9) }},
		MidfielderRunning:           stateHandler{fast: midfielderRunning, velocity: runningVelocity},
		MidfielderHoldingPossession: stateHandler{fast: midfielderHoldingPossession, velocity: shieldingVelocity},
		MidfielderDistanceShooting:  stateHandler{fast: midfielderDistanceShooting, velocity: stillVelocity},
		MidfielderResting:           stateHandler{fast: midfielderResting, velocity: restingVelocity},
	})
}

// midfielderOnBall decides what to do with the ball at the feet.
func midfielderOnBall(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return StateChange{}, false
	}
	if sc.canLongShot() {
		return To(MidfielderDistanceShooting, sc.ShootAtGoal()), true
	}
	if sc.Crowded() && sc.Releases() {
		if id, ok := sc.BestPassTarget(); ok {
			return To(MidfielderPassing, sc.PassTo(id)), true
		}
		return To(MidfielderHoldingPossession), true
	}
	return To(MidfielderDribbling), true
}

// canLongShot is true for a decent long-range shooter with a clear sight of
// goal inside shooting distance but outside the forwards' zone.
func (sc *StateContext) canLongShot() bool {
	d := sc.BallGoalDistance()
	return d < sc.Tactics.ShootingDistance &&
		d >= sc.Tactics.LongShotDistance &&
		sc.Agent.Skills.Technical.LongShots >= 10 &&
		sc.ClearShot()
}

func midfielderStanding(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(MidfielderResting), true
	}
	if c, ok := midfielderOnBall(sc); ok {
		return c, true
	}
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if sc.OpponentsHaveBall() {
		if d, ok := sc.OwnerDistance(); ok {
			switch {
			case sc.CanTackle(d):
				return To(MidfielderTackling, sc.Challenge(false)), true
			case d <= sc.Tactics.PressingDistance:
				return To(MidfielderPressing), true
			}
		}
	}
	if sc.shouldChaseLooseBall() {
		return To(MidfielderIntercepting), true
	}
	if sc.TeamHasBall() && sc.StartBand() != BandBig {
		return To(MidfielderAttackSupporting), true
	}
	if sc.StartBand() == BandBig {
		return To(MidfielderReturning), true
	}
	return StateChange{}, false
}

func midfielderDribbling(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(MidfielderStanding), true
	}
	if sc.canLongShot() {
		return To(MidfielderDistanceShooting, sc.ShootAtGoal()), true
	}
	crowded := sc.Crowded()
	if (crowded && sc.Releases()) || sc.Agent.InState > sc.Tactics.PossessionTicks {
		if id, ok := sc.BestPassTarget(); ok {
			return To(MidfielderPassing, sc.PassTo(id)), true
		}
		if crowded {
			return To(MidfielderHoldingPossession), true
		}
	}
	return StateChange{}, false
}

// dribblingVelocity carries the ball towards goal, veering away from the
// nearest opponent in front.
func dribblingVelocity(sc *StateContext) mgl64.Vec3 {
	target := sc.OpponentGoal()
	if n, ok := sc.NearestOpponent(sc.Tactics.PressureRadius); ok {
		if opp, err := sc.Tick.Agent(n.ID); err == nil {
			away := sc.Pos().Sub(opp.Position)
			away[0] = 0
			if away.Len() > 1e-9 {
				target = target.Add(away.Mul(sc.Tactics.PressureRadius / away.Len()))
			}
		}
	}
	return sc.seek(target, 0.75)
}

func midfielderPressing(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(MidfielderResting), true
	}
	if c, ok := midfielderOnBall(sc); ok {
		return c, true
	}
	return pressing(sc, MidfielderTackling, MidfielderStanding, MidfielderReturning)
}

func midfielderAttackSupporting(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(MidfielderResting), true
	}
	if c, ok := midfielderOnBall(sc); ok {
		return c, true
	}
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if sc.OpponentsHaveBall() {
		if d, ok := sc.OwnerDistance(); ok && d <= sc.Tactics.PressingDistance {
			return To(MidfielderPressing), true
		}
		return To(MidfielderReturning), true
	}
	if sc.BallLoose() {
		return To(MidfielderStanding), true
	}
	if sc.StartBand() == BandBig && sc.Agent.InState > sc.Tactics.PossessionTicks {
		return To(MidfielderRunning), true
	}
	return StateChange{}, false
}

// attackSupportingVelocity offers a passing option ahead of the ball on the
// agent's own channel.
func attackSupportingVelocity(sc *StateContext) mgl64.Vec3 {
	f := sc.Tick.Field
	x := clamp(sc.BallPos().X()+sc.AttackDir()*80, 0, f.Width)
	return sc.arriveAt(mgl64.Vec3{x, sc.Agent.Start.Y(), 0}, 0.8)
}

func midfielderTackling(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(MidfielderResting), true
	}
	if c, ok := midfielderOnBall(sc); ok {
		return c, true
	}
	return tackling(sc, MidfielderReturning)
}

func midfielderPassing(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(MidfielderAttackSupporting), true
	}
	if id, ok := sc.BestPassTarget(); ok {
		return Stay(sc.PassTo(id)), true
	}
	return To(MidfielderHoldingPossession), true
}

func midfielderIntercepting(sc *StateContext) (StateChange, bool) {
	if c, ok := midfielderOnBall(sc); ok {
		return c, true
	}
	return intercepting(sc, MidfielderStanding)
}

func midfielderReturning(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(MidfielderResting), true
	}
	if c, ok := midfielderOnBall(sc); ok {
		return c, true
	}
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if d, ok := sc.OwnerDistance(); ok && sc.OpponentsHaveBall() && d <= sc.Tactics.PressingDistance {
		return To(MidfielderPressing), true
	}
	if sc.StartBand() == BandSmall {
		return To(MidfielderStanding), true
	}
	return StateChange{}, false
}

func midfielderRunning(sc *StateContext) (StateChange, bool) {
	if c, ok := midfielderOnBall(sc); ok {
		return c, true
	}
	if !sc.TeamHasBall() {
		return To(MidfielderReturning), true
	}
	if sc.Agent.InState > sc.Tactics.PossessionTicks/2 {
		return To(MidfielderAttackSupporting), true
	}
	return StateChange{}, false
}

// runningVelocity makes a run into the space between the ball and goal on
// the agent's channel.
func runningVelocity(sc *StateContext) mgl64.Vec3 {
	goal := sc.OpponentGoal()
	x := goal.X() - sc.AttackDir()*sc.Tactics.ShootingDistance*0.6
	return sc.seek(mgl64.Vec3{x, sc.Agent.Start.Y(), 0}, 0.9)
}

func midfielderHoldingPossession(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(MidfielderStanding), true
	}
	if id, ok := sc.BestPassTarget(); ok {
		return To(MidfielderPassing, sc.PassTo(id)), true
	}
	if !sc.Crowded() {
		return To(MidfielderDribbling), true
	}
	if sc.Agent.InState > sc.Tactics.HoldingTicks/4 {
		return To(MidfielderPassing), true
	}
	return StateChange{}, false
}

// shieldingVelocity backs away from the nearest challenger, keeping the
// body between ball and opponent. Unchallenged, it drifts towards the own
// goal.
func shieldingVelocity(sc *StateContext) mgl64.Vec3 {
	if n, ok := sc.NearestOpponent(sc.Tactics.PressureRadius); ok {
		opp, err := sc.Tick.Agent(n.ID)
		if err != nil {
			sc.fail(err)
			return mgl64.Vec3{}
		}
		return steering.Flee(sc.Pos(), opp.Position, sc.maxSpeed()*0.3)
	}
	return sc.seek(sc.OwnGoal(), 0.2)
}

func midfielderDistanceShooting(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(MidfielderReturning), true
	}
	return Stay(sc.ShootAtGoal()), true
}

func midfielderResting(sc *StateContext) (StateChange, bool) {
	return resting(sc, MidfielderPassing, MidfielderStanding)
}
