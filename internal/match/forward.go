package match

import (
	"github.com/go-gl/mathgl/mgl64"
)

func init() {
	register(map[StateID]Handler{
		ForwardStanding: stateHandler{
			fast: forwardStanding,
			slow: slowPath(map[string]StateID{
				"running":   ForwardRunning,
				"take_ball": ForwardTakeBall,
				"returning": ForwardReturning,
			}),
			velocity: func(sc *StateContext) mgl64.Vec3 { return sc.arriveAt(sc.shadowBall(0.2), 0.5) },
		},
		ForwardDribbling:     stateHandler{fast: forwardDribbling, velocity: dribblingVelocity},
		ForwardShooting:      stateHandler{fast: forwardShooting, velocity: stillVelocity},
		ForwardPassing:       stateHandler{fast: forwardPassing, velocity: stillVelocity},
		ForwardHoldingUpPlay: stateHandler{fast: forwardHoldingUpPlay, velocity: shieldingVelocity},
		ForwardRunning:       stateHandler{fast: forwardRunning, velocity: forwardRunningVelocity},
		ForwardTakeBall:      stateHandler{fast: forwardTakeBall, velocity: func(sc *StateContext) mgl64.Vec3 { return sc.pursueBall(1) }},
		ForwardReturning:     stateHandler{fast: forwardReturning, velocity: func(sc *StateContext) mgl64.Vec3 { return sc.arriveAt(sc.Agent.Start, 0.8) }},
		ForwardResting:       stateHandler{fast: forwardResting, velocity: restingVelocity},
	})
}

// canShoot is the forward's shooting rule: the ball is inside shooting
// distance of the opponent goal and the lane is clear.
func (sc *StateContext) canShoot() bool {
	return sc.BallGoalDistance() < sc.Tactics.ShootingDistance && sc.ClearShot()
}

// forwardOnBall decides what to do with the ball at the feet. A shot is
// proposed on the same tick the forward switches to Shooting.
func forwardOnBall(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return StateChange{}, false
	}
	if c, ok := forwardWithBall(sc); ok {
		return c, true
	}
	return To(ForwardDribbling), true
}

// forwardWithBall shoots with a clear lane, or when closed down inside
// shooting range. Otherwise a crowded forward who gets the ball away passes
// or holds it up.
func forwardWithBall(sc *StateContext) (StateChange, bool) {
	crowded := sc.Crowded()
	switch {
	case sc.canShoot(), crowded && sc.InShootingRange():
		return To(ForwardShooting, sc.ShootAtGoal()), true
	case crowded && sc.Releases():
		if id, ok := sc.BestPassTarget(); ok {
			return To(ForwardPassing, sc.PassTo(id)), true
		}
		return To(ForwardHoldingUpPlay), true
	}
	return StateChange{}, false
}

func forwardStanding(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(ForwardResting), true
	}
	if c, ok := forwardOnBall(sc); ok {
		return c, true
	}
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if sc.shouldChaseLooseBall() {
		return To(ForwardTakeBall), true
	}
	if sc.TeamHasBall() {
		return To(ForwardRunning), true
	}
	if sc.OpponentsHaveBall() && sc.StartBand() == BandBig {
		return To(ForwardReturning), true
	}
	return StateChange{}, false
}

func forwardDribbling(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(ForwardStanding), true
	}
	return forwardWithBall(sc)
}

func forwardShooting(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(ForwardRunning), true
	}
	return Stay(sc.ShootAtGoal()), true
}

func forwardPassing(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(ForwardRunning), true
	}
	if id, ok := sc.BestPassTarget(); ok {
		return Stay(sc.PassTo(id)), true
	}
	return To(ForwardDribbling), true
}

func forwardHoldingUpPlay(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(ForwardStanding), true
	}
	if sc.canShoot() || (sc.Crowded() && sc.InShootingRange()) {
		return To(ForwardShooting, sc.ShootAtGoal()), true
	}
	if id, ok := sc.BestPassTarget(); ok {
		return To(ForwardPassing, sc.PassTo(id)), true
	}
	if !sc.Crowded() || sc.Agent.InState > sc.Tactics.HoldingTicks/5 {
		return To(ForwardDribbling), true
	}
	return StateChange{}, false
}

func forwardRunning(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(ForwardResting), true
	}
	if c, ok := forwardOnBall(sc); ok {
		return c, true
	}
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if sc.shouldChaseLooseBall() {
		return To(ForwardTakeBall), true
	}
	if sc.OpponentsHaveBall() {
		if sc.StartBand() == BandBig {
			return To(ForwardReturning), true
		}
		return To(ForwardStanding), true
	}
	return StateChange{}, false
}

// forwardRunningVelocity attacks the space in front of goal on the
// forward's channel, staying level with the ball when it is far behind.
func forwardRunningVelocity(sc *StateContext) mgl64.Vec3 {
	f := sc.Tick.Field
	goal := sc.OpponentGoal()
	x := goal.X() - sc.AttackDir()*sc.Tactics.ShootingDistance*0.5
	if behind := (x - sc.BallPos().X()) * sc.AttackDir(); behind > f.Width*0.4 {
		x = sc.BallPos().X() + sc.AttackDir()*f.Width*0.4
	}
	y := sc.Agent.Start.Y()*0.6 + goal.Y()*0.4
	return sc.arriveAt(mgl64.Vec3{x, y, 0}, 0.9)
}

func forwardTakeBall(sc *StateContext) (StateChange, bool) {
	if c, ok := forwardOnBall(sc); ok {
		return c, true
	}
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if !sc.BallLoose() {
		if sc.TeamHasBall() {
			return To(ForwardRunning), true
		}
		return To(ForwardStanding), true
	}
	if !sc.shouldChaseLooseBall() {
		return To(ForwardReturning), true
	}
	return StateChange{}, false
}

func forwardReturning(sc *StateContext) (StateChange, bool) {
	if sc.Tired() {
		return To(ForwardResting), true
	}
	if c, ok := forwardOnBall(sc); ok {
		return c, true
	}
	if sc.CanClaim() {
		return Stay(GainBall(sc.ID())), true
	}
	if sc.TeamHasBall() {
		return To(ForwardRunning), true
	}
	if sc.StartBand() == BandSmall {
		return To(ForwardStanding), true
	}
	return StateChange{}, false
}

func forwardResting(sc *StateContext) (StateChange, bool) {
	return resting(sc, ForwardPassing, ForwardStanding)
}
