package match

import (
	"github.com/go-gl/mathgl/mgl64"

	"matchday/internal/match/steering"
)

const (
	handsReach     = 3.0   // catching reach, multiple of ClaimDistance
	keeperLeash    = 40.0  // distance from the goal line spot before returning
	comingOutRange = 150.0 // how far a keeper leaves the goal for a loose ball
	diveReach      = 18.0  // max lateral distance covered by a dive
	saveSpeed      = 2.0   // ball speed above which a catch counts as a save
)

var keeperWander = steering.WanderParams{Radius: 6, Distance: 10, Jitter: 1.5, Speed: 0.25}

func init() {
	register(map[StateID]Handler{
		GoalkeeperStanding: stateHandler{
			fast: goalkeeperStanding,
			slow: slowPath(map[string]StateID{
				"walking":           GoalkeeperWalking,
				"coming_out":        GoalkeeperComingOut,
				"returning_to_goal": GoalkeeperReturningToGoal,
			}),
			velocity: keeperWanderVelocity,
		},
		GoalkeeperWalking:         stateHandler{fast: goalkeeperWalking, velocity: keeperWanderVelocity},
		GoalkeeperComingOut:       stateHandler{fast: goalkeeperComingOut, velocity: func(sc *StateContext) mgl64.Vec3 { return sc.pursueBall(1) }},
		GoalkeeperDiving:          stateHandler{fast: goalkeeperDiving, velocity: stillVelocity},
		GoalkeeperCatching:        stateHandler{fast: goalkeeperCatching, velocity: func(sc *StateContext) mgl64.Vec3 { return sc.pursueBall(0.8) }},
		GoalkeeperHolding:         stateHandler{fast: goalkeeperHolding, velocity: stillVelocity},
		GoalkeeperDistributing:    stateHandler{fast: goalkeeperDistributing, velocity: stillVelocity},
		GoalkeeperReturningToGoal: stateHandler{fast: goalkeeperReturningToGoal, velocity: func(sc *StateContext) mgl64.Vec3 { return sc.arriveAt(sc.Agent.Start, 0.8) }},
	})
}

// keeperWanderVelocity keeps an idle keeper shuffling around the line,
// drifting a little towards the ball's side of the goal.
func keeperWanderVelocity(sc *StateContext) mgl64.Vec3 {
	f := sc.Tick.Field
	start := sc.Agent.Start
	y := clamp(start.Y()+(sc.BallPos().Y()-start.Y())*0.2, f.Height/2-f.GoalWidth/2, f.Height/2+f.GoalWidth/2)
	anchor := mgl64.Vec3{start.X(), y, 0}
	if anchor.Sub(sc.Pos()).Len() > keeperWander.Distance+keeperWander.Radius {
		return sc.arriveAt(anchor, 0.5)
	}
	return steering.Wander(sc.Pos(), anchor, keeperWander, float64(sc.Agent.ID), float64(sc.Tick.Tick), sc.maxSpeed())
}

// shotIncoming is true when a loose ball is moving fast at the keeper's goal
// from inside the penalty area.
func (sc *StateContext) shotIncoming() bool {
	b := &sc.Tick.Ball
	if !b.Loose() || b.Speed() < saveSpeed {
		return false
	}
	if !sc.Tick.Field.InPenaltyArea(sc.Agent.Side, b.Position) {
		return false
	}
	toGoal := sc.OwnGoal().Sub(b.Position)
	return toGoal.Dot(b.Velocity) > 0
}

// goalkeeperAlert covers the rules shared by the keeper's idle states.
func goalkeeperAlert(sc *StateContext) (StateChange, bool) {
	if sc.HasBall() {
		return To(GoalkeeperHolding), true
	}
	if sc.canClaimWithin(sc.Tactics.ClaimDistance * handsReach) {
		return To(GoalkeeperCatching, CaughtBall(sc.ID())), true
	}
	if sc.shotIncoming() {
		if lateral := sc.diveOffset(); lateral.Len() > sc.Tactics.ClaimDistance*handsReach {
			return To(GoalkeeperDiving), true
		}
		return To(GoalkeeperCatching), true
	}
	if sc.NearestToLooseBall() && sc.BallDistance() <= comingOutRange {
		return To(GoalkeeperComingOut), true
	}
	if sc.StartDistance() > keeperLeash {
		return To(GoalkeeperReturningToGoal), true
	}
	return StateChange{}, false
}

// diveOffset is the vector from the keeper to where the ball will cross the
// keeper's line.
func (sc *StateContext) diveOffset() mgl64.Vec3 {
	b := &sc.Tick.Ball
	vx := b.Velocity.X()
	if vx == 0 {
		return sc.BallPos().Sub(sc.Pos())
	}
	t := (sc.Pos().X() - b.Position.X()) / vx
	if t < 0 {
		t = 0
	}
	cross := b.Position.Add(b.Velocity.Mul(t))
	return mgl64.Vec3{0, cross.Y() - sc.Pos().Y(), 0}
}

func goalkeeperStanding(sc *StateContext) (StateChange, bool) {
	return goalkeeperAlert(sc)
}

func goalkeeperWalking(sc *StateContext) (StateChange, bool) {
	if c, ok := goalkeeperAlert(sc); ok {
		return c, true
	}
	if sc.Agent.InState > 50 || sc.OpponentsHaveBall() {
		return To(GoalkeeperStanding), true
	}
	return StateChange{}, false
}

func goalkeeperComingOut(sc *StateContext) (StateChange, bool) {
	if sc.HasBall() {
		return To(GoalkeeperHolding), true
	}
	if sc.canClaimWithin(sc.Tactics.ClaimDistance * handsReach) {
		return Stay(CaughtBall(sc.ID())), true
	}
	if !sc.BallLoose() || sc.OwnGoal().Sub(sc.BallPos()).Len() > comingOutRange*1.5 {
		return To(GoalkeeperReturningToGoal), true
	}
	return StateChange{}, false
}

// goalkeeperDiving moves the keeper along the dive line for DiveTicks, claims
// the ball if it comes within reach, then lies down until recovered.
func goalkeeperDiving(sc *StateContext) (StateChange, bool) {
	if sc.HasBall() {
		return To(GoalkeeperHolding), true
	}
	if sc.canClaimWithin(sc.Tactics.ClaimDistance * handsReach) {
		return Stay(CaughtBall(sc.ID())), true
	}
	dive := sc.Tactics.DiveTicks
	if sc.Agent.InState < dive {
		offset := sc.diveOffset()
		reach := diveReach * (0.5 + 0.5*sc.Agent.Skills.Goalkeeping.Reflexes/20)
		step := steering.Truncate(offset, reach/float64(dive))
		return Stay(MovePlayer(sc.ID(), sc.Pos().Add(step))), true
	}
	if sc.Agent.InState >= dive+sc.Tactics.DiveRecoveryTicks {
		return To(GoalkeeperReturningToGoal), true
	}
	return StateChange{}, false
}

func goalkeeperCatching(sc *StateContext) (StateChange, bool) {
	if sc.HasBall() {
		return To(GoalkeeperHolding), true
	}
	if sc.canClaimWithin(sc.Tactics.ClaimDistance * handsReach) {
		return Stay(CaughtBall(sc.ID())), true
	}
	if !sc.BallLoose() || (!sc.shotIncoming() && !sc.NearestToLooseBall()) {
		return To(GoalkeeperStanding), true
	}
	return StateChange{}, false
}

func goalkeeperHolding(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(GoalkeeperReturningToGoal), true
	}
	if sc.Agent.InState >= sc.Tactics.HoldingTicks {
		return To(GoalkeeperDistributing), true
	}
	return StateChange{}, false
}

func goalkeeperDistributing(sc *StateContext) (StateChange, bool) {
	if !sc.HasBall() {
		return To(GoalkeeperReturningToGoal), true
	}
	// Strong kickers sometimes go long even with a short option on.
	if sc.Chance(sc.Agent.Skills.Goalkeeping.Kicking / 40) {
		return Stay(sc.ClearUpfield()), true
	}
	if id, ok := sc.BestPassTarget(); ok {
		return Stay(sc.PassTo(id)), true
	}
	return Stay(sc.ClearUpfield()), true
}

func goalkeeperReturningToGoal(sc *StateContext) (StateChange, bool) {
	if sc.HasBall() {
		return To(GoalkeeperHolding), true
	}
	if sc.canClaimWithin(sc.Tactics.ClaimDistance * handsReach) {
		return To(GoalkeeperCatching, CaughtBall(sc.ID())), true
	}
	if sc.shotIncoming() {
		return To(GoalkeeperCatching), true
	}
	if sc.StartDistance() <= keeperLeash/4 {
		return To(GoalkeeperStanding), true
	}
	return StateChange{}, false
}
