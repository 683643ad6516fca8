package match

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"matchday/internal/config"
	"matchday/internal/match/neural"
	"matchday/internal/match/steering"
)

// Band is a coarse distance-from-start-position bucket.
type Band uint8

const (
	BandSmall Band = iota
	BandMedium
	BandBig
)

// StartBand buckets d with lower bounds inclusive: [0,small), [small,medium),
// [medium,inf).
func StartBand(d float64, t *config.TacticsConfig) Band {
	switch {
	case d < t.StartSmallBand:
		return BandSmall
	case d < t.StartMediumBand:
		return BandMedium
	default:
		return BandBig
	}
}

// PassPower normalizes a pass over distance by a passer of the given skill
// into 0..1.
func PassPower(distance, passing float64, t *config.TacticsConfig) float64 {
	if passing < 1 {
		passing = 1
	}
	raw := distance / passing
	return clamp((raw-t.PassPowerMin)/(t.PassPowerMax-t.PassPowerMin), 0, 1)
}

// ShotPower blends finishing and long shots into 0..1, favouring long shots
// as the distance grows.
func ShotPower(distance float64, s *Skills, t *config.TacticsConfig) float64 {
	w := clamp(distance/t.ShootingDistance, 0, 1)
	skill := (1-w)*s.Technical.Finishing + w*s.Technical.LongShots
	return clamp(0.5+0.5*skill/20, 0, 1)
}

func (sc *StateContext) ID() AgentID         { return sc.Agent.ID }
func (sc *StateContext) Pos() mgl64.Vec3     { return sc.Agent.Position }
func (sc *StateContext) BallPos() mgl64.Vec3 { return sc.Tick.Ball.Position }
func (sc *StateContext) HasBall() bool       { return sc.Tick.Ball.Owner == sc.Agent.ID }
func (sc *StateContext) BallLoose() bool     { return sc.Tick.Ball.Loose() }

// TeamHasBall is true when a teammate (or the agent) owns the ball.
func (sc *StateContext) TeamHasBall() bool {
	side, ok := sc.Tick.Possession()
	return ok && side == sc.Agent.Side
}

// OpponentsHaveBall is true when an opponent owns the ball.
func (sc *StateContext) OpponentsHaveBall() bool {
	side, ok := sc.Tick.Possession()
	return ok && side != sc.Agent.Side
}

func (sc *StateContext) BallDistance() float64 {
	d, err := sc.Tick.BallDistance(sc.Agent.ID)
	if err != nil {
		sc.fail(err)
	}
	return d
}

// OwnerDistance returns the distance to the ball owner.
func (sc *StateContext) OwnerDistance() (float64, bool) {
	if sc.BallLoose() {
		return 0, false
	}
	d, err := sc.Tick.Distance(sc.Agent.ID, sc.Tick.Ball.Owner)
	if err != nil {
		sc.fail(err)
		return 0, false
	}
	return d, true
}

func (sc *StateContext) OwnGoal() mgl64.Vec3      { return sc.Tick.Field.OwnGoal(sc.Agent.Side) }
func (sc *StateContext) OpponentGoal() mgl64.Vec3 { return sc.Tick.Field.OpponentGoal(sc.Agent.Side) }
func (sc *StateContext) AttackDir() float64       { return sc.Tick.Field.AttackDir(sc.Agent.Side) }

// GoalDistance is the agent's distance to the goal it attacks.
func (sc *StateContext) GoalDistance() float64 {
	return sc.OpponentGoal().Sub(sc.Pos()).Len()
}

// BallGoalDistance is the ball's distance to the goal the agent attacks.
func (sc *StateContext) BallGoalDistance() float64 {
	return sc.OpponentGoal().Sub(sc.BallPos()).Len()
}

func (sc *StateContext) OwnGoalDistance() float64 {
	return sc.OwnGoal().Sub(sc.Pos()).Len()
}

func (sc *StateContext) StartDistance() float64 {
	return sc.Agent.Start.Sub(sc.Pos()).Len()
}

func (sc *StateContext) StartBand() Band {
	return StartBand(sc.StartDistance(), sc.Tactics)
}

func (sc *StateContext) Opponents(radius float64) []Neighbor {
	n, err := sc.Tick.NearbyOpponents(sc.Agent.ID, radius)
	if err != nil {
		sc.fail(err)
	}
	return n
}

func (sc *StateContext) Teammates(radius float64) []Neighbor {
	n, err := sc.Tick.NearbyTeammates(sc.Agent.ID, radius)
	if err != nil {
		sc.fail(err)
	}
	return n
}

// NearestOpponent returns the closest opponent within radius.
func (sc *StateContext) NearestOpponent(radius float64) (Neighbor, bool) {
	n := sc.Opponents(radius)
	if len(n) == 0 {
		return Neighbor{}, false
	}
	return n[0], true
}

// BallTowardsMe reports whether the ball travels at the agent.
func (sc *StateContext) BallTowardsMe() bool {
	ok, err := sc.Tick.IsBallTowardsAgent(sc.Agent.ID, sc.Tactics.InterceptAngle)
	if err != nil {
		sc.fail(err)
	}
	return ok
}

// CanClaim reports whether a loose ball is within reach this tick. A fast
// ball is reachable from further away since it covers its speed per tick.
func (sc *StateContext) CanClaim() bool {
	return sc.canClaimWithin(sc.Tactics.ClaimDistance)
}

func (sc *StateContext) canClaimWithin(reach float64) bool {
	b := &sc.Tick.Ball
	if !b.Loose() {
		return false
	}
	if b.LastTouch == sc.Agent.ID && sc.Tick.Tick < b.KickTick+kickCooldown {
		return false
	}
	return sc.BallDistance() <= reach+b.Speed()
}

// NearestToLooseBall reports whether the agent is the teammate closest to a
// loose ball, ties by ID. Goalkeepers only count when the ball is in their
// penalty area.
func (sc *StateContext) NearestToLooseBall() bool {
	if !sc.BallLoose() {
		return false
	}
	ball := sc.BallPos()
	keeperZone := sc.Tick.Field.InPenaltyArea(sc.Agent.Side, ball)

	best, bestDist := NoAgent, math.Inf(1)
	for i := range sc.Tick.agents {
		a := &sc.Tick.agents[i]
		if a.Side != sc.Agent.Side || (a.Role == RoleGoalkeeper && !keeperZone) {
			continue
		}
		if d := a.Position.Sub(ball).Len(); d < bestDist {
			best, bestDist = a.ID, d
		}
	}
	return best == sc.Agent.ID
}

// shouldChaseLooseBall is true for the nearest teammate to a loose ball and
// for anyone the ball is rolling at from within InterceptDistance.
func (sc *StateContext) shouldChaseLooseBall() bool {
	if !sc.BallLoose() {
		return false
	}
	if sc.NearestToLooseBall() {
		return true
	}
	return sc.BallDistance() <= sc.Tactics.InterceptDistance && sc.BallTowardsMe()
}

// ClearShot reports whether no outfield opponent nearer the goal stands on
// the shooter's line: every such opponent's direction to goal has a dot
// product below ClearShotDot with the shooter's. Goalkeepers never block
// the line.
func (sc *StateContext) ClearShot() bool {
	goal := sc.OpponentGoal()
	mine := steering.Direction(sc.Pos(), goal)
	myDist := sc.GoalDistance()

	for i := range sc.Tick.agents {
		o := &sc.Tick.agents[i]
		if o.Side == sc.Agent.Side || o.Role == RoleGoalkeeper {
			continue
		}
		if goal.Sub(o.Position).Len() >= myDist {
			continue
		}
		theirs := steering.Direction(o.Position, goal)
		if theirs.Dot(mine) >= sc.Tactics.ClearShotDot {
			return false
		}
	}
	return true
}

// BestPassTarget picks the free teammate within passing range that is
// nearest to the opponent goal. A teammate is free when no opponent stands
// within ShortPassRange of them. Ties keep the nearer teammate. With nobody
// free, the ball goes into the feet of the most advanced marked teammate at
// least ShortPassRange further forward.
func (sc *StateContext) BestPassTarget() (AgentID, bool) {
	goal := sc.OpponentGoal()
	best, bestGoal := NoAgent, math.Inf(1)
	feet, feetGoal := NoAgent, sc.GoalDistance()-sc.Tactics.ShortPassRange

	for _, mate := range sc.Teammates(sc.Tactics.PassingRange) {
		if mate.Distance < sc.Tactics.DribbleSpace {
			continue
		}
		a, err := sc.Tick.Agent(mate.ID)
		if err != nil {
			sc.fail(err)
			continue
		}
		if a.Role == RoleGoalkeeper && sc.Agent.Role != RoleDefender {
			continue
		}
		d := goal.Sub(a.Position).Len()
		if sc.markedWithin(mate.ID, sc.Tactics.ShortPassRange) {
			if d < feetGoal {
				feet, feetGoal = mate.ID, d
			}
			continue
		}
		if d < bestGoal {
			best, bestGoal = mate.ID, d
		}
	}
	if best == NoAgent {
		best = feet
	}
	return best, best != NoAgent
}

func (sc *StateContext) markedWithin(id AgentID, radius float64) bool {
	n, err := sc.Tick.NearbyOpponents(id, radius)
	if err != nil {
		sc.fail(err)
		return true
	}
	return len(n) > 0
}

// PassTo proposes a pass to id with normalized power.
func (sc *StateContext) PassTo(id AgentID) Proposal {
	d, err := sc.Tick.Distance(sc.Agent.ID, id)
	if err != nil {
		sc.fail(err)
	}
	return Pass(sc.Agent.ID, id, PassPower(d, sc.Agent.Skills.Technical.Passing, sc.Tactics))
}

// ShootAtGoal proposes a shot at the centre of the opponent goal.
func (sc *StateContext) ShootAtGoal() Proposal {
	return Shoot(sc.Agent.ID, sc.OpponentGoal(), ShotPower(sc.GoalDistance(), &sc.Agent.Skills, sc.Tactics))
}

// ClearUpfield proposes a long clearance away from the agent's own goal,
// aimed at the touchline on the agent's side of the pitch.
func (sc *StateContext) ClearUpfield() Proposal {
	f := sc.Tick.Field
	y := f.Height * 0.2
	if sc.Pos().Y() > f.Height/2 {
		y = f.Height * 0.8
	}
	x := clamp(sc.Pos().X()+sc.AttackDir()*f.Width*0.4, 0, f.Width)
	return Clear(sc.Agent.ID, mgl64.Vec3{x, y, 0}, 1)
}

// UnderPressure is true when an opponent is within PressureRadius.
func (sc *StateContext) UnderPressure() bool {
	_, ok := sc.NearestOpponent(sc.Tactics.PressureRadius)
	return ok
}

// Crowded is true when an opponent is within DribbleSpace.
func (sc *StateContext) Crowded() bool {
	_, ok := sc.NearestOpponent(sc.Tactics.DribbleSpace)
	return ok
}

// Releases rolls whether a crowded owner gets the ball away this tick.
// Until it does, the owner keeps dribbling and can be tackled.
func (sc *StateContext) Releases() bool {
	return sc.Chance(0.2 + 0.5*sc.Agent.Skills.Mental.Decisions/20)
}

// InShootingRange is true when the ball is inside ShootingDistance of the
// goal the agent attacks.
func (sc *StateContext) InShootingRange() bool {
	return sc.BallGoalDistance() < sc.Tactics.ShootingDistance
}

// CanTackle is true when the owner is within TacklingDistance and the agent
// has the legs for a challenge.
func (sc *StateContext) CanTackle(ownerDist float64) bool {
	return ownerDist <= sc.Tactics.TacklingDistance && sc.Agent.Condition >= sc.Tactics.TackleStaminaFloor
}

// Challenge is a tackle on the ball owner. A beaten agent pulls the runner
// down instead, more often the more aggressive it is.
func (sc *StateContext) Challenge(sliding bool) Proposal {
	owner := sc.Tick.Ball.Owner
	if sc.Beaten() {
		a := sc.Agent.Skills.Mental.Aggression / 20
		if sc.Chance(a * a) {
			return Foul(sc.ID(), owner)
		}
	}
	return Tackle(sc.ID(), owner, sliding)
}

// Beaten is true when an opponent carries the ball inside shooting distance
// of the agent's goal and is already nearer that goal than the agent.
func (sc *StateContext) Beaten() bool {
	owner, ok := sc.Tick.BallOwner()
	if !ok || owner.Side == sc.Agent.Side {
		return false
	}
	d := sc.OwnGoal().Sub(owner.Position).Len()
	return d < sc.Tactics.ShootingDistance && d < sc.OwnGoalDistance()
}

// Tired is true below the stamina floor.
func (sc *StateContext) Tired() bool {
	return sc.Agent.Condition < sc.Tactics.StaminaFloor
}

// Kinematics returns the agent's movement limits this tick.
func (sc *StateContext) Kinematics() steering.Kinematics {
	p := &sc.Agent.Skills.Physical
	return steering.For(p.Pace, p.Acceleration, p.Agility, sc.Agent.Condition)
}

func (sc *StateContext) maxSpeed() float64 {
	return sc.Kinematics().MaxSpeed
}

// arriveAt slows into target at a fraction of top speed.
func (sc *StateContext) arriveAt(target mgl64.Vec3, fraction float64) mgl64.Vec3 {
	return steering.Arrive(sc.Pos(), target, sc.maxSpeed()*fraction, 20)
}

// seek runs at target at a fraction of top speed.
func (sc *StateContext) seek(target mgl64.Vec3, fraction float64) mgl64.Vec3 {
	return steering.Seek(sc.Pos(), target, sc.maxSpeed()*fraction)
}

// pursueBall chases a moving ball, leading it by its velocity.
func (sc *StateContext) pursueBall(fraction float64) mgl64.Vec3 {
	return steering.Pursue(sc.Pos(), sc.BallPos(), sc.Tick.Ball.Velocity, sc.maxSpeed()*fraction, 15)
}

// pursueOwner chases the ball owner, leading by the owner's velocity.
func (sc *StateContext) pursueOwner(fraction float64) mgl64.Vec3 {
	owner, ok := sc.Tick.BallOwner()
	if !ok {
		return sc.pursueBall(fraction)
	}
	return steering.Pursue(sc.Pos(), owner.Position, owner.Velocity, sc.maxSpeed()*fraction, 10)
}

// maxInterceptLead caps how far ahead interceptBall looks.
const maxInterceptLead = 40

// interceptBall runs at the point a loose ball will have rolled to by the
// time the agent can get there.
func (sc *StateContext) interceptBall(fraction float64) mgl64.Vec3 {
	speed := sc.maxSpeed() * fraction
	if speed <= 0 {
		return mgl64.Vec3{}
	}
	lead := int(math.Min(sc.BallDistance()/speed, maxInterceptLead))
	return sc.seek(sc.Tick.predictBall(lead), fraction)
}

// shadowBall is the start position pulled a little towards the ball.
func (sc *StateContext) shadowBall(pull float64) mgl64.Vec3 {
	start := sc.Agent.Start
	return start.Add(sc.BallPos().Sub(start).Mul(pull))
}

// Features builds the evaluator input for this agent.
func (sc *StateContext) Features() neural.Features {
	f := sc.Tick.Field
	dir := sc.AttackDir()
	rel := sc.BallPos().Sub(sc.Pos())
	vel := sc.Tick.Ball.Velocity

	var possession float64
	switch {
	case sc.TeamHasBall():
		possession = 1
	case sc.OpponentsHaveBall():
		possession = -1
	}

	return neural.Features{
		rel.X() * dir / f.Width,
		rel.Y() / f.Height,
		vel.X() * dir / steering.TopSpeed,
		vel.Y() / steering.TopSpeed,
		sc.OwnGoalDistance() / f.Width,
		possession,
		sc.Agent.Condition / 100,
		rel.Len() / f.Width,
	}
}
