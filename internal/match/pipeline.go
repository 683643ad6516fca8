package match

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"

	"matchday/internal/match/neural"
	"matchday/internal/match/steering"
)

const (
	pitchMargin = 5.0 // how far agents may step past the lines

	passLead   = 4.0  // ticks of receiver movement a pass is aimed ahead
	passNoise  = 0.08 // aim error in radians for the weakest passer
	shotNoise  = 0.12
	clearNoise = 0.15
)

// evaluation is one agent's private output for a tick.
type evaluation struct {
	agent    AgentID
	change   StateChange
	decided  bool
	velocity mgl64.Vec3
	err      error
}

func (e *evaluation) stalled() bool { return e.err != nil }

// evaluate runs every agent's handler against ctx. Results are indexed like
// ctx.Agents(), so commit order never depends on goroutine scheduling.
func (m *Match) evaluate(ctx *TickContext) []evaluation {
	agents := ctx.Agents()
	out := make([]evaluation, len(agents))

	if !m.opts.Engine.ParallelAgents {
		for i := range agents {
			out[i] = evaluateAgent(ctx, &agents[i], m.eval, m.agentRand(ctx.Tick, agents[i].ID))
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range agents {
		g.Go(func() error {
			out[i] = evaluateAgent(ctx, &agents[i], m.eval, m.agentRand(ctx.Tick, agents[i].ID))
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// agentRand derives the decision source of one agent for one tick from the
// match seed alone.
func (m *Match) agentRand(tick uint64, id AgentID) *rand.Rand {
	return rand.New(rand.NewPCG(m.opts.Seed, tick<<32|uint64(id)))
}

// evaluateAgent runs fast, slow and velocity for one agent. Query errors and
// panics turn into a stall: no transition, no events, no intended movement.
func evaluateAgent(ctx *TickContext, a *Agent, eval neural.Evaluator, rng *rand.Rand) (ev evaluation) {
	ev.agent = a.ID
	defer func() {
		if r := recover(); r != nil {
			ev = evaluation{agent: a.ID, err: fmt.Errorf("agent %d in %s: panic: %v", a.ID, a.State, r)}
		}
	}()

	h, ok := HandlerFor(a.State)
	if !ok {
		ev.err = fmt.Errorf("agent %d: no handler for state %s", a.ID, a.State)
		return ev
	}

	sc := newStateContext(ctx, a, eval, rng)
	ev.change, ev.decided = h.TryFast(sc)
	if !ev.decided && sc.Err() == nil {
		ev.change, ev.decided = h.ProcessSlow(sc)
	}
	if !ev.decided {
		ev.change = StateChange{}
	}
	ev.velocity = h.Velocity(sc)

	if err := sc.Err(); err != nil {
		return evaluation{agent: a.ID, err: fmt.Errorf("agent %d in %s: %w", a.ID, a.State, err)}
	}
	if !finite(ev.velocity) {
		return evaluation{agent: a.ID, err: fmt.Errorf("agent %d in %s: velocity is not finite", a.ID, a.State)}
	}
	return ev
}

// tickCommit tracks what the current commit pass already changed.
type tickCommit struct {
	changedBy AgentID // agent that changed ball ownership this tick
	moved     map[AgentID]bool
}

// commit folds the evaluations into the match state in ascending agent ID
// order, then advances movement, the ball and stamina. It returns the number
// of stalled agents.
func (m *Match) commit(evals []evaluation) int {
	s := m.state
	tc := tickCommit{}
	stalled := 0

	for i := range evals {
		ev := &evals[i]
		a, ok := s.Agent(ev.agent)
		if !ok {
			continue
		}
		if ev.stalled() {
			m.stall(a, ev.err)
			stalled++
			continue
		}
		if err := transition(a, ev.change.Next); err != nil {
			m.stall(a, err)
			ev.velocity = mgl64.Vec3{}
			stalled++
			continue
		}
		for _, p := range ev.change.Events {
			m.apply(a, p, &tc)
		}
	}

	m.move(evals, &tc)
	m.moveBall()
	m.checkBounds()
	m.decayStamina()
	return stalled
}

func (m *Match) stall(a *Agent, err error) {
	a.InState++
	m.state.Stalls++
	m.obs.Stall()
	if m.verbose {
		log.Printf("⚠️ [%s] tick %d: %v", m.opts.Label, m.state.Tick, err)
	}
}

// transition moves a to next. StateNone or the current state keeps the agent
// where it is and counts the tick.
func transition(a *Agent, next StateID) error {
	if next == StateNone || next == a.State {
		a.InState++
		return nil
	}
	if next.Role() != a.Role {
		return fmt.Errorf("agent %d: %s is not a %s state", a.ID, next, a.Role)
	}
	a.State, a.InState = next, 0
	return nil
}

func (m *Match) apply(a *Agent, p Proposal, tc *tickCommit) {
	if p.Agent != a.ID {
		m.reject(a, p, "proposed on behalf of another agent")
		return
	}
	switch p.Kind {
	case EventGainBall, EventCaughtBall:
		m.claim(a, p, tc)
	case EventFoul:
		m.foulClaim(a, p, tc)
	case EventTackle:
		m.tackle(a, p, tc)
	case EventPass, EventShoot, EventClear:
		m.kick(a, p, tc)
	case EventMovePlayer:
		m.moveOverride(a, p, tc)
	default:
		m.reject(a, p, "not a proposable event")
	}
}

func (m *Match) reject(a *Agent, p Proposal, why string) {
	m.state.Rejected++
	if m.verbose {
		log.Printf("🚫 [%s] tick %d: agent %d %s rejected: %s", m.opts.Label, m.state.Tick, a.ID, p.Kind, why)
	}
}

func (m *Match) conflict(a *Agent, p Proposal, winner AgentID) {
	m.state.Conflicts = append(m.state.Conflicts, Conflict{
		Tick:   m.state.Tick,
		Kind:   p.Kind,
		Agent:  a.ID,
		Winner: winner,
	})
	m.obs.Conflict()
	if m.verbose {
		log.Printf("🤼 [%s] tick %d: agent %d %s lost to agent %d", m.opts.Label, m.state.Tick, a.ID, p.Kind, winner)
	}
}

// claim resolves GainBall and CaughtBall against the live ball: the first
// valid claim of a tick wins.
func (m *Match) claim(a *Agent, p Proposal, tc *tickCommit) {
	b := &m.state.Ball
	if tc.changedBy != NoAgent {
		m.conflict(a, p, tc.changedBy)
		return
	}
	if !b.Loose() {
		m.reject(a, p, "ball is owned")
		return
	}

	reach := m.tactics.ClaimDistance
	if p.Kind == EventCaughtBall {
		if a.Role != RoleGoalkeeper || !m.field.InPenaltyArea(a.Side, b.Position) {
			m.reject(a, p, "catch outside own penalty area")
			return
		}
		reach *= handsReach
	}
	if b.LastTouch == a.ID && m.state.Tick < b.KickTick+kickCooldown {
		m.reject(a, p, "kicker cannot reclaim yet")
		return
	}
	if a.Position.Sub(b.Position).Len() > reach+b.Speed() {
		m.reject(a, p, "ball out of reach")
		return
	}

	var outcome string
	if b.pass.live {
		switch {
		case b.pass.shot && b.pass.side != a.Side && a.Role == RoleGoalkeeper:
			a.Stats.Saves++
			outcome = "save"
		case !b.pass.shot && b.pass.side == a.Side && b.pass.from != a.ID:
			if from, ok := m.state.Agent(b.pass.from); ok {
				from.Stats.PassesCompleted++
			}
			outcome = "pass_completed"
		case b.pass.side != a.Side:
			outcome = "interception"
		}
	}

	point := b.Position
	m.takeBall(a, tc)
	a.Stats.BallGains++
	m.record(Event{Kind: p.Kind, Agent: a.ID, Side: a.Side, Point: point, Outcome: outcome})
}

// takeBall hands the ball to a, stopping it.
func (m *Match) takeBall(a *Agent, tc *tickCommit) {
	b := &m.state.Ball
	b.Owner = a.ID
	b.LastTouch = a.ID
	b.Velocity = mgl64.Vec3{}
	b.pass = pendingPass{}
	tc.changedBy = a.ID
}

func (m *Match) foulClaim(a *Agent, p Proposal, tc *tickCommit) {
	if tc.changedBy != NoAgent {
		m.conflict(a, p, tc.changedBy)
		return
	}
	victim, ok := m.state.Agent(p.Target)
	if !ok || victim.Side == a.Side {
		m.reject(a, p, "foul needs an opponent")
		return
	}
	if m.state.Ball.Owner != victim.ID {
		m.reject(a, p, "victim does not own the ball")
		return
	}
	if a.Position.Sub(victim.Position).Len() > m.tactics.SlidingTackleDistance {
		m.reject(a, p, "victim out of reach")
		return
	}
	m.foul(a, victim, tc)
}

// foul commits a foul by on victim and gives the ball to the victim where
// the foul happened. Play stops for the rest of the tick, so the foul counts
// as the tick's ownership change.
func (m *Match) foul(by, victim *Agent, tc *tickCommit) {
	by.Stats.FoulsCommitted++
	victim.Stats.FoulsSuffered++
	m.record(Event{Kind: EventFoul, Agent: by.ID, Target: victim.ID, Side: by.Side, Point: victim.Position})
	m.takeBall(victim, tc)
	tc.changedBy = by.ID
}

// tackle rolls the seeded source once: below the win chance the tackler takes
// the ball, within the foul band it is a foul, otherwise the owner keeps it.
func (m *Match) tackle(a *Agent, p Proposal, tc *tickCommit) {
	b := &m.state.Ball
	if tc.changedBy != NoAgent {
		m.conflict(a, p, tc.changedBy)
		return
	}
	victim, ok := m.state.Agent(p.Target)
	if !ok || b.Owner != victim.ID || victim.Side == a.Side {
		m.reject(a, p, "target does not own the ball")
		return
	}
	limit := m.tactics.TacklingDistance
	if p.Sliding {
		limit = m.tactics.SlidingTackleDistance
	}
	if a.Position.Sub(victim.Position).Len() > limit {
		m.reject(a, p, "owner out of reach")
		return
	}

	a.Stats.TacklesAttempted++
	skill := a.tackleSkill()
	win := skill * 0.6
	foul := (1-skill)*0.2 + a.Skills.Mental.Aggression/20*0.1
	if p.Sliding {
		foul += 0.1
	}

	ev := Event{Kind: EventTackle, Agent: a.ID, Target: victim.ID, Side: a.Side, Point: victim.Position}
	switch r := m.rng.Float64(); {
	case r < win:
		a.Stats.TacklesWon++
		ev.Outcome = "won"
		m.record(ev)
		m.takeBall(a, tc)
	case r < win+foul:
		ev.Outcome = "foul"
		m.record(ev)
		m.foul(a, victim, tc)
	default:
		ev.Outcome = "lost"
		m.record(ev)
	}
}

// kick releases the ball from its owner as a pass, shot or clearance. An
// owner whose ball changed hands earlier in the tick loses the kick.
func (m *Match) kick(a *Agent, p Proposal, tc *tickCommit) {
	b := &m.state.Ball
	if tc.changedBy != NoAgent && tc.changedBy != a.ID {
		m.conflict(a, p, tc.changedBy)
		return
	}
	if b.Owner != a.ID {
		m.reject(a, p, "not the ball owner")
		return
	}

	ev := Event{Kind: p.Kind, Agent: a.ID, Side: a.Side, Force: p.Force}
	var (
		aim   mgl64.Vec3
		speed float64
		noise float64
	)
	switch p.Kind {
	case EventPass:
		mate, ok := m.state.Agent(p.Target)
		if !ok || mate.Side != a.Side || mate.ID == a.ID {
			m.reject(a, p, "pass needs a teammate")
			return
		}
		aim = mate.Position.Add(mate.Velocity.Mul(passLead))
		speed = kickSpeedFor(aim.Sub(b.Position).Len()) * (0.95 + 0.1*p.Force)
		noise = passNoise * (1 - a.Skills.Technical.Passing/20)
		ev.Target = mate.ID
	case EventShoot:
		aim = p.Point
		speed = maxKickSpeed * (0.6 + 0.4*p.Force)
		noise = shotNoise * (1.5 - ShotPower(aim.Sub(b.Position).Len(), &a.Skills, &m.tactics))
	case EventClear:
		aim = p.Point
		speed = kickSpeedFor(aim.Sub(b.Position).Len()) * (0.8 + 0.2*p.Force)
		noise = clearNoise
	}
	if !finite(aim) {
		m.reject(a, p, "aim is not finite")
		return
	}

	dir := steering.Direction(b.Position, aim)
	if dir.Len() == 0 {
		dir = mgl64.Vec3{m.field.AttackDir(a.Side), 0, 0}
	}
	dir = rotate(dir, m.rng.NormFloat64()*noise)

	b.Owner = NoAgent
	b.Velocity = dir.Mul(clamp(speed, minKickSpeed, maxKickSpeed))
	b.LastTouch = a.ID
	b.KickTick = m.state.Tick
	b.pass = pendingPass{from: a.ID, side: a.Side, shot: p.Kind == EventShoot, live: p.Kind != EventClear}
	tc.changedBy = a.ID

	switch p.Kind {
	case EventPass:
		a.Stats.Passes++
	case EventShoot:
		a.Stats.Shots++
		if m.onTarget(a.Side) {
			a.Stats.ShotsOnTarget++
			ev.Outcome = "on_target"
		} else {
			ev.Outcome = "off_target"
		}
	}
	ev.Point = aim
	m.record(ev)
}

// onTarget reports whether the ball's current line crosses the goal side
// attacks between the posts.
func (m *Match) onTarget(side Side) bool {
	b := &m.state.Ball
	goal := m.field.OpponentGoal(side)
	vx := b.Velocity.X()
	if vx == 0 {
		return false
	}
	t := (goal.X() - b.Position.X()) / vx
	if t < 0 {
		return false
	}
	return m.field.InGoalMouth(b.Position.Y() + b.Velocity.Y()*t)
}

func rotate(v mgl64.Vec3, angle float64) mgl64.Vec3 {
	return mgl64.Rotate2D(angle).Mul2x1(v.Vec2()).Vec3(0)
}

// moveOverride places a straight at the proposed point for this tick.
func (m *Match) moveOverride(a *Agent, p Proposal, tc *tickCommit) {
	if !finite(p.Point) {
		m.reject(a, p, "position is not finite")
		return
	}
	to := m.field.Clamp(p.Point, pitchMargin)
	a.Stats.Distance += to.Sub(a.Position).Len()
	a.Position = to
	a.Velocity = mgl64.Vec3{}
	if tc.moved == nil {
		tc.moved = make(map[AgentID]bool)
	}
	tc.moved[a.ID] = true
	m.record(Event{Kind: EventMovePlayer, Agent: a.ID, Side: a.Side, Point: to})
}

// move integrates every agent's intended velocity under its kinematic
// limits. Stalled agents brake towards a standstill.
func (m *Match) move(evals []evaluation, tc *tickCommit) {
	for i := range evals {
		ev := &evals[i]
		a, ok := m.state.Agent(ev.agent)
		if !ok || tc.moved[a.ID] {
			continue
		}
		p := &a.Skills.Physical
		k := steering.For(p.Pace, p.Acceleration, p.Agility, a.Condition)
		a.Velocity = steering.Limit(a.Velocity, ev.velocity, k)

		next := m.field.Clamp(a.Position.Add(a.Velocity), pitchMargin)
		a.Stats.Distance += next.Sub(a.Position).Len()
		a.Position = next
	}
}

// moveBall keeps an owned ball at its owner's feet, on the pitch, and rolls
// a loose one.
func (m *Match) moveBall() {
	b := &m.state.Ball
	if !b.Loose() {
		if owner, ok := m.state.Agent(b.Owner); ok {
			b.follow(owner)
			b.Position = m.field.Clamp(b.Position, 0)
			owner.Stats.PossessionTicks++
			return
		}
	}
	b.roll()
}

// checkBounds scores a loose ball that crossed a goal line between the posts
// and stops one that left the pitch anywhere else.
func (m *Match) checkBounds() {
	b := &m.state.Ball
	p := b.Position
	if m.field.Contains(p) {
		return
	}
	if (p.X() < 0 || p.X() > m.field.Width) && m.field.InGoalMouth(p.Y()) {
		m.goal(p.X() < 0)
		return
	}

	b.Position = m.field.Clamp(p, 0)
	b.stop()
	ev := Event{Kind: EventOutOfPlay, Agent: b.LastTouch, Point: b.Position}
	if last, ok := m.state.Agent(b.LastTouch); ok {
		ev.Side = last.Side
	}
	m.record(ev)
}

// goal credits the side attacking the net the ball entered, then restarts
// with the conceding side kicking off.
func (m *Match) goal(homeNet bool) {
	s := m.state
	conceding := Away
	if homeNet {
		conceding = Home
	}
	scoring := conceding.Opponent()
	s.Score.add(scoring)

	ev := Event{Kind: EventGoal, Side: scoring, Point: s.Ball.Position, Outcome: "goal"}
	if scorer, ok := s.Agent(s.Ball.LastTouch); ok {
		ev.Agent = scorer.ID
		if scorer.Side == conceding {
			scorer.Stats.OwnGoals++
			ev.Outcome = "own_goal"
		} else {
			scorer.Stats.Goals++
		}
	}
	m.record(ev)
	if m.verbose {
		log.Printf("⚽ [%s] GOAL %s at %s, %s", m.opts.Label, scoring, clockString(s.Elapsed), s.Score)
	}
	m.kickoff(conceding)
}

// decayStamina drains condition by effort. It never increases within a
// half; resting only slows the drain.
func (m *Match) decayStamina() {
	dt := m.opts.Engine.TickInterval.Seconds() * 10
	for i := range m.state.Agents {
		a := &m.state.Agents[i]
		ratio := a.Velocity.Len() / steering.TopSpeed
		decay := (0.0004 + 0.0012*ratio*ratio) * (1.25 - 0.5*a.Skills.Physical.Stamina/20) * dt
		if isResting(a.State) {
			decay *= 0.25
		}
		a.Condition = math.Max(0, a.Condition-decay)
	}
}

func isResting(s StateID) bool {
	return s == DefenderResting || s == MidfielderResting || s == ForwardResting
}
