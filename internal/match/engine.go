package match

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oklog/ulid/v2"

	"matchday/internal/config"
	"matchday/internal/match/neural"
)

const (
	MaxAgentsPerSide = 11
	maxStalledTicks  = 100 // consecutive ticks with every agent stalled before giving up

	commitStream = 0x9e3779b97f4a7c15 // PCG stream of the commit source
)

// Observer receives engine telemetry. Implementations are shared by many
// matches and must be safe for concurrent use.
type Observer interface {
	TickDone(d time.Duration)
	Committed(kind EventKind)
	Conflict()
	Stall()
}

type nopObserver struct{}

func (nopObserver) TickDone(time.Duration) {}
func (nopObserver) Committed(EventKind)    {}
func (nopObserver) Conflict()              {}
func (nopObserver) Stall()                 {}

// Options configure one match. Every numeric threshold can be overridden
// per match through Field and Tactics.
type Options struct {
	Seed    uint64
	Engine  config.EngineConfig
	Field   config.FieldConfig
	Tactics config.TacticsConfig

	// Evaluator backs the slow decision path. Nil disables it.
	Evaluator neural.Evaluator

	// KickoffTime anchors event ID timestamps; the zero value means the
	// Unix epoch so IDs depend only on the seed.
	KickoffTime time.Time

	Kickoff  Side          // side kicking off the first half
	Sink     *FileSink     // optional NDJSON copy of the event log
	Observer Observer      // optional telemetry
	Pace     time.Duration // wall-clock delay between ticks in Run (0 = flat out)
	Label    string        // used in log lines
}

// DefaultOptions returns options built from the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Engine:  config.DefaultEngine(),
		Field:   config.DefaultField(),
		Tactics: config.DefaultTactics(),
	}
}

// Match runs one simulated match. Tick and Run must not be called
// concurrently with each other; Snapshot, Result, Stop and Done are safe
// from any goroutine.
type Match struct {
	mu sync.Mutex

	opts    Options
	field   Field
	tactics config.TacticsConfig
	eval    neural.Evaluator
	obs     Observer
	verbose bool

	state       *MatchState
	periodTicks uint64
	rng         *rand.Rand
	entropy     io.Reader
	epoch       time.Time

	snapshot atomic.Pointer[Snapshot]
	sequence uint64
	stopped  atomic.Bool
	stuck    int
	err      error
}

// New validates the roster and sets the match up for the first-half
// kickoff. The agents slice is copied.
func New(agents []Agent, opts Options) (*Match, error) {
	if err := opts.Field.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Tactics.Validate(); err != nil {
		return nil, err
	}
	if opts.Engine.TickInterval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %s", opts.Engine.TickInterval)
	}
	roster, err := validateRoster(agents)
	if err != nil {
		return nil, err
	}

	m := &Match{
		opts:    opts,
		field:   NewField(opts.Field),
		tactics: opts.Tactics,
		eval:    opts.Evaluator,
		obs:     opts.Observer,
		verbose: opts.Engine.Verbose,
		rng:     rand.New(rand.NewPCG(opts.Seed, commitStream)),
		epoch:   opts.KickoffTime,
	}
	if m.obs == nil {
		m.obs = nopObserver{}
	}
	if m.epoch.IsZero() {
		m.epoch = time.Unix(0, 0)
	}

	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:], opts.Seed)
	m.entropy = ulid.Monotonic(rand.NewChaCha8(seed), 0)

	m.periodTicks = opts.Engine.TicksPerHalf() + uint64(max(opts.Engine.StoppageTicks, 0))
	if m.periodTicks == 0 {
		m.periodTicks = 1
	}

	events := NewEventLog()
	if opts.Sink != nil {
		events.Attach(opts.Sink)
	}
	m.state = newMatchState(roster, events)
	m.state.Kickoff = opts.Kickoff

	m.enterPeriod(FirstHalf)
	m.kickoff(opts.Kickoff)
	m.publish()
	return m, nil
}

// validateRoster returns a copy of agents sorted by ID with initial states
// filled in.
func validateRoster(agents []Agent) ([]Agent, error) {
	if len(agents) == 0 {
		return nil, rosterError("no agents")
	}
	out := make([]Agent, len(agents))
	copy(out, agents)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	var perSide, keepers [2]int
	for i := range out {
		a := &out[i]
		switch {
		case a.ID == NoAgent:
			return nil, rosterError("agent %q has no ID", a.Name)
		case i > 0 && out[i-1].ID == a.ID:
			return nil, rosterError("duplicate agent ID %d", a.ID)
		case a.Side != Home && a.Side != Away:
			return nil, rosterError("agent %d has unknown side %d", a.ID, a.Side)
		case InitialState(a.Role) == StateNone:
			return nil, rosterError("agent %d has unknown role", a.ID)
		case !finite(a.Position) || !finite(a.Start):
			return nil, rosterError("agent %d has a non-finite position", a.ID)
		case a.Condition < 0 || a.Condition > 100:
			return nil, rosterError("agent %d condition %.1f outside 0..100", a.ID, a.Condition)
		}

		if perSide[a.Side]++; perSide[a.Side] > MaxAgentsPerSide {
			return nil, rosterError("%s fields more than %d agents", a.Side, MaxAgentsPerSide)
		}
		if a.Role == RoleGoalkeeper {
			if keepers[a.Side]++; keepers[a.Side] > 1 {
				return nil, rosterError("%s fields more than one goalkeeper", a.Side)
			}
		}

		switch {
		case a.State == StateNone:
			a.State = InitialState(a.Role)
		case a.State.Role() != a.Role:
			return nil, rosterError("agent %d is a %s in state %s", a.ID, a.Role, a.State)
		}
		if a.Start == (mgl64.Vec3{}) {
			a.Start = a.Position
		}
	}
	return out, nil
}

// Tick plays one tick: snapshot, evaluate, commit, advance. During the
// half-time break it starts the second half instead.
func (m *Match) Tick() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.err != nil:
		return m.err
	case m.state.Period == FullTime:
		return ErrAlreadyEnded
	case m.stopped.Load():
		return ErrStopped
	case m.state.Period == HalfTime:
		m.startSecondHalf()
		m.publish()
		return nil
	}

	start := time.Now()
	ctx := BuildContext(m.state, m.field, m.tactics)
	evals := m.evaluate(ctx)
	stalled := m.commit(evals)

	if err := m.state.checkInvariants(); err != nil {
		m.abort(err)
		return err
	}

	m.advance()
	m.obs.TickDone(time.Since(start))
	m.publish()

	if stalled == len(evals) {
		m.stuck++
	} else {
		m.stuck = 0
	}
	if m.stuck >= maxStalledTicks {
		err := fmt.Errorf("%w: every agent stalled for %d ticks", ErrNoProgress, m.stuck)
		m.abort(err)
		return err
	}
	return nil
}

// Run ticks until full time, cancellation, Stop or a fatal error. It always
// returns a result; on early termination the result is partial and carries
// the reason. Cancellation is checked between ticks only.
func (m *Match) Run(ctx context.Context) (*Result, error) {
	var pace <-chan time.Time
	if m.opts.Pace > 0 {
		t := time.NewTicker(m.opts.Pace)
		defer t.Stop()
		pace = t.C
	}

	for {
		if err := ctx.Err(); err != nil {
			return m.partial(err), err
		}
		if err := m.Tick(); err != nil {
			if errors.Is(err, ErrAlreadyEnded) {
				return m.Result(), nil
			}
			return m.partial(err), err
		}
		if m.Done() {
			res := m.Result()
			log.Printf("🏁 [%s] Full time: %s (%d events)", m.opts.Label, res.Score, len(res.Events))
			return res, nil
		}
		if pace != nil {
			select {
			case <-ctx.Done():
				return m.partial(ctx.Err()), ctx.Err()
			case <-pace:
			}
		}
	}
}

// Stop asks the match to end before its next tick.
func (m *Match) Stop() {
	if !m.stopped.Swap(true) {
		log.Printf("🛑 [%s] Match stop requested", m.opts.Label)
	}
}

// Done reports whether the match reached full time.
func (m *Match) Done() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Period == FullTime
}

// Events returns the committed event log.
func (m *Match) Events() *EventLog {
	return m.state.Events
}

func (m *Match) abort(err error) {
	m.err = err
	log.Printf("🚨 [%s] Match aborted at tick %d: %v", m.opts.Label, m.state.Tick, err)
}

func (m *Match) partial(err error) *Result {
	res := m.Result()
	res.Completed = false
	res.Reason = err.Error()
	return res
}

// advance moves the clock one tick and closes the period when it is over.
func (m *Match) advance() {
	s := m.state
	s.Tick++
	s.PeriodTick++
	s.Elapsed += m.opts.Engine.TickInterval
	if s.PeriodTick < m.periodTicks {
		return
	}
	switch s.Period {
	case FirstHalf:
		m.enterPeriod(HalfTime)
	case SecondHalf:
		m.enterPeriod(FullTime)
	}
}

func (m *Match) enterPeriod(p Period) {
	s := m.state
	s.Period = p
	s.PeriodTick = 0
	s.Markers = append(s.Markers, PeriodMarker{Period: p, Tick: s.Tick, Clock: s.Elapsed})
	m.record(Event{Kind: EventPeriod, Outcome: p.String()})
	if m.verbose || p == HalfTime {
		log.Printf("⏱️ [%s] %s at %s, %s", m.opts.Label, p, clockString(s.Elapsed), s.Score)
	}
}

// startSecondHalf recovers stamina by natural fitness and kicks off with the
// side that did not start the match.
func (m *Match) startSecondHalf() {
	for i := range m.state.Agents {
		a := &m.state.Agents[i]
		nf := clamp(a.Skills.Physical.NaturalFitness/20, 0, 1)
		a.Condition = clamp(a.Condition+(100-a.Condition)*(0.3+0.4*nf), 0, 100)
	}
	m.enterPeriod(SecondHalf)
	m.kickoff(m.state.Kickoff.Opponent())
}

// kickoff resets every agent to its start position and initial state and
// gives side the ball on the centre spot.
func (m *Match) kickoff(side Side) {
	s := m.state
	for i := range s.Agents {
		a := &s.Agents[i]
		a.Position, a.Velocity = a.Start, mgl64.Vec3{}
		a.State, a.InState = InitialState(a.Role), 0
	}

	centre := m.field.Centre()
	s.Ball = Ball{Position: centre}
	ev := Event{Kind: EventKickoff, Side: side, Point: centre}
	if k := m.kicker(side); k != nil {
		k.Position = centre.Sub(mgl64.Vec3{m.field.AttackDir(side), 0, 0})
		s.Ball.Owner, s.Ball.LastTouch = k.ID, k.ID
		s.Ball.follow(k)
		ev.Agent = k.ID
	}
	m.record(ev)
}

// kicker picks the lowest-ID forward of side, falling back through
// midfielders and defenders to the goalkeeper.
func (m *Match) kicker(side Side) *Agent {
	for _, role := range []Role{RoleForward, RoleMidfielder, RoleDefender, RoleGoalkeeper} {
		for i := range m.state.Agents {
			if a := &m.state.Agents[i]; a.Side == side && a.Role == role {
				return a
			}
		}
	}
	return nil
}

// record stamps e with the current clock and a ULID and commits it.
func (m *Match) record(e Event) {
	s := m.state
	e.Tick, e.Clock, e.Period = s.Tick, s.Elapsed, s.Period
	e.ID = ulid.MustNew(ulid.Timestamp(m.epoch.Add(s.Elapsed)), m.entropy)
	s.Events.append(e)
	m.obs.Committed(e.Kind)
}

func clockString(d time.Duration) string {
	secs := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
