package match

import (
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"matchday/internal/config"
	"matchday/internal/match/spatial"
)

// gridCell is sized for the most common query radii (marking scan, pressing).
const gridCell = 100.0

// TickContext is the read-only snapshot of one tick. It is built once before
// agents are evaluated and discarded after commit. Every query is a pure
// function of the snapshot and may be called from many goroutines at once.
type TickContext struct {
	Tick    uint64
	Elapsed time.Duration
	Period  Period
	Field   Field
	Tactics config.TacticsConfig
	Ball    Ball

	agents []Agent         // copies, ascending ID
	index  map[AgentID]int // ID -> position in agents
	dist   []float64       // lower triangle, see pairIndex
	grid   *spatial.Grid
}

// Neighbor is a query hit: an agent and its distance from the query origin.
type Neighbor struct {
	ID       AgentID
	Distance float64
}

// BuildContext snapshots the state. The state's agents are expected in
// ascending ID order, which MatchState maintains.
func BuildContext(s *MatchState, field Field, tactics config.TacticsConfig) *TickContext {
	n := len(s.Agents)
	ctx := &TickContext{
		Tick:    s.Tick,
		Elapsed: s.Elapsed,
		Period:  s.Period,
		Field:   field,
		Tactics: tactics,
		Ball:    s.Ball,
		agents:  make([]Agent, n),
		index:   make(map[AgentID]int, n),
		dist:    make([]float64, n*(n-1)/2),
		grid:    spatial.NewGrid(field.Width, field.Height, gridCell, n),
	}

	copy(ctx.agents, s.Agents)
	for i := range ctx.agents {
		a := &ctx.agents[i]
		ctx.index[a.ID] = i
		ctx.grid.Insert(uint32(i), a.Position.X(), a.Position.Y())
	}

	// O(n²) pairwise cache; each pair is computed once so the cache is
	// symmetric by construction.
	for j := 1; j < n; j++ {
		pj := ctx.agents[j].Position
		for i := 0; i < j; i++ {
			ctx.dist[pairIndex(i, j)] = ctx.agents[i].Position.Sub(pj).Len()
		}
	}

	return ctx
}

func pairIndex(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return j*(j-1)/2 + i
}

// Agents returns the snapshot's agents in ascending ID order. Callers must
// not modify the returned slice.
func (c *TickContext) Agents() []Agent {
	return c.agents
}

// Agent returns the snapshot of one agent.
func (c *TickContext) Agent(id AgentID) (*Agent, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, NotFoundError{AgentID: id}
	}
	return &c.agents[i], nil
}

// Distance returns the cached distance between two agents.
func (c *TickContext) Distance(a, b AgentID) (float64, error) {
	i, ok := c.index[a]
	if !ok {
		return 0, NotFoundError{AgentID: a}
	}
	j, ok := c.index[b]
	if !ok {
		return 0, NotFoundError{AgentID: b}
	}
	if i == j {
		return 0, nil
	}
	return c.dist[pairIndex(i, j)], nil
}

// BallDistance returns the distance from an agent to the ball.
func (c *TickContext) BallDistance(id AgentID) (float64, error) {
	a, err := c.Agent(id)
	if err != nil {
		return 0, err
	}
	return a.Position.Sub(c.Ball.Position).Len(), nil
}

// NearbyOpponents returns opposing agents within radius, nearest first.
func (c *TickContext) NearbyOpponents(id AgentID, radius float64) ([]Neighbor, error) {
	return c.nearby(id, radius, false)
}

// NearbyTeammates returns teammates within radius, nearest first. The agent
// itself is excluded.
func (c *TickContext) NearbyTeammates(id AgentID, radius float64) ([]Neighbor, error) {
	return c.nearby(id, radius, true)
}

func (c *TickContext) nearby(id AgentID, radius float64, teammates bool) ([]Neighbor, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, NotFoundError{AgentID: id}
	}
	self := &c.agents[i]

	var buf [32]uint32
	candidates := c.grid.QueryRadius(buf[:0], self.Position.X(), self.Position.Y(), radius)

	var out []Neighbor
	for _, ci := range candidates {
		j := int(ci)
		if j == i {
			continue
		}
		other := &c.agents[j]
		if (other.Side == self.Side) != teammates {
			continue
		}
		if d := c.dist[pairIndex(i, j)]; d <= radius {
			out = append(out, Neighbor{ID: other.ID, Distance: d})
		}
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].Distance != out[b].Distance {
			return out[a].Distance < out[b].Distance
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

// IsBallTowardsAgent reports whether a moving ball is heading at the agent:
// the cosine between the ball's velocity and the ball-to-agent direction is
// at least angleThreshold. A still ball is never heading anywhere.
func (c *TickContext) IsBallTowardsAgent(id AgentID, angleThreshold float64) (bool, error) {
	a, err := c.Agent(id)
	if err != nil {
		return false, err
	}
	speed := c.Ball.Velocity.Len()
	if speed < ballStopSpeed {
		return false, nil
	}
	toAgent := a.Position.Sub(c.Ball.Position)
	d := toAgent.Len()
	if d < 1e-9 {
		return true, nil
	}
	cos := c.Ball.Velocity.Dot(toAgent) / (speed * d)
	return cos >= angleThreshold, nil
}

// BallOwner returns the owning agent, if any.
func (c *TickContext) BallOwner() (*Agent, bool) {
	if c.Ball.Loose() {
		return nil, false
	}
	a, err := c.Agent(c.Ball.Owner)
	if err != nil {
		return nil, false
	}
	return a, true
}

// Possession returns the side in possession, if the ball is owned.
func (c *TickContext) Possession() (Side, bool) {
	owner, ok := c.BallOwner()
	if !ok {
		return Home, false
	}
	return owner.Side, true
}

// predictBall returns where a loose ball will be after ticks ticks.
func (c *TickContext) predictBall(ticks int) mgl64.Vec3 {
	p, v := c.Ball.Position, c.Ball.Velocity
	for i := 0; i < ticks && v.Len() >= ballStopSpeed; i++ {
		p = p.Add(v)
		v = v.Mul(ballFriction)
	}
	return p
}
