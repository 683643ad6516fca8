// Package runner simulates submitted matches on a fixed pool of workers and
// publishes their results to the store.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"matchday/internal/config"
	"matchday/internal/match"
	"matchday/internal/metrics"
	"matchday/internal/roster"
	"matchday/internal/store"
)

// ErrQueueFull is returned by Submit when no more matches can be queued.
var ErrQueueFull = errors.New("match queue full")

// ErrNotRunning is returned by Submit before Start or after Stop.
var ErrNotRunning = errors.New("match pool not running")

// Job is one match waiting for a worker.
type Job struct {
	ID          uuid.UUID
	Label       string
	Seed        uint64
	Live        bool // paced to wall-clock time and watchable while it runs
	Agents      []match.Agent
	SubmittedAt time.Time
}

// Request describes a match to simulate. Sheets without players are
// generated from the seed.
type Request struct {
	Label string           `json:"label"`
	Seed  uint64           `json:"seed"`
	Live  bool             `json:"live"`
	Home  roster.TeamSheet `json:"home"`
	Away  roster.TeamSheet `json:"away"`
}

// Lineup fills in generated sheets and builds the agent list.
func (r *Request) Lineup(field config.FieldConfig) ([]match.Agent, error) {
	if err := fillSheet(&r.Home, r.Seed, "Home"); err != nil {
		return nil, err
	}
	if err := fillSheet(&r.Away, r.Seed+1, "Away"); err != nil {
		return nil, err
	}
	return roster.Build(r.Home, r.Away, field)
}

func fillSheet(sheet *roster.TeamSheet, seed uint64, fallback string) error {
	if len(sheet.Players) > 0 {
		return nil
	}
	name := sheet.Name
	if name == "" {
		name = fallback
	}
	gen, err := roster.Generate(seed, name, sheet.Formation)
	if err != nil {
		return err
	}
	*sheet = gen
	return nil
}

// Pool runs matches on a fixed number of workers. Submissions are queued in
// a bounded buffer and rejected when it is full.
type Pool struct {
	jobs    chan Job
	store   *store.Store
	base    match.Options
	pace    time.Duration
	logDir  string
	workers int
	wg      sync.WaitGroup
	running atomic.Bool
	stopMu  sync.RWMutex // held for writing while running flips off
	ctx     context.Context
	cancel  context.CancelFunc
	liveMu  sync.RWMutex
	live    map[uuid.UUID]*match.Match

	// Metrics
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// NewPool creates a pool. base carries the engine, pitch, tactics,
// evaluator and observer every match is played with.
func NewPool(st *store.Store, cfg config.PoolConfig, base match.Options) *Pool {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = config.DefaultPool().QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = config.DefaultPool().Workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:    make(chan Job, cfg.QueueSize),
		store:   st,
		base:    base,
		pace:    cfg.LivePace,
		logDir:  base.Engine.EventLogDir,
		workers: cfg.Workers,
		ctx:     ctx,
		cancel:  cancel,
		live:    make(map[uuid.UUID]*match.Match),
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	if p.running.Swap(true) {
		return // Already running
	}

	log.Printf("🚀 Match pool starting with %d workers, queue size %d", p.workers, cap(p.jobs))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop ends every running match and waits for the workers. Matches still
// queued are finished as stopped without being played.
func (p *Pool) Stop() {
	p.stopMu.Lock()
	wasRunning := p.running.Swap(false)
	p.stopMu.Unlock()
	if !wasRunning {
		return
	}

	p.cancel()
	p.wg.Wait()
	abandoned := p.drain()

	log.Printf("📊 Match pool stopped - enqueued: %d, processed: %d, dropped: %d, abandoned: %d",
		p.enqueued.Load(), p.processed.Load(), p.dropped.Load(), abandoned)
}

// drain finishes every queued job as stopped. Only called once the workers
// have exited.
func (p *Pool) drain() int {
	n := 0
	for {
		select {
		case job := <-p.jobs:
			metrics.MatchFinished(string(store.StatusStopped))
			p.finish(job.ID, store.StatusStopped, &match.Result{Seed: job.Seed, Reason: ErrNotRunning.Error()})
			n++
		default:
			return n
		}
	}
}

// Submit validates a request and queues it. It never blocks.
func (p *Pool) Submit(req Request) (uuid.UUID, error) {
	p.stopMu.RLock()
	defer p.stopMu.RUnlock()
	if !p.running.Load() {
		return uuid.Nil, ErrNotRunning
	}
	agents, err := req.Lineup(p.base.Field)
	if err != nil {
		return uuid.Nil, err
	}

	job := Job{
		ID:          uuid.New(),
		Label:       req.Label,
		Seed:        req.Seed,
		Live:        req.Live,
		Agents:      agents,
		SubmittedAt: time.Now(),
	}
	if job.Label == "" {
		job.Label = fmt.Sprintf("%s v %s", req.Home.Name, req.Away.Name)
	}

	p.store.Add(store.Summary{
		ID:          job.ID,
		Label:       job.Label,
		Home:        req.Home.Name,
		Away:        req.Away.Name,
		Seed:        job.Seed,
		Live:        job.Live,
		Status:      store.StatusQueued,
		SubmittedAt: job.SubmittedAt,
	})

	select {
	case p.jobs <- job:
		p.enqueued.Add(1)
		metrics.MatchQueued()
		return job.ID, nil
	default:
		// Queue full - reject rather than block the caller
		p.dropped.Add(1)
		metrics.MatchRejected()
		if p.dropped.Load()%100 == 1 {
			log.Printf("⚠️ Match queue full, rejected %s (total rejected: %d)", job.Label, p.dropped.Load())
		}
		_ = p.store.Finish(job.ID, store.StatusFailed, &match.Result{Seed: job.Seed, Reason: ErrQueueFull.Error()})
		return uuid.Nil, ErrQueueFull
	}
}

// Snapshot returns the latest snapshot of a running match.
func (p *Pool) Snapshot(id uuid.UUID) (*match.Snapshot, bool) {
	p.liveMu.RLock()
	m, ok := p.live[id]
	p.liveMu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.Snapshot(), true
}

// Live returns the IDs of the matches currently running.
func (p *Pool) Live() []uuid.UUID {
	p.liveMu.RLock()
	defer p.liveMu.RUnlock()
	ids := make([]uuid.UUID, 0, len(p.live))
	for id := range p.live {
		ids = append(ids, id)
	}
	return ids
}

// StopMatch asks a running match to stop after its current tick.
func (p *Pool) StopMatch(id uuid.UUID) bool {
	p.liveMu.RLock()
	m, ok := p.live[id]
	p.liveMu.RUnlock()
	if ok {
		m.Stop()
	}
	return ok
}

// worker simulates matches from the queue
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			// Track wait time
			waitTime := time.Since(job.SubmittedAt)
			p.updateAvgWaitTime(waitTime)

			if waitTime > 5*time.Second {
				log.Printf("⚠️ Match %s waited %.1fs in queue (worker %d)", job.Label, waitTime.Seconds(), id)
			}

			p.run(job)
			p.processed.Add(1)
		}
	}
}

func (p *Pool) run(job Job) {
	metrics.MatchStarted()

	opts := p.base
	opts.Seed = job.Seed
	opts.Label = job.ID.String()[:8]
	opts.KickoffTime = job.SubmittedAt
	if job.Live {
		opts.Pace = p.pace
	}

	var sink *match.FileSink
	if p.logDir != "" {
		var err error
		sink, err = p.openSink(job.ID)
		if err != nil {
			log.Printf("⚠️ Event file for %s unavailable: %v", opts.Label, err)
		}
		opts.Sink = sink
	}

	m, err := match.New(job.Agents, opts)
	if err != nil {
		// Submit validated the lineup, so only option errors land here.
		log.Printf("❌ Match %s rejected by engine: %v", opts.Label, err)
		metrics.MatchFinished(string(store.StatusFailed))
		p.finish(job.ID, store.StatusFailed, &match.Result{Seed: job.Seed, Reason: err.Error()})
		p.closeSink(sink)
		return
	}

	p.liveMu.Lock()
	p.live[job.ID] = m
	p.liveMu.Unlock()
	_ = p.store.SetStatus(job.ID, store.StatusRunning)

	res, err := m.Run(p.ctx)

	p.liveMu.Lock()
	delete(p.live, job.ID)
	p.liveMu.Unlock()
	p.closeSink(sink)

	status := statusFor(err)
	metrics.MatchFinished(string(status))
	p.finish(job.ID, status, res)
}

func statusFor(err error) store.Status {
	switch {
	case err == nil:
		return store.StatusCompleted
	case errors.Is(err, match.ErrStopped), errors.Is(err, context.Canceled):
		return store.StatusStopped
	default:
		return store.StatusFailed
	}
}

func (p *Pool) finish(id uuid.UUID, status store.Status, res *match.Result) {
	if err := p.store.Finish(id, status, res); err != nil {
		log.Printf("⚠️ Result of %s not stored: %v", id, err)
	}
}

func (p *Pool) openSink(id uuid.UUID) (*match.FileSink, error) {
	if err := os.MkdirAll(p.logDir, 0o755); err != nil {
		return nil, err
	}
	return match.OpenFileSink(filepath.Join(p.logDir, id.String()+".ndjson"))
}

func (p *Pool) closeSink(sink *match.FileSink) {
	if sink == nil {
		return
	}
	if err := sink.Close(); err != nil {
		log.Printf("⚠️ Event file close failed: %v", err)
	}
	metrics.SinkDropped(sink.Dropped())
}

// updateAvgWaitTime updates exponential moving average
func (p *Pool) updateAvgWaitTime(waitTime time.Duration) {
	current := p.avgWaitTime.Load()
	// EMA with alpha = 0.1 (smooth over ~10 samples)
	newAvg := (current*9 + waitTime.Nanoseconds()) / 10
	p.avgWaitTime.Store(newAvg)
}

// Stats returns current pool statistics
func (p *Pool) Stats() PoolStats {
	p.liveMu.RLock()
	running := len(p.live)
	p.liveMu.RUnlock()

	return PoolStats{
		Workers:       p.workers,
		Running:       running,
		Enqueued:      p.enqueued.Load(),
		Processed:     p.processed.Load(),
		Dropped:       p.dropped.Load(),
		Pending:       uint64(len(p.jobs)),
		QueueSize:     uint64(cap(p.jobs)),
		AvgWaitTimeMs: float64(p.avgWaitTime.Load()) / 1e6,
		QueueUsagePct: float64(len(p.jobs)) / float64(cap(p.jobs)) * 100,
	}
}

// PoolStats holds pool metrics
type PoolStats struct {
	Workers       int     `json:"workers"`
	Running       int     `json:"running"`
	Enqueued      uint64  `json:"enqueued"`
	Processed     uint64  `json:"processed"`
	Dropped       uint64  `json:"dropped"`
	Pending       uint64  `json:"pending"`
	QueueSize     uint64  `json:"queue_size"`
	AvgWaitTimeMs float64 `json:"avg_wait_time_ms"`
	QueueUsagePct float64 `json:"queue_usage_pct"`
}
