package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchday/internal/config"
	"matchday/internal/match"
	"matchday/internal/roster"
	"matchday/internal/store"
)

func namedSheet(name string) roster.TeamSheet {
	return roster.TeamSheet{Name: name}
}

func shortOptions() match.Options {
	opts := match.DefaultOptions()
	opts.Engine.HalfLength = 20 * time.Second
	return opts
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func finished(st *store.Store, id uuid.UUID) func() bool {
	return func() bool {
		sum, err := st.Get(id)
		return err == nil && sum.Status.Finished()
	}
}

func TestPoolRunsSubmittedMatch(t *testing.T) {
	st := store.New(10)
	opts := shortOptions()
	opts.Engine.EventLogDir = t.TempDir()

	p := NewPool(st, config.PoolConfig{Workers: 2, QueueSize: 4}, opts)
	p.Start()
	defer p.Stop()

	id, err := p.Submit(Request{Seed: 99, Home: namedSheet("Lions"), Away: namedSheet("")})
	require.NoError(t, err)
	waitFor(t, "match to finish", finished(st, id))

	sum, err := st.Get(id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, sum.Status)
	assert.Equal(t, "Lions v Away", sum.Label)

	res, err := st.Result(id)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, uint64(99), res.Seed)
	assert.Len(t, res.Agents, 22)

	_, err = os.Stat(filepath.Join(opts.Engine.EventLogDir, id.String()+".ndjson"))
	assert.NoError(t, err)
	waitFor(t, "worker to record the match", func() bool { return p.Stats().Processed == 1 })
}

func TestPoolRejectsWhenFull(t *testing.T) {
	st := store.New(10)
	opts := match.DefaultOptions() // a full-length match keeps the worker busy

	p := NewPool(st, config.PoolConfig{Workers: 1, QueueSize: 1, LivePace: 10 * time.Millisecond}, opts)
	p.Start()

	var accepted []uuid.UUID
	rejected := 0
	for i := 0; i < 3; i++ {
		id, err := p.Submit(Request{Seed: uint64(i), Live: true})
		if err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			rejected++
			continue
		}
		accepted = append(accepted, id)
	}
	assert.GreaterOrEqual(t, rejected, 1)
	require.NotEmpty(t, accepted)

	// The first match is live and watchable while it runs.
	waitFor(t, "live snapshot", func() bool {
		snap, ok := p.Snapshot(accepted[0])
		return ok && snap.Tick > 0
	})

	p.Stop()
	sum, err := st.Get(accepted[0])
	require.NoError(t, err)
	assert.Equal(t, store.StatusStopped, sum.Status)
	assert.NotEmpty(t, sum.Reason)

	_, err = p.Submit(Request{Seed: 5})
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStopFinishesQueuedMatches(t *testing.T) {
	st := store.New(10)
	p := NewPool(st, config.PoolConfig{Workers: 1, QueueSize: 2, LivePace: 10 * time.Millisecond}, match.DefaultOptions())
	p.Start()

	first, err := p.Submit(Request{Seed: 1, Live: true})
	require.NoError(t, err)
	waitFor(t, "first match to start", func() bool {
		_, ok := p.Snapshot(first)
		return ok
	})

	var queued []uuid.UUID
	for i := 2; i <= 3; i++ {
		id, err := p.Submit(Request{Seed: uint64(i)})
		require.NoError(t, err)
		queued = append(queued, id)
	}

	p.Stop()
	for _, id := range append([]uuid.UUID{first}, queued...) {
		sum, err := st.Get(id)
		require.NoError(t, err)
		assert.Equal(t, store.StatusStopped, sum.Status, "match %s", id)
		assert.NotEmpty(t, sum.Reason)
	}
	assert.Zero(t, p.Stats().Pending)
}

func TestStopMatch(t *testing.T) {
	st := store.New(10)
	p := NewPool(st, config.PoolConfig{Workers: 1, QueueSize: 1, LivePace: 5 * time.Millisecond}, match.DefaultOptions())
	p.Start()
	defer p.Stop()

	id, err := p.Submit(Request{Seed: 1, Live: true})
	require.NoError(t, err)
	waitFor(t, "match to start", func() bool {
		_, ok := p.Snapshot(id)
		return ok
	})

	assert.True(t, p.StopMatch(id))
	waitFor(t, "match to stop", finished(st, id))
	sum, _ := st.Get(id)
	assert.Equal(t, store.StatusStopped, sum.Status)
	assert.False(t, p.StopMatch(uuid.New()))
}

func TestSubmitRejectsInvalidSheet(t *testing.T) {
	p := NewPool(store.New(10), config.PoolConfig{}, shortOptions())
	p.Start()
	defer p.Stop()

	bad := namedSheet("Bad")
	bad.Formation = "9-9-9"
	_, err := p.Submit(Request{Home: bad})
	assert.Error(t, err)
}

func TestRunBatchIsReproducible(t *testing.T) {
	reqs := []Request{{Seed: 1}, {Seed: 2}, {Seed: 1}}
	out, err := RunBatch(context.Background(), reqs, shortOptions(), 2)
	require.NoError(t, err)
	require.Len(t, out, 3)

	for i, o := range out {
		require.NoError(t, o.Err)
		assert.Equal(t, reqs[i].Seed, o.Result.Seed)
		assert.True(t, o.Result.Completed)
	}
	assert.Equal(t, out[0].Result.Score, out[2].Result.Score)
	assert.Equal(t, out[0].Result.Events, out[2].Result.Events)
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunBatch(ctx, []Request{{Seed: 1}, {Seed: 2}}, shortOptions(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}
