package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchday/internal/config"
	"matchday/internal/match"
	"matchday/internal/roster"
)

func playShortMatch(t *testing.T, seed uint64) *match.Result {
	t.Helper()
	home, err := roster.Generate(seed, "Home", "")
	require.NoError(t, err)
	away, err := roster.Generate(seed+1, "Away", "")
	require.NoError(t, err)
	agents, err := roster.Build(home, away, config.DefaultField())
	require.NoError(t, err)

	opts := match.DefaultOptions()
	opts.Seed = seed
	opts.Engine.HalfLength = 20 * time.Second
	m, err := match.New(agents, opts)
	require.NoError(t, err)
	res, err := m.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestFinishStoresCompressedResult(t *testing.T) {
	s := New(10)
	id := uuid.New()
	s.Add(Summary{ID: id, Label: "friendly", Status: StatusQueued, SubmittedAt: time.Now()})

	_, err := s.Data(id)
	assert.ErrorIs(t, err, ErrNoResult)

	require.NoError(t, s.SetStatus(id, StatusRunning))
	res := playShortMatch(t, 5)
	require.NoError(t, s.Finish(id, StatusCompleted, res))

	sum, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, sum.Status)
	assert.Equal(t, res.Score, sum.Score)
	assert.Equal(t, res.Ticks, sum.Ticks)
	assert.False(t, sum.FinishedAt.IsZero())

	data, err := s.Data(id)
	require.NoError(t, err)
	assert.Equal(t, len(data), sum.Size)

	// The payload is plain gzip JSON.
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.NewDecoder(zr).Decode(&raw))
	assert.Contains(t, raw, "events")

	got, err := s.Result(id)
	require.NoError(t, err)
	assert.Equal(t, res.Score, got.Score)
	assert.Equal(t, res.Events, got.Events)
	assert.Equal(t, res.Agents, got.Agents)
}

func TestUnknownMatch(t *testing.T) {
	s := New(10)
	id := uuid.New()

	_, err := s.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.SetStatus(id, StatusRunning), ErrNotFound)
	assert.ErrorIs(t, s.Finish(id, StatusFailed, &match.Result{}), ErrNotFound)
	_, err = s.Result(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvictsOldestSubmission(t *testing.T) {
	s := New(3)
	base := time.Now()
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		id := uuid.New()
		ids = append(ids, id)
		s.Add(Summary{ID: id, SubmittedAt: base.Add(time.Duration(i) * time.Second)})
	}

	assert.Equal(t, 3, s.Len())
	for _, id := range ids[:2] {
		_, err := s.Get(id)
		assert.ErrorIs(t, err, ErrNotFound)
	}

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, ids[4], list[0].ID, "newest first")
	assert.Equal(t, ids[2], list[2].ID)
}

func TestStatusFinished(t *testing.T) {
	assert.False(t, StatusQueued.Finished())
	assert.False(t, StatusRunning.Finished())
	assert.True(t, StatusCompleted.Finished())
	assert.True(t, StatusStopped.Finished())
	assert.True(t, StatusFailed.Finished())
}
