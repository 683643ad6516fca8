// Package store keeps match summaries and their gzip-compressed results in
// memory.
package store

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"matchday/internal/match"
)

// ErrNotFound is returned for unknown match IDs.
var ErrNotFound = errors.New("match not found")

// ErrNoResult is returned for matches that have not finished yet.
var ErrNoResult = errors.New("match has no result yet")

// Status is the lifecycle stage of a submitted match.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// Finished reports whether the match will not change anymore.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusFailed
}

// Summary is the listing view of a match.
type Summary struct {
	ID          uuid.UUID   `json:"id"`
	Label       string      `json:"label"`
	Home        string      `json:"home"`
	Away        string      `json:"away"`
	Seed        uint64      `json:"seed"`
	Live        bool        `json:"live"`
	Status      Status      `json:"status"`
	Score       match.Score `json:"score"`
	Ticks       uint64      `json:"ticks"`
	Reason      string      `json:"reason,omitempty"`
	SubmittedAt time.Time   `json:"submittedAt"`
	FinishedAt  time.Time   `json:"finishedAt,omitempty"`
	Size        int         `json:"size,omitempty"` // compressed result bytes
}

type entry struct {
	summary Summary
	data    []byte // gzip JSON of match.Result
}

// Store holds up to maxResults matches, evicting the oldest submission
// first. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	entries    map[uuid.UUID]*entry
	order      []uuid.UUID // submission order (oldest first)
	maxResults int
}

// DefaultMaxResults bounds a store created with a non-positive size.
const DefaultMaxResults = 500

// New creates an empty store.
func New(maxResults int) *Store {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Store{
		entries:    make(map[uuid.UUID]*entry),
		order:      make([]uuid.UUID, 0, maxResults),
		maxResults: maxResults,
	}
}

// Add registers a new submission.
func (s *Store) Add(sum Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[sum.ID]; exists {
		s.entries[sum.ID].summary = sum
		return
	}
	if len(s.entries) >= s.maxResults {
		s.evict()
	}
	s.entries[sum.ID] = &entry{summary: sum}
	s.order = append(s.order, sum.ID)
}

// evict removes the oldest entry. Caller holds the lock.
func (s *Store) evict() {
	if len(s.order) == 0 {
		return
	}
	oldest := s.order[0]
	s.order = s.order[1:]
	delete(s.entries, oldest)
}

// SetStatus moves a match to status.
func (s *Store) SetStatus(id uuid.UUID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.summary.Status = status
	return nil
}

// Finish compresses res, attaches it to the match and marks the match
// finished with status.
func (s *Store) Finish(id uuid.UUID, status Status, res *match.Result) error {
	data, err := encode(res)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.data = data
	e.summary.Status = status
	e.summary.Score = res.Score
	e.summary.Ticks = res.Ticks
	e.summary.Reason = res.Reason
	e.summary.FinishedAt = time.Now()
	e.summary.Size = len(data)
	return nil
}

// Get returns a match summary.
func (s *Store) Get(id uuid.UUID) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Summary{}, ErrNotFound
	}
	return e.summary, nil
}

// List returns every summary, newest submission first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	out := make([]Summary, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.summary)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Data returns the gzip-compressed JSON result.
func (s *Store) Data(id uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.data == nil {
		return nil, ErrNoResult
	}
	return e.data, nil
}

// Result decodes the stored result.
func (s *Store) Result(id uuid.UUID) (*match.Result, error) {
	data, err := s.Data(id)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Len returns the number of stored matches.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func encode(res *match.Result) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(res); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress result: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*match.Result, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress result: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress result: %w", err)
	}
	var res match.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}
