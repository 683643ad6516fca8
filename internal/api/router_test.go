package api_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"matchday/internal/api"
	"matchday/internal/config"
	"matchday/internal/match"
	"matchday/internal/runner"
	"matchday/internal/store"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// MockPool implements api.Pool without running matches
type MockPool struct {
	mu        sync.Mutex
	store     *store.Store
	submitted []runner.Request
	live      map[uuid.UUID]*match.Snapshot
	stopped   []uuid.UUID
	submitErr error
}

func NewMockPool(st *store.Store) *MockPool {
	return &MockPool{store: st, live: make(map[uuid.UUID]*match.Snapshot)}
}

func (m *MockPool) Submit(req runner.Request) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return uuid.Nil, m.submitErr
	}
	if _, err := req.Lineup(config.DefaultField()); err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	m.submitted = append(m.submitted, req)
	m.store.Add(store.Summary{ID: id, Label: req.Label, Status: store.StatusQueued, SubmittedAt: time.Now()})
	return id, nil
}

func (m *MockPool) Snapshot(id uuid.UUID) (*match.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.live[id]
	return s, ok
}

func (m *MockPool) StopMatch(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live[id]; !ok {
		return false
	}
	m.stopped = append(m.stopped, id)
	return true
}

func (m *MockPool) Live() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id := range m.live {
		ids = append(ids, id)
	}
	return ids
}

func (m *MockPool) Stats() runner.PoolStats { return runner.PoolStats{Workers: 3} }

func (m *MockPool) Submitted() []runner.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]runner.Request(nil), m.submitted...)
}

func (m *MockPool) Stopped() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.stopped...)
}

func (m *MockPool) setLive(id uuid.UUID, snap *match.Snapshot) {
	m.mu.Lock()
	m.live[id] = snap
	m.mu.Unlock()
}

func newTestRouter(t *testing.T, apiKey string) (*httptest.Server, *MockPool, *store.Store) {
	t.Helper()
	st := store.New(10)
	pool := NewMockPool(st)

	srv := config.DefaultServer()
	srv.APIKey = apiKey
	srv.RequestsPerSecond, srv.RequestBurst, srv.SubmitCost = 1000, 1000, 1

	router := api.NewRouter(api.RouterConfig{
		Matches:        pool,
		Store:          st,
		Server:         srv,
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts, pool, st
}

func decode(t *testing.T, r io.Reader, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

// ============================================================================
// API Endpoint Tests
// ============================================================================

func TestSubmitAndGetMatch(t *testing.T) {
	ts, pool, _ := newTestRouter(t, "")

	body := `{"label":"derby","seed":42,"home":{"name":"Reds","formation":"4-3-3"}}`
	resp, err := http.Post(ts.URL+"/api/matches", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var created map[string]string
	decode(t, resp.Body, &created)
	if resp.Header.Get("Location") != "/api/matches/"+created["id"] {
		t.Errorf("Location = %q", resp.Header.Get("Location"))
	}
	if sub := pool.Submitted(); len(sub) != 1 || sub[0].Seed != 42 {
		t.Fatalf("submitted = %+v", sub)
	}

	get, err := http.Get(ts.URL + "/api/matches/" + created["id"])
	if err != nil {
		t.Fatal(err)
	}
	defer get.Body.Close()
	var sum store.Summary
	decode(t, get.Body, &sum)
	if sum.Label != "derby" || sum.Status != store.StatusQueued {
		t.Errorf("summary = %+v", sum)
	}

	list, err := http.Get(ts.URL + "/api/matches?status=queued")
	if err != nil {
		t.Fatal(err)
	}
	defer list.Body.Close()
	var all []store.Summary
	decode(t, list.Body, &all)
	if len(all) != 1 {
		t.Errorf("list = %d matches, want 1", len(all))
	}
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		submitErr error
		want      int
	}{
		{"malformed json", `{"seed":`, nil, http.StatusBadRequest},
		{"invalid formation", `{"home":{"formation":"9-9-9"}}`, nil, http.StatusBadRequest},
		{"queue full", `{"seed":1}`, runner.ErrQueueFull, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, pool, _ := newTestRouter(t, "")
			pool.mu.Lock()
			pool.submitErr = tt.submitErr
			pool.mu.Unlock()

			resp, err := http.Post(ts.URL+"/api/matches", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			var body map[string]string
			decode(t, resp.Body, &body)
			if body["error"] == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestAPIKeyProtectsMutations(t *testing.T) {
	ts, _, _ := newTestRouter(t, "s3cret")

	post := func(key string) int {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/matches", strings.NewReader(`{"seed":1}`))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := post(""); got != http.StatusUnauthorized {
		t.Errorf("no key: status %d", got)
	}
	if got := post("wrong"); got != http.StatusUnauthorized {
		t.Errorf("wrong key: status %d", got)
	}
	if got := post("s3cret"); got != http.StatusAccepted {
		t.Errorf("right key: status %d", got)
	}

	// Reads stay open
	resp, err := http.Get(ts.URL + "/api/matches")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("list without key: status %d", resp.StatusCode)
	}
}

func TestMatchDataIsGzipJSON(t *testing.T) {
	ts, _, st := newTestRouter(t, "")
	id := uuid.New()
	st.Add(store.Summary{ID: id, SubmittedAt: time.Now()})

	url := ts.URL + "/api/matches/" + id.String() + "/data"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unfinished match: status %d, want 409", resp.StatusCode)
	}

	res := &match.Result{Seed: 3, Score: match.Score{Home: 2, Away: 1}, Completed: true}
	if err := st.Finish(id, store.StatusCompleted, res); err != nil {
		t.Fatal(err)
	}

	// Ask for gzip explicitly so the client leaves the body compressed.
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q", resp.Header.Get("Content-Encoding"))
	}
	raw, _ := io.ReadAll(resp.Body)
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	var got match.Result
	decode(t, zr, &got)
	if got.Score != res.Score || !got.Completed {
		t.Errorf("result = %+v", got)
	}
}

func TestLiveAndStop(t *testing.T) {
	ts, pool, _ := newTestRouter(t, "")
	id := uuid.New()

	resp, err := http.Get(ts.URL + "/api/matches/" + id.String() + "/live")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("idle match live: status %d", resp.StatusCode)
	}

	pool.setLive(id, &match.Snapshot{Tick: 77, Score: match.Score{Home: 1}})
	resp, err = http.Get(ts.URL + "/api/matches/" + id.String() + "/live")
	if err != nil {
		t.Fatal(err)
	}
	var snap match.Snapshot
	decode(t, resp.Body, &snap)
	resp.Body.Close()
	if snap.Tick != 77 || snap.Score.Home != 1 {
		t.Errorf("snapshot = %+v", snap)
	}

	resp, err = http.Post(ts.URL+"/api/matches/"+id.String()+"/stop", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(pool.Stopped()) != 1 {
		t.Errorf("stop: status %d, stopped %v", resp.StatusCode, pool.Stopped())
	}

	resp, err = http.Get(ts.URL + "/api/matches/not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id: status %d", resp.StatusCode)
	}
}

func TestRateLimiterChargesSubmissions(t *testing.T) {
	st := store.New(10)
	srv := config.DefaultServer()
	srv.RequestsPerSecond, srv.RequestBurst, srv.SubmitCost = 0.001, 6, 5
	limiter := api.NewRateLimiter(srv)

	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Matches:        NewMockPool(st),
		Store:          st,
		Server:         srv,
		Limiter:        limiter,
		DisableLogging: true,
	}))
	defer ts.Close()

	do := func(method, path, client string) int {
		req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(`{}`))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("X-Forwarded-For", client)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	// A submission takes five of six tokens, leaving one read.
	if code := do(http.MethodPost, "/api/matches", "10.0.0.1"); code == http.StatusTooManyRequests {
		t.Fatalf("first submission limited")
	}
	if code := do(http.MethodGet, "/api/health", "10.0.0.1"); code != http.StatusOK {
		t.Errorf("read after submission: status %d, want 200", code)
	}
	if code := do(http.MethodGet, "/api/health", "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("second read: status %d, want 429", code)
	}
	if code := do(http.MethodGet, "/api/health", "10.0.0.2"); code != http.StatusOK {
		t.Errorf("other client: status %d, want 200", code)
	}
	if limiter.Rejected() != 1 {
		t.Errorf("Rejected() = %d, want 1", limiter.Rejected())
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	st := store.New(10)
	srv := config.DefaultServer()
	srv.RequestsPerSecond = 0
	limiter := api.NewRateLimiter(srv)
	if limiter.Enabled() {
		t.Fatal("limiter enabled with a zero rate")
	}

	ts := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Matches:        NewMockPool(st),
		Store:          st,
		Server:         srv,
		Limiter:        limiter,
		DisableLogging: true,
	}))
	defer ts.Close()

	for i := 0; i < 50; i++ {
		resp, err := http.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status %d", i, resp.StatusCode)
		}
	}
}

// ============================================================================
// WebSocket Tests
// ============================================================================

func TestWebSocketFollowsMatch(t *testing.T) {
	st := store.New(10)
	pool := NewMockPool(st)
	id := uuid.New()
	pool.setLive(id, &match.Snapshot{Sequence: 1, Tick: 5, Score: match.Score{Away: 1}})

	hub := api.NewWebSocketHub(config.DefaultServer())
	go hub.Run()
	hub.StartBroadcastLoop(pool)
	defer hub.Stop()

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	follower, _, err := websocket.DefaultDialer.Dial(wsURL+"?match="+id.String(), nil)
	if err != nil {
		t.Fatalf("dial follower: %v", err)
	}
	defer follower.Close()
	watcher, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial watcher: %v", err)
	}
	defer watcher.Close()

	// Wait for both registrations, then publish a fresh snapshot.
	deadline := time.Now().Add(5 * time.Second)
	for hub.ClientCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("clients never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	pool.setLive(id, &match.Snapshot{Sequence: 2, Tick: 6, Score: match.Score{Away: 1}})

	read := func(c *websocket.Conn) map[string]json.RawMessage {
		c.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg map[string]json.RawMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		return msg
	}

	if ev := string(read(follower)["event"]); ev != `"match:snapshot"` {
		t.Errorf("follower event = %s", ev)
	}
	msg := read(watcher)
	if ev := string(msg["event"]); ev != `"match:score"` {
		t.Errorf("watcher event = %s", ev)
	}
	var score api.ScoreUpdate
	if err := json.Unmarshal(msg["data"], &score); err != nil {
		t.Fatal(err)
	}
	if score.ID != id || score.Score.Away != 1 {
		t.Errorf("score update = %+v", score)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	hub := api.NewWebSocketHub(config.DefaultServer())
	go hub.Run()
	defer hub.Stop()

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer ts.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), header)
	if err == nil {
		t.Fatal("dial from a foreign origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v", resp)
	}
}

// TestServersKeepTheirOwnOrigins builds two servers, one allowing an extra
// origin, and checks the origin is honoured by that server only.
func TestServersKeepTheirOwnOrigins(t *testing.T) {
	const origin = "https://club.example"
	st := store.New(10)
	pool := NewMockPool(st)

	open := config.DefaultServer()
	open.CORSOrigins = []string{origin}
	withOrigin := api.NewServer(pool, st, open)
	plain := api.NewServer(pool, st, config.DefaultServer())
	defer withOrigin.Shutdown(context.Background())
	defer plain.Shutdown(context.Background())

	dial := func(s *api.Server) (int, error) {
		ts := httptest.NewServer(s.Router())
		defer ts.Close()
		header := http.Header{"Origin": []string{origin}}
		conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", header)
		if conn != nil {
			conn.Close()
		}
		if resp == nil {
			return 0, err
		}
		return resp.StatusCode, err
	}

	if code, err := dial(withOrigin); err != nil || code != http.StatusSwitchingProtocols {
		t.Errorf("listed origin: status %d, err %v", code, err)
	}
	if code, _ := dial(plain); code != http.StatusForbidden {
		t.Errorf("unlisted origin: status %d, want 403", code)
	}
}

func TestWebSocketLimitsFeedsPerClient(t *testing.T) {
	cfg := config.DefaultServer()
	cfg.FeedsPerClient, cfg.MaxFeeds = 1, 2
	hub := api.NewWebSocketHub(cfg)
	go hub.Run()
	defer hub.Stop()

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("first feed: %v", err)
	}
	defer first.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("second feed from the same client succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second feed response = %v", resp)
	}

	other, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"X-Forwarded-For": []string{"10.0.0.9"}})
	if err != nil {
		t.Fatalf("feed from another client: %v", err)
	}
	other.Close()
}

func TestDebugHandlerRequiresBasicAuth(t *testing.T) {
	h := api.DebugHandler(config.ObservabilityConfig{BasicAuthUser: "ops", BasicAuthPass: "pw"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no auth: status %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("ops", "pw")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "# HELP") {
		t.Errorf("metrics: status %d", rec.Code)
	}
}
