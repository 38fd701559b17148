package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/queue"
	"github.com/aleister1102/driftwatch/internal/scheduler"
	"github.com/aleister1102/driftwatch/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWatchStore struct {
	watches map[string]*models.Watch
}

func (s *stubWatchStore) GetWatch(uuid string) (*models.Watch, error) {
	w, ok := s.watches[uuid]
	if !ok {
		return nil, models.ErrWatchNotFound
	}
	return w, nil
}

func (s *stubWatchStore) ListWatches() ([]*models.Watch, error) {
	out := make([]*models.Watch, 0, len(s.watches))
	for _, w := range s.watches {
		out = append(out, w)
	}
	return out, nil
}

func (s *stubWatchStore) CreateWatch(w *models.Watch) error { s.watches[w.UUID] = w; return nil }
func (s *stubWatchStore) UpdateWatch(string, models.WatchUpdate) error { return nil }
func (s *stubWatchStore) DeleteWatch(uuid string) error { delete(s.watches, uuid); return nil }

type stubPool struct {
	running *worker.RunningSet
	count   int
}

func (p *stubPool) Start(n int)            { p.count = n }
func (p *stubPool) AddWorker()             { p.count++ }
func (p *stubPool) RemoveWorker()          { p.count-- }
func (p *stubPool) WorkerCount() int       { return p.count }
func (p *stubPool) RunningUUIDs() []string { return p.running.Snapshot() }
func (p *stubPool) IsRunning(uuid string) bool {
	return p.running.Contains(uuid)
}
func (p *stubPool) Shutdown(bool) {}

func newTestServer(t *testing.T) (*Server, *stubWatchStore, *scheduler.Engine, *stubPool) {
	t.Helper()
	cfg := config.NewDefaultGlobalConfig()
	st := &stubWatchStore{watches: map[string]*models.Watch{
		"w-1": {UUID: "w-1", URL: "http://example.test/a", LastChecked: time.Now()},
		"w-2": {UUID: "w-2", URL: "http://example.test/b", Paused: true},
	}}
	running := worker.NewRunningSet()
	engine := scheduler.NewEngine(cfg, st, queue.NewPriorityQueue(), running, zerolog.Nop())
	pool := &stubPool{running: running, count: 4}
	return New(cfg.API, st, engine, pool, nil), st, engine, pool
}

func TestHealthz(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusReflectsQueueAndRunning(t *testing.T) {
	srv, _, engine, pool := newTestServer(t)
	engine.EnqueueManual("w-1")
	pool.running.Claim("w-2")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Queued   []string `json:"queued"`
		Running  []string `json:"running"`
		QueueLen int      `json:"queue_len"`
		Workers  int      `json:"workers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"w-1"}, resp.Queued)
	assert.Equal(t, []string{"w-2"}, resp.Running)
	assert.Equal(t, 1, resp.QueueLen)
	assert.Equal(t, 4, resp.Workers)
}

func TestListWatchesReportsState(t *testing.T) {
	srv, _, engine, _ := newTestServer(t)
	engine.EnqueueManual("w-1")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/watches", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Watches []struct {
			UUID  string `json:"uuid"`
			State string `json:"state"`
		} `json:"watches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	states := map[string]string{}
	for _, w := range resp.Watches {
		states[w.UUID] = w.State
	}
	assert.Equal(t, models.StateQueued, states["w-1"])
	assert.Equal(t, models.StateIdle, states["w-2"])
}

func TestRecheckEnqueuesAndDedups(t *testing.T) {
	srv, _, engine, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/watches/w-1/recheck", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, engine.Queue().Contains("w-1"))

	// Second recheck while queued is a no-op.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/watches/w-1/recheck", nil))
	var resp struct {
		Accepted bool `json:"accepted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Accepted)
	assert.Equal(t, 1, engine.Queue().Len())
}

func TestRecheckUnknownWatch(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/watches/nope/recheck", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
