package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/notifier"
	"github.com/aleister1102/driftwatch/internal/scheduler"
	"github.com/aleister1102/driftwatch/internal/store"
	"github.com/aleister1102/driftwatch/internal/telemetry"
	"github.com/aleister1102/driftwatch/internal/worker"
)

// Server wires the ops/status HTTP surface.
type Server struct {
	cfg      config.APIConfig
	store    store.WatchStore
	engine   *scheduler.Engine
	pool     worker.Pool
	consumer *notifier.Consumer
}

// New constructs the API server.
func New(cfg config.APIConfig, st store.WatchStore, engine *scheduler.Engine, pool worker.Pool, consumer *notifier.Consumer) *Server {
	return &Server{
		cfg:      cfg,
		store:    st,
		engine:   engine,
		pool:     pool,
		consumer: consumer,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Get("/status", s.handleStatus)
	r.Get("/watches", s.handleListWatches)
	r.Get("/watches/{uuid}", s.handleGetWatch)
	r.Post("/watches/{uuid}/recheck", s.handleRecheck)
	return r
}

type statusResponse struct {
	Queued          []string `json:"queued"`
	Running         []string `json:"running"`
	QueueLen        int      `json:"queue_len"`
	Workers         int      `json:"workers"`
	NotificationLog []string `json:"notification_log"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Queued:   s.engine.Queue().Peek(),
		Running:  s.pool.RunningUUIDs(),
		QueueLen: s.engine.Queue().Len(),
		Workers:  s.pool.WorkerCount(),
	}
	if s.consumer != nil {
		resp.NotificationLog = s.consumer.DebugLines()
	}
	writeJSON(w, http.StatusOK, resp)
}

type watchSummary struct {
	UUID        string    `json:"uuid"`
	URL         string    `json:"url"`
	Title       string    `json:"title,omitempty"`
	Paused      bool      `json:"paused"`
	State       string    `json:"state"`
	LastChecked time.Time `json:"last_checked"`
	LastChanged time.Time `json:"last_changed"`
	LastError   string    `json:"last_error,omitempty"`
}

func (s *Server) handleListWatches(w http.ResponseWriter, _ *http.Request) {
	watches, err := s.store.ListWatches()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]watchSummary, 0, len(watches))
	for _, watch := range watches {
		out = append(out, watchSummary{
			UUID:        watch.UUID,
			URL:         watch.URL,
			Title:       watch.Title,
			Paused:      watch.Paused,
			State:       s.watchState(watch.UUID),
			LastChecked: watch.LastChecked,
			LastChanged: watch.LastChanged,
			LastError:   watch.LastError,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"watches": out})
}

func (s *Server) handleGetWatch(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	watch, err := s.store.GetWatch(uuid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, watch)
}

func (s *Server) handleRecheck(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")
	if _, err := s.store.GetWatch(uuid); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	accepted := s.engine.EnqueueManual(uuid)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"uuid":     uuid,
		"accepted": accepted,
	})
}

func (s *Server) watchState(uuid string) string {
	switch {
	case s.pool.IsRunning(uuid):
		return models.StateChecking
	case s.engine.Queue().Contains(uuid):
		return models.StateQueued
	default:
		return models.StateIdle
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
