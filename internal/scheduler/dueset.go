package scheduler

import (
	"math/rand"
	"sort"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/store"

	"github.com/rs/zerolog"
)

// DueEvaluator computes which watches are eligible to run now. Jitter
// assignment is its only side effect; it never enqueues.
type DueEvaluator struct {
	cfg    config.SchedulerConfig
	store  store.WatchStore
	rng    *rand.Rand
	logger zerolog.Logger
}

// NewDueEvaluator creates an evaluator over the given store.
func NewDueEvaluator(cfg config.SchedulerConfig, st store.WatchStore, logger zerolog.Logger) *DueEvaluator {
	return &DueEvaluator{
		cfg:    cfg,
		store:  st,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger.With().Str("component", "DueEvaluator").Logger(),
	}
}

// DueWatches returns the watches eligible at now, longest-overdue first.
//
// A watch is due when its base interval has elapsed, its assigned jitter
// (if any) has also elapsed, and the global minimum recheck floor is
// satisfied. Jitter is drawn once, the first time the base interval
// elapses, and stays on the record until the scheduler clears it at
// enqueue time. Redrawing it every scan would keep shifting the dispatch
// point before dispatch ever happened.
func (e *DueEvaluator) DueWatches(now time.Time, watches []*models.Watch) []*models.Watch {
	defaultInterval := time.Duration(e.cfg.RecheckIntervalSeconds) * time.Second
	floor := time.Duration(e.cfg.MinRecheckSeconds) * time.Second

	var due []*models.Watch
	for _, w := range watches {
		if w.Paused {
			continue
		}

		elapsed := now.Sub(w.LastChecked)
		if elapsed < floor {
			continue
		}

		interval := w.EffectiveInterval(defaultInterval)
		if elapsed < interval {
			continue
		}

		if e.cfg.JitterSeconds > 0 && w.JitterSeconds == 0 {
			w.JitterSeconds = e.drawJitter()
			if err := e.store.UpdateWatch(w.UUID, models.WatchUpdate{
				JitterSeconds: models.Float64Ptr(w.JitterSeconds),
			}); err != nil {
				e.logger.Warn().Err(err).Str("uuid", w.UUID).Msg("Failed to persist jitter")
			}
		}

		jitter := time.Duration(w.JitterSeconds * float64(time.Second))
		if elapsed < interval+jitter {
			continue
		}

		due = append(due, w)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].LastChecked.Before(due[j].LastChecked)
	})
	return due
}

// drawJitter returns a uniform offset in [-J, +J] seconds. Zero draws are
// nudged so an assigned jitter is distinguishable from an unassigned one.
func (e *DueEvaluator) drawJitter() float64 {
	bound := float64(e.cfg.JitterSeconds)
	j := (e.rng.Float64()*2 - 1) * bound
	if j == 0 {
		j = 0.001
	}
	return j
}
