package store

import (
	"time"

	"github.com/aleister1102/driftwatch/internal/models"
)

// WatchStore is the watch-record contract the scheduling core consumes.
// Updates are merge-patches: the core never holds a private copy of a watch
// across ticks and never mutates a record in place.
type WatchStore interface {
	GetWatch(uuid string) (*models.Watch, error)
	ListWatches() ([]*models.Watch, error)
	CreateWatch(w *models.Watch) error
	UpdateWatch(uuid string, update models.WatchUpdate) error
	DeleteWatch(uuid string) error
}

// SnapshotStore persists history snapshots and their side blobs.
type SnapshotStore interface {
	SaveSnapshot(uuid string, content []byte, checksum string, ts time.Time) (models.SnapshotRef, error)
	SnapshotCount(uuid string) (int, error)
	LastSnapshots(uuid string, n int) ([]models.SnapshotRef, error)
	ReadSnapshot(ref models.SnapshotRef) ([]byte, error)
	SaveScreenshot(uuid string, png []byte) error
	SaveStructuredElements(uuid string, data []byte) error
}

// Store is the full persistence surface handed to the engine.
type Store interface {
	WatchStore
	SnapshotStore
	Close() error
}
