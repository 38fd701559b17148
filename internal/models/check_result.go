package models

import "time"

// SnapshotRef points at one persisted history snapshot. Snapshot content
// itself is opaque to the scheduling core; the notifier resolves refs back
// through the store when it needs to build a diff.
type SnapshotRef struct {
	UUID      string
	Path      string
	Timestamp time.Time
	Checksum  string
}

// CheckResult is the transient value produced by one pipeline run.
type CheckResult struct {
	UUID     string
	Changed  bool
	Update   WatchUpdate // field updates merged into the watch by the finalizer
	Checksum string
	Content  []byte // raw fetched bytes
	Err      *CheckError
}

// NotificationJob is handed to the dispatch queue when a real change was
// detected. It carries references to the two most recent snapshots so the
// consumer can render a diff without touching pipeline state.
type NotificationJob struct {
	UUID           string
	WatchURL       string
	Destinations   []string
	Title          string
	Body           string
	Format         string
	SnapshotBefore SnapshotRef
	SnapshotAfter  SnapshotRef
}

// ProxyDescriptor describes one configured outbound proxy. The "last used"
// table keyed by Name lives inside the scheduler, which is its sole writer.
type ProxyDescriptor struct {
	Name             string `json:"name" yaml:"name"`
	Label            string `json:"label,omitempty" yaml:"label,omitempty"`
	URL              string `json:"url" yaml:"url"`
	ReuseTimeMinimum int    `json:"reuse_time_minimum,omitempty" yaml:"reuse_time_minimum,omitempty"` // seconds
}
