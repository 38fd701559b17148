package models

import (
	"time"

	"github.com/google/uuid"
)

// Watch states as reported to status consumers.
const (
	StateIdle     = "idle"
	StateQueued   = "queued"
	StateChecking = "checking"
)

// Watch represents one monitored remote resource with its own schedule,
// filters, and persisted check state. The store owns the canonical record;
// the check pipeline only ever mutates it through WatchUpdate merge-patches.
type Watch struct {
	UUID            string            `json:"uuid"`
	URL             string            `json:"url"`
	Title           string            `json:"title,omitempty"`
	Paused          bool              `json:"paused"`
	IntervalSeconds int               `json:"interval_seconds,omitempty"` // 0 means use the global default
	JitterSeconds   float64           `json:"jitter_seconds,omitempty"`   // signed, assigned by the scheduler
	Method          string            `json:"method,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	Body            string            `json:"body,omitempty"`
	TimeoutSeconds  int               `json:"timeout_seconds,omitempty"`
	FetchBackend    string            `json:"fetch_backend,omitempty"` // registry key; empty falls back to plain HTTP
	ProxyName       string            `json:"proxy_name,omitempty"`
	IncludeFilters  []string          `json:"include_filters,omitempty"`
	IgnoreText      []string          `json:"ignore_text,omitempty"`
	TriggerText     []string          `json:"trigger_text,omitempty"`
	BlockText       []string          `json:"block_text,omitempty"`
	NotificationURLs []string         `json:"notification_urls,omitempty"`

	LastChecked           time.Time `json:"last_checked"`
	LastChanged           time.Time `json:"last_changed"`
	LastError             string    `json:"last_error,omitempty"`
	LastNotificationError string    `json:"last_notification_error,omitempty"`
	LastStatusCode        int       `json:"last_status_code,omitempty"`
	FetchTimeSeconds      float64   `json:"fetch_time_seconds,omitempty"`
	PreviousChecksum      string    `json:"previous_checksum,omitempty"`
	Edited                bool      `json:"edited"` // config changed since last fully processed run
}

// NewWatch creates a watch for the given URL with a fresh UUID.
func NewWatch(url string) *Watch {
	return &Watch{
		UUID: uuid.NewString(),
		URL:  url,
	}
}

// EffectiveInterval resolves the recheck interval for this watch: the
// per-watch override when set, otherwise the global default.
func (w *Watch) EffectiveInterval(globalDefault time.Duration) time.Duration {
	if w.IntervalSeconds > 0 {
		return time.Duration(w.IntervalSeconds) * time.Second
	}
	return globalDefault
}

// EffectiveTimeout resolves the fetch timeout for this watch.
func (w *Watch) EffectiveTimeout(globalDefault time.Duration) time.Duration {
	if w.TimeoutSeconds > 0 {
		return time.Duration(w.TimeoutSeconds) * time.Second
	}
	return globalDefault
}

// WatchUpdate is a merge-patch applied through the store's update contract.
// Nil fields are left untouched so concurrent readers never observe a
// partially rebuilt record.
type WatchUpdate struct {
	LastChecked           *time.Time
	LastChanged           *time.Time
	LastError             *string
	LastNotificationError *string
	LastStatusCode        *int
	FetchTimeSeconds      *float64
	PreviousChecksum      *string
	JitterSeconds         *float64
	Edited                *bool
	Paused                *bool
}

// IsZero reports whether the patch carries no field updates.
func (u *WatchUpdate) IsZero() bool {
	return u.LastChecked == nil && u.LastChanged == nil && u.LastError == nil &&
		u.LastNotificationError == nil && u.LastStatusCode == nil &&
		u.FetchTimeSeconds == nil && u.PreviousChecksum == nil &&
		u.JitterSeconds == nil && u.Edited == nil && u.Paused == nil
}

// ApplyTo merges the patch into the given watch in place.
func (u *WatchUpdate) ApplyTo(w *Watch) {
	if u.LastChecked != nil {
		w.LastChecked = *u.LastChecked
	}
	if u.LastChanged != nil {
		w.LastChanged = *u.LastChanged
	}
	if u.LastError != nil {
		w.LastError = *u.LastError
	}
	if u.LastNotificationError != nil {
		w.LastNotificationError = *u.LastNotificationError
	}
	if u.LastStatusCode != nil {
		w.LastStatusCode = *u.LastStatusCode
	}
	if u.FetchTimeSeconds != nil {
		w.FetchTimeSeconds = *u.FetchTimeSeconds
	}
	if u.PreviousChecksum != nil {
		w.PreviousChecksum = *u.PreviousChecksum
	}
	if u.JitterSeconds != nil {
		w.JitterSeconds = *u.JitterSeconds
	}
	if u.Edited != nil {
		w.Edited = *u.Edited
	}
	if u.Paused != nil {
		w.Paused = *u.Paused
	}
}

// Helpers for building merge-patches without intermediate variables.

func StringPtr(s string) *string       { return &s }
func IntPtr(i int) *int                { return &i }
func Float64Ptr(f float64) *float64    { return &f }
func BoolPtr(b bool) *bool             { return &b }
func TimePtr(t time.Time) *time.Time   { return &t }
