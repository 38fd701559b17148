package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the watch collection in SQLite and snapshot history on
// disk through the parquet snapshot store.
type SQLiteStore struct {
	db        *sql.DB
	snapshots *SnapshotHistory
	logger    zerolog.Logger
}

// NewSQLiteStore opens (creating if needed) the watch database and the
// snapshot history rooted at the configured paths.
func NewSQLiteStore(cfg config.StorageConfig, logger zerolog.Logger) (*SQLiteStore, error) {
	storeLogger := logger.With().Str("component", "SQLiteStore").Logger()

	dbDir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, models.WrapError(err, "creating database directory "+dbDir)
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, models.WrapError(err, "opening watch database "+cfg.DatabasePath)
	}

	snapshots, err := NewSnapshotHistory(cfg, storeLogger)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, snapshots: snapshots, logger: storeLogger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, models.WrapError(err, "initializing watch schema")
	}

	storeLogger.Info().Str("db_path", cfg.DatabasePath).Msg("Watch database initialized and schema verified")
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS watches (
		uuid TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		paused INTEGER NOT NULL DEFAULT 0,
		interval_seconds INTEGER NOT NULL DEFAULT 0,
		jitter_seconds REAL NOT NULL DEFAULT 0,
		method TEXT NOT NULL DEFAULT '',
		headers_json TEXT NOT NULL DEFAULT '{}',
		body TEXT NOT NULL DEFAULT '',
		timeout_seconds INTEGER NOT NULL DEFAULT 0,
		fetch_backend TEXT NOT NULL DEFAULT '',
		proxy_name TEXT NOT NULL DEFAULT '',
		include_filters_json TEXT NOT NULL DEFAULT '[]',
		ignore_text_json TEXT NOT NULL DEFAULT '[]',
		trigger_text_json TEXT NOT NULL DEFAULT '[]',
		block_text_json TEXT NOT NULL DEFAULT '[]',
		notification_urls_json TEXT NOT NULL DEFAULT '[]',
		last_checked INTEGER NOT NULL DEFAULT 0,
		last_changed INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		last_notification_error TEXT NOT NULL DEFAULT '',
		last_status_code INTEGER NOT NULL DEFAULT 0,
		fetch_time_seconds REAL NOT NULL DEFAULT 0,
		previous_checksum TEXT NOT NULL DEFAULT '',
		edited INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_watches_paused ON watches(paused);
	`
	_, err := s.db.Exec(query)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const watchColumns = `uuid, url, title, paused, interval_seconds, jitter_seconds,
	method, headers_json, body, timeout_seconds, fetch_backend, proxy_name,
	include_filters_json, ignore_text_json, trigger_text_json, block_text_json,
	notification_urls_json, last_checked, last_changed, last_error,
	last_notification_error, last_status_code, fetch_time_seconds,
	previous_checksum, edited`

// GetWatch loads one watch by UUID.
func (s *SQLiteStore) GetWatch(uuid string) (*models.Watch, error) {
	row := s.db.QueryRow(`SELECT `+watchColumns+` FROM watches WHERE uuid = ?`, uuid)
	w, err := scanWatch(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrWatchNotFound
	}
	return w, err
}

// ListWatches returns the full watch collection.
func (s *SQLiteStore) ListWatches() ([]*models.Watch, error) {
	rows, err := s.db.Query(`SELECT ` + watchColumns + ` FROM watches ORDER BY uuid`)
	if err != nil {
		return nil, models.WrapError(err, "listing watches")
	}
	defer rows.Close()

	var watches []*models.Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, w)
	}
	return watches, rows.Err()
}

// CreateWatch inserts a new watch record.
func (s *SQLiteStore) CreateWatch(w *models.Watch) error {
	headers, _ := json.Marshal(orEmptyMap(w.Headers))
	includes, _ := json.Marshal(orEmptySlice(w.IncludeFilters))
	ignores, _ := json.Marshal(orEmptySlice(w.IgnoreText))
	triggers, _ := json.Marshal(orEmptySlice(w.TriggerText))
	blocks, _ := json.Marshal(orEmptySlice(w.BlockText))
	notifications, _ := json.Marshal(orEmptySlice(w.NotificationURLs))

	_, err := s.db.Exec(`INSERT INTO watches (`+watchColumns+`) VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.UUID, w.URL, w.Title, boolToInt(w.Paused), w.IntervalSeconds, w.JitterSeconds,
		w.Method, string(headers), w.Body, w.TimeoutSeconds, w.FetchBackend, w.ProxyName,
		string(includes), string(ignores), string(triggers), string(blocks),
		string(notifications), w.LastChecked.Unix(), w.LastChanged.Unix(), w.LastError,
		w.LastNotificationError, w.LastStatusCode, w.FetchTimeSeconds,
		w.PreviousChecksum, boolToInt(w.Edited))
	if err != nil {
		return models.WrapError(err, "inserting watch "+w.UUID)
	}
	s.logger.Debug().Str("uuid", w.UUID).Str("url", w.URL).Msg("Watch created")
	return nil
}

// UpdateWatch applies a merge-patch, touching only the fields the patch
// carries.
func (s *SQLiteStore) UpdateWatch(uuid string, update models.WatchUpdate) error {
	if update.IsZero() {
		return nil
	}

	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if update.LastChecked != nil {
		add("last_checked", update.LastChecked.Unix())
	}
	if update.LastChanged != nil {
		add("last_changed", update.LastChanged.Unix())
	}
	if update.LastError != nil {
		add("last_error", *update.LastError)
	}
	if update.LastNotificationError != nil {
		add("last_notification_error", *update.LastNotificationError)
	}
	if update.LastStatusCode != nil {
		add("last_status_code", *update.LastStatusCode)
	}
	if update.FetchTimeSeconds != nil {
		add("fetch_time_seconds", *update.FetchTimeSeconds)
	}
	if update.PreviousChecksum != nil {
		add("previous_checksum", *update.PreviousChecksum)
	}
	if update.JitterSeconds != nil {
		add("jitter_seconds", *update.JitterSeconds)
	}
	if update.Edited != nil {
		add("edited", boolToInt(*update.Edited))
	}
	if update.Paused != nil {
		add("paused", boolToInt(*update.Paused))
	}

	args = append(args, uuid)
	res, err := s.db.Exec(`UPDATE watches SET `+strings.Join(sets, ", ")+` WHERE uuid = ?`, args...)
	if err != nil {
		return models.WrapError(err, "updating watch "+uuid)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrWatchNotFound
	}
	return nil
}

// DeleteWatch removes a watch record. History snapshots are left on disk.
func (s *SQLiteStore) DeleteWatch(uuid string) error {
	res, err := s.db.Exec(`DELETE FROM watches WHERE uuid = ?`, uuid)
	if err != nil {
		return models.WrapError(err, "deleting watch "+uuid)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrWatchNotFound
	}
	return nil
}

// Snapshot history delegation.

func (s *SQLiteStore) SaveSnapshot(uuid string, content []byte, checksum string, ts time.Time) (models.SnapshotRef, error) {
	return s.snapshots.SaveSnapshot(uuid, content, checksum, ts)
}

func (s *SQLiteStore) SnapshotCount(uuid string) (int, error) {
	return s.snapshots.SnapshotCount(uuid)
}

func (s *SQLiteStore) LastSnapshots(uuid string, n int) ([]models.SnapshotRef, error) {
	return s.snapshots.LastSnapshots(uuid, n)
}

func (s *SQLiteStore) ReadSnapshot(ref models.SnapshotRef) ([]byte, error) {
	return s.snapshots.ReadSnapshot(ref)
}

func (s *SQLiteStore) SaveScreenshot(uuid string, png []byte) error {
	return s.snapshots.SaveScreenshot(uuid, png)
}

func (s *SQLiteStore) SaveStructuredElements(uuid string, data []byte) error {
	return s.snapshots.SaveStructuredElements(uuid, data)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatch(row rowScanner) (*models.Watch, error) {
	var w models.Watch
	var paused, edited int
	var headersJSON, includesJSON, ignoresJSON, triggersJSON, blocksJSON, notificationsJSON string
	var lastChecked, lastChanged int64

	err := row.Scan(&w.UUID, &w.URL, &w.Title, &paused, &w.IntervalSeconds, &w.JitterSeconds,
		&w.Method, &headersJSON, &w.Body, &w.TimeoutSeconds, &w.FetchBackend, &w.ProxyName,
		&includesJSON, &ignoresJSON, &triggersJSON, &blocksJSON, &notificationsJSON,
		&lastChecked, &lastChanged, &w.LastError, &w.LastNotificationError,
		&w.LastStatusCode, &w.FetchTimeSeconds, &w.PreviousChecksum, &edited)
	if err != nil {
		return nil, err
	}

	w.Paused = paused != 0
	w.Edited = edited != 0
	if lastChecked > 0 {
		w.LastChecked = time.Unix(lastChecked, 0)
	}
	if lastChanged > 0 {
		w.LastChanged = time.Unix(lastChanged, 0)
	}
	_ = json.Unmarshal([]byte(headersJSON), &w.Headers)
	_ = json.Unmarshal([]byte(includesJSON), &w.IncludeFilters)
	_ = json.Unmarshal([]byte(ignoresJSON), &w.IgnoreText)
	_ = json.Unmarshal([]byte(triggersJSON), &w.TriggerText)
	_ = json.Unmarshal([]byte(blocksJSON), &w.BlockText)
	_ = json.Unmarshal([]byte(notificationsJSON), &w.NotificationURLs)
	return &w, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
