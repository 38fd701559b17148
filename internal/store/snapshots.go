package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

const (
	snapshotExtension      = ".parquet"
	screenshotFilename     = "last-screenshot.png"
	structuredElementsFile = "last-elements.json"
)

// SnapshotRecord is the Parquet schema for one history snapshot.
type SnapshotRecord struct {
	UUID      string `parquet:"uuid"`
	Timestamp int64  `parquet:"timestamp"` // UnixMilli
	Checksum  string `parquet:"checksum"`
	Content   []byte `parquet:"content"`
}

// SnapshotHistory persists filtered snapshot text as one Parquet file per
// snapshot under <base>/<uuid>/<unixmilli>.parquet. Screenshots and
// structured-element blobs are stored alongside, latest-only.
type SnapshotHistory struct {
	basePath    string
	compression parquet.WriterOption
	logger      zerolog.Logger
}

// NewSnapshotHistory creates the history store rooted at the configured
// base path.
func NewSnapshotHistory(cfg config.StorageConfig, logger zerolog.Logger) (*SnapshotHistory, error) {
	if cfg.SnapshotBasePath == "" {
		return nil, models.NewValidationError("snapshot_base_path", cfg.SnapshotBasePath, "snapshot base path cannot be empty")
	}
	if err := os.MkdirAll(cfg.SnapshotBasePath, 0755); err != nil {
		return nil, models.WrapError(err, "creating snapshot base path "+cfg.SnapshotBasePath)
	}
	return &SnapshotHistory{
		basePath:    cfg.SnapshotBasePath,
		compression: compressionOption(cfg.CompressionCodec),
		logger:      logger.With().Str("component", "SnapshotHistory").Logger(),
	}, nil
}

func compressionOption(codec string) parquet.WriterOption {
	switch codec {
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	case "none":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Zstd)
	}
}

func (sh *SnapshotHistory) watchDir(uuid string) string {
	return filepath.Join(sh.basePath, uuid)
}

// SaveSnapshot writes one snapshot record and returns its reference.
// Permission failures come back as the typed permission error so the
// pipeline can leave the watch in its previous state.
func (sh *SnapshotHistory) SaveSnapshot(uuid string, content []byte, checksum string, ts time.Time) (models.SnapshotRef, error) {
	dir := sh.watchDir(uuid)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return models.SnapshotRef{}, sh.persistError(dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%d%s", ts.UnixMilli(), snapshotExtension))
	file, err := os.Create(path)
	if err != nil {
		return models.SnapshotRef{}, sh.persistError(path, err)
	}

	writer := parquet.NewGenericWriter[SnapshotRecord](file, sh.compression)
	record := SnapshotRecord{
		UUID:      uuid,
		Timestamp: ts.UnixMilli(),
		Checksum:  checksum,
		Content:   content,
	}
	if _, err := writer.Write([]SnapshotRecord{record}); err != nil {
		writer.Close()
		file.Close()
		return models.SnapshotRef{}, models.WrapError(err, "writing snapshot record "+path)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return models.SnapshotRef{}, models.WrapError(err, "closing snapshot writer "+path)
	}
	if err := file.Close(); err != nil {
		return models.SnapshotRef{}, models.WrapError(err, "closing snapshot file "+path)
	}

	sh.logger.Debug().Str("uuid", uuid).Str("path", path).Int("bytes", len(content)).Msg("Snapshot persisted")
	return models.SnapshotRef{UUID: uuid, Path: path, Timestamp: ts, Checksum: checksum}, nil
}

// SnapshotCount returns how many snapshots exist for the watch.
func (sh *SnapshotHistory) SnapshotCount(uuid string) (int, error) {
	paths, err := sh.snapshotPaths(uuid)
	if err != nil {
		return 0, err
	}
	return len(paths), nil
}

// LastSnapshots returns up to n most recent snapshot refs, newest first.
func (sh *SnapshotHistory) LastSnapshots(uuid string, n int) ([]models.SnapshotRef, error) {
	paths, err := sh.snapshotPaths(uuid)
	if err != nil {
		return nil, err
	}
	// snapshotPaths sorts ascending by timestamp
	refs := make([]models.SnapshotRef, 0, n)
	for i := len(paths) - 1; i >= 0 && len(refs) < n; i-- {
		millis := snapshotMillis(paths[i])
		refs = append(refs, models.SnapshotRef{
			UUID:      uuid,
			Path:      paths[i],
			Timestamp: time.UnixMilli(millis),
		})
	}
	return refs, nil
}

// ReadSnapshot loads the content bytes a reference points at.
func (sh *SnapshotHistory) ReadSnapshot(ref models.SnapshotRef) ([]byte, error) {
	file, err := os.Open(ref.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.ErrSnapshotNotFound
		}
		return nil, models.WrapError(err, "opening snapshot "+ref.Path)
	}
	defer file.Close()

	reader := parquet.NewGenericReader[SnapshotRecord](file)
	defer reader.Close()

	batch := make([]SnapshotRecord, 1)
	n, err := reader.Read(batch)
	if n == 0 {
		if err != nil && err.Error() != "EOF" {
			return nil, models.WrapError(err, "reading snapshot record "+ref.Path)
		}
		return nil, models.ErrSnapshotNotFound
	}
	return batch[0].Content, nil
}

// SaveScreenshot stores the latest screenshot for a watch, replacing any
// previous one.
func (sh *SnapshotHistory) SaveScreenshot(uuid string, png []byte) error {
	dir := sh.watchDir(uuid)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return sh.persistError(dir, err)
	}
	path := filepath.Join(dir, screenshotFilename)
	if err := os.WriteFile(path, png, 0644); err != nil {
		return sh.persistError(path, err)
	}
	return nil
}

// SaveStructuredElements stores the latest structured-element blob for a
// watch.
func (sh *SnapshotHistory) SaveStructuredElements(uuid string, data []byte) error {
	dir := sh.watchDir(uuid)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return sh.persistError(dir, err)
	}
	path := filepath.Join(dir, structuredElementsFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return sh.persistError(path, err)
	}
	return nil
}

func (sh *SnapshotHistory) snapshotPaths(uuid string) ([]string, error) {
	dir := sh.watchDir(uuid)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, models.WrapError(err, "reading snapshot directory "+dir)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExtension) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Slice(paths, func(i, j int) bool {
		return snapshotMillis(paths[i]) < snapshotMillis(paths[j])
	})
	return paths, nil
}

func snapshotMillis(path string) int64 {
	name := strings.TrimSuffix(filepath.Base(path), snapshotExtension)
	millis, _ := strconv.ParseInt(name, 10, 64)
	return millis
}

func (sh *SnapshotHistory) persistError(path string, err error) error {
	if os.IsPermission(err) {
		sh.logger.Error().Err(err).Str("path", path).Msg("Permission denied persisting snapshot data")
		return models.NewPermissionError(path, err)
	}
	return models.WrapError(err, "persisting "+path)
}
