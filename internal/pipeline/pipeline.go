package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/aleister1102/driftwatch/internal/classifier"
	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/differ"
	"github.com/aleister1102/driftwatch/internal/fetcher"
	"github.com/aleister1102/driftwatch/internal/filter"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/notifier"
	"github.com/aleister1102/driftwatch/internal/store"
	"github.com/aleister1102/driftwatch/internal/telemetry"

	"github.com/rs/zerolog"
)

// ProxyResolver hands the pipeline the proxy chosen for one dispatch. The
// scheduler implements it because the reuse-throttle table lives there.
type ProxyResolver interface {
	ResolveProxy(w *models.Watch) *models.ProxyDescriptor
}

// ChangeVeto decides whether a detected content change should be
// suppressed. The default applies the watch's trigger-text and block-text
// rules.
type ChangeVeto func(w *models.Watch, filtered filter.Result) bool

// Pipeline turns one queue item into a changed/unchanged decision and a
// merge-patch against the watch record.
type Pipeline struct {
	cfg      *config.GlobalConfig
	store    store.Store
	registry *fetcher.Registry
	filter   filter.Filter
	differ   *differ.ContentDiffer
	dispatch *notifier.DispatchQueue
	proxies  ProxyResolver
	veto     ChangeVeto
	logger   zerolog.Logger
}

// NewPipeline wires the check pipeline.
func NewPipeline(
	cfg *config.GlobalConfig,
	st store.Store,
	registry *fetcher.Registry,
	f filter.Filter,
	dispatch *notifier.DispatchQueue,
	proxies ProxyResolver,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		registry: registry,
		filter:   f,
		differ:   differ.NewContentDiffer(),
		dispatch: dispatch,
		proxies:  proxies,
		veto:     vetoed,
		logger:   logger.With().Str("component", "Pipeline").Logger(),
	}
}

// SetChangeVeto replaces the default trigger/block-text veto.
func (p *Pipeline) SetChangeVeto(veto ChangeVeto) {
	if veto != nil {
		p.veto = veto
	}
}

// Run executes one check for the given queue item. Every failure is caught
// at this boundary and converted into persisted watch state; nothing
// propagates to the worker loop. The bookkeeping finalizer always runs.
func (p *Pipeline) Run(ctx context.Context, item models.QueueItem) models.CheckResult {
	result := models.CheckResult{UUID: item.UUID}
	telemetry.ChecksTotal.Inc()

	w, err := p.store.GetWatch(item.UUID)
	if err != nil {
		p.logger.Warn().Err(err).Str("uuid", item.UUID).Msg("Watch vanished before check")
		result.Err = models.AsCheckError(err)
		return result
	}

	started := time.Now()
	defer p.finalize(w.UUID, started, &result)

	func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error().Str("uuid", w.UUID).Interface("panic", r).Msg("Check panicked")
				result.Err = models.NewUnknownCheckError(fmt.Errorf("panic: %v", r))
			}
		}()
		p.check(ctx, w, &result)
	}()

	if result.Err != nil {
		telemetry.CheckErrorsTotal.WithLabelValues(result.Err.Kind.String()).Inc()
		// Local persist-permission failures are logged but leave the
		// watch record in its previous state.
		if result.Err.Kind != models.CheckErrorPermission {
			result.Update.LastError = models.StringPtr(result.Err.Error())
			if result.Err.StatusCode != 0 {
				result.Update.LastStatusCode = models.IntPtr(result.Err.StatusCode)
			}
		}
	} else {
		result.Update.LastError = models.StringPtr("")
	}
	return result
}

func (p *Pipeline) check(ctx context.Context, w *models.Watch, result *models.CheckResult) {
	backend := p.registry.Resolve(w.FetchBackend)
	proxy := p.proxies.ResolveProxy(w)

	resp, err := backend.Fetch(ctx, fetcher.Request{
		URL:     w.URL,
		Method:  w.Method,
		Headers: w.Headers,
		Body:    w.Body,
		Timeout: w.EffectiveTimeout(time.Duration(p.cfg.Fetch.TimeoutSeconds) * time.Second),
		Proxy:   proxy,
	})
	if err != nil {
		result.Err = models.AsCheckError(err)
		return
	}
	result.Content = resp.Content
	result.Update.LastStatusCode = models.IntPtr(resp.StatusCode)

	contentType := classifier.Classify(resp.ContentType, resp.Content)
	filtered, err := p.filter.Apply(filter.Input{
		Watch:       w,
		ContentType: contentType,
		Body:        resp.Content,
	})
	if err != nil {
		result.Err = models.AsCheckError(err)
		return
	}
	if filtered.Text == "" {
		result.Err = models.NewContentButNoTextError(false)
		return
	}

	sum := sha256.Sum256([]byte(filtered.Text))
	result.Checksum = hex.EncodeToString(sum[:])

	// Fast path: unchanged content, config untouched, previous run clean.
	if result.Checksum == w.PreviousChecksum && !w.Edited && w.LastError == "" {
		telemetry.ChecksSkipped.Inc()
		p.logger.Debug().Str("uuid", w.UUID).Msg("Checksum unchanged, skipping")
		return
	}

	if w.Edited {
		result.Update.Edited = models.BoolPtr(false)
	}

	// An edited watch persists a fresh snapshot even when the checksum
	// matches, so its next comparison runs against current filter config.
	now := time.Now()
	if result.Checksum != w.PreviousChecksum || w.Edited {
		ref, err := p.store.SaveSnapshot(w.UUID, []byte(filtered.Text), result.Checksum, now)
		if err != nil {
			// Permission failures leave the watch in its previous state.
			ce := models.AsCheckError(err)
			if ce.Kind == models.CheckErrorPermission {
				p.logger.Error().Err(err).Str("uuid", w.UUID).Msg("Snapshot persist denied")
			}
			result.Err = ce
			return
		}
		result.Update.PreviousChecksum = models.StringPtr(result.Checksum)

		count, err := p.store.SnapshotCount(w.UUID)
		if err != nil {
			result.Err = models.AsCheckError(err)
			return
		}
		if count >= 2 && result.Checksum != w.PreviousChecksum && !p.veto(w, filtered) {
			result.Changed = true
			result.Update.LastChanged = models.TimePtr(now)
			telemetry.ChangesDetected.Inc()
			p.notifyChange(w, ref)
		}
	}

	if len(resp.Screenshot) > 0 {
		if err := p.store.SaveScreenshot(w.UUID, resp.Screenshot); err != nil {
			p.logger.Warn().Err(err).Str("uuid", w.UUID).Msg("Failed to save screenshot")
		}
	}
	if len(resp.Elements) > 0 {
		if err := p.store.SaveStructuredElements(w.UUID, resp.Elements); err != nil {
			p.logger.Warn().Err(err).Str("uuid", w.UUID).Msg("Failed to save element dump")
		}
	}
}

// vetoed applies the trigger/block text rules to a detected change. A
// non-empty trigger list demands at least one hit; any block-text hit
// suppresses the change.
func vetoed(w *models.Watch, filtered filter.Result) bool {
	if len(w.TriggerText) > 0 && len(filtered.TriggerHits) == 0 {
		return true
	}
	return blockHit(w.BlockText, filtered.Text)
}

func blockHit(blockRules []string, text string) bool {
	lower := strings.ToLower(text)
	for _, rule := range blockRules {
		if rule == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(rule)) {
			return true
		}
	}
	return false
}

func (p *Pipeline) notifyChange(w *models.Watch, after models.SnapshotRef) {
	refs, err := p.store.LastSnapshots(w.UUID, 2)
	if err != nil || len(refs) < 2 {
		p.logger.Warn().Err(err).Str("uuid", w.UUID).Msg("Cannot resolve snapshot pair for notification")
		return
	}

	destinations := w.NotificationURLs
	if len(destinations) == 0 {
		destinations = p.cfg.Notification.DefaultDestinations
	}
	if len(destinations) == 0 {
		p.logger.Debug().Str("uuid", w.UUID).Msg("Change detected but no notification destinations")
		return
	}

	before := refs[1]
	body := p.renderDiffBody(w, before, after)
	job := models.NotificationJob{
		UUID:           w.UUID,
		WatchURL:       w.URL,
		Destinations:   destinations,
		Title:          notifier.BuildJobTitle(w),
		Body:           body,
		Format:         p.cfg.Notification.Format,
		SnapshotBefore: before,
		SnapshotAfter:  after,
	}
	if !p.dispatch.Push(job) {
		p.logger.Warn().Str("uuid", w.UUID).Msg("Notification queue full, job dropped")
	}
}

func (p *Pipeline) renderDiffBody(w *models.Watch, before, after models.SnapshotRef) string {
	prev, err := p.store.ReadSnapshot(before)
	if err != nil {
		return notifier.BuildJobBody(w, "")
	}
	cur, err := p.store.ReadSnapshot(after)
	if err != nil {
		return notifier.BuildJobBody(w, "")
	}
	rendered, _ := p.differ.Render(string(prev), string(cur))
	return notifier.BuildJobBody(w, rendered)
}

// finalize always records fetch_time and last_checked, whatever happened
// above it.
func (p *Pipeline) finalize(uuid string, started time.Time, result *models.CheckResult) {
	now := time.Now()
	result.Update.FetchTimeSeconds = models.Float64Ptr(now.Sub(started).Seconds())
	result.Update.LastChecked = models.TimePtr(now)

	if err := p.store.UpdateWatch(uuid, result.Update); err != nil {
		p.logger.Error().Err(err).Str("uuid", uuid).Msg("Failed to persist check bookkeeping")
	}
}
