package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aleister1102/driftwatch/internal/models"

	"github.com/rs/zerolog"
)

// WebhookDeliverer posts notification jobs as JSON to each destination URL.
type WebhookDeliverer struct {
	logger     zerolog.Logger
	httpClient *http.Client
}

// NewWebhookDeliverer creates the deliverer. A nil client gets a default
// with a 20s timeout.
func NewWebhookDeliverer(logger zerolog.Logger, httpClient *http.Client) *WebhookDeliverer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &WebhookDeliverer{
		logger:     logger.With().Str("component", "WebhookDeliverer").Logger(),
		httpClient: httpClient,
	}
}

// webhookPayload is the body posted to each destination.
type webhookPayload struct {
	UUID     string `json:"uuid"`
	WatchURL string `json:"watch_url"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Format   string `json:"format"`
}

// Deliver implements Deliverer. All destinations are attempted; the first
// failure is reported after the rest have been tried.
func (wd *WebhookDeliverer) Deliver(ctx context.Context, job models.NotificationJob) error {
	if len(job.Destinations) == 0 {
		wd.logger.Debug().Str("uuid", job.UUID).Msg("No destinations configured, skipping notification")
		return nil
	}

	payload, err := json.Marshal(webhookPayload{
		UUID:     job.UUID,
		WatchURL: job.WatchURL,
		Title:    job.Title,
		Body:     job.Body,
		Format:   job.Format,
	})
	if err != nil {
		return models.WrapError(err, "marshaling notification payload")
	}

	var firstErr error
	for _, destination := range job.Destinations {
		if err := wd.post(ctx, destination, payload); err != nil {
			wd.logger.Error().Err(err).Str("uuid", job.UUID).Str("destination", destination).Msg("Webhook delivery failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		wd.logger.Debug().Str("uuid", job.UUID).Str("destination", destination).Msg("Webhook delivered")
	}
	return firstErr
}

func (wd *WebhookDeliverer) post(ctx context.Context, destination string, payload []byte) error {
	if _, err := url.ParseRequestURI(destination); err != nil {
		return models.WrapError(err, "invalid destination URL "+destination)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(payload))
	if err != nil {
		return models.WrapError(err, "creating webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := wd.httpClient.Do(req)
	if err != nil {
		return models.WrapError(err, "posting webhook to "+destination)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s rejected with status %d", destination, resp.StatusCode)
	}
	return nil
}

// BuildJobTitle composes the notification title for a changed watch.
func BuildJobTitle(w *models.Watch) string {
	label := w.Title
	if label == "" {
		label = w.URL
	}
	return fmt.Sprintf("Change detected: %s", label)
}

// BuildJobBody composes the notification body from the rendered diff.
func BuildJobBody(w *models.Watch, renderedDiff string) string {
	var b strings.Builder
	b.WriteString(w.URL)
	b.WriteString(" has changed.\n\n")
	b.WriteString(renderedDiff)
	return b.String()
}
