package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu      sync.Mutex
	updates map[string][]models.WatchUpdate
}

func newRecordingStore() *recordingStore {
	return &recordingStore{updates: make(map[string][]models.WatchUpdate)}
}

func (r *recordingStore) UpdateWatch(uuid string, update models.WatchUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates[uuid] = append(r.updates[uuid], update)
	return nil
}

func (r *recordingStore) lastNotificationError(uuid string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	updates := r.updates[uuid]
	for i := len(updates) - 1; i >= 0; i-- {
		if updates[i].LastNotificationError != nil {
			return *updates[i].LastNotificationError, true
		}
	}
	return "", false
}

type flakyDeliverer struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (f *flakyDeliverer) Deliver(ctx context.Context, job models.NotificationJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("webhook unreachable")
	}
	return nil
}

func testJob(uuid string) models.NotificationJob {
	return models.NotificationJob{
		UUID:         uuid,
		WatchURL:     "http://example.test/" + uuid,
		Destinations: []string{"http://hook.test/notify"},
		Title:        "change detected",
		Body:         "diff",
		Format:       "text",
	}
}

func TestDispatchQueuePushPopAndOverflow(t *testing.T) {
	q := NewDispatchQueue(2)
	assert.True(t, q.Push(testJob("a")))
	assert.True(t, q.Push(testJob("b")))
	// Full queue drops rather than blocking a fetch worker.
	assert.False(t, q.Push(testJob("c")))

	job, ok := q.Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, "a", job.UUID)

	_, ok = q.Pop(10 * time.Millisecond)
	assert.True(t, ok)
	_, ok = q.Pop(10 * time.Millisecond)
	assert.False(t, ok)
}

func TestConsumerDeliversAndClearsError(t *testing.T) {
	q := NewDispatchQueue(8)
	st := newRecordingStore()
	deliverer := &flakyDeliverer{}
	c := NewConsumer(config.NewDefaultNotificationConfig(), q, deliverer, st, zerolog.Nop())
	c.Start()
	defer c.Stop()

	q.Push(testJob("w-1"))

	require.Eventually(t, func() bool {
		_, ok := st.lastNotificationError("w-1")
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	msg, _ := st.lastNotificationError("w-1")
	assert.Empty(t, msg)
	assert.Contains(t, c.DebugLines()[0], "SENT uuid=w-1")
}

func TestConsumerRecordsDeliveryFailure(t *testing.T) {
	q := NewDispatchQueue(8)
	st := newRecordingStore()
	deliverer := &flakyDeliverer{fail: true}
	c := NewConsumer(config.NewDefaultNotificationConfig(), q, deliverer, st, zerolog.Nop())
	c.Start()
	defer c.Stop()

	q.Push(testJob("w-2"))
	q.Push(testJob("w-3"))

	require.Eventually(t, func() bool {
		_, ok2 := st.lastNotificationError("w-2")
		_, ok3 := st.lastNotificationError("w-3")
		return ok2 && ok3
	}, 3*time.Second, 10*time.Millisecond)

	msg, _ := st.lastNotificationError("w-2")
	assert.Contains(t, msg, "webhook unreachable")

	// A failing job never kills the loop: both were attempted.
	deliverer.mu.Lock()
	assert.Equal(t, 2, deliverer.calls)
	deliverer.mu.Unlock()
}

func TestConsumerDrainsOnStop(t *testing.T) {
	q := NewDispatchQueue(8)
	st := newRecordingStore()
	deliverer := &flakyDeliverer{}
	c := NewConsumer(config.NewDefaultNotificationConfig(), q, deliverer, st, zerolog.Nop())
	c.Start()

	for i := 0; i < 5; i++ {
		q.Push(testJob(fmt.Sprintf("w-%d", i)))
	}
	c.Stop()

	deliverer.mu.Lock()
	defer deliverer.mu.Unlock()
	assert.Equal(t, 5, deliverer.calls)
}

func TestDebugLogIsBounded(t *testing.T) {
	d := NewDebugLog(3)
	for i := 0; i < 10; i++ {
		d.Append(fmt.Sprintf("line %d", i))
	}
	lines := d.Lines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "line 7")
	assert.Contains(t, lines[2], "line 9")
}

func TestWebhookDelivererPostsPayload(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wd := NewWebhookDeliverer(zerolog.Nop(), srv.Client())
	job := testJob("w-9")
	job.Destinations = []string{srv.URL}
	require.NoError(t, wd.Deliver(context.Background(), job))
	assert.Equal(t, "application/json", <-received)
}

func TestWebhookDelivererReportsFirstFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wd := NewWebhookDeliverer(zerolog.Nop(), srv.Client())
	job := testJob("w-10")
	job.Destinations = []string{srv.URL}
	assert.Error(t, wd.Deliver(context.Background(), job))
}
