package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/aleister1102/driftwatch/internal/telemetry"

	"github.com/rs/zerolog"
)

const consumerPopTimeout = 500 * time.Millisecond

// Deliverer sends one notification job to its destinations.
type Deliverer interface {
	Deliver(ctx context.Context, job models.NotificationJob) error
}

// WatchErrorRecorder is the slice of the store the consumer needs: writing
// delivery failures back onto the originating watch.
type WatchErrorRecorder interface {
	UpdateWatch(uuid string, update models.WatchUpdate) error
}

// Consumer drains the dispatch queue with a single dedicated goroutine.
// Delivery failures are written to the originating watch's
// last_notification_error field and the debug log; they never stop the
// loop.
type Consumer struct {
	cfg       config.NotificationConfig
	queue     *DispatchQueue
	deliverer Deliverer
	store     WatchErrorRecorder
	debugLog  *DebugLog
	logger    zerolog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	active     bool
	mu         sync.Mutex
}

// NewConsumer creates the notification consumer.
func NewConsumer(
	cfg config.NotificationConfig,
	queue *DispatchQueue,
	deliverer Deliverer,
	store WatchErrorRecorder,
	logger zerolog.Logger,
) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:        cfg,
		queue:      queue,
		deliverer:  deliverer,
		store:      store,
		debugLog:   NewDebugLog(config.DefaultNotificationDebugLines),
		logger:     logger.With().Str("component", "NotificationConsumer").Logger(),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// DebugLines exposes the bounded delivery debug log.
func (c *Consumer) DebugLines() []string {
	return c.debugLog.Lines()
}

// Start launches the consumer loop.
func (c *Consumer) Start() {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.loop()
	c.logger.Info().Msg("Notification consumer started")
}

// Stop signals the loop to finish; buffered jobs are drained first.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.mu.Unlock()

	c.cancelFunc()
	c.wg.Wait()
	c.logger.Info().Msg("Notification consumer stopped")
}

func (c *Consumer) loop() {
	defer c.wg.Done()
	for {
		job, ok := c.queue.Pop(consumerPopTimeout)
		if !ok {
			select {
			case <-c.ctx.Done():
				// drain whatever is still buffered before leaving
				for {
					job, ok := c.queue.Pop(10 * time.Millisecond)
					if !ok {
						return
					}
					c.process(job)
				}
			default:
				continue
			}
		}
		c.process(job)
	}
}

func (c *Consumer) process(job models.NotificationJob) {
	deliveryCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(c.cfg.DeliveryTimeoutSeconds)*time.Second)
	defer cancel()

	err := c.deliverer.Deliver(deliveryCtx, job)
	if err != nil {
		c.logger.Error().Err(err).Str("uuid", job.UUID).Msg("Notification delivery failed")
		c.debugLog.Append(fmt.Sprintf("FAILED uuid=%s destinations=%d: %v", job.UUID, len(job.Destinations), err))
		telemetry.NotificationsFailed.Inc()

		update := models.WatchUpdate{LastNotificationError: models.StringPtr(err.Error())}
		if storeErr := c.store.UpdateWatch(job.UUID, update); storeErr != nil {
			c.logger.Error().Err(storeErr).Str("uuid", job.UUID).Msg("Failed to record notification error on watch")
		}
		return
	}

	c.debugLog.Append(fmt.Sprintf("SENT uuid=%s destinations=%d", job.UUID, len(job.Destinations)))
	telemetry.NotificationsSent.Inc()

	update := models.WatchUpdate{LastNotificationError: models.StringPtr("")}
	if storeErr := c.store.UpdateWatch(job.UUID, update); storeErr != nil {
		c.logger.Error().Err(storeErr).Str("uuid", job.UUID).Msg("Failed to clear notification error on watch")
	}
}
