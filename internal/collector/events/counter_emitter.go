package events

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lugx/beacon/internal/common/redis"
)

const defaultCounterTimeout = 2 * time.Second

// CounterEmitter keeps per-event-type and per-page counters in Redis
type CounterEmitter struct {
	client  *redis.Client
	timeout time.Duration
	logger  *zap.Logger

	pending sync.WaitGroup
}

// NewCounterEmitter wraps an already connected client. timeout bounds each update; 0 uses 2s.
func NewCounterEmitter(client *redis.Client, timeout time.Duration, logger *zap.Logger) *CounterEmitter {
	if timeout <= 0 {
		timeout = defaultCounterTimeout
	}
	return &CounterEmitter{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Emit updates the counters in the background
func (c *CounterEmitter) Emit(event *TrackedEvent) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		if err := c.record(ctx, event); err != nil {
			c.logger.Warn("Failed to update event counters",
				zap.String("request_id", event.RequestID),
				zap.String("event_type", event.EventType),
				zap.Error(err))
		}
	}()
}

func (c *CounterEmitter) record(ctx context.Context, event *TrackedEvent) error {
	pageKey := redis.PageKey(event.PageURL)

	err := c.client.IncrementHashes(ctx, []redis.HashIncrement{
		{Key: redis.EventTotalsKey, Field: event.EventType, By: 1},
		{Key: pageKey, Field: event.EventType, By: 1},
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redis.PageURLKey(event.PageURL), event.PageURL)
}

// Flush waits for in-flight updates
func (c *CounterEmitter) Flush() {
	c.pending.Wait()
}

// Totals returns the count of stored events per event type
func (c *CounterEmitter) Totals(ctx context.Context) (map[string]int64, error) {
	raw, err := c.client.HGetAll(ctx, redis.EventTotalsKey)
	if err != nil {
		return nil, err
	}
	return parseCounts(raw)
}

// PageTotals returns per-event-type counts for a single page_url
func (c *CounterEmitter) PageTotals(ctx context.Context, pageURL string) (map[string]int64, error) {
	raw, err := c.client.HGetAll(ctx, redis.PageKey(pageURL))
	if err != nil {
		return nil, err
	}
	return parseCounts(raw)
}

// Close waits for pending updates. The Redis client is owned by the caller.
func (c *CounterEmitter) Close() error {
	c.Flush()
	return nil
}

func parseCounts(raw map[string]string) (map[string]int64, error) {
	counts := make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %q is not an integer: %w", field, err)
		}
		counts[field] = n
	}
	return counts, nil
}
