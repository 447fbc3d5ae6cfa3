package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hrdatainsights/salary-platform/pkg/kafka"
	"github.com/hrdatainsights/salary-platform/pkg/metrics"
	"github.com/hrdatainsights/salary-platform/pkg/resilience"
)

// Publisher is the subset of kafka.Producer the collector needs.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorConfig tunes batching. Zero values select defaults.
type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers events in a channel and publishes them in batches from a
// single goroutine. Track never blocks: when the buffer is full the event is
// dropped. Publishing goes through a circuit breaker so a dead broker costs
// one fast failure per batch instead of a full write timeout.
type Collector struct {
	publisher Publisher
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	eventCh   chan PredictionEvent
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	done      chan struct{}

	// mu guards closed; Track holds it shared so Close cannot close eventCh
	// under a pending send.
	mu     sync.RWMutex
	closed bool
}

// NewCollector creates a collector. m may be nil.
func NewCollector(publisher Publisher, cfg CollectorConfig, m *metrics.Metrics) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	c := &Collector{
		publisher: publisher,
		metrics:   m,
		eventCh:   make(chan PredictionEvent, cfg.BufferSize),
		batchSize: cfg.BatchSize,
		interval:  cfg.FlushInterval,
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
	c.breaker = resilience.NewCircuitBreaker("analytics-publisher", resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     15 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Start launches the publish loop. It drains the buffer and returns when ctx
// is cancelled or Close is called.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = append(batch, toKafka(event))
				if len(batch) >= c.batchSize {
					c.flush(ctx, batch)
					batch = batch[:0]
				}
			case <-ticker.C:
				c.flush(ctx, batch)
				batch = batch[:0]
			case <-ctx.Done():
				batch = c.drainRemaining(batch)
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx, batch)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.interval,
	)
}

// Track enqueues an event without blocking. Events tracked after Close are
// dropped.
func (c *Collector) Track(event PredictionEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.record("dropped", 1)
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.record("dropped", 1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the final flush. It must be
// called after Start; later calls are no-ops.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.eventCh)
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) drainRemaining(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, toKafka(event))
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	err := c.breaker.Execute(func() error {
		return c.publisher.PublishBatch(ctx, batch)
	})
	if err != nil {
		c.record("error", len(batch))
		if errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Debug("analytics batch skipped, breaker open", "events", len(batch))
			return
		}
		c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
		return
	}
	c.record("ok", len(batch))
}

func (c *Collector) record(status string, n int) {
	if c.metrics != nil {
		c.metrics.EventsPublished.WithLabelValues(status).Add(float64(n))
	}
}

func toKafka(e PredictionEvent) kafka.Event {
	return kafka.Event{Key: string(e.Type), Value: e}
}
