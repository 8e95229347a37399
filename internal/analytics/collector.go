package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/kafka"
)

const eventKey = "rewrite"

// Sink receives batches of tracked events. *kafka.Producer is the
// production sink; LocalSink feeds an in-process Aggregator.
type Sink interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers rewrite events on a channel and flushes them to the
// sink in batches, either when batchSize events are pending or every
// flushInterval. Track never blocks the request path.
type Collector struct {
	sink          Sink
	eventCh       chan RewriteEvent
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
}

func NewCollector(sink Sink, bufferSize, batchSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Collector{
		sink:          sink,
		eventCh:       make(chan RewriteEvent, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. It exits when ctx is cancelled or Close is
// called, flushing what is still buffered.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(context.Background(), batch)
					return
				}
				batch = append(batch, kafka.Event{Key: eventKey, Value: event})
				if len(batch) >= c.batchSize {
					batch = c.flush(ctx, batch)
				}
			case <-ticker.C:
				batch = c.flush(ctx, batch)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.drainRemaining(flushCtx, batch)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track enqueues event, dropping it if the buffer is full.
func (c *Collector) Track(event RewriteEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the final flush. Track must
// not be called after Close.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.sink.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("analytics flush failed", "batch_size", len(batch), "error", err)
	} else {
		c.logger.Debug("analytics batch flushed", "events", len(batch))
	}
	return make([]kafka.Event, 0, c.batchSize)
}

func (c *Collector) drainRemaining(ctx context.Context, batch []kafka.Event) {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(ctx, batch)
				return
			}
			batch = append(batch, kafka.Event{Key: eventKey, Value: event})
		default:
			c.flush(ctx, batch)
			return
		}
	}
}

// LocalSink records events straight into an Aggregator when Kafka is not
// configured.
type LocalSink struct {
	Aggregator *Aggregator
}

func (s LocalSink) PublishBatch(_ context.Context, events []kafka.Event) error {
	for _, ev := range events {
		if re, ok := ev.Value.(RewriteEvent); ok {
			s.Aggregator.Record(re)
		}
	}
	return nil
}
