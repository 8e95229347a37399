// Package reload rebuilds the phrase dictionary on demand and fans the
// request out to every other replica over Kafka.
package reload

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/kafka"
)

const originHeader = "origin"

// Event announces that the phrase list behind Resource changed.
type Event struct {
	ID       string    `json:"id"`
	Origin   string    `json:"origin"`
	Resource string    `json:"resource"`
	Version  uint64    `json:"version"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// Target is the component being reloaded.
type Target interface {
	Reload(ctx context.Context, trigger string) error
	Snapshot() *autophrase.Snapshot
}

// Outcome reports a local reload and whether it reached the other replicas.
type Outcome struct {
	Event     Event `json:"event"`
	Broadcast bool  `json:"broadcast"`
}

// Coordinator reloads the local target and publishes the reload so other
// replicas follow. Publisher may be nil when fan-out is disabled.
type Coordinator struct {
	origin    string
	target    Target
	publisher kafka.Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewCoordinator(origin string, target Target, publisher kafka.Publisher) *Coordinator {
	return &Coordinator{
		origin:    origin,
		target:    target,
		publisher: publisher,
		logger:    slog.Default().With("component", "reload", "origin", origin),
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// Trigger reloads locally and, on success, broadcasts the reload. A failed
// broadcast is logged and reported in the outcome; the local reload stands.
func (c *Coordinator) Trigger(ctx context.Context, trigger, reason string) (Outcome, error) {
	if err := c.target.Reload(ctx, trigger); err != nil {
		return Outcome{}, err
	}
	ev := c.newEvent(reason)
	out := Outcome{Event: ev}
	if c.publisher == nil {
		return out, nil
	}
	err := c.publisher.Publish(ctx, kafka.Event{
		Key:     ev.Resource,
		Value:   ev,
		Headers: map[string]string{originHeader: c.origin},
	})
	if err != nil {
		c.logger.Warn("reload broadcast failed", "event_id", ev.ID, "error", err)
		return out, nil
	}
	out.Broadcast = true
	c.logger.Info("reload broadcast", "event_id", ev.ID, "version", ev.Version)
	return out, nil
}

func (c *Coordinator) newEvent(reason string) Event {
	c.mu.Lock()
	id := ulid.MustNew(ulid.Now(), c.entropy).String()
	c.mu.Unlock()

	ev := Event{
		ID:     id,
		Origin: c.origin,
		Reason: reason,
		At:     time.Now().UTC(),
	}
	if snap := c.target.Snapshot(); snap != nil {
		ev.Resource = snap.Config.PhrasesResource
		ev.Version = snap.Version
	}
	return ev
}

// Handle is the kafka.MessageHandler for the reload topic. Events this
// replica published itself are skipped.
func (c *Coordinator) Handle(ctx context.Context, _ []byte, value []byte) error {
	ev, err := kafka.DecodeJSON[Event](value)
	if err != nil {
		c.logger.Error("dropping malformed reload event", "error", err)
		return nil
	}
	if ev.Origin == c.origin {
		return nil
	}
	if snap := c.target.Snapshot(); snap != nil && ev.Resource != "" && ev.Resource != snap.Config.PhrasesResource {
		c.logger.Debug("ignoring reload for another resource", "event_id", ev.ID, "resource", ev.Resource)
		return nil
	}
	if err := c.target.Reload(ctx, autophrase.TriggerEvent); err != nil {
		return fmt.Errorf("reload for event %s from %s: %w", ev.ID, ev.Origin, err)
	}
	c.logger.Info("reloaded on remote event", "event_id", ev.ID, "from", ev.Origin)
	return nil
}
