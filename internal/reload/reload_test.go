package reload

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/kafka"
)

type fakeTarget struct {
	mu       sync.Mutex
	triggers []string
	err      error
	snap     *autophrase.Snapshot
}

func (f *fakeTarget) Reload(_ context.Context, trigger string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	if f.err != nil {
		return f.err
	}
	f.snap.Version++
	return nil
}

func (f *fakeTarget) Snapshot() *autophrase.Snapshot { return f.snap }

type fakePublisher struct {
	events []kafka.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev kafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) PublishBatch(ctx context.Context, evs []kafka.Event) error {
	for _, ev := range evs {
		if err := p.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func newTarget() *fakeTarget {
	return &fakeTarget{snap: &autophrase.Snapshot{
		Config:  autophrase.RewriteConfig{PhrasesResource: "postgres:medical"},
		Version: 1,
	}}
}

func TestTriggerBroadcasts(t *testing.T) {
	target := newTarget()
	pub := &fakePublisher{}
	c := NewCoordinator("replica-a", target, pub)

	out, err := c.Trigger(context.Background(), autophrase.TriggerAPI, "list edited")
	require.NoError(t, err)
	assert.True(t, out.Broadcast)
	assert.Equal(t, []string{autophrase.TriggerAPI}, target.triggers)

	_, err = ulid.Parse(out.Event.ID)
	require.NoError(t, err)
	assert.Equal(t, "replica-a", out.Event.Origin)
	assert.Equal(t, "postgres:medical", out.Event.Resource)
	assert.Equal(t, uint64(2), out.Event.Version)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "postgres:medical", pub.events[0].Key)
	assert.Equal(t, "replica-a", pub.events[0].Headers[originHeader])
}

func TestTriggerIDsAreOrdered(t *testing.T) {
	c := NewCoordinator("a", newTarget(), nil)
	first, err := c.Trigger(context.Background(), autophrase.TriggerAPI, "")
	require.NoError(t, err)
	second, err := c.Trigger(context.Background(), autophrase.TriggerAPI, "")
	require.NoError(t, err)
	assert.Less(t, first.Event.ID, second.Event.ID)
	assert.False(t, second.Broadcast)
}

func TestTriggerLocalFailureSkipsBroadcast(t *testing.T) {
	target := newTarget()
	target.err = autophrase.ErrConfiguration
	pub := &fakePublisher{}
	c := NewCoordinator("a", target, pub)

	_, err := c.Trigger(context.Background(), autophrase.TriggerAPI, "")
	assert.ErrorIs(t, err, autophrase.ErrConfiguration)
	assert.Empty(t, pub.events)
}

func TestTriggerBroadcastFailure(t *testing.T) {
	c := NewCoordinator("a", newTarget(), &fakePublisher{err: errors.New("broker down")})
	out, err := c.Trigger(context.Background(), autophrase.TriggerAPI, "")
	require.NoError(t, err)
	assert.False(t, out.Broadcast)
}

func encode(t *testing.T, ev Event) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

func TestHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("remote event reloads", func(t *testing.T) {
		target := newTarget()
		c := NewCoordinator("b", target, nil)
		require.NoError(t, c.Handle(ctx, nil, encode(t, Event{ID: "1", Origin: "a", Resource: "postgres:medical"})))
		assert.Equal(t, []string{autophrase.TriggerEvent}, target.triggers)
	})

	t.Run("own event skipped", func(t *testing.T) {
		target := newTarget()
		c := NewCoordinator("a", target, nil)
		require.NoError(t, c.Handle(ctx, nil, encode(t, Event{ID: "1", Origin: "a"})))
		assert.Empty(t, target.triggers)
	})

	t.Run("other resource skipped", func(t *testing.T) {
		target := newTarget()
		c := NewCoordinator("b", target, nil)
		require.NoError(t, c.Handle(ctx, nil, encode(t, Event{ID: "1", Origin: "a", Resource: "redis:other"})))
		assert.Empty(t, target.triggers)
	})

	t.Run("malformed dropped", func(t *testing.T) {
		target := newTarget()
		c := NewCoordinator("b", target, nil)
		assert.NoError(t, c.Handle(ctx, nil, []byte("{")))
		assert.Empty(t, target.triggers)
	})

	t.Run("reload failure surfaces", func(t *testing.T) {
		target := newTarget()
		target.err = errors.New("db gone")
		c := NewCoordinator("b", target, nil)
		assert.Error(t, c.Handle(ctx, nil, encode(t, Event{ID: "1", Origin: "a"})))
	})
}
