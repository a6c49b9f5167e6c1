package eventbus

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []*Envelope
}

func (c *collector) handle(_ context.Context, ev *Envelope) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func mapEnvelope(t *testing.T, eventType, id string) *Envelope {
	t.Helper()
	env, err := NewMapEnvelope(eventType, MapEvent{MapID: id, Side: 8, Seed: 1, Algorithm: "gradient"}, "")
	require.NoError(t, err)
	return env
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	var all, created collector
	_, err := bus.Subscribe(context.Background(), Filter{}, all.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), Filter{Types: []string{EventMapCreated}}, created.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), mapEnvelope(t, EventMapCreated, "a")))
	require.NoError(t, bus.Publish(context.Background(), mapEnvelope(t, EventMapDeleted, "a")))

	assert.Eventually(t, func() bool { return all.len() == 2 && created.len() == 1 }, time.Second, 5*time.Millisecond)

	ev, err := DecodeMapEvent(created.events[0])
	require.NoError(t, err)
	assert.Equal(t, "a", ev.MapID)
	assert.Equal(t, Source, created.events[0].Source)

	stats := bus.Metrics()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(3), stats.Consumed)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	var c collector
	sub, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), mapEnvelope(t, EventMapCreated, "x")))
	require.NoError(t, bus.Close())
	assert.Equal(t, 0, c.len())
}

func TestMemoryBus_DropsLowPriorityWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()

	block := make(chan struct{})
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) { <-block })
	require.NoError(t, err)

	low := func() *Envelope { return &Envelope{EventType: "Low", Priority: 0} }
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), low()))
	}
	close(block)

	assert.Positive(t, bus.Metrics().Dropped)
}

func TestMemoryBus_HighPriorityRespectsContext(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()

	block := make(chan struct{})
	defer close(block)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) { <-block })
	require.NoError(t, err)

	// Первое событие занимает обработчик, второе: буфер
	require.NoError(t, bus.Publish(context.Background(), &Envelope{Priority: 9}))
	require.Eventually(t, func() bool { return bus.Metrics().InFlight == 0 }, time.Second, time.Millisecond)
	require.NoError(t, bus.Publish(context.Background(), &Envelope{Priority: 9}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Publish(ctx, &Envelope{Priority: 9}), context.DeadlineExceeded)
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus(4)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), &Envelope{}), ErrBusClosed)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestLoggingListener(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	sub, err := StartLoggingListener(bus)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), mapEnvelope(t, EventMapCreated, "l")))
	assert.Eventually(t, func() bool { return bus.Metrics().Consumed == 1 }, time.Second, 5*time.Millisecond)
}

func TestMetricsExporter(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	registry := prometheus.NewRegistry()
	exporter := NewMetricsExporter(bus, registry)
	exporter.interval = 5 * time.Millisecond
	exporter.Start()

	require.NoError(t, bus.Publish(context.Background(), mapEnvelope(t, EventMapCreated, "m")))
	require.NoError(t, bus.Publish(context.Background(), mapEnvelope(t, EventMapCreated, "n")))
	exporter.Stop()

	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.published))

	// Повторный сбор не удваивает счётчики
	exporter.collect()
	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.published))
}

func TestJetStreamBus(t *testing.T) {
	url := os.Getenv("TERRAGEN_TEST_NATS")
	if url == "" {
		t.Skip("TERRAGEN_TEST_NATS не задан")
	}

	bus, err := NewJetStreamBus(url, "TERRAGEN_MAPS_TEST", time.Minute)
	require.NoError(t, err)
	defer bus.Close()

	var c collector
	sub, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventMapCreated}}, c.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), mapEnvelope(t, EventMapCreated, "js")))
	assert.Eventually(t, func() bool { return c.len() == 1 }, 5*time.Second, 10*time.Millisecond)
}
