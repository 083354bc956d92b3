package server

import (
	stdjson "encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/Tyrowin/partyrelay/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestBroadcaster(t *testing.T) (*Broadcaster, *Registry, *metrics.Relay) {
	t.Helper()
	m := metrics.NewRelay(prometheus.NewRegistry())
	r := NewRegistry(m.ActiveConnections)
	return NewBroadcaster(r, m, zap.NewNop()), r, m
}

func TestBroadcastDeliversToEveryHandle(t *testing.T) {
	b, r, _ := newTestBroadcaster(t)
	handles := []*fakeHandle{newFakeHandle(false), newFakeHandle(false), newFakeHandle(false)}
	for _, h := range handles {
		r.Register(h)
	}

	result := b.Broadcast(NewChatEvent("Alice", "hello"))

	assert.Equal(t, BroadcastResult{Delivered: 3, Failed: 0}, result)
	for _, h := range handles {
		got := h.received()
		require.Len(t, got, 1)

		var ev Event
		require.NoError(t, stdjson.Unmarshal(got[0], &ev))
		assert.Equal(t, NewChatEvent("Alice", "hello"), ev)
	}
}

// TestBroadcastIsolatesFailures covers N live handles of which M fail: the
// other N-M still receive the event, the M are deregistered and closed, and
// the caller sees no error.
func TestBroadcastIsolatesFailures(t *testing.T) {
	for _, tc := range []struct{ live, failing int }{
		{live: 5, failing: 0},
		{live: 5, failing: 2},
		{live: 3, failing: 3},
		{live: 0, failing: 0},
	} {
		t.Run(fmt.Sprintf("%d_of_%d_failing", tc.failing, tc.live), func(t *testing.T) {
			b, r, m := newTestBroadcaster(t)

			var ok, bad []*fakeHandle
			for i := 0; i < tc.live; i++ {
				h := newFakeHandle(i < tc.failing)
				if h.fail {
					bad = append(bad, h)
				} else {
					ok = append(ok, h)
				}
				r.Register(h)
			}

			var result BroadcastResult
			assert.NotPanics(t, func() {
				result = b.Broadcast(NewRollEvent("Bob", 4))
			})

			assert.Equal(t, tc.live-tc.failing, result.Delivered)
			assert.Equal(t, tc.failing, result.Failed)
			assert.Equal(t, tc.live-tc.failing, r.Len())

			for _, h := range ok {
				assert.Len(t, h.received(), 1)
				assert.True(t, r.Contains(h.ID()))
			}
			for _, h := range bad {
				assert.False(t, r.Contains(h.ID()))
				assert.Equal(t, 1, h.closeCount())
			}

			assert.Equal(t, float64(tc.live-tc.failing), testutil.ToFloat64(m.Deliveries))
			assert.Equal(t, float64(tc.failing), testutil.ToFloat64(m.DeliveryFailures))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsBroadcast.WithLabelValues("game")))
		})
	}
}

func TestBroadcastLogsDroppedConnection(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewRegistry(nil)
	b := NewBroadcaster(r, nil, zap.New(core))

	r.Register(newFakeHandle(true))
	b.Broadcast(NewChatEvent("Alice", "hi"))

	entries := logs.FilterMessage("dropped connection after failed delivery").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap(), "client_id")
}

// TestBroadcastPreservesPerDestinationOrder issues sequential broadcasts and
// checks each handle sees them in issue order.
func TestBroadcastPreservesPerDestinationOrder(t *testing.T) {
	b, r, _ := newTestBroadcaster(t)
	handles := []*fakeHandle{newFakeHandle(false), newFakeHandle(false)}
	for _, h := range handles {
		r.Register(h)
	}

	for i := 0; i < 20; i++ {
		b.Broadcast(NewChatEvent("Alice", fmt.Sprintf("msg-%d", i)))
	}

	for _, h := range handles {
		got := h.received()
		require.Len(t, got, 20)
		for i, raw := range got {
			var ev Event
			require.NoError(t, stdjson.Unmarshal(raw, &ev))
			assert.Equal(t, fmt.Sprintf("msg-%d", i), ev.Msg)
		}
	}
}

func TestBroadcastToClosedClientFailsGracefully(t *testing.T) {
	hub := newTestHub(t)
	client := NewClient(nil, hub, "127.0.0.1:1")
	hub.Registry().Register(client)
	client.Close()

	result := hub.Broadcaster().Broadcast(NewRollEvent("Bob", 2))

	assert.Equal(t, BroadcastResult{Delivered: 0, Failed: 1}, result)
	assert.Equal(t, 0, hub.Registry().Len())
}

func TestBroadcastDropsClientWithFullBuffer(t *testing.T) {
	cfg := *NewConfig()
	cfg.SendBufferSize = 2
	hub := NewHub(cfg, nil, nil, zap.NewNop())
	slow := NewClient(nil, hub, "127.0.0.1:1")
	fast := newFakeHandle(false)
	hub.Registry().Register(slow)
	hub.Registry().Register(fast)

	for i := 0; i < 3; i++ {
		hub.Broadcaster().Broadcast(NewRollEvent("Bob", 1))
	}

	assert.False(t, hub.Registry().Contains(slow.ID()))
	assert.True(t, slow.Closed())
	assert.Len(t, fast.received(), 3)
}

func TestBroadcastConcurrentWithChurn(t *testing.T) {
	b, r, _ := newTestBroadcaster(t)
	stable := newFakeHandle(false)
	r.Register(stable)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h := newFakeHandle(i%3 == 0)
				r.Register(h)
				r.Deregister(h)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.Broadcast(NewRollEvent("Bob", 3))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, stable.received(), 200)
	assert.True(t, r.Contains(stable.ID()))
}
