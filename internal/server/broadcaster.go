package server

import (
	"github.com/Tyrowin/partyrelay/internal/metrics"
	"go.uber.org/zap"
)

// BroadcastResult summarizes one fan-out pass.
type BroadcastResult struct {
	Delivered int
	Failed    int
}

// Broadcaster delivers events to every handle in a registry snapshot.
// Delivery to one handle is independent of all others: a failing handle is
// deregistered and closed, and the pass continues. Nothing is retried.
type Broadcaster struct {
	registry *Registry
	metrics  *metrics.Relay
	logger   *zap.Logger
}

// NewBroadcaster creates a broadcaster over registry. m and logger may be nil.
func NewBroadcaster(registry *Registry, m *metrics.Relay, logger *zap.Logger) *Broadcaster {
	if m == nil {
		m = metrics.NewNopRelay()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{registry: registry, metrics: m, logger: logger}
}

// Broadcast encodes ev once and hands it to every registered handle. It
// never returns an error to the caller; per-handle failures are reported in
// the result and resolved by dropping that handle.
func (b *Broadcaster) Broadcast(ev Event) BroadcastResult {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return BroadcastResult{}
	}

	targets := b.registry.Snapshot()
	result := BroadcastResult{}

	for _, h := range targets {
		if err := h.Deliver(payload); err != nil {
			result.Failed++
			b.drop(h, err)
			continue
		}
		result.Delivered++
	}

	b.metrics.EventsBroadcast.WithLabelValues(string(ev.Type)).Inc()
	b.metrics.Deliveries.Add(float64(result.Delivered))
	b.metrics.DeliveryFailures.Add(float64(result.Failed))

	b.logger.Debug("broadcast event",
		zap.String("type", string(ev.Type)),
		zap.String("user", ev.User),
		zap.Int("targets", len(targets)),
		zap.Int("delivered", result.Delivered),
		zap.Int("failed", result.Failed),
	)
	return result
}

func (b *Broadcaster) drop(h Handle, err error) {
	if b.registry.Deregister(h) {
		b.logger.Info("dropped connection after failed delivery",
			zap.Stringer("client_id", h.ID()),
			zap.Error(err),
		)
	}
	h.Close()
}
