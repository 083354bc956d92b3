// Package server coordinates client registration, event broadcast, and
// connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/Tyrowin/partyrelay/internal/metrics"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub is the single construction point for the relay's shared state: the
// connection registry, the broadcaster, and the game rules. Session loops
// receive it at attach time; there is no package-level hub.
type Hub struct {
	cfg         Config
	registry    *Registry
	broadcaster *Broadcaster
	game        *Game
	metrics     *metrics.Relay
	logger      *zap.Logger

	mu       sync.Mutex
	stopping bool
	wg       sync.WaitGroup
}

// NewHub wires a hub from cfg and pool. m and logger may be nil.
func NewHub(cfg Config, pool *QuestionPool, m *metrics.Relay, logger *zap.Logger) *Hub {
	if m == nil {
		m = metrics.NewNopRelay()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := NewRegistry(m.ActiveConnections)
	return &Hub{
		cfg:         cfg.Sanitize(),
		registry:    registry,
		broadcaster: NewBroadcaster(registry, m, logger),
		game:        NewGame(pool),
		metrics:     m,
		logger:      logger,
	}
}

// Config returns the sanitized configuration the hub was built with.
func (h *Hub) Config() Config {
	return h.cfg
}

// Registry returns the hub's connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Broadcaster returns the hub's broadcaster.
func (h *Hub) Broadcaster() *Broadcaster {
	return h.broadcaster
}

// Game returns the hub's game rules.
func (h *Hub) Game() *Game {
	return h.game
}

// Attach registers a freshly upgraded connection and starts its pumps. It
// returns nil, closing conn, once the hub is shutting down.
func (h *Hub) Attach(conn *websocket.Conn, addr string) *Client {
	client := NewClient(conn, h, addr)
	if !h.start(client) {
		return nil
	}
	return client
}

// start registers client and runs its pumps, reporting false if the hub
// is already shutting down.
func (h *Hub) start(client *Client) bool {
	h.mu.Lock()
	if h.stopping {
		h.mu.Unlock()
		if client.conn != nil {
			_ = client.conn.Close()
		}
		return false
	}
	h.registry.Register(client)
	h.wg.Add(2)
	h.mu.Unlock()

	client.logger.Info("client registered", zap.Int("total_clients", h.registry.Len()))

	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	return true
}

// detach is the session loop's exit path: deregister, then stop the writer.
// Both steps are idempotent, so a broadcaster that already dropped the
// client is harmless.
func (h *Hub) detach(c *Client) {
	if h.registry.Deregister(c) {
		c.logger.Info("client unregistered", zap.Int("total_clients", h.registry.Len()))
	}
	c.Close()
}

// shutdownClients closes every registered connection; each read loop then
// observes the error and detaches itself.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	clients := h.registry.Snapshot()
	for _, handle := range clients {
		client, ok := handle.(*Client)
		if !ok {
			h.registry.Deregister(handle)
			handle.Close()
			continue
		}
		client.Close()
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.logger.Debug("error closing client connection", zap.Error(err))
			}
		}
	}

	h.logger.Info("closed client connections", zap.Int("count", len(clients)))
}

// Shutdown stops accepting connections, closes the existing ones, and waits
// for every pump goroutine to finish or for timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.mu.Lock()
	h.stopping = true
	h.mu.Unlock()

	h.shutdownClients()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
