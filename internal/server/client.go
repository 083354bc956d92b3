// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var (
	// ErrClientClosed is returned by Deliver after the client has been torn down.
	ErrClientClosed = errors.New("client closed")
	// ErrSendBufferFull is returned by Deliver when the client's writer has fallen behind.
	ErrSendBufferFull = errors.New("client send buffer full")
)

// Client is one connected player. It implements Handle and runs the
// session loop for its connection: readPump turns inbound actions into
// broadcasts, writePump drains the outbound buffer onto the socket.
type Client struct {
	id           uuid.UUID
	conn         *websocket.Conn
	send         chan []byte
	hub          *Hub
	addr         string
	writeTimeout time.Duration
	limiter      *rate.Limiter
	logger       *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient creates a Client for conn. The send buffer is sized from the
// hub's configuration; conn may be nil in tests that never start the pumps.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := hub.Config()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := uuid.New()
	return &Client{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, cfg.SendBufferSize),
		hub:          hub,
		addr:         addr,
		writeTimeout: cfg.WriteTimeout,
		limiter:      newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		logger:       hub.logger.With(zap.Stringer("client_id", id), zap.String("remote_addr", addr)),
	}
}

// ID returns the client's connection identity.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Addr returns the remote address the client connected from.
func (c *Client) Addr() string {
	return c.addr
}

// GetSendChan returns the client's send channel for reading outgoing messages.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// Deliver queues payload for the writer without blocking.
func (c *Client) Deliver(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the writer, which sends a close frame and closes the socket.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Debug("error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Debug("error setting read deadline in pong handler", zap.Error(err))
		}
		return nil
	})
}

// logReadError records why the read loop is ending.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Info("message exceeded maximum size",
			zap.String("limit", humanize.Bytes(uint64(c.hub.Config().MaxMessageSize))))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.logger.Info("client disconnected", zap.Error(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Info("client connection closed", zap.Error(err))
	case websocket.IsUnexpectedCloseError(err):
		c.logger.Warn("unexpected websocket close", zap.Error(err))
	default:
		c.logger.Warn("websocket read error", zap.Error(err))
	}
}

// processMessage turns one inbound frame into at most one broadcast and
// reports whether an event was broadcast. Rate-limited, malformed and
// unknown messages are dropped without telling the sender.
func (c *Client) processMessage(raw []byte) bool {
	if c.limiter != nil && !c.limiter.Allow() {
		c.ignore("rate_limited", nil)
		return false
	}

	action, err := DecodeAction(raw)
	if err != nil {
		c.ignore("malformed", err)
		return false
	}

	ev, err := c.hub.game.Handle(action)
	if err != nil {
		c.ignore("unknown_action", err)
		return false
	}

	c.hub.broadcaster.Broadcast(ev)
	return true
}

func (c *Client) ignore(reason string, err error) {
	c.hub.metrics.IgnoredMessages.WithLabelValues(reason).Inc()
	c.logger.Debug("ignoring inbound message", zap.String("reason", reason), zap.Error(err))
}

// readPump is the session loop. It returns on the first read error, after
// which the client is deregistered and its connection closed.
func (c *Client) readPump() {
	defer func() {
		c.hub.detach(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Debug("error closing connection in readPump", zap.Error(err))
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		c.processMessage(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		if !ok {
			return c.writeCloseMessage()
		}
		return c.writeTextMessage(message)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection closes the socket; the read loop observes this and deregisters.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("error closing connection in writePump", zap.Error(err))
	}
}

// writeCloseMessage sends a close frame to the client
func (c *Client) writeCloseMessage() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("error writing close message", zap.Error(err))
	}
	return false
}

// writeTextMessage writes one event as its own text frame.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.logger.Debug("error setting write deadline", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Info("write failed, abandoning connection", zap.Error(err))
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		c.logger.Debug("error setting write deadline for ping", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Info("ping failed, abandoning connection", zap.Error(err))
		return false
	}
	return true
}
