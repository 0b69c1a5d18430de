package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/auth"
)

// Client is one live socket. readPump handles inbound events strictly in
// order; writePump is the only writer on conn.
type Client struct {
	id       ConnID
	identity auth.Identity
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, id ConnID, identity auth.Identity, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:       id,
		identity: identity,
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, h.cfg.SendBuffer),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// enqueue never blocks. It reports false when the buffer is full or the
// client is closed.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// emit sends a reply to this connection only.
func (c *Client) emit(event string, data any) {
	payload, err := encode(event, data)
	if err != nil {
		c.hub.logger.Error("failed to marshal reply", zap.String("conn_id", string(c.id)), zap.Error(err))
		return
	}
	if !c.enqueue(payload) {
		c.hub.logger.Warn("send buffer full, dropping reply",
			zap.String("conn_id", string(c.id)),
			zap.String("event", event))
	}
}

func (c *Client) emitError(message string) {
	c.emit(EventError, ErrorPayload{Message: message})
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c.id)
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read failed", zap.String("conn_id", string(c.id)), zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.emitError(msgBadRequest)
			continue
		}
		c.hub.handle(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.hub.cfg.WriteWait))
			return
		}
	}
}
