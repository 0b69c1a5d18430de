package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/auth"
	"github.com/BetterCallFirewall/Pentrack/internal/broker"
	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

// Config bounds every connection served by a Hub.
type Config struct {
	SendBuffer       int
	SubscribeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	MaxMessageSize   int64
	AllowedOrigins   []string
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.SubscribeTimeout <= 0 {
		c.SubscribeTimeout = 5 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	return c
}

// Authenticator resolves the caller of an upgrade request.
type Authenticator interface {
	Resolve(r *http.Request) (auth.Identity, error)
}

// SubscriptionVerifier decides whether a user may watch an entity topic.
type SubscriptionVerifier interface {
	CanSubscribe(ctx context.Context, userID, tenantID string, entityType models.EntityType, entityID string) bool
}

// Inbox serves the notification read-state events.
type Inbox interface {
	MarkRead(ctx context.Context, notificationID, userID string) (models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// Hub owns every live connection of the process: the connection registry,
// the topic memberships and the client handles. One lock guards all three so
// that a join racing with unregister can never resurrect a connection.
type Hub struct {
	cfg      Config
	authn    Authenticator
	verifier SubscriptionVerifier
	inbox    Inbox
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	registry *Registry
	rooms    *broker.Broker[Topic, ConnID]
	clients  map[ConnID]*Client
	closed   bool

	wg sync.WaitGroup
}

func NewHub(cfg Config, authn Authenticator, verifier SubscriptionVerifier, logger *zap.Logger) *Hub {
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg:      cfg,
		authn:    authn,
		verifier: verifier,
		logger:   logger,
		registry: NewRegistry(),
		rooms:    broker.New[Topic, ConnID](),
		clients:  make(map[ConnID]*Client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SetInbox attaches the notification inbox. It must be called before the
// hub starts serving.
func (h *Hub) SetInbox(inbox Inbox) {
	h.inbox = inbox
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 || slices.Contains(h.cfg.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, origin)
}

// ServeWS authenticates the request and upgrades it. Unauthenticated
// requests get 401 and are never upgraded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id, err := h.authn.Resolve(r)
	if err != nil {
		if !errors.Is(err, models.ErrAuthentication) {
			h.logger.Error("websocket authentication failed", zap.Error(err))
		}
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h, ConnID(uuid.NewString()), id, conn)
	if !h.register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(h.cfg.WriteWait))
		_ = conn.Close()
		return
	}

	h.logger.Info("websocket client connected",
		zap.String("conn_id", string(client.id)),
		zap.String("user_id", id.UserID),
		zap.String("tenant_id", id.TenantID))

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// register adds the client to the registry and to its personal and tenant
// topics.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if !h.registry.Register(c.id, c.identity.UserID, c.identity.TenantID, c.identity.Role) {
		return false
	}
	h.clients[c.id] = c
	h.joinLocked(c.id, UserTopic(c.identity.UserID))
	h.joinLocked(c.id, TenantTopic(c.identity.TenantID))
	return true
}

// unregister drops every trace of the connection. Calling it again is a no-op.
func (h *Hub) unregister(id ConnID) {
	h.mu.Lock()
	rec, ok := h.registry.Unregister(id)
	if ok {
		for topic := range rec.Topics {
			h.rooms.Leave(topic, id)
		}
		delete(h.clients, id)
	}
	h.mu.Unlock()

	if ok {
		h.logger.Info("websocket client disconnected",
			zap.String("conn_id", string(id)),
			zap.String("user_id", rec.UserID))
	}
}

// join adds a live connection to topic. It reports false when the
// connection is already gone.
func (h *Hub) join(id ConnID, topic Topic) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.joinLocked(id, topic)
}

func (h *Hub) joinLocked(id ConnID, topic Topic) bool {
	rec, ok := h.registry.Get(id)
	if !ok {
		return false
	}
	rec.Topics[topic] = struct{}{}
	h.rooms.Join(topic, id)
	return true
}

func (h *Hub) leave(id ConnID, topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rec, ok := h.registry.Get(id); ok {
		delete(rec.Topics, topic)
	}
	h.rooms.Leave(topic, id)
}

func (h *Hub) isMember(id ConnID, topic Topic) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms.IsMember(topic, id)
}

// Publish delivers one event to every connection currently in topic and
// returns how many accepted it. Delivery is best effort.
func (h *Hub) Publish(topic Topic, event string, data any) int {
	payload, err := encode(event, data)
	if err != nil {
		h.logger.Error("failed to marshal message", zap.String("topic", topic.String()), zap.Error(err))
		return 0
	}
	return h.fanOut(topic, func(*Client) []byte { return payload })
}

// PublishPerUser delivers to every connection in topic a payload built for
// the connection's user. Users for which payloadFor reports false are
// skipped. The payload is built and encoded once per user.
func (h *Hub) PublishPerUser(topic Topic, event string, payloadFor func(userID string) (any, bool)) int {
	cache := make(map[string][]byte)
	return h.fanOut(topic, func(c *Client) []byte {
		userID := c.identity.UserID
		if payload, ok := cache[userID]; ok {
			return payload
		}
		var payload []byte
		if data, ok := payloadFor(userID); ok {
			encoded, err := encode(event, data)
			if err != nil {
				h.logger.Error("failed to marshal message", zap.String("topic", topic.String()), zap.Error(err))
			} else {
				payload = encoded
			}
		}
		cache[userID] = payload
		return payload
	})
}

// publishExcept relays to every connection in topic but the sender.
func (h *Hub) publishExcept(topic Topic, sender ConnID, event string, data any) int {
	payload, err := encode(event, data)
	if err != nil {
		h.logger.Error("failed to marshal message", zap.String("topic", topic.String()), zap.Error(err))
		return 0
	}
	return h.fanOut(topic, func(c *Client) []byte {
		if c.id == sender {
			return nil
		}
		return payload
	})
}

// fanOut snapshots the topic membership and enqueues on each member. A nil
// payload skips the member.
func (h *Hub) fanOut(topic Topic, payloadFor func(*Client) []byte) int {
	h.mu.RLock()
	members := h.rooms.Members(topic)
	targets := make([]*Client, 0, len(members))
	for _, id := range members {
		if c, ok := h.clients[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		payload := payloadFor(c)
		if payload == nil {
			continue
		}
		if c.enqueue(payload) {
			delivered++
			continue
		}
		h.logger.Warn("send buffer full, dropping message",
			zap.String("conn_id", string(c.id)),
			zap.String("topic", topic.String()))
	}
	return delivered
}

// IsUserOnline reports whether the user holds a live connection.
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registry.IsUserOnline(userID)
}

// OnlineUsersInTenant lists each connected user of the tenant once.
func (h *Hub) OnlineUsersInTenant(tenantID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registry.OnlineUsersInTenant(tenantID)
}

// Shutdown refuses new connections, closes the live ones and waits for
// their pumps to exit or ctx to end.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(Message{
		Type:      event,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}
