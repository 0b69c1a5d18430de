package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/auth"
	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

type fakeAuth map[string]auth.Identity

func (f fakeAuth) Resolve(r *http.Request) (auth.Identity, error) {
	id, ok := f[r.URL.Query().Get("token")]
	if !ok {
		return auth.Identity{}, models.ErrAuthentication
	}
	return id, nil
}

// fakeVerifier allows "<tenant>/<type>:<id>" keys.
type fakeVerifier map[string]bool

func (f fakeVerifier) CanSubscribe(_ context.Context, _, tenantID string, t models.EntityType, id string) bool {
	return f[tenantID+"/"+string(t)+":"+id]
}

type blockingVerifier struct{}

func (blockingVerifier) CanSubscribe(ctx context.Context, _, _ string, _ models.EntityType, _ string) bool {
	<-ctx.Done()
	return ctx.Err() == nil
}

type fakeInbox struct {
	owned map[string]string
}

func (f *fakeInbox) MarkRead(_ context.Context, id, userID string) (models.Notification, error) {
	if f.owned[id] != userID {
		return models.Notification{}, models.ErrNotFound
	}
	return models.Notification{ID: id, UserID: userID, Read: true}, nil
}

func (f *fakeInbox) MarkAllRead(context.Context, string) (int64, error) { return 3, nil }

func (f *fakeInbox) UnreadCount(context.Context, string) (int, error) { return 7, nil }

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var identities = fakeAuth{
	"alice": {UserID: "alice", TenantID: "t1", Role: models.RoleAdmin},
	"bob":   {UserID: "bob", TenantID: "t1", Role: models.RoleAuditor},
	"eve":   {UserID: "eve", TenantID: "t2", Role: models.RoleAdmin},
}

func newTestHub(t *testing.T, cfg Config, verifier SubscriptionVerifier) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(cfg, identities, verifier, zap.NewNop())
	h.SetInbox(&fakeInbox{owned: map[string]string{"n1": "alice"}})
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
		srv.Close()
	})
	return h, srv
}

func dial(t *testing.T, h *Hub, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return h.IsUserOnline(identities[token].UserID) },
		time.Second, 5*time.Millisecond)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": event, "data": data}))
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var f frame
	err := conn.ReadJSON(&f)
	require.Error(t, err, "unexpected frame %s", f.Type)
}

func subscribe(t *testing.T, conn *websocket.Conn, typ, id string) frame {
	t.Helper()
	send(t, conn, EventSubscribe, EntityRef{Type: typ, ID: id})
	return read(t, conn)
}

func TestServeWS_RejectsUnauthenticated(t *testing.T) {
	_, srv := newTestHub(t, Config{}, fakeVerifier{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=nobody"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubscribe(t *testing.T) {
	h, srv := newTestHub(t, Config{}, fakeVerifier{"t1/finding:f1": true})
	conn := dial(t, h, srv, "alice")

	tests := []struct {
		name      string
		typ, id   string
		wantEvent string
	}{
		{"allowed", "finding", "f1", EventSubscribed},
		{"other tenant or missing", "finding", "f2", EventError},
		{"unknown type", "comment", "c1", EventError},
		{"empty id", "finding", "", EventError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := subscribe(t, conn, tt.typ, tt.id)
			assert.Equal(t, tt.wantEvent, got.Type)
			if tt.wantEvent == EventError {
				assert.JSONEq(t, `{"message":"Access denied"}`, string(got.Data))
			}
		})
	}

	delivered := h.Publish(EntityTopic(models.EntityFinding, "f1"), EventEntityUpdate,
		EntityUpdate{Type: models.EntityFinding, ID: "f1", Update: map[string]string{"status": "RESOLVED"}})
	assert.Equal(t, 1, delivered)
	assert.Equal(t, EventEntityUpdate, read(t, conn).Type)
}

func TestSubscribe_TimeoutFailsClosed(t *testing.T) {
	h, srv := newTestHub(t, Config{SubscribeTimeout: 20 * time.Millisecond}, blockingVerifier{})
	conn := dial(t, h, srv, "alice")

	got := subscribe(t, conn, "pentest", "p1")
	assert.Equal(t, EventError, got.Type)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	h, srv := newTestHub(t, Config{}, fakeVerifier{"t1/pentest:p1": true})
	conn := dial(t, h, srv, "alice")
	require.Equal(t, EventSubscribed, subscribe(t, conn, "pentest", "p1").Type)

	send(t, conn, EventUnsubscribe, EntityRef{Type: "pentest", ID: "p1"})
	assert.Equal(t, EventUnsubscribed, read(t, conn).Type)

	assert.Zero(t, h.Publish(EntityTopic(models.EntityPentest, "p1"), EventEntityUpdate, nil))
}

func TestPublish_PerConnectionFanOut(t *testing.T) {
	h, srv := newTestHub(t, Config{}, fakeVerifier{"t1/finding:f1": true})
	first := dial(t, h, srv, "alice")
	second := dial(t, h, srv, "alice")
	require.Equal(t, EventSubscribed, subscribe(t, first, "finding", "f1").Type)
	require.Equal(t, EventSubscribed, subscribe(t, second, "finding", "f1").Type)

	assert.Equal(t, []string{"alice"}, h.OnlineUsersInTenant("t1"))
	assert.Equal(t, 2, h.Publish(EntityTopic(models.EntityFinding, "f1"), EventEntityUpdate, nil))
	assert.Equal(t, EventEntityUpdate, read(t, first).Type)
	assert.Equal(t, EventEntityUpdate, read(t, second).Type)
}

func TestPublishPerUser(t *testing.T) {
	h, srv := newTestHub(t, Config{}, fakeVerifier{})
	alice := dial(t, h, srv, "alice")
	bob := dial(t, h, srv, "bob")
	eve := dial(t, h, srv, "eve")

	delivered := h.PublishPerUser(TenantTopic("t1"), EventNotification, func(userID string) (any, bool) {
		if userID == "bob" {
			return nil, false
		}
		return models.Notification{ID: "row-" + userID, UserID: userID}, true
	})
	assert.Equal(t, 1, delivered)

	got := read(t, alice)
	assert.Equal(t, EventNotification, got.Type)
	var n models.Notification
	require.NoError(t, json.Unmarshal(got.Data, &n))
	assert.Equal(t, "row-alice", n.ID)

	expectSilence(t, bob)
	expectSilence(t, eve)
}

func TestTyping_RelayedToOthers(t *testing.T) {
	h, srv := newTestHub(t, Config{}, fakeVerifier{"t1/finding:f1": true})
	alice := dial(t, h, srv, "alice")
	bob := dial(t, h, srv, "bob")
	require.Equal(t, EventSubscribed, subscribe(t, alice, "finding", "f1").Type)
	require.Equal(t, EventSubscribed, subscribe(t, bob, "finding", "f1").Type)

	send(t, alice, EventTyping, Typing{EntityType: "finding", EntityID: "f1", IsTyping: true})

	got := read(t, bob)
	assert.Equal(t, EventUserTyping, got.Type)
	assert.JSONEq(t, `{"userId":"alice","entityType":"finding","entityId":"f1","isTyping":true}`, string(got.Data))
	expectSilence(t, alice)
}

func TestTyping_RequiresSubscription(t *testing.T) {
	h, srv := newTestHub(t, Config{}, fakeVerifier{})
	conn := dial(t, h, srv, "alice")

	send(t, conn, EventTyping, Typing{EntityType: "finding", EntityID: "f1", IsTyping: true})
	got := read(t, conn)
	assert.Equal(t, EventError, got.Type)
}

func TestInboxEvents(t *testing.T) {
	h, srv := newTestHub(t, Config{}, fakeVerifier{})
	alice := dial(t, h, srv, "alice")
	bob := dial(t, h, srv, "bob")

	tests := []struct {
		name     string
		conn     *websocket.Conn
		event    string
		data     any
		wantType string
		wantData string
	}{
		{"mark own", alice, EventMarkAsRead, map[string]string{"notificationId": "n1"}, EventNotificationRead, `{"id":"n1"}`},
		{"mark foreign", bob, EventMarkAsRead, map[string]string{"notificationId": "n1"}, EventError, `{"message":"Notification not found"}`},
		{"mark all", alice, EventMarkAllAsRead, nil, EventAllNotificationsRead, `{"updated":3}`},
		{"unread count", alice, EventGetUnreadCount, nil, EventUnreadCount, `7`},
		{"unknown", alice, "dance", nil, EventError, `{"message":"Unknown event"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, tt.conn, tt.event, tt.data)
			got := read(t, tt.conn)
			assert.Equal(t, tt.wantType, got.Type)
			assert.JSONEq(t, tt.wantData, string(got.Data))
		})
	}

	// the ack went to the requester only
	expectSilence(t, bob)
}

func TestBadFrameKeepsConnectionOpen(t *testing.T) {
	h, srv := newTestHub(t, Config{}, fakeVerifier{})
	conn := dial(t, h, srv, "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, EventError, read(t, conn).Type)

	send(t, conn, EventGetUnreadCount, nil)
	assert.Equal(t, EventUnreadCount, read(t, conn).Type)
}

func TestDisconnect_Unregisters(t *testing.T) {
	h, srv := newTestHub(t, Config{}, fakeVerifier{"t1/finding:f1": true})
	conn := dial(t, h, srv, "alice")
	require.Equal(t, EventSubscribed, subscribe(t, conn, "finding", "f1").Type)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return !h.IsUserOnline("alice") }, time.Second, 5*time.Millisecond)
	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Zero(t, h.rooms.Len(), "no topic may outlive its last member")
	assert.Empty(t, h.clients)
}

func TestJoinAfterUnregisterIsNoop(t *testing.T) {
	h := NewHub(Config{}, identities, fakeVerifier{}, zap.NewNop())
	c := &Client{id: "c1", identity: identities["alice"], hub: h, send: make(chan []byte, 1), done: make(chan struct{})}
	require.True(t, h.register(c))

	h.unregister(c.id)
	h.unregister(c.id)

	assert.False(t, h.join(c.id, EntityTopic(models.EntityPentest, "p1")))
	assert.Zero(t, h.rooms.Len())
	assert.Equal(t, 0, h.registry.Len())
}

func TestSendBufferFullDrops(t *testing.T) {
	h := NewHub(Config{SendBuffer: 2}, identities, fakeVerifier{}, zap.NewNop())
	c := newClient(h, "c1", identities["alice"], nil)
	require.True(t, h.register(c))

	delivered := 0
	for i := 0; i < 5; i++ {
		delivered += h.Publish(UserTopic("alice"), EventNotification, fmt.Sprint(i))
	}
	assert.Equal(t, 2, delivered)
}
