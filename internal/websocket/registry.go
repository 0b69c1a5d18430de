package websocket

import (
	"sort"

	"github.com/BetterCallFirewall/Pentrack/internal/broker"
	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

// ConnID identifies one live socket. A user may hold many.
type ConnID string

// ConnectionRecord is the bookkeeping for one live socket.
type ConnectionRecord struct {
	ID       ConnID
	UserID   string
	TenantID string
	Role     models.Role
	Topics   map[Topic]struct{}
}

// Registry indexes live connections by id, by user and by tenant.
// It performs no locking and no I/O; the Hub serialises access.
type Registry struct {
	connections map[ConnID]*ConnectionRecord
	byUser      *broker.Broker[string, ConnID]
	byTenant    *broker.Broker[string, ConnID]
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[ConnID]*ConnectionRecord),
		byUser:      broker.New[string, ConnID](),
		byTenant:    broker.New[string, ConnID](),
	}
}

// Register inserts the connection into every index. Registering an id that
// is already present changes nothing and returns false.
func (r *Registry) Register(id ConnID, userID, tenantID string, role models.Role) bool {
	if _, ok := r.connections[id]; ok {
		return false
	}
	r.connections[id] = &ConnectionRecord{
		ID:       id,
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		Topics:   make(map[Topic]struct{}),
	}
	r.byUser.Join(userID, id)
	r.byTenant.Join(tenantID, id)
	return true
}

// Unregister removes the connection from every index and returns its final
// record. Unknown ids are a no-op.
func (r *Registry) Unregister(id ConnID) (*ConnectionRecord, bool) {
	rec, ok := r.connections[id]
	if !ok {
		return nil, false
	}
	delete(r.connections, id)
	r.byUser.Leave(rec.UserID, id)
	r.byTenant.Leave(rec.TenantID, id)
	return rec, true
}

// Get returns the live record for id.
func (r *Registry) Get(id ConnID) (*ConnectionRecord, bool) {
	rec, ok := r.connections[id]
	return rec, ok
}

// IsUserOnline reports whether the user holds at least one connection.
func (r *Registry) IsUserOnline(userID string) bool {
	return r.byUser.Has(userID)
}

// OnlineUsersInTenant returns each connected user of the tenant once,
// sorted, however many connections they hold.
func (r *Registry) OnlineUsersInTenant(tenantID string) []string {
	seen := make(map[string]struct{})
	for _, id := range r.byTenant.Members(tenantID) {
		if rec, ok := r.connections[id]; ok {
			seen[rec.UserID] = struct{}{}
		}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	return len(r.connections)
}
