// Package notify persists inbox notifications and pushes them to live
// connections.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
	"github.com/BetterCallFirewall/Pentrack/internal/websocket"
)

// Store is the persistence the dispatcher needs.
type Store interface {
	UsersInTenant(ctx context.Context, tenantID string, role models.Role) ([]models.User, error)
	CreateNotifications(ctx context.Context, batch []models.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) (models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	EntityOwners(ctx context.Context, entityType models.EntityType, id string) ([]string, error)
	EntityCommenters(ctx context.Context, entityType models.EntityType, id string) ([]string, error)
}

// Publisher delivers events to topic members.
type Publisher interface {
	Publish(topic websocket.Topic, event string, data any) int
	PublishPerUser(topic websocket.Topic, event string, payloadFor func(userID string) (any, bool)) int
}

// Dispatcher writes every notification before pushing it: a row that failed
// to persist is never pushed.
type Dispatcher struct {
	store     Store
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time

	// commenters caches who commented on recently discussed entities. Owners
	// change with reassignment and are always read from storage.
	mu         sync.Mutex
	commenters *lru.Cache[entityKey, map[string]struct{}]
}

type entityKey struct {
	entityType models.EntityType
	id         string
}

// DefaultCommenterCacheSize is how many entities keep their commenters cached.
const DefaultCommenterCacheSize = 1024

type Option func(*options)

type options struct {
	cacheSize int
}

// WithCommenterCacheSize bounds the commenter cache to n entities, least
// recently discussed first out. Non-positive values keep the default.
func WithCommenterCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

func NewDispatcher(store Store, publisher Publisher, logger *zap.Logger, opts ...Option) *Dispatcher {
	o := options{cacheSize: DefaultCommenterCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[entityKey, map[string]struct{}](o.cacheSize)

	return &Dispatcher{
		store:      store,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
		commenters: cache,
	}
}

// NotifyUser persists one row for userID and pushes it to user:<userID>.
func (d *Dispatcher) NotifyUser(ctx context.Context, userID string, n models.Notification) (models.Notification, error) {
	batch := []models.Notification{d.rowFor(userID, n)}
	if err := d.persist(ctx, batch); err != nil {
		return models.Notification{}, err
	}
	d.publisher.Publish(websocket.UserTopic(userID), websocket.EventNotification, batch[0])
	return batch[0], nil
}

// NotifyTenant persists one row per tenant member except excludeUserID, in a
// single batch, then publishes once to tenant:<tenantID>. Each connected
// member receives their own row.
func (d *Dispatcher) NotifyTenant(ctx context.Context, tenantID string, n models.Notification, excludeUserID string) ([]models.Notification, error) {
	users, err := d.store.UsersInTenant(ctx, tenantID, "")
	if err != nil {
		return nil, fmt.Errorf("resolving members of tenant %s: %w", tenantID, err)
	}

	batch := make([]models.Notification, 0, len(users))
	for _, u := range users {
		if u.ID == excludeUserID {
			continue
		}
		batch = append(batch, d.rowFor(u.ID, n))
	}
	if len(batch) == 0 {
		return nil, nil
	}
	if err := d.persist(ctx, batch); err != nil {
		return nil, err
	}

	rows := make(map[string]models.Notification, len(batch))
	for _, row := range batch {
		rows[row.UserID] = row
	}
	d.publisher.PublishPerUser(websocket.TenantTopic(tenantID), websocket.EventNotification,
		func(userID string) (any, bool) {
			row, ok := rows[userID]
			return row, ok
		})
	return batch, nil
}

// NotifyRole runs the single-user flow for every member of tenantID holding
// role. A failure for one recipient does not stop the others.
func (d *Dispatcher) NotifyRole(ctx context.Context, tenantID string, role models.Role, n models.Notification) ([]models.Notification, error) {
	users, err := d.store.UsersInTenant(ctx, tenantID, role)
	if err != nil {
		return nil, fmt.Errorf("resolving %s members of tenant %s: %w", role, tenantID, err)
	}

	var (
		out  []models.Notification
		errs []error
	)
	for _, u := range users {
		row, err := d.NotifyUser(ctx, u.ID, n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, row)
	}
	return out, errors.Join(errs...)
}

// BroadcastEntityUpdate pushes an ephemeral change to the watchers of an
// entity. Nothing is persisted.
func (d *Dispatcher) BroadcastEntityUpdate(entityType models.EntityType, id string, update any) int {
	return d.publisher.Publish(websocket.EntityTopic(entityType, id), websocket.EventEntityUpdate, websocket.EntityUpdate{
		Type:      entityType,
		ID:        id,
		Update:    update,
		Timestamp: d.now().UTC(),
	})
}

// BroadcastComment pushes newComment to the entity's watchers and sends an
// inbox notification to every participant of the entity except the author.
// The comment must already be persisted.
func (d *Dispatcher) BroadcastComment(ctx context.Context, c models.Comment, authorName string) ([]models.Notification, error) {
	d.publisher.Publish(websocket.EntityTopic(c.EntityType, c.EntityID), websocket.EventNewComment, websocket.NewComment{
		EntityType: c.EntityType,
		EntityID:   c.EntityID,
		Comment:    c,
	})

	participants, err := d.Participants(ctx, c.EntityType, c.EntityID)
	if err != nil {
		return nil, err
	}
	d.trackCommenter(c.EntityType, c.EntityID, c.AuthorID)

	link := c.EntityType.Link(c.EntityID)
	template := models.Notification{
		Type:    models.NotificationComment,
		Title:   "New comment",
		Message: fmt.Sprintf("%s commented on a %s", authorName, c.EntityType),
		Link:    &link,
		Metadata: models.Metadata{
			"commentId":  c.ID,
			"entityType": string(c.EntityType),
			"entityId":   c.EntityID,
		},
	}

	var (
		out  []models.Notification
		errs []error
	)
	for _, userID := range participants {
		if userID == c.AuthorID {
			continue
		}
		row, err := d.NotifyUser(ctx, userID, template)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, row)
	}
	return out, errors.Join(errs...)
}

// Participants returns the users involved with an entity, sorted: its
// current owners plus everyone who commented on it. Commenters are loaded
// from storage once per cached entity and maintained incrementally.
func (d *Dispatcher) Participants(ctx context.Context, entityType models.EntityType, id string) ([]string, error) {
	owners, err := d.store.EntityOwners(ctx, entityType, id)
	if err != nil {
		return nil, fmt.Errorf("loading owners of %s %s: %w", entityType, id, err)
	}
	commenters, err := d.commentersOf(ctx, entityKey{entityType, id})
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(owners)+len(commenters))
	for _, uid := range owners {
		set[uid] = struct{}{}
	}
	for _, uid := range commenters {
		set[uid] = struct{}{}
	}
	return setToSlice(set), nil
}

// CachedEntities reports how many entities have their commenters cached.
func (d *Dispatcher) CachedEntities() int {
	return d.commenters.Len()
}

func (d *Dispatcher) commentersOf(ctx context.Context, key entityKey) ([]string, error) {
	d.mu.Lock()
	if set, ok := d.commenters.Get(key); ok {
		out := setToSlice(set)
		d.mu.Unlock()
		return out, nil
	}
	d.mu.Unlock()

	ids, err := d.store.EntityCommenters(ctx, key.entityType, key.id)
	if err != nil {
		return nil, fmt.Errorf("loading commenters of %s %s: %w", key.entityType, key.id, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// Another caller may have loaded and extended the set meanwhile.
	set, ok := d.commenters.Get(key)
	if !ok {
		set = make(map[string]struct{}, len(ids))
		d.commenters.Add(key, set)
	}
	for _, uid := range ids {
		set[uid] = struct{}{}
	}
	return setToSlice(set), nil
}

// trackCommenter records a new comment author. Entities whose set is not
// cached are left alone; storage already has the comment.
func (d *Dispatcher) trackCommenter(entityType models.EntityType, id, userID string) {
	if userID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if set, ok := d.commenters.Peek(entityKey{entityType, id}); ok {
		set[userID] = struct{}{}
	}
}

// === Inbox ===

func (d *Dispatcher) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	return d.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

// MarkRead flags a notification owned by userID. Foreign or unknown ids
// yield models.ErrNotFound.
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID, userID string) (models.Notification, error) {
	return d.store.MarkNotificationRead(ctx, notificationID, userID)
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return d.store.MarkAllNotificationsRead(ctx, userID)
}

func (d *Dispatcher) UnreadCount(ctx context.Context, userID string) (int, error) {
	return d.store.CountUnreadNotifications(ctx, userID)
}

func (d *Dispatcher) rowFor(userID string, n models.Notification) models.Notification {
	row := n
	row.ID = ""
	row.UserID = userID
	row.Read = false
	row.ReadAt = nil
	row.CreatedAt = d.now().UTC()
	return row
}

func (d *Dispatcher) persist(ctx context.Context, batch []models.Notification) error {
	if err := d.store.CreateNotifications(ctx, batch); err != nil {
		d.logger.Error("failed to persist notifications, push suppressed",
			zap.Int("recipients", len(batch)),
			zap.String("type", string(batch[0].Type)),
			zap.Error(err))
		return fmt.Errorf("persisting notifications: %w", err)
	}
	return nil
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
