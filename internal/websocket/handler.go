package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

// handle processes one inbound event to completion. Failures are reported
// to the sender as an error event; the connection stays open.
func (h *Hub) handle(c *Client, msg inbound) {
	switch msg.Type {
	case EventSubscribe:
		h.handleSubscribe(c, msg.Data)
	case EventUnsubscribe:
		h.handleUnsubscribe(c, msg.Data)
	case EventMarkAsRead:
		h.handleMarkAsRead(c, msg.Data)
	case EventMarkAllAsRead:
		h.handleMarkAllAsRead(c)
	case EventGetUnreadCount:
		h.handleGetUnreadCount(c)
	case EventTyping:
		h.handleTyping(c, msg.Data)
	default:
		c.emitError(msgUnknownEvent)
	}
}

func (h *Hub) handleSubscribe(c *Client, data json.RawMessage) {
	var ref EntityRef
	if err := json.Unmarshal(data, &ref); err != nil {
		c.emitError(msgBadRequest)
		return
	}

	// Unknown types and empty ids are denied like any other refusal.
	entityType, ok := models.ParseEntityType(ref.Type)
	if !ok || ref.ID == "" {
		c.emitError(msgAccessDenied)
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, h.cfg.SubscribeTimeout)
	allowed := h.verifier.CanSubscribe(ctx, c.identity.UserID, c.identity.TenantID, entityType, ref.ID)
	cancel()
	if !allowed {
		c.emitError(msgAccessDenied)
		return
	}

	topic := EntityTopic(entityType, ref.ID)
	if !h.join(c.id, topic) {
		return
	}
	h.logger.Debug("subscribed",
		zap.String("conn_id", string(c.id)),
		zap.String("topic", topic.String()))
	c.emit(EventSubscribed, ref)
}

func (h *Hub) handleUnsubscribe(c *Client, data json.RawMessage) {
	var ref EntityRef
	if err := json.Unmarshal(data, &ref); err != nil {
		c.emitError(msgBadRequest)
		return
	}
	if entityType, ok := models.ParseEntityType(ref.Type); ok {
		h.leave(c.id, EntityTopic(entityType, ref.ID))
	}
	c.emit(EventUnsubscribed, ref)
}

func (h *Hub) handleMarkAsRead(c *Client, data json.RawMessage) {
	var req markReadRequest
	if err := json.Unmarshal(data, &req); err != nil || req.NotificationID == "" {
		c.emitError(msgBadRequest)
		return
	}

	n, err := h.inbox.MarkRead(c.ctx, req.NotificationID, c.identity.UserID)
	if err != nil {
		h.inboxError(c, err)
		return
	}
	c.emit(EventNotificationRead, NotificationReadAck{ID: n.ID})
}

func (h *Hub) handleMarkAllAsRead(c *Client) {
	updated, err := h.inbox.MarkAllRead(c.ctx, c.identity.UserID)
	if err != nil {
		h.inboxError(c, err)
		return
	}
	c.emit(EventAllNotificationsRead, AllReadAck{Updated: updated})
}

func (h *Hub) handleGetUnreadCount(c *Client) {
	count, err := h.inbox.UnreadCount(c.ctx, c.identity.UserID)
	if err != nil {
		h.inboxError(c, err)
		return
	}
	c.emit(EventUnreadCount, count)
}

// handleTyping relays to the other watchers of an entity the sender is
// subscribed to.
func (h *Hub) handleTyping(c *Client, data json.RawMessage) {
	var in Typing
	if err := json.Unmarshal(data, &in); err != nil {
		c.emitError(msgBadRequest)
		return
	}
	entityType, ok := models.ParseEntityType(in.EntityType)
	if !ok {
		c.emitError(msgNotSubscribed)
		return
	}
	topic := EntityTopic(entityType, in.EntityID)
	if !h.isMember(c.id, topic) {
		c.emitError(msgNotSubscribed)
		return
	}

	h.publishExcept(topic, c.id, EventUserTyping, Typing{
		UserID:     c.identity.UserID,
		EntityType: in.EntityType,
		EntityID:   in.EntityID,
		IsTyping:   in.IsTyping,
	})
}

func (h *Hub) inboxError(c *Client, err error) {
	if errors.Is(err, models.ErrNotFound) {
		c.emitError(msgNotFound)
		return
	}
	h.logger.Error("inbox operation failed",
		zap.String("conn_id", string(c.id)),
		zap.String("user_id", c.identity.UserID),
		zap.Error(err))
	c.emitError(msgInternal)
}
