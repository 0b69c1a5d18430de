package websocket

import (
	"encoding/json"
	"time"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

// Client → server events.
const (
	EventSubscribe      = "subscribe"
	EventUnsubscribe    = "unsubscribe"
	EventMarkAsRead     = "markAsRead"
	EventMarkAllAsRead  = "markAllAsRead"
	EventGetUnreadCount = "getUnreadCount"
	EventTyping         = "typing"
)

// Server → client events.
const (
	EventSubscribed           = "subscribed"
	EventUnsubscribed         = "unsubscribed"
	EventNotificationRead     = "notificationRead"
	EventAllNotificationsRead = "allNotificationsRead"
	EventUnreadCount          = "unreadCount"
	EventUserTyping           = "userTyping"
	EventNotification         = "notification"
	EventEntityUpdate         = "entityUpdate"
	EventNewComment           = "newComment"
	EventError                = "error"
)

// Message is the envelope of every server → client frame.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// inbound is the envelope of every client → server frame.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EntityRef addresses an entity topic in subscribe/unsubscribe traffic.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type markReadRequest struct {
	NotificationID string `json:"notificationId"`
}

type NotificationReadAck struct {
	ID string `json:"id"`
}

type AllReadAck struct {
	Updated int64 `json:"updated"`
}

// Typing is both the inbound typing event and, with UserID set, the relayed
// userTyping event.
type Typing struct {
	UserID     string `json:"userId,omitempty"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	IsTyping   bool   `json:"isTyping"`
}

// EntityUpdate is the ephemeral payload pushed to <entityType>:<id> watchers.
type EntityUpdate struct {
	Type      models.EntityType `json:"type"`
	ID        string            `json:"id"`
	Update    any               `json:"update"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewComment is pushed to entity watchers when a comment is added.
type NewComment struct {
	EntityType models.EntityType `json:"entityType"`
	EntityID   string            `json:"entityId"`
	Comment    models.Comment    `json:"comment"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

const (
	msgAccessDenied  = "Access denied"
	msgNotSubscribed = "Not subscribed"
	msgBadRequest    = "Invalid message"
	msgUnknownEvent  = "Unknown event"
	msgNotFound      = "Notification not found"
	msgInternal      = "Internal error"
)
