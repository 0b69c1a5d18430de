package websocket

import (
	"strings"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

// Topic names a broadcast channel. Values can only be built through the
// constructors below, so every topic is one of user:<id>, tenant:<id> or
// <entityType>:<id>.
type Topic struct {
	kind string
	id   string
}

func UserTopic(userID string) Topic {
	return Topic{kind: "user", id: userID}
}

func TenantTopic(tenantID string) Topic {
	return Topic{kind: "tenant", id: tenantID}
}

func EntityTopic(t models.EntityType, id string) Topic {
	return Topic{kind: string(t), id: id}
}

// ParseTopic is the inverse of Topic.String.
func ParseTopic(s string) (Topic, bool) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return Topic{}, false
	}
	if kind == "user" || kind == "tenant" {
		return Topic{kind: kind, id: id}, true
	}
	if et, ok := models.ParseEntityType(kind); ok {
		return EntityTopic(et, id), true
	}
	return Topic{}, false
}

func (t Topic) String() string {
	return t.kind + ":" + t.id
}

// IsZero reports whether t was never constructed.
func (t Topic) IsZero() bool {
	return t.kind == ""
}
