package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

// SessionCookie is the cookie carrying the session credential.
const SessionCookie = "session_token"

// Identity is the verified caller of a request or connection.
type Identity struct {
	UserID   string      `json:"userId"`
	TenantID string      `json:"tenantId"`
	Role     models.Role `json:"role"`
}

type sessionStore interface {
	UserBySession(ctx context.Context, token string, now time.Time) (models.User, error)
}

// SessionResolver turns a session credential into an Identity.
type SessionResolver struct {
	store sessionStore
	now   func() time.Time
}

func NewSessionResolver(store sessionStore) *SessionResolver {
	return &SessionResolver{store: store, now: time.Now}
}

// Resolve authenticates the request. Every failure mode (no credential,
// malformed credential, unknown or expired session) wraps
// models.ErrAuthentication.
func (r *SessionResolver) Resolve(req *http.Request) (Identity, error) {
	token := credential(req)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: missing session credential", models.ErrAuthentication)
	}
	if _, err := uuid.Parse(token); err != nil {
		return Identity{}, fmt.Errorf("%w: malformed session credential", models.ErrAuthentication)
	}

	user, err := r.store.UserBySession(req.Context(), token, r.now())
	if errors.Is(err, models.ErrNotFound) {
		return Identity{}, fmt.Errorf("%w: unknown or expired session", models.ErrAuthentication)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("resolving session: %w", err)
	}

	return Identity{UserID: user.ID, TenantID: user.TenantID, Role: user.Role}, nil
}

// credential looks in the session cookie, then the bearer header, then the
// "token" query parameter (browsers cannot set headers on a WebSocket upgrade).
func credential(req *http.Request) string {
	if c, err := req.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := req.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return req.URL.Query().Get("token")
}
