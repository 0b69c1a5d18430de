package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

// CreateTenant inserts a tenant. A missing ID is generated.
func (s *SQLiteStorage) CreateTenant(ctx context.Context, t models.Tenant) (models.Tenant, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO tenants (id, name) VALUES (?, ?)", t.ID, t.Name)
	if err != nil {
		return models.Tenant{}, fmt.Errorf("creating tenant: %w", err)
	}
	return t, nil
}

// CreateUser inserts a user. A missing ID is generated.
func (s *SQLiteStorage) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, name, role)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.TenantID, u.Email, u.Name, string(u.Role),
	)
	if err != nil {
		return models.User{}, fmt.Errorf("creating user %s: %w", u.Email, err)
	}
	return u, nil
}

// UserByID loads a single user.
func (s *SQLiteStorage) UserByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, "SELECT id, tenant_id, email, name, role FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("getting user %s: %w", id, err)
	}
	return u, nil
}

// UsersInTenant lists members of a tenant. An empty role returns everyone.
func (s *SQLiteStorage) UsersInTenant(ctx context.Context, tenantID string, role models.Role) ([]models.User, error) {
	query := "SELECT id, tenant_id, email, name, role FROM users WHERE tenant_id = ?"
	args := []any{tenantID}
	if role != "" {
		query += " AND role = ?"
		args = append(args, string(role))
	}
	query += " ORDER BY id"

	var users []models.User
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("listing users of tenant %s: %w", tenantID, err)
	}
	return users, nil
}

// CreateSession issues a new opaque session token for the user.
func (s *SQLiteStorage) CreateSession(ctx context.Context, userID string, ttl time.Duration) (models.Session, error) {
	sess := models.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl).UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		sess.Token, sess.UserID, sess.ExpiresAt,
	)
	if err != nil {
		return models.Session{}, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// UserBySession resolves a session token to its user. Unknown tokens and
// tokens expired at now both yield models.ErrNotFound.
func (s *SQLiteStorage) UserBySession(ctx context.Context, token string, now time.Time) (models.User, error) {
	var row struct {
		models.User
		ExpiresAt time.Time `db:"expires_at"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT u.id, u.tenant_id, u.email, u.name, u.role, s.expires_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("resolving session: %w", err)
	}
	if !row.ExpiresAt.After(now) {
		return models.User{}, models.ErrNotFound
	}
	return row.User, nil
}
