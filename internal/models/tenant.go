package models

import (
	"strings"
	"time"
)

// Role is the access tier of a user inside a tenant.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleAuditor Role = "AUDITOR"
	RoleClient  Role = "CLIENT"
)

// ParseRole normalises free-form input.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleAuditor, RoleClient:
		return r, true
	}
	return "", false
}

// Tenant is the organisation that owns all other data.
type Tenant struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// User is a member of exactly one tenant.
type User struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenantId" db:"tenant_id"`
	Email    string `json:"email" db:"email"`
	Name     string `json:"name" db:"name"`
	Role     Role   `json:"role" db:"role"`
}

// Session binds an opaque credential to a user until it expires.
type Session struct {
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
}
