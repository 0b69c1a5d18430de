// Package storagetest provides in-memory storage and fixtures for tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
	"github.com/BetterCallFirewall/Pentrack/internal/storage"
)

// New creates an in-memory SQLiteStorage with all migrations applied.
// It is closed automatically when the test completes.
func New(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	s, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("creating test storage: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test storage: %v", err)
		}
	})

	return s
}

// Tenant is a seeded tenant with one user per role and one pentest.
type Tenant struct {
	Tenant  models.Tenant
	Admin   models.User
	Auditor models.User
	Client  models.User
	Target  models.Target
	Pentest models.Pentest
}

// Seed creates a tenant named name with an admin, an auditor, a client, a
// target and a pentest running from 2024-03-01 to 2024-03-15.
func Seed(t *testing.T, s *storage.SQLiteStorage, name string) Tenant {
	t.Helper()
	ctx := context.Background()

	var out Tenant
	var err error

	out.Tenant, err = s.CreateTenant(ctx, models.Tenant{Name: name})
	must(t, err)

	out.Admin, err = s.CreateUser(ctx, models.User{
		TenantID: out.Tenant.ID, Email: "admin@" + name + ".test", Name: name + " Admin", Role: models.RoleAdmin,
	})
	must(t, err)
	out.Auditor, err = s.CreateUser(ctx, models.User{
		TenantID: out.Tenant.ID, Email: "auditor@" + name + ".test", Name: name + " Auditor", Role: models.RoleAuditor,
	})
	must(t, err)
	out.Client, err = s.CreateUser(ctx, models.User{
		TenantID: out.Tenant.ID, Email: "client@" + name + ".test", Name: name + " Client", Role: models.RoleClient,
	})
	must(t, err)

	out.Target, err = s.CreateTarget(ctx, models.Target{
		TenantID: out.Tenant.ID, Name: name + " web app", Kind: "web", Address: "https://" + name + ".test",
	})
	must(t, err)

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	out.Pentest, err = s.CreatePentest(ctx, models.Pentest{
		TenantID:    out.Tenant.ID,
		TargetID:    out.Target.ID,
		Title:       name + " external assessment",
		Status:      models.PentestInProgress,
		Methodology: "OWASP WSTG",
		StartDate:   &start,
		EndDate:     &end,
	})
	must(t, err)

	return out
}

// Session issues a one-hour session for the user and returns its token.
func Session(t *testing.T, s *storage.SQLiteStorage, userID string) string {
	t.Helper()
	sess, err := s.CreateSession(context.Background(), userID, time.Hour)
	must(t, err)
	return sess.Token
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seeding storage: %v", err)
	}
}
