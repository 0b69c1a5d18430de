// Package access answers whether a caller may see an entity.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

// lookupFunc reports whether entity id exists and belongs to tenantID.
type lookupFunc func(ctx context.Context, id, tenantID string) (bool, error)

// Store provides the per-type tenant ownership lookups.
type Store interface {
	PentestInTenant(ctx context.Context, id, tenantID string) (bool, error)
	FindingInTenant(ctx context.Context, id, tenantID string) (bool, error)
	TargetInTenant(ctx context.Context, id, tenantID string) (bool, error)
	ReportInTenant(ctx context.Context, id, tenantID string) (bool, error)
}

// Verifier checks tenant ownership of entities. A missing entity and an
// entity owned by another tenant produce the same answer.
type Verifier struct {
	lookups map[models.EntityType]lookupFunc
	timeout time.Duration
	logger  *zap.Logger
}

// NewVerifier binds one lookup to every entity type. A zero timeout means
// the caller's context alone bounds each lookup.
func NewVerifier(store Store, timeout time.Duration, logger *zap.Logger) *Verifier {
	return &Verifier{
		lookups: map[models.EntityType]lookupFunc{
			models.EntityPentest: store.PentestInTenant,
			models.EntityFinding: store.FindingInTenant,
			models.EntityTarget:  store.TargetInTenant,
			models.EntityReport:  store.ReportInTenant,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// CanSubscribe fails closed: lookup errors and timeouts deny.
func (v *Verifier) CanSubscribe(ctx context.Context, userID, tenantID string, entityType models.EntityType, entityID string) bool {
	err := v.Check(ctx, tenantID, entityType, entityID)
	if err == nil {
		return true
	}
	if !errors.Is(err, models.ErrNotFound) {
		v.logger.Warn("subscription check failed",
			zap.String("user_id", userID),
			zap.String("tenant_id", tenantID),
			zap.String("entity_type", string(entityType)),
			zap.Error(err))
	}
	return false
}

// Check returns nil when the entity belongs to tenantID and
// models.ErrNotFound when it is missing, foreign or of an unknown type.
// Other errors come from the lookup itself.
func (v *Verifier) Check(ctx context.Context, tenantID string, entityType models.EntityType, entityID string) error {
	lookup, ok := v.lookups[entityType]
	if !ok || entityID == "" || tenantID == "" {
		return models.ErrNotFound
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	found, err := lookup(ctx, entityID, tenantID)
	if err != nil {
		return fmt.Errorf("checking %s %s: %w", entityType, entityID, err)
	}
	if !found {
		return models.ErrNotFound
	}
	return nil
}
