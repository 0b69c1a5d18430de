// Package tracker holds the pentest workflow mutations: findings, pentest
// status and comments. Every successful mutation is announced through the
// notification dispatcher.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/auth"
	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

const maxCommentLength = 10000

type Store interface {
	UserByID(ctx context.Context, id string) (models.User, error)
	PentestByID(ctx context.Context, tenantID, id string) (models.Pentest, error)
	UpdatePentestStatus(ctx context.Context, tenantID, id string, status models.PentestStatus) (models.Pentest, error)
	CreateFinding(ctx context.Context, f models.Finding) (models.Finding, error)
	FindingByID(ctx context.Context, tenantID, id string) (models.Finding, error)
	UpdateFinding(ctx context.Context, f models.Finding) (models.Finding, error)
	CreateComment(ctx context.Context, c models.Comment) (models.Comment, error)
}

// Notifier is the subset of notify.Dispatcher the workflow uses.
type Notifier interface {
	NotifyUser(ctx context.Context, userID string, n models.Notification) (models.Notification, error)
	NotifyTenant(ctx context.Context, tenantID string, n models.Notification, excludeUserID string) ([]models.Notification, error)
	NotifyRole(ctx context.Context, tenantID string, role models.Role, n models.Notification) ([]models.Notification, error)
	BroadcastEntityUpdate(entityType models.EntityType, id string, update any) int
	BroadcastComment(ctx context.Context, c models.Comment, authorName string) ([]models.Notification, error)
}

type AccessChecker interface {
	Check(ctx context.Context, tenantID string, entityType models.EntityType, entityID string) error
}

type Service struct {
	store    Store
	notifier Notifier
	access   AccessChecker
	logger   *zap.Logger
}

func NewService(store Store, notifier Notifier, access AccessChecker, logger *zap.Logger) *Service {
	return &Service{store: store, notifier: notifier, access: access, logger: logger}
}

// NewFinding is the input of CreateFinding.
type NewFinding struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Severity          string   `json:"severity"`
	Category          string   `json:"category"`
	CVSSScore         *float64 `json:"cvssScore"`
	ProofOfConcept    string   `json:"proofOfConcept"`
	ReproductionSteps string   `json:"reproductionSteps"`
	Remediation       string   `json:"remediation"`
	References        []string `json:"references"`
	AssigneeID        *string  `json:"assigneeId"`
}

// FindingPatch lists the triage fields to change. Nil fields are left alone;
// an empty AssigneeID unassigns.
type FindingPatch struct {
	Status     *string  `json:"status"`
	Severity   *string  `json:"severity"`
	AssigneeID *string  `json:"assigneeId"`
	CVSSScore  *float64 `json:"cvssScore"`
}

// CreateFinding records a finding on a pentest of the actor's tenant. The
// rest of the tenant is notified and the pentest's watchers get an entity
// update.
func (s *Service) CreateFinding(ctx context.Context, actor auth.Identity, pentestID string, in NewFinding) (models.Finding, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Finding{}, models.Invalid("title", "is required")
	}
	sev, ok := models.ParseSeverity(in.Severity)
	if !ok {
		return models.Finding{}, models.Invalid("severity", "unknown severity %q", in.Severity)
	}
	if err := validCVSS(in.CVSSScore); err != nil {
		return models.Finding{}, err
	}

	pentest, err := s.store.PentestByID(ctx, actor.TenantID, pentestID)
	if err != nil {
		return models.Finding{}, err
	}
	assignee, err := s.assignee(ctx, actor.TenantID, in.AssigneeID)
	if err != nil {
		return models.Finding{}, err
	}

	reporter := actor.UserID
	f, err := s.store.CreateFinding(ctx, models.Finding{
		TenantID:          actor.TenantID,
		PentestID:         pentest.ID,
		Title:             title,
		Description:       in.Description,
		Severity:          sev,
		Status:            models.StatusOpen,
		Category:          strings.TrimSpace(in.Category),
		CVSSScore:         in.CVSSScore,
		ProofOfConcept:    in.ProofOfConcept,
		ReproductionSteps: in.ReproductionSteps,
		Remediation:       in.Remediation,
		References:        in.References,
		ReporterID:        &reporter,
		AssigneeID:        assignee,
	})
	if err != nil {
		return models.Finding{}, err
	}

	s.logger.Info("finding created",
		zap.String("finding_id", f.ID),
		zap.String("pentest_id", f.PentestID),
		zap.String("tenant_id", f.TenantID),
		zap.String("severity", string(f.Severity)))

	link := models.EntityFinding.Link(f.ID)
	_, err = s.notifier.NotifyTenant(ctx, actor.TenantID, models.Notification{
		Type:    models.NotificationFinding,
		Title:   "New " + strings.ToLower(string(f.Severity)) + " finding",
		Message: fmt.Sprintf("%q was reported on %s", f.Title, pentest.Title),
		Link:    &link,
		Metadata: models.Metadata{
			"findingId": f.ID,
			"pentestId": f.PentestID,
			"severity":  string(f.Severity),
		},
	}, actor.UserID)
	if err != nil {
		s.logger.Warn("finding notification failed", zap.String("finding_id", f.ID), zap.Error(err))
	}
	s.notifier.BroadcastEntityUpdate(models.EntityPentest, pentest.ID, map[string]any{"findingCreated": f})

	if assignee != nil && *assignee != actor.UserID {
		s.notifyAssignee(ctx, f)
	}
	return f, nil
}

// UpdateFinding applies a triage patch. Only the fields that actually
// changed are broadcast; a patch that changes nothing is not broadcast.
func (s *Service) UpdateFinding(ctx context.Context, actor auth.Identity, id string, patch FindingPatch) (models.Finding, error) {
	f, err := s.store.FindingByID(ctx, actor.TenantID, id)
	if err != nil {
		return models.Finding{}, err
	}

	changes := make(map[string]any)
	if patch.Status != nil {
		st, ok := models.ParseFindingStatus(*patch.Status)
		if !ok {
			return models.Finding{}, models.Invalid("status", "unknown status %q", *patch.Status)
		}
		if st != f.Status {
			f.Status = st
			changes["status"] = st
		}
	}
	if patch.Severity != nil {
		sev, ok := models.ParseSeverity(*patch.Severity)
		if !ok {
			return models.Finding{}, models.Invalid("severity", "unknown severity %q", *patch.Severity)
		}
		if sev != f.Severity {
			f.Severity = sev
			changes["severity"] = sev
		}
	}
	if patch.CVSSScore != nil {
		if err := validCVSS(patch.CVSSScore); err != nil {
			return models.Finding{}, err
		}
		if f.CVSSScore == nil || *f.CVSSScore != *patch.CVSSScore {
			f.CVSSScore = patch.CVSSScore
			changes["cvssScore"] = *patch.CVSSScore
		}
	}
	assigneeChanged := false
	if patch.AssigneeID != nil {
		assignee, err := s.assignee(ctx, actor.TenantID, patch.AssigneeID)
		if err != nil {
			return models.Finding{}, err
		}
		if !sameID(assignee, f.AssigneeID) {
			f.AssigneeID = assignee
			changes["assigneeId"] = assignee
			assigneeChanged = true
		}
	}

	if len(changes) == 0 {
		return f, nil
	}
	f, err = s.store.UpdateFinding(ctx, f)
	if err != nil {
		return models.Finding{}, err
	}

	s.notifier.BroadcastEntityUpdate(models.EntityFinding, f.ID, changes)
	if assigneeChanged && f.AssigneeID != nil && *f.AssigneeID != actor.UserID {
		s.notifyAssignee(ctx, f)
	}
	return f, nil
}

// UpdatePentestStatus moves a pentest through its lifecycle and tells the
// tenant's clients.
func (s *Service) UpdatePentestStatus(ctx context.Context, actor auth.Identity, id, status string) (models.Pentest, error) {
	st, ok := models.ParsePentestStatus(status)
	if !ok {
		return models.Pentest{}, models.Invalid("status", "unknown status %q", status)
	}

	p, err := s.store.UpdatePentestStatus(ctx, actor.TenantID, id, st)
	if err != nil {
		return models.Pentest{}, err
	}

	s.notifier.BroadcastEntityUpdate(models.EntityPentest, p.ID, map[string]any{"status": p.Status})

	link := models.EntityPentest.Link(p.ID)
	_, err = s.notifier.NotifyRole(ctx, actor.TenantID, models.RoleClient, models.Notification{
		Type:    models.NotificationPentest,
		Title:   "Pentest status changed",
		Message: fmt.Sprintf("%s is now %s", p.Title, strings.ToLower(strings.ReplaceAll(string(p.Status), "_", " "))),
		Link:    &link,
		Metadata: models.Metadata{
			"pentestId": p.ID,
			"status":    string(p.Status),
		},
	})
	if err != nil {
		s.logger.Warn("pentest status notification failed", zap.String("pentest_id", p.ID), zap.Error(err))
	}
	return p, nil
}

// AddComment attaches a comment to an entity of the actor's tenant. Foreign
// and missing entities are both reported as models.ErrNotFound.
func (s *Service) AddComment(ctx context.Context, actor auth.Identity, entityType, entityID, body string) (models.Comment, error) {
	et, ok := models.ParseEntityType(entityType)
	if !ok {
		return models.Comment{}, models.ErrNotFound
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Comment{}, models.Invalid("body", "is required")
	}
	if len(body) > maxCommentLength {
		return models.Comment{}, models.Invalid("body", "exceeds %d characters", maxCommentLength)
	}
	if err := s.access.Check(ctx, actor.TenantID, et, entityID); err != nil {
		return models.Comment{}, err
	}

	c, err := s.store.CreateComment(ctx, models.Comment{
		TenantID:   actor.TenantID,
		EntityType: et,
		EntityID:   entityID,
		AuthorID:   actor.UserID,
		Body:       body,
	})
	if err != nil {
		return models.Comment{}, err
	}

	if _, err := s.notifier.BroadcastComment(ctx, c, s.displayName(ctx, actor.UserID)); err != nil {
		s.logger.Warn("comment notification failed",
			zap.String("comment_id", c.ID),
			zap.String("entity_type", string(c.EntityType)),
			zap.String("entity_id", c.EntityID),
			zap.Error(err))
	}
	return c, nil
}

func (s *Service) notifyAssignee(ctx context.Context, f models.Finding) {
	link := models.EntityFinding.Link(f.ID)
	_, err := s.notifier.NotifyUser(ctx, *f.AssigneeID, models.Notification{
		Type:    models.NotificationFinding,
		Title:   "Finding assigned to you",
		Message: fmt.Sprintf("%q (%s)", f.Title, f.Severity),
		Link:    &link,
		Metadata: models.Metadata{
			"findingId": f.ID,
			"pentestId": f.PentestID,
		},
	})
	if err != nil {
		s.logger.Warn("assignee notification failed",
			zap.String("finding_id", f.ID),
			zap.String("user_id", *f.AssigneeID),
			zap.Error(err))
	}
}

// assignee resolves a requested assignee. Empty means nobody; anyone outside
// the tenant is rejected.
func (s *Service) assignee(ctx context.Context, tenantID string, id *string) (*string, error) {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil, nil
	}
	u, err := s.store.UserByID(ctx, strings.TrimSpace(*id))
	if errors.Is(err, models.ErrNotFound) || (err == nil && u.TenantID != tenantID) {
		return nil, models.Invalid("assigneeId", "unknown user")
	}
	if err != nil {
		return nil, err
	}
	return &u.ID, nil
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil || u.Name == "" {
		return "Someone"
	}
	return u.Name
}

func validCVSS(score *float64) error {
	if score != nil && (*score < 0 || *score > 10) {
		return models.Invalid("cvssScore", "must be between 0 and 10")
	}
	return nil
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
