package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

// === Tenant ownership lookups ===

// PentestInTenant reports whether the pentest exists and belongs to tenantID.
func (s *SQLiteStorage) PentestInTenant(ctx context.Context, id, tenantID string) (bool, error) {
	return s.existsInTenant(ctx, "pentests", id, tenantID)
}

// FindingInTenant reports whether the finding exists and belongs to tenantID.
func (s *SQLiteStorage) FindingInTenant(ctx context.Context, id, tenantID string) (bool, error) {
	return s.existsInTenant(ctx, "findings", id, tenantID)
}

// TargetInTenant reports whether the target exists and belongs to tenantID.
func (s *SQLiteStorage) TargetInTenant(ctx context.Context, id, tenantID string) (bool, error) {
	return s.existsInTenant(ctx, "targets", id, tenantID)
}

// ReportInTenant reports whether the report exists and belongs to tenantID.
func (s *SQLiteStorage) ReportInTenant(ctx context.Context, id, tenantID string) (bool, error) {
	return s.existsInTenant(ctx, "reports", id, tenantID)
}

func (s *SQLiteStorage) existsInTenant(ctx context.Context, table, id, tenantID string) (bool, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ? AND tenant_id = ?", table)
	if err := s.db.GetContext(ctx, &n, query, id, tenantID); err != nil {
		return false, fmt.Errorf("looking up %s %s: %w", table, id, err)
	}
	return n > 0, nil
}

// === Targets and pentests ===

// CreateTarget inserts a target. A missing ID is generated.
func (s *SQLiteStorage) CreateTarget(ctx context.Context, t models.Target) (models.Target, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO targets (id, tenant_id, name, kind, address)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.TenantID, t.Name, t.Kind, t.Address,
	)
	if err != nil {
		return models.Target{}, fmt.Errorf("creating target: %w", err)
	}
	return t, nil
}

// CreatePentest inserts a pentest. A missing ID is generated.
func (s *SQLiteStorage) CreatePentest(ctx context.Context, p models.Pentest) (models.Pentest, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.PentestPlanned
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pentests (id, tenant_id, target_id, title, status, methodology, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TenantID, p.TargetID, p.Title, string(p.Status), p.Methodology,
		utcOrNil(p.StartDate), utcOrNil(p.EndDate),
	)
	if err != nil {
		return models.Pentest{}, fmt.Errorf("creating pentest: %w", err)
	}
	return p, nil
}

const pentestColumns = "id, tenant_id, target_id, title, status, methodology, start_date, end_date"

// PentestByID loads a pentest scoped to the tenant.
func (s *SQLiteStorage) PentestByID(ctx context.Context, tenantID, id string) (models.Pentest, error) {
	var p models.Pentest
	err := s.db.GetContext(ctx, &p,
		"SELECT "+pentestColumns+" FROM pentests WHERE id = ? AND tenant_id = ?", id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Pentest{}, models.ErrNotFound
	}
	if err != nil {
		return models.Pentest{}, fmt.Errorf("getting pentest %s: %w", id, err)
	}
	return p, nil
}

// PentestWithFindings loads a pentest with its target and every finding,
// most severe first. A pentest outside tenantID is reported as not found.
func (s *SQLiteStorage) PentestWithFindings(ctx context.Context, tenantID, id string) (*models.Pentest, error) {
	p, err := s.PentestByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	var target models.Target
	err = s.db.GetContext(ctx, &target,
		"SELECT id, tenant_id, name, kind, address FROM targets WHERE id = ?", p.TargetID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("getting target of pentest %s: %w", id, err)
	default:
		p.Target = &target
	}

	var findings []models.Finding
	err = s.db.SelectContext(ctx, &findings, `
		SELECT f.*,
			COALESCE(r.name, '') AS reporter_name,
			COALESCE(a.name, '') AS assignee_name
		FROM findings f
		LEFT JOIN users r ON r.id = f.reporter_id
		LEFT JOIN users a ON a.id = f.assignee_id
		WHERE f.pentest_id = ?
		ORDER BY CASE f.severity
			WHEN 'CRITICAL' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2
			WHEN 'LOW' THEN 3 ELSE 4 END, f.created_at`, id)
	if err != nil {
		return nil, fmt.Errorf("listing findings of pentest %s: %w", id, err)
	}
	p.Findings = findings

	return &p, nil
}

// UpdatePentestStatus changes the status of a pentest in the tenant.
func (s *SQLiteStorage) UpdatePentestStatus(ctx context.Context, tenantID, id string, status models.PentestStatus) (models.Pentest, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE pentests SET status = ? WHERE id = ? AND tenant_id = ?", string(status), id, tenantID)
	if err != nil {
		return models.Pentest{}, fmt.Errorf("updating pentest %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Pentest{}, models.ErrNotFound
	}
	return s.PentestByID(ctx, tenantID, id)
}

// === Findings ===

// CreateFinding inserts a finding. A missing ID is generated and timestamps
// are set.
func (s *SQLiteStorage) CreateFinding(ctx context.Context, f models.Finding) (models.Finding, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = models.StatusOpen
	}
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO findings (
			id, tenant_id, pentest_id, title, description,
			severity, status, category, cvss_score,
			proof_of_concept, reproduction_steps, remediation, refs,
			reporter_id, assignee_id, created_at, updated_at
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?
		)`,
		f.ID, f.TenantID, f.PentestID, f.Title, f.Description,
		string(f.Severity), string(f.Status), f.Category, f.CVSSScore,
		f.ProofOfConcept, f.ReproductionSteps, f.Remediation, f.References,
		f.ReporterID, f.AssigneeID, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return models.Finding{}, fmt.Errorf("creating finding: %w", err)
	}
	return f, nil
}

// FindingByID loads a finding scoped to the tenant.
func (s *SQLiteStorage) FindingByID(ctx context.Context, tenantID, id string) (models.Finding, error) {
	var f models.Finding
	err := s.db.GetContext(ctx, &f, "SELECT * FROM findings WHERE id = ? AND tenant_id = ?", id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Finding{}, models.ErrNotFound
	}
	if err != nil {
		return models.Finding{}, fmt.Errorf("getting finding %s: %w", id, err)
	}
	return f, nil
}

// UpdateFinding overwrites the mutable triage fields of a finding.
func (s *SQLiteStorage) UpdateFinding(ctx context.Context, f models.Finding) (models.Finding, error) {
	f.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE findings
		SET severity = ?, status = ?, assignee_id = ?, cvss_score = ?, remediation = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		string(f.Severity), string(f.Status), f.AssigneeID, f.CVSSScore, f.Remediation, f.UpdatedAt,
		f.ID, f.TenantID,
	)
	if err != nil {
		return models.Finding{}, fmt.Errorf("updating finding %s: %w", f.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Finding{}, models.ErrNotFound
	}
	return f, nil
}

// === Comments ===

// CreateComment inserts a comment. A missing ID is generated.
func (s *SQLiteStorage) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, tenant_id, entity_type, entity_id, author_id, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, string(c.EntityType), c.EntityID, c.AuthorID, c.Body, c.CreatedAt,
	)
	if err != nil {
		return models.Comment{}, fmt.Errorf("creating comment: %w", err)
	}
	return c, nil
}

// ownerQueries selects the non-comment participants of each entity type.
// Every entity type must have an entry; an empty string means "no owners".
var ownerQueries = map[models.EntityType]string{
	models.EntityFinding: `
		SELECT reporter_id FROM findings WHERE id = ? AND reporter_id IS NOT NULL
		UNION SELECT assignee_id FROM findings WHERE id = ? AND assignee_id IS NOT NULL`,
	models.EntityReport:  `SELECT generated_by FROM reports WHERE id = ?`,
	models.EntityPentest: "",
	models.EntityTarget:  "",
}

// EntityOwners returns the users who currently own an entity: the reporter
// and assignee of a finding, or whoever generated a report.
func (s *SQLiteStorage) EntityOwners(ctx context.Context, entityType models.EntityType, id string) ([]string, error) {
	query, ok := ownerQueries[entityType]
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
	if query == "" {
		return nil, nil
	}

	args := make([]any, strings.Count(query, "?"))
	for i := range args {
		args[i] = id
	}
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("listing owners of %s %s: %w", entityType, id, err)
	}
	return ids, nil
}

// EntityCommenters returns the distinct authors of comments on an entity.
func (s *SQLiteStorage) EntityCommenters(ctx context.Context, entityType models.EntityType, id string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT DISTINCT author_id FROM comments WHERE entity_type = ? AND entity_id = ?",
		string(entityType), id)
	if err != nil {
		return nil, fmt.Errorf("listing commenters of %s %s: %w", entityType, id, err)
	}
	return ids, nil
}

// === Reports ===

// SaveReport persists a rendered report descriptor.
func (s *SQLiteStorage) SaveReport(ctx context.Context, r models.Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (
			id, tenant_id, pentest_id, title, report_type, format,
			filename, file_url, file_size, generated_by, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TenantID, r.PentestID, r.Title, r.ReportType, r.Format,
		r.Filename, r.FileURL, r.FileSize, r.GeneratedBy, r.GeneratedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving report %s: %w", r.ID, err)
	}
	return nil
}

// ReportByID loads a report descriptor scoped to the tenant.
func (s *SQLiteStorage) ReportByID(ctx context.Context, tenantID, id string) (models.Report, error) {
	var r models.Report
	err := s.db.GetContext(ctx, &r, "SELECT * FROM reports WHERE id = ? AND tenant_id = ?", id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, models.ErrNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("getting report %s: %w", id, err)
	}
	return r, nil
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
