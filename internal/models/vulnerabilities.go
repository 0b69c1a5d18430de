package models

import (
	"strings"
	"time"
)

// Severity is the risk class of a finding. The five values double as report buckets.
type Severity string

const (
	SeverityCritical      Severity = "CRITICAL"
	SeverityHigh          Severity = "HIGH"
	SeverityMedium        Severity = "MEDIUM"
	SeverityLow           Severity = "LOW"
	SeverityInformational Severity = "INFORMATIONAL"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInformational,
}

// ParseSeverity normalises free-form input. "INFO" is accepted as an alias
// for INFORMATIONAL; anything unrecognised reports ok=false.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return SeverityCritical, true
	case "HIGH":
		return SeverityHigh, true
	case "MEDIUM":
		return SeverityMedium, true
	case "LOW":
		return SeverityLow, true
	case "INFORMATIONAL", "INFO":
		return SeverityInformational, true
	}
	return "", false
}

// FindingStatus is the triage state of a finding.
type FindingStatus string

const (
	StatusOpen          FindingStatus = "OPEN"
	StatusInProgress    FindingStatus = "IN_PROGRESS"
	StatusResolved      FindingStatus = "RESOLVED"
	StatusAccepted      FindingStatus = "ACCEPTED"
	StatusFalsePositive FindingStatus = "FALSE_POSITIVE"
)

// FindingStatuses lists every finding status in workflow order.
var FindingStatuses = []FindingStatus{
	StatusOpen,
	StatusInProgress,
	StatusResolved,
	StatusAccepted,
	StatusFalsePositive,
}

// ParseFindingStatus normalises free-form input.
func ParseFindingStatus(s string) (FindingStatus, bool) {
	v := FindingStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range FindingStatuses {
		if st == v {
			return v, true
		}
	}
	return "", false
}

// PentestStatus is the lifecycle state of an engagement.
type PentestStatus string

const (
	PentestPlanned    PentestStatus = "PLANNED"
	PentestInProgress PentestStatus = "IN_PROGRESS"
	PentestCompleted  PentestStatus = "COMPLETED"
	PentestCancelled  PentestStatus = "CANCELLED"
)

// ParsePentestStatus normalises free-form input.
func ParsePentestStatus(s string) (PentestStatus, bool) {
	switch v := PentestStatus(strings.ToUpper(strings.TrimSpace(s))); v {
	case PentestPlanned, PentestInProgress, PentestCompleted, PentestCancelled:
		return v, true
	}
	return "", false
}

// Target is an asset under assessment (application, host, network range).
type Target struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenantId" db:"tenant_id"`
	Name     string `json:"name" db:"name"`
	Kind     string `json:"kind" db:"kind"`
	Address  string `json:"address" db:"address"`
}

// Pentest is a single engagement against a target.
type Pentest struct {
	ID          string        `json:"id" db:"id"`
	TenantID    string        `json:"tenantId" db:"tenant_id"`
	TargetID    string        `json:"targetId" db:"target_id"`
	Title       string        `json:"title" db:"title"`
	Status      PentestStatus `json:"status" db:"status"`
	Methodology string        `json:"methodology,omitempty" db:"methodology"`
	StartDate   *time.Time    `json:"startDate,omitempty" db:"start_date"`
	EndDate     *time.Time    `json:"endDate,omitempty" db:"end_date"`

	Target   *Target   `json:"target,omitempty" db:"-"`
	Findings []Finding `json:"findings,omitempty" db:"-"`
}

// Finding is a single vulnerability recorded during a pentest.
type Finding struct {
	ID                string        `json:"id" db:"id"`
	TenantID          string        `json:"tenantId" db:"tenant_id"`
	PentestID         string        `json:"pentestId" db:"pentest_id"`
	Title             string        `json:"title" db:"title"`
	Description       string        `json:"description" db:"description"`
	Severity          Severity      `json:"severity" db:"severity"`
	Status            FindingStatus `json:"status" db:"status"`
	Category          string        `json:"category,omitempty" db:"category"`
	CVSSScore         *float64      `json:"cvssScore,omitempty" db:"cvss_score"`
	ProofOfConcept    string        `json:"proofOfConcept,omitempty" db:"proof_of_concept"`
	ReproductionSteps string        `json:"reproductionSteps,omitempty" db:"reproduction_steps"`
	Remediation       string        `json:"remediation,omitempty" db:"remediation"`
	References        StringList    `json:"references,omitempty" db:"refs"`
	ReporterID        *string       `json:"reporterId,omitempty" db:"reporter_id"`
	AssigneeID        *string       `json:"assigneeId,omitempty" db:"assignee_id"`
	CreatedAt         time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time     `json:"updatedAt" db:"updated_at"`

	ReporterName string `json:"reporterName,omitempty" db:"reporter_name"`
	AssigneeName string `json:"assigneeName,omitempty" db:"assignee_name"`
}

// Comment is a discussion entry attached to any entity type.
type Comment struct {
	ID         string     `json:"id" db:"id"`
	TenantID   string     `json:"tenantId" db:"tenant_id"`
	EntityType EntityType `json:"entityType" db:"entity_type"`
	EntityID   string     `json:"entityId" db:"entity_id"`
	AuthorID   string     `json:"authorId" db:"author_id"`
	Body       string     `json:"body" db:"body"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
}

// Report is the persisted descriptor of a rendered report artifact.
type Report struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"-" db:"tenant_id"`
	PentestID   string    `json:"pentestId" db:"pentest_id"`
	Title       string    `json:"title" db:"title"`
	ReportType  string    `json:"reportType" db:"report_type"`
	Format      string    `json:"format" db:"format"`
	Filename    string    `json:"filename" db:"filename"`
	FileURL     string    `json:"fileUrl" db:"file_url"`
	FileSize    int64     `json:"fileSize" db:"file_size"`
	GeneratedBy string    `json:"generatedBy" db:"generated_by"`
	GeneratedAt time.Time `json:"generatedAt" db:"generated_at"`
}
