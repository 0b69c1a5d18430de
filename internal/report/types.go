package report

import (
	"time"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

type ReportType string

const (
	TypeExecutive  ReportType = "executive"
	TypeTechnical  ReportType = "technical"
	TypeCompliance ReportType = "compliance"
	TypeFull       ReportType = "full"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatHTML Format = "html"
	FormatJSON Format = "json"
)

// Config is a report generation request.
type Config struct {
	PentestID               string     `json:"pentestId"`
	Title                   string     `json:"title"`
	ReportType              ReportType `json:"reportType"`
	Format                  Format     `json:"format"`
	IncludeExecutiveSummary bool       `json:"includeExecutiveSummary"`
	IncludeMethodology      bool       `json:"includeMethodology"`
	IncludeFindings         bool       `json:"includeFindings"`
	IncludeRemediation      bool       `json:"includeRemediation"`
	IncludeAppendices       bool       `json:"includeAppendices"`
	FindingSeverityFilter   []string   `json:"findingSeverityFilter,omitempty"`
	FindingStatusFilter     []string   `json:"findingStatusFilter,omitempty"`
	Watermark               bool       `json:"watermark"`
	Confidential            bool       `json:"confidential"`
	Language                string     `json:"language"`
}

// Data is the normalized input of every renderer. It is built once per
// request and not modified afterwards.
type Data struct {
	Metadata   Metadata         `json:"metadata"`
	Pentest    PentestSummary   `json:"pentest"`
	Target     *TargetSummary   `json:"target,omitempty"`
	Statistics Statistics       `json:"statistics"`
	Sections   Sections         `json:"sections"`
	Findings   []models.Finding `json:"findings"`
}

type Metadata struct {
	Title        string     `json:"title"`
	ReportType   ReportType `json:"reportType"`
	GeneratedAt  time.Time  `json:"generatedAt"`
	GeneratedBy  string     `json:"generatedBy"`
	TenantID     string     `json:"tenantId"`
	Confidential bool       `json:"confidential"`
	Watermark    bool       `json:"watermark"`
	Language     string     `json:"language"`
}

type PentestSummary struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Status      models.PentestStatus `json:"status"`
	Methodology string               `json:"methodology,omitempty"`
	StartDate   *time.Time           `json:"startDate,omitempty"`
	EndDate     *time.Time           `json:"endDate,omitempty"`
}

type TargetSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Address string `json:"address"`
}

type Statistics struct {
	TotalFindings        int                          `json:"totalFindings"`
	BySeverity           map[models.Severity]int      `json:"bySeverity"`
	ByStatus             map[models.FindingStatus]int `json:"byStatus"`
	ByCategory           map[string]int               `json:"byCategory"`
	CriticalAndHighCount int                          `json:"criticalAndHighCount"`
	AverageCVSS          float64                      `json:"averageCVSS"`
	OverallRiskScore     int                          `json:"overallRiskScore"`
	TestingDurationDays  int                          `json:"testingDurationDays"`
}

// Sections holds only the sections that were requested.
type Sections struct {
	ExecutiveSummary *ExecutiveSummary `json:"executiveSummary,omitempty"`
	Methodology      *Methodology      `json:"methodology,omitempty"`
	Findings         *FindingsSection  `json:"findings,omitempty"`
	Remediation      *Remediation      `json:"remediation,omitempty"`
	Appendices       *Appendices       `json:"appendices,omitempty"`
}

type ExecutiveSummary struct {
	RiskLevel       string      `json:"riskLevel"`
	Overview        string      `json:"overview"`
	KeyFindings     KeyFindings `json:"keyFindings"`
	Recommendations []string    `json:"recommendations"`
	Conclusion      string      `json:"conclusion"`
}

type KeyFindings struct {
	Total       int     `json:"total"`
	Critical    int     `json:"critical"`
	High        int     `json:"high"`
	RiskLevel   string  `json:"riskLevel"`
	AverageCVSS float64 `json:"averageCVSS"`
}

type Methodology struct {
	Approach  string   `json:"approach"`
	Phases    []Phase  `json:"phases"`
	Tools     []string `json:"tools"`
	Standards []string `json:"standards"`
}

type Phase struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

type FindingsSection struct {
	Total   int              `json:"total"`
	Buckets []SeverityBucket `json:"buckets"`
}

type SeverityBucket struct {
	Severity models.Severity `json:"severity"`
	Count    int             `json:"count"`
	Findings []FindingDetail `json:"findings"`
}

type FindingDetail struct {
	ID                string               `json:"id"`
	Title             string               `json:"title"`
	Description       string               `json:"description"`
	Severity          models.Severity      `json:"severity"`
	CVSSScore         *float64             `json:"cvssScore,omitempty"`
	Category          string               `json:"category,omitempty"`
	Status            models.FindingStatus `json:"status"`
	ProofOfConcept    string               `json:"proofOfConcept,omitempty"`
	ReproductionSteps string               `json:"reproductionSteps,omitempty"`
	Remediation       string               `json:"remediation,omitempty"`
	References        []string             `json:"references,omitempty"`
	Reporter          string               `json:"reporter,omitempty"`
	Assignee          string               `json:"assignee,omitempty"`
}

type Remediation struct {
	Timeline      []Tier                `json:"timeline"`
	ByCategory    []CategoryRemediation `json:"byCategory"`
	BestPractices []string              `json:"bestPractices"`
}

type Tier struct {
	Name        string     `json:"name"`
	Priority    int        `json:"priority"`
	Timeframe   string     `json:"timeframe"`
	Description string     `json:"description"`
	Count       int        `json:"count"`
	Findings    []TierItem `json:"findings"`
}

type TierItem struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Severity models.Severity `json:"severity"`
}

type CategoryRemediation struct {
	Category   string `json:"category"`
	Count      int    `json:"count"`
	Suggestion string `json:"suggestion"`
}

type Appendices struct {
	Glossary   []GlossaryEntry `json:"glossary"`
	References []string        `json:"references"`
	Tools      []ToolVersion   `json:"tools"`
	Disclaimer string          `json:"disclaimer"`
}

type GlossaryEntry struct {
	Term       string `json:"term" yaml:"term"`
	Definition string `json:"definition" yaml:"definition"`
}

type ToolVersion struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}
