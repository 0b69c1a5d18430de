package report

import (
	"math"
	"time"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

// MaxRiskScore caps the weighted severity sum.
const MaxRiskScore = 100

var severityWeights = map[models.Severity]int{
	models.SeverityCritical:      10,
	models.SeverityHigh:          7,
	models.SeverityMedium:        4,
	models.SeverityLow:           2,
	models.SeverityInformational: 1,
}

// normalizeSeverity maps aliases onto the five buckets. Unrecognised values
// are treated as informational.
func normalizeSeverity(s models.Severity) models.Severity {
	if sev, ok := models.ParseSeverity(string(s)); ok {
		return sev
	}
	return models.SeverityInformational
}

// Tally computes the statistics block for findings. Testing duration is
// left to the caller.
func Tally(findings []models.Finding) Statistics {
	st := Statistics{
		TotalFindings: len(findings),
		BySeverity:    make(map[models.Severity]int, len(models.Severities)),
		ByStatus:      make(map[models.FindingStatus]int, len(models.FindingStatuses)),
		ByCategory:    make(map[string]int),
	}
	for _, sev := range models.Severities {
		st.BySeverity[sev] = 0
	}
	for _, s := range models.FindingStatuses {
		st.ByStatus[s] = 0
	}

	var (
		cvssSum   float64
		cvssCount int
	)
	for _, f := range findings {
		st.BySeverity[normalizeSeverity(f.Severity)]++
		if _, known := st.ByStatus[f.Status]; known {
			st.ByStatus[f.Status]++
		}
		if f.Category != "" {
			st.ByCategory[f.Category]++
		}
		if f.CVSSScore != nil {
			cvssSum += *f.CVSSScore
			cvssCount++
		}
	}

	st.CriticalAndHighCount = st.BySeverity[models.SeverityCritical] + st.BySeverity[models.SeverityHigh]
	if cvssCount > 0 {
		st.AverageCVSS = math.Round(cvssSum/float64(cvssCount)*10) / 10
	}
	st.OverallRiskScore = RiskScore(st.BySeverity)
	return st
}

// RiskScore is the saturating weighted severity sum.
func RiskScore(bySeverity map[models.Severity]int) int {
	sum := 0
	for sev, n := range bySeverity {
		sum += n * severityWeights[sev]
		if sum >= MaxRiskScore {
			return MaxRiskScore
		}
	}
	return sum
}

// TestingDuration returns the whole days between start and end, rounded up.
// Missing or inverted dates give 0.
func TestingDuration(start, end *time.Time) int {
	if start == nil || end == nil || !end.After(*start) {
		return 0
	}
	return int(math.Ceil(end.Sub(*start).Hours() / 24))
}

// RiskLevel labels a risk score.
func RiskLevel(score int) string {
	switch {
	case score >= 70:
		return "High"
	case score >= 40:
		return "Medium"
	default:
		return "Low"
	}
}

// Aggregate builds the complete report data for a pentest whose findings
// were already selected. It performs no tenant checks.
func Aggregate(cat *Catalog, p *models.Pentest, cfg Config, meta Metadata) *Data {
	stats := Tally(p.Findings)
	stats.TestingDurationDays = TestingDuration(p.StartDate, p.EndDate)

	meta.Title = cfg.Title
	meta.ReportType = cfg.ReportType
	meta.Confidential = cfg.Confidential
	meta.Watermark = cfg.Watermark
	meta.Language = cfg.Language

	data := &Data{
		Metadata: meta,
		Pentest: PentestSummary{
			ID:          p.ID,
			Title:       p.Title,
			Status:      p.Status,
			Methodology: p.Methodology,
			StartDate:   p.StartDate,
			EndDate:     p.EndDate,
		},
		Statistics: stats,
		Findings:   p.Findings,
	}
	if data.Findings == nil {
		data.Findings = []models.Finding{}
	}
	if p.Target != nil {
		data.Target = &TargetSummary{
			ID:      p.Target.ID,
			Name:    p.Target.Name,
			Kind:    p.Target.Kind,
			Address: p.Target.Address,
		}
	}

	if cfg.IncludeExecutiveSummary {
		data.Sections.ExecutiveSummary = executiveSummary(cat, p, stats)
	}
	if cfg.IncludeMethodology {
		data.Sections.Methodology = methodology(cat, p)
	}
	if cfg.IncludeFindings {
		data.Sections.Findings = findingsSection(p.Findings)
	}
	if cfg.IncludeRemediation {
		data.Sections.Remediation = remediation(cat, p.Findings, stats)
	}
	if cfg.IncludeAppendices {
		data.Sections.Appendices = appendices(cat)
	}
	return data
}
