package report

import (
	"fmt"
	"sort"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

const highAverageCVSS = 7.0

func executiveSummary(cat *Catalog, p *models.Pentest, st Statistics) *ExecutiveSummary {
	level := RiskLevel(st.OverallRiskScore)
	critical := st.BySeverity[models.SeverityCritical]
	high := st.BySeverity[models.SeverityHigh]

	var recs []string
	if critical > 0 {
		recs = append(recs, fmt.Sprintf("Address the %d critical vulnerabilities immediately.", critical))
	}
	if high > 0 {
		recs = append(recs, fmt.Sprintf("Prioritize remediation of the %d high-severity vulnerabilities.", high))
	}
	if st.AverageCVSS >= highAverageCVSS {
		recs = append(recs, "Implement a vulnerability management program to reduce overall exposure.")
	}
	recs = append(recs, cat.StandingRecommendations...)

	return &ExecutiveSummary{
		RiskLevel: level,
		Overview: fmt.Sprintf(
			"The security assessment %q identified %d findings, %d of them critical or high severity. The overall risk level is %s.",
			p.Title, st.TotalFindings, st.CriticalAndHighCount, level),
		KeyFindings: KeyFindings{
			Total:       st.TotalFindings,
			Critical:    critical,
			High:        high,
			RiskLevel:   level,
			AverageCVSS: st.AverageCVSS,
		},
		Recommendations: recs,
		Conclusion: fmt.Sprintf(
			"With a risk score of %d/100 across %d findings, remediation should follow the timeline in this report.",
			st.OverallRiskScore, st.TotalFindings),
	}
}

func methodology(cat *Catalog, p *models.Pentest) *Methodology {
	approach := p.Methodology
	if approach == "" {
		approach = cat.DefaultMethodology
	}
	return &Methodology{
		Approach:  approach,
		Phases:    cat.Phases,
		Tools:     cat.Tools,
		Standards: cat.Standards,
	}
}

// findingsSection places every finding in exactly one of the five severity
// buckets, most severe first.
func findingsSection(findings []models.Finding) *FindingsSection {
	index := make(map[models.Severity]int, len(models.Severities))
	buckets := make([]SeverityBucket, len(models.Severities))
	for i, sev := range models.Severities {
		index[sev] = i
		buckets[i] = SeverityBucket{Severity: sev, Findings: []FindingDetail{}}
	}

	for _, f := range findings {
		b := &buckets[index[normalizeSeverity(f.Severity)]]
		b.Findings = append(b.Findings, detail(f))
		b.Count++
	}
	return &FindingsSection{Total: len(findings), Buckets: buckets}
}

func detail(f models.Finding) FindingDetail {
	return FindingDetail{
		ID:                f.ID,
		Title:             f.Title,
		Description:       f.Description,
		Severity:          normalizeSeverity(f.Severity),
		CVSSScore:         f.CVSSScore,
		Category:          f.Category,
		Status:            f.Status,
		ProofOfConcept:    f.ProofOfConcept,
		ReproductionSteps: f.ReproductionSteps,
		Remediation:       f.Remediation,
		References:        f.References,
		Reporter:          f.ReporterName,
		Assignee:          f.AssigneeName,
	}
}

func remediation(cat *Catalog, findings []models.Finding, st Statistics) *Remediation {
	timeline := make([]Tier, len(cat.Tiers))
	for i, spec := range cat.Tiers {
		timeline[i] = Tier{
			Name:        spec.Name,
			Priority:    spec.Priority,
			Timeframe:   spec.Timeframe,
			Description: spec.Description,
			Findings:    []TierItem{},
		}
	}
	for _, f := range findings {
		sev := normalizeSeverity(f.Severity)
		t := &timeline[cat.tierOf(sev)]
		t.Findings = append(t.Findings, TierItem{ID: f.ID, Title: f.Title, Severity: sev})
		t.Count++
	}

	categories := make([]string, 0, len(st.ByCategory))
	for c := range st.ByCategory {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		ci, cj := st.ByCategory[categories[i]], st.ByCategory[categories[j]]
		if ci != cj {
			return ci > cj
		}
		return categories[i] < categories[j]
	})
	byCategory := make([]CategoryRemediation, 0, len(categories))
	for _, c := range categories {
		byCategory = append(byCategory, CategoryRemediation{
			Category:   c,
			Count:      st.ByCategory[c],
			Suggestion: cat.RemediationFor(c),
		})
	}

	return &Remediation{
		Timeline:      timeline,
		ByCategory:    byCategory,
		BestPractices: cat.BestPractices,
	}
}

func appendices(cat *Catalog) *Appendices {
	return &Appendices{
		Glossary:   cat.Glossary,
		References: cat.References,
		Tools:      cat.ToolVersions,
		Disclaimer: cat.Disclaimer,
	}
}
