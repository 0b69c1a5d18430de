package report

import (
	"strings"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

// filters are the parsed finding selections of a Config. Empty sets select
// everything.
type filters struct {
	severities map[models.Severity]struct{}
	statuses   map[models.FindingStatus]struct{}
}

// normalize fills defaults and validates the request. Every failure is a
// *models.ValidationError.
func (c *Config) normalize() (filters, error) {
	c.PentestID = strings.TrimSpace(c.PentestID)
	c.Title = strings.TrimSpace(c.Title)
	if c.PentestID == "" {
		return filters{}, models.Invalid("pentestId", "is required")
	}
	if c.Title == "" {
		return filters{}, models.Invalid("title", "is required")
	}

	switch c.ReportType {
	case "":
		c.ReportType = TypeFull
	case TypeExecutive, TypeTechnical, TypeCompliance, TypeFull:
	default:
		return filters{}, models.Invalid("reportType", "unsupported report type %q", c.ReportType)
	}

	c.Format = Format(strings.ToLower(string(c.Format)))
	if _, ok := renderers[c.Format]; !ok {
		return filters{}, models.Invalid("format", "unsupported format %q", c.Format)
	}

	if c.Language == "" {
		c.Language = "en"
	}

	f := filters{
		severities: make(map[models.Severity]struct{}),
		statuses:   make(map[models.FindingStatus]struct{}),
	}
	for _, raw := range c.FindingSeverityFilter {
		sev, ok := models.ParseSeverity(raw)
		if !ok {
			return filters{}, models.Invalid("findingSeverityFilter", "unknown severity %q", raw)
		}
		f.severities[sev] = struct{}{}
	}
	for _, raw := range c.FindingStatusFilter {
		st, ok := models.ParseFindingStatus(raw)
		if !ok {
			return filters{}, models.Invalid("findingStatusFilter", "unknown status %q", raw)
		}
		f.statuses[st] = struct{}{}
	}
	return f, nil
}

func (f filters) apply(findings []models.Finding) []models.Finding {
	if len(f.severities) == 0 && len(f.statuses) == 0 {
		return findings
	}
	out := make([]models.Finding, 0, len(findings))
	for _, fd := range findings {
		if len(f.severities) > 0 {
			if _, ok := f.severities[normalizeSeverity(fd.Severity)]; !ok {
				continue
			}
		}
		if len(f.statuses) > 0 {
			if _, ok := f.statuses[fd.Status]; !ok {
				continue
			}
		}
		out = append(out, fd)
	}
	return out
}
