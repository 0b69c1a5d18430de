package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

func findingsWith(severities ...models.Severity) []models.Finding {
	out := make([]models.Finding, 0, len(severities))
	for i, s := range severities {
		out = append(out, models.Finding{
			ID:       string(rune('a' + i)),
			Title:    "finding " + string(s),
			Severity: s,
			Status:   models.StatusOpen,
		})
	}
	return out
}

func score(v float64) *float64 { return &v }

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	return cat
}

func TestTally_WeightedScenario(t *testing.T) {
	st := Tally(findingsWith(
		models.SeverityCritical, models.SeverityCritical, models.SeverityHigh,
		models.SeverityMedium, models.SeverityLow, models.SeverityLow, models.SeverityInformational,
	))

	assert.Equal(t, 36, st.OverallRiskScore)
	assert.Equal(t, 3, st.CriticalAndHighCount)
	assert.Equal(t, 7, st.TotalFindings)
	assert.Equal(t, 2, st.BySeverity[models.SeverityLow])
}

func TestTally_RiskScoreSaturates(t *testing.T) {
	var sevs []models.Severity
	for i := 0; i < 11; i++ {
		sevs = append(sevs, models.SeverityCritical)
	}
	assert.Equal(t, 100, Tally(findingsWith(sevs...)).OverallRiskScore)

	huge := make(map[models.Severity]int)
	for _, s := range models.Severities {
		huge[s] = 1000
	}
	assert.Equal(t, MaxRiskScore, RiskScore(huge))
}

func TestTally_Empty(t *testing.T) {
	st := Tally(nil)

	assert.Zero(t, st.AverageCVSS)
	assert.Zero(t, st.OverallRiskScore)
	assert.Zero(t, st.CriticalAndHighCount)
	assert.Len(t, st.BySeverity, 5, "every severity key is present")
	assert.Len(t, st.ByStatus, 5, "every status key is present")
	assert.Empty(t, st.ByCategory)
}

func TestTally_AverageCVSSAndCategories(t *testing.T) {
	findings := []models.Finding{
		{Severity: models.SeverityHigh, Status: models.StatusOpen, Category: "Injection", CVSSScore: score(7.25)},
		{Severity: models.SeverityHigh, Status: models.StatusResolved, Category: "Injection", CVSSScore: score(8.0)},
		{Severity: models.SeverityLow, Status: models.StatusAccepted},
		{Severity: "INFO", Status: "WONTFIX", Category: "Configuration"},
	}

	st := Tally(findings)

	assert.Equal(t, 7.6, st.AverageCVSS, "unscored findings are ignored, result has one decimal")
	assert.Equal(t, map[string]int{"Injection": 2, "Configuration": 1}, st.ByCategory)
	assert.Equal(t, 1, st.BySeverity[models.SeverityInformational])
	assert.Equal(t, 1, st.ByStatus[models.StatusOpen])
	assert.Equal(t, 1, st.ByStatus[models.StatusResolved])
	assert.Equal(t, 1, st.ByStatus[models.StatusAccepted])
	assert.NotContains(t, st.ByStatus, models.FindingStatus("WONTFIX"))
}

func TestTestingDuration(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := start.Add(d); return &v }

	tests := []struct {
		name  string
		start *time.Time
		end   *time.Time
		want  int
	}{
		{"exact days", &start, at(14 * 24 * time.Hour), 14},
		{"partial day rounds up", &start, at(14*24*time.Hour + time.Hour), 15},
		{"same instant", &start, &start, 0},
		{"inverted", at(time.Hour), &start, 0},
		{"missing end", &start, nil, 0},
		{"missing start", nil, &start, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TestingDuration(tt.start, tt.end))
		})
	}
}

func TestRiskLevel(t *testing.T) {
	for score, want := range map[int]string{0: "Low", 39: "Low", 40: "Medium", 69: "Medium", 70: "High", 100: "High"} {
		assert.Equal(t, want, RiskLevel(score), "score %d", score)
	}
}

func TestFindingsSection_BucketCoverage(t *testing.T) {
	findings := findingsWith(
		models.SeverityCritical, models.SeverityHigh, models.SeverityHigh, models.SeverityMedium,
		models.SeverityLow, models.SeverityInformational, "INFO", "bogus",
	)

	section := findingsSection(findings)

	require.Len(t, section.Buckets, 5)
	total := 0
	seen := make(map[string]int)
	for i, b := range section.Buckets {
		assert.Equal(t, models.Severities[i], b.Severity, "buckets are in severity order")
		assert.Equal(t, len(b.Findings), b.Count)
		total += b.Count
		for _, f := range b.Findings {
			seen[f.ID]++
		}
	}
	assert.Equal(t, len(findings), total)
	assert.Equal(t, len(findings), section.Total)
	for _, f := range findings {
		assert.Equal(t, 1, seen[f.ID], "finding %s must be in exactly one bucket", f.ID)
	}
	assert.Equal(t, 3, section.Buckets[4].Count, "INFORMATIONAL, INFO and unknown share the last bucket")
}

func TestAggregate_FindingsOnly(t *testing.T) {
	p := &models.Pentest{ID: "p1", Title: "External", Findings: findingsWith(models.SeverityHigh)}

	data := Aggregate(testCatalog(t), p, Config{Title: "Q1", IncludeFindings: true}, Metadata{})

	raw, err := json.Marshal(data.Sections)
	require.NoError(t, err)
	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &keys))
	assert.Len(t, keys, 1)
	assert.Contains(t, keys, "findings")
}

func TestAggregate_AllSections(t *testing.T) {
	cat := testCatalog(t)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(10 * 24 * time.Hour)
	p := &models.Pentest{
		ID: "p1", Title: "External", StartDate: &start, EndDate: &end,
		Target: &models.Target{ID: "t1", Name: "shop", Address: "https://shop.test"},
		Findings: []models.Finding{
			{ID: "f1", Severity: models.SeverityCritical, Status: models.StatusOpen, Category: "SQL Injection", CVSSScore: score(9.8)},
			{ID: "f2", Severity: models.SeverityLow, Status: models.StatusOpen, Category: "Unusual"},
			{ID: "f3", Severity: models.SeverityInformational, Status: models.StatusOpen},
		},
	}
	cfg := Config{
		Title: "Full", ReportType: TypeFull, Language: "en", Confidential: true,
		IncludeExecutiveSummary: true, IncludeMethodology: true, IncludeFindings: true,
		IncludeRemediation: true, IncludeAppendices: true,
	}

	data := Aggregate(cat, p, cfg, Metadata{GeneratedBy: "Alice", TenantID: "acme"})

	assert.Equal(t, "Full", data.Metadata.Title)
	assert.True(t, data.Metadata.Confidential)
	assert.Equal(t, 10, data.Statistics.TestingDurationDays)
	require.NotNil(t, data.Target)
	assert.Equal(t, "shop", data.Target.Name)

	exec := data.Sections.ExecutiveSummary
	require.NotNil(t, exec)
	assert.Equal(t, "Low", exec.RiskLevel)
	assert.Equal(t, "Address the 1 critical vulnerabilities immediately.", exec.Recommendations[0])
	assert.Equal(t, "Implement a vulnerability management program to reduce overall exposure.", exec.Recommendations[1])
	assert.Equal(t, cat.StandingRecommendations, exec.Recommendations[2:])

	require.NotNil(t, data.Sections.Methodology)
	assert.Equal(t, cat.DefaultMethodology, data.Sections.Methodology.Approach)

	rem := data.Sections.Remediation
	require.NotNil(t, rem)
	require.Len(t, rem.Timeline, 4)
	assert.Equal(t, 1, rem.Timeline[0].Count)
	assert.Equal(t, 0, rem.Timeline[1].Count)
	assert.Equal(t, 2, rem.Timeline[3].Count, "LOW and INFORMATIONAL share the last tier")
	require.Len(t, rem.ByCategory, 2)
	suggestions := map[string]string{}
	for _, c := range rem.ByCategory {
		suggestions[c.Category] = c.Suggestion
	}
	assert.Equal(t, cat.RemediationFor("sql injection"), suggestions["SQL Injection"])
	assert.Equal(t, cat.GenericRemediation, suggestions["Unusual"])

	require.NotNil(t, data.Sections.Appendices)
	assert.NotEmpty(t, data.Sections.Appendices.Disclaimer)
}

func TestExecutiveSummary_NoCriticalOrHigh(t *testing.T) {
	cat := testCatalog(t)
	p := &models.Pentest{Findings: findingsWith(models.SeverityLow)}

	data := Aggregate(cat, p, Config{IncludeExecutiveSummary: true}, Metadata{})

	assert.Equal(t, cat.StandingRecommendations, data.Sections.ExecutiveSummary.Recommendations)
}

func TestParseCatalog_RejectsUncoveredSeverity(t *testing.T) {
	_, err := ParseCatalog([]byte(`
tiers:
  - name: Only
    severities: [CRITICAL, HIGH]
`))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(`
tiers:
  - name: A
    severities: [CRITICAL, HIGH, MEDIUM, LOW, INFORMATIONAL]
  - name: B
    severities: [LOW]
`))
	assert.Error(t, err)
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantField string
	}{
		{"valid", Config{PentestID: "p", Title: "t", Format: "PDF"}, ""},
		{"missing pentest", Config{Title: "t", Format: FormatPDF}, "pentestId"},
		{"missing title", Config{PentestID: "p", Format: FormatPDF}, "title"},
		{"bad format", Config{PentestID: "p", Title: "t", Format: "xlsx"}, "format"},
		{"no format", Config{PentestID: "p", Title: "t"}, "format"},
		{"bad type", Config{PentestID: "p", Title: "t", Format: FormatJSON, ReportType: "weekly"}, "reportType"},
		{"bad severity", Config{PentestID: "p", Title: "t", Format: FormatJSON, FindingSeverityFilter: []string{"SEVERE"}}, "findingSeverityFilter"},
		{"bad status", Config{PentestID: "p", Title: "t", Format: FormatJSON, FindingStatusFilter: []string{"DONE"}}, "findingStatusFilter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			_, err := cfg.normalize()
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, FormatPDF, cfg.Format)
				assert.Equal(t, TypeFull, cfg.ReportType)
				assert.Equal(t, "en", cfg.Language)
				return
			}
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestFilters(t *testing.T) {
	cfg := Config{
		PentestID: "p", Title: "t", Format: FormatJSON,
		FindingSeverityFilter: []string{"critical", "info"},
		FindingStatusFilter:   []string{"OPEN"},
	}
	sel, err := cfg.normalize()
	require.NoError(t, err)

	findings := []models.Finding{
		{ID: "1", Severity: models.SeverityCritical, Status: models.StatusOpen},
		{ID: "2", Severity: models.SeverityCritical, Status: models.StatusResolved},
		{ID: "3", Severity: models.SeverityHigh, Status: models.StatusOpen},
		{ID: "4", Severity: models.SeverityInformational, Status: models.StatusOpen},
	}
	got := sel.apply(findings)

	ids := make([]string, 0, len(got))
	for _, f := range got {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"1", "4"}, ids)
}
