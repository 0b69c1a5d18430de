package report

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

func sampleData(t *testing.T) *Data {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(5 * 24 * time.Hour)
	p := &models.Pentest{
		ID: "p1", Title: "Perimeter <review>", StartDate: &start, EndDate: &end,
		Target: &models.Target{Name: "portal", Address: "10.0.0.1"},
		Findings: []models.Finding{
			{
				ID: "f1", Title: "SQLi in /login", Severity: models.SeverityCritical, Status: models.StatusOpen,
				Category: "SQL Injection", CVSSScore: score(9.8), ProofOfConcept: "' OR 1=1 --",
				ReproductionSteps: "1. open /login\n2. submit payload", References: models.StringList{"https://owasp.org"},
				ReporterName: "Alice",
			},
			{ID: "f2", Title: "Verbose banner", Severity: models.SeverityInformational, Status: models.StatusResolved},
		},
	}
	cfg := Config{
		Title: "Q1 Perimeter & Web", ReportType: TypeFull, Language: "en",
		IncludeExecutiveSummary: true, IncludeMethodology: true, IncludeFindings: true,
		IncludeRemediation: true, IncludeAppendices: true, Watermark: true, Confidential: true,
	}
	return Aggregate(testCatalog(t), p, cfg, Metadata{
		GeneratedAt: time.Date(2024, 3, 20, 14, 5, 9, 0, time.UTC),
		GeneratedBy: "Alice",
		TenantID:    "acme",
	})
}

func TestRenderers(t *testing.T) {
	data := sampleData(t)

	tests := []struct {
		format      Format
		contentType string
		check       func(t *testing.T, b []byte)
	}{
		{FormatPDF, "application/pdf", func(t *testing.T, b []byte) {
			assert.True(t, bytes.HasPrefix(b, []byte("%PDF")))
		}},
		{FormatDOCX, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", func(t *testing.T, b []byte) {
			zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
			require.NoError(t, err)
			parts := map[string]string{}
			for _, f := range zr.File {
				rc, err := f.Open()
				require.NoError(t, err)
				body, err := io.ReadAll(rc)
				require.NoError(t, err)
				rc.Close()
				parts[f.Name] = string(body)
			}
			require.Contains(t, parts, "[Content_Types].xml")
			require.Contains(t, parts, "word/document.xml")
			assert.Contains(t, parts["word/document.xml"], "Q1 Perimeter &amp; Web")
			assert.Contains(t, parts["word/document.xml"], "SQLi in /login")
		}},
		{FormatHTML, "text/html; charset=utf-8", func(t *testing.T, b []byte) {
			html := string(b)
			assert.Contains(t, html, "Q1 Perimeter &amp; Web")
			assert.NotContains(t, html, "<review>")
			assert.Contains(t, html, "9.8")
		}},
		{FormatJSON, "application/json", func(t *testing.T, b []byte) {
			var got Data
			require.NoError(t, json.Unmarshal(b, &got))
			assert.Equal(t, data.Statistics, got.Statistics)
			assert.Equal(t, data.Metadata.Title, got.Metadata.Title)
			require.NotNil(t, got.Sections.Findings)
			assert.Equal(t, 2, got.Sections.Findings.Total)
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			r, err := RendererFor(tt.format)
			require.NoError(t, err)

			doc, err := r.Render(data)
			require.NoError(t, err)

			assert.NotEmpty(t, doc.Bytes)
			assert.Equal(t, tt.contentType, doc.ContentType)
			assert.Equal(t, "q1-perimeter-web-20240320-140509."+string(tt.format), doc.Filename)
			tt.check(t, doc.Bytes)
		})
	}
}

func TestRenderers_EmptyReport(t *testing.T) {
	data := Aggregate(testCatalog(t), &models.Pentest{ID: "p"}, Config{Title: "Empty"}, Metadata{})

	for f := range renderers {
		r, err := RendererFor(f)
		require.NoError(t, err)
		doc, err := r.Render(data)
		require.NoError(t, err, "format %s", f)
		assert.NotEmpty(t, doc.Bytes, "format %s", f)
	}
}

func TestRendererFor_Unknown(t *testing.T) {
	_, err := RendererFor("xlsx")
	assert.Error(t, err)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDOCXBuilder_KeepsFirstWriteError(t *testing.T) {
	d := &docxBuilder{}
	d.escape(brokenWriter{}, "R&D <findings>")
	require.EqualError(t, d.err, "disk full")

	d.escape(&d.body, "after")
	assert.Zero(t, d.body.Len(), "nothing is written once an error is kept")

	d = &docxBuilder{}
	d.run("R&D <findings>", false, 0, "")
	require.NoError(t, d.err)
	assert.Contains(t, d.body.String(), "R&amp;D &lt;findings&gt;")
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Q1 Perimeter & Web", "q1-perimeter-web"},
		{"  --Hello__World--  ", "hello-world"},
		{"Отчёт", "report"},
		{"", "report"},
		{strings.Repeat("ab ", 40), strings.TrimSuffix(strings.Repeat("ab-", 20), "-")},
	}
	for _, tt := range tests {
		got := slug(tt.in)
		assert.Equal(t, tt.want, got, "slug(%q)", tt.in)
		assert.LessOrEqual(t, len(got), 60)
	}
}
