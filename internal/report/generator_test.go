package report_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
	"github.com/BetterCallFirewall/Pentrack/internal/report"
	"github.com/BetterCallFirewall/Pentrack/internal/storage/storagetest"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[string][]models.Notification
	err  error
}

func (r *recordingNotifier) NotifyUser(_ context.Context, userID string, n models.Notification) (models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return models.Notification{}, r.err
	}
	if r.sent == nil {
		r.sent = make(map[string][]models.Notification)
	}
	n.UserID = userID
	r.sent[userID] = append(r.sent[userID], n)
	return n, nil
}

func newGenerator(t *testing.T, notifier report.Notifier) (*report.Generator, storagetest.Tenant, storagetest.Tenant) {
	t.Helper()
	s := storagetest.New(t)
	acme := storagetest.Seed(t, s, "acme")
	globex := storagetest.Seed(t, s, "globex")

	ctx := context.Background()
	for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityLow} {
		_, err := s.CreateFinding(ctx, models.Finding{
			TenantID:   acme.Tenant.ID,
			PentestID:  acme.Pentest.ID,
			Title:      string(sev) + " issue",
			Severity:   sev,
			Status:     models.StatusOpen,
			ReporterID: &acme.Auditor.ID,
		})
		require.NoError(t, err)
	}

	g, err := report.NewGenerator(s, notifier, t.TempDir(), "https://pentrack.test/", zap.NewNop())
	require.NoError(t, err)
	return g, acme, globex
}

func TestGenerate_WritesArtifactAndNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	g, acme, _ := newGenerator(t, notifier)
	ctx := context.Background()

	rep, err := g.Generate(ctx, acme.Tenant.ID, acme.Admin.ID, report.Config{
		PentestID:             acme.Pentest.ID,
		Title:                 "Acme Q1",
		Format:                report.FormatJSON,
		IncludeFindings:       true,
		FindingSeverityFilter: []string{"CRITICAL", "HIGH"},
	})
	require.NoError(t, err)

	assert.Equal(t, acme.Pentest.ID, rep.PentestID)
	assert.Equal(t, "json", rep.Format)
	assert.Equal(t, "full", rep.ReportType)
	assert.Equal(t, "https://pentrack.test/api/reports/"+rep.ID+"/download", rep.FileURL)

	got, path, err := g.Open(ctx, acme.Tenant.ID, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.ID, got.ID)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.EqualValues(t, len(raw), rep.FileSize)

	var data report.Data
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, 2, data.Statistics.TotalFindings, "severity filter applies before aggregation")
	assert.Equal(t, 17, data.Statistics.OverallRiskScore)
	assert.Equal(t, 14, data.Statistics.TestingDurationDays)
	assert.Equal(t, "acme Admin", data.Metadata.GeneratedBy)
	assert.Nil(t, data.Sections.ExecutiveSummary)

	require.Len(t, notifier.sent[acme.Admin.ID], 1)
	n := notifier.sent[acme.Admin.ID][0]
	assert.Equal(t, models.NotificationReport, n.Type)
	require.NotNil(t, n.Link)
	assert.Equal(t, "/reports/"+rep.ID, *n.Link)
}

func TestGenerate_CrossTenantPentest(t *testing.T) {
	notifier := &recordingNotifier{}
	g, acme, globex := newGenerator(t, notifier)

	_, err := g.Generate(context.Background(), globex.Tenant.ID, globex.Admin.ID, report.Config{
		PentestID: acme.Pentest.ID,
		Title:     "Snoop",
		Format:    report.FormatPDF,
	})

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, notifier.sent)
}

func TestGenerate_InvalidConfig(t *testing.T) {
	g, acme, _ := newGenerator(t, &recordingNotifier{})

	_, err := g.Generate(context.Background(), acme.Tenant.ID, acme.Admin.ID, report.Config{
		PentestID: acme.Pentest.ID,
		Title:     "Bad",
		Format:    "xlsx",
	})

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "format", verr.Field)
}

func TestGenerate_NotificationFailureIsNotFatal(t *testing.T) {
	g, acme, _ := newGenerator(t, &recordingNotifier{err: errors.New("push down")})

	rep, err := g.Generate(context.Background(), acme.Tenant.ID, acme.Admin.ID, report.Config{
		PentestID: acme.Pentest.ID,
		Title:     "Still works",
		Format:    report.FormatHTML,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, rep.ID)
}

func TestOpen_OtherTenant(t *testing.T) {
	g, acme, globex := newGenerator(t, &recordingNotifier{})
	ctx := context.Background()

	rep, err := g.Generate(ctx, acme.Tenant.ID, acme.Admin.ID, report.Config{
		PentestID: acme.Pentest.ID,
		Title:     "Private",
		Format:    report.FormatDOCX,
	})
	require.NoError(t, err)

	_, _, err = g.Open(ctx, globex.Tenant.ID, rep.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, os.Remove(g.Path(rep)))
	_, _, err = g.Open(ctx, acme.Tenant.ID, rep.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
