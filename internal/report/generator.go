package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

type Store interface {
	PentestWithFindings(ctx context.Context, tenantID, id string) (*models.Pentest, error)
	UserByID(ctx context.Context, id string) (models.User, error)
	SaveReport(ctx context.Context, r models.Report) error
	ReportByID(ctx context.Context, tenantID, id string) (models.Report, error)
}

type Notifier interface {
	NotifyUser(ctx context.Context, userID string, n models.Notification) (models.Notification, error)
}

// Generator turns a request into a stored report artifact.
type Generator struct {
	store     Store
	notifier  Notifier
	catalog   *Catalog
	outputDir string
	baseURL   string
	logger    *zap.Logger
	now       func() time.Time
}

func NewGenerator(store Store, notifier Notifier, outputDir, baseURL string, logger *zap.Logger) (*Generator, error) {
	cat, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	return &Generator{
		store:     store,
		notifier:  notifier,
		catalog:   cat,
		outputDir: outputDir,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Generate validates cfg, aggregates the tenant's pentest, renders and stores
// the artifact and tells the requester. Invalid requests return a
// *models.ValidationError; a pentest outside tenantID returns
// models.ErrNotFound.
func (g *Generator) Generate(ctx context.Context, tenantID, userID string, cfg Config) (models.Report, error) {
	sel, err := cfg.normalize()
	if err != nil {
		return models.Report{}, err
	}

	pentest, err := g.store.PentestWithFindings(ctx, tenantID, cfg.PentestID)
	if err != nil {
		return models.Report{}, err
	}
	pentest.Findings = sel.apply(pentest.Findings)

	generatedBy := userID
	if u, err := g.store.UserByID(ctx, userID); err == nil {
		generatedBy = u.Name
	} else if !errors.Is(err, models.ErrNotFound) {
		return models.Report{}, fmt.Errorf("loading requester: %w", err)
	}

	at := g.now().UTC()
	data := Aggregate(g.catalog, pentest, cfg, Metadata{
		GeneratedAt: at,
		GeneratedBy: generatedBy,
		TenantID:    tenantID,
	})

	r, err := RendererFor(cfg.Format)
	if err != nil {
		return models.Report{}, err
	}
	doc, err := r.Render(data)
	if err != nil {
		return models.Report{}, err
	}

	rep := models.Report{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		PentestID:   pentest.ID,
		Title:       cfg.Title,
		ReportType:  string(cfg.ReportType),
		Format:      string(cfg.Format),
		Filename:    doc.Filename,
		FileSize:    int64(len(doc.Bytes)),
		GeneratedBy: userID,
		GeneratedAt: at,
	}
	rep.FileURL = g.baseURL + "/api/reports/" + rep.ID + "/download"

	path := g.Path(rep)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return models.Report{}, fmt.Errorf("creating tenant report directory: %w", err)
	}
	if err := os.WriteFile(path, doc.Bytes, 0o644); err != nil {
		return models.Report{}, fmt.Errorf("writing report file: %w", err)
	}
	if err := g.store.SaveReport(ctx, rep); err != nil {
		_ = os.Remove(path)
		return models.Report{}, err
	}

	g.logger.Info("report generated",
		zap.String("report_id", rep.ID),
		zap.String("pentest_id", rep.PentestID),
		zap.String("tenant_id", tenantID),
		zap.String("format", rep.Format),
		zap.Int("findings", data.Statistics.TotalFindings),
		zap.Int64("bytes", rep.FileSize))

	link := models.EntityReport.Link(rep.ID)
	_, err = g.notifier.NotifyUser(ctx, userID, models.Notification{
		Type:    models.NotificationReport,
		Title:   "Report ready",
		Message: fmt.Sprintf("%s (%s) is ready to download", rep.Title, strings.ToUpper(rep.Format)),
		Link:    &link,
		Metadata: models.Metadata{
			"reportId":  rep.ID,
			"pentestId": rep.PentestID,
			"fileUrl":   rep.FileURL,
		},
	})
	if err != nil {
		g.logger.Warn("report notification failed", zap.String("report_id", rep.ID), zap.Error(err))
	}

	return rep, nil
}

// Open returns a tenant's report descriptor and the path of its artifact.
func (g *Generator) Open(ctx context.Context, tenantID, id string) (models.Report, string, error) {
	rep, err := g.store.ReportByID(ctx, tenantID, id)
	if err != nil {
		return models.Report{}, "", err
	}
	path := g.Path(rep)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Report{}, "", models.ErrNotFound
		}
		return models.Report{}, "", fmt.Errorf("locating report file: %w", err)
	}
	return rep, path, nil
}

// Path is where the artifact of rep lives on disk.
func (g *Generator) Path(rep models.Report) string {
	return filepath.Join(g.outputDir, rep.TenantID, rep.ID+"-"+filepath.Base(rep.Filename))
}
