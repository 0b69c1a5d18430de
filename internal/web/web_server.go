package web

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/auth"
	"github.com/BetterCallFirewall/Pentrack/internal/config"
	"github.com/BetterCallFirewall/Pentrack/internal/models"
	"github.com/BetterCallFirewall/Pentrack/internal/report"
	"github.com/BetterCallFirewall/Pentrack/internal/tracker"
)

type Inbox interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID string) (models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type Reports interface {
	Generate(ctx context.Context, tenantID, userID string, cfg report.Config) (models.Report, error)
	Open(ctx context.Context, tenantID, id string) (models.Report, string, error)
}

type Tracker interface {
	CreateFinding(ctx context.Context, actor auth.Identity, pentestID string, in tracker.NewFinding) (models.Finding, error)
	UpdateFinding(ctx context.Context, actor auth.Identity, id string, patch tracker.FindingPatch) (models.Finding, error)
	UpdatePentestStatus(ctx context.Context, actor auth.Identity, id, status string) (models.Pentest, error)
	AddComment(ctx context.Context, actor auth.Identity, entityType, entityID, body string) (models.Comment, error)
}

// Deps are the collaborators served over HTTP.
type Deps struct {
	Resolver auth.Resolver
	// Realtime handles the WebSocket upgrade on /ws.
	Realtime http.HandlerFunc
	Inbox    Inbox
	Reports  Reports
	Tracker  Tracker
}

type Server struct {
	config config.WebConfig
	deps   Deps
	logger *zap.Logger
	engine *gin.Engine
	server *http.Server
}

func NewServer(cfg config.WebConfig, deps Deps, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger,
		engine: gin.New(),
	}
	s.routes()

	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.Use(gin.Recovery(), requestLogger(s.logger), cors(s.config.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	// The hub authenticates the upgrade itself so it can answer 401 before upgrading.
	r.GET("/ws", gin.WrapF(s.deps.Realtime))

	api := r.Group("/api", auth.Required(s.deps.Resolver, s.logger))
	staff := auth.RequireRole(models.RoleAdmin, models.RoleAuditor)

	api.POST("/reports/generate", s.generateReport)
	api.GET("/reports/:id/download", s.downloadReport)

	api.GET("/notifications", s.listNotifications)
	api.GET("/notifications/unread-count", s.unreadCount)
	api.POST("/notifications/read-all", s.markAllRead)
	api.POST("/notifications/:id/read", s.markRead)

	api.POST("/pentests/:id/findings", staff, s.createFinding)
	api.PATCH("/pentests/:id/status", staff, s.updatePentestStatus)
	api.PATCH("/findings/:id", staff, s.updateFinding)

	for _, t := range models.EntityTypes {
		api.POST("/"+string(t)+"s/:id/comments", s.addComment(t))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve accepts connections on ln until Shutdown. TLS is used when
// tlsConfig is non-nil.
func (s *Server) Serve(ln net.Listener, tlsConfig *tls.Config) error {
	s.logger.Info("web server listening", zap.String("addr", ln.Addr().String()), zap.Bool("tls", tlsConfig != nil))

	var err error
	if tlsConfig != nil {
		s.server.TLSConfig = tlsConfig
		err = s.server.ServeTLS(ln, "", "")
	} else {
		err = s.server.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
