package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/auth"
	"github.com/BetterCallFirewall/Pentrack/internal/models"
	"github.com/BetterCallFirewall/Pentrack/internal/report"
	"github.com/BetterCallFirewall/Pentrack/internal/tracker"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// fail maps err onto the HTTP error taxonomy. Unclassified errors are logged
// and answered with a generic 500.
func (s *Server) fail(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, models.ErrAuthentication):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, models.ErrAuthorization):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		s.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

// caller is the identity set by auth.Required; the group guarantees it.
func caller(c *gin.Context) auth.Identity {
	id, _ := auth.FromContext(c)
	return id
}

// === Reports ===

func (s *Server) generateReport(c *gin.Context) {
	var cfg report.Config
	if !s.bind(c, &cfg) {
		return
	}
	id := caller(c)

	rep, err := s.deps.Reports.Generate(c.Request.Context(), id.TenantID, id.UserID, cfg)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rep)
}

func (s *Server) downloadReport(c *gin.Context) {
	rep, path, err := s.deps.Reports.Open(c.Request.Context(), caller(c).TenantID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.FileAttachment(path, rep.Filename)
}

// === Notifications ===

func (s *Server) listNotifications(c *gin.Context) {
	limit := defaultNotificationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.fail(c, models.Invalid("limit", "must be a positive integer"))
			return
		}
		limit = min(n, maxNotificationLimit)
	}
	unreadOnly := c.Query("unread") == "true"

	list, err := s.deps.Inbox.List(c.Request.Context(), caller(c).UserID, unreadOnly, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) markRead(c *gin.Context) {
	n, err := s.deps.Inbox.MarkRead(c.Request.Context(), c.Param("id"), caller(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) markAllRead(c *gin.Context) {
	updated, err := s.deps.Inbox.MarkAllRead(c.Request.Context(), caller(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (s *Server) unreadCount(c *gin.Context) {
	count, err := s.deps.Inbox.UnreadCount(c.Request.Context(), caller(c).UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// === Findings, pentests and comments ===

func (s *Server) createFinding(c *gin.Context) {
	var in tracker.NewFinding
	if !s.bind(c, &in) {
		return
	}
	f, err := s.deps.Tracker.CreateFinding(c.Request.Context(), caller(c), c.Param("id"), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (s *Server) updateFinding(c *gin.Context) {
	var patch tracker.FindingPatch
	if !s.bind(c, &patch) {
		return
	}
	f, err := s.deps.Tracker.UpdateFinding(c.Request.Context(), caller(c), c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) updatePentestStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status"`
	}
	if !s.bind(c, &body) {
		return
	}
	p, err := s.deps.Tracker.UpdatePentestStatus(c.Request.Context(), caller(c), c.Param("id"), body.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) addComment(entityType models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Body string `json:"body"`
		}
		if !s.bind(c, &body) {
			return
		}
		comment, err := s.deps.Tracker.AddComment(c.Request.Context(), caller(c), string(entityType), c.Param("id"), body.Body)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, comment)
	}
}
