package notifications

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sop-portal/portal-backend/internal/auth"
	"sop-portal/portal-backend/internal/documents"
	ierr "sop-portal/portal-backend/internal/errors"
	"sop-portal/portal-backend/internal/notifications/websocket"
)

// Store is the part of Service the HTTP layer needs.
type Store interface {
	ListForRole(ctx context.Context, role string, limit, offset int) ([]SentNotification, error)
	MarkAsRead(ctx context.Context, role string, notificationID uuid.UUID) error
	Subscribe(ctx context.Context, sub *Subscription) error
	ListTemplates(ctx context.Context) ([]NotificationTemplate, error)
}

type Handler struct {
	store     Store
	wsManager *websocket.Manager
	logger    *zap.Logger
}

func NewHandler(store Store, wsManager *websocket.Manager, logger *zap.Logger) *Handler {
	return &Handler{store: store, wsManager: wsManager, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/notifications")
	{
		group.GET("", h.List)
		group.POST("/:id/read", h.MarkAsRead)
		group.POST("/subscriptions", h.Subscribe)
		group.GET("/templates", h.ListTemplates)
	}
	if h.wsManager != nil {
		group.GET("/connections", h.Connections)
		rg.GET("/ws", h.Connect)
	}
}

func (h *Handler) List(c *gin.Context) {
	role, ok := roleOf(c)
	if !ok {
		return
	}

	limit, err := queryInt(c, "limit")
	if err != nil {
		c.Error(err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		c.Error(err)
		return
	}

	list, err := h.store.ListForRole(c.Request.Context(), role, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "count": len(list)})
}

func (h *Handler) MarkAsRead(c *gin.Context) {
	role, ok := roleOf(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid notification ID").
			Mark(ierr.ErrValidation))
		return
	}

	if err := h.store.MarkAsRead(c.Request.Context(), role, id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Subscribe(c *gin.Context) {
	var sub Subscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request body").
			Mark(ierr.ErrValidation))
		return
	}

	if err := h.store.Subscribe(c.Request.Context(), &sub); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *Handler) ListTemplates(c *gin.Context) {
	templates, err := h.store.ListTemplates(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

// Connect upgrades the request and registers the connection under the caller's role.
func (h *Handler) Connect(c *gin.Context) {
	role, ok := roleOf(c)
	if !ok {
		return
	}

	if _, err := h.wsManager.HandleConnection(c.Writer, c.Request, role, c.GetString(auth.ContextKeySubject)); err != nil {
		// the upgrader has already written the handshake error
		h.logger.Warn("websocket upgrade failed", zap.String("role", role), zap.Error(err))
	}
}

// Connections lists the live websocket connections for admins and document controllers.
func (h *Handler) Connections(c *gin.Context) {
	role, ok := roleOf(c)
	if !ok {
		return
	}
	if r, _ := documents.ParseRole(role); r != documents.RoleAdmin && r != documents.RoleDocumentController {
		c.Error(ierr.NewErrorf("role %s cannot list connections", role).
			WithHint("Only admins and document controllers can view connections").
			Mark(ierr.ErrPermissionDenied))
		return
	}

	info := h.wsManager.GetConnectionInfo()
	c.JSON(http.StatusOK, gin.H{"connections": info, "count": len(info)})
}

func roleOf(c *gin.Context) (string, bool) {
	role, ok := auth.RoleFromContext(c)
	if !ok {
		c.Error(ierr.NewError("missing role").
			WithHint("A role is required").
			Mark(ierr.ErrPermissionDenied))
		return "", false
	}
	return role, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	s := c.Query(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, ierr.NewErrorf("invalid %s %q", key, s).
			WithHintf("%s must be a non-negative integer", key).
			Mark(ierr.ErrValidation)
	}
	return n, nil
}
