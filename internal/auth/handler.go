package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "sop-portal/portal-backend/internal/errors"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "auth service alive!"})
}

type tokenRequest struct {
	Subject string `json:"subject" binding:"required"`
	Role    string `json:"role" binding:"required"`
	Key     string `json:"key" binding:"required"`
}

// IssueToken signs a token for the given subject and role. Only mounted when token
// issuing is enabled in config.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request body").
			Mark(ierr.ErrValidation))
		return
	}

	if err := h.Service.CheckIssueKey(req.Key); err != nil {
		c.Error(err)
		return
	}

	token, expiresAt, err := h.Service.IssueToken(req.Subject, req.Role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expiresAt})
}

func (h *Handler) Me(c *gin.Context) {
	role, _ := RoleFromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"subject": c.GetString(ContextKeySubject),
		"role":    role,
	})
}
