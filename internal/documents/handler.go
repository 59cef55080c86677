package documents

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sop-portal/portal-backend/internal/auth"
	ierr "sop-portal/portal-backend/internal/errors"
	"sop-portal/portal-backend/internal/export"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/documents")
	{
		docs.POST("", h.Create)
		docs.GET("", h.List)
		docs.GET("/code", h.SuggestCode)
		docs.GET("/export", h.Export)
		docs.GET("/:id", h.Get)
		docs.GET("/:id/actions", h.Actions)
		docs.POST("/:id/transitions", h.Transition)
		docs.POST("/:id/revisions", h.UploadRevised)
		docs.GET("/:id/logs", h.Logs)
		docs.GET("/:id/file", h.FileURL)
	}
	rg.POST("/revision-dates/validate", h.ValidateRevisionDates)
}

func (h *Handler) Create(c *gin.Context) {
	role, ok := h.role(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(badRequest(err))
		return
	}

	view, err := h.service.CreateDocument(c.Request.Context(), req, role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) List(c *gin.Context) {
	role, ok := h.role(c)
	if !ok {
		return
	}

	filter, ok := listFilter(c)
	if !ok {
		return
	}

	views, err := h.service.ListDocuments(c.Request.Context(), filter, role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": views, "total": len(views)})
}

// Export streams the filtered register as csv, xlsx or pdf.
func (h *Handler) Export(c *gin.Context) {
	role, ok := h.role(c)
	if !ok {
		return
	}
	filter, ok := listFilter(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.Error(err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.ExportRegister(c.Request.Context(), filter, role, format, &buf); err != nil {
		c.Error(err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName("document-register")))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func listFilter(c *gin.Context) (ListFilter, bool) {
	filter := ListFilter{
		Department:   c.Query("department"),
		DocumentCode: c.Query("document_code"),
	}
	if s := c.Query("status"); s != "" {
		status := Status(s)
		filter.Status = &status
	}
	if s := c.Query("include_inactive"); s != "" {
		include, err := strconv.ParseBool(s)
		if err != nil {
			c.Error(ierr.WithError(err).
				WithHint("include_inactive must be a boolean").
				Mark(ierr.ErrValidation))
			return ListFilter{}, false
		}
		filter.IncludeInactive = include
	}
	return filter, true
}

func (h *Handler) Get(c *gin.Context) {
	role, ok := h.role(c)
	if !ok {
		return
	}
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	view, err := h.service.GetView(c.Request.Context(), id, role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Actions(c *gin.Context) {
	role, ok := h.role(c)
	if !ok {
		return
	}
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	view, err := h.service.GetView(c.Request.Context(), id, role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         view.Document.Status,
		"pending_with":   view.PendingWith,
		"actions":        view.Actions,
		"status_targets": view.StatusTargets,
	})
}

type transitionBody struct {
	Action           Action `json:"action" binding:"required"`
	Reason           string `json:"reason"`
	TargetStatus     Status `json:"target_status"`
	UploadDate       string `json:"upload_date"`
	NextRevisionDate string `json:"next_revision_date"`
	Reviewers        People `json:"reviewers"`
	DocumentOwners   People `json:"document_owners"`
}

func (b transitionBody) payload() (Payload, error) {
	p := Payload{
		Reason:         b.Reason,
		TargetStatus:   b.TargetStatus,
		Reviewers:      b.Reviewers,
		DocumentOwners: b.DocumentOwners,
	}

	var err error
	if p.UploadDate, err = parseOptionalDate(b.UploadDate); err != nil {
		return Payload{}, err
	}
	if p.NextRevisionDate, err = parseOptionalDate(b.NextRevisionDate); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func (h *Handler) Transition(c *gin.Context) {
	role, ok := h.role(c)
	if !ok {
		return
	}
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(badRequest(err))
		return
	}
	if !body.Action.IsValid() {
		c.Error(ierr.NewErrorf("unknown action %q", body.Action).
			WithHint("Unknown action").
			Mark(ierr.ErrValidation))
		return
	}
	payload, err := body.payload()
	if err != nil {
		c.Error(err)
		return
	}

	view, err := h.service.Transition(c.Request.Context(), TransitionRequest{
		DocumentID: id,
		Action:     body.Action,
		ActingRole: role,
		Payload:    payload,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UploadRevised accepts a multipart form with the revised file and an optional
// next_revision_date.
func (h *Handler) UploadRevised(c *gin.Context) {
	role, ok := h.role(c)
	if !ok {
		return
	}
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("A file is required").
			Mark(ierr.ErrValidation))
		return
	}
	next, err := parseOptionalDate(c.PostForm("next_revision_date"))
	if err != nil {
		c.Error(err)
		return
	}

	f, err := file.Open()
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Could not read the uploaded file").
			Mark(ierr.ErrValidation))
		return
	}
	defer f.Close()

	view, err := h.service.UploadRevised(c.Request.Context(), TransitionRequest{
		DocumentID: id,
		Action:     ActionUploadRevised,
		ActingRole: role,
		Payload:    Payload{NextRevisionDate: next},
	}, file.Filename, f)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Logs(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	logs, err := h.service.ListLogs(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *Handler) FileURL(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	url, err := h.service.FileURL(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) SuggestCode(c *gin.Context) {
	suggestion, err := h.service.SuggestCode(c.Request.Context(), c.Query("department"), c.Query("type"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

type revisionDatesBody struct {
	LastRevisionDate string `json:"last_revision_date" binding:"required"`
	NextRevisionDate string `json:"next_revision_date"`
}

// ValidateRevisionDates lets a form check the three month gap before submitting.
func (h *Handler) ValidateRevisionDates(c *gin.Context) {
	var body revisionDatesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(badRequest(err))
		return
	}

	last, err := ParseDate(strings.TrimSpace(body.LastRevisionDate))
	if err != nil {
		c.Error(err)
		return
	}
	floor := MinNextRevisionDate(last)

	resp := gin.H{
		"last_revision_date":     last.Format(DateLayout),
		"min_next_revision_date": floor.Format(DateLayout),
		"valid":                  true,
	}
	if body.NextRevisionDate != "" {
		next, err := ParseDate(strings.TrimSpace(body.NextRevisionDate))
		if err != nil {
			c.Error(err)
			return
		}
		resp["next_revision_date"] = next.Format(DateLayout)
		resp["valid"] = IsValidRevisionGap(last, next)
	}
	c.JSON(http.StatusOK, resp)
}

// role reads the acting role placed on the context by the auth middleware.
func (h *Handler) role(c *gin.Context) (Role, bool) {
	raw, _ := auth.RoleFromContext(c)
	role, ok := ParseRole(raw)
	if !ok {
		c.Error(ierr.NewErrorf("unknown role %q", raw).
			WithHint("A valid role is required").
			Mark(ierr.ErrPermissionDenied))
		return "", false
	}
	return role, true
}

func (h *Handler) documentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid document ID").
			Mark(ierr.ErrValidation))
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(err error) error {
	return ierr.WithError(err).
		WithHint("Invalid request body").
		Mark(ierr.ErrValidation)
}
