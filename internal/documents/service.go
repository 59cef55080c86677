package documents

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	ierr "sop-portal/portal-backend/internal/errors"
	"sop-portal/portal-backend/internal/export"
	"sop-portal/portal-backend/internal/validator"
)

type Service interface {
	CreateDocument(ctx context.Context, req CreateRequest, role Role) (*View, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	GetView(ctx context.Context, id uuid.UUID, role Role) (*View, error)
	ListDocuments(ctx context.Context, filter ListFilter, role Role) ([]View, error)
	// ExportRegister writes the filtered documents as a register in format.
	ExportRegister(ctx context.Context, filter ListFilter, role Role, format export.Format, w io.Writer) error
	SuggestCode(ctx context.Context, department, documentType string) (*CodeSuggestion, error)

	Transition(ctx context.Context, req TransitionRequest) (*View, error)
	UploadRevised(ctx context.Context, req TransitionRequest, fileName string, body io.Reader) (*View, error)

	ListLogs(ctx context.Context, id uuid.UUID) ([]DocumentLog, error)
	FileURL(ctx context.Context, id uuid.UUID) (string, error)
	MarkBreached(ctx context.Context, now time.Time) (int, error)
}

// Notifier delivers a templated notification to every holder of recipientRole.
type Notifier interface {
	Notify(ctx context.Context, documentID uuid.UUID, recipientRole string, templateKey string, data map[string]any) error
}

type CreateRequest struct {
	Title            string `json:"title" validate:"required"`
	Country          string `json:"country"`
	Department       string `json:"department" validate:"required"`
	DocumentType     string `json:"document_type" validate:"required"`
	DocumentCode     string `json:"document_code"`
	DocumentOwners   People `json:"document_owners" validate:"required,min=1,dive"`
	Reviewers        People `json:"reviewers" validate:"dive"`
	DocumentCreators People `json:"document_creators" validate:"dive"`
	ComplianceNames  People `json:"compliance_names" validate:"dive"`
	LastRevisionDate string `json:"last_revision_date" validate:"omitempty,datetime=2006-01-02"`
	NextRevisionDate string `json:"next_revision_date" validate:"omitempty,datetime=2006-01-02"`
	UploadDate       string `json:"upload_date" validate:"omitempty,datetime=2006-01-02"`
	// BypassWorkflow uploads an already approved document straight to live.
	BypassWorkflow bool `json:"bypass_workflow"`
}

// View is a document as seen by one role.
type View struct {
	Document           *Document `json:"document"`
	PendingWith        string    `json:"pending_with"`
	PendingWithDisplay string    `json:"pending_with_display"`
	Actions            ActionSet `json:"actions"`
	StatusTargets      []Status  `json:"status_targets,omitempty"`
}

type CodeSuggestion struct {
	DocumentCode  string `json:"document_code"`
	VersionNumber string `json:"version_number"`
}

const (
	defaultURLLifetime = 15 * time.Minute
)

type documentService struct {
	repo     Repository
	notifier Notifier
	storage  *StorageProvider
	logger   *zap.Logger
	now      func() time.Time
	retry    func() backoff.BackOff
}

type Option func(*documentService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *documentService) { s.now = now }
}

// WithRetry replaces the backoff policy used for repository writes.
func WithRetry(policy func() backoff.BackOff) Option {
	return func(s *documentService) { s.retry = policy }
}

func NewService(repo Repository, notifier Notifier, storage *StorageProvider, logger *zap.Logger, opts ...Option) Service {
	s := &documentService{
		repo:     repo,
		notifier: notifier,
		storage:  storage,
		logger:   logger,
		now:      time.Now,
		retry: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return backoff.WithMaxRetries(b, 3)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *documentService) CreateDocument(ctx context.Context, req CreateRequest, role Role) (*View, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	if !canCreate(role, req.BypassWorkflow) {
		return nil, ierr.NewErrorf("role %s cannot create documents", role).
			WithHint("You are not allowed to create this document").
			WithReportableDetails(map[string]any{"role": role, "bypass_workflow": req.BypassWorkflow}).
			Mark(ierr.ErrPermissionDenied)
	}

	now := s.now()
	doc := &Document{
		ID:               uuid.New(),
		Title:            strings.TrimSpace(req.Title),
		Status:           StatusDraft,
		DocumentCode:     strings.TrimSpace(req.DocumentCode),
		Country:          req.Country,
		Department:       req.Department,
		DocumentType:     req.DocumentType,
		DocumentOwners:   req.DocumentOwners.Unique(),
		Reviewers:        req.Reviewers.Unique(),
		DocumentCreators: req.DocumentCreators.Unique(),
		ComplianceNames:  req.ComplianceNames.Unique(),
		Comments:         Comments{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if doc.DocumentCode == "" {
		doc.DocumentCode = GenerateDocumentCode(req.Department, req.DocumentType)
	}

	var err error
	if doc.LastRevisionDate, err = parseOptionalDate(req.LastRevisionDate); err != nil {
		return nil, err
	}
	if doc.NextRevisionDate, err = parseOptionalDate(req.NextRevisionDate); err != nil {
		return nil, err
	}
	if err := ValidateRevisionDates(doc.LastRevisionDate, doc.NextRevisionDate); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByCode(ctx, doc.DocumentCode)
	if err != nil {
		return nil, err
	}
	doc.VersionNumber = NextVersionNumber(existing, doc.DocumentCode)

	if req.BypassWorkflow {
		if err := s.prepareLive(doc, req.UploadDate, now); err != nil {
			return nil, err
		}
	}

	if err := s.withRetry(ctx, func() error { return s.repo.CreateDocument(ctx, doc) }); err != nil {
		return nil, err
	}

	s.logger.Info("document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("document_code", doc.DocumentCode),
		zap.String("version", doc.VersionNumber),
		zap.String("status", doc.Status.String()),
	)

	effects := []Effect{{
		Kind:      EffectLog,
		LogAction: LogCreate,
		Details: map[string]any{
			"status":          doc.Status,
			"version_number":  doc.VersionNumber,
			"bypass_workflow": req.BypassWorkflow,
		},
	}}
	if doc.Status == StatusLive {
		effects = append(effects, Effect{Kind: EffectNotify, RecipientRole: RoleDocumentOwner, TemplateKey: TemplateKeyFor(StatusLive)})
	}
	s.dispatch(doc, role, effects)

	return s.view(doc, role), nil
}

func canCreate(role Role, bypass bool) bool {
	switch role {
	case RoleAdmin, RoleDocumentController:
		return true
	case RoleDocumentCreator:
		return !bypass
	default:
		return false
	}
}

// prepareLive stamps the dates a document needs when it skips the approval flow.
func (s *documentService) prepareLive(doc *Document, uploadDate string, now time.Time) error {
	upload := now
	if uploadDate != "" {
		parsed, err := ParseDate(uploadDate)
		if err != nil {
			return err
		}
		upload = parsed
	}

	doc.Status = StatusLive
	doc.UploadDate = &upload
	if doc.LastRevisionDate == nil {
		last := truncateDay(upload)
		doc.LastRevisionDate = &last
	}
	if doc.NextRevisionDate == nil {
		next := MinNextRevisionDate(*doc.LastRevisionDate)
		doc.NextRevisionDate = &next
	}
	return nil
}

func parseOptionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseDate(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *documentService) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.repo.GetDocumentByID(ctx, id)
}

func (s *documentService) GetView(ctx context.Context, id uuid.UUID, role Role) (*View, error) {
	doc, err := s.repo.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(doc, role), nil
}

func (s *documentService) ListDocuments(ctx context.Context, filter ListFilter, role Role) ([]View, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, ierr.NewErrorf("unknown status %q", *filter.Status).
			WithHint("Unknown status filter").
			Mark(ierr.ErrValidation)
	}

	docs, err := s.repo.ListDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}
	return lo.Map(docs, func(doc Document, _ int) View {
		return *s.view(&doc, role)
	}), nil
}

func (s *documentService) SuggestCode(ctx context.Context, department, documentType string) (*CodeSuggestion, error) {
	if strings.TrimSpace(department) == "" || strings.TrimSpace(documentType) == "" {
		return nil, ierr.NewError("department and document type are required").
			WithHint("Please provide a department and a document type").
			Mark(ierr.ErrValidation)
	}

	code := GenerateDocumentCode(department, documentType)
	existing, err := s.repo.ListByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &CodeSuggestion{DocumentCode: code, VersionNumber: NextVersionNumber(existing, code)}, nil
}

// Transition re-reads the document and re-evaluates eligibility before applying the
// action, so a decision made on a stale view is rejected.
func (s *documentService) Transition(ctx context.Context, req TransitionRequest) (*View, error) {
	doc, err := s.repo.GetDocumentByID(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	res, err := ApplyTransition(doc, req.Action, req.ActingRole, req.Payload, s.now())
	if err != nil {
		s.logger.Debug("transition refused",
			zap.String("document_id", doc.ID.String()),
			zap.String("action", string(req.Action)),
			zap.String("role", string(req.ActingRole)),
			zap.String("status", doc.Status.String()),
			zap.Error(err),
		)
		return nil, err
	}

	err = s.withRetry(ctx, func() error {
		return s.repo.UpdateDocument(ctx, res.Document, doc.Status)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document transitioned",
		zap.String("document_id", doc.ID.String()),
		zap.String("action", string(req.Action)),
		zap.String("role", string(req.ActingRole)),
		zap.String("from", doc.Status.String()),
		zap.String("to", res.Document.Status.String()),
	)

	s.dispatch(res.Document, req.ActingRole, res.Effects)
	return s.view(res.Document, req.ActingRole), nil
}

// UploadRevised checks the transition before storing the file, so a refused upload
// leaves nothing in the bucket. A stored file whose transition then fails is deleted.
func (s *documentService) UploadRevised(ctx context.Context, req TransitionRequest, fileName string, body io.Reader) (*View, error) {
	req.Action = ActionUploadRevised

	doc, err := s.repo.GetDocumentByID(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if _, err := ApplyTransition(doc, ActionUploadRevised, req.ActingRole, req.Payload, s.now()); err != nil {
		return nil, err
	}

	if body == nil || s.storage == nil {
		return s.Transition(ctx, req)
	}

	key, err := s.storage.UploadRevision(ctx, doc.DocumentCode, IncrementVersion(doc.VersionNumber), fileName, body)
	if err != nil {
		return nil, err
	}
	req.Payload.FileKey = key

	view, err := s.Transition(ctx, req)
	if err != nil {
		if delErr := s.storage.DeleteRevision(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Error("failed to delete orphaned revision file",
				zap.String("document_id", doc.ID.String()),
				zap.String("key", key),
				zap.Error(delErr),
			)
		}
		return nil, err
	}
	return view, nil
}

func (s *documentService) ListLogs(ctx context.Context, id uuid.UUID) ([]DocumentLog, error) {
	if _, err := s.repo.GetDocumentByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListLogs(ctx, id)
}

func (s *documentService) FileURL(ctx context.Context, id uuid.UUID) (string, error) {
	doc, err := s.repo.GetDocumentByID(ctx, id)
	if err != nil {
		return "", err
	}
	if doc.FileKey == "" || s.storage == nil {
		return "", ierr.NewErrorf("document %s has no file", id).
			WithHint("No file has been uploaded for this document").
			Mark(ierr.ErrNotFound)
	}
	return s.storage.DownloadURL(ctx, doc.FileKey, defaultURLLifetime)
}

// MarkBreached flags live documents whose next revision date has passed and tells their
// owners. It returns the number of documents flagged.
func (s *documentService) MarkBreached(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.repo.ListBreachCandidates(ctx, truncateDay(now))
	if err != nil {
		return 0, err
	}

	flagged := 0
	for i := range candidates {
		doc := &candidates[i]
		if err := s.repo.MarkBreached(ctx, doc.ID); err != nil {
			s.logger.Error("failed to mark document breached",
				zap.String("document_id", doc.ID.String()),
				zap.Error(err),
			)
			continue
		}
		flagged++
		doc.IsBreached = true
		s.dispatch(doc, RoleDocumentController, []Effect{{
			Kind:          EffectNotify,
			RecipientRole: RoleDocumentOwner,
			TemplateKey:   TemplateRevisionBreach,
		}})
	}
	return flagged, nil
}

func (s *documentService) view(doc *Document, role Role) *View {
	return &View{
		Document:           doc,
		PendingWith:        ResolvePendingWith(doc),
		PendingWithDisplay: ResolvePendingWithDisplay(doc),
		Actions:            EligibleActions(role, doc),
		StatusTargets:      StatusPickerTargets(role, doc),
	}
}

func (s *documentService) withRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !ierr.IsDatabase(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(s.retry(), ctx))
}

// dispatch performs log and notify effects. Failures are logged and never surface to
// the caller; the transition has already been persisted.
func (s *documentService) dispatch(doc *Document, role Role, effects []Effect) {
	ctx := context.Background()
	for _, effect := range effects {
		switch effect.Kind {
		case EffectLog:
			entry := &DocumentLog{
				ID:          uuid.New(),
				DocumentID:  doc.ID,
				Action:      effect.LogAction,
				ActingRole:  role,
				Details:     LogDetails(effect.Details),
				PerformedAt: s.now(),
			}
			if err := s.repo.CreateLog(ctx, entry); err != nil {
				s.logger.Warn("failed to write document log",
					zap.String("document_id", doc.ID.String()),
					zap.String("log_action", effect.LogAction),
					zap.Error(err),
				)
			}
		case EffectNotify:
			if s.notifier == nil {
				continue
			}
			data := map[string]any{
				"title":         doc.Title,
				"document_code": doc.DocumentCode,
				"version":       doc.VersionNumber,
				"status":        doc.Status,
				"pending_with":  ResolvePendingWith(doc),
			}
			if err := s.notifier.Notify(ctx, doc.ID, string(effect.RecipientRole), effect.TemplateKey, data); err != nil {
				s.logger.Warn("failed to send notification",
					zap.String("document_id", doc.ID.String()),
					zap.String("recipient_role", string(effect.RecipientRole)),
					zap.String("template", effect.TemplateKey),
					zap.Error(err),
				)
			}
		case EffectStamp:
			s.logger.Debug("document field stamped",
				zap.String("document_id", doc.ID.String()),
				zap.String("field", effect.Field),
				zap.String("value", effect.Value),
			)
		}
	}
}
