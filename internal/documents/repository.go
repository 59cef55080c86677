package documents

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	ierr "sop-portal/portal-backend/internal/errors"
)

type Repository interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error)
	ListDocuments(ctx context.Context, filter ListFilter) ([]Document, error)
	ListByCode(ctx context.Context, documentCode string) ([]Document, error)
	// UpdateDocument persists doc only if the stored status still equals fromStatus.
	UpdateDocument(ctx context.Context, doc *Document, fromStatus Status) error

	ListBreachCandidates(ctx context.Context, asOf time.Time) ([]Document, error)
	MarkBreached(ctx context.Context, id uuid.UUID) error

	CreateLog(ctx context.Context, log *DocumentLog) error
	ListLogs(ctx context.Context, documentID uuid.UUID) ([]DocumentLog, error)
}

// ListFilter narrows ListDocuments. Archived and deleted documents are left out unless
// IncludeInactive is set or Status names one of them.
type ListFilter struct {
	Status          *Status
	Department      string
	DocumentCode    string
	IncludeInactive bool
}

// Schema creates the tables used by the postgres repository.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	id                 UUID PRIMARY KEY,
	title              TEXT NOT NULL,
	status             TEXT NOT NULL,
	document_code      TEXT NOT NULL,
	version_number     TEXT NOT NULL,
	country            TEXT NOT NULL DEFAULT '',
	department         TEXT NOT NULL DEFAULT '',
	document_type      TEXT NOT NULL DEFAULT '',
	document_owners    JSONB NOT NULL DEFAULT '[]',
	reviewers          JSONB NOT NULL DEFAULT '[]',
	document_creators  JSONB NOT NULL DEFAULT '[]',
	compliance_names   JSONB NOT NULL DEFAULT '[]',
	current_reviewers  JSONB NOT NULL DEFAULT '[]',
	last_revision_date DATE,
	next_revision_date DATE,
	is_breached        BOOLEAN NOT NULL DEFAULT FALSE,
	pending_with       TEXT NOT NULL DEFAULT '',
	review_cycle       INTEGER NOT NULL DEFAULT 0,
	file_key           TEXT NOT NULL DEFAULT '',
	comments           JSONB NOT NULL DEFAULT '[]',
	created_at         TIMESTAMPTZ NOT NULL,
	upload_date        TIMESTAMPTZ,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_code ON documents (document_code);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status);

CREATE TABLE IF NOT EXISTS document_logs (
	id           UUID PRIMARY KEY,
	document_id  UUID NOT NULL REFERENCES documents (id),
	action       TEXT NOT NULL,
	acting_role  TEXT NOT NULL,
	details      JSONB NOT NULL DEFAULT '{}',
	performed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_document_logs_document ON document_logs (document_id, performed_at);
`

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return ierr.WithError(err).
			WithMessage("failed to apply document schema").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *postgresRepository) CreateDocument(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (
			id, title, status, document_code, version_number, country, department,
			document_type, document_owners, reviewers, document_creators, compliance_names,
			current_reviewers, last_revision_date, next_revision_date, is_breached,
			pending_with, review_cycle, file_key, comments, created_at, upload_date, updated_at
		) VALUES (
			:id, :title, :status, :document_code, :version_number, :country, :department,
			:document_type, :document_owners, :reviewers, :document_creators, :compliance_names,
			:current_reviewers, :last_revision_date, :next_revision_date, :is_breached,
			:pending_with, :review_cycle, :file_key, :comments, :created_at, :upload_date, :updated_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return dbError(err, "failed to create document")
	}
	return nil
}

func (r *postgresRepository) GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc, "SELECT * FROM documents WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ierr.NewErrorf("document %s not found", id).
			WithHint("Document not found").
			WithReportableDetails(map[string]any{"document_id": id}).
			Mark(ierr.ErrNotFound)
	}
	if err != nil {
		return nil, dbError(err, "failed to get document")
	}
	return &doc, nil
}

func (r *postgresRepository) ListDocuments(ctx context.Context, filter ListFilter) ([]Document, error) {
	query, args := buildListQuery(filter)

	docs := []Document{}
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, dbError(err, "failed to list documents")
	}
	return docs, nil
}

func buildListQuery(filter ListFilter) (string, []interface{}) {
	query := "SELECT * FROM documents WHERE 1=1"
	var args []interface{}
	argCount := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filter.Status)
		argCount++
	} else if !filter.IncludeInactive {
		query += fmt.Sprintf(" AND status NOT IN ($%d, $%d)", argCount, argCount+1)
		args = append(args, StatusArchived, StatusDeleted)
		argCount += 2
	}
	if dept := strings.TrimSpace(filter.Department); dept != "" {
		query += fmt.Sprintf(" AND department = $%d", argCount)
		args = append(args, dept)
		argCount++
	}
	if code := strings.TrimSpace(filter.DocumentCode); code != "" {
		query += fmt.Sprintf(" AND document_code = $%d", argCount)
		args = append(args, code)
	}

	return query + " ORDER BY created_at DESC", args
}

func (r *postgresRepository) ListByCode(ctx context.Context, documentCode string) ([]Document, error) {
	return r.ListDocuments(ctx, ListFilter{DocumentCode: documentCode, IncludeInactive: true})
}

func (r *postgresRepository) UpdateDocument(ctx context.Context, doc *Document, fromStatus Status) error {
	query := `
		UPDATE documents SET
			title = :title,
			status = :status,
			version_number = :version_number,
			document_owners = :document_owners,
			reviewers = :reviewers,
			current_reviewers = :current_reviewers,
			last_revision_date = :last_revision_date,
			next_revision_date = :next_revision_date,
			pending_with = :pending_with,
			review_cycle = :review_cycle,
			file_key = :file_key,
			comments = :comments,
			upload_date = :upload_date,
			updated_at = :updated_at
		WHERE id = :id AND status = :from_status`

	args := struct {
		*Document
		FromStatus Status `db:"from_status"`
	}{Document: doc, FromStatus: fromStatus}

	res, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return dbError(err, "failed to update document")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, "failed to update document")
	}
	if n == 0 {
		return ierr.NewErrorf("document %s is no longer %s", doc.ID, fromStatus).
			WithHint("The document was changed by someone else. Reload and try again").
			WithReportableDetails(map[string]any{"document_id": doc.ID, "expected_status": fromStatus}).
			Mark(ierr.ErrInvalidTransition)
	}
	return nil
}

func (r *postgresRepository) ListBreachCandidates(ctx context.Context, asOf time.Time) ([]Document, error) {
	docs := []Document{}
	err := r.db.SelectContext(ctx, &docs, `
		SELECT * FROM documents
		WHERE status IN ($1, $2)
			AND is_breached = FALSE
			AND next_revision_date IS NOT NULL
			AND next_revision_date < $3
		ORDER BY next_revision_date`,
		StatusLive, StatusLiveCR, asOf)
	if err != nil {
		return nil, dbError(err, "failed to list breach candidates")
	}
	return docs, nil
}

func (r *postgresRepository) MarkBreached(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "UPDATE documents SET is_breached = TRUE WHERE id = $1", id)
	if err != nil {
		return dbError(err, "failed to mark document breached")
	}
	return nil
}

func (r *postgresRepository) CreateLog(ctx context.Context, log *DocumentLog) error {
	query := `
		INSERT INTO document_logs (
			id, document_id, action, acting_role, details, performed_at
		) VALUES (
			:id, :document_id, :action, :acting_role, :details, :performed_at
		)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return dbError(err, "failed to write document log")
	}
	return nil
}

func (r *postgresRepository) ListLogs(ctx context.Context, documentID uuid.UUID) ([]DocumentLog, error) {
	logs := []DocumentLog{}
	err := r.db.SelectContext(ctx, &logs,
		"SELECT * FROM document_logs WHERE document_id = $1 ORDER BY performed_at DESC", documentID)
	if err != nil {
		return nil, dbError(err, "failed to list document logs")
	}
	return logs, nil
}

func dbError(err error, msg string) error {
	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("A database error occurred").
		Mark(ierr.ErrDatabase)
}
