package documents

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"

	"sop-portal/portal-backend/internal/export"
)

var registerColumns = []export.Column{
	{Key: "document_code", Label: "Code"},
	{Key: "title", Label: "Title"},
	{Key: "version_number", Label: "Version"},
	{Key: "department", Label: "Department"},
	{Key: "document_type", Label: "Type"},
	{Key: "status", Label: "Status"},
	{Key: "pending_with", Label: "Pending With"},
	{Key: "owner", Label: "Owner"},
	{Key: "document_owners", Label: "Owners"},
	{Key: "last_revision_date", Label: "Last Revision"},
	{Key: "next_revision_date", Label: "Next Revision"},
	{Key: "is_breached", Label: "Breached"},
}

// RegisterTable lays out views as the document register.
func RegisterTable(views []View, generatedAt time.Time) export.Table {
	return export.Table{
		Title:   "Document Register",
		Columns: registerColumns,
		Rows: lo.Map(views, func(v View, _ int) map[string]interface{} {
			doc := v.Document
			owner, _ := doc.FirstOwner()
			return map[string]interface{}{
				"document_code":      doc.DocumentCode,
				"title":              doc.Title,
				"version_number":     doc.VersionNumber,
				"department":         doc.Department,
				"document_type":      doc.DocumentType,
				"status":             string(doc.Status),
				"pending_with":       v.PendingWithDisplay,
				"owner":              owner.Name,
				"document_owners":    strings.Join(doc.DocumentOwners.Names(), "; "),
				"last_revision_date": doc.LastRevisionDate,
				"next_revision_date": doc.NextRevisionDate,
				"is_breached":        doc.IsBreached,
			}
		}),
		GeneratedAt: generatedAt,
	}
}

func (s *documentService) ExportRegister(ctx context.Context, filter ListFilter, role Role, format export.Format, w io.Writer) error {
	views, err := s.ListDocuments(ctx, filter, role)
	if err != nil {
		return err
	}
	return export.Write(w, format, RegisterTable(views, s.now()))
}
