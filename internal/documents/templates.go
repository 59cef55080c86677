package documents

import "strings"

// Notification template keys. Status changes use "document_<status>".
const (
	TemplateReminder       = "document_reminder"
	TemplateRevisionBreach = "document_revision_breached"
)

// TemplateKeyFor returns the template announcing that a document entered status.
func TemplateKeyFor(status Status) string {
	return "document_" + strings.ReplaceAll(string(status), "-", "_")
}
