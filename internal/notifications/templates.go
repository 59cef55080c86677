package notifications

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"sop-portal/portal-backend/internal/documents"
)

var defaultChannels = datatypes.JSON(`["IN_APP","WEBSOCKET","EMAIL","TOPIC"]`)

// DefaultTemplates covers every template key the workflow emits.
func DefaultTemplates() []NotificationTemplate {
	var templates []NotificationTemplate
	for _, status := range documents.AllStatuses {
		if status.IsInactive() {
			continue
		}
		label := strings.ReplaceAll(status.String(), "-", " ")
		templates = append(templates, NotificationTemplate{
			TemplateKey: documents.TemplateKeyFor(status),
			Name:        "Document " + label,
			Subject:     fmt.Sprintf("{{.title}} ({{.document_code}}) is %s", label),
			Body:        fmt.Sprintf("Document {{.title}} version {{.version}} moved to %s. Pending with: {{.pending_with}}.", label),
			Channels:    defaultChannels,
			IsActive:    true,
		})
	}

	return append(templates,
		NotificationTemplate{
			TemplateKey: documents.TemplateReminder,
			Name:        "Document reminder",
			Subject:     "Reminder: {{.title}} ({{.document_code}}) is waiting for you",
			Body:        "Document {{.title}} version {{.version}} is {{.status}} and pending with {{.pending_with}}.",
			Channels:    defaultChannels,
			IsActive:    true,
		},
		NotificationTemplate{
			TemplateKey: documents.TemplateRevisionBreach,
			Name:        "Revision date breached",
			Subject:     "{{.title}} ({{.document_code}}) is past its revision date",
			Body:        "Document {{.title}} version {{.version}} has passed its next revision date and must be revised.",
			Channels:    defaultChannels,
			IsActive:    true,
		},
	)
}

func fallbackTemplate(key string) NotificationTemplate {
	return NotificationTemplate{
		ID:          uuid.Nil,
		TemplateKey: key,
		Name:        key,
		Subject:     "Update on {{.title}} ({{.document_code}})",
		Body:        "Document {{.title}} is {{.status}}.",
	}
}

// Render executes subject and body against data. Missing keys render empty.
func (t NotificationTemplate) Render(data map[string]any) (string, string, error) {
	subject, err := render(t.TemplateKey+".subject", t.Subject, data)
	if err != nil {
		return "", "", err
	}
	body, err := render(t.TemplateKey+".body", t.Body, data)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func render(name, src string, data map[string]any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(src)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}
