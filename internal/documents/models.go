package documents

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Person struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
}

// People is an ordered assignment list stored as JSONB. Order is assignment order.
type People []Person

// Unique drops later entries that repeat an id, keeping assignment order.
func (p People) Unique() People {
	if p == nil {
		return nil
	}
	return lo.UniqBy(p, func(person Person) string {
		return person.ID
	})
}

// Names returns the display names in assignment order.
func (p People) Names() []string {
	return lo.Map(p, func(person Person, _ int) string {
		return person.Name
	})
}

func (p People) Value() (driver.Value, error) {
	return jsonValue(p, p == nil, "[]")
}

func (p *People) Scan(src interface{}) error {
	return scanJSON(src, p)
}

type CommentKind string

const (
	CommentQuery    CommentKind = "query"
	CommentReject   CommentKind = "reject"
	CommentReview   CommentKind = "review"
	CommentReminder CommentKind = "reminder"
)

type Comment struct {
	Kind      CommentKind `json:"kind"`
	Role      Role        `json:"role"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
}

// Comments is append-only.
type Comments []Comment

func (c Comments) Value() (driver.Value, error) {
	return jsonValue(c, c == nil, "[]")
}

func (c *Comments) Scan(src interface{}) error {
	return scanJSON(src, c)
}

// LogDetails is the JSONB payload of a log entry.
type LogDetails map[string]any

func (d LogDetails) Value() (driver.Value, error) {
	return jsonValue(d, d == nil, "{}")
}

func (d *LogDetails) Scan(src interface{}) error {
	return scanJSON(src, d)
}

// jsonValue renders v as text so lib/pq sends it as JSONB rather than bytea.
func jsonValue(v interface{}, empty bool, zero string) (driver.Value, error) {
	if empty {
		return zero, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}

type Document struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	Title            string     `json:"title" db:"title"`
	Status           Status     `json:"status" db:"status"`
	DocumentCode     string     `json:"document_code" db:"document_code"`
	VersionNumber    string     `json:"version_number" db:"version_number"`
	Country          string     `json:"country" db:"country"`
	Department       string     `json:"department" db:"department"`
	DocumentType     string     `json:"document_type" db:"document_type"`
	DocumentOwners   People     `json:"document_owners" db:"document_owners"`
	Reviewers        People     `json:"reviewers" db:"reviewers"`
	DocumentCreators People     `json:"document_creators" db:"document_creators"`
	ComplianceNames  People     `json:"compliance_names" db:"compliance_names"`
	CurrentReviewers People     `json:"current_reviewers" db:"current_reviewers"`
	LastRevisionDate *time.Time `json:"last_revision_date,omitempty" db:"last_revision_date"`
	NextRevisionDate *time.Time `json:"next_revision_date,omitempty" db:"next_revision_date"`
	IsBreached       bool       `json:"is_breached" db:"is_breached"`
	PendingWith      string     `json:"pending_with,omitempty" db:"pending_with"`
	ReviewCycle      int        `json:"review_cycle" db:"review_cycle"`
	FileKey          string     `json:"file_key,omitempty" db:"file_key"`
	Comments         Comments   `json:"comments" db:"comments"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UploadDate       *time.Time `json:"upload_date,omitempty" db:"upload_date"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy so callers can mutate it without touching d.
func (d *Document) Clone() *Document {
	c := *d
	c.DocumentOwners = clonePeople(d.DocumentOwners)
	c.Reviewers = clonePeople(d.Reviewers)
	c.DocumentCreators = clonePeople(d.DocumentCreators)
	c.ComplianceNames = clonePeople(d.ComplianceNames)
	c.CurrentReviewers = clonePeople(d.CurrentReviewers)
	c.LastRevisionDate = cloneTime(d.LastRevisionDate)
	c.NextRevisionDate = cloneTime(d.NextRevisionDate)
	c.UploadDate = cloneTime(d.UploadDate)
	if d.Comments != nil {
		c.Comments = append(Comments(nil), d.Comments...)
	}
	return &c
}

// FirstOwner is the owner shown in listings.
func (d *Document) FirstOwner() (Person, bool) {
	if len(d.DocumentOwners) == 0 {
		return Person{}, false
	}
	return d.DocumentOwners[0], true
}

func clonePeople(p People) People {
	if p == nil {
		return nil
	}
	return append(People(nil), p...)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Payload carries the per-action data of a transition request.
type Payload struct {
	Reason           string     `json:"reason,omitempty"`
	TargetStatus     Status     `json:"target_status,omitempty"`
	UploadDate       *time.Time `json:"upload_date,omitempty"`
	NextRevisionDate *time.Time `json:"next_revision_date,omitempty"`
	Reviewers        People     `json:"reviewers,omitempty"`
	DocumentOwners   People     `json:"document_owners,omitempty"`
	FileKey          string     `json:"file_key,omitempty"`
}

type TransitionRequest struct {
	DocumentID uuid.UUID `json:"document_id"`
	Action     Action    `json:"action"`
	ActingRole Role      `json:"acting_role"`
	Payload    Payload   `json:"payload"`
}

type EffectKind string

const (
	EffectLog    EffectKind = "log"
	EffectNotify EffectKind = "notify"
	EffectStamp  EffectKind = "stamp"
)

// Log action kinds written to the document log sink.
const (
	LogCreate       = "create"
	LogStatusChange = "status_change"
	LogQuery        = "query"
	LogApprove      = "approve"
	LogReview       = "review"
	LogReminder     = "reminder"
)

// Effect is an instruction for the caller; the executor never performs it.
type Effect struct {
	Kind          EffectKind     `json:"kind"`
	LogAction     string         `json:"log_action,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	RecipientRole Role           `json:"recipient_role,omitempty"`
	TemplateKey   string         `json:"template_key,omitempty"`
	Field         string         `json:"field,omitempty"`
	Value         string         `json:"value,omitempty"`
}

type Result struct {
	Document *Document `json:"document"`
	Effects  []Effect  `json:"effects"`
}

// DocumentLog is a persisted entry of the document log sink.
type DocumentLog struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	DocumentID  uuid.UUID  `json:"document_id" db:"document_id"`
	Action      string     `json:"action" db:"action"`
	ActingRole  Role       `json:"acting_role" db:"acting_role"`
	Details     LogDetails `json:"details" db:"details"`
	PerformedAt time.Time  `json:"performed_at" db:"performed_at"`
}
