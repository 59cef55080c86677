package notifications

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationTemplate is the subject and body rendered for a template key such as
// document_under_review. Subject and Body are text/template sources.
type NotificationTemplate struct {
	ID          uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	TemplateKey string         `json:"template_key" gorm:"not null;uniqueIndex"`
	Name        string         `json:"name" gorm:"not null"`
	Subject     string         `json:"subject" gorm:"not null"`
	Body        string         `json:"body" gorm:"not null"`
	Channels    datatypes.JSON `json:"channels" gorm:"type:jsonb"`
	IsActive    bool           `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// Subscription routes notifications addressed to a role to a delivery address.
type Subscription struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Role      string    `json:"role" gorm:"not null;index" validate:"required"`
	Channel   string    `json:"channel" gorm:"not null" validate:"required,oneof=EMAIL TOPIC"`
	Address   string    `json:"address" gorm:"not null" validate:"required"`
	Enabled   bool      `json:"enabled" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// SentNotification records one delivery attempt on one channel.
type SentNotification struct {
	ID            uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	DocumentID    uuid.UUID      `json:"document_id" gorm:"type:uuid;not null;index"`
	RecipientRole string         `json:"recipient_role" gorm:"not null;index"`
	TemplateKey   string         `json:"template_key" gorm:"not null"`
	Channel       string         `json:"channel" gorm:"not null"`
	Address       string         `json:"address,omitempty"`
	Subject       string         `json:"subject" gorm:"not null"`
	Content       string         `json:"content" gorm:"not null"`
	Status        string         `json:"status" gorm:"not null"`
	ProviderID    *string        `json:"provider_id,omitempty"`
	ErrorMessage  *string        `json:"error_message,omitempty"`
	Data          datatypes.JSON `json:"data" gorm:"type:jsonb"`
	SentAt        *time.Time     `json:"sent_at,omitempty"`
	OpenedAt      *time.Time     `json:"opened_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// Message is a rendered notification handed to a channel.
type Message struct {
	DocumentID    uuid.UUID
	RecipientRole string
	TemplateKey   string
	Address       string
	Subject       string
	Body          string
	Data          map[string]any
}

// Constants
const (
	// Notification channels
	ChannelEmail     = "EMAIL"
	ChannelTopic     = "TOPIC"
	ChannelWebSocket = "WEBSOCKET"
	ChannelInApp     = "IN_APP"

	// Notification statuses
	StatusPending   = "PENDING"
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
	StatusFailed    = "FAILED"
	StatusSkipped   = "SKIPPED"
)
