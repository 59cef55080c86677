package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	ierr "sop-portal/portal-backend/internal/errors"
	"sop-portal/portal-backend/internal/notifications/websocket"
	"sop-portal/portal-backend/internal/validator"
)

// Service records and delivers workflow notifications. Every notification is stored for
// in-app reading, pushed to connected clients of the recipient role, and sent to the
// role's email and topic subscriptions.
type Service struct {
	db        *gorm.DB
	wsManager *websocket.Manager
	channels  map[string]Channel
	logger    *zap.Logger
	now       func() time.Time
}

// NewService migrates the notification tables and seeds the default templates.
func NewService(db *gorm.DB, wsManager *websocket.Manager, logger *zap.Logger, channels ...Channel) (*Service, error) {
	if err := db.AutoMigrate(
		&NotificationTemplate{},
		&Subscription{},
		&SentNotification{},
	); err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to migrate notification tables").
			Mark(ierr.ErrDatabase)
	}

	if err := seedDefaultTemplates(db); err != nil {
		logger.Warn("failed to seed notification templates", zap.Error(err))
	}

	s := &Service{
		db:        db,
		wsManager: wsManager,
		channels:  make(map[string]Channel),
		logger:    logger,
		now:       time.Now,
	}
	for _, ch := range channels {
		if ch != nil {
			s.channels[ch.Name()] = ch
		}
	}
	return s, nil
}

// Notify renders templateKey for data and delivers it to recipientRole. It fails only
// when nothing could be recorded or every attempted external delivery failed.
func (s *Service) Notify(ctx context.Context, documentID uuid.UUID, recipientRole string, templateKey string, data map[string]any) error {
	tmpl := s.template(ctx, templateKey)
	subject, body, err := tmpl.Render(data)
	if err != nil {
		return ierr.WithError(err).
			WithMessagef("template %s", templateKey).
			Mark(ierr.ErrSystem)
	}

	msg := Message{
		DocumentID:    documentID,
		RecipientRole: recipientRole,
		TemplateKey:   templateKey,
		Subject:       subject,
		Body:          body,
		Data:          data,
	}
	allowed := s.allowedChannels(tmpl)

	records := []SentNotification{s.record(msg, ChannelInApp, StatusDelivered, nil, nil)}

	if s.wsManager != nil && allowed(ChannelWebSocket) {
		records = append(records, s.push(msg))
	}

	subs, err := s.subscriptions(ctx, recipientRole)
	if err != nil {
		s.logger.Warn("failed to load subscriptions", zap.String("role", recipientRole), zap.Error(err))
	}

	attempted, failed := 0, 0
	for _, sub := range subs {
		if !allowed(sub.Channel) {
			continue
		}
		ch, ok := s.channels[sub.Channel]
		if !ok {
			continue
		}
		attempted++
		rec := s.deliver(ctx, ch, msg, sub.Address)
		if rec.Status == StatusFailed {
			failed++
		}
		records = append(records, rec)
	}

	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		return ierr.WithError(err).
			WithMessage("failed to record notification").
			Mark(ierr.ErrDatabase)
	}

	if attempted > 0 && failed == attempted {
		return ierr.NewErrorf("all %d deliveries of %s to %s failed", attempted, templateKey, recipientRole).
			Mark(ierr.ErrSystem)
	}
	return nil
}

func (s *Service) push(msg Message) SentNotification {
	_, err := s.wsManager.SendToRole(msg.RecipientRole, websocket.Message{
		Type: websocket.MessageTypeNotification,
		Data: map[string]any{
			"document_id":  msg.DocumentID.String(),
			"template_key": msg.TemplateKey,
			"subject":      msg.Subject,
			"body":         msg.Body,
		},
		Timestamp: s.now(),
	})
	if err != nil {
		// nobody of that role is online; the in-app record still reaches them
		return s.record(msg, ChannelWebSocket, StatusSkipped, nil, err)
	}
	return s.record(msg, ChannelWebSocket, StatusDelivered, nil, nil)
}

func (s *Service) deliver(ctx context.Context, ch Channel, msg Message, address string) SentNotification {
	msg.Address = address
	providerID, err := ch.Send(ctx, msg)
	if err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("channel", ch.Name()),
			zap.String("role", msg.RecipientRole),
			zap.String("template", msg.TemplateKey),
			zap.Error(err),
		)
		return s.record(msg, ch.Name(), StatusFailed, nil, err)
	}
	return s.record(msg, ch.Name(), StatusSent, &providerID, nil)
}

func (s *Service) record(msg Message, channel, status string, providerID *string, sendErr error) SentNotification {
	now := s.now()
	data, _ := json.Marshal(msg.Data)

	rec := SentNotification{
		ID:            uuid.New(),
		DocumentID:    msg.DocumentID,
		RecipientRole: msg.RecipientRole,
		TemplateKey:   msg.TemplateKey,
		Channel:       channel,
		Address:       msg.Address,
		Subject:       msg.Subject,
		Content:       msg.Body,
		Status:        status,
		ProviderID:    providerID,
		Data:          datatypes.JSON(data),
		CreatedAt:     now,
	}
	if status == StatusSent || status == StatusDelivered {
		rec.SentAt = &now
	}
	if sendErr != nil {
		rec.ErrorMessage = lo.ToPtr(sendErr.Error())
	}
	return rec
}

func (s *Service) template(ctx context.Context, key string) NotificationTemplate {
	var tmpl NotificationTemplate
	err := s.db.WithContext(ctx).Where("template_key = ? AND is_active = ?", key, true).First(&tmpl).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("failed to load notification template", zap.String("template", key), zap.Error(err))
		}
		return fallbackTemplate(key)
	}
	return tmpl
}

func (s *Service) subscriptions(ctx context.Context, role string) ([]Subscription, error) {
	var subs []Subscription
	err := s.db.WithContext(ctx).
		Where("role = ? AND enabled = ?", role, true).
		Order("created_at").
		Find(&subs).Error
	return subs, err
}

// allowedChannels reads the template's channel list; an empty list allows all and an
// unreadable one allows in-app only.
func (s *Service) allowedChannels(tmpl NotificationTemplate) func(string) bool {
	var channels []string
	if len(tmpl.Channels) > 0 {
		if err := json.Unmarshal(tmpl.Channels, &channels); err != nil {
			s.logger.Warn("unreadable template channels, delivering in-app only",
				zap.String("template", tmpl.TemplateKey),
				zap.Error(err),
			)
			channels = []string{ChannelInApp}
		}
	}
	return func(ch string) bool {
		return len(channels) == 0 || lo.Contains(channels, ch)
	}
}

// ListForRole returns the in-app notifications of role, newest first.
func (s *Service) ListForRole(ctx context.Context, role string, limit, offset int) ([]SentNotification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	notifications := []SentNotification{}
	err := s.db.WithContext(ctx).
		Where("recipient_role = ? AND channel = ?", role, ChannelInApp).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to list notifications").
			Mark(ierr.ErrDatabase)
	}
	return notifications, nil
}

// MarkAsRead marks an in-app notification of role as read
func (s *Service) MarkAsRead(ctx context.Context, role string, notificationID uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&SentNotification{}).
		Where("id = ? AND recipient_role = ?", notificationID, role).
		Update("opened_at", s.now())

	if result.Error != nil {
		return ierr.WithError(result.Error).
			WithMessage("failed to mark notification as read").
			Mark(ierr.ErrDatabase)
	}
	if result.RowsAffected == 0 {
		return ierr.NewErrorf("notification %s not found", notificationID).
			WithHint("Notification not found").
			Mark(ierr.ErrNotFound)
	}
	return nil
}

// Subscribe adds a delivery address for a role.
func (s *Service) Subscribe(ctx context.Context, sub *Subscription) error {
	if err := validator.ValidateRequest(sub); err != nil {
		return err
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.Enabled = true

	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return ierr.WithError(err).
			WithMessage("failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (s *Service) ListTemplates(ctx context.Context) ([]NotificationTemplate, error) {
	templates := []NotificationTemplate{}
	if err := s.db.WithContext(ctx).Order("template_key").Find(&templates).Error; err != nil {
		return nil, ierr.WithError(err).
			WithMessage("failed to list templates").
			Mark(ierr.ErrDatabase)
	}
	return templates, nil
}

// seedDefaultTemplates creates missing default templates
func seedDefaultTemplates(db *gorm.DB) error {
	for _, tmpl := range DefaultTemplates() {
		var existing NotificationTemplate
		err := db.Where("template_key = ?", tmpl.TemplateKey).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tmpl.ID = uuid.New()
			if err := db.Create(&tmpl).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

// Close closes the notification service
func (s *Service) Close() error {
	if s.wsManager != nil {
		s.wsManager.Close()
	}
	return nil
}
