package notifications

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/boardhub/boardhub/internal/models"
	"github.com/boardhub/boardhub/pkg/logger"
	"github.com/boardhub/boardhub/pkg/mail"
)

// Notification labels.
const (
	LabelPasswordResetRequested = "password_reset_requested"
	LabelUserPasswordUpdated    = "user_password_updated"
	LabelBoardInviteCreated     = "board_invite_created"
	LabelJoinRequestAccepted    = "join_request_accepted"
	LabelJoinRequestRejected    = "join_request_rejected"
)

// Payload describes a single notification to deliver.
//
// UserID selects the in-app recipient; when empty only the email leg runs.
// Email is optional and sent best-effort.
type Payload struct {
	UserID   string
	ActorID  string
	Label    string
	Metadata map[string]interface{}
	Email    *mail.Message
}

// Notifier persists notifications, pushes them over the live stream and
// optionally emails the recipient. Delivery is fire-and-forget from the
// caller's perspective: failures are logged, never propagated, so a broken
// SMTP relay can never fail a domain operation.
type Notifier struct {
	db     *gorm.DB
	hub    *Hub
	mailer mail.Mailer
	log    *zap.Logger
}

// NewNotifier constructs a Notifier instance. The mailer may be nil when
// email delivery is not configured.
func NewNotifier(db *gorm.DB, hub *Hub, mailer mail.Mailer) (*Notifier, error) {
	if db == nil {
		return nil, errors.New("notifier: db is required")
	}
	if hub == nil {
		hub = NewHub()
	}
	return &Notifier{
		db:     db,
		hub:    hub,
		mailer: mailer,
		log:    logger.WithModule("notifications"),
	}, nil
}

// Hub exposes the live stream hub for the transport layer.
func (n *Notifier) Hub() *Hub {
	return n.hub
}

// Notify delivers the payload on all configured legs.
func (n *Notifier) Notify(ctx context.Context, p Payload) {
	if p.Label == "" {
		n.log.Warn("notification without label dropped")
		return
	}

	if p.UserID != "" {
		record := &models.Notification{
			UserID:  p.UserID,
			ActorID: p.ActorID,
			Label:   p.Label,
		}
		if len(p.Metadata) > 0 {
			raw, err := json.Marshal(p.Metadata)
			if err != nil {
				n.log.Warn("notification metadata not serializable",
					zap.String("label", p.Label), zap.Error(err))
			} else {
				record.Metadata = datatypes.JSON(raw)
			}
		}

		if err := n.db.WithContext(ctx).Create(record).Error; err != nil {
			n.log.Error("persist notification failed",
				zap.String("label", p.Label), zap.String("user_id", p.UserID), zap.Error(err))
		} else {
			n.hub.Broadcast(p.UserID, Event{
				Label:          p.Label,
				Notification:   record,
				NotificationID: record.ID,
			})
		}
	}

	if p.Email != nil && n.mailer != nil {
		if err := n.mailer.Send(ctx, *p.Email); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
			n.log.Warn("notification email failed",
				zap.String("label", p.Label), zap.Error(err))
		}
	}
}

// ListForUser returns the user's notifications, newest first.
func (n *Notifier) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	query := n.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var items []models.Notification
	if err := query.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkRead marks a single notification as read for the user.
func (n *Notifier) MarkRead(ctx context.Context, userID, notificationID string) error {
	result := n.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
