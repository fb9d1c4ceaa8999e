package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/boardhub/boardhub/internal/models"
	"github.com/boardhub/boardhub/internal/notifications"
	"github.com/boardhub/boardhub/internal/permissions"
	"github.com/boardhub/boardhub/pkg/crypto"
	appErrors "github.com/boardhub/boardhub/pkg/errors"
	"github.com/boardhub/boardhub/pkg/logger"
	"github.com/boardhub/boardhub/pkg/mail"
	"github.com/boardhub/boardhub/pkg/metrics"
)

// InviteInput captures an account invitation, optionally tied to a board
// membership created alongside it.
type InviteInput struct {
	Email               string
	AccountID           string
	BoardCollaboratorID *string
}

// InviteResult reports the invitation row and whether this call created it.
// Side effects (email, metrics) fire only on creation.
type InviteResult struct {
	Invite  *models.InvitedUser
	Created bool
}

// InvitationService manages account invitations, the signup domain gate and
// the signup waitlist.
type InvitationService struct {
	db       *gorm.DB
	checker  *permissions.Checker
	notifier *notifications.Notifier
	log      *zap.Logger
}

// NewInvitationService constructs an InvitationService instance.
func NewInvitationService(db *gorm.DB, checker *permissions.Checker, notifier *notifications.Notifier) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	if checker == nil {
		return nil, errors.New("invitation service: permission checker is required")
	}
	if notifier == nil {
		return nil, errors.New("invitation service: notifier is required")
	}
	return &InvitationService{
		db:       db,
		checker:  checker,
		notifier: notifier,
		log:      logger.WithModule("invitations"),
	}, nil
}

// ValidateSignupDomain reports whether the email may self-signup into the
// account identified by slug. Failure is a single uniform error regardless
// of whether the account is missing, has signup disabled, or lacks the
// domain, so the endpoint cannot be used to probe account configuration.
func (s *InvitationService) ValidateSignupDomain(ctx context.Context, accountSlug, email string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	domain := emailDomain(email)
	if domain == "" {
		return nil, appErrors.ErrDomainNotAllowed
	}

	var account models.Account
	err := s.db.WithContext(ctx).
		Joins("JOIN email_domains ON email_domains.account_id = accounts.id").
		Where("accounts.slug = ? AND accounts.allow_signup = ? AND email_domains.domain_name = ?",
			accountSlug, true, domain).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrDomainNotAllowed
		}
		return nil, appErrors.Wrap(err, "failed to validate signup domain")
	}
	return &account, nil
}

// InviteUser records an invitation of an email into an account. The actor
// must collaborate on the account. One invitation exists per (email,
// account); repeat calls return the original row with Created false and
// trigger no side effects.
func (s *InvitationService) InviteUser(ctx context.Context, actorID string, input InviteInput) (*InviteResult, error) {
	ctx = ensureContext(ctx)

	email := normalizeEmail(input.Email)
	if email == "" || emailDomain(email) == "" {
		return nil, appErrors.NewBadRequest("a valid email is required")
	}

	var membership int64
	err := s.db.WithContext(ctx).
		Model(&models.AccountCollaborator{}).
		Where("account_id = ? AND user_id = ?", input.AccountID, actorID).
		Count(&membership).Error
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to check membership")
	}
	if membership == 0 {
		return nil, appErrors.ErrForbidden
	}

	invite := &models.InvitedUser{
		Email:               email,
		AccountID:           input.AccountID,
		CreatedByID:         actorID,
		BoardCollaboratorID: input.BoardCollaboratorID,
	}

	if err := s.db.WithContext(ctx).Create(invite).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, appErrors.Wrap(err, "failed to create invitation")
		}
		var existing models.InvitedUser
		err := s.db.WithContext(ctx).
			First(&existing, "email = ? AND account_id = ?", email, input.AccountID).Error
		if err != nil {
			return nil, appErrors.Wrap(err, "failed to load invitation")
		}
		metrics.InvitesIssued.WithLabelValues("existing").Inc()
		return &InviteResult{Invite: &existing, Created: false}, nil
	}

	metrics.InvitesIssued.WithLabelValues("created").Inc()

	var account models.Account
	accountName := ""
	if err := s.db.WithContext(ctx).Select("name").First(&account, "id = ?", input.AccountID).Error; err == nil {
		accountName = account.Name
	}

	s.notifier.Notify(ctx, notifications.Payload{
		ActorID: actorID,
		Label:   notifications.LabelBoardInviteCreated,
		Metadata: map[string]interface{}{
			"account_id": input.AccountID,
			"email":      email,
		},
		Email: &mail.Message{
			To:      []string{email},
			Subject: fmt.Sprintf("You are invited to join %s", accountName),
			Body:    fmt.Sprintf("You have been invited to join %s. Sign up with this email address to accept.\n", accountName),
		},
	})

	s.log.Info("invitation created",
		zap.String("account_id", input.AccountID), zap.String("actor_id", actorID))
	return &InviteResult{Invite: invite, Created: true}, nil
}

// ListForAccount returns the account's outstanding invitations.
// Visible to account collaborators.
func (s *InvitationService) ListForAccount(ctx context.Context, actorID, accountID string) ([]models.InvitedUser, error) {
	ctx = ensureContext(ctx)

	var membership int64
	err := s.db.WithContext(ctx).
		Model(&models.AccountCollaborator{}).
		Where("account_id = ? AND user_id = ?", accountID, actorID).
		Count(&membership).Error
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to check membership")
	}
	if membership == 0 {
		return nil, appErrors.ErrForbidden
	}

	var invites []models.InvitedUser
	err = s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&invites).Error
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to list invitations")
	}
	return invites, nil
}

// RevokeInvite withdraws an invitation. Only the account owner may revoke.
func (s *InvitationService) RevokeInvite(ctx context.Context, actorID, inviteID string) error {
	ctx = ensureContext(ctx)

	var invite models.InvitedUser
	if err := s.db.WithContext(ctx).First(&invite, "id = ?", inviteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, "failed to load invitation")
	}

	owner, err := s.checker.IsAccountOwner(ctx, actorID, invite.AccountID)
	if err != nil {
		return appErrors.Wrap(err, "failed to check ownership")
	}
	if !owner {
		return appErrors.ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(&invite).Error; err != nil {
		return appErrors.Wrap(err, "failed to revoke invitation")
	}
	return nil
}

// RegisterSignupInterest records a waitlist entry for the email. One entry
// exists per email; repeat submissions return the original row unchanged,
// keeping its token stable.
func (s *InvitationService) RegisterSignupInterest(ctx context.Context, email string) (*models.SignupRequest, error) {
	ctx = ensureContext(ctx)

	email = normalizeEmail(email)
	if email == "" || emailDomain(email) == "" {
		return nil, appErrors.NewBadRequest("a valid email is required")
	}

	token, err := crypto.GenerateToken(32)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to generate signup token")
	}

	request := &models.SignupRequest{Email: email, Token: token}
	if err := s.db.WithContext(ctx).Create(request).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, appErrors.Wrap(err, "failed to create signup request")
		}
		var existing models.SignupRequest
		if err := s.db.WithContext(ctx).First(&existing, "email = ?", email).Error; err != nil {
			return nil, appErrors.Wrap(err, "failed to load signup request")
		}
		return &existing, nil
	}

	return request, nil
}
