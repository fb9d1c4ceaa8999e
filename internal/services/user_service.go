package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/boardhub/boardhub/internal/auth"
	"github.com/boardhub/boardhub/internal/models"
	"github.com/boardhub/boardhub/internal/notifications"
	"github.com/boardhub/boardhub/pkg/crypto"
	appErrors "github.com/boardhub/boardhub/pkg/errors"
	"github.com/boardhub/boardhub/pkg/logger"
	"github.com/boardhub/boardhub/pkg/mail"
	"github.com/boardhub/boardhub/pkg/metrics"
)

// ErrUserExists signals a username or email collision on signup.
var ErrUserExists = appErrors.New("USER_EXISTS", "Username or email already in use", http.StatusConflict)

// CreateUserInput captures the fields required to register a user.
type CreateUserInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UserService manages user lifecycle, credentials and session issuance.
type UserService struct {
	db       *gorm.DB
	tokens   *auth.TokenService
	notifier *notifications.Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, tokens *auth.TokenService, notifier *notifications.Notifier) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("user service: token service is required")
	}
	if notifier == nil {
		return nil, errors.New("user service: notifier is required")
	}

	return &UserService{
		db:       db,
		tokens:   tokens,
		notifier: notifier,
		log:      logger.WithModule("users"),
		now:      time.Now,
	}, nil
}

// Create registers a user together with their personal account, with the new
// user as that account's owner. The user row, the account and the owner
// membership commit atomically.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := normalizeEmail(input.Email)
	if input.Username == "" || email == "" || input.Password == "" {
		return nil, appErrors.NewBadRequest("username, email and password are required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to hash password")
	}

	user := &models.User{
		Username:     input.Username,
		Email:        email,
		Password:     hashed,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		TokenVersion: uuid.NewString(),
		IsActive:     true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		account := &models.Account{
			Name: user.Username,
			Slug: personalSlug(user.Username),
			Kind: models.AccountKindPersonal,
		}
		if err := tx.Create(account).Error; err != nil {
			if !isUniqueConstraintError(err) {
				return err
			}
			account.ID = ""
			account.Slug = fmt.Sprintf("%s-%s", account.Slug, uuid.NewString()[:8])
			if err := tx.Create(account).Error; err != nil {
				return err
			}
		}

		return tx.Create(&models.AccountCollaborator{
			AccountID: account.ID,
			UserID:    user.ID,
			IsOwner:   true,
		}).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, appErrors.Wrap(err, "failed to create user")
	}

	s.log.Info("user created", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Authenticate verifies credentials and issues a session token.
// Username and email are both accepted as the login identifier.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*models.User, string, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, normalizeEmail(login)).
		First(&user).Error
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", appErrors.ErrInvalidCredentials
		}
		return nil, "", appErrors.Wrap(err, "failed to load user")
	}

	if !user.IsActive || !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, "", appErrors.ErrInvalidCredentials
	}

	token, err := s.tokens.IssueSessionToken(&user)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, "", appErrors.Wrap(err, "failed to issue session token")
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &user, token, nil
}

// GetByID loads a user by id.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "failed to load user")
	}
	return &user, nil
}

// FindByEmail loads a user by normalized email. Returns (nil, nil) when no
// user exists, since absence is an expected outcome for invitation flows.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", normalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load user")
	}
	return &user, nil
}

// SetPassword stores a new password hash and rotates the token_version,
// revoking every outstanding session and reset token in one step. It emits
// no notification; the change and reset flows layer that on top.
func (s *UserService) SetPassword(ctx context.Context, user *models.User, newPassword string) error {
	ctx = ensureContext(ctx)

	if user == nil || user.ID == "" {
		return appErrors.NewBadRequest("user is required")
	}
	if newPassword == "" {
		return appErrors.NewBadRequest("password must not be empty")
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return appErrors.Wrap(err, "failed to hash password")
	}

	version := uuid.NewString()
	err = s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"password":      hashed,
			"token_version": version,
		}).Error
	if err != nil {
		return appErrors.Wrap(err, "failed to update password")
	}

	user.Password = hashed
	user.TokenVersion = version

	s.log.Info("password updated", zap.String("user_id", user.ID))
	return nil
}

// ChangePassword verifies the current password before delegating to
// SetPassword, then notifies the user.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !crypto.VerifyPassword(user.Password, currentPassword) {
		return appErrors.ErrInvalidCredentials
	}

	if err := s.SetPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.notifyPasswordUpdated(ctx, user)
	return nil
}

func (s *UserService) notifyPasswordUpdated(ctx context.Context, user *models.User) {
	s.notifier.Notify(ctx, notifications.Payload{
		UserID: user.ID,
		Label:  notifications.LabelUserPasswordUpdated,
		Email: &mail.Message{
			To:      []string{user.Email},
			Subject: "Your password was changed",
			Body:    fmt.Sprintf("Hi %s,\n\nYour password was just changed. If this was not you, reset it immediately.\n", user.FullName()),
		},
	})
}

// RequestPasswordReset issues a reset token and mails it to the user.
// The call succeeds silently for unknown addresses so callers cannot probe
// which emails have accounts.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	token, err := s.tokens.IssuePasswordResetToken(user)
	if err != nil {
		return appErrors.Wrap(err, "failed to issue reset token")
	}

	s.notifier.Notify(ctx, notifications.Payload{
		UserID:   user.ID,
		Label:    notifications.LabelPasswordResetRequested,
		Metadata: map[string]interface{}{"email": user.Email},
		Email: &mail.Message{
			To:      []string{user.Email},
			Subject: "Reset your password",
			Body:    fmt.Sprintf("Hi %s,\n\nUse this token to reset your password: %s\n\nIf you did not request a reset, ignore this email.\n", user.FullName(), token),
		},
	})

	return nil
}

// ResetPassword validates a reset token and sets the new password. The
// rotation inside SetPassword makes the token single-use.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.tokens.VerifyPasswordResetToken(ctx, token)
	if err != nil {
		return nil, appErrors.ErrUnauthorized.WithInternal(err)
	}

	if err := s.SetPassword(ctx, user, newPassword); err != nil {
		return nil, err
	}

	s.notifyPasswordUpdated(ctx, user)
	return user, nil
}

func personalSlug(username string) string {
	slug := slugify(username)
	if slug == "" {
		slug = uuid.NewString()[:8]
	}
	return slug
}
