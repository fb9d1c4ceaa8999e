package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/boardhub/boardhub/internal/models"
	"github.com/boardhub/boardhub/internal/permissions"
	appErrors "github.com/boardhub/boardhub/pkg/errors"
	"github.com/boardhub/boardhub/pkg/logger"
)

// AccountService manages team accounts, their memberships and signup domains.
//
// Invariant: every account has exactly one owner row. Creation seeds it,
// removal refuses to delete it, and TransferOwnership flips both rows inside
// a single transaction so no interleaving observes zero or two owners.
type AccountService struct {
	db      *gorm.DB
	checker *permissions.Checker
	log     *zap.Logger
}

// NewAccountService constructs an AccountService instance.
func NewAccountService(db *gorm.DB, checker *permissions.Checker) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	if checker == nil {
		return nil, errors.New("account service: permission checker is required")
	}
	return &AccountService{
		db:      db,
		checker: checker,
		log:     logger.WithModule("accounts"),
	}, nil
}

// CreateTeamAccount creates a team account owned by ownerID.
func (s *AccountService) CreateTeamAccount(ctx context.Context, ownerID, name string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	if name == "" {
		return nil, appErrors.NewBadRequest("account name is required")
	}

	account := &models.Account{
		Name: name,
		Slug: slugify(name),
		Kind: models.AccountKindTeam,
	}
	if account.Slug == "" {
		account.Slug = uuid.NewString()[:8]
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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
			UserID:    ownerID,
			IsOwner:   true,
		}).Error
	})
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to create account")
	}

	s.log.Info("account created", zap.String("account_id", account.ID), zap.String("owner_id", ownerID))
	return account, nil
}

// GetByID loads an account by id.
func (s *AccountService) GetByID(ctx context.Context, id string) (*models.Account, error) {
	ctx = ensureContext(ctx)

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "failed to load account")
	}
	return &account, nil
}

// ListForUser returns every account the user collaborates on.
func (s *AccountService) ListForUser(ctx context.Context, userID string) ([]models.Account, error) {
	ctx = ensureContext(ctx)

	var accounts []models.Account
	err := s.db.WithContext(ctx).
		Joins("JOIN account_collaborators ON account_collaborators.account_id = accounts.id").
		Where("account_collaborators.user_id = ?", userID).
		Order("accounts.created_at ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to list accounts")
	}
	return accounts, nil
}

// ListCollaborators returns the account's memberships with users preloaded.
// Visible to any collaborator of the account.
func (s *AccountService) ListCollaborators(ctx context.Context, actorID, accountID string) ([]models.AccountCollaborator, error) {
	ctx = ensureContext(ctx)

	member, err := s.isMember(ctx, actorID, accountID)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to check membership")
	}
	if !member {
		return nil, appErrors.ErrForbidden
	}

	var collaborators []models.AccountCollaborator
	err = s.db.WithContext(ctx).
		Preload("User").
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&collaborators).Error
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to list collaborators")
	}
	return collaborators, nil
}

// AddCollaborator adds a user to the account. Only the owner may do so.
// The add is idempotent: an existing membership is returned unchanged.
func (s *AccountService) AddCollaborator(ctx context.Context, actorID, accountID, userID string) (*models.AccountCollaborator, error) {
	ctx = ensureContext(ctx)

	if err := s.requireOwner(ctx, actorID, accountID); err != nil {
		return nil, err
	}

	collab := &models.AccountCollaborator{
		AccountID: accountID,
		UserID:    userID,
	}
	if err := s.db.WithContext(ctx).Create(collab).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, appErrors.Wrap(err, "failed to add collaborator")
		}
		var existing models.AccountCollaborator
		err := s.db.WithContext(ctx).
			First(&existing, "account_id = ? AND user_id = ?", accountID, userID).Error
		if err != nil {
			return nil, appErrors.Wrap(err, "failed to load collaborator")
		}
		return &existing, nil
	}

	return collab, nil
}

// RemoveCollaborator removes a membership. The owner may remove anyone;
// a collaborator may remove themselves. Removing the owner row is refused
// until ownership is transferred.
func (s *AccountService) RemoveCollaborator(ctx context.Context, actorID, accountID, userID string) error {
	ctx = ensureContext(ctx)

	if actorID != userID {
		if err := s.requireOwner(ctx, actorID, accountID); err != nil {
			return err
		}
	}

	var collab models.AccountCollaborator
	err := s.db.WithContext(ctx).
		First(&collab, "account_id = ? AND user_id = ?", accountID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, "failed to load collaborator")
	}

	if collab.IsOwner {
		return appErrors.ErrOwnerRequired
	}

	if err := s.db.WithContext(ctx).Delete(&collab).Error; err != nil {
		return appErrors.Wrap(err, "failed to remove collaborator")
	}

	s.log.Info("collaborator removed",
		zap.String("account_id", accountID), zap.String("user_id", userID))
	return nil
}

// TransferOwnership moves the owner flag from the current owner to another
// existing collaborator. Both rows flip in one transaction.
func (s *AccountService) TransferOwnership(ctx context.Context, actorID, accountID, newOwnerID string) error {
	ctx = ensureContext(ctx)

	if err := s.requireOwner(ctx, actorID, accountID); err != nil {
		return err
	}
	if actorID == newOwnerID {
		return appErrors.NewBadRequest("user already owns this account")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.AccountCollaborator
		err := tx.First(&target, "account_id = ? AND user_id = ?", accountID, newOwnerID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErrors.NewBadRequest("new owner must already be an account collaborator")
			}
			return err
		}

		demote := tx.Model(&models.AccountCollaborator{}).
			Where("account_id = ? AND user_id = ? AND is_owner = ?", accountID, actorID, true).
			Update("is_owner", false)
		if demote.Error != nil {
			return demote.Error
		}
		if demote.RowsAffected == 0 {
			return appErrors.ErrForbidden
		}

		return tx.Model(&models.AccountCollaborator{}).
			Where("id = ?", target.ID).
			Update("is_owner", true).Error
	})
	if err != nil {
		var appErr *appErrors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, "failed to transfer ownership")
	}

	s.log.Info("ownership transferred",
		zap.String("account_id", accountID),
		zap.String("from", actorID), zap.String("to", newOwnerID))
	return nil
}

// AddEmailDomain allow-lists a signup domain for the account. Owner only.
func (s *AccountService) AddEmailDomain(ctx context.Context, actorID, accountID, domain string) (*models.EmailDomain, error) {
	ctx = ensureContext(ctx)

	if err := s.requireOwner(ctx, actorID, accountID); err != nil {
		return nil, err
	}

	domain = normalizeEmail(domain)
	if domain == "" {
		return nil, appErrors.NewBadRequest("domain name is required")
	}

	record := &models.EmailDomain{AccountID: accountID, DomainName: domain}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, appErrors.Wrap(err, "failed to add email domain")
		}
		var existing models.EmailDomain
		err := s.db.WithContext(ctx).
			First(&existing, "account_id = ? AND domain_name = ?", accountID, domain).Error
		if err != nil {
			return nil, appErrors.Wrap(err, "failed to load email domain")
		}
		return &existing, nil
	}

	return record, nil
}

// RemoveEmailDomain drops an allow-listed signup domain. Owner only.
func (s *AccountService) RemoveEmailDomain(ctx context.Context, actorID, accountID, domain string) error {
	ctx = ensureContext(ctx)

	if err := s.requireOwner(ctx, actorID, accountID); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("account_id = ? AND domain_name = ?", accountID, normalizeEmail(domain)).
		Delete(&models.EmailDomain{})
	if result.Error != nil {
		return appErrors.Wrap(result.Error, "failed to remove email domain")
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// SetAllowSignup toggles self-service signup for the account. Owner only.
func (s *AccountService) SetAllowSignup(ctx context.Context, actorID, accountID string, allow bool) error {
	ctx = ensureContext(ctx)

	if err := s.requireOwner(ctx, actorID, accountID); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("allow_signup", allow)
	if result.Error != nil {
		return appErrors.Wrap(result.Error, "failed to update account")
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

func (s *AccountService) requireOwner(ctx context.Context, actorID, accountID string) error {
	owner, err := s.checker.IsAccountOwner(ctx, actorID, accountID)
	if err != nil {
		return appErrors.Wrap(err, "failed to check ownership")
	}
	if !owner {
		return appErrors.ErrForbidden
	}
	return nil
}

func (s *AccountService) isMember(ctx context.Context, userID, accountID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.AccountCollaborator{}).
		Where("account_id = ? AND user_id = ?", accountID, userID).
		Count(&count).Error
	return count > 0, err
}
