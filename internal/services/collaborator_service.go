package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/boardhub/boardhub/internal/models"
	"github.com/boardhub/boardhub/internal/notifications"
	"github.com/boardhub/boardhub/internal/permissions"
	appErrors "github.com/boardhub/boardhub/pkg/errors"
	"github.com/boardhub/boardhub/pkg/logger"
	"github.com/boardhub/boardhub/pkg/mail"
)

// CollaboratorInput identifies the invitee either by user id or by email.
type CollaboratorInput struct {
	UserID string
	Email  string
}

// CollaboratorService manages board memberships and board invites.
type CollaboratorService struct {
	db       *gorm.DB
	checker  *permissions.Checker
	notifier *notifications.Notifier
	log      *zap.Logger
}

// NewCollaboratorService constructs a CollaboratorService instance.
func NewCollaboratorService(db *gorm.DB, checker *permissions.Checker, notifier *notifications.Notifier) (*CollaboratorService, error) {
	if db == nil {
		return nil, errors.New("collaborator service: db is required")
	}
	if checker == nil {
		return nil, errors.New("collaborator service: permission checker is required")
	}
	if notifier == nil {
		return nil, errors.New("collaborator service: notifier is required")
	}
	return &CollaboratorService{
		db:       db,
		checker:  checker,
		notifier: notifier,
		log:      logger.WithModule("collaborators"),
	}, nil
}

// Create adds a collaborator to a board, by user id or by email. When the
// email belongs to a registered user the row links to that user. The call is
// idempotent for linked users: a concurrent duplicate insert falls back to
// re-reading the existing row, so both callers observe the same membership.
func (s *CollaboratorService) Create(ctx context.Context, actorID, boardID string, input CollaboratorInput) (*models.BoardCollaborator, error) {
	ctx = ensureContext(ctx)

	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.checker.CanCreateBoardCollaborator(ctx, actorID, board)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to check board access")
	}
	if !allowed {
		return nil, appErrors.ErrForbidden
	}

	collab := &models.BoardCollaborator{BoardID: boardID}
	email := normalizeEmail(input.Email)

	switch {
	case input.UserID != "":
		collab.UserID = &input.UserID
	case email != "":
		var user models.User
		err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error
		switch {
		case err == nil:
			collab.UserID = &user.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			collab.Email = email
		default:
			return nil, appErrors.Wrap(err, "failed to look up invitee")
		}
	default:
		return nil, appErrors.NewBadRequest("either user_id or email is required")
	}

	if err := s.db.WithContext(ctx).Create(collab).Error; err != nil {
		if !isUniqueConstraintError(err) || collab.UserID == nil {
			return nil, appErrors.Wrap(err, "failed to add collaborator")
		}
		var existing models.BoardCollaborator
		err := s.db.WithContext(ctx).
			First(&existing, "board_id = ? AND user_id = ?", boardID, *collab.UserID).Error
		if err != nil {
			return nil, appErrors.Wrap(err, "failed to load collaborator")
		}
		return &existing, nil
	}

	s.notifyInvite(ctx, actorID, board, collab)

	s.log.Info("board collaborator added",
		zap.String("board_id", boardID), zap.String("actor_id", actorID))
	return collab, nil
}

// Get loads a collaborator row, enforcing read access to its board.
func (s *CollaboratorService) Get(ctx context.Context, userID, collaboratorID string) (*models.BoardCollaborator, error) {
	ctx = ensureContext(ctx)

	collab, err := s.loadCollaborator(ctx, collaboratorID)
	if err != nil {
		return nil, err
	}

	board, err := s.loadBoard(ctx, collab.BoardID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.checker.CanAccessBoard(ctx, userID, board, permissions.ActionRead)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to check board access")
	}
	if !allowed {
		return nil, appErrors.ErrForbidden
	}
	return collab, nil
}

// Delete removes a collaborator row. Anyone with write access to the board
// may remove collaborators; a collaborator may always remove themselves.
func (s *CollaboratorService) Delete(ctx context.Context, actorID, collaboratorID string) error {
	ctx = ensureContext(ctx)

	collab, err := s.loadCollaborator(ctx, collaboratorID)
	if err != nil {
		return err
	}

	allowed, err := s.checker.CanMutateBoardCollaborator(ctx, actorID, http.MethodDelete, collab)
	if err != nil {
		return appErrors.Wrap(err, "failed to check board access")
	}
	if !allowed {
		return appErrors.ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(collab).Error; err != nil {
		return appErrors.Wrap(err, "failed to remove collaborator")
	}

	s.log.Info("board collaborator removed",
		zap.String("collaborator_id", collaboratorID), zap.String("actor_id", actorID))
	return nil
}

func (s *CollaboratorService) notifyInvite(ctx context.Context, actorID string, board *models.Board, collab *models.BoardCollaborator) {
	payload := notifications.Payload{
		ActorID: actorID,
		Label:   notifications.LabelBoardInviteCreated,
		Metadata: map[string]interface{}{
			"board_id":   board.ID,
			"board_name": board.Name,
		},
	}

	address := collab.Email
	if collab.UserID != nil {
		payload.UserID = *collab.UserID
		var user models.User
		if err := s.db.WithContext(ctx).Select("email").First(&user, "id = ?", *collab.UserID).Error; err == nil {
			address = user.Email
		}
	}
	if address != "" {
		payload.Email = &mail.Message{
			To:      []string{address},
			Subject: fmt.Sprintf("You were added to %s", board.Name),
			Body:    fmt.Sprintf("You are now a collaborator on the board %q.\n", board.Name),
		}
	}

	s.notifier.Notify(ctx, payload)
}

func (s *CollaboratorService) loadBoard(ctx context.Context, boardID string) (*models.Board, error) {
	var board models.Board
	if err := s.db.WithContext(ctx).First(&board, "id = ?", boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "failed to load board")
	}
	return &board, nil
}

func (s *CollaboratorService) loadCollaborator(ctx context.Context, id string) (*models.BoardCollaborator, error) {
	var collab models.BoardCollaborator
	if err := s.db.WithContext(ctx).First(&collab, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "failed to load collaborator")
	}
	return &collab, nil
}
