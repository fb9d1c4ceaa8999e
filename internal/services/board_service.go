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

// BoardInput captures the mutable fields of a board.
type BoardInput struct {
	Name     string
	IsShared *bool
}

// BoardService manages boards and enforces board access rules.
type BoardService struct {
	db      *gorm.DB
	checker *permissions.Checker
	log     *zap.Logger
}

// NewBoardService constructs a BoardService instance.
func NewBoardService(db *gorm.DB, checker *permissions.Checker) (*BoardService, error) {
	if db == nil {
		return nil, errors.New("board service: db is required")
	}
	if checker == nil {
		return nil, errors.New("board service: permission checker is required")
	}
	return &BoardService{
		db:      db,
		checker: checker,
		log:     logger.WithModule("boards"),
	}, nil
}

// Create creates a board in the account and makes the creator its first
// collaborator. The actor must already collaborate on the account.
func (s *BoardService) Create(ctx context.Context, actorID, accountID string, input BoardInput) (*models.Board, error) {
	ctx = ensureContext(ctx)

	if input.Name == "" {
		return nil, appErrors.NewBadRequest("board name is required")
	}

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

	board := &models.Board{
		AccountID: accountID,
		Name:      input.Name,
		Slug:      slugify(input.Name),
	}
	if board.Slug == "" {
		board.Slug = uuid.NewString()[:8]
	}
	if input.IsShared != nil {
		board.IsShared = *input.IsShared
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(board).Error; err != nil {
			if !isUniqueConstraintError(err) {
				return err
			}
			board.ID = ""
			board.Slug = fmt.Sprintf("%s-%s", board.Slug, uuid.NewString()[:8])
			if err := tx.Create(board).Error; err != nil {
				return err
			}
		}

		return tx.Create(&models.BoardCollaborator{
			BoardID: board.ID,
			UserID:  &actorID,
		}).Error
	})
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to create board")
	}

	s.log.Info("board created", zap.String("board_id", board.ID), zap.String("account_id", accountID))
	return board, nil
}

// ListVisible returns the boards the user can see: boards they collaborate
// on plus, for owners, every board in accounts they own. The anonymous
// caller sees nothing here; shared boards are fetched individually.
func (s *BoardService) ListVisible(ctx context.Context, userID string) ([]models.Board, error) {
	ctx = ensureContext(ctx)

	if userID == "" {
		return []models.Board{}, nil
	}

	var boards []models.Board
	err := s.db.WithContext(ctx).
		Distinct("boards.*").
		Joins("LEFT JOIN board_collaborators ON board_collaborators.board_id = boards.id").
		Joins("LEFT JOIN account_collaborators ON account_collaborators.account_id = boards.account_id").
		Where("board_collaborators.user_id = ? OR (account_collaborators.user_id = ? AND account_collaborators.is_owner = ?)",
			userID, userID, true).
		Order("boards.created_at ASC").
		Find(&boards).Error
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to list boards")
	}
	return boards, nil
}

// Get loads a board, enforcing read access for the given user.
func (s *BoardService) Get(ctx context.Context, userID, boardID string) (*models.Board, error) {
	ctx = ensureContext(ctx)

	board, err := s.load(ctx, boardID)
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
	return board, nil
}

// Update applies changes to a board. Write access required.
func (s *BoardService) Update(ctx context.Context, userID, boardID string, input BoardInput) (*models.Board, error) {
	ctx = ensureContext(ctx)

	board, err := s.requireWrite(ctx, userID, boardID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != "" {
		updates["name"] = input.Name
	}
	if input.IsShared != nil {
		updates["is_shared"] = *input.IsShared
	}
	if len(updates) == 0 {
		return board, nil
	}

	if err := s.db.WithContext(ctx).Model(board).Updates(updates).Error; err != nil {
		return nil, appErrors.Wrap(err, "failed to update board")
	}
	return board, nil
}

// Delete removes a board and, through cascades, its collaborators.
// Write access required.
func (s *BoardService) Delete(ctx context.Context, userID, boardID string) error {
	ctx = ensureContext(ctx)

	board, err := s.requireWrite(ctx, userID, boardID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(board).Error; err != nil {
		return appErrors.Wrap(err, "failed to delete board")
	}

	s.log.Info("board deleted", zap.String("board_id", boardID), zap.String("user_id", userID))
	return nil
}

// ListCollaborators returns a board's collaborators. Read access is the bar;
// on a shared board viewers without write access get redacted rows with
// invite emails blanked.
func (s *BoardService) ListCollaborators(ctx context.Context, userID, boardID string) ([]models.BoardCollaborator, error) {
	ctx = ensureContext(ctx)

	board, err := s.load(ctx, boardID)
	if err != nil {
		return nil, err
	}

	readable, err := s.checker.CanAccessBoard(ctx, userID, board, permissions.ActionRead)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to check board access")
	}
	if !readable {
		return nil, appErrors.ErrForbidden
	}

	var collaborators []models.BoardCollaborator
	err = s.db.WithContext(ctx).
		Preload("User").
		Where("board_id = ?", boardID).
		Order("created_at ASC").
		Find(&collaborators).Error
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to list collaborators")
	}

	writable, err := s.checker.CanAccessBoard(ctx, userID, board, permissions.ActionWrite)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to check board access")
	}
	if !writable {
		for i := range collaborators {
			collaborators[i].Email = ""
		}
	}

	return collaborators, nil
}

func (s *BoardService) requireWrite(ctx context.Context, userID, boardID string) (*models.Board, error) {
	board, err := s.load(ctx, boardID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.checker.CanAccessBoard(ctx, userID, board, permissions.ActionWrite)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to check board access")
	}
	if !allowed {
		return nil, appErrors.ErrForbidden
	}
	return board, nil
}

func (s *BoardService) load(ctx context.Context, boardID string) (*models.Board, error) {
	var board models.Board
	if err := s.db.WithContext(ctx).First(&board, "id = ?", boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "failed to load board")
	}
	return &board, nil
}
