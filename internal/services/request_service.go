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
	appErrors "github.com/boardhub/boardhub/pkg/errors"
	"github.com/boardhub/boardhub/pkg/logger"
	"github.com/boardhub/boardhub/pkg/metrics"
)

// RequestService manages board join requests.
//
// The lifecycle is pending -> accepted | rejected, and both outcomes are
// terminal for that resolution: a resolved row cannot be flipped again, only
// reopened to pending by a fresh request from the same user. Resolution races
// are settled by a conditional update on the pending status: whoever flips
// the row first wins, the loser gets ErrInvalidStateTransition.
type RequestService struct {
	db       *gorm.DB
	checker  *permissions.Checker
	notifier *notifications.Notifier
	log      *zap.Logger
}

// NewRequestService constructs a RequestService instance.
func NewRequestService(db *gorm.DB, checker *permissions.Checker, notifier *notifications.Notifier) (*RequestService, error) {
	if db == nil {
		return nil, errors.New("request service: db is required")
	}
	if checker == nil {
		return nil, errors.New("request service: permission checker is required")
	}
	if notifier == nil {
		return nil, errors.New("request service: notifier is required")
	}
	return &RequestService{
		db:       db,
		checker:  checker,
		notifier: notifier,
		log:      logger.WithModule("requests"),
	}, nil
}

// Create files a join request for the board on behalf of userID.
// A user holds at most one pending request per board: a second submission
// while one is pending is a duplicate, while a previously resolved request
// is reopened so a rejection does not lock the user out forever.
func (s *RequestService) Create(ctx context.Context, userID, boardID string) (*models.BoardCollaboratorRequest, error) {
	ctx = ensureContext(ctx)

	if userID == "" {
		return nil, appErrors.ErrUnauthorized
	}

	var board models.Board
	if err := s.db.WithContext(ctx).First(&board, "id = ?", boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "failed to load board")
	}

	var member int64
	err := s.db.WithContext(ctx).
		Model(&models.BoardCollaborator{}).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		Count(&member).Error
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to check membership")
	}
	if member > 0 {
		return nil, appErrors.ErrDuplicateRequest
	}

	request := &models.BoardCollaboratorRequest{
		BoardID: boardID,
		UserID:  userID,
		Status:  models.RequestStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(request).Error; err != nil {
		if isUniqueConstraintError(err) {
			return s.reopenResolved(ctx, userID, boardID)
		}
		return nil, appErrors.Wrap(err, "failed to create request")
	}

	s.log.Info("join request created",
		zap.String("board_id", boardID), zap.String("user_id", userID))
	return request, nil
}

// reopenResolved flips the user's existing request for the board back to
// pending. A row that is still pending loses the conditional update and
// surfaces as a duplicate.
func (s *RequestService) reopenResolved(ctx context.Context, userID, boardID string) (*models.BoardCollaboratorRequest, error) {
	var existing models.BoardCollaboratorRequest
	err := s.db.WithContext(ctx).
		First(&existing, "board_id = ? AND user_id = ?", boardID, userID).Error
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load existing request")
	}

	flip := s.db.WithContext(ctx).
		Model(&models.BoardCollaboratorRequest{}).
		Where("id = ? AND status <> ?", existing.ID, models.RequestStatusPending).
		Update("status", models.RequestStatusPending)
	if flip.Error != nil {
		return nil, appErrors.Wrap(flip.Error, "failed to reopen request")
	}
	if flip.RowsAffected == 0 {
		return nil, appErrors.ErrDuplicateRequest
	}

	existing.Status = models.RequestStatusPending

	s.log.Info("join request reopened",
		zap.String("board_id", boardID), zap.String("user_id", userID))
	return &existing, nil
}

// ListForBoard returns the board's pending requests. Moderator only.
func (s *RequestService) ListForBoard(ctx context.Context, actorID, boardID string) ([]models.BoardCollaboratorRequest, error) {
	ctx = ensureContext(ctx)

	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, actorID, board); err != nil {
		return nil, err
	}

	var requests []models.BoardCollaboratorRequest
	err = s.db.WithContext(ctx).
		Preload("User").
		Where("board_id = ? AND status = ?", boardID, models.RequestStatusPending).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to list requests")
	}
	return requests, nil
}

// Accept resolves a pending request and adds the requester to the board.
// The status flip and the membership insert commit atomically; a concurrent
// resolution or a pre-existing membership row leaves a single collaborator.
func (s *RequestService) Accept(ctx context.Context, actorID, requestID string) (*models.BoardCollaboratorRequest, error) {
	return s.resolve(ctx, actorID, requestID, models.RequestStatusAccepted)
}

// Reject resolves a pending request without granting membership.
func (s *RequestService) Reject(ctx context.Context, actorID, requestID string) (*models.BoardCollaboratorRequest, error) {
	return s.resolve(ctx, actorID, requestID, models.RequestStatusRejected)
}

func (s *RequestService) resolve(ctx context.Context, actorID, requestID string, status models.RequestStatus) (*models.BoardCollaboratorRequest, error) {
	ctx = ensureContext(ctx)

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	board, err := s.loadBoard(ctx, request.BoardID)
	if err != nil {
		return nil, err
	}
	if err := s.requireModerator(ctx, actorID, board); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flip := tx.Model(&models.BoardCollaboratorRequest{}).
			Where("id = ? AND status = ?", requestID, models.RequestStatusPending).
			Update("status", status)
		if flip.Error != nil {
			return flip.Error
		}
		if flip.RowsAffected == 0 {
			return appErrors.ErrInvalidStateTransition
		}

		if status == models.RequestStatusAccepted {
			collab := models.BoardCollaborator{BoardID: request.BoardID, UserID: &request.UserID}
			err := tx.Where("board_id = ? AND user_id = ?", request.BoardID, request.UserID).
				FirstOrCreate(&collab).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var appErr *appErrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, "failed to resolve request")
	}

	request.Status = status
	metrics.JoinRequestDecisions.WithLabelValues(string(status)).Inc()

	label := notifications.LabelJoinRequestRejected
	if status == models.RequestStatusAccepted {
		label = notifications.LabelJoinRequestAccepted
	}
	s.notifier.Notify(ctx, notifications.Payload{
		UserID:  request.UserID,
		ActorID: actorID,
		Label:   label,
		Metadata: map[string]interface{}{
			"board_id":   board.ID,
			"board_name": board.Name,
		},
	})

	s.log.Info(fmt.Sprintf("join request %s", status),
		zap.String("request_id", requestID), zap.String("actor_id", actorID))
	return request, nil
}

func (s *RequestService) requireModerator(ctx context.Context, actorID string, board *models.Board) error {
	allowed, err := s.checker.CanModerateJoinRequests(ctx, actorID, board)
	if err != nil {
		return appErrors.Wrap(err, "failed to check board access")
	}
	if !allowed {
		return appErrors.ErrForbidden
	}
	return nil
}

func (s *RequestService) loadBoard(ctx context.Context, boardID string) (*models.Board, error) {
	var board models.Board
	if err := s.db.WithContext(ctx).First(&board, "id = ?", boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "failed to load board")
	}
	return &board, nil
}

func (s *RequestService) loadRequest(ctx context.Context, id string) (*models.BoardCollaboratorRequest, error) {
	var request models.BoardCollaboratorRequest
	if err := s.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, "failed to load request")
	}
	return &request, nil
}
