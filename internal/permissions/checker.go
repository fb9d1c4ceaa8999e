package permissions

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/boardhub/boardhub/internal/models"
	"github.com/boardhub/boardhub/pkg/metrics"
)

// Action classifies a request by its effect.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// ActionForMethod maps an HTTP method onto an Action. Safe methods are reads,
// everything else is a write.
func ActionForMethod(method string) Action {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	default:
		return ActionWrite
	}
}

// Checker evaluates board and account access rules.
//
// Decisions are booleans, never errors: a denied check returns (false, nil)
// and the caller translates that into its own failure. Errors are reserved
// for infrastructure faults. The anonymous caller is the empty user id.
type Checker struct {
	db *gorm.DB
}

// NewChecker constructs a Checker instance.
func NewChecker(db *gorm.DB) (*Checker, error) {
	if db == nil {
		return nil, errors.New("permission checker: db is required")
	}
	return &Checker{db: db}, nil
}

// CanAccessBoard reports whether userID may perform action on the board.
//
// Reads on a shared board are open to anyone, including anonymous callers.
// All other access requires a user-linked board collaborator row, with the
// account owner overriding board membership entirely.
func (c *Checker) CanAccessBoard(ctx context.Context, userID string, board *models.Board, action Action) (bool, error) {
	allowed, err := c.canAccessBoard(ctx, userID, board, action)
	if err != nil {
		return false, err
	}

	result := "denied"
	if allowed {
		result = "allowed"
	}
	metrics.AccessChecks.WithLabelValues(string(action), result).Inc()

	return allowed, nil
}

func (c *Checker) canAccessBoard(ctx context.Context, userID string, board *models.Board, action Action) (bool, error) {
	if board == nil {
		return false, errors.New("permission checker: board is required")
	}

	if action == ActionRead && board.IsShared {
		return true, nil
	}

	if userID == "" {
		return false, nil
	}

	member, err := c.isBoardCollaborator(ctx, userID, board.ID)
	if err != nil {
		return false, err
	}
	if member {
		return true, nil
	}

	return c.isAccountOwner(ctx, userID, board.AccountID)
}

// CanCreateBoardCollaborator reports whether userID may invite collaborators
// onto the board. Write access to the board is the bar.
func (c *Checker) CanCreateBoardCollaborator(ctx context.Context, userID string, board *models.Board) (bool, error) {
	return c.CanAccessBoard(ctx, userID, board, ActionWrite)
}

// CanMutateBoardCollaborator reports whether userID may modify or remove the
// given collaborator row. Write access to the board is the bar, which covers
// user-linked collaborators and the account owner. Any collaborator may also
// remove themselves with DELETE, even if they somehow lack write access.
func (c *Checker) CanMutateBoardCollaborator(ctx context.Context, userID, method string, collab *models.BoardCollaborator) (bool, error) {
	if collab == nil {
		return false, errors.New("permission checker: collaborator is required")
	}
	if userID == "" {
		return false, nil
	}

	if method == http.MethodDelete && collab.UserID != nil && *collab.UserID == userID {
		return true, nil
	}

	var board models.Board
	if err := c.db.WithContext(ctx).Select("id", "account_id", "is_shared").First(&board, "id = ?", collab.BoardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	return c.CanAccessBoard(ctx, userID, &board, ActionWrite)
}

// CanModerateJoinRequests reports whether userID may accept or reject join
// requests for the board. Reserved for the account owner.
func (c *Checker) CanModerateJoinRequests(ctx context.Context, userID string, board *models.Board) (bool, error) {
	if board == nil {
		return false, errors.New("permission checker: board is required")
	}
	if userID == "" {
		return false, nil
	}
	return c.isAccountOwner(ctx, userID, board.AccountID)
}

// IsAccountOwner reports whether userID owns the account.
func (c *Checker) IsAccountOwner(ctx context.Context, userID, accountID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return c.isAccountOwner(ctx, userID, accountID)
}

func (c *Checker) isAccountOwner(ctx context.Context, userID, accountID string) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.AccountCollaborator{}).
		Where("account_id = ? AND user_id = ? AND is_owner = ?", accountID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *Checker) isBoardCollaborator(ctx context.Context, userID, boardID string) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.BoardCollaborator{}).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
