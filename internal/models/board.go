package models

// Board is a shared workspace of cards owned by exactly one account for its lifetime.
type Board struct {
	BaseModel

	AccountID string `gorm:"type:uuid;not null;index;uniqueIndex:idx_boards_account_slug" json:"account_id"`
	Name      string `gorm:"not null" json:"name"`
	Slug      string `gorm:"not null;uniqueIndex:idx_boards_account_slug" json:"slug"`

	// IsShared grants public read access; it never grants write.
	IsShared bool `gorm:"default:false" json:"is_shared"`

	Account       *Account            `json:"account,omitempty"`
	Collaborators []BoardCollaborator `gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE" json:"collaborators,omitempty"`
}

// BoardCollaborator is a user's membership on a board, or a pending invited
// email when the invitee has no user yet. Exactly one of UserID and Email is
// set; the (board, user) pair is unique when the user is linked (NULL user
// rows do not collide on the composite index).
type BoardCollaborator struct {
	BaseModel

	BoardID string  `gorm:"type:uuid;not null;uniqueIndex:idx_board_collaborators_board_user" json:"board_id"`
	UserID  *string `gorm:"type:uuid;uniqueIndex:idx_board_collaborators_board_user" json:"user_id,omitempty"`
	Email   string  `json:"email,omitempty"`

	Board *Board `json:"board,omitempty"`
	User  *User  `json:"user,omitempty"`
}

// RequestStatus enumerates the board join-request lifecycle.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
)

// BoardCollaboratorRequest is a pending ask-to-join for a board.
// Accepted and rejected close the request; a new request from the same user
// reopens the row rather than inserting a second one, so the (board, user)
// pair stays unique across all statuses.
type BoardCollaboratorRequest struct {
	BaseModel

	BoardID string        `gorm:"type:uuid;not null;uniqueIndex:idx_board_requests_board_user" json:"board_id"`
	UserID  string        `gorm:"type:uuid;not null;uniqueIndex:idx_board_requests_board_user" json:"user_id"`
	Status  RequestStatus `gorm:"not null;default:pending" json:"status"`

	Board *Board `json:"board,omitempty"`
	User  *User  `json:"user,omitempty"`
}
