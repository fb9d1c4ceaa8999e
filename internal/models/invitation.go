package models

// InvitedUser records an invitation extended to an email for an account.
// The (email, account) pair is unique so the invite is idempotent; the
// inviter recorded on first creation is authoritative.
type InvitedUser struct {
	BaseModel

	Email       string `gorm:"not null;uniqueIndex:idx_invited_users_email_account" json:"email"`
	AccountID   string `gorm:"type:uuid;not null;uniqueIndex:idx_invited_users_email_account" json:"account_id"`
	CreatedByID string `gorm:"type:uuid;not null" json:"created_by_id"`

	BoardCollaboratorID *string `gorm:"type:uuid" json:"board_collaborator_id,omitempty"`

	Account           *Account           `json:"account,omitempty"`
	CreatedBy         *User              `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	BoardCollaborator *BoardCollaborator `json:"board_collaborator,omitempty"`
}

// SignupRequest is a pre-registration waitlist entry keyed by email alone.
type SignupRequest struct {
	BaseModel

	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Token string `gorm:"not null" json:"-"`
}
