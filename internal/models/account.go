package models

// AccountKind distinguishes personal workspaces from team workspaces.
type AccountKind string

const (
	AccountKindPersonal AccountKind = "personal"
	AccountKindTeam     AccountKind = "team"
)

// Account is a tenant workspace containing boards.
type Account struct {
	BaseModel

	Name        string      `gorm:"not null" json:"name"`
	Slug        string      `gorm:"uniqueIndex;not null" json:"slug"`
	Kind        AccountKind `gorm:"not null;default:team" json:"kind"`
	AllowSignup bool        `gorm:"default:false" json:"allow_signup"`

	EmailDomains  []EmailDomain         `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"email_domains,omitempty"`
	Collaborators []AccountCollaborator `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"collaborators,omitempty"`
}

// EmailDomain allow-lists an email domain for self-service signup into an account.
type EmailDomain struct {
	BaseModel

	AccountID  string `gorm:"type:uuid;not null;uniqueIndex:idx_email_domains_account_domain" json:"account_id"`
	DomainName string `gorm:"not null;uniqueIndex:idx_email_domains_account_domain" json:"domain_name"`
}

// AccountCollaborator is a user's membership in an account.
// The (account, user) pair is unique and exactly one row per account carries
// the owner flag; the services guard that invariant on every mutation.
type AccountCollaborator struct {
	BaseModel

	AccountID string `gorm:"type:uuid;not null;uniqueIndex:idx_account_collaborators_account_user" json:"account_id"`
	UserID    string `gorm:"type:uuid;not null;uniqueIndex:idx_account_collaborators_account_user" json:"user_id"`
	IsOwner   bool   `gorm:"default:false" json:"is_owner"`

	Account *Account `json:"account,omitempty"`
	User    *User    `json:"user,omitempty"`
}
