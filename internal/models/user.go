package models

// User describes an authenticated principal.
//
// TokenVersion is a per-user revocation nonce: every password set or change
// rotates it, which invalidates all previously issued session and reset
// tokens in one step without tracking individual tokens.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	TokenVersion string `gorm:"uniqueIndex;not null" json:"-"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
}

// FullName returns first and last name joined, falling back to the username.
func (u *User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}
