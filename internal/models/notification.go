package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a persisted in-app notification for a user.
type Notification struct {
	BaseModel

	UserID   string         `gorm:"type:uuid;not null;index" json:"user_id"`
	ActorID  string         `gorm:"type:uuid" json:"actor_id,omitempty"`
	Label    string         `gorm:"not null;index" json:"label"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	IsRead bool       `gorm:"default:false" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}
