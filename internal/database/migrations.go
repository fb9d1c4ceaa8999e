package database

import (
	"gorm.io/gorm"

	"github.com/boardhub/boardhub/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
// Composite unique indexes declared on the models are the authoritative
// guard against concurrent duplicate inserts; services only interpret the
// resulting constraint violations.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.EmailDomain{},
		&models.AccountCollaborator{},
		&models.Board{},
		&models.BoardCollaborator{},
		&models.BoardCollaboratorRequest{},
		&models.InvitedUser{},
		&models.SignupRequest{},
		&models.Notification{},
	)
}
