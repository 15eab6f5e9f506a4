package db

import (
	"fmt"

	"github.com/Fusionaimcp4/Fusion/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all persistent models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.APIKey{},
		&models.CreditAccount{},
		&models.CreditTransaction{},
		&models.AdminAuditLog{},
		&models.ModelRate{},
		&models.Model{},
		&models.Setting{},
		&models.Usage{},
	)
}
