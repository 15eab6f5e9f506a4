package models

import (
	"time"

	"gorm.io/datatypes"
)

// AdminAuditLog records one administrative action for the audit trail.
//
// Rows written alongside a balance adjustment are created inside the same
// database transaction, so a failed audit write rolls the adjustment back.
type AdminAuditLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ActorID uint64 `gorm:"not null;index"` // Acting admin user ID.

	ActionType string `gorm:"type:varchar(64);not null;index"` // Action identifier, e.g. credit_adjustment.
	TargetType string `gorm:"type:varchar(64);not null"`       // Target entity type, e.g. user.
	TargetID   uint64 `gorm:"not null;index"`                  // Target entity ID.

	Details datatypes.JSON `gorm:"type:jsonb"` // Structured action payload.
	Summary string         `gorm:"type:text"`  // One-line human-readable summary.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
