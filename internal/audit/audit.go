// Package audit writes the administrative action trail.
package audit

import (
	"encoding/json"
	"errors"

	"github.com/Fusionaimcp4/Fusion/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Admin action types recorded in the audit trail.
const (
	// ActionCreditAdjustment marks manual balance changes.
	ActionCreditAdjustment = "credit_adjustment"
	// ActionUserCreate marks admin-created accounts.
	ActionUserCreate = "user_create"
	// ActionUserRoleUpdate marks role changes.
	ActionUserRoleUpdate = "user_role_update"
	// ActionUserUpdate marks other account field changes.
	ActionUserUpdate = "user_update"
	// ActionModelRateChange marks pricing table edits.
	ActionModelRateChange = "model_rate_change"
	// ActionPricingConfigChange marks global pricing config edits.
	ActionPricingConfigChange = "pricing_config_change"
)

// LogAdminAction appends one audit row using the given connection.
//
// Pass the surrounding transaction handle when the action must be atomic
// with its effects: a failed audit write then rolls the whole operation
// back.
func LogAdminAction(tx *gorm.DB, actorID uint64, actionType, targetType string, targetID uint64, details any, summary string) error {
	if tx == nil {
		return errors.New("audit: nil db")
	}

	row := models.AdminAuditLog{
		ActorID:    actorID,
		ActionType: actionType,
		TargetType: targetType,
		TargetID:   targetID,
		Summary:    summary,
	}
	if details != nil {
		payload, errMarshal := json.Marshal(details)
		if errMarshal != nil {
			return errMarshal
		}
		row.Details = datatypes.JSON(payload)
	}

	return tx.Create(&row).Error
}
