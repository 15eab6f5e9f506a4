package models

import "time"

// ModelRate stores token pricing for one provider/model pair.
//
// Rates are dollars per million tokens. Rows are never deleted, only
// deactivated, so historical usage keeps pointing at the rate it was billed
// under. Lookups are case-insensitive on (provider, model_id).
type ModelRate struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Provider string `gorm:"type:varchar(255);not null;uniqueIndex:idx_model_rates_provider_model,priority:1"` // Normalized provider name.
	ModelID  string `gorm:"type:varchar(255);not null;uniqueIndex:idx_model_rates_provider_model,priority:2"` // Composite provider/model key.

	InputCostPerMillionTokens  float64 `gorm:"type:decimal(20,10);not null;default:0"` // Input rate in dollars per 1M tokens.
	OutputCostPerMillionTokens float64 `gorm:"type:decimal(20,10);not null;default:0"` // Output rate in dollars per 1M tokens.

	// No column default: GORM drops zero-value fields from INSERT when a
	// default tag is present, which would silently flip false to true.
	IsActive bool `gorm:"not null"` // Whether the rate is used for billing.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
