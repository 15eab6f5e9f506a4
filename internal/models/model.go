package models

import "time"

// Model is one catalog entry shown in the model browser.
//
// Rows are synced from the NeuroSwitch models feed by the catalog sync job;
// entries missing from the feed are deactivated rather than removed.
type Model struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Provider string `gorm:"type:varchar(255);not null;index"`               // Upstream provider name.
	ModelID  string `gorm:"type:varchar(255);not null;uniqueIndex"`         // Composite provider/model key.
	Name     string `gorm:"type:text;not null"`                             // Display name.

	Description   string `gorm:"type:text"`          // Feed-provided description.
	ContextLength int64  `gorm:"not null;default:0"` // Context window in tokens.

	InputCostPerMillionTokens  float64 `gorm:"type:decimal(20,10);not null;default:0"` // Input rate in dollars per 1M tokens.
	OutputCostPerMillionTokens float64 `gorm:"type:decimal(20,10);not null;default:0"` // Output rate in dollars per 1M tokens.

	SupportsVision    bool `gorm:"not null;default:false"` // Accepts image input.
	SupportsTools     bool `gorm:"not null;default:false"` // Supports tool calling.
	SupportsStreaming bool `gorm:"not null"`               // Supports streamed responses.

	// No column default: GORM drops zero-value fields from INSERT when a
	// default tag is present, which would silently flip false to true.
	IsActive bool `gorm:"not null"` // Present in the latest feed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
