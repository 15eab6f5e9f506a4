package models

import (
	"encoding/json"
	"time"
)

// Setting stores one global key/value configuration row, such as the
// pricing prime percentage or the NeuroSwitch classifier fee.
type Setting struct {
	Key       string          `gorm:"type:varchar(255);primaryKey"`                      // Configuration key.
	Value     json.RawMessage `gorm:"type:jsonb"`                                        // JSON-encoded value.
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime;default:CURRENT_TIMESTAMP"` // Last update timestamp.
}
