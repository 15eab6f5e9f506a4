package models

import (
	"time"

	"gorm.io/datatypes"
)

// Usage records metering data for a single routed request.
type Usage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Provider string `gorm:"type:text;not null;index"` // Provider that served the request.
	Model    string `gorm:"type:text;not null;index"` // Model identifier.

	UserID   *uint64 `gorm:"index"` // Related user ID.
	APIKeyID *uint64 `gorm:"index"` // Related API key ID.

	RequestedAt time.Time `gorm:"not null;index"`         // Request timestamp.
	Failed      bool      `gorm:"not null;default:false"` // Failure flag.

	ErrorStatusCode *int           `gorm:"index"`      // HTTP status code for failed requests.
	ErrorDetail     datatypes.JSON `gorm:"type:jsonb"` // Structured error detail JSON.

	InputTokens  int64 `gorm:"not null;default:0"` // Input token count.
	OutputTokens int64 `gorm:"not null;default:0"` // Output token count.
	TotalTokens  int64 `gorm:"not null;default:0"` // Total token count.

	CostMicros          int64 `gorm:"not null;default:0"` // Provider cost in micro-dollars.
	ClassifierFeeMicros int64 `gorm:"not null;default:0"` // Routing classifier fee in micro-dollars.
	ChargedCents        int64 `gorm:"not null;default:0"` // Amount actually debited from the credit balance.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
