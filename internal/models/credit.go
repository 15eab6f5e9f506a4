package models

import "time"

// Credit transaction methods.
const (
	// MethodStripe marks Stripe checkout top-ups.
	MethodStripe = "stripe"
	// MethodBTCPay marks BTCPay invoice top-ups.
	MethodBTCPay = "btcpay"
	// MethodAdminAdjustment marks manual balance changes by administrators.
	MethodAdminAdjustment = "admin_adjustment"
	// MethodUsageCharge marks per-request usage deductions.
	MethodUsageCharge = "usage_charge"
)

// Credit transaction statuses.
const (
	// StatusPending marks transactions awaiting settlement.
	StatusPending = "pending"
	// StatusCompleted marks settled transactions.
	StatusCompleted = "completed"
	// StatusFailed marks transactions that did not settle.
	StatusFailed = "failed"
)

// CreditAccount holds the current balance for a user.
//
// The balance is a denormalized running sum over the user's credit
// transactions; both are written inside the same database transaction so
// they cannot drift. A committed balance is never negative.
type CreditAccount struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex"` // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"`    // Owning user record.

	BalanceCents int64 `gorm:"not null;default:0"` // Current balance in cents.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// CreditTransaction is one immutable entry in the credit ledger.
type CreditTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Owning user record.

	AmountCents int64  `gorm:"not null"`                  // Signed amount: positive credits, negative debits.
	Method      string `gorm:"type:varchar(32);not null"` // Payment or adjustment method.
	Status      string `gorm:"type:varchar(16);not null"` // pending, completed or failed.
	Description string `gorm:"type:text"`                 // Human-readable context.

	ReferenceID string `gorm:"type:varchar(64);index"` // External reference for reconciliation.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
