package models

import "time"

// User roles. Role values outside this set are rejected by the admin API.
const (
	// RoleAdmin grants access to the admin API.
	RoleAdmin = "admin"
	// RolePro marks paid-tier users.
	RolePro = "pro"
	// RoleUser is the default role for new accounts.
	RoleUser = "user"
	// RoleSubUser marks delegated sub-accounts.
	RoleSubUser = "sub_user"
	// RoleTester marks internal test accounts.
	RoleTester = "tester"
)

// ValidRole reports whether role is one of the known role values.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RolePro, RoleUser, RoleSubUser, RoleTester:
		return true
	default:
		return false
	}
}

// User represents an account that owns API keys and a credit balance.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique email address.
	Password string `gorm:"type:text;not null"`             // Bcrypt password hash.

	Role string `gorm:"type:varchar(32);not null;default:'user'"` // Account role.

	EmailVerified bool `gorm:"not null;default:false"` // Whether the email was verified.
	Disabled      bool `gorm:"not null;default:false"` // Blocks login and API access.

	CreditAccount *CreditAccount `gorm:"foreignKey:UserID"` // Credit balance row.
	APIKeys       []APIKey       `gorm:"foreignKey:UserID"` // Issued API keys.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
