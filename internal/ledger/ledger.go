// Package ledger maintains per-user credit balances and their append-only
// transaction history.
//
// The balance column on credit_accounts is a denormalized running sum over
// credit_transactions; every write path here touches both inside one
// database transaction, with the account row locked for update, so a
// committed balance can never go negative and never drifts from the
// transaction log.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/audit"
	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Validation errors for adjustment requests.
var (
	// ErrZeroAmount indicates an adjustment of zero cents.
	ErrZeroAmount = errors.New("ledger: amount must be a nonzero integer")
	// ErrEmptyReason indicates a missing adjustment reason.
	ErrEmptyReason = errors.New("ledger: reason must not be empty")
	// ErrUserNotFound indicates the target user does not exist.
	ErrUserNotFound = errors.New("ledger: user not found")
)

// InsufficientBalanceError rejects an adjustment that would drive the
// balance negative. It carries the data the API surfaces to the caller.
type InsufficientBalanceError struct {
	CurrentBalanceCents int64
	RequestedCents      int64
}

// Error implements the error interface.
func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("ledger: adjustment of %d cents would overdraw balance of %d cents", e.RequestedCents, e.CurrentBalanceCents)
}

// MaxDeductionCents returns the largest deduction the balance permits.
func (e *InsufficientBalanceError) MaxDeductionCents() int64 {
	return e.CurrentBalanceCents
}

// Actor identifies the administrator performing an adjustment.
type Actor struct {
	AdminID  uint64
	Username string
}

// AdjustResult reports the balance change produced by an adjustment.
type AdjustResult struct {
	PreviousBalanceCents int64
	NewBalanceCents      int64
	TransactionID        uint64
}

// Ledger provides balance reads and atomic adjustment operations.
type Ledger struct {
	db *gorm.DB
}

// New constructs a Ledger backed by GORM.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// AdjustBalance applies a signed adjustment to a user's balance.
//
// The read, the negative-balance check, the balance write, the transaction
// row and the audit row all run inside one database transaction with the
// account row locked for update, so concurrent adjustments for the same
// user serialize instead of racing the check against stale data.
// An adjustment that lands on exactly zero is allowed.
func (l *Ledger) AdjustBalance(ctx context.Context, userID uint64, amountCents int64, reason string, actor Actor) (AdjustResult, error) {
	if amountCents == 0 {
		return AdjustResult{}, ErrZeroAmount
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return AdjustResult{}, ErrEmptyReason
	}

	var result AdjustResult
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.Select("id").First(&user, userID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return errFind
		}

		current, hasAccount, errRead := lockedBalance(tx, userID)
		if errRead != nil {
			return errRead
		}

		projected := current + amountCents
		if projected < 0 {
			return &InsufficientBalanceError{
				CurrentBalanceCents: current,
				RequestedCents:      amountCents,
			}
		}

		now := time.Now().UTC()
		if hasAccount {
			// Direct set of the precomputed projection, not a SQL increment:
			// the row lock above already serializes writers, and a set keeps
			// the stored value equal to the value the check ran against.
			if errUpdate := tx.Model(&models.CreditAccount{}).
				Where("user_id = ?", userID).
				Updates(map[string]any{"balance_cents": projected, "updated_at": now}).Error; errUpdate != nil {
				return errUpdate
			}
		} else {
			account := models.CreditAccount{UserID: userID, BalanceCents: projected, UpdatedAt: now}
			if errCreate := tx.Create(&account).Error; errCreate != nil {
				return errCreate
			}
		}

		txn := models.CreditTransaction{
			UserID:      userID,
			AmountCents: amountCents,
			Method:      models.MethodAdminAdjustment,
			Status:      models.StatusCompleted,
			Description: "Admin adjustment: " + reason,
			ReferenceID: uuid.NewString(),
			CreatedAt:   now,
		}
		if errCreate := tx.Create(&txn).Error; errCreate != nil {
			return errCreate
		}

		summary := fmt.Sprintf("adjusted balance of user %d by %d cents (%d -> %d)", userID, amountCents, current, projected)
		details := map[string]any{
			"actor_username":         actor.Username,
			"amount_cents":           amountCents,
			"previous_balance_cents": current,
			"new_balance_cents":      projected,
			"reason":                 reason,
			"transaction_reference":  txn.ReferenceID,
		}
		if errAudit := audit.LogAdminAction(tx, actor.AdminID, audit.ActionCreditAdjustment, "user", userID, details, summary); errAudit != nil {
			return errAudit
		}

		result = AdjustResult{
			PreviousBalanceCents: current,
			NewBalanceCents:      projected,
			TransactionID:        txn.ID,
		}
		return nil
	})
	if errTx != nil {
		return AdjustResult{}, errTx
	}

	log.WithFields(log.Fields{
		"user_id":      userID,
		"amount_cents": amountCents,
		"new_balance":  result.NewBalanceCents,
		"actor":        actor.Username,
	}).Info("ledger: balance adjusted")
	return result, nil
}

// BalanceCents returns the user's current balance. A user without an
// account row has balance 0.
func (l *Ledger) BalanceCents(ctx context.Context, userID uint64) (int64, error) {
	var account models.CreditAccount
	errFind := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, errFind
	}
	return account.BalanceCents, nil
}

// Transactions returns the user's ledger entries, newest first.
func (l *Ledger) Transactions(ctx context.Context, userID uint64, limit, offset int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows []models.CreditTransaction
	errFind := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if errFind != nil {
		return nil, errFind
	}
	return rows, nil
}

// RecomputeBalanceCents folds the transaction log for a user. It exists for
// reconciliation; the stored balance must always equal this sum.
func (l *Ledger) RecomputeBalanceCents(ctx context.Context, userID uint64) (int64, error) {
	var total int64
	errSum := l.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Where("user_id = ? AND status = ?", userID, models.StatusCompleted).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	if errSum != nil {
		return 0, errSum
	}
	return total, nil
}

// lockedBalance reads the account row under a row lock, reporting whether a
// row exists. A missing row reads as balance 0.
func lockedBalance(tx *gorm.DB, userID uint64) (int64, bool, error) {
	var account models.CreditAccount
	errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, errFind
	}
	return account.BalanceCents, true, nil
}
