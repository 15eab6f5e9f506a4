package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/billing"
	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// microsPerCent converts micro-dollars into cents.
const microsPerCent = 10_000

// UsageRecord describes one routed request to meter and charge.
type UsageRecord struct {
	UserID       uint64
	APIKeyID     *uint64
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
	RequestedAt  time.Time
	Failed       bool
}

// Recorder persists usage rows and charges them against the credit ledger.
type Recorder struct {
	db   *gorm.DB
	calc *billing.Calculator
}

// NewRecorder constructs a Recorder backed by GORM.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db, calc: billing.NewCalculator(db)}
}

// RecordUsage writes a usage row and debits the user's balance for it
// inside one transaction. Failed requests are recorded but not billed.
//
// The debit is clamped at the available balance: the row keeps the full
// computed cost while charged_cents records what was actually taken, so a
// drained account floors at zero instead of going negative.
func (r *Recorder) RecordUsage(ctx context.Context, rec UsageRecord) error {
	if r == nil || r.db == nil {
		return errors.New("ledger: nil recorder")
	}
	if rec.UserID == 0 {
		return errors.New("ledger: usage record missing user")
	}

	requestedAt := rec.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Now().UTC()
	}

	var costMicros, feeMicros int64
	if !rec.Failed {
		costMicros = r.calc.ComputeProviderCost(ctx, rec.Provider, rec.Model, rec.InputTokens, rec.OutputTokens)
		feeMicros = billing.ClassifierFeeMicros()
	}

	row := models.Usage{
		Provider:            billing.NormalizeProvider(rec.Provider),
		Model:               billing.ModelKey(rec.Provider, rec.Model),
		UserID:              &rec.UserID,
		APIKeyID:            rec.APIKeyID,
		RequestedAt:         requestedAt.UTC(),
		Failed:              rec.Failed,
		InputTokens:         rec.InputTokens,
		OutputTokens:        rec.OutputTokens,
		TotalTokens:         rec.InputTokens + rec.OutputTokens,
		CostMicros:          costMicros,
		ClassifierFeeMicros: feeMicros,
		CreatedAt:           time.Now().UTC(),
	}

	chargeCents := centsForMicros(costMicros + feeMicros)

	errTx := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return errCreate
		}
		if chargeCents <= 0 {
			return nil
		}

		current, hasAccount, errRead := lockedBalance(tx, rec.UserID)
		if errRead != nil {
			return errRead
		}

		charged := chargeCents
		if charged > current {
			charged = current
			log.WithFields(log.Fields{
				"user_id":    rec.UserID,
				"cost_cents": chargeCents,
				"balance":    current,
			}).Warn("ledger: balance below usage cost, charging remainder only")
		}
		if charged <= 0 {
			return nil
		}

		now := time.Now().UTC()
		projected := current - charged
		if hasAccount {
			if errUpdate := tx.Model(&models.CreditAccount{}).
				Where("user_id = ?", rec.UserID).
				Updates(map[string]any{"balance_cents": projected, "updated_at": now}).Error; errUpdate != nil {
				return errUpdate
			}
		} else {
			account := models.CreditAccount{UserID: rec.UserID, BalanceCents: projected, UpdatedAt: now}
			if errCreate := tx.Create(&account).Error; errCreate != nil {
				return errCreate
			}
		}

		txn := models.CreditTransaction{
			UserID:      rec.UserID,
			AmountCents: -charged,
			Method:      models.MethodUsageCharge,
			Status:      models.StatusCompleted,
			Description: "Usage charge: " + row.Model,
			ReferenceID: uuid.NewString(),
			CreatedAt:   now,
		}
		if errCreate := tx.Create(&txn).Error; errCreate != nil {
			return errCreate
		}

		return tx.Model(&models.Usage{}).
			Where("id = ?", row.ID).
			Update("charged_cents", charged).Error
	})
	if errTx != nil {
		log.WithError(errTx).Warn("ledger: failed to persist usage or charge balance")
		return errTx
	}
	return nil
}

// centsForMicros converts micro-dollars to cents, rounding part-cent
// amounts up so fractional usage is not given away.
func centsForMicros(micros int64) int64 {
	if micros <= 0 {
		return 0
	}
	return (micros + microsPerCent - 1) / microsPerCent
}
