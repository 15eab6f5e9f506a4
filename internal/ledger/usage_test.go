package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/Fusionaimcp4/Fusion/internal/settings"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupUsageTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:usage_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	errMigrate := db.AutoMigrate(
		&models.User{},
		&models.CreditAccount{},
		&models.CreditTransaction{},
		&models.AdminAuditLog{},
		&models.ModelRate{},
		&models.Usage{},
	)
	if errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func TestRecordUsageChargesBalance(t *testing.T) {
	db := setupUsageTestDB(t)
	userID := createLedgerTestUser(t, db, "judy")
	l := New(db)
	ctx := context.Background()

	// Zero fee so the charge is driven by token cost alone.
	settings.StoreDBConfig(time.Now(), map[string]json.RawMessage{
		settings.ClassifierFeeCentsKey: json.RawMessage(`0`),
	})
	defer settings.StoreDBConfig(time.Now(), map[string]json.RawMessage{})

	if _, errCredit := l.AdjustBalance(ctx, userID, 1000, "topup", testActor()); errCredit != nil {
		t.Fatalf("credit: %v", errCredit)
	}

	// Fallback rate: (5000/1000)*0.002 * 2 = 0.02 dollars = 2 cents.
	rec := NewRecorder(db)
	errRecord := rec.RecordUsage(ctx, UsageRecord{
		UserID:       userID,
		Provider:     "openai",
		Model:        "unlisted-model",
		InputTokens:  5000,
		OutputTokens: 5000,
	})
	if errRecord != nil {
		t.Fatalf("record usage: %v", errRecord)
	}

	balance, _ := l.BalanceCents(ctx, userID)
	if balance != 998 {
		t.Fatalf("balance = %d, want 998", balance)
	}

	var usage models.Usage
	if errFind := db.Where("user_id = ?", userID).First(&usage).Error; errFind != nil {
		t.Fatalf("find usage: %v", errFind)
	}
	if usage.CostMicros != 20000 {
		t.Fatalf("cost micros = %d, want 20000", usage.CostMicros)
	}
	if usage.ChargedCents != 2 {
		t.Fatalf("charged cents = %d, want 2", usage.ChargedCents)
	}

	var txn models.CreditTransaction
	if errFind := db.Where("user_id = ? AND method = ?", userID, models.MethodUsageCharge).First(&txn).Error; errFind != nil {
		t.Fatalf("find usage transaction: %v", errFind)
	}
	if txn.AmountCents != -2 {
		t.Fatalf("usage transaction amount = %d, want -2", txn.AmountCents)
	}
}

func TestRecordUsageClampsAtZeroBalance(t *testing.T) {
	db := setupUsageTestDB(t)
	userID := createLedgerTestUser(t, db, "mallory")
	l := New(db)
	ctx := context.Background()

	settings.StoreDBConfig(time.Now(), map[string]json.RawMessage{
		settings.ClassifierFeeCentsKey: json.RawMessage(`0`),
	})
	defer settings.StoreDBConfig(time.Now(), map[string]json.RawMessage{})

	if _, errCredit := l.AdjustBalance(ctx, userID, 1, "tiny topup", testActor()); errCredit != nil {
		t.Fatalf("credit: %v", errCredit)
	}

	rec := NewRecorder(db)
	errRecord := rec.RecordUsage(ctx, UsageRecord{
		UserID:       userID,
		Provider:     "openai",
		Model:        "unlisted-model",
		InputTokens:  50000,
		OutputTokens: 50000,
	})
	if errRecord != nil {
		t.Fatalf("record usage: %v", errRecord)
	}

	balance, _ := l.BalanceCents(ctx, userID)
	if balance != 0 {
		t.Fatalf("balance = %d, want clamped 0", balance)
	}
}

func TestRecordUsageFailedRequestNotBilled(t *testing.T) {
	db := setupUsageTestDB(t)
	userID := createLedgerTestUser(t, db, "oscar")
	l := New(db)
	ctx := context.Background()

	if _, errCredit := l.AdjustBalance(ctx, userID, 500, "topup", testActor()); errCredit != nil {
		t.Fatalf("credit: %v", errCredit)
	}

	rec := NewRecorder(db)
	errRecord := rec.RecordUsage(ctx, UsageRecord{
		UserID:       userID,
		Provider:     "openai",
		Model:        "gpt-4o",
		InputTokens:  1000,
		OutputTokens: 1000,
		Failed:       true,
	})
	if errRecord != nil {
		t.Fatalf("record usage: %v", errRecord)
	}

	balance, _ := l.BalanceCents(ctx, userID)
	if balance != 500 {
		t.Fatalf("balance = %d, want untouched 500", balance)
	}

	var usage models.Usage
	if errFind := db.Where("user_id = ?", userID).First(&usage).Error; errFind != nil {
		t.Fatalf("find usage: %v", errFind)
	}
	if !usage.Failed || usage.CostMicros != 0 || usage.ChargedCents != 0 {
		t.Fatalf("failed usage should carry no cost: %+v", usage)
	}
}

func TestCentsForMicros(t *testing.T) {
	t.Parallel()

	cases := map[int64]int64{
		0:     0,
		1:     1,
		9999:  1,
		10000: 1,
		10001: 2,
		25000: 3,
		-5:    0,
	}
	for micros, want := range cases {
		if got := centsForMicros(micros); got != want {
			t.Fatalf("centsForMicros(%d) = %d, want %d", micros, got, want)
		}
	}
}
