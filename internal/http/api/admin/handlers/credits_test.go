package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/ledger"
	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupCreditsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:admin_credits_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.User{}, &models.CreditAccount{}, &models.CreditTransaction{}, &models.AdminAuditLog{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func newCreditsTestRouter(db *gorm.DB) *gin.Engine {
	handler := NewCreditsHandler(ledger.New(db))
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("adminID", uint64(1))
		c.Set("adminUsername", "root")
	})
	router.POST("/users/:id/credits/adjust", handler.Adjust)
	router.GET("/users/:id/credits/transactions", handler.Transactions)
	return router
}

func createCreditsTestUser(t *testing.T, db *gorm.DB, balanceCents int64) models.User {
	t.Helper()
	user := models.User{Username: fmt.Sprintf("user_%d", time.Now().UnixNano()), Email: fmt.Sprintf("u%d@example.com", time.Now().UnixNano()), Password: "x", Role: models.RoleUser}
	if errCreate := db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	if balanceCents != 0 {
		account := models.CreditAccount{UserID: user.ID, BalanceCents: balanceCents}
		if errCreate := db.Create(&account).Error; errCreate != nil {
			t.Fatalf("create account: %v", errCreate)
		}
	}
	return user
}

func postAdjust(t *testing.T, router *gin.Engine, userID uint64, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/users/%d/credits/adjust", userID), bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdjustCreditSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupCreditsTestDB(t)
	router := newCreditsTestRouter(db)
	user := createCreditsTestUser(t, db, 250)

	w := postAdjust(t, router, user.ID, `{"amount_cents": 500, "reason": "goodwill credit"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		PreviousBalanceCents int64 `json:"previous_balance_cents"`
		AdjustedAmountCents  int64 `json:"adjusted_amount_cents"`
		NewBalanceCents      int64 `json:"new_balance_cents"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.PreviousBalanceCents != 250 || resp.AdjustedAmountCents != 500 || resp.NewBalanceCents != 750 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var account models.CreditAccount
	if errFind := db.Where("user_id = ?", user.ID).First(&account).Error; errFind != nil {
		t.Fatalf("find account: %v", errFind)
	}
	if account.BalanceCents != 750 {
		t.Fatalf("balance = %d, want 750", account.BalanceCents)
	}
}

func TestAdjustCreditInsufficientBalance(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupCreditsTestDB(t)
	router := newCreditsTestRouter(db)
	user := createCreditsTestUser(t, db, 100)

	w := postAdjust(t, router, user.ID, `{"amount_cents": -150, "reason": "correction"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Error               string `json:"error"`
		CurrentBalanceCents int64  `json:"current_balance_cents"`
		MaxDeductionCents   int64  `json:"max_deduction_cents"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Error != "insufficient balance" {
		t.Fatalf("error = %q", resp.Error)
	}
	if resp.CurrentBalanceCents != 100 || resp.MaxDeductionCents != 100 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	var account models.CreditAccount
	if errFind := db.Where("user_id = ?", user.ID).First(&account).Error; errFind != nil {
		t.Fatalf("find account: %v", errFind)
	}
	if account.BalanceCents != 100 {
		t.Fatalf("rejected adjustment must not change balance, got %d", account.BalanceCents)
	}
}

func TestAdjustCreditValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupCreditsTestDB(t)
	router := newCreditsTestRouter(db)
	user := createCreditsTestUser(t, db, 0)

	cases := []struct {
		name     string
		userID   uint64
		payload  string
		wantCode int
	}{
		{"zero amount", user.ID, `{"amount_cents": 0, "reason": "noop"}`, http.StatusBadRequest},
		{"empty reason", user.ID, `{"amount_cents": 100, "reason": "  "}`, http.StatusBadRequest},
		{"unknown user", user.ID + 999, `{"amount_cents": 100, "reason": "grant"}`, http.StatusNotFound},
		{"invalid json", user.ID, `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := postAdjust(t, router, tc.userID, tc.payload)
		if w.Code != tc.wantCode {
			t.Errorf("%s: status = %d, want %d: %s", tc.name, w.Code, tc.wantCode, w.Body.String())
		}
	}

	var count int64
	db.Model(&models.CreditTransaction{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected adjustments must not write transactions, got %d", count)
	}
}

func TestAdjustCreditWritesAuditRow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupCreditsTestDB(t)
	router := newCreditsTestRouter(db)
	user := createCreditsTestUser(t, db, 0)

	w := postAdjust(t, router, user.ID, `{"amount_cents": 1200, "reason": "promo grant"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var entry models.AdminAuditLog
	if errFind := db.First(&entry).Error; errFind != nil {
		t.Fatalf("find audit row: %v", errFind)
	}
	if entry.ActorID != 1 {
		t.Fatalf("actor_id = %d, want 1", entry.ActorID)
	}
	if entry.ActionType != "credit_adjustment" {
		t.Fatalf("action_type = %q", entry.ActionType)
	}
	if entry.TargetID != user.ID {
		t.Fatalf("target_id = %d, want %d", entry.TargetID, user.ID)
	}
}

func TestTransactionsListNewestFirst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupCreditsTestDB(t)
	router := newCreditsTestRouter(db)
	user := createCreditsTestUser(t, db, 0)

	for _, amount := range []string{`{"amount_cents": 100, "reason": "first"}`, `{"amount_cents": 200, "reason": "second"}`} {
		if w := postAdjust(t, router, user.ID, amount); w.Code != http.StatusOK {
			t.Fatalf("adjust: status %d", w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/users/%d/credits/transactions", user.ID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Transactions []struct {
			AmountCents int64  `json:"amount_cents"`
			Method      string `json:"method"`
		} `json:"transactions"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if len(resp.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(resp.Transactions))
	}
	if resp.Transactions[0].AmountCents != 200 {
		t.Fatalf("expected newest transaction first, got %+v", resp.Transactions)
	}
	if resp.Transactions[0].Method != models.MethodAdminAdjustment {
		t.Fatalf("method = %q", resp.Transactions[0].Method)
	}
}
