package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupRelayTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:relay_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.User{}, &models.APIKey{}, &models.CreditAccount{}, &models.CreditTransaction{}, &models.ModelRate{}, &models.Usage{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func seedRelayKey(t *testing.T, db *gorm.DB, balanceCents int64) models.APIKey {
	t.Helper()
	user := models.User{Username: fmt.Sprintf("u%d", time.Now().UnixNano()), Email: fmt.Sprintf("u%d@example.com", time.Now().UnixNano()), Password: "x", Role: models.RoleUser}
	if errCreate := db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	if errCreate := db.Create(&models.CreditAccount{UserID: user.ID, BalanceCents: balanceCents}).Error; errCreate != nil {
		t.Fatalf("create account: %v", errCreate)
	}
	key := models.APIKey{UserID: user.ID, Name: "gateway", APIKey: fmt.Sprintf("fsn_%d", time.Now().UnixNano()), Active: true}
	if errCreate := db.Create(&key).Error; errCreate != nil {
		t.Fatalf("create api key: %v", errCreate)
	}
	return key
}

func newRelayTestRouter(db *gorm.DB) *gin.Engine {
	router := gin.New()
	RegisterRelayRoutes(router, db)
	return router
}

func TestReportUsageChargesBalance(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupRelayTestDB(t)
	key := seedRelayKey(t, db, 1000)
	router := newRelayTestRouter(db)

	body := bytes.NewBufferString(`{"provider": "openai", "model": "gpt-4o", "input_tokens": 5000, "output_tokens": 5000}`)
	req := httptest.NewRequest(http.MethodPost, "/v0/relay/usage", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key.APIKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var usage models.Usage
	if errFind := db.First(&usage).Error; errFind != nil {
		t.Fatalf("find usage row: %v", errFind)
	}
	if usage.UserID == nil || *usage.UserID != key.UserID {
		t.Fatalf("usage user_id = %v, want %d", usage.UserID, key.UserID)
	}
	if usage.APIKeyID == nil || *usage.APIKeyID != key.ID {
		t.Fatalf("usage api_key_id = %v, want %d", usage.APIKeyID, key.ID)
	}
	if usage.ChargedCents <= 0 {
		t.Fatalf("charged_cents = %d, want > 0", usage.ChargedCents)
	}

	var account models.CreditAccount
	if errFind := db.Where("user_id = ?", key.UserID).First(&account).Error; errFind != nil {
		t.Fatalf("find account: %v", errFind)
	}
	if account.BalanceCents != 1000-usage.ChargedCents {
		t.Fatalf("balance = %d, want %d", account.BalanceCents, 1000-usage.ChargedCents)
	}

	var refreshed models.APIKey
	if errFind := db.First(&refreshed, key.ID).Error; errFind != nil {
		t.Fatalf("find key: %v", errFind)
	}
	if refreshed.LastUsedAt == nil {
		t.Fatal("last_used_at should be set after an authenticated call")
	}
}

func TestRelayRejectsBadKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupRelayTestDB(t)
	key := seedRelayKey(t, db, 0)
	router := newRelayTestRouter(db)

	send := func(apiKey string) int {
		req := httptest.NewRequest(http.MethodPost, "/v0/relay/usage", bytes.NewBufferString(`{"model": "gpt-4o"}`))
		req.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			req.Header.Set("X-API-Key", apiKey)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send(""); code != http.StatusUnauthorized {
		t.Errorf("missing key: status = %d, want 401", code)
	}
	if code := send("fsn_unknown"); code != http.StatusUnauthorized {
		t.Errorf("unknown key: status = %d, want 401", code)
	}

	now := time.Now().UTC()
	if errUpdate := db.Model(&models.APIKey{}).Where("id = ?", key.ID).Update("revoked_at", &now).Error; errUpdate != nil {
		t.Fatalf("revoke key: %v", errUpdate)
	}
	if code := send(key.APIKey); code != http.StatusUnauthorized {
		t.Errorf("revoked key: status = %d, want 401", code)
	}
}

func TestEstimateUsesStoredRates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupRelayTestDB(t)
	key := seedRelayKey(t, db, 0)
	rate := models.ModelRate{Provider: "google", ModelID: "google/gemini-1.5-flash", InputCostPerMillionTokens: 1.0, OutputCostPerMillionTokens: 2.0, IsActive: true}
	if errCreate := db.Create(&rate).Error; errCreate != nil {
		t.Fatalf("create rate: %v", errCreate)
	}
	router := newRelayTestRouter(db)

	req := httptest.NewRequest(http.MethodGet, "/v0/relay/cost-estimate?provider=gemini&model=gemini-1.5-flash&input_tokens=1000&output_tokens=500", nil)
	req.Header.Set("Authorization", "Bearer "+key.APIKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		CostMicros  int64 `json:"cost_micros"`
		TotalMicros int64 `json:"total_micros"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	// 1000 input at $1/M plus 500 output at $2/M is $0.002.
	if resp.CostMicros != 2000 {
		t.Fatalf("cost_micros = %d, want 2000", resp.CostMicros)
	}
	if resp.TotalMicros <= resp.CostMicros {
		t.Fatalf("total should include the classifier fee, got %d", resp.TotalMicros)
	}
}
