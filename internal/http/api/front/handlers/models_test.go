package handlers

import (
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

func setupModelsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:front_models_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.Model{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func seedModelsTestRows(t *testing.T, db *gorm.DB) {
	t.Helper()
	rows := []models.Model{
		{Provider: "openai", ModelID: "openai/gpt-4o", Name: "GPT-4o", ContextLength: 128000, InputCostPerMillionTokens: 2.5, SupportsVision: true, SupportsTools: true, SupportsStreaming: true, IsActive: true},
		{Provider: "google", ModelID: "google/gemini-1.5-flash", Name: "Gemini 1.5 Flash", ContextLength: 1000000, InputCostPerMillionTokens: 0.35, SupportsVision: true, SupportsStreaming: true, IsActive: true},
		{Provider: "anthropic", ModelID: "anthropic/claude-sonnet", Name: "Claude Sonnet", ContextLength: 200000, InputCostPerMillionTokens: 3.0, SupportsTools: true, SupportsStreaming: true, IsActive: true},
		{Provider: "openai", ModelID: "openai/gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextLength: 16000, InputCostPerMillionTokens: 0.5, SupportsStreaming: true, IsActive: false},
	}
	if errCreate := db.Create(&rows).Error; errCreate != nil {
		t.Fatalf("seed models: %v", errCreate)
	}
}

type modelsListResponse struct {
	Models []struct {
		ID       string `json:"id"`
		Provider string `json:"provider"`
		Name     string `json:"name"`
	} `json:"models"`
	Providers []string `json:"providers"`
	Total     int      `json:"total"`
}

func getModels(t *testing.T, router *gin.Engine, query string) modelsListResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/models"+query, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp modelsListResponse
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	return resp
}

func TestListModelsExcludesInactive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupModelsTestDB(t)
	seedModelsTestRows(t, db)

	router := gin.New()
	router.GET("/models", NewModelsHandler(db).List)

	resp := getModels(t, router, "")
	if resp.Total != 3 {
		t.Fatalf("total = %d, want 3 active models", resp.Total)
	}
	for _, m := range resp.Models {
		if m.ID == "openai/gpt-3.5-turbo" {
			t.Fatalf("inactive model leaked into listing")
		}
	}
	if len(resp.Providers) != 3 {
		t.Fatalf("providers = %v, want 3 distinct", resp.Providers)
	}
}

func TestListModelsProviderFilterNormalizesSynonyms(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupModelsTestDB(t)
	seedModelsTestRows(t, db)

	router := gin.New()
	router.GET("/models", NewModelsHandler(db).List)

	resp := getModels(t, router, "?provider=gemini")
	if resp.Total != 1 || resp.Models[0].ID != "google/gemini-1.5-flash" {
		t.Fatalf("gemini filter should resolve to google models, got %+v", resp.Models)
	}
}

func TestListModelsCapabilityFilterAndSort(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupModelsTestDB(t)
	seedModelsTestRows(t, db)

	router := gin.New()
	router.GET("/models", NewModelsHandler(db).List)

	resp := getModels(t, router, "?tools=true")
	if resp.Total != 2 {
		t.Fatalf("tools filter total = %d, want 2", resp.Total)
	}

	resp = getModels(t, router, "?sort=context")
	if resp.Models[0].ID != "google/gemini-1.5-flash" {
		t.Fatalf("context sort should put the largest window first, got %+v", resp.Models[0])
	}

	resp = getModels(t, router, "?search=gpt")
	if resp.Total != 1 || resp.Models[0].Name != "GPT-4o" {
		t.Fatalf("search should match names, got %+v", resp.Models)
	}
}
