package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:catalog_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Model{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func writeFeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write feed: %v", err)
	}
	return path
}

func TestSyncFromFileUpsertsAndNormalizes(t *testing.T) {
	t.Parallel()
	conn := setupCatalogTestDB(t)

	path := writeFeed(t, `{"data": [
		{"id": "gemini/gemini-1.5-flash", "name": "Gemini 1.5 Flash",
		 "context_length": 1000000,
		 "input_cost_per_million_tokens": 0.35, "output_cost_per_million_tokens": 1.05,
		 "supports_vision": true, "supports_tools": true},
		{"id": "openai/gpt-4o", "name": "GPT-4o", "provider": "openai"}
	]}`)

	result, err := SyncFromFile(context.Background(), conn, path)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.Upserted != 2 {
		t.Fatalf("upserted = %d, want 2", result.Upserted)
	}

	var flash models.Model
	if err := conn.Where("model_id = ?", "google/gemini-1.5-flash").First(&flash).Error; err != nil {
		t.Fatalf("find synced model: %v", err)
	}
	if flash.Provider != "google" {
		t.Errorf("provider = %q, want gemini normalized to google", flash.Provider)
	}
	if flash.InputCostPerMillionTokens != 0.35 || flash.OutputCostPerMillionTokens != 1.05 {
		t.Errorf("rates = %v/%v, want 0.35/1.05", flash.InputCostPerMillionTokens, flash.OutputCostPerMillionTokens)
	}
	if !flash.SupportsVision || !flash.SupportsTools || !flash.SupportsStreaming {
		t.Errorf("capabilities = %v/%v/%v, streaming should default on", flash.SupportsVision, flash.SupportsTools, flash.SupportsStreaming)
	}
}

func TestSyncFromFileStoresNonStreamingModel(t *testing.T) {
	t.Parallel()
	conn := setupCatalogTestDB(t)

	path := writeFeed(t, `[{"id": "openai/dall-e-3", "name": "DALL-E 3", "supports_streaming": false}]`)
	if _, err := SyncFromFile(context.Background(), conn, path); err != nil {
		t.Fatalf("sync: %v", err)
	}

	var row models.Model
	if err := conn.Where("model_id = ?", "openai/dall-e-3").First(&row).Error; err != nil {
		t.Fatalf("find synced model: %v", err)
	}
	if row.SupportsStreaming {
		t.Error("supports_streaming = true, want the feed's false stored on first insert")
	}
}

func TestSyncFromFileDeactivatesMissing(t *testing.T) {
	t.Parallel()
	conn := setupCatalogTestDB(t)

	first := writeFeed(t, `[{"id": "openai/gpt-4o", "name": "GPT-4o"}, {"id": "openai/gpt-4o-mini", "name": "GPT-4o mini"}]`)
	if _, err := SyncFromFile(context.Background(), conn, first); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	second := writeFeed(t, `[{"id": "openai/gpt-4o", "name": "GPT-4o"}]`)
	result, err := SyncFromFile(context.Background(), conn, second)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.Deactivated != 1 {
		t.Fatalf("deactivated = %d, want 1", result.Deactivated)
	}

	var mini models.Model
	if err := conn.Where("model_id = ?", "openai/gpt-4o-mini").First(&mini).Error; err != nil {
		t.Fatalf("find deactivated model: %v", err)
	}
	if mini.IsActive {
		t.Error("model absent from the feed should be inactive")
	}

	var active models.Model
	if err := conn.Where("model_id = ?", "openai/gpt-4o").First(&active).Error; err != nil {
		t.Fatalf("find active model: %v", err)
	}
	if !active.IsActive {
		t.Error("model present in the feed should stay active")
	}
}

func TestSyncFromFileUpdatesExistingRow(t *testing.T) {
	t.Parallel()
	conn := setupCatalogTestDB(t)

	v1 := writeFeed(t, `[{"id": "anthropic/claude-sonnet", "name": "Claude Sonnet", "context_length": 100000}]`)
	if _, err := SyncFromFile(context.Background(), conn, v1); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	v2 := writeFeed(t, `[{"id": "anthropic/claude-sonnet", "name": "Claude Sonnet", "context_length": 200000}]`)
	if _, err := SyncFromFile(context.Background(), conn, v2); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	var count int64
	conn.Model(&models.Model{}).Count(&count)
	if count != 1 {
		t.Fatalf("row count = %d, want 1 (upsert, not duplicate)", count)
	}

	var row models.Model
	if err := conn.Where("model_id = ?", "anthropic/claude-sonnet").First(&row).Error; err != nil {
		t.Fatalf("find row: %v", err)
	}
	if row.ContextLength != 200000 {
		t.Errorf("context_length = %d, want 200000 after resync", row.ContextLength)
	}
}

func TestSyncFromFileRejectsBadFeed(t *testing.T) {
	t.Parallel()
	conn := setupCatalogTestDB(t)

	if _, err := SyncFromFile(context.Background(), conn, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing feed file should error")
	}

	bad := writeFeed(t, `{not json`)
	if _, err := SyncFromFile(context.Background(), conn, bad); err == nil {
		t.Error("invalid JSON should error")
	}

	noArray := writeFeed(t, `{"data": {"id": "x"}}`)
	if _, err := SyncFromFile(context.Background(), conn, noArray); err == nil {
		t.Error("feed without a model array should error")
	}
}
