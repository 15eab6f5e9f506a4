// Package catalog keeps the browsable model list in sync with the
// NeuroSwitch models feed.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/billing"
	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncResult summarizes one catalog sync run.
type SyncResult struct {
	Upserted    int
	Deactivated int
}

// SyncFromFile reads a models feed file and upserts catalog rows.
//
// The feed is the JSON document NeuroSwitch publishes: either a bare array
// of model objects or an object with a top-level "data" array. Entries are
// matched by their provider/model id; ids missing from the feed are
// deactivated, never deleted.
func SyncFromFile(ctx context.Context, db *gorm.DB, path string) (SyncResult, error) {
	if db == nil {
		return SyncResult{}, errors.New("catalog: nil db")
	}
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return SyncResult{}, fmt.Errorf("catalog: read feed: %w", errRead)
	}
	if !gjson.ValidBytes(data) {
		return SyncResult{}, fmt.Errorf("catalog: feed %s is not valid JSON", path)
	}

	doc := gjson.ParseBytes(data)
	entries := doc
	if doc.IsObject() {
		entries = doc.Get("data")
	}
	if !entries.IsArray() {
		return SyncResult{}, fmt.Errorf("catalog: feed %s has no model array", path)
	}

	result := SyncResult{}
	seen := make([]string, 0, 64)
	now := time.Now().UTC()

	errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries.Array() {
			id := strings.TrimSpace(entry.Get("id").String())
			if id == "" {
				continue
			}

			provider := strings.TrimSpace(entry.Get("provider").String())
			bareID := id
			if idx := strings.Index(id, "/"); idx > 0 {
				if provider == "" {
					provider = id[:idx]
				}
				bareID = id[idx+1:]
			}
			provider = billing.NormalizeProvider(provider)
			modelKey := billing.ModelKey(provider, bareID)

			name := strings.TrimSpace(entry.Get("name").String())
			if name == "" {
				name = id
			}

			row := models.Model{
				Provider:                   provider,
				ModelID:                    modelKey,
				Name:                       name,
				Description:                entry.Get("description").String(),
				ContextLength:              entry.Get("context_length").Int(),
				InputCostPerMillionTokens:  entry.Get("input_cost_per_million_tokens").Float(),
				OutputCostPerMillionTokens: entry.Get("output_cost_per_million_tokens").Float(),
				SupportsVision:             entry.Get("supports_vision").Bool(),
				SupportsTools:              entry.Get("supports_tools").Bool(),
				SupportsStreaming:          !entry.Get("supports_streaming").Exists() || entry.Get("supports_streaming").Bool(),
				IsActive:                   true,
				UpdatedAt:                  now,
			}

			errUpsert := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "model_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"provider", "name", "description", "context_length",
					"input_cost_per_million_tokens", "output_cost_per_million_tokens",
					"supports_vision", "supports_tools", "supports_streaming",
					"is_active", "updated_at",
				}),
			}).Create(&row).Error
			if errUpsert != nil {
				return errUpsert
			}

			seen = append(seen, modelKey)
			result.Upserted++
		}

		if len(seen) > 0 {
			res := tx.Model(&models.Model{}).
				Where("model_id NOT IN ? AND is_active = ?", seen, true).
				Updates(map[string]any{"is_active": false, "updated_at": now})
			if res.Error != nil {
				return res.Error
			}
			result.Deactivated = int(res.RowsAffected)
		}
		return nil
	})
	if errTx != nil {
		return SyncResult{}, errTx
	}

	log.WithFields(log.Fields{
		"upserted":    result.Upserted,
		"deactivated": result.Deactivated,
	}).Info("catalog: model feed synced")
	return result, nil
}

// StartScheduler runs SyncFromFile on the given cron schedule until the
// context is cancelled. An immediate sync runs before the first tick.
func StartScheduler(ctx context.Context, db *gorm.DB, path, spec string) (*cron.Cron, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("catalog: empty feed path")
	}

	if _, errSync := SyncFromFile(ctx, db, path); errSync != nil {
		log.WithError(errSync).Warn("catalog: initial sync failed")
	}

	c := cron.New()
	_, errAdd := c.AddFunc(spec, func() {
		if _, errSync := SyncFromFile(ctx, db, path); errSync != nil {
			log.WithError(errSync).Warn("catalog: scheduled sync failed")
		}
	})
	if errAdd != nil {
		return nil, fmt.Errorf("catalog: bad cron spec %q: %w", spec, errAdd)
	}

	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return c, nil
}
