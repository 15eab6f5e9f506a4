package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/Fusionaimcp4/Fusion/internal/billing"
	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// ModelsHandler serves the public model catalog.
type ModelsHandler struct {
	db *gorm.DB
}

// NewModelsHandler constructs a ModelsHandler.
func NewModelsHandler(db *gorm.DB) *ModelsHandler {
	return &ModelsHandler{db: db}
}

// listModelsQuery defines query parameters for the catalog listing.
type listModelsQuery struct {
	Provider  string `form:"provider"`
	Search    string `form:"search"`
	Vision    bool   `form:"vision"`
	Tools     bool   `form:"tools"`
	Streaming bool   `form:"streaming"`
	Sort      string `form:"sort,default=name"`
}

// List returns active catalog models, filtered and sorted in memory. The
// catalog is small enough that a single query plus in-process filtering
// beats composing SQL per parameter.
func (h *ModelsHandler) List(c *gin.Context) {
	var q listModelsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	var rows []models.Model
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_active = ?", true).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list models failed"})
		return
	}

	if q.Provider != "" {
		provider := billing.NormalizeProvider(q.Provider)
		rows = lo.Filter(rows, func(m models.Model, _ int) bool {
			return m.Provider == provider
		})
	}
	if q.Search != "" {
		search := strings.ToLower(q.Search)
		rows = lo.Filter(rows, func(m models.Model, _ int) bool {
			return strings.Contains(strings.ToLower(m.Name), search) ||
				strings.Contains(strings.ToLower(m.ModelID), search)
		})
	}
	if q.Vision {
		rows = lo.Filter(rows, func(m models.Model, _ int) bool { return m.SupportsVision })
	}
	if q.Tools {
		rows = lo.Filter(rows, func(m models.Model, _ int) bool { return m.SupportsTools })
	}
	if q.Streaming {
		rows = lo.Filter(rows, func(m models.Model, _ int) bool { return m.SupportsStreaming })
	}

	switch q.Sort {
	case "provider":
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Provider != rows[j].Provider {
				return rows[i].Provider < rows[j].Provider
			}
			return rows[i].Name < rows[j].Name
		})
	case "context":
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].ContextLength > rows[j].ContextLength })
	case "price":
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].InputCostPerMillionTokens < rows[j].InputCostPerMillionTokens
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	}

	providers := lo.Uniq(lo.Map(rows, func(m models.Model, _ int) string { return m.Provider }))
	sort.Strings(providers)

	out := lo.Map(rows, func(m models.Model, _ int) gin.H {
		return gin.H{
			"id":                             m.ModelID,
			"provider":                       m.Provider,
			"name":                           m.Name,
			"description":                    m.Description,
			"context_length":                 m.ContextLength,
			"input_cost_per_million_tokens":  m.InputCostPerMillionTokens,
			"output_cost_per_million_tokens": m.OutputCostPerMillionTokens,
			"supports_vision":                m.SupportsVision,
			"supports_tools":                 m.SupportsTools,
			"supports_streaming":             m.SupportsStreaming,
		}
	})

	c.JSON(http.StatusOK, gin.H{
		"models":    out,
		"providers": providers,
		"total":     len(out),
	})
}
