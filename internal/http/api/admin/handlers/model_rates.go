package handlers

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/audit"
	"github.com/Fusionaimcp4/Fusion/internal/billing"
	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ModelRatesHandler handles admin pricing-rate endpoints.
type ModelRatesHandler struct {
	db *gorm.DB
}

// NewModelRatesHandler constructs a ModelRatesHandler.
func NewModelRatesHandler(conn *gorm.DB) *ModelRatesHandler {
	return &ModelRatesHandler{db: conn}
}

// listRatesQuery defines query parameters for listing rates.
type listRatesQuery struct {
	Provider string `form:"provider"`
	Active   *bool  `form:"active"`
}

// List returns stored model rates.
func (h *ModelRatesHandler) List(c *gin.Context) {
	var q listRatesQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.ModelRate{})
	if q.Provider != "" {
		query = query.Where("provider = ?", billing.NormalizeProvider(q.Provider))
	}
	if q.Active != nil {
		query = query.Where("is_active = ?", *q.Active)
	}

	var rows []models.ModelRate
	if errFind := query.Order("provider ASC, model_id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list model rates failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, serializeModelRate(&row))
	}
	c.JSON(http.StatusOK, gin.H{"model_rates": out, "total": len(out)})
}

// rateRequest defines the request body for rate creation and updates.
type rateRequest struct {
	Provider                   string   `json:"provider"`
	ModelID                    string   `json:"model_id"`
	InputCostPerMillionTokens  *float64 `json:"input_cost_per_million_tokens"`
	OutputCostPerMillionTokens *float64 `json:"output_cost_per_million_tokens"`
	IsActive                   *bool    `json:"is_active"`
}

// Create stores a new model rate.
func (h *ModelRatesHandler) Create(c *gin.Context) {
	var body rateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	provider := billing.NormalizeProvider(body.Provider)
	if provider == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing provider"})
		return
	}
	if strings.TrimSpace(body.ModelID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing model_id"})
		return
	}
	modelKey := billing.ModelKey(provider, body.ModelID)

	if body.InputCostPerMillionTokens == nil || body.OutputCostPerMillionTokens == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing rates"})
		return
	}
	if !validRate(*body.InputCostPerMillionTokens) || !validRate(*body.OutputCostPerMillionTokens) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rates must be non-negative numbers"})
		return
	}

	rate := models.ModelRate{
		Provider:                   provider,
		ModelID:                    modelKey,
		InputCostPerMillionTokens:  *body.InputCostPerMillionTokens,
		OutputCostPerMillionTokens: *body.OutputCostPerMillionTokens,
		IsActive:                   true,
	}
	if body.IsActive != nil {
		rate.IsActive = *body.IsActive
	}

	actor := getActor(c)
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&rate).Error; errCreate != nil {
			return errCreate
		}
		return audit.LogAdminAction(tx, actor.AdminID, audit.ActionModelRateChange, "model_rate", rate.ID,
			body, "Created rate for "+modelKey)
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "rate already exists for this model"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create model rate failed"})
		return
	}

	c.JSON(http.StatusCreated, serializeModelRate(&rate))
}

// Update changes rates or the active flag on an existing row.
func (h *ModelRatesHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate id"})
		return
	}

	var body rateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.InputCostPerMillionTokens != nil {
		if !validRate(*body.InputCostPerMillionTokens) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rates must be non-negative numbers"})
			return
		}
		updates["input_cost_per_million_tokens"] = *body.InputCostPerMillionTokens
	}
	if body.OutputCostPerMillionTokens != nil {
		if !validRate(*body.OutputCostPerMillionTokens) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rates must be non-negative numbers"})
			return
		}
		updates["output_cost_per_million_tokens"] = *body.OutputCostPerMillionTokens
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	if len(updates) == 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	actor := getActor(c)
	var rate models.ModelRate
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.First(&rate, id).Error; errFind != nil {
			return errFind
		}
		if errUpdate := tx.Model(&rate).Updates(updates).Error; errUpdate != nil {
			return errUpdate
		}
		return audit.LogAdminAction(tx, actor.AdminID, audit.ActionModelRateChange, "model_rate", id,
			updates, "Updated rate for "+rate.ModelID)
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "model rate not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update model rate failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete deactivates a rate. Rows are kept so past billing stays auditable;
// deactivated models fall back to the default token rate.
func (h *ModelRatesHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate id"})
		return
	}

	actor := getActor(c)
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var rate models.ModelRate
		if errFind := tx.First(&rate, id).Error; errFind != nil {
			return errFind
		}
		if errUpdate := tx.Model(&rate).Updates(map[string]any{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		}).Error; errUpdate != nil {
			return errUpdate
		}
		return audit.LogAdminAction(tx, actor.AdminID, audit.ActionModelRateChange, "model_rate", id,
			map[string]bool{"is_active": false}, "Deactivated rate for "+rate.ModelID)
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "model rate not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deactivate model rate failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// validRate rejects negative, NaN, and infinite rate values.
func validRate(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// serializeModelRate converts a rate row to an API response payload.
func serializeModelRate(rate *models.ModelRate) gin.H {
	return gin.H{
		"id":                             rate.ID,
		"provider":                       rate.Provider,
		"model_id":                       rate.ModelID,
		"input_cost_per_million_tokens":  rate.InputCostPerMillionTokens,
		"output_cost_per_million_tokens": rate.OutputCostPerMillionTokens,
		"is_active":                      rate.IsActive,
		"created_at":                     rate.CreatedAt,
		"updated_at":                     rate.UpdatedAt,
	}
}
