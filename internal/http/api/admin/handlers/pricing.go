package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/Fusionaimcp4/Fusion/internal/audit"
	"github.com/Fusionaimcp4/Fusion/internal/settings"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PricingHandler handles the global pricing configuration.
type PricingHandler struct {
	db *gorm.DB
}

// NewPricingHandler constructs a PricingHandler.
func NewPricingHandler(conn *gorm.DB) *PricingHandler {
	return &PricingHandler{db: conn}
}

// Get returns the current pricing configuration from the settings snapshot.
func (h *PricingHandler) Get(c *gin.Context) {
	primePct, primeSet := settings.DBConfigFloat(settings.PricingPrimePercentageKey)
	if !primeSet {
		primePct = settings.DefaultPricingPrimePercentage
	}
	feeCents, feeSet := settings.DBConfigFloat(settings.ClassifierFeeCentsKey)
	if !feeSet {
		feeCents = settings.DefaultClassifierFeeDollars * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"pricing_prime_percentage":         primePct,
		"neuroswitch_classifier_fee_cents": feeCents,
	})
}

// updatePricingRequest defines the request body for pricing updates.
type updatePricingRequest struct {
	PricingPrimePercentage       *float64 `json:"pricing_prime_percentage"`
	NeuroswitchClassifierFeeCent *float64 `json:"neuroswitch_classifier_fee_cents"`
}

// Update persists pricing settings and refreshes the in-memory snapshot, so
// subsequent cost calculations pick the new values up immediately.
func (h *PricingHandler) Update(c *gin.Context) {
	var body updatePricingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.PricingPrimePercentage == nil && body.NeuroswitchClassifierFeeCent == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	changed := map[string]float64{}
	if body.PricingPrimePercentage != nil {
		pct := *body.PricingPrimePercentage
		if pct < 0 || math.IsNaN(pct) || math.IsInf(pct, 0) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pricing_prime_percentage must be a non-negative number"})
			return
		}
		if errUpsert := settings.UpsertSetting(c.Request.Context(), h.db,
			settings.PricingPrimePercentageKey, floatJSON(pct)); errUpsert != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update pricing failed"})
			return
		}
		changed[settings.PricingPrimePercentageKey] = pct
	}
	if body.NeuroswitchClassifierFeeCent != nil {
		cents := *body.NeuroswitchClassifierFeeCent
		if cents < 0 || math.IsNaN(cents) || math.IsInf(cents, 0) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "neuroswitch_classifier_fee_cents must be a non-negative number"})
			return
		}
		if errUpsert := settings.UpsertSetting(c.Request.Context(), h.db,
			settings.ClassifierFeeCentsKey, floatJSON(cents)); errUpsert != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update pricing failed"})
			return
		}
		changed[settings.ClassifierFeeCentsKey] = cents
	}

	actor := getActor(c)
	if errAudit := audit.LogAdminAction(h.db.WithContext(c.Request.Context()), actor.AdminID,
		audit.ActionPricingConfigChange, "setting", 0, changed, "Updated pricing configuration"); errAudit != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit log failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// floatJSON encodes a float as a JSON number payload.
func floatJSON(v float64) json.RawMessage {
	return json.RawMessage(strconv.FormatFloat(v, 'f', -1, 64))
}
