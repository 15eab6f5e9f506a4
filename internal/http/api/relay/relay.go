// Package relay is the machine-facing API used by the NeuroSwitch gateway.
// Requests authenticate with a user API key, not a JWT.
package relay

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/billing"
	"github.com/Fusionaimcp4/Fusion/internal/ledger"
	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RegisterRelayRoutes registers gateway routes under /v0/relay.
func RegisterRelayRoutes(r *gin.Engine, db *gorm.DB) {
	if r == nil || db == nil {
		return
	}

	group := r.Group("/v0/relay")
	group.Use(apiKeyAuthMiddleware(db))

	handler := NewUsageHandler(db)
	group.POST("/usage", handler.Report)
	group.GET("/cost-estimate", handler.Estimate)
}

// apiKeyAuthMiddleware authenticates gateway requests by API key. Keys are
// accepted as a Bearer token or an X-API-Key header.
func apiKeyAuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractAPIKey(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
			return
		}

		var key models.APIKey
		errFind := db.WithContext(c.Request.Context()).
			Preload("User").
			Where("api_key = ? AND active = ? AND revoked_at IS NULL", token, true).
			First(&key).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}

		if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "api key expired"})
			return
		}
		if key.User == nil || key.User.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		now := time.Now().UTC()
		if errTouch := db.WithContext(c.Request.Context()).Model(&models.APIKey{}).
			Where("id = ?", key.ID).
			Update("last_used_at", &now).Error; errTouch != nil {
			log.WithError(errTouch).Warn("relay: touch last_used_at failed")
		}

		c.Set("apiKeyID", key.ID)
		c.Set("userID", key.UserID)
		c.Next()
	}
}

// extractAPIKey pulls the key from the Authorization or X-API-Key header.
func extractAPIKey(r *http.Request) string {
	val := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(val, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(val, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// UsageHandler meters routed requests reported by the gateway.
type UsageHandler struct {
	db       *gorm.DB
	recorder *ledger.Recorder
	calc     *billing.Calculator
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(db *gorm.DB) *UsageHandler {
	return &UsageHandler{db: db, recorder: ledger.NewRecorder(db), calc: billing.NewCalculator(db)}
}

// usageReportRequest defines the request body for usage reports.
type usageReportRequest struct {
	Provider     string     `json:"provider"`
	Model        string     `json:"model"`
	InputTokens  int64      `json:"input_tokens"`
	OutputTokens int64      `json:"output_tokens"`
	RequestedAt  *time.Time `json:"requested_at"`
	Failed       bool       `json:"failed"`
}

// Report records one routed request and charges the key owner's balance.
func (h *UsageHandler) Report(c *gin.Context) {
	var body usageReportRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Model) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing model"})
		return
	}

	userID, _ := c.Get("userID")
	uid, ok := userID.(uint64)
	if !ok || uid == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rec := ledger.UsageRecord{
		UserID:       uid,
		Provider:     body.Provider,
		Model:        body.Model,
		InputTokens:  body.InputTokens,
		OutputTokens: body.OutputTokens,
		Failed:       body.Failed,
	}
	if keyID, exists := c.Get("apiKeyID"); exists {
		if id, okKey := keyID.(uint64); okKey {
			rec.APIKeyID = &id
		}
	}
	if body.RequestedAt != nil {
		rec.RequestedAt = *body.RequestedAt
	}

	if errRecord := h.recorder.RecordUsage(c.Request.Context(), rec); errRecord != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record usage failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Estimate prices a hypothetical request without recording anything. The
// gateway uses it for routing decisions.
func (h *UsageHandler) Estimate(c *gin.Context) {
	provider := c.Query("provider")
	model := c.Query("model")
	if strings.TrimSpace(model) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing model"})
		return
	}

	inputTokens := parseTokens(c.Query("input_tokens"))
	outputTokens := parseTokens(c.Query("output_tokens"))

	costMicros := h.calc.ComputeProviderCost(c.Request.Context(), provider, model, inputTokens, outputTokens)
	feeMicros := billing.ClassifierFeeMicros()

	c.JSON(http.StatusOK, gin.H{
		"cost_micros":           costMicros,
		"classifier_fee_micros": feeMicros,
		"total_micros":          costMicros + feeMicros,
	})
}

// parseTokens parses a token count query parameter, treating junk as zero.
func parseTokens(raw string) int64 {
	n, errParse := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if errParse != nil || n < 0 {
		return 0
	}
	return n
}
