package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/Fusionaimcp4/Fusion/internal/security"
	"github.com/Fusionaimcp4/Fusion/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// APIKeyHandler handles API key endpoints for front users.
type APIKeyHandler struct {
	db *gorm.DB
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(db *gorm.DB) *APIKeyHandler {
	return &APIKeyHandler{db: db}
}

// listAPIKeysQuery defines query parameters for listing API keys.
type listAPIKeysQuery struct {
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=20"`
	Search string `form:"search"`
	Status string `form:"status"`
}

// List returns a paginated list of the user's API keys. Full key material is
// never returned here, only a masked form.
func (h *APIKeyHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var q listAPIKeysQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.APIKey{}).Where("user_id = ?", userID)

	if q.Search != "" {
		search := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(name) LIKE ?", search)
	}

	switch q.Status {
	case "active":
		query = query.Where("active = ? AND revoked_at IS NULL", true)
	case "revoked":
		query = query.Where("revoked_at IS NOT NULL")
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	var rows []models.APIKey
	offset := (q.Page - 1) * q.Limit
	if errFind := query.Order("created_at DESC").Offset(offset).Limit(q.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list api keys failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, serializeAPIKey(&row, false))
	}

	c.JSON(http.StatusOK, gin.H{
		"api_keys": out,
		"total":    total,
		"page":     q.Page,
		"limit":    q.Limit,
	})
}

// createAPIKeyRequest defines the request body for key creation.
type createAPIKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Create issues a new API key. This is the only response that carries the
// full key string.
func (h *APIKeyHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createAPIKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	if body.ExpiresAt != nil && body.ExpiresAt.Before(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expires_at must be in the future"})
		return
	}

	token, errToken := security.GenerateAPIKey()
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate key failed"})
		return
	}

	key := models.APIKey{
		UserID:    userID,
		Name:      name,
		APIKey:    token,
		Active:    true,
		ExpiresAt: body.ExpiresAt,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&key).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create api key failed"})
		return
	}

	c.JSON(http.StatusCreated, serializeAPIKey(&key, true))
}

// Revoke disables a key without deleting its usage history.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	key, ok := h.findUserKey(c, userID)
	if !ok {
		return
	}
	if key.RevokedAt != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "api key already revoked"})
		return
	}

	now := time.Now().UTC()
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&key).Updates(map[string]any{
		"active":     false,
		"revoked_at": now,
		"updated_at": now,
	}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke api key failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Regenerate replaces the key material, keeping the row and its metadata.
func (h *APIKeyHandler) Regenerate(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	key, ok := h.findUserKey(c, userID)
	if !ok {
		return
	}
	if key.RevokedAt != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "api key is revoked"})
		return
	}

	token, errToken := security.GenerateAPIKey()
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate key failed"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&key).Updates(map[string]any{
		"api_key":    token,
		"updated_at": time.Now().UTC(),
	}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "regenerate api key failed"})
		return
	}

	key.APIKey = token
	c.JSON(http.StatusOK, serializeAPIKey(&key, true))
}

// Delete removes a key row entirely.
func (h *APIKeyHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	key, ok := h.findUserKey(c, userID)
	if !ok {
		return
	}

	if errDelete := h.db.WithContext(c.Request.Context()).Delete(&key).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete api key failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// findUserKey loads the key from the :id path param, scoped to the user.
// It writes the error response itself when the lookup fails.
func (h *APIKeyHandler) findUserKey(c *gin.Context, userID uint64) (models.APIKey, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid api key id"})
		return models.APIKey{}, false
	}

	var key models.APIKey
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(&key).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "api key not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		}
		return models.APIKey{}, false
	}
	return key, true
}

// serializeAPIKey converts a model to an API response payload.
func serializeAPIKey(row *models.APIKey, includeFullKey bool) gin.H {
	out := gin.H{
		"id":           row.ID,
		"name":         row.Name,
		"key_masked":   util.HideAPIKey(row.APIKey),
		"active":       row.Active,
		"status":       row.Status(),
		"expires_at":   row.ExpiresAt,
		"revoked_at":   row.RevokedAt,
		"last_used_at": row.LastUsedAt,
		"created_at":   row.CreatedAt,
		"updated_at":   row.UpdatedAt,
	}
	if includeFullKey {
		out["key"] = row.APIKey
	}
	return out
}
