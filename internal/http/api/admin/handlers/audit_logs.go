package handlers

import (
	"net/http"

	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuditHandler serves the admin action audit trail.
type AuditHandler struct {
	db *gorm.DB
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(conn *gorm.DB) *AuditHandler {
	return &AuditHandler{db: conn}
}

// listAuditQuery defines query parameters for listing audit logs.
type listAuditQuery struct {
	Page       int    `form:"page,default=1"`
	Limit      int    `form:"limit,default=50"`
	ActionType string `form:"action_type"`
	ActorID    uint64 `form:"actor_id"`
}

// List returns audit log entries, newest first.
func (h *AuditHandler) List(c *gin.Context) {
	var q listAuditQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 200 {
		q.Limit = 50
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.AdminAuditLog{})
	if q.ActionType != "" {
		query = query.Where("action_type = ?", q.ActionType)
	}
	if q.ActorID != 0 {
		query = query.Where("actor_id = ?", q.ActorID)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	var rows []models.AdminAuditLog
	offset := (q.Page - 1) * q.Limit
	if errFind := query.Order("created_at DESC").Offset(offset).Limit(q.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list audit logs failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":          row.ID,
			"actor_id":    row.ActorID,
			"action_type": row.ActionType,
			"target_type": row.TargetType,
			"target_id":   row.TargetID,
			"details":     row.Details,
			"summary":     row.Summary,
			"created_at":  row.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"audit_logs": out,
		"total":      total,
		"page":       q.Page,
		"limit":      q.Limit,
	})
}
