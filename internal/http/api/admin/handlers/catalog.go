package handlers

import (
	"net/http"

	"github.com/Fusionaimcp4/Fusion/internal/catalog"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CatalogHandler triggers on-demand catalog syncs.
type CatalogHandler struct {
	db       *gorm.DB
	feedPath string
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(conn *gorm.DB, feedPath string) *CatalogHandler {
	return &CatalogHandler{db: conn, feedPath: feedPath}
}

// Sync runs a catalog sync from the configured feed file immediately,
// outside the cron schedule.
func (h *CatalogHandler) Sync(c *gin.Context) {
	if h.feedPath == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model feed not configured"})
		return
	}

	result, errSync := catalog.SyncFromFile(c.Request.Context(), h.db, h.feedPath)
	if errSync != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog sync failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upserted":    result.Upserted,
		"deactivated": result.Deactivated,
	})
}
