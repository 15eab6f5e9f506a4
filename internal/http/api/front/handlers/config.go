package handlers

import (
	"net/http"

	internalsettings "github.com/Fusionaimcp4/Fusion/internal/settings"
	"github.com/gin-gonic/gin"
)

// publicConfigResponse is the response payload for public config.
type publicConfigResponse struct {
	SiteName string `json:"site_name"`
}

// GetPublicConfig returns public configuration for the front UI.
func GetPublicConfig(c *gin.Context) {
	siteName, ok := internalsettings.DBConfigString(internalsettings.SiteNameKey)
	if !ok || siteName == "" {
		siteName = internalsettings.DefaultSiteName
	}
	c.JSON(http.StatusOK, publicConfigResponse{SiteName: siteName})
}
