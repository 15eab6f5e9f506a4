package handlers

import (
	"strconv"

	"github.com/Fusionaimcp4/Fusion/internal/ledger"
	"github.com/gin-gonic/gin"
)

// getActor extracts the acting admin's identity from gin context.
func getActor(c *gin.Context) ledger.Actor {
	actor := ledger.Actor{}
	if val, exists := c.Get("adminID"); exists {
		if id, ok := val.(uint64); ok {
			actor.AdminID = id
		}
	}
	if val, exists := c.Get("adminUsername"); exists {
		if name, ok := val.(string); ok {
			actor.Username = name
		}
	}
	return actor
}

// pathID parses the :id path parameter.
func pathID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}
