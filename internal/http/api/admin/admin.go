package admin

import (
	"net/http"
	"strings"

	"github.com/Fusionaimcp4/Fusion/internal/config"
	"github.com/Fusionaimcp4/Fusion/internal/http/api/admin/handlers"
	"github.com/Fusionaimcp4/Fusion/internal/ledger"
	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/Fusionaimcp4/Fusion/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers the admin API under /v0/admin. All routes
// except login require a JWT whose user holds the admin role at request
// time; demoted or disabled admins lose access immediately.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, catalogFeedPath string) {
	if r == nil || db == nil {
		return
	}

	group := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	usersHandler := handlers.NewUsersHandler(db)
	authed.GET("/users", usersHandler.List)
	authed.POST("/users", usersHandler.Create)
	authed.GET("/users/:id", usersHandler.Get)
	authed.PUT("/users/:id", usersHandler.Update)
	authed.PUT("/users/:id/role", usersHandler.UpdateRole)

	creditsHandler := handlers.NewCreditsHandler(ledger.New(db))
	authed.POST("/users/:id/credits/adjust", creditsHandler.Adjust)
	authed.GET("/users/:id/credits/transactions", creditsHandler.Transactions)

	ratesHandler := handlers.NewModelRatesHandler(db)
	authed.GET("/model-rates", ratesHandler.List)
	authed.POST("/model-rates", ratesHandler.Create)
	authed.PUT("/model-rates/:id", ratesHandler.Update)
	authed.DELETE("/model-rates/:id", ratesHandler.Delete)

	pricingHandler := handlers.NewPricingHandler(db)
	authed.GET("/pricing", pricingHandler.Get)
	authed.PUT("/pricing", pricingHandler.Update)

	catalogHandler := handlers.NewCatalogHandler(db, catalogFeedPath)
	authed.POST("/models/sync", catalogHandler.Sync)

	auditHandler := handlers.NewAuditHandler(db)
	authed.GET("/audit-logs", auditHandler.List)
}

// adminAuthMiddleware validates admin JWTs. The role check runs against the
// database, not the token claim, so revocation takes effect without waiting
// for token expiry.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}
		if user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}

		c.Set("adminID", user.ID)
		c.Set("adminUsername", user.Username)
		c.Next()
	}
}
