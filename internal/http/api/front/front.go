package front

import (
	"net/http"
	"strings"

	"github.com/Fusionaimcp4/Fusion/internal/config"
	"github.com/Fusionaimcp4/Fusion/internal/email"
	"github.com/Fusionaimcp4/Fusion/internal/http/api/front/handlers"
	"github.com/Fusionaimcp4/Fusion/internal/ledger"
	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/Fusionaimcp4/Fusion/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers public and authenticated front-end routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, mailer *email.Mailer, codes email.CodeStore) {
	if r == nil || db == nil {
		return
	}

	front := r.Group("/v0/front")

	authHandler := handlers.NewAuthHandler(db, jwtCfg, mailer, codes)
	front.POST("/register", authHandler.Register)
	front.POST("/login", authHandler.Login)
	front.POST("/verify-email", authHandler.VerifyEmail)
	front.POST("/verify-email/resend", authHandler.ResendVerification)
	front.GET("/config", handlers.GetPublicConfig)

	modelsHandler := handlers.NewModelsHandler(db)
	front.GET("/models", modelsHandler.List)

	authed := front.Group("")
	authed.Use(userAuthMiddleware(db, jwtCfg))

	profileHandler := handlers.NewProfileHandler(db)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile/password", profileHandler.ChangePassword)

	apiKeyHandler := handlers.NewAPIKeyHandler(db)
	authed.GET("/api-keys", apiKeyHandler.List)
	authed.POST("/api-keys", apiKeyHandler.Create)
	authed.POST("/api-keys/:id/revoke", apiKeyHandler.Revoke)
	authed.POST("/api-keys/:id/regenerate", apiKeyHandler.Regenerate)
	authed.DELETE("/api-keys/:id", apiKeyHandler.Delete)

	creditsHandler := handlers.NewCreditsHandler(ledger.New(db))
	authed.GET("/credits/balance", creditsHandler.Balance)
	authed.GET("/credits/transactions", creditsHandler.Transactions)
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		c.Set("userID", user.ID)
		c.Next()
	}
}
