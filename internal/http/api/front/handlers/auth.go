package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/config"
	"github.com/Fusionaimcp4/Fusion/internal/email"
	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/Fusionaimcp4/Fusion/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// verificationCodeLength is the digit count of emailed verification codes.
const verificationCodeLength = 6

// AuthHandler handles user authentication endpoints.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
	mailer *email.Mailer
	codes  email.CodeStore
}

// NewAuthHandler constructs an AuthHandler. The mailer may be nil when SMTP
// is not configured, in which case accounts are created already verified.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, mailer *email.Mailer, codes email.CodeStore) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, mailer: mailer, codes: codes}
}

// registerRequest defines the request body for user registration.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new user account and sends a verification code when
// mail delivery is configured.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username"})
		return
	}
	address := strings.ToLower(strings.TrimSpace(body.Email))
	if address == "" || !strings.Contains(address, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if len(password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}

	var exists models.User
	if errCheck := h.db.WithContext(c.Request.Context()).
		Where("username = ? OR email = ?", username, address).
		First(&exists).Error; errCheck == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username or email already exists"})
		return
	} else if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	user := models.User{
		Username:      username,
		Email:         address,
		Password:      hash,
		Role:          models.RoleUser,
		EmailVerified: h.mailer == nil,
	}
	// The balance-0 account row is created with the user so the ledger
	// never has to special-case fresh signups.
	errCreate := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errUser := tx.Create(&user).Error; errUser != nil {
			return errUser
		}
		return tx.Create(&models.CreditAccount{UserID: user.ID, BalanceCents: 0}).Error
	})
	if errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	if h.mailer != nil {
		h.sendVerificationCode(c, address)
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":                    user.ID,
		"username":              user.Username,
		"email":                 user.Email,
		"verification_required": !user.EmailVerified,
	})
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a user and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	password := strings.TrimSpace(body.Password)
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username or password"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("username = ? OR email = ?", username, strings.ToLower(username)).
		First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if user.Disabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "user disabled"})
		return
	}

	if !security.CheckPassword(user.Password, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if !user.EmailVerified {
		c.JSON(http.StatusForbidden, gin.H{"error": "email not verified"})
		return
	}

	h.respondWithUserToken(c, user)
}

// verifyEmailRequest defines the request body for email verification.
type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyEmail consumes an emailed verification code and marks the account
// verified.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var body verifyEmailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	address := strings.ToLower(strings.TrimSpace(body.Email))
	code := strings.TrimSpace(body.Code)
	if address == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email or code"})
		return
	}
	if h.codes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification not available"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", address).First(&user).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if user.EmailVerified {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if errVerify := h.codes.Verify(c.Request.Context(), address, code); errVerify != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&user).Updates(map[string]any{
		"email_verified": true,
		"updated_at":     time.Now().UTC(),
	}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verify email failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// resendVerificationRequest defines the request body for resending codes.
type resendVerificationRequest struct {
	Email string `json:"email"`
}

// ResendVerification issues a fresh verification code. The response does not
// reveal whether the address exists.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var body resendVerificationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	address := strings.ToLower(strings.TrimSpace(body.Email))
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email"})
		return
	}
	if h.mailer == nil || h.codes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification not available"})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", address).First(&user).Error
	if errFind == nil && !user.EmailVerified {
		h.sendVerificationCode(c, address)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// sendVerificationCode stores and emails a fresh code for the address.
func (h *AuthHandler) sendVerificationCode(c *gin.Context, address string) {
	if h.codes == nil {
		return
	}
	code, errCode := security.GenerateVerificationCode(verificationCodeLength)
	if errCode != nil {
		log.WithError(errCode).Warn("auth: generate verification code failed")
		return
	}
	if errPut := h.codes.Put(c.Request.Context(), address, code); errPut != nil {
		log.WithError(errPut).Warn("auth: store verification code failed")
		return
	}
	if errSend := h.mailer.SendVerificationCode(address, code); errSend != nil {
		log.WithError(errSend).WithField("email", address).Warn("auth: send verification email failed")
	}
}

// respondWithUserToken issues a JWT for the user.
func (h *AuthHandler) respondWithUserToken(c *gin.Context, user models.User) {
	token, errToken := security.GenerateToken(h.jwtCfg.Secret, user.ID, user.Username, user.Email, user.Role, h.jwtCfg.Expiry())
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
		"token":    token,
	})
}
