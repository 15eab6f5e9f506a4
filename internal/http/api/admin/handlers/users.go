package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Fusionaimcp4/Fusion/internal/audit"
	"github.com/Fusionaimcp4/Fusion/internal/db"
	"github.com/Fusionaimcp4/Fusion/internal/models"
	"github.com/Fusionaimcp4/Fusion/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UsersHandler handles admin user management endpoints.
type UsersHandler struct {
	db *gorm.DB
}

// NewUsersHandler constructs a UsersHandler.
func NewUsersHandler(conn *gorm.DB) *UsersHandler {
	return &UsersHandler{db: conn}
}

// listUsersQuery defines query parameters for listing users.
type listUsersQuery struct {
	Page   int    `form:"page,default=1"`
	Limit  int    `form:"limit,default=20"`
	Search string `form:"search"`
	Role   string `form:"role"`
}

// List returns a paginated user list with credit balances.
func (h *UsersHandler) List(c *gin.Context) {
	var q listUsersQuery
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

	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})

	if q.Search != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+q.Search+"%")
		usernameExpr := db.CaseInsensitiveLikeExpr(h.db, "username")
		emailExpr := db.CaseInsensitiveLikeExpr(h.db, "email")
		query = query.Where(usernameExpr+" OR "+emailExpr, pattern, pattern)
	}
	if q.Role != "" {
		if !models.ValidRole(q.Role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		query = query.Where("role = ?", q.Role)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	var rows []models.User
	offset := (q.Page - 1) * q.Limit
	if errFind := query.Preload("CreditAccount").
		Order("id ASC").Offset(offset).Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, serializeUser(&row))
	}

	c.JSON(http.StatusOK, gin.H{
		"users": out,
		"total": total,
		"page":  q.Page,
		"limit": q.Limit,
	})
}

// createUserRequest defines the request body for admin user creation.
type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Create provisions a user account. Admin-created accounts skip email
// verification; the balance-0 credit account is created in the same
// transaction.
func (h *UsersHandler) Create(c *gin.Context) {
	var body createUserRequest
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
	if len(strings.TrimSpace(body.Password)) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}
	role := models.RoleUser
	if strings.TrimSpace(body.Role) != "" {
		role = strings.TrimSpace(body.Role)
		if !models.ValidRole(role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
	}

	var exists models.User
	errCheck := h.db.WithContext(c.Request.Context()).
		Where("username = ? OR email = ?", username, address).
		First(&exists).Error
	if errCheck == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username or email already exists"})
		return
	} else if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	hash, errHash := security.HashPassword(strings.TrimSpace(body.Password))
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	user := models.User{
		Username:      username,
		Email:         address,
		Password:      hash,
		Role:          role,
		EmailVerified: true,
	}

	actor := getActor(c)
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errUser := tx.Create(&user).Error; errUser != nil {
			return errUser
		}
		if errAccount := tx.Create(&models.CreditAccount{UserID: user.ID, BalanceCents: 0}).Error; errAccount != nil {
			return errAccount
		}
		return audit.LogAdminAction(tx, actor.AdminID, audit.ActionUserCreate, "user", user.ID,
			map[string]string{"username": username, "email": address, "role": role},
			"Created user "+username)
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "username or email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	user.CreditAccount = &models.CreditAccount{UserID: user.ID}
	c.JSON(http.StatusCreated, serializeUser(&user))
}

// Get returns one user with balance.
func (h *UsersHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("CreditAccount").
		First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, serializeUser(&user))
}

// updateUserRequest defines the request body for user updates.
type updateUserRequest struct {
	Email    *string `json:"email"`
	Disabled *bool   `json:"disabled"`
}

// Update changes a user's email or disabled flag.
func (h *UsersHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Email == nil && body.Disabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	actor := getActor(c)
	if body.Disabled != nil && *body.Disabled && id == actor.AdminID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot disable your own account"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Email != nil {
		address := strings.ToLower(strings.TrimSpace(*body.Email))
		if address == "" || !strings.Contains(address, "@") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
			return
		}
		updates["email"] = address
	}
	if body.Disabled != nil {
		updates["disabled"] = *body.Disabled
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.First(&user, id).Error; errFind != nil {
			return errFind
		}
		if errUpdate := tx.Model(&user).Updates(updates).Error; errUpdate != nil {
			return errUpdate
		}
		return audit.LogAdminAction(tx, actor.AdminID, audit.ActionUserUpdate, "user", id,
			updates, "Updated user "+user.Username)
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// updateRoleRequest defines the request body for role changes.
type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole changes a user's role. The last remaining admin cannot be
// demoted, and admins cannot demote themselves.
func (h *UsersHandler) UpdateRole(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var body updateRoleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	role := strings.TrimSpace(body.Role)
	if !models.ValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	actor := getActor(c)
	if id == actor.AdminID && role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot demote your own account"})
		return
	}

	var statusCode int
	var statusErr string
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.First(&user, id).Error; errFind != nil {
			return errFind
		}
		if user.Role == role {
			return nil
		}

		if user.Role == models.RoleAdmin && role != models.RoleAdmin {
			var adminCount int64
			if errCount := tx.Model(&models.User{}).
				Where("role = ? AND disabled = ?", models.RoleAdmin, false).
				Count(&adminCount).Error; errCount != nil {
				return errCount
			}
			if adminCount <= 1 {
				statusCode = http.StatusConflict
				statusErr = "cannot demote the last admin"
				return errLastAdmin
			}
		}

		previousRole := user.Role
		if errUpdate := tx.Model(&user).Updates(map[string]any{
			"role":       role,
			"updated_at": time.Now().UTC(),
		}).Error; errUpdate != nil {
			return errUpdate
		}

		return audit.LogAdminAction(tx, actor.AdminID, audit.ActionUserRoleUpdate, "user", id,
			map[string]string{"previous_role": previousRole, "new_role": role},
			"Changed role of "+user.Username+" from "+previousRole+" to "+role)
	})
	if errTx != nil {
		switch {
		case errors.Is(errTx, errLastAdmin):
			c.JSON(statusCode, gin.H{"error": statusErr})
		case errors.Is(errTx, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update role failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// errLastAdmin aborts the role-change transaction when demotion would leave
// no active admin.
var errLastAdmin = errors.New("last admin")

// serializeUser converts a user row to an API response payload.
func serializeUser(user *models.User) gin.H {
	var balanceCents int64
	if user.CreditAccount != nil {
		balanceCents = user.CreditAccount.BalanceCents
	}
	return gin.H{
		"id":             user.ID,
		"username":       user.Username,
		"email":          user.Email,
		"role":           user.Role,
		"email_verified": user.EmailVerified,
		"disabled":       user.Disabled,
		"balance_cents":  balanceCents,
		"created_at":     user.CreatedAt,
		"updated_at":     user.UpdatedAt,
	}
}
