package controllers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vignan/diaries/config"
	"github.com/vignan/diaries/middleware"
	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/utils"
)

const (
	resetCodeLength   = 6
	resetCodeTTL      = 10 * time.Minute
	resetMailCooldown = time.Minute
)

// AuthController handles registration, login, password reset and the caller's profile.
type AuthController struct {
	db     *gorm.DB
	mailer utils.Mailer
}

// NewAuthController creates an AuthController. Reset codes are delivered through mailer.
func NewAuthController(db *gorm.DB, mailer utils.Mailer) *AuthController {
	if mailer == nil {
		mailer = utils.LogMailer{}
	}
	return &AuthController{db: db, mailer: mailer}
}

// Register creates a local account. Self-registration is limited to the public
// roles; the admin role additionally requires the registration code.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username     string `json:"username" binding:"required,min=3,max=64"`
		Email        string `json:"email" binding:"required,email"`
		Password     string `json:"password" binding:"required,min=6,max=72"`
		Role         string `json:"role"`
		FullName     string `json:"fullName" binding:"max=128"`
		Department   string `json:"department" binding:"max=128"`
		UniversityID string `json:"universityId" binding:"max=64"`
		AdminCode    string `json:"adminCode"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	username := strings.TrimSpace(req.Username)
	if len([]rune(username)) < 3 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username must be at least 3 characters")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	role, allowed := resolveRole(req.Role, req.AdminCode, config.Get().AdminRegCode)
	if !allowed {
		utils.Error(ctx, http.StatusForbidden, 40310, "admin registration not allowed")
		return
	}

	var existing int64
	if err := a.db.Model(&models.User{}).Where("username = ? OR email = ?", username, email).Count(&existing).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to register")
		return
	}
	if existing > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "username or email already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to secure password")
		return
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FullName:     strings.TrimSpace(req.FullName),
		Department:   strings.TrimSpace(req.Department),
		UniversityID: strings.TrimSpace(req.UniversityID),
	}
	if err := a.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(ctx, http.StatusConflict, 40901, "username or email already exists")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to register")
		return
	}

	utils.Sugar.Infow("user registered", "user", user.ID, "role", user.Role)
	a.respondWithToken(ctx, user, nil)
}

// resolveRole maps the requested role onto the persisted one. Unknown or absent
// roles fall back to student; admin needs a non-empty matching code.
func resolveRole(requested, code, adminCode string) (models.Role, bool) {
	role, ok := models.ParseRole(requested)
	if !ok {
		return models.RoleStudent, true
	}
	if role != models.RoleAdmin {
		return role, true
	}
	if adminCode == "" || subtle.ConstantTimeCompare([]byte(code), []byte(adminCode)) != 1 {
		return "", false
	}
	return models.RoleAdmin, true
}

// Login exchanges email and password for a credential.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	err := a.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil && !isNotFound(err) {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to login")
		return
	}
	if err != nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "invalid credentials")
		return
	}
	a.respondWithToken(ctx, user, nil)
}

// ForgotPassword mails a short-lived reset code. The response never reveals
// whether the address is registered.
func (a *AuthController) ForgotPassword(ctx *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid request payload")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	ok := gin.H{"ok": true}

	if !utils.EmailCooldownTrySet(email, resetMailCooldown) {
		utils.Success(ctx, ok)
		return
	}

	var user models.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		if !isNotFound(err) {
			utils.Sugar.Errorw("forgot password lookup failed", "error", err)
		}
		utils.Success(ctx, ok)
		return
	}

	code := utils.GenerateVerificationCode(resetCodeLength)
	hash, err := utils.HashPassword(code)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to issue reset code")
		return
	}
	expires := time.Now().Add(resetCodeTTL)
	err = a.db.Model(&user).Updates(map[string]interface{}{
		"reset_otp_hash":    hash,
		"reset_otp_expires": expires,
	}).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to issue reset code")
		return
	}

	body := "Your password reset code is " + code + ". It expires in 10 minutes."
	if err := a.mailer.Send(user.Email, "Your password reset code", body); err != nil {
		utils.Sugar.Errorw("reset mail failed", "user", user.ID, "error", err)
	}
	utils.Success(ctx, ok)
}

// ResetPassword rotates the password when the emailed code matches and has not expired.
func (a *AuthController) ResetPassword(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		OTP      string `json:"otp" binding:"required,len=6"`
		Password string `json:"password" binding:"required,min=6,max=72"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid request payload")
		return
	}

	var user models.User
	err := a.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil && !isNotFound(err) {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to reset password")
		return
	}
	if err != nil || user.ResetOtpHash == "" || user.ResetOtpExpires == nil ||
		time.Now().After(*user.ResetOtpExpires) || !utils.CheckPassword(user.ResetOtpHash, req.OTP) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid_or_expired")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to reset password")
		return
	}
	err = a.db.Model(&user).Updates(map[string]interface{}{
		"password_hash":     hash,
		"reset_otp_hash":    "",
		"reset_otp_expires": nil,
	}).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to reset password")
		return
	}
	a.respondWithToken(ctx, user, gin.H{"ok": true})
}

// Logout revokes the presented credential until it would have expired anyway.
func (a *AuthController) Logout(ctx *gin.Context) {
	if !middleware.RevokeCurrentToken(ctx) {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "no credential to revoke")
		return
	}
	utils.Success(ctx, gin.H{"ok": true})
}

// Me returns the caller's account.
func (a *AuthController) Me(ctx *gin.Context) {
	user, ok := a.loadCaller(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

// UpdateProfile changes the caller's optional profile fields.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	var req struct {
		FullName     *string `json:"fullName" binding:"omitempty,max=128"`
		Department   *string `json:"department" binding:"omitempty,max=128"`
		UniversityID *string `json:"universityId" binding:"omitempty,max=64"`
		Bio          *string `json:"bio" binding:"omitempty,max=512"`
		AvatarURL    *string `json:"avatarUrl" binding:"omitempty,max=1024"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "invalid request payload")
		return
	}
	user, ok := a.loadCaller(ctx)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.Department != nil {
		updates["department"] = strings.TrimSpace(*req.Department)
	}
	if req.UniversityID != nil {
		updates["university_id"] = strings.TrimSpace(*req.UniversityID)
	}
	if req.Bio != nil {
		updates["bio"] = utils.Sanitize(strings.TrimSpace(*req.Bio))
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*req.AvatarURL)
	}
	if len(updates) > 0 {
		if err := a.db.Model(&user).Updates(updates).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to update profile")
			return
		}
		if err := a.db.First(&user, "id = ?", user.ID).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to load user")
			return
		}
		utils.InvalidateProfile(user.Username)
	}
	utils.Success(ctx, gin.H{"user": user})
}

func (a *AuthController) loadCaller(ctx *gin.Context) (models.User, bool) {
	var user models.User
	ident, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return user, false
	}
	if err := a.db.First(&user, "id = ?", ident.ID).Error; err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return user, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to load user")
		return user, false
	}
	return user, true
}

func (a *AuthController) respondWithToken(ctx *gin.Context, user models.User, extra gin.H) {
	token, err := utils.GenerateToken(user)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50008, "failed to issue token")
		return
	}
	payload := gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		},
	}
	for k, v := range extra {
		payload[k] = v
	}
	utils.Success(ctx, payload)
}
