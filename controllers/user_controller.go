package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/utils"
)

const profileCacheTTL = 5 * time.Minute

// UserController serves public profile lookups.
type UserController struct {
	db *gorm.DB
}

// NewUserController creates a UserController.
func NewUserController(db *gorm.DB) *UserController {
	return &UserController{db: db}
}

// GetPublic returns the public part of a profile by username.
func (u *UserController) GetPublic(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.Param("username"))
	if username == "" {
		utils.Error(ctx, http.StatusBadRequest, 40050, "missing username")
		return
	}
	if utils.ServeCached(ctx, utils.CacheProfilePrefix+username) {
		return
	}

	var user models.User
	err := u.db.Select("id", "username", "role", "bio", "avatar_url").Where("username = ?", username).First(&user).Error
	if err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40411, "not_found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to get user")
		return
	}

	payload := gin.H{"user": gin.H{
		"username":  user.Username,
		"role":      user.Role,
		"bio":       user.Bio,
		"avatarUrl": user.AvatarURL,
	}}
	utils.CacheSuccess(utils.CacheProfilePrefix+username, payload, profileCacheTTL)
	utils.Success(ctx, payload)
}
