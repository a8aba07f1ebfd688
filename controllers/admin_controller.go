package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/utils"
)

const recentPostsLimit = 10

// AdminController provides the administrator console endpoints.
type AdminController struct {
	db *gorm.DB
}

// NewAdminController creates a new AdminController instance.
func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{db: db}
}

// Stats returns user and post counts plus the most recently created posts.
func (a *AdminController) Stats(ctx *gin.Context) {
	var userCount, postCount, commentCount int64

	if err := a.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}
	if err := a.db.Model(&models.Post{}).Count(&postCount).Error; err != nil {
		postCount = 0
	}
	if err := a.db.Model(&models.Comment{}).Count(&commentCount).Error; err != nil {
		commentCount = 0
	}

	var recent []models.Post
	err := withAuthor(a.db).Select("id", "title", "author_id", "created_at", "status").
		Order("created_at DESC").
		Limit(recentPostsLimit).
		Find(&recent).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to load recent posts")
		return
	}

	items := make([]gin.H, 0, len(recent))
	for _, p := range recent {
		items = append(items, gin.H{
			"id":        p.ID,
			"title":     p.Title,
			"status":    p.Status,
			"createdAt": p.CreatedAt,
			"author":    authorSummary(p.Author),
		})
	}

	utils.Success(ctx, gin.H{
		"users":       userCount,
		"posts":       postCount,
		"comments":    commentCount,
		"recentPosts": items,
	})
}

// Users lists accounts, newest first. Password and reset digests never leave the model.
func (a *AdminController) Users(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	if err := a.db.Model(&models.User{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to count users")
		return
	}
	var users []models.User
	if err := a.db.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50072, "failed to retrieve users")
		return
	}

	utils.Success(ctx, gin.H{
		"items":      users,
		"pagination": pagination(page, pageSize, total),
	})
}

// Posts lists posts in every state.
func (a *AdminController) Posts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	if err := a.db.Model(&models.Post{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50073, "failed to count posts")
		return
	}
	var posts []models.Post
	err := withAuthor(a.db).Omit("markdown").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&posts).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50074, "failed to list posts")
		return
	}

	utils.Success(ctx, gin.H{
		"items":      presentPosts(posts, false),
		"pagination": pagination(page, pageSize, total),
	})
}

func pagination(page, pageSize int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}
