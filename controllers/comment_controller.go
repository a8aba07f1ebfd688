package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/realtime"
	"github.com/vignan/diaries/utils"
)

const guestName = "Guest"

// CommentController lists and creates comments and fans new ones out to live readers.
type CommentController struct {
	db  *gorm.DB
	hub realtime.Broadcaster
}

// NewCommentController creates a CommentController publishing through hub.
func NewCommentController(db *gorm.DB, hub realtime.Broadcaster) *CommentController {
	return &CommentController{db: db, hub: hub}
}

// List returns the comments of a post, oldest first.
func (c *CommentController) List(ctx *gin.Context) {
	post, ok := c.loadVisible(ctx)
	if !ok {
		return
	}
	var comments []models.Comment
	err := c.db.Where("post_id = ?", post.ID).Order("created_at ASC").Find(&comments).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to list comments")
		return
	}
	utils.Success(ctx, gin.H{"items": comments})
}

// Create stores a filtered, sanitized comment and announces it on the post's channel.
// Anonymous callers may comment under a chosen name.
func (c *CommentController) Create(ctx *gin.Context) {
	var req struct {
		Content    string `json:"content" binding:"required"`
		AuthorName string `json:"authorName"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	content := utils.CleanComment(req.Content)
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40041, "content cannot be empty")
		return
	}

	post, ok := c.loadVisible(ctx)
	if !ok {
		return
	}

	comment := models.Comment{
		PostID:     post.ID,
		AuthorName: guestName,
		Content:    content,
	}
	if ident, ok := currentUser(ctx); ok {
		id := ident.ID
		comment.AuthorID = &id
		comment.AuthorName = ident.Username
	} else if name := strings.TrimSpace(req.AuthorName); name != "" {
		comment.AuthorName = utils.Sanitize(truncateRunes(name, 64))
	}

	if err := c.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to create comment")
		return
	}

	if c.hub != nil {
		n := c.hub.Publish(realtime.PostChannel(post.ID), realtime.EventCommentNew, comment)
		utils.Sugar.Debugw("comment broadcast", "post", post.ID, "delivered", n)
	}
	utils.Created(ctx, gin.H{"comment": comment})
}

// loadVisible loads the :postId post when the caller may read it. Drafts of
// other authors are reported as missing.
func (c *CommentController) loadVisible(ctx *gin.Context) (models.Post, bool) {
	var post models.Post
	id, ok := postIDParam(ctx, "postId", 40402)
	if !ok {
		return post, false
	}
	if err := c.db.Select("id", "status", "author_id").First(&post, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
			return post, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load post")
		return post, false
	}
	ident, _ := currentUser(ctx)
	if !visibleTo(ident, &post) {
		utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
		return post, false
	}
	return post, true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
