package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/utils"
)

// CollectionController manages the caller's named collections of saved posts.
type CollectionController struct {
	db *gorm.DB
}

// NewCollectionController creates a CollectionController.
func NewCollectionController(db *gorm.DB) *CollectionController {
	return &CollectionController{db: db}
}

// Get returns the caller's collections.
func (c *CollectionController) Get(ctx *gin.Context) {
	user, ok := c.loadCaller(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{
		"collections": user.CollectionMap(),
		"public":      user.VisibilityMap(),
	})
}

// Replace overwrites the caller's collections. Member lists are stored as sets.
func (c *CollectionController) Replace(ctx *gin.Context) {
	var req map[string][]string
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid_payload")
		return
	}
	user, ok := c.loadCaller(ctx)
	if !ok {
		return
	}

	cols := models.Collections{}
	for name, ids := range req {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cols[name] = utils.UniqueStrings(append(cols[name], ids...))
	}

	if err := c.db.Model(&user).Update("collections", datatypes.NewJSONType(cols)).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to save collections")
		return
	}
	utils.Success(ctx, gin.H{"ok": true})
}

// SetVisibility marks one collection public or private.
func (c *CollectionController) SetVisibility(ctx *gin.Context) {
	var req struct {
		Name   string `json:"name"`
		Public *bool  `json:"public"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" || req.Public == nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid_payload")
		return
	}
	user, ok := c.loadCaller(ctx)
	if !ok {
		return
	}

	vis := user.VisibilityMap()
	vis[strings.TrimSpace(req.Name)] = *req.Public
	if err := c.db.Model(&user).Update("collections_public", datatypes.NewJSONType(vis)).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50061, "failed to save visibility")
		return
	}
	utils.Success(ctx, gin.H{"ok": true})
}

// Public returns the published posts of a collection its owner has shared,
// newest publication first. Drafts are never listed, not even the owner's.
func (c *CollectionController) Public(ctx *gin.Context) {
	username := ctx.Param("username")
	name := ctx.Param("name")

	var owner models.User
	if err := c.db.Where("username = ?", username).First(&owner).Error; err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40460, "not_found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to load collection")
		return
	}
	if !owner.VisibilityMap()[name] {
		utils.Error(ctx, http.StatusForbidden, 40360, "not_public")
		return
	}

	posts := []models.Post{}
	if ids := owner.CollectionMap()[name]; len(ids) > 0 {
		err := c.db.Select("id", "title", "slug", "tags", "cover_url", "published_at").
			Where("id IN ? AND status = ?", ids, models.StatusPublished).
			Order("published_at DESC").
			Find(&posts).Error
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50062, "failed to load collection")
			return
		}
	}

	items := make([]gin.H, 0, len(posts))
	for _, p := range posts {
		items = append(items, gin.H{
			"id":          p.ID,
			"title":       p.Title,
			"slug":        p.Slug,
			"tags":        nonNil(p.Tags),
			"coverUrl":    p.CoverURL,
			"publishedAt": p.PublishedAt,
		})
	}
	utils.Success(ctx, gin.H{"owner": owner.Username, "name": name, "posts": items})
}

func (c *CollectionController) loadCaller(ctx *gin.Context) (models.User, bool) {
	var user models.User
	ident, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return user, false
	}
	if err := c.db.First(&user, "id = ?", ident.ID).Error; err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return user, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to load user")
		return user, false
	}
	return user, true
}
