package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vignan/diaries/config"
	"github.com/vignan/diaries/middleware"
	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/utils"
)

const (
	slugAttempts   = 3
	toggleAttempts = 3
)

var errToggleConflict = errors.New("post changed concurrently")

// PostController manages the post lifecycle: drafts, publishing, reading and reactions.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

func withAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("Author", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "username", "role")
	})
}

// CreateDraft stores a new draft owned by the caller.
func (p *PostController) CreateDraft(ctx *gin.Context) {
	var req struct {
		Title    string   `json:"title" binding:"required"`
		Markdown string   `json:"markdown"`
		Tags     []string `json:"tags"`
		CoverURL string   `json:"coverUrl"`
		Images   []string `json:"images"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
		return
	}

	ident, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	post := models.Post{
		Title:    title,
		Markdown: req.Markdown,
		Tags:     normalizeTags(req.Tags),
		CoverURL: strings.TrimSpace(req.CoverURL),
		Images:   cleanURLs(req.Images),
		Likes:    datatypes.JSONSlice[string]{},
		Status:   models.StatusDraft,
		AuthorID: ident.ID,
	}

	var err error
	for i := 0; i < slugAttempts; i++ {
		post.ID = ""
		post.Slug = utils.NewSlug(title)
		if err = p.db.Create(&post).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		utils.Sugar.Errorw("create draft failed", "author", ident.ID, "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create draft")
		return
	}

	utils.Created(ctx, gin.H{"post": presentPost(post, true)})
}

// UpdatePost merges the provided fields into a post the caller owns.
// With If-Match the write only lands on the given version, otherwise the last write wins.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req struct {
		Title    *string   `json:"title"`
		Markdown *string   `json:"markdown"`
		Tags     *[]string `json:"tags"`
		CoverURL *string   `json:"coverUrl"`
		Images   *[]string `json:"images"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}
	expected, checkVersion, err := parseIfMatch(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid If-Match header")
		return
	}

	post, ok := p.loadManaged(ctx)
	if !ok {
		return
	}
	if checkVersion && post.Version != expected {
		utils.Error(ctx, http.StatusConflict, 40902, "post has been modified")
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
			return
		}
		updates["title"] = title
	}
	if req.Markdown != nil {
		updates["markdown"] = *req.Markdown
	}
	if req.Tags != nil {
		updates["tags"] = datatypes.JSONSlice[string](normalizeTags(*req.Tags))
	}
	if req.CoverURL != nil {
		updates["cover_url"] = strings.TrimSpace(*req.CoverURL)
	}
	if req.Images != nil {
		updates["images"] = datatypes.JSONSlice[string](cleanURLs(*req.Images))
	}

	if len(updates) > 0 {
		updates["version"] = gorm.Expr("version + ?", 1)
		q := p.db.Model(&models.Post{}).Where("id = ?", post.ID)
		if checkVersion {
			q = q.Where("version = ?", expected)
		}
		res := q.Updates(updates)
		if res.Error != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to update post")
			return
		}
		if res.RowsAffected == 0 {
			utils.Error(ctx, http.StatusConflict, 40902, "post has been modified")
			return
		}
		if post.Status == models.StatusPublished {
			utils.InvalidatePostCaches()
		}
	}

	if err := withAuthor(p.db).First(&post, "id = ?", post.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load post")
		return
	}
	ctx.Header("ETag", fmt.Sprintf("%q", fmt.Sprint(post.Version)))
	utils.Success(ctx, gin.H{"post": presentPost(post, true)})
}

// Publish marks a post published with sanitized html. Publishing again keeps
// the first publication time and refreshes html and cover.
func (p *PostController) Publish(ctx *gin.Context) {
	var req struct {
		HTML     string `json:"html"`
		CoverURL string `json:"coverUrl"`
	}
	// body is optional, including empty chunked bodies
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}

	post, ok := p.loadManaged(ctx)
	if !ok {
		return
	}

	html := req.HTML
	if strings.TrimSpace(html) == "" {
		html = post.HTML
	}
	updates := map[string]interface{}{
		"status":  models.StatusPublished,
		"html":    utils.Sanitize(html),
		"version": gorm.Expr("version + ?", 1),
	}
	if post.PublishedAt == nil {
		updates["published_at"] = time.Now()
	}
	if cover := strings.TrimSpace(req.CoverURL); cover != "" {
		updates["cover_url"] = cover
	}

	if err := p.db.Model(&models.Post{}).Where("id = ?", post.ID).Updates(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to publish post")
		return
	}
	utils.InvalidatePostCaches()

	if err := withAuthor(p.db).First(&post, "id = ?", post.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to load post")
		return
	}
	utils.Success(ctx, gin.H{"post": presentPost(post, true)})
}

// GetBySlug returns a published post and counts the read.
func (p *PostController) GetBySlug(ctx *gin.Context) {
	slug := strings.TrimSpace(ctx.Param("slug"))
	var post models.Post
	err := withAuthor(p.db).Where("slug = ? AND status = ?", slug, models.StatusPublished).First(&post).Error
	if err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load post")
		return
	}

	// single statement so concurrent reads never lose a count
	res := p.db.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		utils.Sugar.Warnw("view count failed", "post", post.ID, "error", res.Error)
	} else {
		post.Views++
	}
	utils.Success(ctx, gin.H{"post": presentPost(post, true)})
}

// GetByID returns a post in any state. Drafts are visible to their author only.
func (p *PostController) GetByID(ctx *gin.Context) {
	id, ok := postIDParam(ctx, "id", 40401)
	if !ok {
		return
	}
	ident, _ := currentUser(ctx)
	var post models.Post
	if err := withAuthor(p.db).First(&post, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load post")
		return
	}
	if post.Status == models.StatusDraft && !post.OwnedBy(ident.ID) {
		utils.Error(ctx, http.StatusForbidden, 40302, "forbidden")
		return
	}
	utils.Success(ctx, gin.H{"post": presentPost(post, true)})
}

// Feed lists published posts newest first, optionally filtered by tag or author id.
func (p *PostController) Feed(ctx *gin.Context) {
	tag := strings.TrimSpace(ctx.Query("tag"))
	author := strings.TrimSpace(ctx.Query("author"))

	cacheKey := fmt.Sprintf("%stag=%s:author=%s", utils.CacheFeedPrefix, tag, author)
	if utils.ServeCached(ctx, cacheKey) {
		return
	}

	q := withAuthor(p.db).Omit("markdown").Where("status = ?", models.StatusPublished)
	if tag != "" {
		q = q.Where("tags LIKE ? ESCAPE '!'", tagPattern(tag))
	}
	if author != "" {
		q = q.Where("author_id = ?", author)
	}

	var posts []models.Post
	if err := q.Order("published_at DESC").Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to list posts")
		return
	}

	payload := gin.H{"items": presentPosts(posts, false)}
	utils.CacheSuccess(cacheKey, payload, feedCacheTTL())
	utils.Success(ctx, payload)
}

func feedCacheTTL() time.Duration {
	return time.Duration(config.Get().FeedCacheSeconds) * time.Second
}

// tagPattern matches one JSON-encoded element of the tags column.
func tagPattern(tag string) string {
	encoded, _ := json.Marshal(tag)
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(string(encoded)) + "%"
}

// MyDrafts lists the caller's drafts, most recently edited first.
func (p *PostController) MyDrafts(ctx *gin.Context) {
	ident, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var drafts []models.Post
	err := p.db.Select("id", "title", "slug", "status", "updated_at").
		Where("author_id = ? AND status = ?", ident.ID, models.StatusDraft).
		Order("updated_at DESC").
		Find(&drafts).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to list drafts")
		return
	}

	items := make([]gin.H, 0, len(drafts))
	for _, d := range drafts {
		items = append(items, gin.H{
			"id":        d.ID,
			"title":     d.Title,
			"slug":      d.Slug,
			"status":    d.Status,
			"updatedAt": d.UpdatedAt,
		})
	}
	utils.Success(ctx, gin.H{"items": items})
}

// Tags returns the sorted distinct tags of published posts.
func (p *PostController) Tags(ctx *gin.Context) {
	if utils.ServeCached(ctx, utils.CacheTagsKey) {
		return
	}

	var rows []models.Post
	if err := p.db.Select("tags").Where("status = ?", models.StatusPublished).Find(&rows).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to list tags")
		return
	}
	var all []string
	for _, r := range rows {
		all = append(all, r.Tags...)
	}
	tags := utils.UniqueStrings(all)
	sort.Strings(tags)

	payload := gin.H{"tags": tags}
	utils.CacheSuccess(utils.CacheTagsKey, payload, feedCacheTTL())
	utils.Success(ctx, payload)
}

// Like toggles the caller's like.
func (p *PostController) Like(ctx *gin.Context) {
	ident, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	id, ok := postIDParam(ctx, "id", 40401)
	if !ok {
		return
	}

	var liked bool
	post, err := p.toggle(ident, id, func(post *models.Post) map[string]interface{} {
		var likes []string
		likes, liked = utils.ToggleMember(post.Likes, ident.ID)
		post.Likes = likes
		return map[string]interface{}{"likes": datatypes.JSONSlice[string](likes)}
	})
	if !p.toggleFailed(ctx, err) {
		utils.Success(ctx, gin.H{"likes": len(post.Likes), "liked": liked})
	}
}

// React toggles the caller's membership in one reaction set.
func (p *PostController) React(ctx *gin.Context) {
	kind, valid := models.ParseReaction(ctx.Param("type"))
	if !valid {
		utils.Error(ctx, http.StatusBadRequest, 40025, "invalid_reaction")
		return
	}
	ident, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	id, ok := postIDParam(ctx, "id", 40401)
	if !ok {
		return
	}

	var toggled bool
	post, err := p.toggle(ident, id, func(post *models.Post) map[string]interface{} {
		reactions := post.Reactions.Data()
		var set []string
		set, toggled = utils.ToggleMember(reactions.Set(kind), ident.ID)
		reactions = reactions.With(kind, set)
		post.Reactions = datatypes.NewJSONType(reactions)
		return map[string]interface{}{"reactions": post.Reactions}
	})
	if !p.toggleFailed(ctx, err) {
		counts := post.Reactions.Data().Counts()
		utils.Success(ctx, gin.H{
			"counts": gin.H{
				"clap": counts[models.ReactionClap],
				"like": counts[models.ReactionLike],
				"fire": counts[models.ReactionFire],
			},
			"toggled": toggled,
		})
	}
}

// toggle applies mutate under a version check, reloading and retrying when
// another writer got there first. Drafts ident cannot see are reported missing.
func (p *PostController) toggle(ident middleware.Identity, id string, mutate func(*models.Post) map[string]interface{}) (models.Post, error) {
	for i := 0; i < toggleAttempts; i++ {
		var post models.Post
		if err := p.db.First(&post, "id = ?", id).Error; err != nil {
			return post, err
		}
		if !visibleTo(ident, &post) {
			return models.Post{}, gorm.ErrRecordNotFound
		}
		updates := mutate(&post)
		updates["version"] = post.Version + 1
		res := p.db.Model(&models.Post{}).Where("id = ? AND version = ?", post.ID, post.Version).Updates(updates)
		if res.Error != nil {
			return post, res.Error
		}
		if res.RowsAffected == 1 {
			post.Version++
			return post, nil
		}
	}
	return models.Post{}, errToggleConflict
}

func (p *PostController) toggleFailed(ctx *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case isNotFound(err):
		utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
	case errors.Is(err, errToggleConflict):
		utils.Error(ctx, http.StatusConflict, 40903, "post is busy, try again")
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to update post")
	}
	return true
}

// DeletePost removes a post and its comments. Owner or administrator only.
func (p *PostController) DeletePost(ctx *gin.Context) {
	ident, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	id, ok := postIDParam(ctx, "id", 40401)
	if !ok {
		return
	}
	var post models.Post
	if err := p.db.First(&post, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load post")
		return
	}
	if !canManage(ident, &post) {
		utils.Error(ctx, http.StatusForbidden, 40301, "you can only delete your own posts")
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to delete post")
		return
	}
	utils.InvalidatePostCaches()
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// loadManaged loads the :id post if the caller may modify it. Posts the caller
// cannot manage are reported as missing.
func (p *PostController) loadManaged(ctx *gin.Context) (models.Post, bool) {
	var post models.Post
	ident, ok := currentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return post, false
	}
	id, ok := postIDParam(ctx, "id", 40401)
	if !ok {
		return post, false
	}
	if err := p.db.First(&post, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return post, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load post")
		return post, false
	}
	if !canManage(ident, &post) {
		utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
		return post, false
	}
	return post, true
}
