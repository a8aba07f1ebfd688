package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vignan/diaries/middleware"
	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/utils"
)

// maxTags bounds how many tags a post may carry.
const maxTags = 20

func currentUser(ctx *gin.Context) (middleware.Identity, bool) {
	return middleware.CurrentIdentity(ctx)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// canManage reports whether ident may modify post.
func canManage(ident middleware.Identity, post *models.Post) bool {
	return post.OwnedBy(ident.ID) || ident.Role.Can(models.CapManageAnyPost)
}

// visibleTo reports whether ident may read post. Drafts stay private to
// whoever can manage them.
func visibleTo(ident middleware.Identity, post *models.Post) bool {
	return post.Status == models.StatusPublished || canManage(ident, post)
}

// postIDParam reads a post id path parameter. Malformed ids are answered with
// 404 and code before any query runs.
func postIDParam(ctx *gin.Context, name string, code int) (string, bool) {
	id := ctx.Param(name)
	if !models.ValidID(id) {
		utils.Error(ctx, http.StatusNotFound, code, "post not found")
		return "", false
	}
	return id, true
}

// parseIfMatch reads an optional If-Match version. ok is false when the header is absent.
func parseIfMatch(ctx *gin.Context) (version int64, ok bool, err error) {
	raw := strings.Trim(strings.TrimSpace(ctx.GetHeader("If-Match")), `"`)
	if raw == "" {
		return 0, false, nil
	}
	version, err = strconv.ParseInt(raw, 10, 64)
	return version, err == nil, err
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t != "" {
			out = append(out, t)
		}
	}
	out = utils.UniqueStrings(out)
	if len(out) > maxTags {
		out = out[:maxTags]
	}
	return out
}

func cleanURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, strings.TrimSpace(u))
	}
	return utils.UniqueStrings(out)
}

func authorSummary(u *models.User) gin.H {
	if u == nil {
		return nil
	}
	return gin.H{"id": u.ID, "username": u.Username, "role": u.Role}
}

// presentPost shapes a post for responses. The markdown source is only
// included when withMarkdown is set.
func presentPost(p models.Post, withMarkdown bool) gin.H {
	reactions := p.Reactions.Data()
	out := gin.H{
		"id":          p.ID,
		"title":       p.Title,
		"slug":        p.Slug,
		"html":        p.HTML,
		"tags":        nonNil(p.Tags),
		"status":      p.Status,
		"authorId":    p.AuthorID,
		"coverUrl":    p.CoverURL,
		"images":      nonNil(p.Images),
		"views":       p.Views,
		"likes":       nonNil(p.Likes),
		"reactions":   gin.H{"clap": nonNil(reactions.Clap), "like": nonNil(reactions.Like), "fire": nonNil(reactions.Fire)},
		"publishedAt": p.PublishedAt,
		"version":     p.Version,
		"createdAt":   p.CreatedAt,
		"updatedAt":   p.UpdatedAt,
	}
	if withMarkdown {
		out["markdown"] = p.Markdown
	}
	if p.Author != nil {
		out["author"] = gin.H{"username": p.Author.Username, "role": p.Author.Role}
	}
	return out
}

func presentPosts(posts []models.Post, withMarkdown bool) []gin.H {
	out := make([]gin.H, 0, len(posts))
	for _, p := range posts {
		out = append(out, presentPost(p, withMarkdown))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 20
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}
