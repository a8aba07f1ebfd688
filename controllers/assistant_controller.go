package controllers

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/utils"
)

const (
	assistantMaxKeywords = 10
	assistantMatchLimit  = 5
	assistantTrendLimit  = 3
	assistantTopTags     = 6
	greetingReply        = "How can I help you?"
)

var (
	greetingRe       = regexp.MustCompile(`^(hi+|hello+|hey+|yo+|hola|namaste|namaskar|good\s*(morning|afternoon|evening)|sup)$`)
	assistantWordRe  = regexp.MustCompile(`[a-z0-9]{2,}`)
	assistantStop    = map[string]bool{"about": true, "the": true, "and": true, "or": true, "for": true, "with": true, "what": true, "is": true, "are": true, "a": true, "an": true, "to": true, "of": true, "in": true, "on": true, "at": true, "by": true, "from": true, "me": true, "my": true, "you": true}
	greetingTopics   = []string{"Placements", "Clubs", "Events", "Research", "MERN", "AI"}
	assistantColumns = []string{"id", "title", "slug", "tags", "cover_url", "published_at", "views"}
)

// AssistantController answers campus questions and points at related posts.
type AssistantController struct {
	db   *gorm.DB
	text utils.TextService
}

// NewAssistantController creates an AssistantController.
func NewAssistantController(db *gorm.DB, svc utils.TextService) *AssistantController {
	if svc == nil {
		svc = utils.MockTextService{}
	}
	return &AssistantController{db: db, text: svc}
}

// suggestion is either a post or a query chip.
type suggestion struct {
	ID       string   `json:"id,omitempty"`
	Title    string   `json:"title"`
	Slug     string   `json:"slug,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	CoverURL string   `json:"coverUrl,omitempty"`
	Query    string   `json:"query,omitempty"`
}

// Ask replies to a free-form message. Greetings get topic chips; anything else
// gets a guide plus matching published posts, or trending ones when nothing matches.
func (a *AssistantController) Ask(ctx *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40090, "message is required")
		return
	}

	if isGreeting(req.Message) {
		chips := make([]suggestion, 0, len(greetingTopics))
		for _, topic := range greetingTopics {
			chips = append(chips, suggestion{Title: topic, Query: strings.ToLower(topic)})
		}
		utils.Success(ctx, gin.H{"reply": greetingReply, "suggestions": chips})
		return
	}

	keywords := assistantKeywords(req.Message)
	posts, err := a.matchPosts(keywords)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50090, "failed to search posts")
		return
	}

	var chips []suggestion
	if len(posts) == 0 {
		// trending fallback is best effort
		if chips, err = a.topTagChips(); err != nil {
			utils.Sugar.Warnw("assistant top tags failed", "error", err)
		}
		if err = a.publishedPosts().Order("views DESC").Limit(assistantTrendLimit).Find(&posts).Error; err != nil {
			utils.Sugar.Warnw("assistant trending posts failed", "error", err)
		}
	}

	source := "mock-ai"
	info, err := a.text.Answer(req.Message, keywords)
	if err != nil || strings.TrimSpace(info) == "" {
		source = "fallback"
		info = "I can help you find posts on placements, clubs, events and research."
	}

	found := "No matching posts yet."
	if n := len(posts); n == 1 {
		found = "I found 1 related post."
	} else if n > 1 {
		found = fmt.Sprintf("I found %d related posts.", n)
	}

	suggestions := make([]suggestion, 0, len(posts)+len(chips))
	for _, p := range posts {
		suggestions = append(suggestions, suggestion{ID: p.ID, Title: p.Title, Slug: p.Slug, Tags: nonNil(p.Tags), CoverURL: p.CoverURL})
	}
	suggestions = append(suggestions, chips...)

	utils.Success(ctx, gin.H{
		"reply":       strings.TrimSpace(info) + "\n\n" + found,
		"suggestions": suggestions,
		"source":      source,
	})
}

func (a *AssistantController) publishedPosts() *gorm.DB {
	return a.db.Model(&models.Post{}).Select(assistantColumns).Where("status = ?", models.StatusPublished)
}

// matchPosts finds the newest published posts whose title mentions a keyword
// or whose tags contain one.
func (a *AssistantController) matchPosts(keywords []string) ([]models.Post, error) {
	q := a.publishedPosts()
	if len(keywords) > 0 {
		cond := a.db.Session(&gorm.Session{NewDB: true})
		for i, kw := range keywords {
			title, tag := "%"+kw+"%", `%"`+kw+`"%`
			if i == 0 {
				cond = cond.Where("LOWER(title) LIKE ?", title).Or("tags LIKE ?", tag)
				continue
			}
			cond = cond.Or("LOWER(title) LIKE ?", title).Or("tags LIKE ?", tag)
		}
		q = q.Where(cond)
	}
	var posts []models.Post
	err := q.Order("published_at DESC").Limit(assistantMatchLimit).Find(&posts).Error
	return posts, err
}

// topTagChips returns the most used tags across published posts.
func (a *AssistantController) topTagChips() ([]suggestion, error) {
	var rows []models.Post
	if err := a.db.Select("tags").Where("status = ?", models.StatusPublished).Find(&rows).Error; err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, r := range rows {
		for _, t := range utils.UniqueStrings(r.Tags) {
			counts[t]++
		}
	}
	tags := make([]string, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > assistantTopTags {
		tags = tags[:assistantTopTags]
	}
	chips := make([]suggestion, 0, len(tags))
	for _, t := range tags {
		chips = append(chips, suggestion{Title: "#" + t, Query: t})
	}
	return chips, nil
}

func isGreeting(s string) bool {
	return greetingRe.MatchString(strings.ToLower(strings.TrimSpace(s)))
}

// assistantKeywords returns up to 10 distinct non-stopwords in order of first use.
func assistantKeywords(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range assistantWordRe.FindAllString(strings.ToLower(s), -1) {
		if assistantStop[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == assistantMaxKeywords {
			break
		}
	}
	return out
}
