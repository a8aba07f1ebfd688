package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vignan/diaries/utils"
)

const (
	defaultSummaryLines = 3
	maxSummaryLines     = 8
	maxEmbedTexts       = 32
	defaultTargetLang   = "Hindi"
	fallbackTagCount    = 8
	maxTagSuggestions   = 10
)

// AIController exposes the writing assistant.
type AIController struct {
	text utils.TextService
}

// NewAIController creates an AIController backed by svc.
func NewAIController(svc utils.TextService) *AIController {
	if svc == nil {
		svc = utils.MockTextService{}
	}
	return &AIController{text: svc}
}

type textRequest struct {
	Text       string `json:"text"`
	Intent     string `json:"intent"`
	Lines      int    `json:"lines"`
	TargetLang string `json:"targetLang"`
}

// bindText reads the request and rejects blank text.
func bindText(ctx *gin.Context) (textRequest, bool) {
	var req textRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40080, "text_required")
		return req, false
	}
	return req, true
}

func unavailable(ctx *gin.Context, op string, err error) {
	utils.Sugar.Warnw("text service failed", "op", op, "error", err)
	utils.Error(ctx, http.StatusBadGateway, 50280, "ai_unavailable")
}

// Rewrite improves, shortens or simplifies text.
func (a *AIController) Rewrite(ctx *gin.Context) {
	req, ok := bindText(ctx)
	if !ok {
		return
	}
	intent := req.Intent
	switch intent {
	case utils.IntentImprove, utils.IntentConcise, utils.IntentExplain:
	default:
		intent = utils.IntentImprove
	}
	out, err := a.text.Rewrite(req.Text, intent)
	if err != nil || out == "" {
		unavailable(ctx, "rewrite", err)
		return
	}
	utils.Success(ctx, gin.H{"text": out, "provider": "mock-ai"})
}

// Tags suggests tags, falling back to keyword frequency.
func (a *AIController) Tags(ctx *gin.Context) {
	req, ok := bindText(ctx)
	if !ok {
		return
	}
	tags, err := a.text.Tags(req.Text)
	if err != nil || len(tags) == 0 {
		tags = utils.TopKeywords(req.Text, fallbackTagCount)
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimPrefix(strings.TrimSpace(t), "#"); t != "" {
			out = append(out, t)
		}
	}
	if len(out) > maxTagSuggestions {
		out = out[:maxTagSuggestions]
	}
	utils.Success(ctx, gin.H{"tags": out})
}

// Summarize condenses text into 1 to 8 bullet lines.
func (a *AIController) Summarize(ctx *gin.Context) {
	req, ok := bindText(ctx)
	if !ok {
		return
	}
	lines := req.Lines
	if lines <= 0 {
		lines = defaultSummaryLines
	}
	if lines > maxSummaryLines {
		lines = maxSummaryLines
	}
	out, err := a.text.Summarize(req.Text, lines)
	if err != nil || strings.TrimSpace(out) == "" {
		unavailable(ctx, "summarize", err)
		return
	}
	utils.Success(ctx, gin.H{"summary": strings.TrimSpace(out)})
}

// Translate renders text in the target language.
func (a *AIController) Translate(ctx *gin.Context) {
	req, ok := bindText(ctx)
	if !ok {
		return
	}
	lang := strings.TrimSpace(req.TargetLang)
	if lang == "" {
		lang = defaultTargetLang
	}
	out, err := a.text.Translate(req.Text, lang)
	if err != nil || out == "" {
		unavailable(ctx, "translate", err)
		return
	}
	utils.Success(ctx, gin.H{"text": strings.TrimSpace(out), "lang": lang})
}

// TweetThread splits text into a numbered thread.
func (a *AIController) TweetThread(ctx *gin.Context) {
	req, ok := bindText(ctx)
	if !ok {
		return
	}
	tweets, err := a.text.TweetThread(req.Text)
	if err != nil || len(tweets) == 0 {
		unavailable(ctx, "tweet_thread", err)
		return
	}
	utils.Success(ctx, gin.H{"tweets": tweets})
}

// Embeddings returns one vector per input text.
func (a *AIController) Embeddings(ctx *gin.Context) {
	var req struct {
		Texts []string `json:"texts"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || len(req.Texts) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40081, "texts_required")
		return
	}
	if len(req.Texts) > maxEmbedTexts {
		utils.Error(ctx, http.StatusBadRequest, 40082, "too many texts")
		return
	}
	vectors, err := a.text.Embed(req.Texts)
	if err != nil || len(vectors) != len(req.Texts) {
		unavailable(ctx, "embeddings", err)
		return
	}
	utils.Success(ctx, gin.H{"embeddings": vectors})
}
