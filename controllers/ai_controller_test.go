package controllers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vignan/diaries/utils"
)

type failingText struct{ utils.MockTextService }

func (failingText) Rewrite(string, string) (string, error) { return "", utils.ErrTextUnavailable }
func (failingText) Tags(string) ([]string, error)          { return nil, utils.ErrTextUnavailable }

func aiRouter(svc utils.TextService) *gin.Engine {
	ac := NewAIController(svc)
	r := gin.New()
	r.POST("/ai/rewrite", ac.Rewrite)
	r.POST("/ai/tags", ac.Tags)
	r.POST("/ai/summarize", ac.Summarize)
	r.POST("/ai/translate", ac.Translate)
	r.POST("/ai/tweet_thread", ac.TweetThread)
	r.POST("/ai/embeddings", ac.Embeddings)
	return r
}

const article = "Students at the university build projects every semester. " +
	"Projects teach students teamwork and planning. " +
	"The university library supports projects with long opening hours. " +
	"Good planning makes projects succeed."

func TestAIRequiresText(t *testing.T) {
	r := aiRouter(nil)
	for _, path := range []string{"/ai/rewrite", "/ai/tags", "/ai/summarize", "/ai/translate", "/ai/tweet_thread"} {
		w := do(t, r, request{method: http.MethodPost, path: path, body: gin.H{"text": "   "}})
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "text_required", decode(t, w, nil).Message, path)
	}
	w := do(t, r, request{method: http.MethodPost, path: "/ai/embeddings", body: gin.H{"texts": []string{}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAITransforms(t *testing.T) {
	r := aiRouter(nil)

	w := do(t, r, request{method: http.MethodPost, path: "/ai/summarize", body: gin.H{"text": article, "lines": 50}})
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct{ Summary string }
	decode(t, w, &summary)
	assert.LessOrEqual(t, len(strings.Split(summary.Summary, "\n")), 4)

	w = do(t, r, request{method: http.MethodPost, path: "/ai/translate", body: gin.H{"text": "hello"}})
	require.Equal(t, http.StatusOK, w.Code)
	var tr struct{ Text, Lang string }
	decode(t, w, &tr)
	assert.Equal(t, "Hindi", tr.Lang)
	assert.Contains(t, tr.Text, "hello")

	w = do(t, r, request{method: http.MethodPost, path: "/ai/tweet_thread", body: gin.H{"text": article}})
	require.Equal(t, http.StatusOK, w.Code)
	var thread struct{ Tweets []string }
	decode(t, w, &thread)
	assert.GreaterOrEqual(t, len(thread.Tweets), 5)
	for _, tweet := range thread.Tweets {
		assert.Less(t, len([]rune(tweet)), 270)
	}

	w = do(t, r, request{method: http.MethodPost, path: "/ai/embeddings", body: gin.H{"texts": []string{"a", "b"}}})
	require.Equal(t, http.StatusOK, w.Code)
	var emb struct{ Embeddings [][]float64 }
	decode(t, w, &emb)
	assert.Len(t, emb.Embeddings, 2)
}

func TestAIRewriteUnavailable(t *testing.T) {
	r := aiRouter(failingText{})

	w := do(t, r, request{method: http.MethodPost, path: "/ai/rewrite", body: gin.H{"text": "make this better", "intent": "concise"}})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "ai_unavailable", decode(t, w, nil).Message)
}

func TestAITagsFallBackToKeywords(t *testing.T) {
	r := aiRouter(failingText{})

	w := do(t, r, request{method: http.MethodPost, path: "/ai/tags", body: gin.H{"text": article}})
	require.Equal(t, http.StatusOK, w.Code)
	var data struct{ Tags []string }
	decode(t, w, &data)
	require.NotEmpty(t, data.Tags)
	assert.Equal(t, "projects", data.Tags[0])
	assert.LessOrEqual(t, len(data.Tags), 8)
}
