package controllers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vignan/diaries/middleware"
	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/utils"
)

type silentText struct{ utils.MockTextService }

func (silentText) Answer(string, []string) (string, error) { return "", utils.ErrTextUnavailable }

func assistantRouter(db *gorm.DB, svc utils.TextService) *gin.Engine {
	ac := NewAssistantController(db, svc)
	r := gin.New()
	r.POST("/assistant", middleware.AuthOptional(), ac.Ask)
	return r
}

type assistantResp struct {
	Reply       string       `json:"reply"`
	Source      string       `json:"source"`
	Suggestions []suggestion `json:"suggestions"`
}

func ask(t *testing.T, r *gin.Engine, message string) assistantResp {
	t.Helper()
	w := do(t, r, request{method: http.MethodPost, path: "/assistant", body: gin.H{"message": message}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out assistantResp
	decode(t, w, &out)
	return out
}

func TestAssistantGreeting(t *testing.T) {
	r := assistantRouter(newTestDB(t), nil)
	for _, msg := range []string{"hi", "  Hellooo ", "good  morning", "Namaste"} {
		got := ask(t, r, msg)
		assert.Equal(t, "How can I help you?", got.Reply, msg)
		require.Len(t, got.Suggestions, 6)
		assert.Equal(t, suggestion{Title: "Placements", Query: "placements"}, got.Suggestions[0])
	}
	// a greeting inside a longer question is a question
	assert.NotEqual(t, "How can I help you?", ask(t, r, "hi, any placement tips").Reply)
}

func TestAssistantRequiresMessage(t *testing.T) {
	r := assistantRouter(newTestDB(t), nil)
	for _, body := range []interface{}{gin.H{}, gin.H{"message": "   "}, gin.H{"message": 42}} {
		assert.Equal(t, http.StatusBadRequest, do(t, r, request{method: http.MethodPost, path: "/assistant", body: body}).Code)
	}
}

func TestAssistantFindsPublishedPosts(t *testing.T) {
	db := newTestDB(t)
	r := assistantRouter(db, nil)
	author, _ := createUser(t, db, "asha", models.RoleStudent)
	byTitle := createPost(t, db, author, "Placements season diary", models.StatusPublished)
	byTag := createPost(t, db, author, "Interview notes", models.StatusPublished, "placements")
	createPost(t, db, author, "Placement draft", models.StatusDraft, "placements")
	createPost(t, db, author, "Robotics club", models.StatusPublished, "clubs")

	got := ask(t, r, "What about placements?")
	assert.Contains(t, got.Reply, "Placements:")
	assert.Contains(t, got.Reply, "I found 2 related posts.")
	assert.Equal(t, "mock-ai", got.Source)

	ids := make([]string, 0, len(got.Suggestions))
	for _, s := range got.Suggestions {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{byTitle.ID, byTag.ID}, ids)
}

func TestAssistantFallsBackToTrending(t *testing.T) {
	db := newTestDB(t)
	r := assistantRouter(db, silentText{})
	author, _ := createUser(t, db, "asha", models.RoleStudent)
	popular := createPost(t, db, author, "Campus food", models.StatusPublished, "food", "canteen")
	createPost(t, db, author, "Library hours", models.StatusPublished, "food")
	require.NoError(t, db.Model(&popular).Update("views", 40).Error)

	got := ask(t, r, "quantum entanglement")
	assert.Equal(t, "fallback", got.Source)
	assert.Contains(t, got.Reply, "No matching posts yet.")
	require.NotEmpty(t, got.Suggestions)
	// trending posts first, most viewed leading, then tag chips by use
	assert.Equal(t, popular.ID, got.Suggestions[0].ID)
	var chips []suggestion
	for _, s := range got.Suggestions {
		if s.Query != "" {
			chips = append(chips, s)
		}
	}
	assert.Equal(t, []suggestion{{Title: "#food", Query: "food"}, {Title: "#canteen", Query: "canteen"}}, chips)
}

func TestAssistantKeywords(t *testing.T) {
	assert.Equal(t, []string{"tell", "ai", "clubs"}, assistantKeywords("Tell me about AI and the clubs, AI!"))
	assert.Empty(t, assistantKeywords("a ? !"))
	assert.Len(t, assistantKeywords("one two three four five six seven eight nine ten eleven"), 10)
}
