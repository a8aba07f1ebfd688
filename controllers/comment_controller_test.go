package controllers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vignan/diaries/middleware"
	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/realtime"
)

func commentRouter(db *gorm.DB, hub realtime.Broadcaster) *gin.Engine {
	cc := NewCommentController(db, hub)
	r := gin.New()
	r.GET("/comments/:postId", middleware.AuthOptional(), cc.List)
	r.POST("/comments/:postId", middleware.AuthOptional(), cc.Create)
	return r
}

type commentBody struct {
	ID         string  `json:"id"`
	Post       string  `json:"post"`
	Author     *string `json:"author"`
	AuthorName string  `json:"authorName"`
	Content    string  `json:"content"`
}

func TestCreateCommentAnonymousIsFilteredAndBroadcast(t *testing.T) {
	db := newTestDB(t)
	hub := realtime.NewHub()
	r := commentRouter(db, hub)
	author, _ := createUser(t, db, "asha", models.RoleStudent)
	post := createPost(t, db, author, "Talk", models.StatusPublished)

	sub := realtime.NewSubscriber(4)
	hub.Join(realtime.PostChannel(post.ID), sub)

	w := do(t, r, request{method: http.MethodPost, path: "/comments/" + post.ID, body: gin.H{
		"content": "what the hell <script>x()</script>",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct{ Comment commentBody }
	decode(t, w, &data)
	assert.Equal(t, "Guest", data.Comment.AuthorName)
	assert.Nil(t, data.Comment.Author)
	assert.Equal(t, "what the ****", data.Comment.Content)

	select {
	case frame := <-sub.Messages():
		var msg realtime.Message
		require.NoError(t, json.Unmarshal(frame, &msg))
		assert.Equal(t, realtime.EventCommentNew, msg.Event)
		var pushed commentBody
		require.NoError(t, json.Unmarshal(msg.Data, &pushed))
		assert.Equal(t, data.Comment.ID, pushed.ID)
		assert.Equal(t, post.ID, pushed.Post)
	default:
		t.Fatal("comment was not broadcast")
	}
}

func TestCreateCommentNames(t *testing.T) {
	db := newTestDB(t)
	r := commentRouter(db, realtime.NewHub())
	author, token := createUser(t, db, "asha", models.RoleStudent)
	post := createPost(t, db, author, "Talk", models.StatusPublished)

	w := do(t, r, request{method: http.MethodPost, path: "/comments/" + post.ID, token: token, body: gin.H{"content": "mine", "authorName": "Impostor"}})
	require.Equal(t, http.StatusCreated, w.Code)
	var data struct{ Comment commentBody }
	decode(t, w, &data)
	assert.Equal(t, "asha", data.Comment.AuthorName)
	require.NotNil(t, data.Comment.Author)
	assert.Equal(t, author.ID, *data.Comment.Author)

	w = do(t, r, request{method: http.MethodPost, path: "/comments/" + post.ID, body: gin.H{"content": "hello", "authorName": " Visitor "}})
	decode(t, w, &data)
	assert.Equal(t, "Visitor", data.Comment.AuthorName)

	// a present but invalid credential is rejected, not downgraded to anonymous
	w = do(t, r, request{method: http.MethodPost, path: "/comments/" + post.ID, token: "bogus", body: gin.H{"content": "hello"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateCommentValidation(t *testing.T) {
	db := newTestDB(t)
	r := commentRouter(db, realtime.NewHub())
	author, _ := createUser(t, db, "asha", models.RoleStudent)
	post := createPost(t, db, author, "Talk", models.StatusPublished)

	assert.Equal(t, http.StatusNotFound, do(t, r, request{method: http.MethodPost, path: "/comments/" + models.NewID(), body: gin.H{"content": "hi"}}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, request{method: http.MethodPost, path: "/comments/" + post.ID, body: gin.H{"content": ""}}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, request{method: http.MethodPost, path: "/comments/" + post.ID, body: gin.H{"content": "<script>x()</script>"}}).Code)
}

func TestListCommentsOldestFirst(t *testing.T) {
	db := newTestDB(t)
	r := commentRouter(db, realtime.NewHub())
	author, _ := createUser(t, db, "asha", models.RoleStudent)
	post := createPost(t, db, author, "Talk", models.StatusPublished)
	other := createPost(t, db, author, "Elsewhere", models.StatusPublished)

	for _, content := range []string{"first", "second", "third"} {
		require.Equal(t, http.StatusCreated, do(t, r, request{method: http.MethodPost, path: "/comments/" + post.ID, body: gin.H{"content": content}}).Code)
	}
	require.Equal(t, http.StatusCreated, do(t, r, request{method: http.MethodPost, path: "/comments/" + other.ID, body: gin.H{"content": "unrelated"}}).Code)

	w := do(t, r, request{method: http.MethodGet, path: "/comments/" + post.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var data struct{ Items []commentBody }
	decode(t, w, &data)
	require.Len(t, data.Items, 3)
	assert.Equal(t, "first", data.Items[0].Content)
	assert.Equal(t, "third", data.Items[2].Content)
}

func TestCommentsOnDraftsStayPrivate(t *testing.T) {
	db := newTestDB(t)
	hub := realtime.NewHub()
	r := commentRouter(db, hub)
	author, authorToken := createUser(t, db, "asha", models.RoleStudent)
	_, otherToken := createUser(t, db, "ravi", models.RoleStudent)
	_, adminToken := createUser(t, db, "root", models.RoleAdmin)
	draft := createPost(t, db, author, "Unfinished", models.StatusDraft)

	sub := realtime.NewSubscriber(4)
	hub.Join(realtime.PostChannel(draft.ID), sub)

	for _, token := range []string{"", otherToken} {
		w := do(t, r, request{method: http.MethodGet, path: "/comments/" + draft.ID, token: token})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 40402, decode(t, w, nil).Code)

		w = do(t, r, request{method: http.MethodPost, path: "/comments/" + draft.ID, token: token, body: gin.H{"content": "peek"}})
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	select {
	case <-sub.Messages():
		t.Fatal("comment on a hidden draft was broadcast")
	default:
	}

	require.Equal(t, http.StatusCreated, do(t, r, request{method: http.MethodPost, path: "/comments/" + draft.ID, token: authorToken, body: gin.H{"content": "note to self"}}).Code)
	for _, token := range []string{authorToken, adminToken} {
		w := do(t, r, request{method: http.MethodGet, path: "/comments/" + draft.ID, token: token})
		require.Equal(t, http.StatusOK, w.Code)
		var data struct{ Items []commentBody }
		decode(t, w, &data)
		assert.Len(t, data.Items, 1)
	}

	var count int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCommentsRejectMalformedPostID(t *testing.T) {
	db := newTestDB(t)
	r := commentRouter(db, realtime.NewHub())

	w := do(t, r, request{method: http.MethodGet, path: "/comments/not-an-id"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40402, decode(t, w, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, request{method: http.MethodPost, path: "/comments/12345", body: gin.H{"content": "hi"}}).Code)
}
