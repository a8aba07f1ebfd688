package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vignan/diaries/config"
	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/realtime"
	"github.com/vignan/diaries/utils"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "diaries-routes")
	if err != nil {
		panic(err)
	}
	config.Override(config.AppConfig{
		JWTSecret:    "routes-test-secret",
		AdminRegCode: "open-sesame",
		GinMode:      "test",
		GinPath:      filepath.Join(dir, "gin.log"),
	})
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type app struct {
	t   *testing.T
	h   *gin.Engine
	hub *realtime.Hub
}

func newApp(t *testing.T) *app {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := config.OpenDatabase("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name), "silent")
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, &models.User{}, &models.Post{}, &models.Comment{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	hub := realtime.NewHub()
	t.Cleanup(hub.Close)
	return &app{t: t, h: SetupRouter(db, hub, utils.LogMailer{}), hub: hub}
}

// call performs a request and decodes the envelope's data into out.
func (a *app) call(method, path, token string, body interface{}, out interface{}, headers ...string) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.h.ServeHTTP(w, req)

	if out != nil && w.Code < 300 {
		var env utils.JSONResponse
		env.Data = out
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

func (a *app) register(username, role, adminCode string) (int, session) {
	var s session
	code := a.call(http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username, "email": username + "@vignan.test", "password": "secret123",
		"role": role, "adminCode": adminCode,
	}, &s)
	return code, s
}

type post struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Status      string     `json:"status"`
	Title       string     `json:"title"`
	Markdown    string     `json:"markdown"`
	Views       int64      `json:"views"`
	Version     int64      `json:"version"`
	PublishedAt *time.Time `json:"publishedAt"`
}

func TestEndToEndPublishFlow(t *testing.T) {
	a := newApp(t)

	code, author := a.register("asha", "student", "")
	require.Equal(t, http.StatusOK, code)
	_, reader := a.register("ravi", "faculty", "")

	var created struct{ Post post }
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/posts/drafts", author.Token, gin.H{"title": "Hello"}, &created))
	assert.Regexp(t, `^hello-[a-z0-9]{4}$`, created.Post.Slug)
	assert.Equal(t, "draft", created.Post.Status)

	// drafts stay private
	var feed struct{ Items []post }
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/posts", "", nil, &feed))
	assert.Empty(t, feed.Items)
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodGet, "/api/posts/id/"+created.Post.ID, reader.Token, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.call(http.MethodGet, "/api/posts/slug/"+created.Post.Slug, "", nil, nil))

	var published struct{ Post post }
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/posts/"+created.Post.ID+"/publish", author.Token,
		gin.H{"html": "<p>Hello world</p>"}, &published))

	var read struct{ Post post }
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/posts/slug/"+created.Post.Slug, "", nil, &read))
	assert.Equal(t, "published", read.Post.Status)
	assert.EqualValues(t, 1, read.Post.Views)

	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/posts", "", nil, &feed))
	require.Len(t, feed.Items, 1)
	assert.Empty(t, feed.Items[0].Markdown)

	// publishing again is an idempotent success
	var again struct{ Post post }
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/posts/"+created.Post.ID+"/publish", author.Token, nil, &again))
	require.NotNil(t, again.Post.PublishedAt)
	assert.True(t, published.Post.PublishedAt.Equal(*again.Post.PublishedAt))
}

func TestRoleGates(t *testing.T) {
	a := newApp(t)

	assert.Equal(t, http.StatusForbidden, func() int { c, _ := a.register("mallory", "admin", "guess"); return c }())
	code, admin := a.register("root", "admin", "open-sesame")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "admin", admin.User.Role)
	_, student := a.register("asha", "", "")
	assert.Equal(t, "student", student.User.Role)

	assert.Equal(t, http.StatusForbidden, a.call(http.MethodGet, "/api/admin/stats", student.Token, nil, nil))
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/admin/stats", admin.Token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.call(http.MethodPost, "/api/posts/drafts", "", gin.H{"title": "x"}, nil))

	// administrators write posts too
	assert.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/posts/drafts", admin.Token, gin.H{"title": "Notice"}, nil))
}

func TestTwoTabsLastWriteWins(t *testing.T) {
	a := newApp(t)
	_, author := a.register("asha", "student", "")

	var created struct{ Post post }
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/posts/drafts", author.Token, gin.H{"title": "Shared"}, &created))
	path := "/api/posts/" + created.Post.ID

	require.Equal(t, http.StatusOK, a.call(http.MethodPut, path, author.Token, gin.H{"markdown": "tab A"}, nil))
	require.Equal(t, http.StatusOK, a.call(http.MethodPut, path, author.Token, gin.H{"markdown": "tab B"}, nil))

	var got struct{ Post post }
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/posts/id/"+created.Post.ID, author.Token, nil, &got))
	assert.Equal(t, "tab B", got.Post.Markdown)

	// a tab that opts into version checks is told about the newer save
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPut, path, author.Token, gin.H{"markdown": "tab A again"}, nil, "If-Match", "1"))
}

func TestLikeAndCollections(t *testing.T) {
	a := newApp(t)
	_, author := a.register("asha", "student", "")
	_, reader := a.register("ravi", "student", "")

	var created struct{ Post post }
	a.call(http.MethodPost, "/api/posts/drafts", author.Token, gin.H{"title": "Saved"}, &created)
	a.call(http.MethodPost, "/api/posts/"+created.Post.ID+"/publish", author.Token, nil, nil)

	var like struct {
		Likes int  `json:"likes"`
		Liked bool `json:"liked"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/posts/"+created.Post.ID+"/like", reader.Token, nil, &like))
	assert.True(t, like.Liked)
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/posts/"+created.Post.ID+"/like", reader.Token, nil, &like))
	assert.False(t, like.Liked)
	assert.Zero(t, like.Likes)

	cols := map[string][]string{"Later": {created.Post.ID}}
	require.Equal(t, http.StatusOK, a.call(http.MethodPut, "/api/collections", reader.Token, cols, nil))
	var got struct {
		Collections map[string][]string `json:"collections"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/collections", reader.Token, nil, &got))
	assert.Equal(t, cols, got.Collections)

	require.Equal(t, http.StatusOK, a.call(http.MethodPut, "/api/collections/visibility", reader.Token, gin.H{"name": "Later", "public": true}, nil))
	var shared struct {
		Owner string `json:"owner"`
		Posts []post `json:"posts"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/collections/public/ravi/Later", "", nil, &shared))
	assert.Equal(t, "ravi", shared.Owner)
	assert.Len(t, shared.Posts, 1)
}

func TestCommentReachesWebSocketReaders(t *testing.T) {
	a := newApp(t)
	_, author := a.register("asha", "student", "")
	var created struct{ Post post }
	a.call(http.MethodPost, "/api/posts/drafts", author.Token, gin.H{"title": "Live"}, &created)
	a.call(http.MethodPost, "/api/posts/"+created.Post.ID+"/publish", author.Token, nil, nil)

	srv := httptest.NewServer(a.h)
	defer srv.Close()
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(gin.H{"event": realtime.EventJoinPost, "data": created.Post.ID}))
	require.Eventually(t, func() bool {
		return a.hub.Subscribers(realtime.PostChannel(created.Post.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/comments/"+created.Post.ID, "", gin.H{"content": "great post", "authorName": "Visitor"}, nil))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Event string `json:"event"`
		Data  struct {
			AuthorName string `json:"authorName"`
			Content    string `json:"content"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, realtime.EventCommentNew, msg.Event)
	assert.Equal(t, "Visitor", msg.Data.AuthorName)
	assert.Equal(t, "great post", msg.Data.Content)
}

func TestCommentRateLimit(t *testing.T) {
	a := newApp(t)
	_, author := a.register("asha", "student", "")
	var created struct{ Post post }
	a.call(http.MethodPost, "/api/posts/drafts", author.Token, gin.H{"title": "Busy"}, &created)
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/posts/"+created.Post.ID+"/publish", author.Token, nil, nil))

	limit := config.Get().CommentLimitPerMinute
	for i := 0; i < limit; i++ {
		require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/comments/"+created.Post.ID, "", gin.H{"content": "spam"}, nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, a.call(http.MethodPost, "/api/comments/"+created.Post.ID, "", gin.H{"content": "spam"}, nil))
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/health", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, a.call(http.MethodGet, "/api/nothing-here", "", nil, nil))
}

func TestLogoutRevokesOnlyThatToken(t *testing.T) {
	a := newApp(t)
	_, first := a.register("asha", "student", "")

	var second session
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/auth/login", "", gin.H{"email": "asha@vignan.test", "password": "secret123"}, &second))
	require.NotEqual(t, first.Token, second.Token)

	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/auth/logout", first.Token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.call(http.MethodGet, "/api/auth/me", first.Token, nil, nil))
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/auth/me", second.Token, nil, nil))
}

func TestAssistantIsOpenToGuests(t *testing.T) {
	a := newApp(t)
	_, author := a.register("asha", "student", "")
	var created struct{ Post post }
	a.call(http.MethodPost, "/api/posts/drafts", author.Token, gin.H{"title": "Hackathon recap", "tags": []string{"events"}}, &created)
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/posts/"+created.Post.ID+"/publish", author.Token, nil, nil))

	var reply struct {
		Reply       string `json:"reply"`
		Suggestions []struct {
			ID string `json:"id"`
		} `json:"suggestions"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/assistant", "", gin.H{"message": "any hackathon this week"}, &reply))
	assert.Contains(t, reply.Reply, "I found 1 related post.")
	require.Len(t, reply.Suggestions, 1)
	assert.Equal(t, created.Post.ID, reply.Suggestions[0].ID)

	assert.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/assistant", author.Token, gin.H{"message": "hello"}, nil))
	assert.Equal(t, http.StatusUnauthorized, a.call(http.MethodPost, "/api/assistant", "bogus", gin.H{"message": "hello"}, nil))
}
