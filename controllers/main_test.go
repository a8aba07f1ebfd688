package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vignan/diaries/config"
	"github.com/vignan/diaries/models"
	"github.com/vignan/diaries/utils"
)

const testAdminCode = "letmein"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.Override(config.AppConfig{JWTSecret: "controllers-test-secret", AdminRegCode: testAdminCode})
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.OpenDatabase("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name), "silent")
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, &models.User{}, &models.Post{}, &models.Comment{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string, role models.Role) (models.User, string) {
	t.Helper()
	hash, err := utils.HashPassword("secret123")
	require.NoError(t, err)
	u := models.User{Username: username, Email: username + "@vignan.test", PasswordHash: hash, Role: role}
	require.NoError(t, db.Create(&u).Error)
	token, err := utils.GenerateToken(u)
	require.NoError(t, err)
	return u, token
}

func createPost(t *testing.T, db *gorm.DB, author models.User, title string, status models.PostStatus, tags ...string) models.Post {
	t.Helper()
	p := models.Post{Title: title, Slug: utils.NewSlug(title), Markdown: "# " + title, Status: status, AuthorID: author.ID, Tags: tags}
	require.NoError(t, db.Create(&p).Error)
	return p
}

type request struct {
	method  string
	path    string
	token   string
	body    interface{}
	headers map[string]string
}

func do(t *testing.T, h http.Handler, r request) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// envelope decodes the response envelope.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
	}
	return env
}

// postBody is the post shape returned by the API.
type postBody struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Markdown    *string  `json:"markdown"`
	HTML        string   `json:"html"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	CoverURL    string   `json:"coverUrl"`
	Views       int64    `json:"views"`
	Likes       []string `json:"likes"`
	PublishedAt *string  `json:"publishedAt"`
	Version     int64    `json:"version"`
	Author      *struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"author"`
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+body)
	return nil
}

func (m *recordingMailer) messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}
