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
)

func collectionRouter(db *gorm.DB) *gin.Engine {
	cc := NewCollectionController(db)
	r := gin.New()
	r.GET("/collections/public/:username/:name", cc.Public)
	r.GET("/collections", middleware.AuthRequired(), cc.Get)
	r.PUT("/collections", middleware.AuthRequired(), cc.Replace)
	r.PUT("/collections/visibility", middleware.AuthRequired(), cc.SetVisibility)
	return r
}

type collectionsResp struct {
	Collections map[string][]string `json:"collections"`
	Public      map[string]bool     `json:"public"`
}

func TestCollectionsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	r := collectionRouter(db)
	_, token := createUser(t, db, "asha", models.RoleStudent)

	w := do(t, r, request{method: http.MethodGet, path: "/collections", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	var got collectionsResp
	decode(t, w, &got)
	assert.Empty(t, got.Collections)

	w = do(t, r, request{method: http.MethodPut, path: "/collections", token: token, body: gin.H{
		"Read later": []string{"p1", "p2", "p1"},
		"Favourites": []string{},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, request{method: http.MethodGet, path: "/collections", token: token})
	decode(t, w, &got)
	assert.Equal(t, map[string][]string{"Read later": {"p1", "p2"}, "Favourites": {}}, got.Collections)

	// full replacement drops names that are not sent
	do(t, r, request{method: http.MethodPut, path: "/collections", token: token, body: gin.H{"Only": []string{"p3"}}})
	w = do(t, r, request{method: http.MethodGet, path: "/collections", token: token})
	decode(t, w, &got)
	assert.Equal(t, map[string][]string{"Only": {"p3"}}, got.Collections)
}

func TestCollectionVisibilityPayload(t *testing.T) {
	db := newTestDB(t)
	r := collectionRouter(db)
	_, token := createUser(t, db, "asha", models.RoleStudent)

	for _, body := range []gin.H{{"name": "x"}, {"public": true}, {"name": "x", "public": "yes"}} {
		w := do(t, r, request{method: http.MethodPut, path: "/collections/visibility", token: token, body: body})
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "invalid_payload", decode(t, w, nil).Message)
	}
}

func TestPublicCollection(t *testing.T) {
	db := newTestDB(t)
	r := collectionRouter(db)
	owner, token := createUser(t, db, "asha", models.RoleStudent)
	post := createPost(t, db, owner, "Shared", models.StatusPublished, "go")

	do(t, r, request{method: http.MethodPut, path: "/collections", token: token, body: gin.H{"Picks": []string{post.ID}}})

	assert.Equal(t, http.StatusNotFound, do(t, r, request{method: http.MethodGet, path: "/collections/public/ghost/Picks"}).Code)

	w := do(t, r, request{method: http.MethodGet, path: "/collections/public/asha/Picks"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_public", decode(t, w, nil).Message)

	require.Equal(t, http.StatusOK, do(t, r, request{method: http.MethodPut, path: "/collections/visibility", token: token,
		body: gin.H{"name": "Picks", "public": true}}).Code)

	w = do(t, r, request{method: http.MethodGet, path: "/collections/public/asha/Picks"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Owner string `json:"owner"`
		Name  string `json:"name"`
		Posts []struct {
			ID    string   `json:"id"`
			Title string   `json:"title"`
			Slug  string   `json:"slug"`
			Tags  []string `json:"tags"`
		} `json:"posts"`
	}
	decode(t, w, &data)
	assert.Equal(t, "asha", data.Owner)
	assert.Equal(t, "Picks", data.Name)
	require.Len(t, data.Posts, 1)
	assert.Equal(t, post.Slug, data.Posts[0].Slug)
	assert.Equal(t, []string{"go"}, data.Posts[0].Tags)

	// visibility can be withdrawn
	do(t, r, request{method: http.MethodPut, path: "/collections/visibility", token: token, body: gin.H{"name": "Picks", "public": false}})
	assert.Equal(t, http.StatusForbidden, do(t, r, request{method: http.MethodGet, path: "/collections/public/asha/Picks"}).Code)
}

func TestPublicCollectionHidesDrafts(t *testing.T) {
	db := newTestDB(t)
	r := collectionRouter(db)
	owner, token := createUser(t, db, "asha", models.RoleStudent)
	other, _ := createUser(t, db, "ravi", models.RoleStudent)
	published := createPost(t, db, owner, "Out there", models.StatusPublished)
	ownDraft := createPost(t, db, owner, "Mine, unfinished", models.StatusDraft)
	theirDraft := createPost(t, db, other, "Theirs, unfinished", models.StatusDraft)

	require.Equal(t, http.StatusOK, do(t, r, request{method: http.MethodPut, path: "/collections", token: token,
		body: gin.H{"Picks": []string{published.ID, ownDraft.ID, theirDraft.ID}}}).Code)
	require.Equal(t, http.StatusOK, do(t, r, request{method: http.MethodPut, path: "/collections/visibility", token: token,
		body: gin.H{"name": "Picks", "public": true}}).Code)

	w := do(t, r, request{method: http.MethodGet, path: "/collections/public/asha/Picks"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Posts []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"posts"`
	}
	decode(t, w, &data)
	require.Len(t, data.Posts, 1)
	assert.Equal(t, published.ID, data.Posts[0].ID)
	assert.NotContains(t, w.Body.String(), "unfinished")
}
