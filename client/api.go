package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d (%d): %s", e.Status, e.Code, e.Message)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// User is an account as the server reports it.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Post is a draft or published post.
type Post struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Slug        string              `json:"slug"`
	Markdown    string              `json:"markdown"`
	HTML        string              `json:"html"`
	Tags        []string            `json:"tags"`
	Status      string              `json:"status"`
	AuthorID    string              `json:"authorId"`
	CoverURL    string              `json:"coverUrl"`
	Images      []string            `json:"images"`
	Views       int64               `json:"views"`
	Likes       []string            `json:"likes"`
	Reactions   map[string][]string `json:"reactions"`
	Version     int64               `json:"version"`
	PublishedAt *time.Time          `json:"publishedAt"`
	CreatedAt   time.Time           `json:"createdAt"`
	Author      *Author             `json:"author,omitempty"`
}

// Author is the public face of a post's writer.
type Author struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// Comment is a reader comment on a post.
type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// LikeResult is the state after a like toggle.
type LikeResult struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}

// RegisterRequest carries the sign-up form.
type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role,omitempty"`
	FullName   string `json:"fullName,omitempty"`
	Department string `json:"department,omitempty"`
	AdminCode  string `json:"adminCode,omitempty"`
}

type postPayload struct {
	Title    string   `json:"title"`
	Markdown string   `json:"markdown"`
	Tags     []string `json:"tags"`
	CoverURL string   `json:"coverUrl,omitempty"`
	Images   []string `json:"images"`
}

func payloadOf(d Draft) postPayload {
	return postPayload{
		Title:    d.Title,
		Markdown: d.Markdown,
		Tags:     nonNilStrings(d.Tags),
		CoverURL: d.CoverURL,
		Images:   nonNilStrings(d.Attachments),
	}
}

// APIClient talks to the REST API, attaching the session's credential when one is stored.
type APIClient struct {
	http    *resty.Client
	session *Session
}

// NewAPIClient targets baseURL (without the /api suffix).
func NewAPIClient(baseURL string, timeout time.Duration, session *Session) *APIClient {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cli := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/") + "/api").
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &APIClient{http: cli, session: session}
}

// Session returns the session whose credential this client sends.
func (c *APIClient) Session() *Session { return c.session }

func (c *APIClient) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if c.session != nil {
		if token, err := c.session.ReadCredential(); err == nil {
			req.SetAuthToken(token)
		}
	}
	return req
}

// do sends body (if any) and decodes the envelope's data into out (if any).
func (c *APIClient) do(req *resty.Request, method, path string, body, out interface{}) error {
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: resp.StatusCode(), Code: env.Code, Message: env.Message}
		if decodeErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(resp.Body()))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode())
			}
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, decodeErr)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}

// Register creates an account and stores the returned credential.
func (c *APIClient) Register(ctx context.Context, in RegisterRequest) (AuthResult, error) {
	var out AuthResult
	if err := c.do(c.request(ctx), http.MethodPost, "/auth/register", in, &out); err != nil {
		return AuthResult{}, err
	}
	return out, c.session.StoreCredential(out.Token)
}

// Login exchanges credentials for a token and stores it.
func (c *APIClient) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(c.request(ctx), http.MethodPost, "/auth/login", body, &out); err != nil {
		return AuthResult{}, err
	}
	return out, c.session.StoreCredential(out.Token)
}

// Logout revokes the token server-side when possible and always discards it locally.
func (c *APIClient) Logout(ctx context.Context) error {
	var remote error
	if _, err := c.session.ReadCredential(); err == nil {
		remote = c.do(c.request(ctx), http.MethodPost, "/auth/logout", nil, nil)
	}
	if err := c.session.ClearCredential(); err != nil {
		return err
	}
	if remote != nil && !IsStatus(remote, http.StatusUnauthorized) {
		return remote
	}
	return nil
}

// Me returns the signed-in account.
func (c *APIClient) Me(ctx context.Context) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	err := c.do(c.request(ctx), http.MethodGet, "/auth/me", nil, &out)
	return out.User, err
}

// CreateDraft starts a new draft.
func (c *APIClient) CreateDraft(ctx context.Context, d Draft) (Post, error) {
	var out struct {
		Post Post `json:"post"`
	}
	err := c.do(c.request(ctx), http.MethodPost, "/posts/drafts", payloadOf(d), &out)
	return out.Post, err
}

// UpdatePost overwrites a post's editable fields (last write wins).
func (c *APIClient) UpdatePost(ctx context.Context, id string, d Draft) (Post, error) {
	var out struct {
		Post Post `json:"post"`
	}
	err := c.do(c.request(ctx), http.MethodPut, "/posts/"+url.PathEscape(id), payloadOf(d), &out)
	return out.Post, err
}

// Publish makes a post public with the rendered html.
func (c *APIClient) Publish(ctx context.Context, id, html, coverURL string) (Post, error) {
	var out struct {
		Post Post `json:"post"`
	}
	body := map[string]string{"html": html}
	if coverURL != "" {
		body["coverUrl"] = coverURL
	}
	err := c.do(c.request(ctx), http.MethodPost, "/posts/"+url.PathEscape(id)+"/publish", body, &out)
	return out.Post, err
}

// GetPost loads a post by id; drafts only load for their author.
func (c *APIClient) GetPost(ctx context.Context, id string) (Post, error) {
	var out struct {
		Post Post `json:"post"`
	}
	err := c.do(c.request(ctx), http.MethodGet, "/posts/id/"+url.PathEscape(id), nil, &out)
	return out.Post, err
}

// GetBySlug loads a published post, counting one view.
func (c *APIClient) GetBySlug(ctx context.Context, slug string) (Post, error) {
	var out struct {
		Post Post `json:"post"`
	}
	err := c.do(c.request(ctx), http.MethodGet, "/posts/slug/"+url.PathEscape(slug), nil, &out)
	return out.Post, err
}

// Feed lists published posts, optionally filtered by tag and author username.
func (c *APIClient) Feed(ctx context.Context, tag, author string) ([]Post, error) {
	req := c.request(ctx)
	if tag != "" {
		req.SetQueryParam("tag", tag)
	}
	if author != "" {
		req.SetQueryParam("author", author)
	}
	var out struct {
		Items []Post `json:"items"`
	}
	err := c.do(req, http.MethodGet, "/posts", nil, &out)
	return out.Items, err
}

// Like toggles the caller's like.
func (c *APIClient) Like(ctx context.Context, id string) (LikeResult, error) {
	var out LikeResult
	err := c.do(c.request(ctx), http.MethodPost, "/posts/"+url.PathEscape(id)+"/like", nil, &out)
	return out, err
}

// Comments lists a post's comments, oldest first.
func (c *APIClient) Comments(ctx context.Context, postID string) ([]Comment, error) {
	var out struct {
		Items []Comment `json:"items"`
	}
	err := c.do(c.request(ctx), http.MethodGet, "/comments/"+url.PathEscape(postID), nil, &out)
	return out.Items, err
}

// AddComment posts a comment. authorName is only used when signed out.
func (c *APIClient) AddComment(ctx context.Context, postID, content, authorName string) (Comment, error) {
	var out struct {
		Comment Comment `json:"comment"`
	}
	body := map[string]string{"content": content}
	if authorName != "" {
		body["authorName"] = authorName
	}
	err := c.do(c.request(ctx), http.MethodPost, "/comments/"+url.PathEscape(postID), body, &out)
	return out.Comment, err
}

// Collections fetches the caller's named collections.
func (c *APIClient) Collections(ctx context.Context) (map[string][]string, error) {
	var out struct {
		Collections map[string][]string `json:"collections"`
	}
	if err := c.do(c.request(ctx), http.MethodGet, "/collections", nil, &out); err != nil {
		return nil, err
	}
	if out.Collections == nil {
		out.Collections = map[string][]string{}
	}
	return out.Collections, nil
}

// ReplaceCollections overwrites the caller's collections.
func (c *APIClient) ReplaceCollections(ctx context.Context, cols map[string][]string) error {
	return c.do(c.request(ctx), http.MethodPut, "/collections", cols, nil)
}

// SetCollectionVisibility shares or hides one collection.
func (c *APIClient) SetCollectionVisibility(ctx context.Context, name string, public bool) error {
	body := map[string]interface{}{"name": name, "public": public}
	return c.do(c.request(ctx), http.MethodPut, "/collections/visibility", body, nil)
}

// Summarize asks the writing assistant for a bullet summary.
func (c *APIClient) Summarize(ctx context.Context, text string, lines int) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	body := map[string]interface{}{"text": text, "lines": lines}
	err := c.do(c.request(ctx), http.MethodPost, "/ai/summarize", body, &out)
	return out.Summary, err
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
