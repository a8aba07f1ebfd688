package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrDraftNotSaved is returned by Publish before the first autosave has created the draft.
var ErrDraftNotSaved = errors.New("client: draft not saved yet")

// EditorSession drives one editor view: it caches every change for the
// signed-in identity and autosaves it to the server.
type EditorSession struct {
	api   *APIClient
	saver *Autosaver

	mu      sync.Mutex
	current Draft
}

// NewEditorSession wires an editor to api and its session. logger may be nil.
func NewEditorSession(api *APIClient, logger *zap.Logger) *EditorSession {
	return &EditorSession{api: api, saver: NewAutosaver(api, logger)}
}

// Autosaver exposes the underlying saver.
func (e *EditorSession) Autosaver() *Autosaver { return e.saver }

// Open starts editing. An empty id gives a blank editor that never reads the
// local cache; any other id loads the post from the server.
func (e *EditorSession) Open(ctx context.Context, draftID string) (Draft, error) {
	if draftID == "" {
		e.saver.Reset("")
		_ = e.api.Session().Durable().Delete(legacyDraftKey)
		e.setCurrent(Draft{})
		return Draft{}, nil
	}

	post, err := e.api.GetPost(ctx, draftID)
	if err != nil {
		return Draft{}, err
	}
	d := Draft{
		Title:       post.Title,
		Markdown:    post.Markdown,
		Tags:        post.Tags,
		CoverURL:    post.CoverURL,
		Attachments: post.Images,
	}
	e.saver.Reset(post.ID)
	e.setCurrent(d)
	return d, nil
}

// Current returns the latest editor state.
func (e *EditorSession) Current() Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Change records an edit. Signed-out edits stay in memory and return ErrNoSession.
func (e *EditorSession) Change(d Draft) error {
	e.setCurrent(d)
	ident, err := e.api.Session().Identity()
	if err != nil {
		return err
	}
	if err := e.api.Session().Drafts().Put(ident.ID, d); err != nil {
		return err
	}
	// a new draft cannot be created without a title
	if e.saver.DraftID() == "" && strings.TrimSpace(d.Title) == "" {
		return nil
	}
	e.saver.Schedule(d)
	return nil
}

// Publish waits for pending saves, publishes the draft with html and purges
// the identity's draft cache.
func (e *EditorSession) Publish(ctx context.Context, html string) (Post, error) {
	ident, err := e.api.Session().Identity()
	if err != nil {
		return Post{}, err
	}
	if err := e.saver.Flush(ctx); err != nil {
		return Post{}, err
	}
	id := e.saver.DraftID()
	if id == "" {
		return Post{}, ErrDraftNotSaved
	}

	post, err := e.api.Publish(ctx, id, html, e.Current().CoverURL)
	if err != nil {
		return Post{}, err
	}
	if err := e.api.Session().Drafts().Purge(ident.ID); err != nil {
		return post, err
	}
	return post, nil
}

func (e *EditorSession) setCurrent(d Draft) {
	e.mu.Lock()
	e.current = d
	e.mu.Unlock()
}
