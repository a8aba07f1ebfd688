package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

const guestCollections = "guest"

// CollectionsMirror keeps a local copy of the caller's collections so saving
// works offline and before sign-in. The server copy wins on load; local
// writes are optimistic and never rolled back.
type CollectionsMirror struct {
	api    *APIClient
	store  Storage
	logger *zap.Logger
}

// NewCollectionsMirror stores its copy in the session's durable storage. logger may be nil.
func NewCollectionsMirror(api *APIClient, logger *zap.Logger) *CollectionsMirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionsMirror{api: api, store: api.Session().Durable(), logger: logger}
}

func (m *CollectionsMirror) key() (string, bool) {
	ident, err := m.api.Session().Identity()
	if err != nil {
		return collectionsPrefix + guestCollections, false
	}
	return collectionsPrefix + ident.ID, true
}

func (m *CollectionsMirror) local(key string) map[string][]string {
	cols := map[string][]string{}
	raw, ok := m.store.Get(key)
	if !ok {
		return cols
	}
	if err := json.Unmarshal([]byte(raw), &cols); err != nil {
		m.logger.Warn("discarding unreadable collections mirror", zap.String("key", key), zap.Error(err))
		return map[string][]string{}
	}
	return cols
}

func (m *CollectionsMirror) writeLocal(key string, cols map[string][]string) error {
	raw, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("encode collections: %w", err)
	}
	return m.store.Set(key, string(raw))
}

// Load prefers the server copy and falls back to the mirror when signed out or offline.
func (m *CollectionsMirror) Load(ctx context.Context) (map[string][]string, error) {
	key, signedIn := m.key()
	if !signedIn {
		return m.local(key), nil
	}
	cols, err := m.api.Collections(ctx)
	if err != nil {
		m.logger.Warn("collections fetch failed, using local copy", zap.Error(err))
		return m.local(key), nil
	}
	if err := m.writeLocal(key, cols); err != nil {
		return cols, err
	}
	return cols, nil
}

// Save writes the mirror and then the server. A server failure keeps the local copy.
func (m *CollectionsMirror) Save(ctx context.Context, cols map[string][]string) error {
	key, signedIn := m.key()
	if cols == nil {
		cols = map[string][]string{}
	}
	if err := m.writeLocal(key, cols); err != nil {
		return err
	}
	if !signedIn {
		return nil
	}
	if err := m.api.ReplaceCollections(ctx, cols); err != nil {
		m.logger.Warn("collections upload failed, kept local copy", zap.Error(err))
	}
	return nil
}

// Toggle adds postID to the named collection, or removes it when present.
// It reports whether the post is now in the collection.
func (m *CollectionsMirror) Toggle(ctx context.Context, name, postID string) (bool, error) {
	cols, err := m.Load(ctx)
	if err != nil {
		return false, err
	}
	members := cols[name]
	saved := true
	next := make([]string, 0, len(members)+1)
	for _, id := range members {
		if id == postID {
			saved = false
			continue
		}
		next = append(next, id)
	}
	if saved {
		next = append(next, postID)
	}
	cols[name] = next
	return saved, m.Save(ctx, cols)
}

// IsSaved reports whether postID is in any locally mirrored collection.
func (m *CollectionsMirror) IsSaved(postID string) bool {
	key, _ := m.key()
	for _, ids := range m.local(key) {
		for _, id := range ids {
			if id == postID {
				return true
			}
		}
	}
	return false
}

// Names lists the mirrored collection names in order.
func (m *CollectionsMirror) Names() []string {
	key, _ := m.key()
	cols := m.local(key)
	names := make([]string, 0, len(cols))
	for n := range cols {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PostSnapshot is the card kept locally for a saved post so saved lists
// render without fetching each post.
type PostSnapshot struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	CoverURL    string    `json:"coverUrl,omitempty"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"publishedAt"`
	Author      string    `json:"author,omitempty"`
}

func snapshotOf(p Post) PostSnapshot {
	snap := PostSnapshot{
		ID:          p.ID,
		Slug:        p.Slug,
		Title:       p.Title,
		CoverURL:    p.CoverURL,
		Tags:        nonNilStrings(p.Tags),
		PublishedAt: p.CreatedAt,
	}
	if p.PublishedAt != nil {
		snap.PublishedAt = *p.PublishedAt
	}
	if p.Author != nil {
		snap.Author = p.Author.Username
	}
	return snap
}

func (m *CollectionsMirror) snapshots() map[string]PostSnapshot {
	snaps := map[string]PostSnapshot{}
	raw, ok := m.store.Get(savedPostsKey)
	if !ok {
		return snaps
	}
	if err := json.Unmarshal([]byte(raw), &snaps); err != nil {
		m.logger.Warn("discarding unreadable saved posts", zap.Error(err))
		return map[string]PostSnapshot{}
	}
	return snaps
}

// Remember stores or refreshes the snapshot of post. Posts without an id are ignored.
func (m *CollectionsMirror) Remember(post Post) error {
	if post.ID == "" {
		return nil
	}
	snaps := m.snapshots()
	snaps[post.ID] = snapshotOf(post)
	raw, err := json.Marshal(snaps)
	if err != nil {
		return fmt.Errorf("encode saved posts: %w", err)
	}
	return m.store.Set(savedPostsKey, string(raw))
}

// SavedPosts returns the snapshots of ids in order, skipping ids never remembered.
func (m *CollectionsMirror) SavedPosts(ids []string) []PostSnapshot {
	snaps := m.snapshots()
	out := make([]PostSnapshot, 0, len(ids))
	for _, id := range ids {
		if snap, ok := snaps[id]; ok {
			out = append(out, snap)
		}
	}
	return out
}

// TogglePost is Toggle for a loaded post, remembering its snapshot when it is saved.
func (m *CollectionsMirror) TogglePost(ctx context.Context, name string, post Post) (bool, error) {
	saved, err := m.Toggle(ctx, name, post.ID)
	if err != nil || !saved {
		return saved, err
	}
	return saved, m.Remember(post)
}
