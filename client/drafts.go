package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Draft is the editor state cached between page loads.
type Draft struct {
	Title       string   `json:"title"`
	Markdown    string   `json:"markdown"`
	Tags        []string `json:"tags"`
	CoverURL    string   `json:"coverUrl"`
	Attachments []string `json:"attachments"`
}

// DraftCache stores one in-progress draft per identity.
type DraftCache struct {
	store Storage
}

// NewDraftCache returns a cache backed by store.
func NewDraftCache(store Storage) *DraftCache {
	return &DraftCache{store: store}
}

func draftKey(identityID string) string { return draftCachePrefix + identityID }

// Put replaces the identity's cached draft.
func (c *DraftCache) Put(identityID string, d Draft) error {
	if identityID == "" {
		return ErrNoSession
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return c.store.Set(draftKey(identityID), string(raw))
}

// Get reads the cached draft. The editor never hydrates from it on its own;
// it is for explicit recovery.
func (c *DraftCache) Get(identityID string) (Draft, bool, error) {
	raw, ok := c.store.Get(draftKey(identityID))
	if !ok {
		return Draft{}, false, nil
	}
	var d Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return Draft{}, false, fmt.Errorf("decode draft: %w", err)
	}
	return d, true, nil
}

// Purge drops the identity's cached draft and the shared legacy entry.
func (c *DraftCache) Purge(identityID string) error {
	return errors.Join(c.store.Delete(draftKey(identityID)), c.store.Delete(legacyDraftKey))
}

// PurgeAll drops every cached draft of every identity.
func (c *DraftCache) PurgeAll() error {
	return errors.Join(deletePrefix(c.store, draftCachePrefix), c.store.Delete(legacyDraftKey))
}
