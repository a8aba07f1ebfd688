package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PostStatus is the lifecycle state of a post. Publishing is one-way.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
)

// ReactionKind is one of the independent reaction sets on a post.
type ReactionKind string

const (
	ReactionClap ReactionKind = "clap"
	ReactionLike ReactionKind = "like"
	ReactionFire ReactionKind = "fire"
)

// ParseReaction maps s onto a known reaction kind.
func ParseReaction(s string) (ReactionKind, bool) {
	switch k := ReactionKind(s); k {
	case ReactionClap, ReactionLike, ReactionFire:
		return k, true
	}
	return "", false
}

// Reactions holds one identity set per reaction kind.
type Reactions struct {
	Clap []string `json:"clap"`
	Like []string `json:"like"`
	Fire []string `json:"fire"`
}

// Set returns the member ids of kind k.
func (r Reactions) Set(k ReactionKind) []string {
	switch k {
	case ReactionClap:
		return r.Clap
	case ReactionLike:
		return r.Like
	case ReactionFire:
		return r.Fire
	}
	return nil
}

// With returns a copy of r with the set of kind k replaced.
func (r Reactions) With(k ReactionKind, ids []string) Reactions {
	switch k {
	case ReactionClap:
		r.Clap = ids
	case ReactionLike:
		r.Like = ids
	case ReactionFire:
		r.Fire = ids
	}
	return r
}

// Counts returns the size of every reaction set.
func (r Reactions) Counts() map[ReactionKind]int {
	return map[ReactionKind]int{
		ReactionClap: len(r.Clap),
		ReactionLike: len(r.Like),
		ReactionFire: len(r.Fire),
	}
}

// Post is a blog article owned by one identity.
type Post struct {
	ID          string                        `gorm:"primaryKey;size:24" json:"id"`
	Title       string                        `gorm:"size:255;not null" json:"title"`
	Slug        string                        `gorm:"size:191;not null;uniqueIndex" json:"slug"`
	Markdown    string                        `gorm:"type:text" json:"markdown,omitempty"`
	HTML        string                        `gorm:"type:text" json:"html"`
	Tags        datatypes.JSONSlice[string]   `json:"tags"`
	Status      PostStatus                    `gorm:"size:16;not null;index" json:"status"`
	AuthorID    string                        `gorm:"size:24;not null;index" json:"authorId"`
	Author      *User                         `gorm:"foreignKey:AuthorID" json:"-"`
	CoverURL    string                        `gorm:"size:1024" json:"coverUrl"`
	Images      datatypes.JSONSlice[string]   `json:"images"`
	Views       int64                         `gorm:"not null;default:0" json:"views"`
	Likes       datatypes.JSONSlice[string]   `json:"likes"`
	Reactions   datatypes.JSONType[Reactions] `json:"reactions"`
	PublishedAt *time.Time                    `gorm:"index" json:"publishedAt"`
	Version     int64                         `gorm:"not null;default:1" json:"version"`
	CreatedAt   time.Time                     `json:"createdAt"`
	UpdatedAt   time.Time                     `json:"updatedAt"`
}

// BeforeCreate assigns the document id and initial state.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if p.Version == 0 {
		p.Version = 1
	}
	return nil
}

// OwnedBy reports whether userID is the author.
func (p *Post) OwnedBy(userID string) bool {
	return userID != "" && p.AuthorID == userID
}
