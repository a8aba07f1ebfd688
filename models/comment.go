package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment is a reply on a post. Content is filtered and sanitized before it is stored.
type Comment struct {
	ID         string    `gorm:"primaryKey;size:24" json:"id"`
	PostID     string    `gorm:"size:24;not null;index" json:"post"`
	AuthorID   *string   `gorm:"size:24;index" json:"author,omitempty"`
	AuthorName string    `gorm:"size:64;not null" json:"authorName"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// BeforeCreate assigns the document id.
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	return nil
}
