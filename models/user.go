package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Collections maps a collection name to an ordered set of post ids.
type Collections map[string][]string

// User is a registered identity. Passwords and reset codes are stored as bcrypt hashes only.
type User struct {
	ID                string                              `gorm:"primaryKey;size:24" json:"id"`
	Username          string                              `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email             string                              `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash      string                              `gorm:"size:255" json:"-"`
	Role              Role                                `gorm:"size:16;not null;default:student" json:"role"`
	FullName          string                              `gorm:"size:128" json:"fullName"`
	Department        string                              `gorm:"size:128" json:"department"`
	UniversityID      string                              `gorm:"size:64" json:"universityId"`
	Bio               string                              `gorm:"size:512" json:"bio"`
	AvatarURL         string                              `gorm:"size:1024" json:"avatarUrl"`
	Collections       datatypes.JSONType[Collections]     `json:"-"`
	CollectionsPublic datatypes.JSONType[map[string]bool] `json:"-"`
	ResetOtpHash      string                              `gorm:"size:255" json:"-"`
	ResetOtpExpires   *time.Time                          `json:"-"`
	CreatedAt         time.Time                           `json:"createdAt"`
	UpdatedAt         time.Time                           `json:"updatedAt"`
}

// BeforeCreate assigns the document id and default role.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	if u.Role == "" {
		u.Role = RoleStudent
	}
	return nil
}

// CollectionMap returns the user's collections, never nil.
func (u *User) CollectionMap() Collections {
	c := u.Collections.Data()
	if c == nil {
		return Collections{}
	}
	return c
}

// VisibilityMap returns the per-collection public flags, never nil.
func (u *User) VisibilityMap() map[string]bool {
	v := u.CollectionsPublic.Data()
	if v == nil {
		return map[string]bool{}
	}
	return v
}
