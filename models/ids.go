package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// NewID returns a fresh 24-char hex document identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id has the document identifier shape.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}
