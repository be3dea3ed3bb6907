package util

import (
	"strings"

	"github.com/google/uuid"
)

// PlaceholderPrefix marks ids minted locally for nodes the store has not
// assigned an id to yet.
const PlaceholderPrefix = "tmp"

func NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

func NewPlaceholderID() string {
	return NewID(PlaceholderPrefix)
}

func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix+"_")
}
