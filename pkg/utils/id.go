package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier, optionally namespaced by prefix.
func GenerateID(prefix string) string {
	if prefix == "" {
		return uuid.New().String()
	}
	return prefix + "_" + uuid.New().String()
}
