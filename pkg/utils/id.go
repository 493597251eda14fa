package utils

import (
	"log"
	"strings"

	"github.com/google/uuid"
)

// GenerateID generates a new UUID v4 string
func GenerateID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		log.Printf("Failed to generate UUID: %v", err)
		return ""
	}
	return id.String()
}

// GenerateSessionID generates a prefixed session identifier (e.g. "obs_7f3c...")
func GenerateSessionID() string {
	return "obs_" + strings.ReplaceAll(GenerateID(), "-", "")
}

// IsValidUUID checks if the string is a valid UUID
func IsValidUUID(u string) bool {
	_, err := uuid.Parse(u)
	return err == nil
}
