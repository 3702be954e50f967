package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewPlaylistID generates a compact playlist ID (lowercase hex, no dashes)
func NewPlaylistID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
