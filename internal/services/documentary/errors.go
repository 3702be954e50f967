package documentary

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation wraps submit input errors
	ErrValidation = errors.New("invalid request")
	// ErrLLMNotConfigured means the server has no credential for its LLM provider
	ErrLLMNotConfigured = errors.New("LLM provider is not configured on the server")
	// ErrArtistNotFound means the topic did not resolve to a catalog artist
	ErrArtistNotFound = errors.New("artist not found")
)

// StageError names the pipeline stage a hard failure happened in
type StageError struct {
	Stage int
	Label string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s): %v", e.Stage, e.Label, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
