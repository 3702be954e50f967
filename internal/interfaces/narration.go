package interfaces

import (
	"context"
)

// SpeechSynthesizer converts one narration segment into encoded audio
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (audio []byte, ext string, err error)
	Name() string
}

// BatchOptions tags a narration batch
type BatchOptions struct {
	// PlaylistID gives deterministic output names; empty falls back to timestamped names
	PlaylistID string
	// JobID is carried for logging and sub-progress
	JobID string
	// OnProgress is called after each segment settles with the count done so far
	OnProgress func(done, total int)
}

// NarrationService synthesizes a batch of narration segments.
// The result has one entry per input in input order; a nil entry marks a segment that failed or was empty.
// An error is returned only when the batch as a whole could not run.
type NarrationService interface {
	SynthesizeBatch(ctx context.Context, texts []string, opts BatchOptions) ([]*string, error)
}
