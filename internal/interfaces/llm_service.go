package interfaces

import (
	"context"

	"github.com/ternarybob/musicdoc/internal/models"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// Planner produces the documentary outline from the artist's popular tracks.
type Planner interface {
	// Plan asks the LLM for a title, narrative arc, era and the list of songs
	// the documentary cannot do without.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - artistName: Canonical artist name resolved in stage 1
	//   - topTracks: Popular tracks, used only as planning context
	//   - userPrompt: Optional free-text instructions from the submitter
	//
	// Returns:
	//   - *models.DocumentaryPlan: The parsed plan
	//   - error: Provider failure or unparseable response
	Plan(ctx context.Context, artistName string, topTracks []models.CatalogTrack, userPrompt string) (*models.DocumentaryPlan, error)
}

// GenerateRequest is the input of a documentary generation call
type GenerateRequest struct {
	Topic               string
	Prompt              string
	Catalog             []models.CatalogTrack
	NarrationTargetSecs int
}

// Generator writes the final interleaved documentary.
type Generator interface {
	// Generate returns title, topic, summary and a timeline with exactly five songs.
	// When Catalog is non-empty the songs must be chosen from it and carry its track id and uri.
	Generate(ctx context.Context, req GenerateRequest) (*models.Documentary, error)
}
