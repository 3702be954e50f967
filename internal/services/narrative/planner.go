// Package narrative holds the two LLM roles of the pipeline: the planner that outlines a
// documentary and the generator that writes the final interleaved timeline.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/models"
	"github.com/ternarybob/musicdoc/internal/services/llm"
)

const plannerSystemPrompt = `You are a music documentary producer planning a short audio documentary about an artist.
Decide the story before any songs are chosen.
Output REQUIREMENTS:
- Return ONLY a single JSON object. No prose, no markdown, no backticks.
- Fields: "title" (short playlist-friendly title), "narrative_arc" (2-3 sentences), "era_covered" (e.g. "1985-1997"),
  "required_tracks" (5 to 8 items, each with "song_title", "approximate_year" and "why_essential").
- All values are strings, including "approximate_year" (e.g. "1992").
- required_tracks must be real songs by the artist that the story cannot be told without, in chronological order.
- Use exact, canonical song titles so they can be found in a streaming catalog.`

// planSchema is the structured output contract for the planner
var planSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"title", "narrative_arc", "era_covered", "required_tracks"},
	"properties": map[string]interface{}{
		"title":         map[string]interface{}{"type": "string"},
		"narrative_arc": map[string]interface{}{"type": "string"},
		"era_covered":   map[string]interface{}{"type": "string"},
		"required_tracks": map[string]interface{}{
			"type":     "array",
			"minItems": 5,
			"maxItems": 8,
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"song_title", "approximate_year", "why_essential"},
				"properties": map[string]interface{}{
					"song_title":       map[string]interface{}{"type": "string"},
					"approximate_year": map[string]interface{}{"type": "string"},
					"why_essential":    map[string]interface{}{"type": "string"},
				},
			},
		},
	},
}

// Planner asks the LLM for the documentary outline
type Planner struct {
	llm    llm.ContentGenerator
	model  string
	logger arbor.ILogger
}

var _ interfaces.Planner = (*Planner)(nil)

// NewPlanner creates a planner. An empty model uses the provider default.
func NewPlanner(generator llm.ContentGenerator, model string, logger arbor.ILogger) *Planner {
	return &Planner{llm: generator, model: model, logger: logger}
}

// Plan returns the outline for artistName, using topTracks as context only
func (p *Planner) Plan(ctx context.Context, artistName string, topTracks []models.CatalogTrack, userPrompt string) (*models.DocumentaryPlan, error) {
	user, err := plannerUserPrompt(artistName, topTracks, userPrompt)
	if err != nil {
		return nil, err
	}

	resp, err := p.llm.GenerateContent(ctx, &llm.ContentRequest{
		Messages:          []interfaces.Message{{Role: "user", Content: user}},
		Model:             p.model,
		SystemInstruction: plannerSystemPrompt,
		ThinkingLevel:     "minimal",
		OutputSchema:      planSchema,
		JSONOutput:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("plan documentary: %w", err)
	}

	var plan models.DocumentaryPlan
	if err := decodeJSON(resp.Text, &plan); err != nil {
		p.logger.Warn().Str("output", truncate(resp.Text, 400)).Msg("Unparseable plan output")
		return nil, fmt.Errorf("plan documentary: %w", err)
	}

	p.logger.Debug().
		Str("title", plan.Title).
		Str("era", plan.EraCovered).
		Int("required_tracks", len(plan.RequiredTracks)).
		Msg("Documentary plan created")

	return &plan, nil
}

func plannerUserPrompt(artistName string, topTracks []models.CatalogTrack, userPrompt string) (string, error) {
	type contextTrack struct {
		Name        string `json:"name"`
		Album       string `json:"album,omitempty"`
		ReleaseDate string `json:"release_date,omitempty"`
	}
	ctxTracks := make([]contextTrack, 0, len(topTracks))
	for _, t := range topTracks {
		ctxTracks = append(ctxTracks, contextTrack{Name: t.Name, Album: t.Album, ReleaseDate: t.ReleaseDate})
	}
	raw, err := json.MarshalIndent(ctxTracks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode top tracks: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Artist: %s\n\n", artistName)
	fmt.Fprintf(&b, "Popular tracks for context (not a constraint):\n%s\n", raw)
	if s := strings.TrimSpace(userPrompt); s != "" {
		fmt.Fprintf(&b, "\nAdditional instructions from user (apply carefully):\n%s\n", s)
	}
	b.WriteString("\nReturn ONLY the JSON plan.")
	return b.String(), nil
}

// BuildEnhancedPrompt folds the plan and the user's own instructions into the generator prompt
func BuildEnhancedPrompt(plan *models.DocumentaryPlan, userPrompt string) string {
	var b strings.Builder
	b.WriteString("DOCUMENTARY PLAN (use this as your guide):\n")
	if plan != nil {
		fmt.Fprintf(&b, "Title: %s\n", plan.Title)
		fmt.Fprintf(&b, "Narrative Arc: %s\n", plan.NarrativeArc)
		fmt.Fprintf(&b, "Era Covered: %s\n", plan.EraCovered)
		b.WriteString("\nREQUIRED TRACKS (prioritize these in your selection):\n")
		for i, t := range plan.RequiredTracks {
			fmt.Fprintf(&b, "%d. %q (%s) - %s\n", i+1, t.SongTitle, t.ApproximateYear, t.WhyEssential)
		}
	}
	if s := strings.TrimSpace(userPrompt); s != "" {
		fmt.Fprintf(&b, "\nADDITIONAL INSTRUCTIONS:\n%s\n", s)
	}
	b.WriteString("\nIMPORTANT: Follow the plan above. Use the required tracks if they are available in the catalog. ")
	b.WriteString("The narrative arc and track selection rationale have already been determined.")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
