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

// DefaultCatalogLimit caps the candidate tracks handed to the model
const DefaultCatalogLimit = 500

// documentarySchema is the timeline contract. Items are narration or song objects in one array.
var documentarySchema = map[string]interface{}{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []interface{}{"title", "topic", "summary", "timeline"},
	"properties": map[string]interface{}{
		"title":   map[string]interface{}{"type": "string"},
		"topic":   map[string]interface{}{"type": "string"},
		"summary": map[string]interface{}{"type": "string"},
		"timeline": map[string]interface{}{
			"type":     "array",
			"minItems": 6,
			"items": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []interface{}{"type"},
				"properties": map[string]interface{}{
					"type":          map[string]interface{}{"type": "string", "enum": []interface{}{"narration", "song"}},
					"text":          map[string]interface{}{"type": "string"},
					"title":         map[string]interface{}{"type": "string"},
					"artist":        map[string]interface{}{"type": "string"},
					"album":         map[string]interface{}{"type": "string"},
					"year":          map[string]interface{}{"type": "string"},
					"spotify_query": map[string]interface{}{"type": "string"},
					"track_id":      map[string]interface{}{"type": "string"},
					"track_uri":     map[string]interface{}{"type": "string"},
				},
			},
		},
	},
}

// Generator writes the final documentary from topic, prompt and candidate catalog
type Generator struct {
	llm          llm.ContentGenerator
	model        string
	catalogLimit int
	logger       arbor.ILogger
}

var _ interfaces.Generator = (*Generator)(nil)

// NewGenerator creates a generator. catalogLimit <= 0 uses DefaultCatalogLimit.
func NewGenerator(generator llm.ContentGenerator, model string, catalogLimit int, logger arbor.ILogger) *Generator {
	if catalogLimit <= 0 {
		catalogLimit = DefaultCatalogLimit
	}
	return &Generator{llm: generator, model: model, catalogLimit: catalogLimit, logger: logger}
}

// Generate returns the documentary. The timeline contract (exactly five songs) is asked of the
// model but not re-validated here.
func (g *Generator) Generate(ctx context.Context, req interfaces.GenerateRequest) (*models.Documentary, error) {
	system, err := generatorSystemPrompt()
	if err != nil {
		return nil, err
	}
	user, err := g.userPrompt(req)
	if err != nil {
		return nil, err
	}

	g.logger.Debug().
		Str("topic", req.Topic).
		Int("catalog", len(req.Catalog)).
		Str("prompt_preview", truncate(user, 400)).
		Msg("Generating documentary")

	resp, err := g.llm.GenerateContent(ctx, &llm.ContentRequest{
		Messages:          []interfaces.Message{{Role: "user", Content: user}},
		Model:             g.model,
		SystemInstruction: system,
		ThinkingLevel:     "minimal",
		OutputSchema:      documentarySchema,
		JSONOutput:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate documentary: %w", err)
	}

	var doc models.Documentary
	if err := decodeJSON(resp.Text, &doc); err != nil {
		g.logger.Warn().Str("output", truncate(resp.Text, 800)).Msg("Unparseable documentary output")
		return nil, fmt.Errorf("generate documentary: %w", err)
	}

	g.logger.Debug().
		Str("title", doc.Title).
		Int("timeline", len(doc.Timeline)).
		Msg("Documentary generated")

	return &doc, nil
}

func generatorSystemPrompt() (string, error) {
	schema, err := json.MarshalIndent(documentarySchema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}
	return strings.Join([]string{
		"You are a music documentarian AI. Given a band or music topic, produce a concise documentary-style outline interspersing narration segments and exactly 5 notable songs.",
		"Output REQUIREMENTS:",
		"- Return ONLY a single JSON object. No prose, no markdown, no backticks.",
		`- The JSON MUST strictly conform to the following JSON Schema (names and types must match exactly). Use a single interleaved array named "timeline" whose items are narration or song objects:`,
		string(schema),
		"Additional rules:",
		"- Include a short, human-friendly title string suitable as a playlist title in the `title` field.",
		`- Each song should be suitable to search on Spotify via a helpful spotify_query string such as "Song Title artist:Band Name". Prefer including track_id and track_uri if known or when selecting from a provided catalog.`,
		`- Song "year" values are strings (e.g. "1997").`,
		"- Narration should be broken into short, TTS-friendly segments (2-5 sentences each), and reference the songs where relevant.",
		"- If a track catalog is provided by the user (described in the user input), you MUST pick all 5 songs ONLY from that catalog and include the exact track_id and track_uri for those selections.",
		"- Ensure the timeline intersperses narration and songs like a music documentary and contains exactly 5 song items.",
	}, "\n"), nil
}

func (g *Generator) userPrompt(req interfaces.GenerateRequest) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\n", req.Topic)
	b.WriteString("Goals:\n")
	b.WriteString("- Provide a short, human-friendly playlist title and place it in the 'title' field.\n")
	b.WriteString("- Provide a brief summary.\n")
	b.WriteString("- Pick exactly 5 songs that represent the topic narrative.\n")
	b.WriteString("- Create narration segments that reference songs and can be placed between songs.\n")
	b.WriteString("- Build a single interleaved timeline array mixing narration and songs.\n")
	b.WriteString("- If a catalog is provided, select songs only from it and include track_id and track_uri.\n")
	if req.NarrationTargetSecs > 0 {
		fmt.Fprintf(&b, "- Keep each narration segment to roughly %d seconds when read aloud.\n", req.NarrationTargetSecs)
	}
	b.WriteString("\nIMPORTANT: Return ONLY a single raw JSON object that validates against the provided JSON Schema. Do NOT include any extra commentary or formatting.\n")

	if s := strings.TrimSpace(req.Prompt); s != "" {
		fmt.Fprintf(&b, "\nAdditional instructions from user (apply carefully):\n%s\n", s)
	}

	if len(req.Catalog) > 0 {
		candidates := req.Catalog
		if len(candidates) > g.catalogLimit {
			candidates = candidates[:g.catalogLimit]
		}
		raw, err := json.MarshalIndent(candidates, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode catalog: %w", err)
		}
		fmt.Fprintf(&b, "\nCandidate track catalog (MUST choose ONLY from these if selecting songs):\n%s\n", raw)
	}

	return b.String(), nil
}
