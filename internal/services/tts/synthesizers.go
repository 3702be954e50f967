package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/common"
	"github.com/ternarybob/musicdoc/internal/interfaces"
	"github.com/ternarybob/musicdoc/internal/services/llm"
	"google.golang.org/genai"
)

const (
	defaultGeminiTTSModel = "gemini-2.5-flash-preview-tts"
	defaultGeminiVoice    = "Kore"
	geminiSampleRate      = 24000
	mockSampleRate        = 8000
)

// OpenAISpeaker uses the OpenAI speech endpoint and produces mp3
type OpenAISpeaker struct {
	factory *llm.ProviderFactory
	model   string
	voice   string
}

// NewOpenAISpeaker creates a speaker using the factory's OpenAI client
func NewOpenAISpeaker(factory *llm.ProviderFactory, model, voice string) *OpenAISpeaker {
	return &OpenAISpeaker{factory: factory, model: model, voice: voice}
}

func (s *OpenAISpeaker) Name() string { return "openai" }

func (s *OpenAISpeaker) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	client, err := s.factory.GetOpenAIClient()
	if err != nil {
		return nil, "", err
	}
	audio, err := client.Speech(ctx, &llm.SpeechRequest{
		Model:          s.model,
		Voice:          s.voice,
		Input:          text,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, "", err
	}
	return audio, "mp3", nil
}

// GeminiSpeaker uses Gemini audio output. The returned PCM is wrapped as wav.
type GeminiSpeaker struct {
	factory *llm.ProviderFactory
	model   string
	voice   string
}

// NewGeminiSpeaker creates a speaker using the factory's Gemini client
func NewGeminiSpeaker(factory *llm.ProviderFactory, model, voice string) *GeminiSpeaker {
	if !strings.HasPrefix(model, "gemini") {
		model = defaultGeminiTTSModel
	}
	if voice == "" || voice == "alloy" {
		voice = defaultGeminiVoice
	}
	return &GeminiSpeaker{factory: factory, model: model, voice: voice}
}

func (s *GeminiSpeaker) Name() string { return "gemini" }

func (s *GeminiSpeaker) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	client, err := s.factory.GetGeminiClient(ctx)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: s.voice},
			},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("gemini speech: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, "", fmt.Errorf("gemini speech: empty response")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return encodeWAV(part.InlineData.Data, geminiSampleRate, 1, 16), "wav", nil
		}
	}
	return nil, "", fmt.Errorf("gemini speech: no audio in response")
}

// MockSpeaker writes a short silent clip per segment
type MockSpeaker struct{}

func (MockSpeaker) Name() string { return "mock" }

func (MockSpeaker) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	return silentWAV(mockSampleRate, 500), "wav", nil
}

// NewSynthesizer picks the speaker named by tts.provider
func NewSynthesizer(config *common.Config, factory *llm.ProviderFactory, logger arbor.ILogger) (interfaces.SpeechSynthesizer, error) {
	switch strings.ToLower(config.TTS.Provider) {
	case "", "openai":
		return NewOpenAISpeaker(factory, config.TTS.Model, config.TTS.Voice), nil
	case "gemini":
		return NewGeminiSpeaker(factory, config.TTS.Model, config.TTS.Voice), nil
	case "mock":
		logger.Warn().Msg("Using mock narration synthesizer (silent audio)")
		return MockSpeaker{}, nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", config.TTS.Provider)
	}
}
