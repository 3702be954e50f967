package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Spotify     SpotifyConfig   `toml:"spotify"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	OpenAI      OpenAIConfig    `toml:"openai"`
	LLM         LLMConfig       `toml:"llm"`
	TTS         TTSConfig       `toml:"tts"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Jobs        JobsConfig      `toml:"jobs"`
	Playlists   PlaylistsConfig `toml:"playlists"`
}

type ServerConfig struct {
	Port        int    `toml:"port"`
	Host        string `toml:"host"`
	StaticDir   string `toml:"static_dir"`   // Browser player assets, served at "/" when present
	ClientDebug bool   `toml:"client_debug"` // Exposed to the player via /config.js
}

type StorageConfig struct {
	DataDir string       `toml:"data_dir"` // Runtime data root (playlists, tts audio)
	Badger  BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	InMemory       bool   `toml:"in_memory"`        // Keep everything in memory (tests)
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// SpotifyConfig contains catalog API and OAuth application settings
type SpotifyConfig struct {
	ClientID      string   `toml:"client_id"`
	ClientSecret  string   `toml:"client_secret"`
	RedirectURI   string   `toml:"redirect_uri"`
	APIBaseURL    string   `toml:"api_base_url"`
	AccountsURL   string   `toml:"accounts_url"`
	RateLimit     int      `toml:"rate_limit"` // Requests per second across all callers
	Timeout       string   `toml:"timeout"`    // HTTP timeout per request
	DefaultMarket string   `toml:"default_market"`
	Scopes        []string `toml:"scopes"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// OpenAIConfig contains OpenAI API configuration (chat completions and speech)
type OpenAIConfig struct {
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the provider used by the planner and generator
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
	PlannerModel    string      `toml:"planner_model"`   // Empty uses the provider default
	GeneratorModel  string      `toml:"generator_model"` // Empty uses the provider default
	MaxRetries      int         `toml:"max_retries"`     // Retries on provider rate limits (0 disables)
}

// TTSConfig contains narration synthesis settings
type TTSConfig struct {
	Provider    string `toml:"provider"` // "openai", "gemini" or "mock"
	OutputDir   string `toml:"output_dir"`
	URLPrefix   string `toml:"url_prefix"`
	Model       string `toml:"model"`
	Voice       string `toml:"voice"`
	Concurrency int    `toml:"concurrency"`
}

// PipelineConfig contains documentary pipeline settings
type PipelineConfig struct {
	CallTimeout        string `toml:"call_timeout"` // Per external call (catalog, LLM, storage)
	TTSTimeout         string `toml:"tts_timeout"`  // Whole narration batch
	BackupDesiredCount int    `toml:"backup_desired_count"`
	CatalogLimit       int    `toml:"catalog_limit"` // Max candidate tracks handed to the generator
	SearchLimit        int    `toml:"search_limit"`  // Results requested per required-track search
}

// JobsConfig contains job manager settings
type JobsConfig struct {
	StatsEnabled  bool   `toml:"stats_enabled"`
	StatsSchedule string `toml:"stats_schedule"` // Cron expression (with seconds)
}

// PlaylistsConfig contains playlist settings
type PlaylistsConfig struct {
	InitialID string `toml:"initial_id"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:      8888,
			Host:      "localhost",
			StaticDir: "./public",
		},
		Storage: StorageConfig{
			DataDir: "./data",
			Badger: BadgerConfig{
				Path: "./data/playlists",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Spotify: SpotifyConfig{
			RedirectURI:   "http://localhost:8888/callback",
			APIBaseURL:    "https://api.spotify.com/v1",
			AccountsURL:   "https://accounts.spotify.com",
			RateLimit:     10,
			Timeout:       "30s",
			DefaultMarket: "US",
			Scopes: []string{
				"streaming",
				"user-read-email",
				"user-read-private",
				"user-read-playback-state",
				"user-modify-playback-state",
			},
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   8192,
			Temperature: 0.7,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-5-mini",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderOpenAI,
			MaxRetries:      0, // External calls are not retried by default
		},
		TTS: TTSConfig{
			Provider:    "openai",
			URLPrefix:   "/tts/",
			Model:       "gpt-4o-mini-tts",
			Voice:       "alloy",
			Concurrency: 3,
		},
		Pipeline: PipelineConfig{
			CallTimeout:        "2m",
			TTSTimeout:         "10m",
			BackupDesiredCount: 50,
			CatalogLimit:       500,
			SearchLimit:        5,
		},
		Jobs: JobsConfig{
			StatsEnabled:  true,
			StatsSchedule: "0 */5 * * * *", // Every 5 minutes
		},
		Playlists: PlaylistsConfig{
			InitialID: "0vz2mkarftsamg4aqnov",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> .env -> env.
// CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Later files override earlier ones
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// .env never overrides variables already present in the environment
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	applyEnvOverrides(config)
	config.resolvePaths()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// MUSICDOC_* names take precedence over the legacy unprefixed names.
func applyEnvOverrides(config *Config) {
	if env := firstEnv("MUSICDOC_ENV", "NODE_ENV", "GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := firstEnv("MUSICDOC_SERVER_PORT", "PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MUSICDOC_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if dir := os.Getenv("MUSICDOC_STATIC_DIR"); dir != "" {
		config.Server.StaticDir = dir
	}
	if envFlag("CLIENT_DEBUG") || envFlag("DEBUG") {
		config.Server.ClientDebug = true
	}

	// Storage
	if dir := firstEnv("MUSICDOC_DATA_DIR", "RUNTIME_DATA_DIR"); dir != "" {
		config.Storage.DataDir = dir
		config.Storage.Badger.Path = filepath.Join(dir, "playlists")
	}
	if path := os.Getenv("MUSICDOC_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Logging
	if level := os.Getenv("MUSICDOC_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if envFlag("SERVER_DEBUG") || envFlag("DEBUG") {
		config.Logging.Level = "debug"
	}
	if output := os.Getenv("MUSICDOC_LOG_OUTPUT"); output != "" {
		var outputs []string
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Spotify
	if v := firstEnv("MUSICDOC_SPOTIFY_CLIENT_ID", "CLIENT_ID"); v != "" {
		config.Spotify.ClientID = v
	}
	if v := firstEnv("MUSICDOC_SPOTIFY_CLIENT_SECRET", "CLIENT_SECRET"); v != "" {
		config.Spotify.ClientSecret = v
	}
	if v := firstEnv("MUSICDOC_SPOTIFY_REDIRECT_URI", "REDIRECT_URI"); v != "" {
		config.Spotify.RedirectURI = v
	}
	if v := os.Getenv("MUSICDOC_SPOTIFY_API_BASE_URL"); v != "" {
		config.Spotify.APIBaseURL = v
	}

	// LLM providers
	if v := firstEnv("MUSICDOC_OPENAI_API_KEY", "OPENAI_API_KEY"); v != "" {
		config.OpenAI.APIKey = v
	}
	if v := firstEnv("MUSICDOC_GEMINI_API_KEY", "GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
	if v := firstEnv("MUSICDOC_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("MUSICDOC_LLM_PROVIDER"); v != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(v))
	}

	// TTS
	if v := firstEnv("MUSICDOC_TTS_MODEL", "OPENAI_TTS_MODEL"); v != "" {
		config.TTS.Model = v
	}
	if v := firstEnv("MUSICDOC_TTS_VOICE", "OPENAI_TTS_VOICE"); v != "" {
		config.TTS.Voice = v
	}
	if v := firstEnv("MUSICDOC_TTS_OUTPUT_DIR", "TTS_OUTPUT_DIR"); v != "" {
		config.TTS.OutputDir = v
	}
	if v := os.Getenv("MUSICDOC_TTS_PROVIDER"); v != "" {
		config.TTS.Provider = strings.ToLower(v)
	}
	if envFlag("MOCK_TTS") {
		config.TTS.Provider = "mock"
	}

	// Pipeline
	if v := os.Getenv("MUSICDOC_CALL_TIMEOUT"); v != "" {
		config.Pipeline.CallTimeout = v
	}
}

// resolvePaths fills paths derived from the data directory
func (c *Config) resolvePaths() {
	if c.TTS.OutputDir == "" {
		c.TTS.OutputDir = filepath.Join(c.Storage.DataDir, "tts")
	}
	if !strings.HasSuffix(c.TTS.URLPrefix, "/") {
		c.TTS.URLPrefix += "/"
	}
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"pipeline.call_timeout": c.Pipeline.CallTimeout,
		"pipeline.tts_timeout":  c.Pipeline.TTSTimeout,
		"spotify.timeout":       c.Spotify.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}

	if c.Jobs.StatsEnabled {
		if err := ValidateCronSchedule(c.Jobs.StatsSchedule); err != nil {
			return fmt.Errorf("invalid jobs.stats_schedule: %w", err)
		}
	}

	switch c.LLM.DefaultProvider {
	case LLMProviderOpenAI, LLMProviderGemini, LLMProviderClaude:
	default:
		return fmt.Errorf("unknown llm.default_provider %q", c.LLM.DefaultProvider)
	}

	return nil
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ValidateCronSchedule parses a six-field (seconds first) cron expression
func ValidateCronSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// LLMAPIKey returns the credential for the configured default provider
func (c *Config) LLMAPIKey() string {
	switch c.LLM.DefaultProvider {
	case LLMProviderGemini:
		return c.Gemini.APIKey
	case LLMProviderClaude:
		return c.Claude.APIKey
	default:
		return c.OpenAI.APIKey
	}
}

// HasLLMCredential reports whether the pipeline can reach its LLM provider
func (c *Config) HasLLMCredential() bool {
	return c.LLMAPIKey() != ""
}

// CallTimeout returns the parsed per-call timeout
func (c *Config) CallTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Pipeline.CallTimeout)
	return d
}

// TTSTimeout returns the parsed narration batch timeout
func (c *Config) TTSTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Pipeline.TTSTimeout)
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// envFlag treats "1" and any strconv-true value as set
func envFlag(name string) bool {
	v := os.Getenv(name)
	if v == "" {
		return false
	}
	if v == "1" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
