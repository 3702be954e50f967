package app

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/common"
	"github.com/ternarybob/musicdoc/internal/handlers"
	"github.com/ternarybob/musicdoc/internal/jobs"
	"github.com/ternarybob/musicdoc/internal/services/documentary"
	"github.com/ternarybob/musicdoc/internal/services/llm"
	"github.com/ternarybob/musicdoc/internal/services/narrative"
	"github.com/ternarybob/musicdoc/internal/services/scheduler"
	"github.com/ternarybob/musicdoc/internal/services/spotify"
	"github.com/ternarybob/musicdoc/internal/services/tts"
	"github.com/ternarybob/musicdoc/internal/storage"
	"github.com/ternarybob/musicdoc/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager *badger.Manager

	// Services
	Catalog            *spotify.Client
	OAuth              *spotify.OAuth
	LLMFactory         *llm.ProviderFactory
	Planner            *narrative.Planner
	Generator          *narrative.Generator
	Narration          *tts.Service
	JobManager         *jobs.Manager
	DocumentaryService *documentary.Service
	SchedulerService   *scheduler.Service

	// HTTP handlers
	APIHandler          *handlers.APIHandler
	DocumentaryHandler  *handlers.DocumentaryHandler
	JobHandler          *handlers.JobHandler
	JobStreamHandler    *handlers.JobStreamHandler
	JobWebSocketHandler *handlers.JobWebSocketHandler
	PlaylistHandler     *handlers.PlaylistHandler
	CatalogHandler      *handlers.CatalogHandler
	AuthHandler         *handlers.AuthHandler
	TTSHandler          *handlers.TTSHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if app.SchedulerService != nil {
		if err := app.SchedulerService.Start(); err != nil {
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	logger.Info().
		Str("llm_provider", string(cfg.LLM.DefaultProvider)).
		Bool("llm_configured", cfg.HasLLMCredential()).
		Str("tts_provider", cfg.TTS.Provider).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens the playlist store
func (a *App) initDatabase() error {
	manager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.StorageManager = manager
	a.Logger.Debug().Str("path", a.Config.Storage.Badger.Path).Msg("Storage initialized")
	return nil
}

func (a *App) initServices() error {
	cfg := a.Config

	catalogTimeout := parseDuration(cfg.Spotify.Timeout, spotify.DefaultTimeout)
	a.Catalog = spotify.NewClient(
		spotify.WithBaseURL(cfg.Spotify.APIBaseURL),
		spotify.WithHTTPClient(&http.Client{Timeout: catalogTimeout}),
		spotify.WithRateLimit(cfg.Spotify.RateLimit),
		spotify.WithSearchLimit(cfg.Pipeline.SearchLimit),
		spotify.WithLogger(a.Logger),
	)
	a.OAuth = spotify.NewOAuth(
		cfg.Spotify.AccountsURL,
		spotify.Credentials{ClientID: cfg.Spotify.ClientID, ClientSecret: cfg.Spotify.ClientSecret},
		cfg.Spotify.Scopes,
		&http.Client{Timeout: catalogTimeout},
		a.Logger,
	)
	if cfg.Spotify.ClientID == "" {
		a.Logger.Warn().Msg("Spotify client credentials not configured, /login is unavailable")
	}

	a.LLMFactory = llm.NewProviderFactory(cfg, a.Logger)
	if !cfg.HasLLMCredential() {
		a.Logger.Warn().
			Str("provider", string(cfg.LLM.DefaultProvider)).
			Msg("No LLM credential configured, documentary submissions will be rejected")
	}
	a.Planner = narrative.NewPlanner(a.LLMFactory, cfg.LLM.PlannerModel, a.Logger)
	a.Generator = narrative.NewGenerator(a.LLMFactory, cfg.LLM.GeneratorModel, cfg.Pipeline.CatalogLimit, a.Logger)

	synth, err := tts.NewSynthesizer(cfg, a.LLMFactory, a.Logger)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.TTS.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create tts output dir: %w", err)
	}
	a.Narration = tts.NewService(synth, cfg.TTS.OutputDir, cfg.TTS.URLPrefix, cfg.TTS.Concurrency, a.Logger)

	a.JobManager = jobs.NewManager(jobs.NewMemoryStore(), a.Logger)

	a.DocumentaryService = documentary.NewService(documentary.Dependencies{
		Jobs:      a.JobManager,
		Catalog:   a.Catalog,
		Planner:   a.Planner,
		Generator: a.Generator,
		Narration: a.Narration,
		Playlists: a.StorageManager.PlaylistStorage(),
	}, cfg, a.Logger)

	if cfg.Jobs.StatsEnabled {
		a.SchedulerService = scheduler.NewService(a.Logger)
		if err := a.SchedulerService.RegisterStatsReporter(cfg.Jobs.StatsSchedule, a.JobManager); err != nil {
			return fmt.Errorf("failed to register job stats reporter: %w", err)
		}
	}

	return nil
}

func (a *App) initHandlers() {
	cfg := a.Config

	a.APIHandler = handlers.NewAPIHandler(cfg, a.Logger)
	a.DocumentaryHandler = handlers.NewDocumentaryHandler(a.DocumentaryService, a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.JobManager, a.Logger)
	a.JobStreamHandler = handlers.NewJobStreamHandler(a.JobManager, handlers.DefaultHeartbeatInterval, a.Logger)
	a.JobWebSocketHandler = handlers.NewJobWebSocketHandler(a.JobManager, handlers.DefaultHeartbeatInterval, a.Logger)
	a.PlaylistHandler = handlers.NewPlaylistHandler(a.StorageManager.PlaylistStorage(), cfg.Playlists.InitialID, a.Logger)
	a.CatalogHandler = handlers.NewCatalogHandler(a.Catalog, cfg.Spotify.DefaultMarket, a.Logger)
	a.AuthHandler = handlers.NewAuthHandler(a.OAuth, cfg.Server.StaticDir, a.Logger)
	a.TTSHandler = handlers.NewTTSHandler(a.Narration, a.Logger)
}

// Close stops background work and releases storage. Running pipelines are
// given until the deadline to finish.
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.DocumentaryService != nil {
		done := make(chan struct{})
		go func() {
			a.DocumentaryService.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			a.Logger.Warn().Msg("Documentary jobs still running at shutdown")
		}
	}

	if a.LLMFactory != nil {
		if err := a.LLMFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM providers")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
