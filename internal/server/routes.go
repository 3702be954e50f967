package server

import (
	"net/http"
	"os"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Documentary jobs
	mux.HandleFunc("/api/music-doc", s.app.DocumentaryHandler.SubmitHandler) // POST
	mux.HandleFunc("/api/jobs/stats", s.app.JobHandler.GetJobStatsHandler)   // GET
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)                          // GET /{id}, /{id}/stream, /{id}/ws
	mux.HandleFunc("/api/users/", s.handleUserRoutes)                        // GET /{id}/jobs, /{id}/playlists

	// Playlists
	mux.HandleFunc("/api/playlists", s.app.PlaylistHandler.CreateHandler)                  // POST
	mux.HandleFunc("/api/playlists/", s.app.PlaylistHandler.ItemHandler)                   // GET/PATCH /{id}
	mux.HandleFunc("/api/initial-playlist", s.app.PlaylistHandler.InitialPlaylistHandler) // GET

	// Catalog passthrough
	mux.HandleFunc("/api/identify-artist", s.app.CatalogHandler.IdentifyArtistHandler)
	mux.HandleFunc("/api/artist-tracks", s.app.CatalogHandler.ArtistTracksHandler)

	// Narration
	mux.HandleFunc("/api/tts-batch", s.app.TTSHandler.BatchHandler)
	ttsFiles := http.StripPrefix(s.app.Config.TTS.URLPrefix, http.FileServer(http.Dir(s.app.Config.TTS.OutputDir)))
	mux.Handle(s.app.Config.TTS.URLPrefix, ttsFiles)

	// System
	mux.HandleFunc("/config.js", s.app.APIHandler.ConfigScriptHandler)
	mux.HandleFunc("/healthz", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	// OAuth
	mux.HandleFunc("/login", s.app.AuthHandler.LoginHandler)
	mux.HandleFunc("/callback", s.app.AuthHandler.CallbackHandler)
	mux.HandleFunc("/refresh_token", s.app.AuthHandler.RefreshTokenHandler)
	mux.HandleFunc("/login-custom", s.app.AuthHandler.CustomLoginHandler)
	mux.HandleFunc("/api/exchange-code", s.app.AuthHandler.ExchangeCodeHandler)
	mux.HandleFunc("/refresh_token-custom", s.app.AuthHandler.CustomRefreshHandler)
	mux.HandleFunc("/player", s.app.AuthHandler.PlayerHandler)

	// Player assets
	mux.HandleFunc("/", s.staticHandler())

	return mux
}

// handleJobRoutes dispatches /api/jobs/{id}[/stream|/ws]
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	if RouteByPathSuffix(w, r, "/api/jobs/", []PathSuffixRouter{
		{Suffix: "/stream", Handler: s.app.JobStreamHandler.StreamHandler},
		{Suffix: "/ws", Handler: s.app.JobWebSocketHandler.HandleWebSocket},
	}) {
		return
	}
	s.app.JobHandler.GetJobHandler(w, r)
}

// handleUserRoutes dispatches /api/users/{id}/jobs and /api/users/{id}/playlists
func (s *Server) handleUserRoutes(w http.ResponseWriter, r *http.Request) {
	if RouteByPathSuffix(w, r, "/api/users/", []PathSuffixRouter{
		{Suffix: "/jobs", Handler: s.app.JobHandler.UserJobsHandler},
		{Suffix: "/playlists", Handler: s.app.PlaylistHandler.OwnerPlaylistsHandler},
	}) {
		return
	}
	s.app.APIHandler.NotFoundHandler(w, r)
}

// staticHandler serves the player directory when it exists
func (s *Server) staticHandler() RouteHandler {
	dir := s.app.Config.Server.StaticDir
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.app.Logger.Warn().Str("dir", dir).Msg("Static directory not found, player assets disabled")
		return s.app.APIHandler.NotFoundHandler
	}

	files := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		RouteByMethod(w, r, MethodRouter{
			http.MethodGet:  files.ServeHTTP,
			http.MethodHead: files.ServeHTTP,
		})
	}
}
