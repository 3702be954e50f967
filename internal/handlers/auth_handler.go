package handlers

import (
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/services/spotify"
)

const stateCookieName = "spotify_auth_state"

// AuthHandler runs the browser OAuth flows for the catalog player
type AuthHandler struct {
	oauth     *spotify.OAuth
	staticDir string
	logger    arbor.ILogger
}

func NewAuthHandler(oauth *spotify.OAuth, staticDir string, logger arbor.ILogger) *AuthHandler {
	return &AuthHandler{
		oauth:     oauth,
		staticDir: staticDir,
		logger:    logger,
	}
}

// redirectURI prefers the URI supplied by the frontend, else this host's /callback
func redirectURI(r *http.Request) string {
	if uri := r.URL.Query().Get("redirect_uri"); uri != "" {
		return uri
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + "/callback"
}

func fragmentRedirect(w http.ResponseWriter, r *http.Request, path string, values url.Values) {
	http.Redirect(w, r, path+"#"+values.Encode(), http.StatusFound)
}

// LoginHandler redirects to the authorize page with the server credentials
func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	authURL, state := h.oauth.LoginURL(redirectURI(r))
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// CallbackHandler exchanges the authorization code and hands tokens to the player in the URL fragment
func (h *AuthHandler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")

	if state == "" {
		fragmentRedirect(w, r, "/", url.Values{"error": {"state_mismatch"}})
		return
	}

	// Custom-credential logins finish client side via /api/exchange-code
	if custom, err := spotify.DecodeCustomState(state); err == nil {
		fragmentRedirect(w, r, "/", url.Values{
			"code":         {code},
			"redirect_uri": {custom.RedirectURI},
		})
		return
	}

	if cookie, err := r.Cookie(stateCookieName); err == nil && cookie.Value != "" && cookie.Value != state {
		fragmentRedirect(w, r, "/", url.Values{"error": {"state_mismatch"}})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	tokens, err := h.oauth.Exchange(r.Context(), code, redirectURI(r), nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Auth callback failed")
		fragmentRedirect(w, r, "/", url.Values{"error": {"invalid_token"}})
		return
	}

	h.logger.Debug().Msg("Auth callback ok")
	fragmentRedirect(w, r, "/player.html", url.Values{
		"access_token":  {tokens.AccessToken},
		"refresh_token": {tokens.RefreshToken},
	})
}

// RefreshTokenHandler serves GET /refresh_token?refresh_token=
func (h *AuthHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	tokens, err := h.oauth.Refresh(r.Context(), r.URL.Query().Get("refresh_token"), nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Token refresh failed")
		WriteError(w, http.StatusBadRequest, "Error refreshing token")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"access_token": tokens.AccessToken})
}

// CustomLoginHandler serves GET /login-custom?client_id=&redirect_uri=
func (h *AuthHandler) CustomLoginHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		WriteError(w, http.StatusBadRequest, "Missing client_id")
		return
	}

	authURL, err := h.oauth.CustomLoginURL(clientID, redirectURI(r))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// ExchangeCodeHandler serves POST /api/exchange-code with caller-supplied credentials
func (h *AuthHandler) ExchangeCodeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Code         string `json:"code"`
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		RedirectURI  string `json:"redirect_uri"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Code == "" || req.ClientID == "" || req.ClientSecret == "" || req.RedirectURI == "" {
		WriteError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	tokens, err := h.oauth.Exchange(r.Context(), req.Code, req.RedirectURI, &spotify.Credentials{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	})
	if err != nil {
		WriteError(w, http.StatusBadGateway, "Failed to exchange code for token")
		return
	}

	WriteJSON(w, http.StatusOK, tokens)
}

// CustomRefreshHandler serves GET /refresh_token-custom?refresh_token=&client_id=&client_secret=
func (h *AuthHandler) CustomRefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	refreshToken := q.Get("refresh_token")
	clientID := q.Get("client_id")
	clientSecret := q.Get("client_secret")
	if refreshToken == "" || clientID == "" || clientSecret == "" {
		WriteError(w, http.StatusBadRequest, "Missing parameters")
		return
	}

	tokens, err := h.oauth.Refresh(r.Context(), refreshToken, &spotify.Credentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("Custom token refresh failed")
		WriteError(w, http.StatusInternalServerError, "Failed to refresh token")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"access_token": tokens.AccessToken})
}

// PlayerHandler serves the player page shortcut
func (h *AuthHandler) PlayerHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	http.ServeFile(w, r, filepath.Join(h.staticDir, "player.html"))
}
