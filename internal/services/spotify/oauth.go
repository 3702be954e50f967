package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/common"
	"golang.org/x/oauth2"
)

// DefaultAccountsURL is the authorization server base URL.
const DefaultAccountsURL = "https://accounts.spotify.com"

// DefaultScopes are the scopes requested for web playback.
var DefaultScopes = []string{
	"streaming",
	"user-read-email",
	"user-read-private",
	"user-read-playback-state",
	"user-modify-playback-state",
}

// Credentials identify a registered application.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// TokenResult is the token payload handed back to the browser.
type TokenResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// CustomState is the decoded state of a login started with user-supplied credentials.
type CustomState struct {
	State       string `json:"state"`
	RedirectURI string `json:"redirectUri"`
	Custom      bool   `json:"custom"`
}

// OAuth runs the authorization-code flow against the accounts service.
type OAuth struct {
	accountsURL string
	defaults    Credentials
	scopes      []string
	httpClient  *http.Client
	logger      arbor.ILogger
}

// NewOAuth creates the flow helper. defaults are the server's own credentials.
func NewOAuth(accountsURL string, defaults Credentials, scopes []string, httpClient *http.Client, logger arbor.ILogger) *OAuth {
	if accountsURL == "" {
		accountsURL = DefaultAccountsURL
	}
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &OAuth{
		accountsURL: strings.TrimRight(accountsURL, "/"),
		defaults:    defaults,
		scopes:      scopes,
		httpClient:  httpClient,
		logger:      logger,
	}
}

// HasDefaultCredentials reports whether the server credentials are configured.
func (o *OAuth) HasDefaultCredentials() bool {
	return o.defaults.ClientID != "" && o.defaults.ClientSecret != ""
}

func (o *OAuth) config(creds Credentials, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       o.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   o.accountsURL + "/authorize",
			TokenURL:  o.accountsURL + "/api/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (o *OAuth) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

// LoginURL returns the authorize URL for the server credentials and the random state it carries.
func (o *OAuth) LoginURL(redirectURI string) (authURL, state string) {
	state = strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return o.config(o.defaults, redirectURI).AuthCodeURL(state), state
}

// CustomLoginURL returns the authorize URL for a caller-supplied client id.
// The redirect URI is carried inside the base64 state.
func (o *OAuth) CustomLoginURL(clientID, redirectURI string) (string, error) {
	if clientID == "" {
		return "", fmt.Errorf("client_id is required")
	}
	raw, err := json.Marshal(CustomState{
		State:       strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		RedirectURI: redirectURI,
		Custom:      true,
	})
	if err != nil {
		return "", err
	}
	state := base64.StdEncoding.EncodeToString(raw)
	return o.config(Credentials{ClientID: clientID}, redirectURI).AuthCodeURL(state), nil
}

// DecodeCustomState parses a state produced by CustomLoginURL.
func DecodeCustomState(state string) (*CustomState, error) {
	raw, err := base64.StdEncoding.DecodeString(state)
	if err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	var cs CustomState
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if !cs.Custom {
		return nil, fmt.Errorf("state is not a custom login")
	}
	return &cs, nil
}

// Exchange trades an authorization code for tokens. Empty creds use the server credentials.
func (o *OAuth) Exchange(ctx context.Context, code, redirectURI string, creds *Credentials) (*TokenResult, error) {
	c := o.defaults
	if creds != nil {
		c = *creds
	}

	tok, err := o.config(c, redirectURI).Exchange(o.context(ctx), code)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Authorization code exchange failed")
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	o.logger.Debug().Str("token", common.MaskToken(tok.AccessToken)).Msg("Authorization code exchanged")
	return toResult(tok), nil
}

// Refresh obtains a new access token from a refresh token.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string, creds *Credentials) (*TokenResult, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh_token is required")
	}
	c := o.defaults
	if creds != nil {
		c = *creds
	}

	tok, err := o.config(c, "").TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	// Refresh responses carry only the access token to the browser.
	return &TokenResult{AccessToken: tok.AccessToken}, nil
}

func toResult(tok *oauth2.Token) *TokenResult {
	res := &TokenResult{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if !tok.Expiry.IsZero() {
		res.ExpiresIn = int(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	return res
}
