package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/musicdoc/internal/services/spotify"
)

func accountsServer(t *testing.T, fail bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"acc","refresh_token":"ref","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAuthHandler(t *testing.T, fail bool) *AuthHandler {
	srv := accountsServer(t, fail)
	oauth := spotify.NewOAuth(srv.URL, spotify.Credentials{ClientID: "cid", ClientSecret: "sec"}, nil, srv.Client(), arbor.NewLogger())
	return NewAuthHandler(oauth, t.TempDir(), arbor.NewLogger())
}

func TestAuthHandler_LoginSetsStateCookie(t *testing.T) {
	h := newAuthHandler(t, false)

	rec := httptest.NewRecorder()
	h.LoginHandler(rec, httptest.NewRequest(http.MethodGet, "http://localhost:8888/login", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8888/callback", loc.Query().Get("redirect_uri"))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, stateCookieName, cookies[0].Name)
	assert.Equal(t, loc.Query().Get("state"), cookies[0].Value)
}

func TestAuthHandler_CallbackRedirects(t *testing.T) {
	h := newAuthHandler(t, false)

	rec := httptest.NewRecorder()
	h.CallbackHandler(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc", nil))
	assert.Equal(t, "/#error=state_mismatch", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.CallbackHandler(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=s1", nil))
	assert.Equal(t, "/player.html#access_token=acc&refresh_token=ref", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookieName, Value: "other"})
	rec = httptest.NewRecorder()
	h.CallbackHandler(rec, req)
	assert.Equal(t, "/#error=state_mismatch", rec.Header().Get("Location"))

	failing := newAuthHandler(t, true)
	rec = httptest.NewRecorder()
	failing.CallbackHandler(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=s1", nil))
	assert.Equal(t, "/#error=invalid_token", rec.Header().Get("Location"))
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	h := newAuthHandler(t, false)

	rec := httptest.NewRecorder()
	h.RefreshTokenHandler(rec, httptest.NewRequest(http.MethodGet, "/refresh_token?refresh_token=ref", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acc", decodeBody(t, rec)["access_token"])

	rec = httptest.NewRecorder()
	h.RefreshTokenHandler(rec, httptest.NewRequest(http.MethodGet, "/refresh_token", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_CustomFlow(t *testing.T) {
	h := newAuthHandler(t, false)

	rec := httptest.NewRecorder()
	h.CustomLoginHandler(rec, httptest.NewRequest(http.MethodGet, "/login-custom", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.CustomLoginHandler(rec, httptest.NewRequest(http.MethodGet, "/login-custom?client_id=mine&redirect_uri=https://app/cb", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "mine", loc.Query().Get("client_id"))

	rec = postJSON(t, h.ExchangeCodeHandler, "/api/exchange-code", map[string]string{"code": "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.ExchangeCodeHandler, "/api/exchange-code", map[string]string{
		"code": "abc", "client_id": "mine", "client_secret": "s", "redirect_uri": "https://app/cb",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "acc", body["access_token"])
	assert.Equal(t, "ref", body["refresh_token"])

	rec = httptest.NewRecorder()
	h.CustomRefreshHandler(rec, httptest.NewRequest(http.MethodGet, "/refresh_token-custom?refresh_token=ref&client_id=mine&client_secret=s", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acc", decodeBody(t, rec)["access_token"])
}
