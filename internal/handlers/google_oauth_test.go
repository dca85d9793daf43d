package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"cohortboard/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func fakeGoogle(t *testing.T, info GoogleUserInfo) *GoogleProvider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(info)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewGoogleProvider(config.GoogleConfig{ClientID: "cid", ClientSecret: "secret"}, "http://board.test")
	p.oauth.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	p.userInfoURL = srv.URL + "/userinfo"
	return p
}

func TestGoogleProviderAuthCodeURL(t *testing.T) {
	p := NewGoogleProvider(config.GoogleConfig{ClientID: "cid"}, "http://board.test")
	u, err := url.Parse(p.AuthCodeURL("st"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "st", q.Get("state"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "http://board.test/auth/google/callback", q.Get("redirect_uri"))
	assert.Equal(t, "select_account", q.Get("prompt"))
}

func TestGoogleProviderExchange(t *testing.T) {
	p := fakeGoogle(t, GoogleUserInfo{
		ID: "1234", Email: "kim@example.com", VerifiedEmail: true, GivenName: "철수", Picture: "https://img.test/a.png",
	})

	id, err := p.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "1234", id.SubjectID)
	assert.Equal(t, "1234", id.GoogleID)
	assert.Equal(t, "kim@example.com", id.Email)
	assert.Equal(t, "철수", id.Name)
	assert.Equal(t, "https://img.test/a.png", id.ProfileImage)
}

func TestGoogleProviderRejectsUnverifiedEmail(t *testing.T) {
	p := fakeGoogle(t, GoogleUserInfo{ID: "1", Email: "x@example.com"})
	_, err := p.Exchange(context.Background(), "code")
	assert.ErrorContains(t, err, "not verified")
}
