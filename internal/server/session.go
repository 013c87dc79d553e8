package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/oauth2"
)

const sessionName = "bettervisuals"

// Session value keys.
const (
	sessionKeyUserID       = "user_id"
	sessionKeyUserEmail    = "user_email"
	sessionKeyUserName     = "user_name"
	sessionKeyOAuthState   = "oauth_state"
	sessionKeySpotifyState = "spotify_state"
	sessionKeySpotifyToken = "spotify_token"
)

// NewSessionStore creates the cookie session store used for sign-in state.
func NewSessionStore(secretKey string) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secretKey))
	store.MaxAge(86400 * 30)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	return store
}

// session fetches the request's session. A cookie that fails to decode
// (rotated secret, tampering) yields a fresh session rather than an error.
func (h *Handlers) session(r *http.Request) *sessions.Session {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		h.logger.Debug("session decode failed, starting fresh", "error", err)
	}
	return session
}

func sessionString(session *sessions.Session, key string) string {
	if v, ok := session.Values[key].(string); ok {
		return v
	}
	return ""
}

// spotifyToken reads the stored Spotify token out of the session, or nil if
// the user has not authorized yet.
func spotifyToken(session *sessions.Session) *oauth2.Token {
	raw := sessionString(session, sessionKeySpotifyToken)
	if raw == "" {
		return nil
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil
	}
	return &token
}

// storeSpotifyToken writes the Spotify token into the session values. The
// caller is responsible for saving the session.
func storeSpotifyToken(session *sessions.Session, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	session.Values[sessionKeySpotifyToken] = string(data)
	return nil
}
