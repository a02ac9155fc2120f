// Package auth orchestrates login and logout against the support backend.
package auth

import (
	"context"
	"log/slog"

	"github.com/minirag/supportchat/internal/backend"
	"github.com/minirag/supportchat/internal/credentials"
)

// Session composes the backend client and credential store into the
// login/logout lifecycle. It holds no state of its own; authentication state
// lives entirely in the credential store.
type Session struct {
	backend *backend.Client
	creds   *credentials.Store
	logger  *slog.Logger
}

// NewSession creates a Session. A nil logger falls back to slog.Default().
func NewSession(client *backend.Client, creds *credentials.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{backend: client, creds: creds, logger: logger}
}

// Credentials is the outcome of a successful login.
type Credentials struct {
	Token  string
	UserID string
}

// Login fetches a CSRF token, exchanges the username and password for an
// access token, and persists both token and user id. A failed CSRF fetch is
// logged as a warning and login proceeds without it. When the backend omits
// the user id, the username stands in for it.
func (s *Session) Login(ctx context.Context, username, password string) (*Credentials, error) {
	csrf, err := s.backend.FetchCSRFToken(ctx)
	if err != nil {
		s.logger.Warn("CSRF token fetch failed, proceeding without it",
			slog.String("error", err.Error()),
		)
	} else {
		s.creds.SetCSRFToken(csrf)
	}

	resp, err := s.backend.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	userID := resp.UserID
	if userID == "" {
		userID = username
	}

	s.creds.SetAuthToken(resp.AccessToken)
	s.creds.SetUserID(userID)

	return &Credentials{Token: resp.AccessToken, UserID: userID}, nil
}

// Logout clears the auth token and user id. It is purely local: no backend
// call, and the session id is untouched. Safe to call repeatedly.
func (s *Session) Logout() {
	s.creds.ClearAuth()
}

// IsAuthenticated reports whether an auth token is currently stored. Local
// check only; it does not validate the token with the backend.
func (s *Session) IsAuthenticated() bool {
	return s.creds.AuthToken() != ""
}
