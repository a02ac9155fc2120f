package credentials

import (
	"log/slog"

	"github.com/google/uuid"
)

// Storage keys. Session id and CSRF token live in the session scope, the
// auth token and user id in the durable one.
const (
	keySessionID = "session_id"
	keyCSRFToken = "csrf_token"
	keyAuthToken = "auth_token"
	keyUserID    = "user_id"
)

// Store exposes typed accessors over the two storage scopes. No accessor
// returns an error: storage failures are logged at debug level and degrade
// to the absent value on reads and to a no-op on writes.
type Store struct {
	durable Scope
	session Scope
	logger  *slog.Logger
}

// NewStore creates a Store over the given scopes. A nil logger falls back to
// slog.Default().
func NewStore(durable, session Scope, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{durable: durable, session: session, logger: logger}
}

// SessionID returns the current session id, minting and persisting a fresh
// UUID when none exists. It never returns an empty value: if the scope cannot
// persist the id, the freshly minted one is still returned and subsequent
// calls mint again.
func (s *Store) SessionID() string {
	if id := s.get(s.session, keySessionID); id != "" {
		return id
	}
	id := uuid.New().String()
	s.set(s.session, keySessionID, id)
	return id
}

// RegenerateSessionID discards the current session id and returns a fresh
// one. The returned id always differs from the previous value.
func (s *Store) RegenerateSessionID() string {
	s.delete(s.session, keySessionID)
	return s.SessionID()
}

// ClearSessionID removes the stored session id.
func (s *Store) ClearSessionID() {
	s.delete(s.session, keySessionID)
}

// AuthToken returns the stored auth token, or "" when absent.
func (s *Store) AuthToken() string {
	return s.get(s.durable, keyAuthToken)
}

// SetAuthToken stores the auth token in durable storage.
func (s *Store) SetAuthToken(token string) {
	s.set(s.durable, keyAuthToken, token)
}

// RemoveAuthToken removes the stored auth token.
func (s *Store) RemoveAuthToken() {
	s.delete(s.durable, keyAuthToken)
}

// UserID returns the stored user id, or "" when absent.
func (s *Store) UserID() string {
	return s.get(s.durable, keyUserID)
}

// SetUserID stores the user id in durable storage.
func (s *Store) SetUserID(userID string) {
	s.set(s.durable, keyUserID, userID)
}

// RemoveUserID removes the stored user id.
func (s *Store) RemoveUserID() {
	s.delete(s.durable, keyUserID)
}

// CSRFToken returns the stored CSRF token, or "" when absent.
func (s *Store) CSRFToken() string {
	return s.get(s.session, keyCSRFToken)
}

// SetCSRFToken stores the CSRF token in session storage.
func (s *Store) SetCSRFToken(token string) {
	s.set(s.session, keyCSRFToken, token)
}

// RemoveCSRFToken removes the stored CSRF token.
func (s *Store) RemoveCSRFToken() {
	s.delete(s.session, keyCSRFToken)
}

// ClearAuth removes the auth token and user id together. The session id and
// CSRF token are untouched.
func (s *Store) ClearAuth() {
	s.delete(s.durable, keyAuthToken)
	s.delete(s.durable, keyUserID)
}

func (s *Store) get(scope Scope, key string) string {
	value, err := scope.Get(key)
	if err != nil {
		s.logger.Debug("credential read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return value
}

func (s *Store) set(scope Scope, key, value string) {
	if err := scope.Set(key, value); err != nil {
		s.logger.Debug("credential write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Store) delete(scope Scope, key string) {
	if err := scope.Delete(key); err != nil {
		s.logger.Debug("credential delete failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
