// Package credentials is the single source of truth for the client's
// identity values: session id, auth token, user id, and CSRF token.
//
// Values live in two storage scopes. The durable scope survives restarts and
// holds the auth token and user id. The session scope holds the session id
// and CSRF token and is bounded by one logical session rather than the
// client's lifetime. Every accessor is fail-soft: a broken scope degrades to
// "value absent" instead of returning an error.
package credentials

import "sync"

// Scope is a flat key-value storage scope. Get returns the empty string with
// a nil error when the key is absent; errors are reserved for storage
// failures.
type Scope interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryScope is an in-process Scope. It backs the session storage scope and
// doubles as the test substitute for the durable one.
type MemoryScope struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryScope creates an empty in-memory scope.
func NewMemoryScope() *MemoryScope {
	return &MemoryScope{values: make(map[string]string)}
}

// Get returns the stored value, or "" when absent.
func (m *MemoryScope) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

// Set stores a value.
func (m *MemoryScope) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes a value. Deleting an absent key is not an error.
func (m *MemoryScope) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
