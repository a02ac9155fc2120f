package conversation

import "sync"

// State is an immutable snapshot of the conversation.
type State struct {
	// Messages in append order; append order is display order.
	Messages []Message

	// Loading is true while an orchestrated flow has a backend call in
	// flight. Overlapping flows share this one flag, so it means "at
	// least one flow in progress".
	Loading bool

	// LastError is the most recent failure message, or "" when none is
	// set. It is cleared only by ClearError or overwritten by SetError.
	LastError string

	// SessionID correlates this conversation with backend-side state.
	SessionID string
}

// Store is the single holder of conversation state. It is mutated only
// through the transition methods below; each transition is a pure function of
// the previous state and its arguments, with timestamps and ids supplied by
// callers. A mutex serializes transitions so flows may run on any goroutine.
type Store struct {
	mu       sync.Mutex
	state    State
	onChange func(State)
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// OnChange registers a callback invoked with a fresh snapshot after every
// transition. Used by the UI layer to re-render. Only one callback is held;
// registering replaces the previous one.
func (s *Store) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// AppendMessage adds a message to the end of the log.
func (s *Store) AppendMessage(msg Message) {
	s.transition(func(st *State) {
		st.Messages = append(st.Messages, msg)
	})
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.transition(func(st *State) {
		st.Loading = loading
	})
}

// SetError records a failure message and forces loading off.
func (s *Store) SetError(message string) {
	s.transition(func(st *State) {
		st.LastError = message
		st.Loading = false
	})
}

// ClearError clears the failure message.
func (s *Store) ClearError() {
	s.transition(func(st *State) {
		st.LastError = ""
	})
}

// ClearMessages empties the message log.
func (s *Store) ClearMessages() {
	s.transition(func(st *State) {
		st.Messages = nil
	})
}

// SetSessionID sets the session id the conversation is correlated with.
func (s *Store) SetSessionID(sessionID string) {
	s.transition(func(st *State) {
		st.SessionID = sessionID
	})
}

func (s *Store) transition(mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.snapshotLocked()
	notify := s.onChange
	s.mu.Unlock()

	// Notify outside the lock so a callback may read the store.
	if notify != nil {
		notify(snapshot)
	}
}

func (s *Store) snapshotLocked() State {
	snapshot := s.state
	snapshot.Messages = make([]Message, len(s.state.Messages))
	copy(snapshot.Messages, s.state.Messages)
	return snapshot
}
