// Package conversation holds the chat state machine: an append-only message
// log mutated through a fixed set of transitions, and the orchestrator that
// drives those transitions for each user action.
package conversation

import "time"

// Role identifies the author of a message.
type Role string

const (
	// RoleUser is a message typed by the user.
	RoleUser Role = "user"

	// RoleAssistant is a generated answer from the backend.
	RoleAssistant Role = "assistant"

	// RoleSystem is a progress breadcrumb inserted by the client itself.
	RoleSystem Role = "system"
)

// DeliveryStatus tracks a message through its send lifecycle.
type DeliveryStatus string

const (
	StatusSending DeliveryStatus = "sending"
	StatusSent    DeliveryStatus = "sent"
	StatusError   DeliveryStatus = "error"
)

// Citation points at a source document chunk backing an assistant answer.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	// Relevance is the backend's similarity score, passed through verbatim.
	Relevance float64 `json:"relevance_score"`
}

// Message is one entry in the conversation log. Messages are never mutated
// after they are appended; corrections arrive as new messages. Citations and
// Confidence are only ever set on assistant messages.
type Message struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	CreatedAt  time.Time      `json:"created_at"`
	Status     DeliveryStatus `json:"status"`
	Citations  []Citation     `json:"citations,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
}
