package archive

import (
	"context"
	"testing"
	"time"

	"github.com/minirag/supportchat/internal/conversation"
)

func TestRecordMessage_RoundTrip(t *testing.T) {
	store, err := Open("file:archmem1?mode=memory&cache=shared", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	confidence := 0.95

	store.RecordMessage(context.Background(), "sess-1", conversation.Message{
		ID:        "msg-1",
		Role:      conversation.RoleUser,
		Content:   "What is the return policy?",
		Status:    conversation.StatusSent,
		CreatedAt: base,
	})
	store.RecordMessage(context.Background(), "sess-1", conversation.Message{
		ID:        "msg-2",
		Role:      conversation.RoleAssistant,
		Content:   "Our policy allows 30-day returns.",
		Status:    conversation.StatusSent,
		CreatedAt: base.Add(time.Second),
		Citations: []conversation.Citation{
			{Title: "Return Policy", URL: "https://x/returns", Relevance: 0.95},
		},
		Confidence: &confidence,
	})

	messages, err := store.Messages(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Messages count = %d, want 2", len(messages))
	}

	if messages[0].ID != "msg-1" || messages[1].ID != "msg-2" {
		t.Errorf("message order = %q, %q; want msg-1, msg-2", messages[0].ID, messages[1].ID)
	}
	if messages[1].Role != conversation.RoleAssistant {
		t.Errorf("Role = %v, want assistant", messages[1].Role)
	}
	if len(messages[1].Citations) != 1 {
		t.Fatalf("Citations count = %d, want 1", len(messages[1].Citations))
	}
	if got := messages[1].Citations[0]; got.Title != "Return Policy" || got.Relevance != 0.95 {
		t.Errorf("citation = %+v, want {Return Policy https://x/returns 0.95}", got)
	}
}

func TestRecordMessage_SeparatesSessions(t *testing.T) {
	store, err := Open("file:archmem2?mode=memory&cache=shared", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	now := time.Now().UTC()
	store.RecordMessage(context.Background(), "sess-a", conversation.Message{ID: "a1", Role: conversation.RoleUser, Content: "a", Status: conversation.StatusSent, CreatedAt: now})
	store.RecordMessage(context.Background(), "sess-b", conversation.Message{ID: "b1", Role: conversation.RoleUser, Content: "b", Status: conversation.StatusSent, CreatedAt: now})

	got, err := store.Messages(context.Background(), "sess-a")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("sess-a messages = %v, want only a1", got)
	}
}

func TestRecordMessage_EmptySessionIgnored(t *testing.T) {
	store, err := Open("file:archmem3?mode=memory&cache=shared", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	// Must not panic or write anything
	store.RecordMessage(context.Background(), "", conversation.Message{ID: "x", CreatedAt: time.Now()})

	got, err := store.Messages(context.Background(), "")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("messages recorded for empty session = %d, want 0", len(got))
	}
}

func TestDeleteSession(t *testing.T) {
	store, err := Open("file:archmem5?mode=memory&cache=shared", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	now := time.Now().UTC()
	store.RecordMessage(context.Background(), "sess-gone", conversation.Message{ID: "g1", Role: conversation.RoleUser, Content: "x", Status: conversation.StatusSent, CreatedAt: now})
	store.RecordMessage(context.Background(), "sess-kept", conversation.Message{ID: "k1", Role: conversation.RoleUser, Content: "y", Status: conversation.StatusSent, CreatedAt: now})

	if err := store.DeleteSession(context.Background(), "sess-gone"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}

	gone, err := store.Messages(context.Background(), "sess-gone")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(gone) != 0 {
		t.Errorf("deleted session messages = %d, want 0", len(gone))
	}

	kept, err := store.Messages(context.Background(), "sess-kept")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(kept) != 1 {
		t.Errorf("other session messages = %d, want 1", len(kept))
	}

	// Unknown session is a no-op
	if err := store.DeleteSession(context.Background(), "sess-unknown"); err != nil {
		t.Errorf("DeleteSession() of unknown session error = %v", err)
	}
}

func TestRecordMessage_IdempotentOnDuplicateID(t *testing.T) {
	store, err := Open("file:archmem4?mode=memory&cache=shared", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	msg := conversation.Message{ID: "dup", Role: conversation.RoleUser, Content: "x", Status: conversation.StatusSent, CreatedAt: time.Now().UTC()}
	store.RecordMessage(context.Background(), "sess-1", msg)
	store.RecordMessage(context.Background(), "sess-1", msg)

	got, err := store.Messages(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("messages = %d, want 1 (duplicate insert ignored)", len(got))
	}
}
