package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/minirag/supportchat/internal/backend"
	"github.com/minirag/supportchat/internal/domain"
)

// maxQueryLen mirrors the backend's validation limit on query text; queries
// over it are rejected locally before any network call.
const maxQueryLen = 5000

// genericFallback is shown when a failure carries no usable message.
const genericFallback = "Something went wrong. Please try again."

// Recorder mirrors appended messages into a transcript archive. Implementers
// must be best-effort: recording failures never surface into a flow.
type Recorder interface {
	RecordMessage(ctx context.Context, sessionID string, msg Message)
}

// TokenEstimator estimates the token count of outgoing query text.
type TokenEstimator interface {
	Count(text string) (int, error)
}

// Config carries the orchestrator's collaborators and tuning. Recorder and
// Estimator are optional; zero ChunkSize/OverlapSize defer to the backend
// defaults.
type Config struct {
	ProjectID   int
	ChunkSize   int
	OverlapSize int
	Recorder    Recorder
	Estimator   TokenEstimator
	Logger      *slog.Logger

	// Now and NewID exist for deterministic tests; both default to the
	// obvious implementations.
	Now   func() time.Time
	NewID func() string
}

// Orchestrator turns user actions into backend calls and store transitions.
// Within one flow, steps are strictly sequential; across flows no ordering is
// guaranteed and the store's loading flag means "at least one flow running".
// A failed step terminates its flow; there is no automatic retry here beyond
// what the gateway already performs, and no partial rollback.
type Orchestrator struct {
	store   *Store
	backend *backend.Client
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewOrchestrator creates an orchestrator over the given store and backend
// client.
func NewOrchestrator(store *Store, client *backend.Client, cfg Config) *Orchestrator {
	o := &Orchestrator{
		store:   store,
		backend: client,
		cfg:     cfg,
		logger:  cfg.Logger,
		now:     cfg.Now,
		newID:   cfg.NewID,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.New().String() }
	}
	return o
}

// SendText runs the send-text flow: the user's message is appended before any
// network activity so it is visible regardless of the outcome, then the
// backend is queried and the answer (or failure) lands in the store.
func (o *Orchestrator) SendText(ctx context.Context, text string) error {
	o.append(ctx, Message{
		ID:        o.newID(),
		Role:      RoleUser,
		Content:   text,
		CreatedAt: o.now(),
		Status:    StatusSent,
	})

	o.store.SetLoading(true)
	defer o.store.SetLoading(false)

	if o.cfg.Estimator != nil {
		if count, err := o.cfg.Estimator.Count(text); err == nil {
			o.logger.Debug("estimated query tokens", slog.Int("tokens", count))
		}
	}
	if len(text) > maxQueryLen {
		err := &domain.APIError{
			Type:   domain.ErrorTypeInvalidRequest,
			Detail: fmt.Sprintf("query exceeds the %d character limit", maxQueryLen),
		}
		o.store.SetError(err.Detail)
		return err
	}

	resp, err := o.backend.Query(ctx, backend.QueryRequest{
		ProjectID: o.cfg.ProjectID,
		Query:     text,
	})
	if err != nil {
		o.store.SetError(failureMessage(err))
		o.logger.Error("query failed", slog.String("error", err.Error()))
		return err
	}

	o.append(ctx, o.assistantMessage(resp))
	return nil
}

// UploadFile runs the three-step ingestion saga: upload, process, confirm.
// A system-message breadcrumb narrates each transition. A failure at either
// network step sets the error state and appends the failure breadcrumb; the
// flow stops there without retracting earlier breadcrumbs.
func (o *Orchestrator) UploadFile(ctx context.Context, filename string, content io.Reader) error {
	o.store.SetLoading(true)
	o.store.ClearError()
	defer o.store.SetLoading(false)

	o.appendSystem(ctx, fmt.Sprintf("Uploading %s...", filename))

	upload, err := o.backend.UploadDocument(ctx, o.cfg.ProjectID, filename, content)
	if err != nil {
		return o.failIngestion(ctx, filename, err)
	}

	o.appendSystem(ctx, fmt.Sprintf("File uploaded. Processing %s...", filename))

	_, err = o.backend.ProcessAsset(ctx, o.cfg.ProjectID, upload.AssetID, o.cfg.ChunkSize, o.cfg.OverlapSize)
	if err != nil {
		return o.failIngestion(ctx, filename, err)
	}

	o.appendSystem(ctx, fmt.Sprintf("%s processed and indexed successfully.", filename))
	return nil
}

func (o *Orchestrator) failIngestion(ctx context.Context, filename string, err error) error {
	o.store.SetError(failureMessage(err))
	o.appendSystem(ctx, fmt.Sprintf("Failed to process %s.", filename))
	o.logger.Error("ingestion failed",
		slog.String("filename", filename),
		slog.String("error", err.Error()),
	)
	return err
}

// assistantMessage maps a query response into an assistant message. Each
// retrieved chunk becomes one citation; the similarity score passes through
// unmodified, and the top score doubles as the overall confidence.
func (o *Orchestrator) assistantMessage(resp *backend.QueryResponse) Message {
	msg := Message{
		ID:        o.newID(),
		Role:      RoleAssistant,
		Content:   resp.Response,
		CreatedAt: o.now(),
		Status:    StatusSent,
	}

	for _, chunk := range resp.RetrievedChunks {
		msg.Citations = append(msg.Citations, Citation{
			Title:     citationTitle(chunk),
			URL:       citationURL(chunk),
			Relevance: chunk.SimilarityScore,
		})
		if msg.Confidence == nil || chunk.SimilarityScore > *msg.Confidence {
			score := chunk.SimilarityScore
			msg.Confidence = &score
		}
	}

	return msg
}

func (o *Orchestrator) appendSystem(ctx context.Context, content string) {
	o.append(ctx, Message{
		ID:        o.newID(),
		Role:      RoleSystem,
		Content:   content,
		CreatedAt: o.now(),
		Status:    StatusSent,
	})
}

func (o *Orchestrator) append(ctx context.Context, msg Message) {
	o.store.AppendMessage(msg)
	if o.cfg.Recorder != nil {
		o.cfg.Recorder.RecordMessage(ctx, o.store.Snapshot().SessionID, msg)
	}
}

func citationTitle(chunk backend.RetrievedChunk) string {
	if title, ok := chunk.Metadata["title"].(string); ok && title != "" {
		return title
	}
	if filename, ok := chunk.Metadata["filename"].(string); ok && filename != "" {
		return filename
	}
	return fmt.Sprintf("Document %d", chunk.AssetID)
}

func citationURL(chunk backend.RetrievedChunk) string {
	if url, ok := chunk.Metadata["url"].(string); ok && url != "" {
		return url
	}
	if source, ok := chunk.Metadata["source"].(string); ok && source != "" {
		return source
	}
	return ""
}

// failureMessage extracts a printable message from a flow failure, preferring
// the backend-provided detail over the generic fallback.
func failureMessage(err error) string {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return genericFallback
}
