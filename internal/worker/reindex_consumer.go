package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"docsage/internal/middleware"
)

// Reindexer re-runs the ingestion pipeline for one document. Satisfied by the
// document service.
type Reindexer interface {
	ProcessReindex(ctx context.Context, documentID string) error
}

// ReindexConsumer handles ReindexTask messages from NSQ.
type ReindexConsumer struct {
	reindexer Reindexer
}

func NewReindexConsumer(r Reindexer) *ReindexConsumer {
	return &ReindexConsumer{reindexer: r}
}

func (h *ReindexConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task ReindexTask
	err := json.Unmarshal(m.Body, &task)

	correlationID := task.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if err != nil {
		slog.ErrorContext(ctx, "invalid reindex message format", "error", err)
		return nil // Don't retry invalid messages
	}
	if task.DocumentID == "" {
		slog.ErrorContext(ctx, "reindex task missing document_id, dropping")
		return nil
	}

	slog.InfoContext(ctx, "processing reindex task", "document_id", task.DocumentID)

	if err := h.reindexer.ProcessReindex(ctx, task.DocumentID); err != nil {
		slog.ErrorContext(ctx, "reindex failed", "error", err, "document_id", task.DocumentID)
		return err // Retryable: NSQ will requeue
	}

	slog.InfoContext(ctx, "reindex completed", "document_id", task.DocumentID)
	return nil
}
