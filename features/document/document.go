package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"docsage/features/job"
	"docsage/internal/checkpoint"
	"docsage/internal/config"
	"docsage/internal/middleware"
	"docsage/internal/pipeline"
	"docsage/internal/worker"
)

type Document struct {
	ID               string    `json:"id"`
	FilePath         string    `json:"file_path"`
	OriginalFilename string    `json:"original_filename"`
	ContentHash      string    `json:"-"`
	Category         string    `json:"category,omitempty"`
	Status           string    `json:"status"` // processing, completed, failed
	StoredChunks     int       `json:"stored_chunks"`
	ExtractionMethod string    `json:"extraction_method,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateOutcome(ctx context.Context, id, status, category, method string, storedChunks int) error
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Runner executes the ingestion graph. Satisfied by *pipeline.Graph.
type Runner interface {
	Run(ctx context.Context, s pipeline.State) pipeline.Result
}

type ChunkStore interface {
	DeleteChunksByFile(ctx context.Context, filePath string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo        Repository
	runner      Runner
	checkpoints checkpoint.Store
	chunkStore  ChunkStore
	pub         EventPublisher
	jobs        job.Repository
}

func NewService(repo Repository, runner Runner, checkpoints checkpoint.Store, chunkStore ChunkStore, pub EventPublisher, jobs job.Repository) *Service {
	return &Service{
		repo:        repo,
		runner:      runner,
		checkpoints: checkpoints,
		chunkStore:  chunkStore,
		pub:         pub,
		jobs:        jobs,
	}
}

// Register records an uploaded file after deduplicating on its content hash.
// The caller has already written the file to disk.
func (s *Service) Register(ctx context.Context, path, originalFilename, hash string) (*Document, error) {
	exists, err := s.repo.ExistsByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("Duplicate detected")
	}

	doc := &Document{
		FilePath:         path,
		OriginalFilename: originalFilename,
		ContentHash:      hash,
		Status:           "processing",
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Process runs the ingestion graph for a registered document, persists the
// final pipeline state under a fresh thread, and records the outcome.
func (s *Service) Process(ctx context.Context, doc *Document) (pipeline.Result, error) {
	state := pipeline.State{
		FilePath:         doc.FilePath,
		OriginalFilename: doc.OriginalFilename,
	}

	result := s.runner.Run(ctx, state)

	threadID := uuid.New().String()
	if err := s.checkpoints.Save(ctx, threadID, result.State); err != nil {
		slog.WarnContext(ctx, "failed to save ingest checkpoint", "error", err, "thread_id", threadID)
	}

	status := "completed"
	failed := result.FailedSteps()
	if len(failed) > 0 {
		status = "failed"
	}

	doc.Status = status
	doc.Category = result.State.PredictedCategory
	doc.StoredChunks = result.State.StoredChunks
	doc.ExtractionMethod = result.State.ExtractionMethod

	if err := s.repo.UpdateOutcome(ctx, doc.ID, status, doc.Category, doc.ExtractionMethod, doc.StoredChunks); err != nil {
		return result, err
	}

	s.publishResult(ctx, doc, failed)

	if status == "failed" {
		s.recordFailure(ctx, doc, failed)
	}

	return result, nil
}

// Reindex queues a document for background re-ingestion.
func (s *Service) Reindex(ctx context.Context, id string) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, doc.ID, "processing"); err != nil {
		return err
	}

	payload, _ := json.Marshal(worker.ReindexTask{
		DocumentID:    doc.ID,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicReindex, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish reindex task", "error", err, "document_id", doc.ID)
		return err
	}
	slog.InfoContext(ctx, "published reindex task", "document_id", doc.ID)
	return nil
}

// ProcessReindex drops a document's stored chunks and runs the pipeline again.
// Called by the reindex consumer.
func (s *Service) ProcessReindex(ctx context.Context, id string) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.chunkStore.DeleteChunksByFile(ctx, doc.FilePath); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	_, err = s.Process(ctx, doc)
	return err
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.chunkStore.DeleteChunksByFile(ctx, doc.FilePath); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) publishResult(ctx context.Context, doc *Document, failedSteps []string) {
	payload, _ := json.Marshal(worker.IngestResultEvent{
		DocumentID:       doc.ID,
		OriginalFilename: doc.OriginalFilename,
		Status:           doc.Status,
		Category:         doc.Category,
		StoredChunks:     doc.StoredChunks,
		FailedSteps:      failedSteps,
		CorrelationID:    middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicIngestResult, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingest result", "error", err, "document_id", doc.ID)
	}
}

func (s *Service) recordFailure(ctx context.Context, doc *Document, failedSteps []string) {
	if s.jobs == nil {
		return
	}
	payload, _ := json.Marshal(worker.ReindexTask{
		DocumentID:    doc.ID,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	j := &job.Job{
		DocumentID: doc.ID,
		Handler:    "ingest",
		Payload:    payload,
		Error:      fmt.Sprintf("failed steps: %s", strings.Join(failedSteps, ", ")),
	}
	if err := s.jobs.Save(ctx, j); err != nil {
		slog.ErrorContext(ctx, "failed to record failed job", "error", err, "document_id", doc.ID)
	}
}
