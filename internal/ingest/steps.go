package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"docsage/internal/extract"
	"docsage/internal/pipeline"
	"docsage/internal/text"
)

// classifyTruncateRunes caps how much document text is sent to the model
// when predicting a category.
const classifyTruncateRunes = 5000

// Steps bundles the dependencies of the document pipeline. Each method
// returns immediately-usable step behavior; failures are recorded on state,
// never returned.
type Steps struct {
	selector   *extract.Selector
	profile    text.Profile
	embedder   Embedder
	generator  Generator
	categories CategoryProvider
	store      ChunkStore
	pool       *ants.Pool
}

func NewSteps(sel *extract.Selector, profile text.Profile, e Embedder, g Generator, c CategoryProvider, st ChunkStore, pool *ants.Pool) *Steps {
	return &Steps{
		selector:   sel,
		profile:    profile,
		embedder:   e,
		generator:  g,
		categories: c,
		store:      st,
		pool:       pool,
	}
}

// Extract resolves the extraction strategy from the file extension and
// pulls the document's text.
func (s *Steps) Extract(ctx context.Context, st pipeline.State) pipeline.State {
	if st.FilePath == "" {
		slog.ErrorContext(ctx, "extraction failed, no file path on state")
		st.ExtractionStatus = pipeline.StatusFailed
		return st
	}

	ex, err := s.selector.ForPath(st.FilePath)
	if err != nil {
		slog.ErrorContext(ctx, "extraction failed", "file", st.OriginalFilename, "error", err)
		st.ExtractionStatus = pipeline.StatusFailed
		return st
	}

	content, err := ex.Extract(ctx, st.FilePath)
	if err != nil {
		slog.ErrorContext(ctx, "extraction failed", "file", st.OriginalFilename, "method", ex.Method(), "error", err)
		st.ExtractionStatus = pipeline.StatusFailed
		return st
	}

	st.DocText = content
	st.ExtractionMethod = ex.Method()
	st.ExtractionStatus = pipeline.StatusSuccess
	return st
}

// Chunk splits the extracted text with the configured profile.
func (s *Steps) Chunk(ctx context.Context, st pipeline.State) pipeline.State {
	if strings.TrimSpace(st.DocText) == "" {
		slog.ErrorContext(ctx, "chunking failed, no extracted text", "file", st.OriginalFilename)
		st.ChunkingStatus = pipeline.StatusFailed
		return st
	}

	chunks := text.Split(st.DocText, s.profile)
	if len(chunks) == 0 {
		slog.ErrorContext(ctx, "chunking produced no chunks", "file", st.OriginalFilename)
		st.ChunkingStatus = pipeline.StatusFailed
		return st
	}

	st.DocChunks = chunks
	st.ChunkingStatus = pipeline.StatusSuccess
	return st
}

// Classify asks the model for one category label from the configured list.
// The label comes back verbatim; an unexpected label is kept but logged.
func (s *Steps) Classify(ctx context.Context, st pipeline.State) pipeline.State {
	if strings.TrimSpace(st.DocText) == "" {
		slog.ErrorContext(ctx, "classification failed, no extracted text", "file", st.OriginalFilename)
		st.CategoryPredictionStatus = pipeline.StatusFailed
		return st
	}

	labels, err := s.categories.Categories(ctx)
	if err != nil || len(labels) == 0 {
		slog.ErrorContext(ctx, "classification failed, no category labels", "error", err)
		st.CategoryPredictionStatus = pipeline.StatusFailed
		return st
	}

	system := fmt.Sprintf(
		"You are a document classifier. Classify the document into exactly one of these categories: %s. Respond with the category name only, nothing else.",
		strings.Join(labels, ", "))

	label, err := s.generator.Generate(ctx, system, truncateRunes(st.DocText, classifyTruncateRunes))
	if err != nil {
		slog.ErrorContext(ctx, "classification failed", "file", st.OriginalFilename, "error", err)
		st.CategoryPredictionStatus = pipeline.StatusFailed
		return st
	}

	label = strings.TrimSpace(label)
	if !contains(labels, label) {
		slog.WarnContext(ctx, "classifier returned a label outside the configured list", "label", label)
	}

	st.PredictedCategory = label
	st.CategoryPredictionStatus = pipeline.StatusSuccess
	return st
}

// Embed produces one vector per chunk on the shared worker pool. Order is
// preserved positionally; a single failed chunk fails the whole step and no
// embeddings are kept.
func (s *Steps) Embed(ctx context.Context, st pipeline.State) pipeline.State {
	if len(st.DocChunks) == 0 {
		slog.ErrorContext(ctx, "embedding failed, no chunks", "file", st.OriginalFilename)
		st.EmbeddingStatus = pipeline.StatusFailed
		return st
	}

	vectors := make([][]float32, len(st.DocChunks))
	errs := make([]error, len(st.DocChunks))

	var wg sync.WaitGroup
	for i, chunk := range st.DocChunks {
		i, chunk := i, chunk
		wg.Add(1)
		task := func() {
			defer wg.Done()
			vectors[i], errs[i] = s.embedder.Embed(ctx, chunk)
		}
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			slog.ErrorContext(ctx, "embedding failed", "file", st.OriginalFilename, "chunk", i, "error", err)
			st.EmbeddingStatus = pipeline.StatusFailed
			return st
		}
	}

	st.DocEmbeddings = vectors
	st.EmbeddingStatus = pipeline.StatusSuccess
	return st
}

// Store writes (vector, payload) pairs sequentially. A mid-sequence write
// error fails the step; chunks already written stay written, and
// StoredChunks records how far the sequence got.
func (s *Steps) Store(ctx context.Context, st pipeline.State) pipeline.State {
	if len(st.DocEmbeddings) != len(st.DocChunks) || len(st.DocChunks) == 0 {
		slog.ErrorContext(ctx, "storage failed, chunk and embedding counts differ",
			"file", st.OriginalFilename, "chunks", len(st.DocChunks), "embeddings", len(st.DocEmbeddings))
		st.StorageStatus = pipeline.StatusFailed
		return st
	}

	for i, chunkText := range st.DocChunks {
		err := s.store.StoreChunk(ctx, Chunk{
			FileCategory:     st.PredictedCategory,
			FilePath:         st.FilePath,
			OriginalFilename: st.OriginalFilename,
			ChunkIndex:       i,
			ChunkText:        chunkText,
			Vector:           st.DocEmbeddings[i],
		})
		if err != nil {
			slog.ErrorContext(ctx, "storage failed mid-sequence",
				"file", st.OriginalFilename, "stored", i, "total", len(st.DocChunks), "error", err)
			st.StoredChunks = i
			st.StorageStatus = pipeline.StatusFailed
			return st
		}
	}

	st.StoredChunks = len(st.DocChunks)
	st.StorageStatus = pipeline.StatusSuccess
	return st
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
