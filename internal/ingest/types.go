// Package ingest holds the document processing steps and the graph that
// wires them: extract, chunk, classify, embed, store.
package ingest

import (
	"context"
)

// Step names as they appear in run results and logs.
const (
	StepExtract  = "extract"
	StepChunk    = "chunk"
	StepClassify = "classify"
	StepEmbed    = "embed"
	StepStore    = "store"
)

// Chunk is one stored unit in the vector database: the vector plus the
// provenance payload.
type Chunk struct {
	FileCategory     string
	FilePath         string
	OriginalFilename string
	ChunkIndex       int
	ChunkText        string
	Vector           []float32
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// CategoryProvider supplies the classification labels at run time, so an
// operator can change them without a restart.
type CategoryProvider interface {
	Categories(ctx context.Context) ([]string, error)
}

type ChunkStore interface {
	StoreChunk(ctx context.Context, chunk Chunk) error
}
