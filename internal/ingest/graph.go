package ingest

import (
	"docsage/internal/pipeline"
)

// BuildDocumentGraph declares the ingestion DAG. Chunking and embedding
// form the critical path; classification only feeds the storage payload, so
// storage proceeds with an empty category when classification failed.
func BuildDocumentGraph(s *Steps, opts ...pipeline.Option) (*pipeline.Graph, error) {
	return pipeline.NewBuilder().
		AddNode(StepExtract, s.Extract,
			func(st pipeline.State) pipeline.Status { return st.ExtractionStatus },
			func(st pipeline.State) pipeline.State { st.ExtractionStatus = pipeline.StatusFailed; return st },
		).
		AddNode(StepChunk, s.Chunk,
			func(st pipeline.State) pipeline.Status { return st.ChunkingStatus },
			func(st pipeline.State) pipeline.State { st.ChunkingStatus = pipeline.StatusFailed; return st },
		).
		AddNode(StepClassify, s.Classify,
			func(st pipeline.State) pipeline.Status { return st.CategoryPredictionStatus },
			func(st pipeline.State) pipeline.State {
				st.CategoryPredictionStatus = pipeline.StatusFailed
				return st
			},
		).
		AddNode(StepEmbed, s.Embed,
			func(st pipeline.State) pipeline.Status { return st.EmbeddingStatus },
			func(st pipeline.State) pipeline.State { st.EmbeddingStatus = pipeline.StatusFailed; return st },
		).
		AddNode(StepStore, s.Store,
			func(st pipeline.State) pipeline.Status { return st.StorageStatus },
			func(st pipeline.State) pipeline.State { st.StorageStatus = pipeline.StatusFailed; return st },
		).
		AddEdge(StepExtract, StepChunk, pipeline.HaltOnFailure).
		AddEdge(StepChunk, StepEmbed, pipeline.HaltOnFailure).
		AddEdge(StepExtract, StepClassify, pipeline.HaltOnFailure).
		AddEdge(StepEmbed, StepStore, pipeline.HaltOnFailure).
		AddEdge(StepClassify, StepStore, pipeline.ContinueOnFailure).
		Start(StepExtract).
		End(StepStore).
		Build(opts...)
}
