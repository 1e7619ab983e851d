package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docsage/internal/pipeline"
)

func TestBuildDocumentGraph_EndToEnd(t *testing.T) {
	emb := new(MockEmbedder)
	gen := new(MockGenerator)
	cats := new(MockCategoryProvider)
	store := new(MockChunkStore)
	steps := newTestSteps(t, emb, gen, cats, store)

	g, err := BuildDocumentGraph(steps)
	require.NoError(t, err)

	cats.On("Categories", mock.Anything).Return([]string{"hr", "finance"}, nil)
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("hr", nil)
	emb.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1, 0.2}, nil)
	store.On("StoreChunk", mock.Anything, mock.Anything).Return(nil)

	path := writeTempFile(t, "handbook.txt", "Employees accrue vacation monthly.")
	res := g.Run(context.Background(), pipeline.State{
		FilePath:         path,
		OriginalFilename: "handbook.txt",
	})

	assert.True(t, res.Succeeded(), "failed steps: %v", res.FailedSteps())
	st := res.State
	assert.Equal(t, pipeline.StatusSuccess, st.ExtractionStatus)
	assert.Equal(t, pipeline.StatusSuccess, st.ChunkingStatus)
	assert.Equal(t, pipeline.StatusSuccess, st.CategoryPredictionStatus)
	assert.Equal(t, pipeline.StatusSuccess, st.EmbeddingStatus)
	assert.Equal(t, pipeline.StatusSuccess, st.StorageStatus)
	assert.Equal(t, "hr", st.PredictedCategory)
	assert.Equal(t, len(st.DocChunks), st.StoredChunks)
}

func TestBuildDocumentGraph_ExtractionFailureHaltsPipeline(t *testing.T) {
	emb := new(MockEmbedder)
	gen := new(MockGenerator)
	cats := new(MockCategoryProvider)
	store := new(MockChunkStore)
	steps := newTestSteps(t, emb, gen, cats, store)

	g, err := BuildDocumentGraph(steps)
	require.NoError(t, err)

	res := g.Run(context.Background(), pipeline.State{
		FilePath:         "unsupported.mp4",
		OriginalFilename: "unsupported.mp4",
	})

	assert.False(t, res.Succeeded())
	st := res.State
	assert.Equal(t, pipeline.StatusFailed, st.ExtractionStatus)
	assert.Equal(t, pipeline.StatusFailed, st.ChunkingStatus)
	assert.Equal(t, pipeline.StatusFailed, st.CategoryPredictionStatus)
	assert.Equal(t, pipeline.StatusFailed, st.EmbeddingStatus)
	assert.Equal(t, pipeline.StatusFailed, st.StorageStatus)

	// Nothing downstream actually executed.
	gen.AssertNotCalled(t, "Generate")
	emb.AssertNotCalled(t, "Embed")
	store.AssertNotCalled(t, "StoreChunk")
}

func TestBuildDocumentGraph_ClassificationFailureDoesNotBlockStorage(t *testing.T) {
	emb := new(MockEmbedder)
	gen := new(MockGenerator)
	cats := new(MockCategoryProvider)
	store := new(MockChunkStore)
	steps := newTestSteps(t, emb, gen, cats, store)

	g, err := BuildDocumentGraph(steps)
	require.NoError(t, err)

	cats.On("Categories", mock.Anything).Return([]string{"hr"}, nil)
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("model down"))
	emb.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	store.On("StoreChunk", mock.Anything, mock.MatchedBy(func(c Chunk) bool {
		return c.FileCategory == ""
	})).Return(nil)

	path := writeTempFile(t, "doc.txt", "some document text")
	res := g.Run(context.Background(), pipeline.State{
		FilePath:         path,
		OriginalFilename: "doc.txt",
	})

	st := res.State
	assert.Equal(t, pipeline.StatusFailed, st.CategoryPredictionStatus)
	assert.Equal(t, pipeline.StatusSuccess, st.StorageStatus)
	assert.False(t, res.Succeeded())
	assert.Equal(t, []string{StepClassify}, res.FailedSteps())
	store.AssertExpectations(t)
}
