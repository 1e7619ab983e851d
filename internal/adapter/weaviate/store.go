package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"docsage/internal/ingest"
	"docsage/internal/retrieval"
)

const className = "DocumentChunk"

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) StoreChunk(ctx context.Context, chunk ingest.Chunk) error {
	_, err := s.client.Data().Creator().
		WithClassName(className).
		WithProperties(map[string]interface{}{
			"chunkText":        chunk.ChunkText,
			"filePath":         chunk.FilePath,
			"originalFilename": chunk.OriginalFilename,
			"fileCategory":     chunk.FileCategory,
			"chunkIndex":       chunk.ChunkIndex,
		}).
		WithVector(chunk.Vector).
		Do(ctx)
	return err
}

func (s *Store) DeleteChunksByFile(ctx context.Context, filePath string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(className).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"filePath"}).
			WithOperator(filters.Equal).
			WithValueString(filePath)).
		Do(ctx)
	return err
}

func (s *Store) Search(ctx context.Context, query string, vector []float32, alpha float32, limit int) ([]retrieval.SearchResult, error) {
	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithVector(vector).
		WithAlpha(alpha)

	fields := []graphql.Field{
		{Name: "chunkText"},
		{Name: "filePath"},
		{Name: "originalFilename"},
		{Name: "fileCategory"},
		{Name: "chunkIndex"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithHybrid(hybrid).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var results []retrieval.SearchResult
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if chunks, ok := data[className].([]interface{}); ok {
			for _, c := range chunks {
				props, ok := c.(map[string]interface{})
				if !ok {
					continue
				}

				var result retrieval.SearchResult
				if content, ok := props["chunkText"].(string); ok {
					result.Content = content
				}
				if path, ok := props["filePath"].(string); ok {
					result.FilePath = path
				}
				if name, ok := props["originalFilename"].(string); ok {
					result.OriginalFilename = name
				}
				if cat, ok := props["fileCategory"].(string); ok {
					result.Category = cat
				}
				if idx, ok := props["chunkIndex"].(float64); ok {
					result.ChunkIndex = int(idx)
				}

				// _additional.score arrives as a string in most server
				// versions, as a float in some.
				if additional, ok := props["_additional"].(map[string]interface{}); ok {
					if score, ok := additional["score"].(string); ok {
						var fScore float64
						fmt.Sscanf(score, "%f", &fScore)
						result.Score = float32(fScore)
					} else if score, ok := additional["score"].(float64); ok {
						result.Score = float32(score)
					}
				}

				results = append(results, result)
			}
		}
	}

	return results, nil
}

// CountChunks reports the total number of stored chunk objects.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	if data, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if agg, ok := data[className].([]interface{}); ok && len(agg) > 0 {
			if entry, ok := agg[0].(map[string]interface{}); ok {
				if meta, ok := entry["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, fmt.Errorf("unexpected aggregate response shape")
}
