package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"docsage/internal/pipeline"
	"docsage/internal/settings"
)

func TestDynamicGenerator_KeyRotationDoesNotMutateBaseOptions(t *testing.T) {
	// Give the base options slice spare capacity with a sentinel in it. An
	// in-place append during key rotation would overwrite the sentinel.
	sentinel := option.WithUserAgent("sentinel")
	backing := make([]option.ClientOption, 2)
	backing[0] = option.WithEndpoint("http://127.0.0.1:0")
	backing[1] = sentinel
	base := backing[:1]

	repo := &MockRepo{Settings: &settings.Settings{GeminiAPIKey: "key-one"}}
	gen := NewDynamicGenerator(settings.NewService(repo), "gemini-2.0-flash", base...)

	_, _ = gen.getClient(context.Background(), "key-one")
	_, _ = gen.getClient(context.Background(), "key-two")

	assert.Equal(t, sentinel, backing[1])
	assert.Len(t, gen.clientOpts, 1)
}

func TestDynamicGenerator_NoKey(t *testing.T) {
	repo := &MockRepo{Settings: &settings.Settings{GeminiAPIKey: ""}}
	gen := NewDynamicGenerator(settings.NewService(repo), "gemini-2.0-flash")

	_, err := gen.Generate(context.Background(), "system", "prompt")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gemini api key not configured")

	_, err = gen.Chat(context.Background(), "system",
		[]pipeline.Message{{Role: pipeline.RoleUser, Content: "hi"}}, nil)
	assert.Error(t, err)
}

func TestDynamicGenerator_EmptyHistory(t *testing.T) {
	repo := &MockRepo{Settings: &settings.Settings{GeminiAPIKey: "k"}}
	gen := NewDynamicGenerator(settings.NewService(repo), "gemini-2.0-flash")

	_, err := gen.Chat(context.Background(), "system", nil, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty conversation")
}

func TestDeclarations(t *testing.T) {
	decls := declarations([]Tool{{
		Name:        "vector_search",
		Description: "search the knowledge base",
		Params: []ToolParam{
			{Name: "query", Description: "search query", Required: true},
			{Name: "hint", Description: "optional hint"},
		},
	}})

	require.Len(t, decls, 1)
	d := decls[0]
	assert.Equal(t, "vector_search", d.Name)
	assert.Equal(t, genai.TypeObject, d.Parameters.Type)
	assert.Equal(t, []string{"query"}, d.Parameters.Required)
	require.Contains(t, d.Parameters.Properties, "query")
	assert.Equal(t, genai.TypeString, d.Parameters.Properties["query"].Type)
	assert.Contains(t, d.Parameters.Properties, "hint")
}

func TestParseResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("partial "),
				genai.FunctionCall{Name: "vector_search", Args: map[string]any{"query": "refunds"}},
			}},
		}},
	}

	got := parseResponse(resp)
	assert.Equal(t, "partial", got.Text)
	require.Len(t, got.ToolCalls, 1)
	assert.Equal(t, "vector_search", got.ToolCalls[0].Name)
	assert.Equal(t, "refunds", got.ToolCalls[0].Args["query"])
}

func TestGenaiRole(t *testing.T) {
	assert.Equal(t, "model", genaiRole(pipeline.RoleAssistant))
	assert.Equal(t, "user", genaiRole(pipeline.RoleUser))
	assert.Equal(t, "user", genaiRole("tool"))
}
