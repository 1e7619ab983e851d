package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"docsage/internal/adapter/gemini"
	"docsage/internal/checkpoint"
	"docsage/internal/pipeline"
	"docsage/internal/retrieval"
)

const (
	// StepAssistant is the single node of the chat graph.
	StepAssistant = "assistant"

	// maxToolTurns bounds the tool-calling loop so a model that keeps
	// requesting searches cannot spin forever.
	maxToolTurns = 4

	toolVectorSearch = "vector_search"

	// snippetRunes caps how much chunk text is carried into a reference.
	snippetRunes = 200
)

// Model is the chat-capable generation backend.
type Model interface {
	Chat(ctx context.Context, system string, history []pipeline.Message, tools []gemini.Tool) (gemini.ChatResponse, error)
}

// Searcher answers vector_search tool calls.
type Searcher interface {
	Search(ctx context.Context, query string, opts *retrieval.SearchOptions) ([]retrieval.SearchResult, error)
}

type Steps struct {
	model    Model
	searcher Searcher
}

func NewSteps(model Model, searcher Searcher) *Steps {
	return &Steps{model: model, searcher: searcher}
}

func tools() []gemini.Tool {
	return []gemini.Tool{{
		Name:        toolVectorSearch,
		Description: "Search the company knowledge base for document chunks relevant to a query. Returns ranked excerpts with similarity scores.",
		Params: []gemini.ToolParam{{
			Name:        "query",
			Description: "The search query, phrased close to the user's question.",
			Required:    true,
		}},
	}}
}

// Assistant answers the query in state using the conversation history and a
// bounded tool loop. On success it sets the response, appends exactly one
// user and one assistant entry to history, and records the references that
// supported the answer. On failure history is left untouched.
func (s *Steps) Assistant(ctx context.Context, st pipeline.State) pipeline.State {
	if strings.TrimSpace(st.Query) == "" {
		slog.WarnContext(ctx, "chat step received empty query")
		st.ResponseStatus = pipeline.StatusFailed
		return st
	}

	history := make([]pipeline.Message, 0, len(st.Messages)+1)
	history = append(history, st.Messages...)
	history = append(history, pipeline.Message{Role: pipeline.RoleUser, Content: st.Query})

	var refs []pipeline.Reference

	for turn := 0; turn < maxToolTurns; turn++ {
		resp, err := s.model.Chat(ctx, systemPrompt, history, tools())
		if err != nil {
			slog.ErrorContext(ctx, "chat model call failed", "error", err, "turn", turn)
			st.ResponseStatus = pipeline.StatusFailed
			return st
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Text == "" {
				slog.WarnContext(ctx, "chat model returned no text and no tool calls")
				st.ResponseStatus = pipeline.StatusFailed
				return st
			}
			st.Response = resp.Text
			st.References = refs
			st.ResponseStatus = pipeline.StatusSuccess
			return st.AppendTurn(st.Query, resp.Text)
		}

		for _, call := range resp.ToolCalls {
			observation, callRefs := s.runTool(ctx, call, st.Query)
			refs = append(refs, callRefs...)
			history = append(history, pipeline.Message{Role: pipeline.RoleUser, Content: observation})
		}
	}

	slog.WarnContext(ctx, "chat tool loop exhausted without a final answer", "max_turns", maxToolTurns)
	st.ResponseStatus = pipeline.StatusFailed
	return st
}

func (s *Steps) runTool(ctx context.Context, call gemini.ToolCall, fallbackQuery string) (string, []pipeline.Reference) {
	if call.Name != toolVectorSearch {
		return fmt.Sprintf("Tool %q is not available.", call.Name), nil
	}

	query, _ := call.Args["query"].(string)
	if query == "" {
		query = fallbackQuery
	}

	results, err := s.searcher.Search(ctx, query, nil)
	if err != nil {
		slog.ErrorContext(ctx, "vector search tool failed", "error", err, "query", query)
		return "The vector_search tool failed; answer from what you already know or decline.", nil
	}
	if len(results) == 0 {
		return "vector_search returned no matching documents.", nil
	}

	var b strings.Builder
	b.WriteString("vector_search results:\n")
	refs := make([]pipeline.Reference, 0, len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] (%s, score %.2f) %s\n", i+1, r.OriginalFilename, r.Score, r.Content)
		refs = append(refs, pipeline.Reference{
			OriginalFilename: r.OriginalFilename,
			FilePath:         r.FilePath,
			ChunkIndex:       r.ChunkIndex,
			Score:            r.Score,
			Snippet:          snippet(r.Content),
		})
	}
	return b.String(), refs
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes])
}

// BuildChatGraph wires the single-node chat graph.
func BuildChatGraph(s *Steps, opts ...pipeline.Option) (*pipeline.Graph, error) {
	return pipeline.NewBuilder().
		AddNode(StepAssistant, s.Assistant,
			func(st pipeline.State) pipeline.Status { return st.ResponseStatus },
			func(st pipeline.State) pipeline.State {
				st.ResponseStatus = pipeline.StatusFailed
				return st
			}).
		Start(StepAssistant).
		End(StepAssistant).
		Build(opts...)
}

// Runner executes the chat graph. Satisfied by *pipeline.Graph.
type Runner interface {
	Run(ctx context.Context, s pipeline.State) pipeline.Result
}

type Service struct {
	runner      Runner
	checkpoints checkpoint.Store
}

func NewService(runner Runner, checkpoints checkpoint.Store) *Service {
	return &Service{runner: runner, checkpoints: checkpoints}
}

// Answer runs one chat turn under the given thread. An empty threadID starts
// a new thread. The thread's state is saved only when the turn succeeds, so a
// failed turn never pollutes the conversation history.
func (s *Service) Answer(ctx context.Context, query, threadID string) (string, []pipeline.Reference, string, error) {
	if threadID == "" {
		threadID = uuid.New().String()
	}

	state, _, err := s.checkpoints.Load(ctx, threadID)
	if err != nil {
		return "", nil, threadID, fmt.Errorf("failed to load thread: %w", err)
	}

	// Per-turn fields never carry over from the previous turn.
	state.Query = query
	state.Response = ""
	state.ResponseStatus = pipeline.StatusUnset
	state.References = nil

	result := s.runner.Run(ctx, state)

	if result.State.ResponseStatus != pipeline.StatusSuccess {
		return "", nil, threadID, fmt.Errorf("assistant failed to produce an answer")
	}

	if err := s.checkpoints.Save(ctx, threadID, result.State); err != nil {
		slog.WarnContext(ctx, "failed to save chat thread", "error", err, "thread_id", threadID)
	}

	return result.State.Response, result.State.References, threadID, nil
}
