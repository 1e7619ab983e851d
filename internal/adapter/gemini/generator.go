package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"docsage/internal/pipeline"
	"docsage/internal/settings"
)

// Tool describes one callable function offered to the model. All parameters
// are strings, which covers the search tools this service exposes.
type Tool struct {
	Name        string
	Description string
	Params      []ToolParam
}

type ToolParam struct {
	Name        string
	Description string
	Required    bool
}

// ToolCall is the model asking for one tool invocation.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ChatResponse is either final text or a batch of tool calls to satisfy.
type ChatResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// DynamicGenerator talks to Gemini generative models with the API key taken
// from runtime settings, rebuilding the client when the key changes.
type DynamicGenerator struct {
	settingsSvc *settings.Service
	model       string
	client      *genai.Client
	currentKey  string
	mu          sync.RWMutex
	clientOpts  []option.ClientOption
}

func NewDynamicGenerator(svc *settings.Service, model string, opts ...option.ClientOption) *DynamicGenerator {
	return &DynamicGenerator{
		settingsSvc: svc,
		model:       model,
		clientOpts:  opts,
	}
}

// Generate runs a single prompt under a system instruction and returns the
// text of the first candidate.
func (g *DynamicGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	model, err := g.generativeModel(ctx, system)
	if err != nil {
		return "", err
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	text := textOf(resp)
	if text == "" {
		return "", fmt.Errorf("empty model response")
	}
	return text, nil
}

// Chat sends the conversation so far plus the declared tools and returns
// either the model's text or its requested tool calls.
func (g *DynamicGenerator) Chat(ctx context.Context, system string, history []pipeline.Message, tools []Tool) (ChatResponse, error) {
	if len(history) == 0 {
		return ChatResponse{}, fmt.Errorf("empty conversation")
	}

	model, err := g.generativeModel(ctx, system)
	if err != nil {
		return ChatResponse{}, err
	}
	if len(tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: declarations(tools)}}
	}

	cs := model.StartChat()
	for _, m := range history[:len(history)-1] {
		cs.History = append(cs.History, &genai.Content{
			Role:  genaiRole(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(history[len(history)-1].Content))
	if err != nil {
		return ChatResponse{}, err
	}
	return parseResponse(resp), nil
}

func (g *DynamicGenerator) generativeModel(ctx context.Context, system string) (*genai.GenerativeModel, error) {
	s, err := g.settingsSvc.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if s.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}

	client, err := g.getClient(ctx, s.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(g.model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return model, nil
}

func (g *DynamicGenerator) getClient(ctx context.Context, key string) (*genai.Client, error) {
	g.mu.RLock()
	if g.client != nil && g.currentKey == key {
		defer g.mu.RUnlock()
		return g.client, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double check
	if g.client != nil && g.currentKey == key {
		return g.client, nil
	}

	if g.client != nil {
		if err := g.client.Close(); err != nil {
			slog.Warn("failed to close previous genai client", "error", err)
		}
	}

	// Copy so key rotations never write into the shared base options slice.
	opts := append(append([]option.ClientOption{}, g.clientOpts...), option.WithAPIKey(key))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	g.client = client
	g.currentKey = key
	return client, nil
}

func declarations(tools []Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]*genai.Schema, len(t.Params))
		var required []string
		for _, p := range t.Params {
			props[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   required,
			},
		})
	}
	return decls
}

func parseResponse(resp *genai.GenerateContentResponse) ChatResponse {
	var out ChatResponse
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				text.WriteString(string(p))
			case genai.FunctionCall:
				out.ToolCalls = append(out.ToolCalls, ToolCall{Name: p.Name, Args: p.Args})
			}
		}
	}
	out.Text = strings.TrimSpace(text.String())
	return out
}

func textOf(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func genaiRole(role string) string {
	if role == pipeline.RoleAssistant {
		return "model"
	}
	return "user"
}
