package settings

import (
	"context"
	"fmt"
)

type Settings struct {
	ID             int      `json:"-"`
	Categories     []string `json:"categories"`
	RerankProvider string   `json:"rerank_provider"`
	RerankAPIKey   string   `json:"rerank_api_key"`
	GeminiAPIKey   string   `json:"gemini_api_key"`
	SearchAlpha    float32  `json:"search_alpha"`
	SearchTopK     int      `json:"search_top_k"`
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if len(set.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	if set.SearchTopK <= 0 {
		return fmt.Errorf("search_top_k must be positive")
	}
	return s.repo.Update(ctx, set)
}

// Categories returns the configured classification labels.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	set, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	return set.Categories, nil
}

// Seed fills settings fields that are still at their zero value with the
// environment-provided defaults. Values an operator already saved win.
func (s *Service) Seed(ctx context.Context, defaults Settings) error {
	cur, err := s.repo.Get(ctx)
	if err != nil {
		return err
	}

	changed := false
	if len(cur.Categories) == 0 && len(defaults.Categories) > 0 {
		cur.Categories = defaults.Categories
		changed = true
	}
	if cur.GeminiAPIKey == "" && defaults.GeminiAPIKey != "" {
		cur.GeminiAPIKey = defaults.GeminiAPIKey
		changed = true
	}
	if cur.RerankProvider == "" && defaults.RerankProvider != "" {
		cur.RerankProvider = defaults.RerankProvider
		cur.RerankAPIKey = defaults.RerankAPIKey
		changed = true
	}
	if cur.SearchAlpha == 0 && defaults.SearchAlpha != 0 {
		cur.SearchAlpha = defaults.SearchAlpha
		changed = true
	}
	if cur.SearchTopK == 0 && defaults.SearchTopK != 0 {
		cur.SearchTopK = defaults.SearchTopK
		changed = true
	}

	if !changed {
		return nil
	}
	return s.repo.Update(ctx, cur)
}
