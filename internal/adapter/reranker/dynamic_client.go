package reranker

import (
	"context"
	"fmt"
	"sync"

	"docsage/internal/settings"
)

// DynamicClient picks the rerank provider and key from runtime settings on
// every call, caching the underlying client per (provider, key) pair.
type DynamicClient struct {
	settingsSvc *settings.Service

	mu              sync.Mutex
	client          *Client
	currentProvider string
	currentKey      string
}

func NewDynamicClient(svc *settings.Service) *DynamicClient {
	return &DynamicClient{settingsSvc: svc}
}

func (d *DynamicClient) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	s, err := d.settingsSvc.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	if s.RerankProvider == "" || s.RerankProvider == "none" {
		// Identity order, reranking disabled
		indices := make([]int, len(docs))
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}

	return d.getClient(s.RerankProvider, s.RerankAPIKey).Rerank(ctx, query, docs)
}

func (d *DynamicClient) getClient(provider, key string) *Client {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil && d.currentProvider == provider && d.currentKey == key {
		return d.client
	}

	d.client = NewClient(provider, key)
	d.currentProvider = provider
	d.currentKey = key
	return d.client
}
