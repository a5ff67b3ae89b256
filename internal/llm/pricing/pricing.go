// Package pricing computes per-call cost from an embedded price table.
package pricing

import (
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// ModelPrice holds per-million-token prices for one model.
type ModelPrice struct {
	Input    float64 `yaml:"input"`
	Output   float64 `yaml:"output"`
	Thinking float64 `yaml:"thinking"`
}

type providerPrices struct {
	Provider string                `yaml:"provider"`
	Models   map[string]ModelPrice `yaml:"models"`
}

// Registry resolves model prices and computes call costs.
type Registry struct {
	providers map[string]map[string]ModelPrice
	logger    *slog.Logger
	mu        sync.RWMutex
}

// NewRegistry loads the embedded price files.
func NewRegistry(logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		providers: make(map[string]map[string]ModelPrice),
		logger:    logger,
	}

	for _, name := range []string{"gemini", "claude"} {
		if err := r.loadProviderFile(name); err != nil {
			return nil, fmt.Errorf("load %s prices: %w", name, err)
		}
	}

	return r, nil
}

func (r *Registry) loadProviderFile(provider string) error {
	data, err := configFiles.ReadFile(fmt.Sprintf("config/%s.yaml", provider))
	if err != nil {
		return fmt.Errorf("read price file: %w", err)
	}

	var prices providerPrices
	if err := yaml.Unmarshal(data, &prices); err != nil {
		return fmt.Errorf("unmarshal price file: %w", err)
	}

	r.mu.Lock()
	r.providers[strings.ToLower(prices.Provider)] = prices.Models
	r.mu.Unlock()

	return nil
}

// Price returns the price entry for a model. Lookup is exact first, then by
// longest declared prefix, so dated model ids resolve to their family entry.
func (r *Registry) Price(provider, model string) (ModelPrice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models, ok := r.providers[strings.ToLower(provider)]
	if !ok {
		return ModelPrice{}, false
	}

	if price, ok := models[model]; ok {
		return price, true
	}

	var bestID string
	for id := range models {
		if strings.HasPrefix(model, id) && len(id) > len(bestID) {
			bestID = id
		}
	}
	if bestID != "" {
		return models[bestID], true
	}

	return ModelPrice{}, false
}

// Cost computes a call's dollar cost from its token counts. Unknown models
// cost zero and log at debug level, so audit rows never fail on pricing.
func (r *Registry) Cost(provider, model string, inputTokens, outputTokens, thinkingTokens int) float64 {
	price, ok := r.Price(provider, model)
	if !ok {
		if r.logger != nil {
			r.logger.Debug("no price entry for model", "provider", provider, "model", model)
		}
		return 0
	}

	const million = 1_000_000
	cost := float64(inputTokens) / million * price.Input
	cost += float64(outputTokens) / million * price.Output

	thinkingPrice := price.Thinking
	if thinkingPrice == 0 {
		thinkingPrice = price.Output
	}
	cost += float64(thinkingTokens) / million * thinkingPrice

	return cost
}
