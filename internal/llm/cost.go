package llm

import (
	"context"
	"sync"
)

// modelPricing holds per-model pricing in USD per 1M tokens.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var priceTable = map[string]modelPricing{
	"gpt-4o":                     {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":                {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"claude-haiku-4-5-20251001":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"claude-sonnet-4-5-20250929": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
}

// EstimateCost returns the cost in USD of a call, or 0 for unknown models.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := priceTable[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1_000_000.0*pricing.InputPerMillion +
		float64(outputTokens)/1_000_000.0*pricing.OutputPerMillion
}

// Usage accumulates token counts across calls.
type Usage struct {
	mu           sync.Mutex
	Calls        int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Add records one response.
func (u *Usage) Add(resp *CompletionResponse) {
	if resp == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Calls++
	u.InputTokens += resp.InputTokens
	u.OutputTokens += resp.OutputTokens
	u.CostUSD += EstimateCost(resp.Model, resp.InputTokens, resp.OutputTokens)
}

// MeteredProvider records the usage of every successful completion.
type MeteredProvider struct {
	Provider
	Usage *Usage
}

// NewMeteredProvider wraps provider and returns the wrapper.
func NewMeteredProvider(provider Provider) *MeteredProvider {
	return &MeteredProvider{Provider: provider, Usage: &Usage{}}
}

func (m *MeteredProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	resp, err := m.Provider.Complete(ctx, req)
	if err == nil {
		m.Usage.Add(resp)
	}
	return resp, err
}
