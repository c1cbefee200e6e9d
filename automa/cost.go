package automa

import (
	"context"
	"sync"
)

// ModelPricing is the per-token cost of a model, in USD per 1M tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultModelPricing seeds CostTracker with widely used model prices as of
// 2025-01-01. Callers should override via CostTracker.SetPricing for models
// not listed here or whose pricing has since changed.
var defaultModelPricing = map[string]ModelPricing{
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":                {InputPer1M: 10.00, OutputPer1M: 30.00},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-haiku-20241022":  {InputPer1M: 0.80, OutputPer1M: 4.00},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":           {InputPer1M: 0.075, OutputPer1M: 0.30},
}

// UsageRecord is the payload model adapters post on the "llm_usage" event
// (see automa/model.AsWorker) after each call, so cost accounting stays a
// pure consumer of the event bus rather than a special scheduler hook.
type UsageRecord struct {
	WorkerKey    string
	Model        string
	InputTokens  int
	OutputTokens int
}

// CostTracker accumulates USD cost per worker and per model by subscribing
// to "llm_usage" events. Attach it with WithCostTracker; it registers its
// own handler on construction of the owning GraphAutoma.
type CostTracker struct {
	mu          sync.Mutex
	pricing     map[string]ModelPricing
	byWorker    map[string]float64
	byModel     map[string]float64
	totalUSD    float64
}

// NewCostTracker returns a CostTracker seeded with defaultModelPricing.
func NewCostTracker() *CostTracker {
	pricing := make(map[string]ModelPricing, len(defaultModelPricing))
	for k, v := range defaultModelPricing {
		pricing[k] = v
	}
	return &CostTracker{
		pricing:  pricing,
		byWorker: make(map[string]float64),
		byModel:  make(map[string]float64),
	}
}

// SetPricing overrides or adds pricing for model.
func (c *CostTracker) SetPricing(model string, pricing ModelPricing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pricing[model] = pricing
}

// record applies usage against known pricing; unknown models are tracked at
// zero cost rather than rejected, since cost is an observability aid, not a
// correctness gate.
func (c *CostTracker) record(usage UsageRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pricing := c.pricing[usage.Model]
	cost := float64(usage.InputTokens)/1_000_000*pricing.InputPer1M + float64(usage.OutputTokens)/1_000_000*pricing.OutputPer1M
	c.byWorker[usage.WorkerKey] += cost
	c.byModel[usage.Model] += cost
	c.totalUSD += cost
}

// TotalUSD returns cumulative cost across every tracked call.
func (c *CostTracker) TotalUSD() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalUSD
}

// ByWorker returns a snapshot of cumulative cost per worker key.
func (c *CostTracker) ByWorker() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64, len(c.byWorker))
	for k, v := range c.byWorker {
		out[k] = v
	}
	return out
}

// attach wires the tracker onto g's event bus as the handler for
// "llm_usage" events, posted by automa/model adapters after each call.
func (c *CostTracker) attach(g *GraphAutoma) {
	g.RegisterEventHandler("llm_usage", func(_ context.Context, event Event) (Feedback, error) {
		if usage, ok := event.Data.(UsageRecord); ok {
			c.record(usage)
		}
		return Feedback{}, nil
	})
}
