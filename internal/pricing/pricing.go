// Package pricing maps model names to per-token USD rates and computes
// cost breakdowns. Rates come from the LiteLLM public pricing table with
// a hardcoded fallback, cached on disk for 24 hours.
package pricing

import (
	"strings"

	"github.com/theirongolddev/agentlens/internal/model"
)

// Rates holds the four per-token USD rates for one model.
type Rates struct {
	Input         float64 `json:"input_cost_per_token"`
	Output        float64 `json:"output_cost_per_token"`
	CacheCreation float64 `json:"cache_creation_cost_per_token"`
	CacheRead     float64 `json:"cache_read_cost_per_token"`
}

// Table maps model names to rates.
type Table map[string]Rates

// Breakdown is a per-token-type cost split.
type Breakdown struct {
	InputCost         float64 `json:"input_cost"`
	OutputCost        float64 `json:"output_cost"`
	CacheCreationCost float64 `json:"cache_creation_cost"`
	CacheReadCost     float64 `json:"cache_read_cost"`
	TotalCost         float64 `json:"total_cost"`
}

// defaultModel is the fallback for unrecognized model names. Sonnet
// pricing is a reasonable middle ground for unknown models.
const defaultModel = "claude-3-5-sonnet-20241022"

const perMillion = 1.0 / 1_000_000

// Defaults returns the hardcoded rate table used when the external
// pricing source is unavailable.
func Defaults() Table {
	return Table{
		"claude-opus-4-20250514": {
			Input: 15.0 * perMillion, Output: 75.0 * perMillion,
			CacheCreation: 18.75 * perMillion, CacheRead: 1.50 * perMillion,
		},
		"claude-3-5-sonnet-20241022": {
			Input: 3.0 * perMillion, Output: 15.0 * perMillion,
			CacheCreation: 3.75 * perMillion, CacheRead: 0.30 * perMillion,
		},
		"claude-3-5-haiku-20241022": {
			Input: 1.0 * perMillion, Output: 5.0 * perMillion,
			CacheCreation: 1.25 * perMillion, CacheRead: 0.10 * perMillion,
		},
		"claude-3-opus-20240229": {
			Input: 15.0 * perMillion, Output: 75.0 * perMillion,
			CacheCreation: 18.75 * perMillion, CacheRead: 1.50 * perMillion,
		},
		"claude-3-sonnet-20240229": {
			Input: 3.0 * perMillion, Output: 15.0 * perMillion,
			CacheCreation: 3.75 * perMillion, CacheRead: 0.30 * perMillion,
		},
		"claude-3-haiku-20240307": {
			Input: 0.25 * perMillion, Output: 1.25 * perMillion,
			CacheCreation: 0.30 * perMillion, CacheRead: 0.03 * perMillion,
		},
	}
}

// Lookup resolves a model name to rates: exact match first, then
// substring match in either direction (model names often drop the date
// suffix), then the default model's rates.
func (t Table) Lookup(modelName string) Rates {
	if rates, ok := t[modelName]; ok {
		return rates
	}

	for known, rates := range t {
		if strings.Contains(known, modelName) || strings.Contains(modelName, known) {
			return rates
		}
	}

	if rates, ok := t[defaultModel]; ok {
		return rates
	}
	return Defaults()[defaultModel]
}

// Calculate computes the cost breakdown for a token usage block.
func (t Table) Calculate(tokens model.TokenUsage, modelName string) Breakdown {
	rates := t.Lookup(modelName)
	b := Breakdown{
		InputCost:         float64(tokens.Input) * rates.Input,
		OutputCost:        float64(tokens.Output) * rates.Output,
		CacheCreationCost: float64(tokens.CacheCreation) * rates.CacheCreation,
		CacheReadCost:     float64(tokens.CacheRead) * rates.CacheRead,
	}
	b.TotalCost = b.InputCost + b.OutputCost + b.CacheCreationCost + b.CacheReadCost
	return b
}

// Add accumulates another breakdown into b.
func (b *Breakdown) Add(other Breakdown) {
	b.InputCost += other.InputCost
	b.OutputCost += other.OutputCost
	b.CacheCreationCost += other.CacheCreationCost
	b.CacheReadCost += other.CacheReadCost
	b.TotalCost += other.TotalCost
}
