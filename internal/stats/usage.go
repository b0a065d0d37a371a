package stats

import "encoding/json"

// Usage holds the token counters reported for one or more LLM calls.
// Accumulation across a run is plain addition.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	ReasoningTokens  int `json:"reasoning_tokens"`
}

// Add returns the element-wise sum of two usage records.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		ReasoningTokens:  u.ReasoningTokens + other.ReasoningTokens,
	}
}

// Cost estimates the run cost in dollars from per-1k-token prices.
func (u Usage) Cost(promptPer1K, completionPer1K float64) float64 {
	return float64(u.PromptTokens)/1000*promptPer1K +
		float64(u.CompletionTokens)/1000*completionPer1K
}

// apiUsage mirrors the usage object of chat-completion responses, including
// the nested reasoning counter some providers report.
type apiUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	TotalTokens             int `json:"total_tokens"`
	CompletionTokensDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

// ParseAPIUsage decodes the usage object of a chat-completion response.
// Missing or malformed usage data yields a zero record, never an error: the
// counters are advisory and must not fail a call that otherwise succeeded.
func ParseAPIUsage(raw json.RawMessage) Usage {
	if len(raw) == 0 {
		return Usage{}
	}
	var parsed apiUsage
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     parsed.PromptTokens,
		CompletionTokens: parsed.CompletionTokens,
		TotalTokens:      parsed.TotalTokens,
		ReasoningTokens:  parsed.CompletionTokensDetails.ReasoningTokens,
	}
}
