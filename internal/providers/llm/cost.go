package llm

// GPT-4-class pricing, input and output priced independently.
const (
	inputCostPer1K  = 0.03
	outputCostPer1K = 0.06
)

// EstimateCost returns the estimated dollar cost of one completion call.
// Logged for observability only; nothing branches on it.
func EstimateCost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1000*inputCostPer1K + float64(completionTokens)/1000*outputCostPer1K
}
