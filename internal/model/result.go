package model

import "math"

// MetricEvaluation is the LLM's judgment of one metric for one scoring key
type MetricEvaluation struct {
	Score            int    `json:"score"`
	Explanation      string `json:"explanation"`
	BestQuote        string `json:"best_quote,omitempty"`
	BestQuoteAuthor  string `json:"best_quote_author,omitempty"`
	BestQuoteReason  string `json:"best_quote_reason,omitempty"`
	WorstQuote       string `json:"worst_quote,omitempty"`
	WorstQuoteAuthor string `json:"worst_quote_author,omitempty"`
	WorstQuoteReason string `json:"worst_quote_reason,omitempty"`
}

// ScoringResult is the terminal artifact of a scoring run.
// It is self-contained so it can be persisted and re-read without session state.
type ScoringResult struct {
	OverallScore          float64                     `json:"overall_score"`
	MetricScores          map[string]float64          `json:"metric_scores"`
	SummaryFeedback       string                      `json:"summary_feedback"`
	PerMetricExplanations map[string]MetricEvaluation `json:"per_metric_explanations"`
}

// Round2 rounds x to two decimal places
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
