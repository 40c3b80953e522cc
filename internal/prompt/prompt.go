// Package prompt builds the text sent to the LLM. Builders are pure: the same
// input always yields the same prompt.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ppiankov/democoach/internal/model"
)

// MinQuoteWords is the shortest quote the scorer may return
const MinQuoteWords = 10

const jsonShapeExample = `{
    "clarity": {
        "score": 4,
        "explanation": "...",
        "best_quote": "...",
        "best_quote_author": "Sales Engineer",
        "best_quote_reason": "...",
        "worst_quote": "...",
        "worst_quote_author": "Customer",
        "worst_quote_reason": "..."
    },
    ...
}`

// ScoringInput carries everything one scoring-key prompt needs
type ScoringInput struct {
	Transcript       string
	Metrics          []model.Metric
	References       []string
	FrameworkContext string
	SEName           string
	QuoteMode        string
	ScoringGuide     *model.ScoringGuide
}

// BuildParticipantsPrompt asks for the participant list with roles
func BuildParticipantsPrompt(transcript string) string {
	var b strings.Builder
	b.WriteString("You are analyzing a sales demo transcript.\n\n")
	b.WriteString("Your task is to extract the list of participants and assign each one a role:\n")
	b.WriteString(`- "SE" → Sales Engineer (only one person should be labeled SE)` + "\n")
	b.WriteString(`- "Customer" → someone from the buying organization` + "\n")
	b.WriteString(`- "Partner" → any other internal team member (Account Exec, BDR, SA, etc.)` + "\n\n")
	b.WriteString("If more than one person seems like an SE, choose the one who speaks most and label them as SE. Others become Partners.\n\n")
	b.WriteString("Return only a JSON array like:\n")
	b.WriteString(`[{"name": "Alice", "role": "SE"}, {"name": "Bob", "role": "Customer"}, {"name": "Charlie", "role": "Partner"}]` + "\n\n")
	b.WriteString("Here is the transcript:\n")
	b.WriteString(transcript)
	return b.String()
}

// BuildScoringPrompt builds the evaluation prompt for one scoring key
func BuildScoringPrompt(in ScoringInput) string {
	var b strings.Builder

	b.WriteString("You are a sales engineering coach evaluating a demo transcript.\n")
	fmt.Fprintf(&b, "The evaluation is based on the framework: %s.\n", in.FrameworkContext)
	fmt.Fprintf(&b, "The main Sales Engineer in this conversation is: %s.\n", in.SEName)
	fmt.Fprintf(&b, "Evaluate the demo transcript focusing on the performance of %s. ", in.SEName)
	b.WriteString("Consider the full conversation and how others interacted with them, ")
	b.WriteString("but base your scores only on how effectively this person demonstrated the best practices.\n\n")

	b.WriteString("Reference best practices:\n")
	writeNumbered(&b, in.References)

	b.WriteString("\nTranscript:\n")
	b.WriteString(strings.TrimSpace(in.Transcript))
	b.WriteString("\n\n")

	b.WriteString("Evaluate based on these criteria:\n")
	for _, m := range in.Metrics {
		fmt.Fprintf(&b, "- %s: %s\n", m.Name, m.Description)
	}

	if g := in.ScoringGuide; g != nil {
		b.WriteString("\nScoring guide (1–5 scale):\n")
		for _, line := range g.Scale {
			fmt.Fprintf(&b, "- %s\n", line)
		}
		if note := strings.TrimSpace(g.StrictnessNote); note != "" {
			b.WriteString("\n" + note + "\n")
		}
	}

	if in.QuoteMode == model.QuoteModePost {
		b.WriteString("\nFor each metric, include:\n")
		b.WriteString("- score (1 to 5)\n")
		b.WriteString("- explanation\n")
		b.WriteString("- best_quote, best_quote_author, best_quote_reason\n")
		b.WriteString("- worst_quote, worst_quote_author, worst_quote_reason\n")
	}
	fmt.Fprintf(&b, "No quote should be shorter than %d words\n", MinQuoteWords)

	b.WriteString("\nRespond in JSON format like:\n")
	b.WriteString(jsonShapeExample)

	return b.String()
}

// BuildSummaryPrompt is the baseline summary prompt, used when no reference
// passages could be retrieved for the summary
func BuildSummaryPrompt(evaluations map[string]model.MetricEvaluation, order []string, overallScore float64) string {
	var b strings.Builder
	b.WriteString("You are a sales engineering coach.\n\n")
	b.WriteString("Here are the metric-level evaluation results for a sales demo:\n")
	fmt.Fprintf(&b, "Overall score: %s\n", FormatScore(overallScore))

	for _, name := range order {
		eval, ok := evaluations[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s (score: %d)\n%s\n", Title(name), eval.Score, strings.TrimSpace(eval.Explanation))
	}

	b.WriteString("\n\nBased on the above:\n")
	b.WriteString("Write a short, clear summary paragraph in HTML format. Highlighting the best thing the Sales Engineer did overall.\n")
	b.WriteString("Use <strong> to emphasize the Sales Engineer’s biggest strength.\n")
	b.WriteString("Also mention one key area where they can improve.\n")
	b.WriteString("Write it as if you're a coach giving supportive feedback. Keep it concise, about 3–4 sentences.")
	return b.String()
}

// BuildContextSummaryPrompt is the preferred summary prompt, grounded in
// passages retrieved for the run's results
func BuildContextSummaryPrompt(evaluations map[string]model.MetricEvaluation, order []string, overallScore float64, references []string) string {
	var b strings.Builder
	b.WriteString("You are a sales engineering coach.\n")
	fmt.Fprintf(&b, "The overall score for this demo was %s.\n\n", FormatScore(overallScore))
	b.WriteString("Evaluation details by metric:\n")

	for _, name := range order {
		eval, ok := evaluations[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s (score: %d): %s\n", Title(name), eval.Score, eval.Explanation)
	}

	b.WriteString("\nCoaching best practices from the book:\n")
	writeNumbered(&b, references)

	b.WriteString("\nWrite a personalized feedback summary (approx. 200 words). ")
	b.WriteString("Use <strong> tags to highlight strengths, and suggest improvement using specific book-based advice.\n")
	b.WriteString("Respond in valid HTML.\n")
	return b.String()
}

// BuildSummaryQuery is the retrieval query used to find passages for the summary
func BuildSummaryQuery(evaluations map[string]model.MetricEvaluation, order []string, overallScore float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall Score: %s\n", FormatScore(overallScore))
	for _, name := range order {
		eval, ok := evaluations[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n%s (score: %d): %s", Title(name), eval.Score, eval.Explanation)
	}
	return b.String()
}

// ScoringQuery is the retrieval query for one scoring key
func ScoringQuery(key string) string {
	return "Best practices for " + key
}

// Title title-cases a metric name for display
func Title(name string) string {
	return cases.Title(language.English).String(name)
}

// FormatScore prints a score without trailing zeros
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func writeNumbered(b *strings.Builder, passages []string) {
	for i, p := range passages {
		fmt.Fprintf(b, "[%d] %s\n", i+1, strings.TrimSpace(p))
	}
}
