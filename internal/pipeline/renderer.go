package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/democoach/internal/model"
	"github.com/ppiankov/democoach/internal/prompt"
	"github.com/ppiankov/democoach/internal/render"
	"github.com/ppiankov/democoach/internal/results"
)

const noMetricsMessage = "no metrics were scored"

// Renderer writes scoring records as reports
type Renderer struct {
	metrics []model.Metric
}

// NewRenderer creates a renderer. Metrics fix the row order; metrics not in
// the list follow in name order.
func NewRenderer(metrics []model.Metric) *Renderer {
	return &Renderer{metrics: metrics}
}

// RenderJSON writes the record as indented JSON
func (r *Renderer) RenderJSON(rec *results.Record, path string) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// RenderMarkdown writes a Markdown coaching report
func (r *Renderer) RenderMarkdown(rec *results.Record, path string) error {
	return os.WriteFile(path, []byte(r.Markdown(rec)), 0o644)
}

// Markdown returns the coaching report for rec
func (r *Renderer) Markdown(rec *results.Record) string {
	var b strings.Builder
	res := rec.Result

	b.WriteString("# Demo Coaching Report\n\n")
	fmt.Fprintf(&b, "- **Transcript:** %s\n", rec.TranscriptFile)
	fmt.Fprintf(&b, "- **Framework:** %s\n", rec.Framework)
	fmt.Fprintf(&b, "- **Model:** %s\n", rec.Model)
	if se := seName(rec.Participants); se != "" {
		fmt.Fprintf(&b, "- **Sales Engineer:** %s\n", se)
	}
	if !rec.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Scored:** %s\n", rec.CreatedAt.Format("2006-01-02 15:04 MST"))
	}
	if rec.ID != "" {
		fmt.Fprintf(&b, "- **Result ID:** `%s`\n", rec.ID)
	}
	b.WriteString("\n")

	if res == nil || len(res.MetricScores) == 0 {
		fmt.Fprintf(&b, "_%s_\n", noMetricsMessage)
		return b.String()
	}

	fmt.Fprintf(&b, "## Overall Score: %s / 5\n\n", prompt.FormatScore(res.OverallScore))

	b.WriteString("| Metric | Score |\n|---|---|\n")
	names := r.order(res.MetricScores)
	for _, name := range names {
		fmt.Fprintf(&b, "| %s | %s |\n", prompt.Title(name), prompt.FormatScore(res.MetricScores[name]))
	}
	b.WriteString("\n")

	if res.SummaryFeedback != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(res.SummaryFeedback)
		b.WriteString("\n\n")
	}

	b.WriteString("## Metric Details\n")
	for _, name := range names {
		ev, ok := res.PerMetricExplanations[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n### %s (score: %d)\n\n%s\n", prompt.Title(name), ev.Score, ev.Explanation)
		if ev.BestQuote != "" {
			fmt.Fprintf(&b, "\n**Best moment** (%s):\n\n> %s\n", ev.BestQuoteAuthor, ev.BestQuote)
			if ev.BestQuoteReason != "" {
				fmt.Fprintf(&b, "\n%s\n", ev.BestQuoteReason)
			}
		}
		if ev.WorstQuote != "" {
			fmt.Fprintf(&b, "\n**Needs work** (%s):\n\n> %s\n", ev.WorstQuoteAuthor, ev.WorstQuote)
			if ev.WorstQuoteReason != "" {
				fmt.Fprintf(&b, "\n%s\n", ev.WorstQuoteReason)
			}
		}
	}

	return b.String()
}

// RenderSummary prints a short terminal summary
func (r *Renderer) RenderSummary(w io.Writer, rec *results.Record) {
	res := rec.Result

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Demo: %s\n", rec.TranscriptFile)
	if se := seName(rec.Participants); se != "" {
		fmt.Fprintf(w, "SE:   %s\n", se)
	}
	fmt.Fprintln(w)

	if res == nil || len(res.MetricScores) == 0 {
		fmt.Fprintf(w, "%s\n", noMetricsMessage)
		return
	}

	fmt.Fprintf(w, "Overall score: %s / 5\n\n", prompt.FormatScore(res.OverallScore))
	for _, name := range r.order(res.MetricScores) {
		fmt.Fprintf(w, "  %-24s %s\n", prompt.Title(name), prompt.FormatScore(res.MetricScores[name]))
	}

	if summary := render.PlainText(res.SummaryFeedback); summary != "" {
		fmt.Fprintf(w, "\n%s\n", summary)
	}
	if rec.ID != "" {
		fmt.Fprintf(w, "\nResult ID: %s\n", rec.ID)
	}
}

func (r *Renderer) order(scores map[string]float64) []string {
	names := make([]string, 0, len(scores))
	listed := make(map[string]bool, len(r.metrics))
	for _, m := range r.metrics {
		listed[m.Name] = true
		if _, ok := scores[m.Name]; ok {
			names = append(names, m.Name)
		}
	}

	var rest []string
	for name := range scores {
		if !listed[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func seName(people []model.Participant) string {
	for _, p := range people {
		if p.Role == model.RoleSE {
			return p.Name
		}
	}
	return ""
}
