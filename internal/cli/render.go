package cli

import (
	"fmt"
	"os"

	"github.com/ppiankov/democoach/internal/pipeline"
	"github.com/ppiankov/democoach/internal/results"
)

// renderRecord writes the requested report files and prints the summary
func renderRecord(r *pipeline.Renderer, rec *results.Record, jsonPath, mdPath string) error {
	if jsonPath != "" {
		if err := r.RenderJSON(rec, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := r.RenderMarkdown(rec, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	r.RenderSummary(os.Stdout, rec)
	return nil
}
