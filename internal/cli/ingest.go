package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
)

var (
	ingestFramework string
	ingestKey       string
	ingestTimeout   time.Duration
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Load reference material for a framework scoring key",
	Long: `Ingest chunks a UTF-8 text file, embeds the chunks and stores them in
the framework's collection, tagged with the scoring key they illustrate.
Scoring retrieves these passages as best-practice references.

Example:
  democoach ingest habit2.txt --key "Habit 2: Begin with the End in Mind"
  democoach ingest chapter5.md --framework "7 Habits" --key "Habit 5"`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestFramework, "framework", "", "framework (collection) name (default: the active framework)")
	ingestCmd.Flags().StringVar(&ingestKey, "key", "", "scoring key the material illustrates")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 10*time.Minute, "ingest timeout")
	_ = ingestCmd.MarkFlagRequired("key")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	framework := ingestFramework
	if framework == "" {
		active, ok := cfg.ActiveFramework()
		if !ok {
			return fmt.Errorf("no framework configured; pass --framework")
		}
		framework = active.Name
	}

	for _, fw := range cfg.Frameworks {
		if fw.Name == framework && !slices.Contains(fw.ScoringKeys, ingestKey) {
			fmt.Fprintf(os.Stderr, "Warning: %q is not a scoring key of %s; scoring will not retrieve it\n", ingestKey, framework)
		}
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	n, err := p.Ingest(ctx, args[0], framework, ingestKey)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Stored %d passages in %s for %q\n", n, framework, ingestKey)

	total, err := p.CollectionSize(ctx, framework)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "  %s now holds %d passages\n", framework, total)
	return nil
}
