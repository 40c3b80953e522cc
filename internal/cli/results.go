package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/democoach/internal/pipeline"
	"github.com/ppiankov/democoach/internal/prompt"
	"github.com/ppiankov/democoach/internal/results"
)

var showJSON bool

// resultsCmd represents the results command
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List, show and delete saved scoring results",
	Long: `Every scoring run is saved as <id>.json in output.results_dir.

Example:
  democoach results list
  democoach results show 0b6f1f4e-2a53-4c1e-9a53-6e4d7d3b8c10
  democoach results delete 0b6f1f4e-2a53-4c1e-9a53-6e4d7d3b8c10`,
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved results, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := resultStore()
		if err != nil {
			return err
		}

		records, err := store.List()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintf(os.Stderr, "No results in %s\n", store.Dir())
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tOVERALL\tFRAMEWORK\tTRANSCRIPT")
		for _, rec := range records {
			overall := "-"
			if rec.Result != nil && len(rec.Result.MetricScores) > 0 {
				overall = prompt.FormatScore(rec.Result.OverallScore)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rec.ID, rec.CreatedAt.Local().Format("2006-01-02 15:04"), overall, rec.Framework, rec.TranscriptFile)
		}
		return w.Flush()
	},
}

var resultsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		rec, err := results.NewFileStore(cfg.Output.ResultsDir).Load(args[0])
		if err != nil {
			return err
		}

		if showJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		pipeline.NewRenderer(cfg.Metrics).RenderSummary(os.Stdout, rec)
		return nil
	},
}

var resultsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := resultStore()
		if err != nil {
			return err
		}

		if err := store.Delete(args[0]); err != nil {
			if errors.Is(err, results.ErrNotFound) {
				return fmt.Errorf("no result with id %s in %s", args[0], store.Dir())
			}
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	resultsCmd.AddCommand(resultsDeleteCmd)

	resultsShowCmd.Flags().BoolVar(&showJSON, "json", false, "print the stored JSON record")
}

func resultStore() (*results.FileStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return results.NewFileStore(cfg.Output.ResultsDir), nil
}
