package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/democoach/internal/config"
	"github.com/ppiankov/democoach/internal/model"
	"github.com/ppiankov/democoach/internal/pipeline"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "democoach",
	Short: "democoach - Sales demo transcript scoring against a coaching framework",
	Long: `democoach scores sales-demo transcripts against a coaching framework.

For every scoring key of the active framework it retrieves reference
passages from the vector store, asks the LLM to score the Sales Engineer
on each configured metric, and combines the results into a weighted
overall score with a narrative coaching summary.

Scores are the model's judgment, grounded in your reference material.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of democoach.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("democoach v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initLogging)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.democoach/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initLogging routes library diagnostics to stderr
func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads the config file and environment
func loadConfig() (*model.Config, error) {
	cfg, used, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		if used != "" {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", used)
		} else {
			fmt.Fprintf(os.Stderr, "No config file found (using defaults)\n")
		}
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose
	return cfg, nil
}

// loadScoringConfig loads config that must be complete enough to score with
func loadScoringConfig() (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newPipeline(ctx context.Context, cfg *model.Config) (*pipeline.Pipeline, error) {
	p, err := pipeline.New(ctx, cfg, pipeline.Options{Logger: slog.Default()})
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}
	return p, nil
}
