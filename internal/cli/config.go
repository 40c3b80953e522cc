package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/democoach/internal/config"
)

var checkProvider bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage democoach configuration",
	Long: `Manage democoach configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. Environment variables (DEMOCOACH_*, OPENAI_API_KEY, ANTHROPIC_API_KEY, OLLAMA_BASE_URL)
2. Config file (--config or ~/.democoach/config.yaml)
3. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, the config file and environment variables. API keys are never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if used != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", used)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := config.Marshal(cfg)
		if err != nil {
			return err
		}

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("  Current Configuration")
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()
		fmt.Println(string(yamlData))

		if err := config.Validate(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "✓ Configuration is ready for scoring\n")
		}

		if !checkProvider {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout+5*time.Second)
		defer cancel()

		p, err := newPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		if err := p.CheckProvider(ctx); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ LLM provider %s is reachable\n", cfg.LLM.Provider)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration file",
	Long:  `Create ~/.democoach/config.yaml (or the --config path) with the defaults, a sample framework, metrics and scoring guide.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		configPath := cfgFile
		if configPath == "" {
			if configPath, err = config.DefaultPath(); err != nil {
				return err
			}
		}

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'democoach config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		yamlData, err := config.Marshal(config.Example())
		if err != nil {
			return err
		}

		header := "# democoach configuration\n" +
			"#\n" +
			"# API keys are read from the environment:\n" +
			"#   export OPENAI_API_KEY=sk-...\n" +
			"#   export ANTHROPIC_API_KEY=sk-ant-...\n" +
			"#   export OLLAMA_BASE_URL=http://localhost:11434\n\n"

		if err := os.WriteFile(configPath, append([]byte(header), yamlData...), 0644); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		fmt.Printf("✓ Created example configuration: %s\n", configPath)
		fmt.Printf("\nNext steps:\n")
		fmt.Printf("  1. Edit the framework, metrics and scoring guide\n")
		fmt.Printf("  2. Load reference material: democoach ingest <file> --key <scoring key>\n")
		fmt.Printf("  3. Score a transcript:      democoach score <transcript>\n")
		fmt.Printf("\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configShowCmd.Flags().BoolVar(&checkProvider, "check", false, "also check that the LLM provider is reachable")
}
