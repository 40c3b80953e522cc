package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/democoach/internal/model"
	"github.com/ppiankov/democoach/internal/participants"
	"github.com/ppiankov/democoach/internal/pipeline"
)

var (
	scoreParticipants string
	scoreSE           string
	outJSON           string
	outMD             string
	scoreTimeout      time.Duration
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score <transcript>",
	Short: "Score a demo transcript against the active coaching framework",
	Long: `Score evaluates one transcript (a file or an http(s) URL):
- Resolve participants (or read them from --participants)
- Require exactly one Sales Engineer
- Score every metric for each framework scoring key
- Average per metric and combine into a weighted overall score
- Write a narrative coaching summary

Example:
  democoach score acme-demo.txt
  democoach score acme-demo.txt --participants acme-people.yaml --md report.md
  democoach score acme-demo.txt --se "Dana Lee" --json report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreParticipants, "participants", "", "participant list (.yaml or .json); resolved by the LLM when omitted")
	scoreCmd.Flags().StringVar(&scoreSE, "se", "", "name of the Sales Engineer, overriding the participant roles")
	scoreCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	scoreCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	scoreCmd.Flags().DurationVar(&scoreTimeout, "timeout", 15*time.Minute, "overall scoring timeout")
}

func runScore(cmd *cobra.Command, args []string) error {
	source := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), scoreTimeout)
	defer cancel()

	cfg, err := loadScoringConfig()
	if err != nil {
		return err
	}

	if verbose {
		framework, _ := cfg.ActiveFramework()
		fmt.Fprintf(os.Stderr, "Scoring: %s\n", source)
		fmt.Fprintf(os.Stderr, "Framework: %s (%d keys)\n", framework.Name, len(framework.ScoringKeys))
		fmt.Fprintf(os.Stderr, "Provider: %s\n", cfg.LLM.Provider)
		fmt.Fprintln(os.Stderr)
	}

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	people, err := scoreTeam(ctx, p, source)
	if err != nil {
		return err
	}
	if verbose {
		printParticipants(people)
	}

	rec, err := p.ScoreFile(ctx, source, people)
	if err != nil {
		if rec == nil {
			return fmt.Errorf("score failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
	}

	return renderRecord(pipeline.NewRenderer(cfg.Metrics), rec, outJSON, outMD)
}

// scoreTeam returns the participants for a run, applying the --se correction
func scoreTeam(ctx context.Context, p *pipeline.Pipeline, source string) ([]model.Participant, error) {
	var people []model.Participant
	var err error
	if scoreParticipants != "" {
		people, err = participants.Load(scoreParticipants)
	} else {
		if verbose {
			fmt.Fprintf(os.Stderr, "⚙️  Resolving participants...\n")
		}
		people, err = p.ResolveParticipants(ctx, source)
	}
	if err != nil {
		return nil, fmt.Errorf("participants: %w", err)
	}

	if scoreSE != "" {
		if people, err = participants.AssignSE(people, scoreSE); err != nil {
			return nil, err
		}
	}

	if _, err := participants.RequireSingleSE(people); err != nil {
		printParticipants(people)
		return nil, fmt.Errorf("%w (use --se or --participants to fix the roles)", err)
	}
	return people, nil
}
