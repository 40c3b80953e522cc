package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/democoach/internal/model"
	"github.com/ppiankov/democoach/internal/participants"
)

var (
	participantsOut   string
	participantsModel string
	participantsSE    string
)

// participantsCmd represents the participants command
var participantsCmd = &cobra.Command{
	Use:   "participants <transcript>",
	Short: "Identify the speakers in a transcript and their roles",
	Long: `Participants asks the LLM who speaks in a transcript and labels each
person SE, Customer or Partner. Review the list, correct it with --se if
needed, and save it with --out to score without another resolution call.

Example:
  democoach participants acme-demo.txt
  democoach participants acme-demo.txt --se "Dana Lee" --out acme-people.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runParticipants,
}

func init() {
	rootCmd.AddCommand(participantsCmd)

	participantsCmd.Flags().StringVar(&participantsOut, "out", "", "write the participant list to a .yaml or .json file")
	participantsCmd.Flags().StringVar(&participantsModel, "model", "", "model for participant extraction (default from settings.participant_model)")
	participantsCmd.Flags().StringVar(&participantsSE, "se", "", "name of the Sales Engineer, overriding the extracted roles")
}

func runParticipants(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if participantsModel != "" {
		cfg.Settings.ParticipantModel = participantsModel
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.LLM.Timeout+30*time.Second)
	defer cancel()

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	people, err := p.ResolveParticipants(ctx, args[0])
	if err != nil {
		return fmt.Errorf("resolve participants: %w", err)
	}

	if participantsSE != "" {
		if people, err = participants.AssignSE(people, participantsSE); err != nil {
			return err
		}
	}

	printParticipants(people)

	if _, err := participants.RequireSingleSE(people); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v (use --se to choose the Sales Engineer)\n", err)
	}

	if participantsOut != "" {
		if err := participants.Save(participantsOut, people); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote participants: %s\n", participantsOut)
	}
	return nil
}

func printParticipants(people []model.Participant) {
	fmt.Fprintf(os.Stderr, "Participants:\n")
	for _, person := range people {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", person.Role, person.Name)
	}
	fmt.Fprintln(os.Stderr)
}
