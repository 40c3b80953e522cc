// Package participants identifies who spoke in a demo and which of them is
// the Sales Engineer under evaluation.
package participants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/democoach/internal/llm"
	"github.com/ppiankov/democoach/internal/model"
	"github.com/ppiankov/democoach/internal/prompt"
)

// DefaultModel is used when neither the caller nor the config names one
const DefaultModel = "gpt-3.5-turbo"

var (
	// ErrUnresolved means the LLM reply could not be turned into a participant
	// list. Callers should ask a human to supply the list instead.
	ErrUnresolved = errors.New("participants could not be resolved")

	ErrNoSE       = errors.New("no participant has the SE role")
	ErrMultipleSE = errors.New("more than one participant has the SE role")
)

// Resolver extracts participants from a transcript with one LLM call
type Resolver struct {
	gateway      *llm.Gateway
	defaultModel string
	logger       *slog.Logger
}

// NewResolver creates a resolver. defaultModel may be empty.
func NewResolver(gateway *llm.Gateway, defaultModel string, logger *slog.Logger) *Resolver {
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{gateway: gateway, defaultModel: defaultModel, logger: logger}
}

// Resolve returns the participants named in transcript with their roles.
// The result is not guaranteed to contain exactly one SE; use RequireSingleSE
// before scoring.
func (r *Resolver) Resolve(ctx context.Context, transcript, modelName string) ([]model.Participant, error) {
	if modelName == "" {
		modelName = r.defaultModel
	}

	schema, err := llm.ParticipantsSchema()
	if err != nil {
		return nil, fmt.Errorf("participants schema: %w", err)
	}

	var people []model.Participant
	ok := r.gateway.CompleteJSON(ctx, llm.Call{
		Prompt:      prompt.BuildParticipantsPrompt(transcript),
		Model:       modelName,
		Temperature: llm.TemperatureParticipants,
		Label:       "participants",
	}, schema, &people)
	if !ok {
		return nil, ErrUnresolved
	}

	people = normalize(people)
	if len(people) == 0 {
		return nil, ErrUnresolved
	}

	r.logger.Debug("resolved participants", "count", len(people), "model", modelName)
	return people, nil
}

// RequireSingleSE returns the name of the only SE, or ErrNoSE/ErrMultipleSE
func RequireSingleSE(people []model.Participant) (string, error) {
	var names []string
	for _, p := range people {
		if p.Role == model.RoleSE {
			names = append(names, p.Name)
		}
	}

	switch len(names) {
	case 0:
		return "", ErrNoSE
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrMultipleSE, strings.Join(names, ", "))
	}
}

// AssignSE marks name as the SE and demotes any other SE to Partner. The
// match is case-insensitive; an unknown name is an error.
func AssignSE(people []model.Participant, name string) ([]model.Participant, error) {
	name = strings.TrimSpace(name)
	found := false
	for _, p := range people {
		if strings.EqualFold(p.Name, name) {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("participant %q not found", name)
	}

	out := make([]model.Participant, len(people))
	for i, p := range people {
		switch {
		case strings.EqualFold(p.Name, name):
			p.Role = model.RoleSE
		case p.Role == model.RoleSE:
			p.Role = model.RolePartner
		}
		out[i] = p
	}
	return out, nil
}

// normalize trims names and drops blank or repeated entries, keeping the first
func normalize(people []model.Participant) []model.Participant {
	seen := make(map[string]bool, len(people))
	out := make([]model.Participant, 0, len(people))
	for _, p := range people {
		p.Name = strings.TrimSpace(p.Name)
		key := strings.ToLower(p.Name)
		if p.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
