// Package scoring runs the per-key evaluation loop over a transcript and
// aggregates the results into a weighted score with a narrative summary.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ppiankov/democoach/internal/llm"
	"github.com/ppiankov/democoach/internal/model"
	"github.com/ppiankov/democoach/internal/participants"
	"github.com/ppiankov/democoach/internal/prompt"
	"github.com/ppiankov/democoach/internal/render"
	"github.com/ppiankov/democoach/internal/retrieval"
)

const (
	// DefaultModel is used when settings name no model
	DefaultModel = "gpt-4"

	defaultReferenceChunks = 3
	defaultSummaryChunks   = 5
)

// ErrNoFramework means the config has no coaching framework to score against
var ErrNoFramework = errors.New("no coaching framework configured")

// Retriever supplies reference passages
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) ([]string, error)
}

// Gateway sends prompts to the LLM and absorbs its failures
type Gateway interface {
	CompleteJSON(ctx context.Context, call llm.Call, schema *jsonschema.Schema, out any) bool
	CompleteText(ctx context.Context, call llm.Call) (string, bool)
}

// Input is everything one scoring run depends on
type Input struct {
	Transcript   string
	Config       *model.Config
	Participants []model.Participant
}

// Engine scores transcripts. It holds no per-run state and is safe for
// concurrent use when its collaborators are.
type Engine struct {
	retriever Retriever
	gateway   Gateway
	logger    *slog.Logger
}

// NewEngine creates a scoring engine
func NewEngine(retriever Retriever, gateway Gateway, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{retriever: retriever, gateway: gateway, logger: logger}
}

// run carries the state of one Score call
type run struct {
	framework   model.Framework
	metrics     []model.Metric
	settings    model.Settings
	model       string
	seName      string
	transcript  string
	schema      *jsonschema.Schema
	scores      map[string][]int
	evaluations map[string]model.MetricEvaluation
	order       []string // metrics in the order they were first seen
	keysScored  int
	keysSkipped int
}

// Score evaluates a transcript. Only a missing framework, a participant list
// without exactly one SE, or an invalid metric set fail the run; everything
// after that degrades by omission.
func (e *Engine) Score(ctx context.Context, in Input) (*model.ScoringResult, error) {
	r, err := e.init(in)
	if err != nil {
		return nil, err
	}

	e.logger.Info("scoring transcript",
		"framework", r.framework.Name,
		"keys", len(r.framework.ScoringKeys),
		"metrics", len(r.metrics),
		"model", r.model,
		"se", r.seName)

	e.scoreKeys(ctx, r)

	result := &model.ScoringResult{
		MetricScores:          Average(r.scores),
		PerMetricExplanations: r.evaluations,
	}
	result.OverallScore = Weighted(result.MetricScores, r.metrics)

	if ctx.Err() != nil {
		e.logger.Warn("run cancelled, skipping summary", "error", ctx.Err())
		return result, nil
	}

	result.SummaryFeedback = e.summarize(ctx, r, result.OverallScore)

	e.logger.Info("scoring complete",
		"overall", result.OverallScore,
		"metrics_scored", len(result.MetricScores),
		"keys_scored", r.keysScored,
		"keys_skipped", r.keysSkipped)

	return result, nil
}

func (e *Engine) init(in Input) (*run, error) {
	if in.Config == nil {
		return nil, fmt.Errorf("scoring config is nil")
	}

	framework, ok := in.Config.ActiveFramework()
	if !ok {
		return nil, ErrNoFramework
	}

	seName, err := participants.RequireSingleSE(in.Participants)
	if err != nil {
		return nil, fmt.Errorf("participants: %w", err)
	}

	schema, err := llm.ScoringSchema(in.Config.Metrics)
	if err != nil {
		return nil, fmt.Errorf("scoring schema: %w", err)
	}

	settings := in.Config.Settings
	modelName := settings.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	if settings.QuoteMode == "" {
		settings.QuoteMode = model.QuoteModePost
	}
	if settings.MaxReferenceChunks <= 0 {
		settings.MaxReferenceChunks = defaultReferenceChunks
	}
	if settings.SummaryReferenceChunks <= 0 {
		settings.SummaryReferenceChunks = defaultSummaryChunks
	}

	return &run{
		framework:   framework,
		metrics:     in.Config.Metrics,
		settings:    settings,
		model:       modelName,
		seName:      seName,
		transcript:  in.Transcript,
		schema:      schema,
		scores:      make(map[string][]int),
		evaluations: make(map[string]model.MetricEvaluation),
	}, nil
}

func (e *Engine) scoreKeys(ctx context.Context, r *run) {
	for i, key := range r.framework.ScoringKeys {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("run cancelled, remaining keys not scored",
				"next_key", key, "remaining", len(r.framework.ScoringKeys)-i, "error", err)
			return
		}
		e.scoreKey(ctx, r, key)
	}
}

func (e *Engine) scoreKey(ctx context.Context, r *run, key string) {
	references, err := e.retriever.Retrieve(ctx, retrieval.Query{
		Collection: r.framework.Name,
		Text:       prompt.ScoringQuery(key),
		Limit:      r.settings.MaxReferenceChunks,
		Filter:     map[string]string{retrieval.FrameworkKeyField: key},
	})
	if err != nil {
		e.logger.Warn("reference retrieval failed, scoring without references", "key", key, "error", err)
		references = nil
	}

	p := prompt.BuildScoringPrompt(prompt.ScoringInput{
		Transcript:       r.transcript,
		Metrics:          r.metrics,
		References:       references,
		FrameworkContext: r.framework.Context,
		SEName:           r.seName,
		QuoteMode:        r.settings.QuoteMode,
		ScoringGuide:     r.settings.ScoringGuide,
	})

	var reply map[string]json.RawMessage
	ok := e.gateway.CompleteJSON(ctx, llm.Call{
		Prompt:      p,
		Model:       r.model,
		Temperature: llm.TemperatureScoring,
		Label:       "scoring key=" + key,
	}, r.schema, &reply)
	if !ok {
		e.logger.Warn("no usable evaluation, skipping key", "key", key)
		r.keysSkipped++
		return
	}
	r.keysScored++

	for _, m := range r.metrics {
		raw, present := reply[m.Name]
		if !present || isNull(raw) {
			continue
		}

		eval, err := llm.DecodeEvaluation(raw)
		if err != nil {
			e.logger.Warn("undecodable metric evaluation", "key", key, "metric", m.Name, "error", err)
			continue
		}

		r.scores[m.Name] = append(r.scores[m.Name], eval.Score)

		// Later keys contribute their score but not their explanation or quotes
		if _, seen := r.evaluations[m.Name]; !seen {
			r.evaluations[m.Name] = eval
			r.order = append(r.order, m.Name)
		}
	}

	e.logger.Debug("key scored", "key", key, "references", len(references), "metrics", len(reply))
}

func (e *Engine) summarize(ctx context.Context, r *run, overall float64) string {
	query := prompt.BuildSummaryQuery(r.evaluations, r.order, overall)

	var p string
	references, err := e.retriever.Retrieve(ctx, retrieval.Query{
		Collection: r.framework.Name,
		Text:       query,
		Limit:      r.settings.SummaryReferenceChunks,
	})
	if err != nil {
		e.logger.Warn("summary retrieval failed, using baseline summary prompt", "error", err)
		p = prompt.BuildSummaryPrompt(r.evaluations, r.order, overall)
	} else {
		p = prompt.BuildContextSummaryPrompt(r.evaluations, r.order, overall, references)
	}

	text, ok := e.gateway.CompleteText(ctx, llm.Call{
		Prompt:      p,
		Model:       r.model,
		Temperature: llm.TemperatureDefault,
		Label:       "summary",
	})
	if !ok {
		e.logger.Warn("summary generation failed, leaving summary empty")
		return ""
	}
	return render.NormalizeSummary(text)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
