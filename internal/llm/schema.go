package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ppiankov/democoach/internal/model"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var quoteFields = []string{
	"best_quote", "best_quote_author", "best_quote_reason",
	"worst_quote", "worst_quote_author", "worst_quote_reason",
}

var (
	scoringSchemas sync.Map // metric names joined by NUL -> *jsonschema.Schema

	participantsOnce   sync.Once
	participantsSchema *jsonschema.Schema
	participantsErr    error
)

// ScoringSchema returns the schema a scoring reply must satisfy: every
// configured metric that appears must carry an integer score in [1,5] and a
// string explanation. Metrics may be absent or null, and unknown keys are
// ignored.
func ScoringSchema(metrics []model.Metric) (*jsonschema.Schema, error) {
	names := make([]string, len(metrics))
	for i, m := range metrics {
		names[i] = m.Name
	}
	key := strings.Join(names, "\x00")

	if cached, ok := scoringSchemas.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}

	evaluation := map[string]any{
		"type":     []string{"object", "null"},
		"required": []string{"score", "explanation"},
		"properties": map[string]any{
			"score":       map[string]any{"type": "integer", "minimum": 1, "maximum": 5},
			"explanation": map[string]any{"type": "string"},
		},
	}
	props := evaluation["properties"].(map[string]any)
	for _, f := range quoteFields {
		props[f] = map[string]any{"type": "string"}
	}

	metricProps := make(map[string]any, len(names))
	for _, name := range names {
		metricProps[name] = evaluation
	}

	compiled, err := compile("democoach-scoring.json", map[string]any{
		"type":       "object",
		"properties": metricProps,
	})
	if err != nil {
		return nil, fmt.Errorf("compile scoring schema: %w", err)
	}

	scoringSchemas.Store(key, compiled)
	return compiled, nil
}

// ParticipantsSchema returns the schema for a participant list reply
func ParticipantsSchema() (*jsonschema.Schema, error) {
	participantsOnce.Do(func() {
		participantsSchema, participantsErr = compile("democoach-participants.json", map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name", "role"},
				"properties": map[string]any{
					"name": map[string]any{"type": "string", "minLength": 1},
					"role": map[string]any{"enum": []string{string(model.RoleSE), string(model.RoleCustomer), string(model.RolePartner)}},
				},
			},
		})
	})
	return participantsSchema, participantsErr
}

// DecodeEvaluation decodes one metric's entry from a validated scoring reply
func DecodeEvaluation(raw json.RawMessage) (model.MetricEvaluation, error) {
	var wire struct {
		model.MetricEvaluation
		Score json.Number `json:"score"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return model.MetricEvaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}

	score, err := wire.Score.Float64()
	if err != nil {
		return model.MetricEvaluation{}, fmt.Errorf("decode score: %w", err)
	}

	eval := wire.MetricEvaluation
	eval.Score = int(score)
	return eval, nil
}

func compile(name string, schema map[string]any) (*jsonschema.Schema, error) {
	// Round-trip through JSON so numbers reach the compiler as json.Number
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}
