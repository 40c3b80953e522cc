package scoring

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ppiankov/democoach/internal/llm"
	"github.com/ppiankov/democoach/internal/model"
	"github.com/ppiankov/democoach/internal/participants"
	"github.com/ppiankov/democoach/internal/retrieval"
)

// scriptedProvider replies to successive calls from a fixed script.
// An empty reply is returned as a transport error.
type scriptedProvider struct {
	replies  []string
	requests []llm.GenerateRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	p.requests = append(p.requests, req)
	if len(p.replies) == 0 {
		return nil, errors.New("script exhausted")
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	if reply == "" {
		return nil, errors.New("connection refused")
	}
	return &llm.GenerateResponse{Text: reply, Model: req.Model}, nil
}

func (p *scriptedProvider) IsAvailable(ctx context.Context) bool { return true }

type fakeRetriever struct {
	passages   []string
	err        error
	summaryErr error
	queries    []retrieval.Query
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q retrieval.Query) ([]string, error) {
	f.queries = append(f.queries, q)
	if q.Filter == nil && f.summaryErr != nil {
		return nil, f.summaryErr
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(keys ...string) *model.Config {
	cfg := model.DefaultConfig()
	cfg.Frameworks = []model.Framework{{
		Name:        "7 Habits",
		Context:     "7 Habits of Highly Effective People",
		ScoringKeys: keys,
	}}
	cfg.Metrics = []model.Metric{
		{Name: "clarity", Description: "Explains clearly", Weight: 0.5},
		{Name: "structure", Description: "Logical flow", Weight: 0.5},
	}
	return cfg
}

var team = []model.Participant{
	{Name: "Alice", Role: model.RoleSE},
	{Name: "Bob", Role: model.RoleCustomer},
}

func newEngine(p llm.Provider, r Retriever) *Engine {
	gw := llm.NewGateway(p, llm.WithLogger(quietLogger()))
	return NewEngine(r, gw, quietLogger())
}

func TestScore_SkipsUnparsableKey(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"clarity": {"score": 4, "explanation": "Clear"}, "structure": {"score": 3, "explanation": "Okay"}}`,
		`I'm sorry, I can't produce JSON for this one.`,
		`<p>Nice work, <strong>Alice</strong>.</p>`,
	}}
	retriever := &fakeRetriever{passages: []string{"Begin with the end in mind."}}

	result, err := newEngine(provider, retriever).Score(context.Background(), Input{
		Transcript:   "Alice: welcome\nBob: thanks",
		Config:       testConfig("A", "B"),
		Participants: team,
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if len(result.MetricScores) != 2 || result.MetricScores["clarity"] != 4.0 || result.MetricScores["structure"] != 3.0 {
		t.Errorf("unexpected metric scores %v", result.MetricScores)
	}
	if result.OverallScore != 3.5 {
		t.Errorf("expected overall 3.5, got %v", result.OverallScore)
	}
	if result.SummaryFeedback != "<p>Nice work, <strong>Alice</strong>.</p>" {
		t.Errorf("unexpected summary %q", result.SummaryFeedback)
	}
	if len(provider.requests) != 3 {
		t.Errorf("expected 2 scoring calls and 1 summary call, got %d", len(provider.requests))
	}
}

func TestScore_FirstEvaluationWins(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"clarity": {"score": 4, "explanation": "E1", "best_quote": "first key quote"}}`,
		`{"clarity": {"score": 2, "explanation": "E2", "best_quote": "second key quote"}}`,
		`<p>Summary</p>`,
	}}

	result, err := newEngine(provider, &fakeRetriever{}).Score(context.Background(), Input{
		Config:       testConfig("A", "B"),
		Participants: team,
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if result.MetricScores["clarity"] != 3.0 {
		t.Errorf("expected clarity 3.0, got %v", result.MetricScores["clarity"])
	}
	eval := result.PerMetricExplanations["clarity"]
	if eval.Explanation != "E1" || eval.BestQuote != "first key quote" {
		t.Errorf("expected first key's evaluation to be kept, got %+v", eval)
	}

	if _, ok := result.MetricScores["structure"]; ok {
		t.Error("expected metric never returned to be omitted")
	}
	if result.OverallScore != 1.5 {
		t.Errorf("expected overall 1.5 (structure contributes nothing), got %v", result.OverallScore)
	}
}

func TestScore_RequiresSingleSE(t *testing.T) {
	tests := []struct {
		name    string
		people  []model.Participant
		wantErr error
	}{
		{"no SE", []model.Participant{{Name: "Bob", Role: model.RoleCustomer}}, participants.ErrNoSE},
		{"two SEs", []model.Participant{{Name: "Alice", Role: model.RoleSE}, {Name: "Carol", Role: model.RoleSE}}, participants.ErrMultipleSE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &scriptedProvider{}
			retriever := &fakeRetriever{}

			result, err := newEngine(provider, retriever).Score(context.Background(), Input{
				Config:       testConfig("A"),
				Participants: tt.people,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if result != nil {
				t.Error("expected no partial result")
			}
			if len(provider.requests) != 0 || len(retriever.queries) != 0 {
				t.Errorf("expected no external calls, got %d LLM and %d retrieval", len(provider.requests), len(retriever.queries))
			}
		})
	}
}

func TestScore_NoFramework(t *testing.T) {
	cfg := testConfig()
	cfg.Frameworks = nil

	_, err := newEngine(&scriptedProvider{}, &fakeRetriever{}).Score(context.Background(), Input{Config: cfg, Participants: team})
	if !errors.Is(err, ErrNoFramework) {
		t.Errorf("expected ErrNoFramework, got %v", err)
	}
}

func TestScore_EmptyRetrieval(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"clarity": {"score": 5, "explanation": "Great"}}`,
		`<p>ok</p>`,
	}}

	result, err := newEngine(provider, &fakeRetriever{passages: []string{}}).Score(context.Background(), Input{
		Transcript:   "Alice: hi",
		Config:       testConfig("A"),
		Participants: team,
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if result.MetricScores["clarity"] != 5 {
		t.Errorf("expected clarity 5, got %v", result.MetricScores)
	}
	if !strings.Contains(provider.requests[0].Prompt, "Reference best practices:\n\nTranscript:") {
		t.Error("expected an empty reference section in the scoring prompt")
	}
}

func TestScore_RetrievalQueries(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"clarity": {"score": 4, "explanation": "Clear"}}`,
		`{"structure": {"score": 2, "explanation": "Messy"}}`,
		`<p>ok</p>`,
	}}
	retriever := &fakeRetriever{passages: []string{"Think win-win."}}

	cfg := testConfig("Habit 2", "Habit 4")
	cfg.Settings.MaxReferenceChunks = 4

	if _, err := newEngine(provider, retriever).Score(context.Background(), Input{Config: cfg, Participants: team}); err != nil {
		t.Fatal(err)
	}

	if len(retriever.queries) != 3 {
		t.Fatalf("expected 3 retrieval calls, got %d", len(retriever.queries))
	}

	first := retriever.queries[0]
	if first.Collection != "7 Habits" || first.Text != "Best practices for Habit 2" || first.Limit != 4 {
		t.Errorf("unexpected key query %+v", first)
	}
	if first.Filter[retrieval.FrameworkKeyField] != "Habit 2" {
		t.Errorf("expected framework_key filter, got %v", first.Filter)
	}

	summary := retriever.queries[2]
	if summary.Filter != nil {
		t.Errorf("expected no filter on summary retrieval, got %v", summary.Filter)
	}
	if summary.Limit != 5 {
		t.Errorf("expected summary limit 5, got %d", summary.Limit)
	}
	wantQuery := "Overall Score: 3\n\nClarity (score: 4): Clear\nStructure (score: 2): Messy"
	if summary.Text != wantQuery {
		t.Errorf("unexpected summary query %q", summary.Text)
	}

	summaryPrompt := provider.requests[2].Prompt
	if !strings.Contains(summaryPrompt, "[1] Think win-win.") || !strings.Contains(summaryPrompt, "approx. 200 words") {
		t.Error("expected context-augmented summary prompt")
	}
}

func TestScore_Temperatures(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"clarity": {"score": 4, "explanation": "Clear"}}`,
		`<p>ok</p>`,
	}}
	cfg := testConfig("A")
	cfg.Settings.Model = "gpt-4o"

	if _, err := newEngine(provider, &fakeRetriever{}).Score(context.Background(), Input{Config: cfg, Participants: team}); err != nil {
		t.Fatal(err)
	}

	if provider.requests[0].Temperature != llm.TemperatureScoring || provider.requests[0].Model != "gpt-4o" {
		t.Errorf("unexpected scoring request %+v", provider.requests[0])
	}
	if provider.requests[1].Temperature != llm.TemperatureDefault || provider.requests[1].Model != "gpt-4o" {
		t.Errorf("unexpected summary request %+v", provider.requests[1])
	}
}

func TestScore_DefaultModel(t *testing.T) {
	provider := &scriptedProvider{replies: []string{`{}`, `<p>ok</p>`}}
	cfg := testConfig("A")
	cfg.Settings.Model = ""

	if _, err := newEngine(provider, &fakeRetriever{}).Score(context.Background(), Input{Config: cfg, Participants: team}); err != nil {
		t.Fatal(err)
	}
	if provider.requests[0].Model != DefaultModel {
		t.Errorf("expected default model %s, got %s", DefaultModel, provider.requests[0].Model)
	}
}

func TestScore_RetrievalFailures(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"clarity": {"score": 3, "explanation": "Fine"}}`,
		`<p>baseline</p>`,
	}}
	retriever := &fakeRetriever{err: errors.New("vector store down"), summaryErr: errors.New("vector store down")}

	result, err := newEngine(provider, retriever).Score(context.Background(), Input{Config: testConfig("A"), Participants: team})
	if err != nil {
		t.Fatalf("expected retrieval failures to be absorbed, got %v", err)
	}
	if result.MetricScores["clarity"] != 3 {
		t.Errorf("expected key to be scored without references, got %v", result.MetricScores)
	}
	if !strings.Contains(provider.requests[1].Prompt, "3–4 sentences") {
		t.Error("expected baseline summary prompt when summary retrieval fails")
	}
	if result.SummaryFeedback != "<p>baseline</p>" {
		t.Errorf("unexpected summary %q", result.SummaryFeedback)
	}
}

func TestScore_SchemaViolationSkipsKey(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"clarity": {"score": 7, "explanation": "Off the charts"}, "structure": {"score": 4, "explanation": "Good"}}`,
		`{"structure": {"score": 2, "explanation": "Weak"}}`,
		`<p>ok</p>`,
	}}

	result, err := newEngine(provider, &fakeRetriever{}).Score(context.Background(), Input{Config: testConfig("A", "B"), Participants: team})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result.MetricScores["clarity"]; ok {
		t.Error("expected out-of-range key to contribute nothing")
	}
	if result.MetricScores["structure"] != 2 {
		t.Errorf("expected structure only from key B, got %v", result.MetricScores["structure"])
	}
	if result.PerMetricExplanations["structure"].Explanation != "Weak" {
		t.Error("expected key B's evaluation to be kept")
	}
}

func TestScore_NullMetricIgnored(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"clarity": {"score": 4, "explanation": "Clear"}, "structure": null}`,
		`<p>ok</p>`,
	}}

	result, err := newEngine(provider, &fakeRetriever{}).Score(context.Background(), Input{Config: testConfig("A"), Participants: team})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result.MetricScores["structure"]; ok {
		t.Error("expected null metric to be treated as absent")
	}
	if result.OverallScore != 2 {
		t.Errorf("expected overall 2, got %v", result.OverallScore)
	}
}

func TestScore_NothingScored(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"", "not json", ""}}

	result, err := newEngine(provider, &fakeRetriever{}).Score(context.Background(), Input{Config: testConfig("A", "B"), Participants: team})
	if err != nil {
		t.Fatalf("expected soft failures only, got %v", err)
	}
	if result.MetricScores == nil || len(result.MetricScores) != 0 {
		t.Errorf("expected empty metric scores, got %#v", result.MetricScores)
	}
	if result.OverallScore != 0 {
		t.Errorf("expected overall 0, got %v", result.OverallScore)
	}
	if result.SummaryFeedback != "" {
		t.Errorf("expected empty summary after summary failure, got %q", result.SummaryFeedback)
	}
}

func TestScore_Cancelled(t *testing.T) {
	provider := &scriptedProvider{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newEngine(provider, &fakeRetriever{}).Score(ctx, Input{Config: testConfig("A", "B"), Participants: team})
	if err != nil {
		t.Fatalf("expected best-effort result, got %v", err)
	}
	if len(provider.requests) != 0 {
		t.Errorf("expected no keys to start after cancellation, got %d calls", len(provider.requests))
	}
	if len(result.MetricScores) != 0 || result.SummaryFeedback != "" {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestScore_AveragesAcrossKeys(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`{"clarity": {"score": 4, "explanation": "a"}}`,
		`{"clarity": {"score": 3, "explanation": "b"}}`,
		`{"clarity": {"score": 3, "explanation": "c"}}`,
		`<p>ok</p>`,
	}}
	cfg := testConfig("A", "B", "C")
	cfg.Metrics[0].Weight = 1

	result, err := newEngine(provider, &fakeRetriever{}).Score(context.Background(), Input{Config: cfg, Participants: team})
	if err != nil {
		t.Fatal(err)
	}
	if result.MetricScores["clarity"] != 3.33 {
		t.Errorf("expected 3.33, got %v", result.MetricScores["clarity"])
	}
	if result.OverallScore != 3.33 {
		t.Errorf("expected overall 3.33, got %v", result.OverallScore)
	}
}
