package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/ppiankov/democoach/internal/cache"
	"github.com/ppiankov/democoach/internal/llm"
	"github.com/ppiankov/democoach/internal/model"
	"github.com/ppiankov/democoach/internal/participants"
	"github.com/ppiankov/democoach/internal/results"
	"github.com/ppiankov/democoach/internal/retrieval"
	"github.com/ppiankov/democoach/internal/scoring"
	"github.com/ppiankov/democoach/internal/vectordb"
	"github.com/ppiankov/democoach/internal/worker"
)

// maxReferenceBytes bounds a reference document loaded by Ingest
const maxReferenceBytes = 32 << 20

// Options replaces the collaborators New would otherwise build from config
type Options struct {
	Provider llm.Provider
	Embedder retrieval.Embedder
	Store    vectordb.Store
	Logger   *slog.Logger
}

// Pipeline wires transcript loading, participant resolution, scoring and
// result persistence for one configuration
type Pipeline struct {
	config    *model.Config
	gateway   *llm.Gateway
	resolver  *participants.Resolver
	engine    *scoring.Engine
	ingester  *retrieval.Ingester
	store     vectordb.Store
	ownsStore bool
	results   *results.FileStore
	fetcher   *Fetcher
	logger    *slog.Logger
}

// New builds a pipeline from cfg. Collaborators set in opts are used as given.
func New(ctx context.Context, cfg *model.Config, opts Options) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider := opts.Provider
	if provider == nil {
		var err error
		provider, err = llm.NewProvider(llm.ConfigFromModel(cfg.LLM, scoring.DefaultModel))
		if err != nil {
			return nil, fmt.Errorf("create LLM provider: %w", err)
		}
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	gateway := llm.NewGateway(provider,
		llm.WithLimiter(limiter),
		llm.WithCallTimeout(cfg.LLM.Timeout),
		llm.WithLogger(logger))

	embedder := opts.Embedder
	if embedder == nil {
		e, err := retrieval.NewOpenAIEmbedder(retrieval.EmbedderConfig{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		}, cache.New(cfg.Cache), logger)
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		embedder = e
	}

	store, ownsStore := opts.Store, false
	if store == nil {
		s, err := vectordb.Open(ctx, cfg.VectorStore)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
		store, ownsStore = s, true
	}

	retriever := retrieval.NewRetriever(embedder, store, cfg.LLM.Timeout)

	return &Pipeline{
		config:    cfg,
		gateway:   gateway,
		resolver:  participants.NewResolver(gateway, cfg.Settings.ParticipantModel, logger),
		engine:    scoring.NewEngine(retriever, gateway, logger),
		ingester:  retrieval.NewIngester(embedder, store, retrieval.DefaultChunkerConfig()),
		store:     store,
		ownsStore: ownsStore,
		results:   results.NewFileStore(cfg.Output.ResultsDir),
		fetcher: NewFetcher(cfg.Input.FetchTimeout, cfg.Input.UserAgent, cfg.Input.MaxBytes,
			cfg.LLM.HTTPProxy, cfg.LLM.HTTPSProxy, cfg.LLM.NoProxy),
		logger: logger,
	}, nil
}

// CollectionSize returns the number of passages stored for a framework
func (p *Pipeline) CollectionSize(ctx context.Context, framework string) (int, error) {
	n, err := p.store.Count(ctx, framework)
	if err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}

// Close releases the vector store if the pipeline opened it
func (p *Pipeline) Close() error {
	if p.ownsStore {
		return p.store.Close()
	}
	return nil
}

// CheckProvider reports whether the LLM provider is reachable
func (p *Pipeline) CheckProvider(ctx context.Context) error {
	if !p.gateway.Available(ctx) {
		return fmt.Errorf("LLM provider %s is not available", p.gateway.ProviderName())
	}
	return nil
}

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() *model.Config {
	return p.config
}

// Results returns the result store
func (p *Pipeline) Results() *results.FileStore {
	return p.results
}

// LoadSource reads a transcript from a file path or an http(s) URL
func (p *Pipeline) LoadSource(ctx context.Context, source string) (string, error) {
	if IsRemote(source) {
		res, err := p.fetcher.FetchWithRetry(ctx, source)
		if err != nil {
			return "", fmt.Errorf("fetch transcript: %w", err)
		}
		return res.Text, nil
	}
	return LoadTranscript(source, p.config.Input.MaxBytes)
}

// ResolveParticipants asks the LLM who speaks in a transcript and in which role
func (p *Pipeline) ResolveParticipants(ctx context.Context, source string) ([]model.Participant, error) {
	transcript, err := p.LoadSource(ctx, source)
	if err != nil {
		return nil, err
	}
	return p.resolver.Resolve(ctx, transcript, p.config.Settings.ParticipantModel)
}

// ScoreFile scores one transcript against the active framework and persists
// the result. The participant list must name exactly one SE.
func (p *Pipeline) ScoreFile(ctx context.Context, source string, people []model.Participant) (*results.Record, error) {
	// Fail on the SE invariant before any I/O
	if _, err := participants.RequireSingleSE(people); err != nil {
		return nil, err
	}

	transcript, err := p.LoadSource(ctx, source)
	if err != nil {
		return nil, err
	}

	result, err := p.engine.Score(ctx, scoring.Input{
		Transcript:   transcript,
		Config:       p.config,
		Participants: people,
	})
	if err != nil {
		return nil, err
	}
	// A cancelled run holds only the keys scored before the deadline
	if err := ctx.Err(); err != nil {
		p.logger.Warn("scoring incomplete, result not saved", "source", source, "metrics_scored", len(result.MetricScores), "error", err)
		return nil, fmt.Errorf("scoring incomplete: %w", err)
	}

	framework, _ := p.config.ActiveFramework()
	modelName := p.config.Settings.Model
	if modelName == "" {
		modelName = scoring.DefaultModel
	}

	rec := &results.Record{
		TranscriptFile: source,
		Framework:      framework.Name,
		Model:          modelName,
		Participants:   people,
		Result:         result,
	}

	path, err := p.results.Save(rec)
	if err != nil {
		return rec, fmt.Errorf("save result: %w", err)
	}
	p.logger.Debug("result saved", "id", rec.ID, "path", path)

	return rec, nil
}

// ScoreEntry scores one batch manifest entry. Participants come from the
// entry's file when it names one and are resolved by the LLM otherwise.
func (p *Pipeline) ScoreEntry(ctx context.Context, entry worker.Entry) (*results.Record, error) {
	var people []model.Participant
	var err error
	if entry.ParticipantsFile != "" {
		people, err = participants.Load(entry.ParticipantsFile)
	} else {
		people, err = p.ResolveParticipants(ctx, entry.Transcript)
	}
	if err != nil {
		return nil, fmt.Errorf("participants: %w", err)
	}

	return p.ScoreFile(ctx, entry.Transcript, people)
}

// Ingest loads a reference document into the framework's collection, tagged
// with the scoring key it illustrates
func (p *Pipeline) Ingest(ctx context.Context, path, framework, key string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat reference: %w", err)
	}
	if info.Size() > maxReferenceBytes {
		return 0, fmt.Errorf("reference %s exceeds %d bytes", path, maxReferenceBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read reference: %w", err)
	}
	if !utf8.Valid(data) {
		return 0, fmt.Errorf("reference %s is not valid UTF-8", path)
	}

	n, err := p.ingester.Ingest(ctx, framework, key, string(data))
	if err != nil {
		return 0, err
	}
	p.logger.Info("reference ingested", "framework", framework, "key", key, "chunks", n)
	return n, nil
}
