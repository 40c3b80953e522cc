package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/democoach/internal/util"
	"github.com/ppiankov/democoach/internal/worker"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const defaultCallTimeout = 60 * time.Second

// Call is one prompt routed through the Gateway
type Call struct {
	Prompt      string
	Model       string
	Temperature float32

	// Label names the unit of work in diagnostics (e.g. "scoring key=Habit 2")
	Label string
}

// Gateway is the single error-absorption boundary between the pipeline and
// the LLM. Every failure (transport, timeout, malformed reply, schema
// violation) is logged and reported as ok=false; nothing is retried.
type Gateway struct {
	provider Provider
	limiter  *worker.Limiter
	timeout  time.Duration
	logger   *slog.Logger
}

// GatewayOption configures a Gateway
type GatewayOption func(*Gateway)

// WithLimiter throttles calls through a shared rate limiter
func WithLimiter(l *worker.Limiter) GatewayOption {
	return func(g *Gateway) { g.limiter = l }
}

// WithCallTimeout bounds every provider call
func WithCallTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the diagnostics logger
func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGateway wraps a provider
func NewGateway(provider Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider: provider,
		timeout:  defaultCallTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ProviderName returns the wrapped provider's name
func (g *Gateway) ProviderName() string {
	return g.provider.Name()
}

// Available reports whether the provider is configured and reachable
func (g *Gateway) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.provider.IsAvailable(ctx)
}

// CompleteText returns the trimmed reply
func (g *Gateway) CompleteText(ctx context.Context, call Call) (string, bool) {
	reply, ok := g.generate(ctx, call)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(reply), true
}

// CompleteJSON decodes the reply into out after validating it against schema
// (nil schema skips validation). A surrounding Markdown code fence is tolerated.
func (g *Gateway) CompleteJSON(ctx context.Context, call Call, schema *jsonschema.Schema, out any) bool {
	reply, ok := g.generate(ctx, call)
	if !ok {
		return false
	}

	payload := util.StripCodeFence(reply)

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(payload))
	if err != nil {
		g.logger.Warn("LLM returned invalid JSON", "call", call.Label, "model", call.Model, "error", err, "reply", truncate(reply, 500))
		return false
	}

	if schema != nil {
		if err := schema.Validate(doc); err != nil {
			g.logger.Warn("LLM reply failed schema validation", "call", call.Label, "model", call.Model, "error", err)
			return false
		}
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		g.logger.Warn("LLM reply has unexpected shape", "call", call.Label, "model", call.Model, "error", err)
		return false
	}

	return true
}

func (g *Gateway) generate(ctx context.Context, call Call) (string, bool) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, g.provider.Name()); err != nil {
			g.logger.Warn("LLM call not started", "call", call.Label, "error", err)
			return "", false
		}
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.logger.Debug("calling LLM", "provider", g.provider.Name(), "call", call.Label, "model", call.Model, "prompt_chars", len(call.Prompt))

	resp, err := g.provider.Generate(ctxWithTimeout, GenerateRequest{
		Prompt:      call.Prompt,
		Model:       call.Model,
		Temperature: call.Temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			g.logger.Warn("LLM call timed out", "call", call.Label, "model", call.Model, "timeout", g.timeout)
		} else {
			g.logger.Warn("LLM call failed", "call", call.Label, "model", call.Model, "error", err)
		}
		return "", false
	}

	g.logger.Debug("LLM replied", "call", call.Label, "model", resp.Model, "tokens", resp.TokensUsed)
	return resp.Text, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
