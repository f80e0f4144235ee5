// Package llm is the completion façade used by the planner, the config
// synthesizer and free chat.
//
// A Client holds the current provider selection and dispatches each call to
// the registered Driver for that provider. Callers only see
// Complete(ctx, prompt) and never branch on which backend answered.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/metrics"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/telemetry"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Driver talks to one provider's HTTP API.
type Driver interface {
	Kind() models.Provider
	Complete(ctx context.Context, cfg models.LLMConfig, prompt string) (string, error)
}

// ProviderError reports a non-success HTTP status from a backend.
type ProviderError struct {
	Provider   string
	StatusCode int
	Status     string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Status)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Options tune the transport shared by all drivers.
type Options struct {
	Timeout       time.Duration
	RatePerMinute int
	OpenAIBaseURL string
	ClaudeBaseURL string
}

// Client routes completions to the driver selected by the current LLMConfig.
type Client struct {
	mu  sync.RWMutex
	cfg models.LLMConfig

	client  *http.Client
	limiter *rate.Limiter

	drvMu   sync.RWMutex
	drivers map[models.Provider]Driver
}

// New creates a client with the built-in local, openai and claude drivers.
func New(cfg models.LLMConfig, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	c := &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		drivers: make(map[models.Provider]Driver),
	}
	if opts.RatePerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1)
	}

	c.RegisterDriver(&localDriver{client: c.client})
	c.RegisterDriver(&openAIDriver{client: c.client, baseURL: opts.OpenAIBaseURL})
	c.RegisterDriver(&claudeDriver{client: c.client, baseURL: opts.ClaudeBaseURL})
	return c
}

// RegisterDriver adds or replaces the driver for its provider kind.
func (c *Client) RegisterDriver(d Driver) {
	c.drvMu.Lock()
	defer c.drvMu.Unlock()
	c.drivers[d.Kind()] = d
	log.Debug().Str("provider", string(d.Kind())).Msg("Registered LLM driver")
}

// GetDriver returns the driver for a provider, or nil.
func (c *Client) GetDriver(p models.Provider) Driver {
	c.drvMu.RLock()
	defer c.drvMu.RUnlock()
	return c.drivers[p]
}

// Configure swaps the provider selection. The next call uses it.
func (c *Client) Configure(cfg models.LLMConfig) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	log.Info().Str("provider", string(cfg.Provider)).Str("model", cfg.Model).Msg("LLM provider configured")
}

// Config returns the current provider selection.
func (c *Client) Config() models.LLMConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Complete sends prompt to the configured provider and returns the trimmed
// completion text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	cfg := c.Config()
	drv := c.GetDriver(cfg.Provider)
	if drv == nil {
		return "", fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm: rate limit: %w", err)
		}
	}

	ctx, span := telemetry.Tracer().Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", string(cfg.Provider)),
		attribute.String("llm.model", cfg.Model),
		attribute.Int("llm.prompt_chars", len(prompt)),
	))
	defer span.End()

	start := time.Now()
	out, err := drv.Complete(ctx, cfg, prompt)
	metrics.RecordLLMCall(string(cfg.Provider), err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().Err(err).Str("provider", string(cfg.Provider)).Msg("LLM call failed")
		return "", err
	}
	return strings.TrimSpace(out), nil
}
