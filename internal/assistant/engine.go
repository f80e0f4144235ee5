// Package assistant runs one chat transaction per user message: it either
// advances the pending flow or routes the message to an intent handler.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/flow"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/intent"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/llm"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/metrics"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/sessions"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/settings"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/telemetry"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ── Collaborators ────────────────────────────────────────────

// Store is the part of the agent store the intent handlers use.
type Store interface {
	ListAgents(ctx context.Context) ([]models.AgentRecord, error)
	CreateEventHandler(ctx context.Context, h *models.EventHandler) error
	ListEventHandlers(ctx context.Context) ([]models.EventHandler, error)
}

// LLM is the completion client. Configure swaps the provider in place.
type LLM interface {
	llm.Completer
	Configure(cfg models.LLMConfig)
}

// PostWriter generates standalone LinkedIn posts.
type PostWriter interface {
	GeneratePost(ctx context.Context, request string) (string, error)
}

// SettingsStore persists the LLM selection.
type SettingsStore interface {
	Save(cfg models.LLMConfig) error
}

// Prober reports which local dependencies are installed.
type Prober interface {
	Check(ctx context.Context) models.DependencyReport
}

// Host starts the agent runtime.
type Host interface {
	Dir() string
	Exists() bool
	Start(ctx context.Context) error
}

// Deps wires an Engine.
type Deps struct {
	Session  *sessions.Session
	Machine  *flow.Machine
	LLM      LLM
	Posts    PostWriter
	Store    Store
	Settings SettingsStore
	Probe    Prober
	Host     Host
}

// Engine serializes chat transactions against a single session.
type Engine struct {
	mu sync.Mutex
	Deps
}

// New creates an engine.
func New(d Deps) *Engine {
	return &Engine{Deps: d}
}

// Handle processes one user message and returns the assistant messages it
// produced. Blank input is ignored. The only error is a cancelled context;
// every other failure is reported in the transcript.
func (e *Engine) Handle(ctx context.Context, text string) ([]models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return []models.Message{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, "assistant.handle")
	defer span.End()

	s := e.Session
	s.AddUser(text)
	mark := s.MessageCount()

	if cur := s.Pending(); cur != nil {
		next := e.Machine.Step(ctx, cur, text, s.Sandbox(), s)
		s.SetPending(next)

		from, to := flow.NameOf(cur), flow.NameOf(next)
		metrics.RecordMessage("flow")
		metrics.RecordFlowTransition(from, to)
		span.SetAttributes(
			attribute.String("assistant.route", "flow"),
			attribute.String("flow.from", from),
			attribute.String("flow.to", to),
		)
		log.Debug().Str("from", from).Str("to", to).Msg("Flow step")
		return s.MessagesSince(mark), nil
	}

	in := intent.Classify(text)
	metrics.RecordMessage("intent")
	metrics.RecordIntent(string(in))
	span.SetAttributes(
		attribute.String("assistant.route", "intent"),
		attribute.String("assistant.intent", string(in)),
	)
	log.Debug().Str("intent", string(in)).Msg("Message routed")

	e.route(ctx, in, text)

	if next := s.Pending(); next != nil {
		metrics.RecordFlowTransition("none", flow.NameOf(next))
		span.SetAttributes(attribute.String("flow.to", flow.NameOf(next)))
	}
	return s.MessagesSince(mark), nil
}

// UpdateSettings validates and saves cfg, then switches the LLM client and the
// session to it. An empty or still-masked API key keeps the current key when
// the provider is unchanged.
func (e *Engine) UpdateSettings(ctx context.Context, cfg models.LLMConfig) (models.LLMConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, span := telemetry.Tracer().Start(ctx, "assistant.update_settings",
		trace.WithAttributes(attribute.String("llm.provider", string(cfg.Provider))))
	defer span.End()

	cur := e.Session.LLM()
	if cfg.Provider == cur.Provider && (cfg.APIKey == "" || cfg.APIKey == cur.Masked().APIKey) {
		cfg.APIKey = cur.APIKey
	}
	cfg = settings.WithDefaults(cfg)

	if err := e.Settings.Save(cfg); err != nil {
		span.RecordError(err)
		return models.LLMConfig{}, err
	}
	e.LLM.Configure(cfg)
	e.Session.SetLLM(cfg)
	e.Session.Log(fmt.Sprintf("[SETTINGS] LLM provider set to %s (%s)", cfg.Provider, cfg.Model))
	return cfg.Masked(), nil
}
