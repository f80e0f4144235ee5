// Package server composes the Personaliz assistant: store, worker processes,
// LLM client, chat engine and the local HTTP API.
//
// Usage:
//
//	cfg, _ := config.Load()
//	srv, err := server.New(ctx, cfg)
//	defer srv.Shutdown(ctx)
//	http.ListenAndServe(fmt.Sprintf(":%d", srv.Port), srv.Handler)
//
// The chat CLI uses the same composition and talks to srv.Engine directly.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/api"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/api/handlers"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/approval"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/assistant"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/config"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/events"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/flow"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/llm"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/metrics"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/planner"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/process"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/sessions"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/settings"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/store"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/synth"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/system"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized assistant.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	Engine  *assistant.Engine
	Session *sessions.Session
	Store   store.Store
	Poller  *events.Poller
	Workers *process.Manager
	Host    *process.Host

	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	telemetryShutdown func(context.Context) error
}

// OpenStore opens the backend selected by cfg.Paths.Store.
func OpenStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Paths.Store {
	case "memory":
		snapshot := filepath.Join(cfg.Paths.DataDir, "data.json")
		return store.NewMemoryStore(cfg.Paths.AgentsDir, snapshot), nil
	case "sqlite", "":
		s, err := store.NewSQLite(cfg.Paths.DBPath, cfg.Paths.AgentsDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Paths.Store)
	}
}

// New initializes every component and returns a ready Server. The event
// poller is started when cfg.Events.Enabled is set.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	metrics.Init()

	dataStore, err := OpenStore(cfg)
	if err != nil {
		shutdown(ctx)
		return nil, err
	}
	log.Info().Str("backend", cfg.Paths.Store).Msg("✅ Agent store initialized")

	logs := process.NewLogBuffer(0)
	workers := process.NewManager(cfg.Paths.ScriptsDir, logs)
	host := process.NewHost(cfg.Host, logs)

	prefs := settings.NewFileStore(cfg.Paths.DataDir)
	llmCfg, err := prefs.Load()
	if err != nil {
		// A broken settings file should not keep the assistant from starting.
		log.Warn().Err(err).Str("path", prefs.Path()).Msg("Failed to load settings, using defaults")
		llmCfg = settings.WithDefaults(llmCfg)
	}

	client := llm.New(llmCfg, llm.Options{
		Timeout:       cfg.LLM.Timeout,
		RatePerMinute: cfg.LLM.RatePerMinute,
		OpenAIBaseURL: cfg.LLM.OpenAIBaseURL,
		ClaudeBaseURL: cfg.LLM.ClaudeBaseURL,
	})
	log.Info().Str("provider", string(llmCfg.Provider)).Str("model", llmCfg.Model).Msg("✅ LLM client initialized")

	sy := synth.New(client, cfg.Paths.ProjectDir, cfg.Paths.ScriptsDir)
	machine := &flow.Machine{
		Planner:           planner.New(client),
		Synthesizer:       sy,
		Runner:            workers,
		Gate:              approval.NewGate(dataStore, host, cfg.Host.RestartDelay),
		MaxClarifications: cfg.Assistant.MaxClarifications,
	}

	session := sessions.New(cfg.Assistant.SandboxDefault, llmCfg)
	probe := system.NewProbe(cfg.Host.Dir)

	engine := assistant.New(assistant.Deps{
		Session:  session,
		Machine:  machine,
		LLM:      client,
		Posts:    sy,
		Store:    dataStore,
		Settings: prefs,
		Probe:    probe,
		Host:     host,
	})

	poller := events.NewPoller(dataStore, cfg.Events.PollInterval)
	if cfg.Events.Enabled {
		if _, err := poller.Start(); err != nil {
			dataStore.Close()
			shutdown(ctx)
			return nil, fmt.Errorf("start event poller: %w", err)
		}
	}

	h := handlers.New(engine, dataStore, probe, poller, workers)
	router := api.NewRouter(cfg, h)

	log.Info().Str("session", session.ID()).Bool("sandbox", session.Sandbox()).Msg("✅ Assistant ready")

	return &Server{
		Handler:           router,
		Engine:            engine,
		Session:           session,
		Store:             dataStore,
		Poller:            poller,
		Workers:           workers,
		Host:              host,
		Config:            cfg,
		Port:              cfg.Port,
		telemetryShutdown: shutdown,
	}, nil
}

// Shutdown stops the poller and running workers, closes the store and flushes
// telemetry. The host runtime is left running.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Poller.Stop()

	var errs []error
	if err := s.Workers.StopAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop workers: %w", err))
	}
	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := s.telemetryShutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
	}
	return errors.Join(errs...)
}
