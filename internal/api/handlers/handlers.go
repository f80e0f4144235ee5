// Package handlers implements the local HTTP API of the Personaliz assistant.
// Chat goes through the engine; the remaining endpoints read or manage the
// store, the event poller and worker processes directly.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/assistant"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/events"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/process"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/sessions"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/settings"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/store"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Engine  *assistant.Engine
	Session *sessions.Session
	Store   store.Store
	Probe   assistant.Prober
	Poller  *events.Poller
	Workers *process.Manager
}

// New creates a new Handlers instance with all dependencies.
func New(e *assistant.Engine, s store.Store, probe assistant.Prober, poller *events.Poller, workers *process.Manager) *Handlers {
	return &Handlers{
		Engine:  e,
		Session: e.Session,
		Store:   s,
		Probe:   probe,
		Poller:  poller,
		Workers: workers,
	}
}

// ══════════════════════════════════════════════════════════════
// ── Chat & Session ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Text string `json:"text"`
}

// ChatResponse carries the assistant messages produced by one user message.
type ChatResponse struct {
	Messages []models.Message `json:"messages"`
}

// POST /api/v1/chat
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	msgs, err := h.Engine.Handle(r.Context(), req.Text)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ChatResponse{Messages: msgs})
}

// GET /api/v1/session
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Session.Snapshot())
}

// ══════════════════════════════════════════════════════════════
// ── Settings ─────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// GET /api/v1/settings
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Session.LLM().Masked())
}

// PUT /api/v1/settings
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.LLMConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := h.Engine.UpdateSettings(r.Context(), req)
	if err != nil {
		if errors.Is(err, settings.ErrInvalid) {
			respondError(w, http.StatusBadRequest, err.Error())
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// ══════════════════════════════════════════════════════════════
// ── Agent Handlers ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// GET /api/v1/agents
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Store.ListAgents(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if agents == nil {
		agents = []models.AgentRecord{}
	}
	respondJSON(w, http.StatusOK, agents)
}

// GET /api/v1/agents/{agentName}
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentName := chi.URLParam(r, "agentName")

	agent, err := h.Store.GetAgent(r.Context(), agentName)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

// GET /api/v1/agents/{agentName}/logs?limit=N
func (h *Handlers) GetAgentLogs(w http.ResponseWriter, r *http.Request) {
	agentName := chi.URLParam(r, "agentName")
	limit := queryInt(r, "limit", store.DefaultLogLimit)

	logs, err := h.Store.ListAgentLogs(r.Context(), agentName, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []models.AgentLog{}
	}
	respondJSON(w, http.StatusOK, logs)
}

// ══════════════════════════════════════════════════════════════
// ── Event Handlers ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// CreateEventRequest is the body of POST /api/v1/events.
type CreateEventRequest struct {
	Name            string           `json:"name"`
	EventType       models.EventType `json:"event_type"`
	URL             string           `json:"url"`
	IntervalSeconds int              `json:"interval_seconds"`
	IsActive        *bool            `json:"is_active,omitempty"`
}

// GET /api/v1/events
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	handlers, err := h.Store.ListEventHandlers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if handlers == nil {
		handlers = []models.EventHandler{}
	}
	respondJSON(w, http.StatusOK, handlers)
}

// POST /api/v1/events
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name = strings.TrimSpace(req.Name); req.Name == "" {
		req.Name = assistant.DefaultEventName
	}
	if req.EventType == "" {
		req.EventType = models.EventPeriodic
	}
	if !req.EventType.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown event_type %q", req.EventType))
		return
	}
	if req.EventType != models.EventPeriodic && !strings.HasPrefix(req.URL, "http") {
		respondError(w, http.StatusBadRequest, "url is required for "+string(req.EventType)+" handlers")
		return
	}
	if req.IntervalSeconds < 0 {
		respondError(w, http.StatusBadRequest, "interval_seconds must be positive")
		return
	}
	if req.IntervalSeconds == 0 {
		req.IntervalSeconds = assistant.DefaultEventInterval
	}

	cfgJSON, _ := json.Marshal(map[string]any{"url": req.URL, "intervalSeconds": req.IntervalSeconds})
	eh := &models.EventHandler{
		Name:            req.Name,
		EventType:       req.EventType,
		URL:             req.URL,
		IntervalSeconds: req.IntervalSeconds,
		IsActive:        req.IsActive == nil || *req.IsActive,
		ConfigJSON:      string(cfgJSON),
	}
	if err := h.Store.CreateEventHandler(r.Context(), eh); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("handler", eh.Name).Str("type", string(eh.EventType)).Msg("Event handler created")
	respondJSON(w, http.StatusCreated, eh)
}

// DELETE /api/v1/events/{eventName}
func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "eventName")
	if err := h.Store.DeleteEventHandler(r.Context(), name); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PollerStatus reports the poller state after a start or stop request.
type PollerStatus struct {
	Running bool `json:"running"`
	Changed bool `json:"changed"`
}

// POST /api/v1/events/poller/start
func (h *Handlers) StartPoller(w http.ResponseWriter, r *http.Request) {
	changed, err := h.Poller.Start()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, PollerStatus{Running: h.Poller.Running(), Changed: changed})
}

// POST /api/v1/events/poller/stop
func (h *Handlers) StopPoller(w http.ResponseWriter, r *http.Request) {
	changed := h.Poller.Stop()
	respondJSON(w, http.StatusOK, PollerStatus{Running: h.Poller.Running(), Changed: changed})
}

// ══════════════════════════════════════════════════════════════
// ── System & Workers ─────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// GET /api/v1/system/dependencies
func (h *Handlers) CheckDependencies(w http.ResponseWriter, r *http.Request) {
	report := h.Probe.Check(r.Context())
	missing := report.Missing()
	if missing == nil {
		missing = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"report":  report,
		"missing": missing,
	})
}

// GET /api/v1/workers
func (h *Handlers) ListWorkers(w http.ResponseWriter, r *http.Request) {
	procs := h.Workers.List()
	if procs == nil {
		procs = []models.ProcessInfo{}
	}
	respondJSON(w, http.StatusOK, procs)
}

// GET /api/v1/workers/logs?worker=linkedin_bot.js&n=200
func (h *Handlers) GetWorkerLogs(w http.ResponseWriter, r *http.Request) {
	entries := h.Workers.Logs().Recent(r.URL.Query().Get("worker"), queryInt(r, "n", 500))
	if entries == nil {
		entries = []process.LogEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// ══════════════════════════════════════════════════════════════
// ── Helpers ──────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondStoreError(w http.ResponseWriter, err error) {
	var nf *store.ErrNotFound
	if errors.As(err, &nf) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
