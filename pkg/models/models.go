package models

import (
	"strings"
	"time"
)

// ── LLM Configuration ────────────────────────────────────────

// Provider identifies which completion backend serves LLM calls.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderOpenAI Provider = "openai"
	ProviderClaude Provider = "claude"
)

// Valid reports whether p is one of the supported backends.
func (p Provider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderOpenAI, ProviderClaude:
		return true
	}
	return false
}

const (
	DefaultLocalModel    = "phi3"
	DefaultLocalEndpoint = "http://localhost:11434/api/generate"
)

// LLMConfig selects the completion backend. Endpoint is only used by the
// local provider; APIKey only by the remote ones.
type LLMConfig struct {
	Provider Provider `json:"llm_provider"`
	APIKey   string   `json:"llm_api_key,omitempty"`
	Model    string   `json:"llm_model"`
	Endpoint string   `json:"llm_endpoint,omitempty"`
}

// DefaultLLMConfig is the configuration used when no settings file exists.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider: ProviderLocal,
		Model:    DefaultLocalModel,
		Endpoint: DefaultLocalEndpoint,
	}
}

// Masked returns a copy safe to show to a client.
func (c LLMConfig) Masked() LLMConfig {
	if c.APIKey == "" {
		return c
	}
	k := c.APIKey
	if len(k) > 4 {
		k = strings.Repeat("*", len(k)-4) + k[len(k)-4:]
	} else {
		k = "****"
	}
	c.APIKey = k
	return c
}

// ── Workers ──────────────────────────────────────────────────

// Worker is a pre-built browser-automation script.
type Worker string

const (
	WorkerNone    Worker = ""
	WorkerPost    Worker = "linkedin_bot.js"
	WorkerComment Worker = "linkedin_comment_bot.js"
	WorkerMonitor Worker = "linkedin_hashtag_monitor.js"
	WorkerTrend   Worker = "linkedin_trending_scraper.js"
)

// NoWorker is the persisted value of ai_planned_script when no worker was picked.
const NoWorker = "none"

// Workers lists every known worker script.
var Workers = []Worker{WorkerPost, WorkerComment, WorkerMonitor, WorkerTrend}

// ParseWorker maps a planner-supplied script name to a Worker. Unknown names
// and "none" map to WorkerNone.
func ParseWorker(s string) Worker {
	s = strings.TrimSpace(s)
	for _, w := range Workers {
		if strings.EqualFold(s, string(w)) {
			return w
		}
	}
	return WorkerNone
}

// String returns the persisted form of the worker.
func (w Worker) String() string {
	if w == WorkerNone {
		return NoWorker
	}
	return string(w)
}

// ── Agent Configuration ──────────────────────────────────────

// AgentMetadata is the provenance block attached to every synthesized agent.
type AgentMetadata struct {
	CreatedAt       time.Time `json:"created_at"`
	CreatedBy       string    `json:"created_by"`
	SandboxMode     bool      `json:"sandbox_mode"`
	Role            string    `json:"role"`
	Goal            string    `json:"goal"`
	AIPlannedScript string    `json:"ai_planned_script"`
	PlannerReason   string    `json:"planner_reason"`
	BuildMode       string    `json:"build_mode"`
}

// AgentConfig is the persisted agent definition. Field names are part of the
// on-disk format read by the host runtime.
type AgentConfig struct {
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	Role             string        `json:"role"`
	Goal             string        `json:"goal"`
	Tools            []string      `json:"tools"`
	Schedule         string        `json:"schedule"`
	ScheduleTime     string        `json:"schedule_time"`
	Enabled          bool          `json:"enabled"`
	Command          string        `json:"command"`
	Args             []string      `json:"args"`
	WorkingDirectory string        `json:"working_directory"`
	Timeout          int64         `json:"timeout"`
	RetryOnFailure   bool          `json:"retry_on_failure"`
	ScriptType       string        `json:"script_type"`
	GitHubLink       string        `json:"github_link"`
	Metadata         AgentMetadata `json:"metadata"`
}

// Clone returns a deep copy so callers cannot mutate a held config through
// shared slices.
func (c AgentConfig) Clone() AgentConfig {
	c.Tools = append([]string(nil), c.Tools...)
	c.Args = append([]string(nil), c.Args...)
	return c
}

// ── Planner ──────────────────────────────────────────────────

// PlannerResult is the structured plan produced by the LLM planner or the
// heuristic planner. Any field may be empty.
type PlannerResult struct {
	NeedsMoreInfo bool     `json:"needs_more_info"`
	Question      string   `json:"question"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	Goal          string   `json:"goal"`
	Tools         []string `json:"tools"`
	Schedule      string   `json:"schedule"`
	ScheduleTime  string   `json:"schedule_time"`
	ScriptFile    string   `json:"script_file"`
	Reason        string   `json:"reason"`
}

// ── Conversation ─────────────────────────────────────────────

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Action is an optional UI hint attached to an assistant message.
type Action string

const (
	ActionNone         Action = ""
	ActionOpenSettings Action = "open_settings"
)

// Message is one chat transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Action    Action    `json:"action,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LogEntry is one line of the user-visible activity log.
type LogEntry struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ── Store Records ────────────────────────────────────────────

// AgentRecord is a persisted agent row. ConfigJSON is the exact file content.
type AgentRecord struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Role         string    `json:"role"`
	Goal         string    `json:"goal"`
	Tools        []string  `json:"tools"`
	Schedule     string    `json:"schedule"`
	ScheduleTime string    `json:"schedule_time"`
	Command      string    `json:"command"`
	Args         []string  `json:"args"`
	Timeout      int64     `json:"timeout"`
	FilePath     string    `json:"file_path"`
	ConfigJSON   string    `json:"config_json"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Agent log event types.
const (
	AgentLogCreated  = "created"
	AgentLogExecuted = "executed"
	AgentLogSuccess  = "success"
	AgentLogError    = "error"
)

// AgentLog is one lifecycle or execution entry for a persisted agent.
type AgentLog struct {
	ID        int64     `json:"id"`
	AgentName string    `json:"agent_name"`
	EventType string    `json:"event_type"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType selects how the poller treats a handler.
type EventType string

const (
	EventPolling  EventType = "polling"
	EventWeb      EventType = "web"
	EventPeriodic EventType = "periodic"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventPolling, EventWeb, EventPeriodic:
		return true
	}
	return false
}

// EventHandler is a registered background check driven by the poller.
type EventHandler struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	EventType       EventType  `json:"event_type"`
	URL             string     `json:"url,omitempty"`
	IntervalSeconds int        `json:"interval_seconds"`
	LastCheck       *time.Time `json:"last_check,omitempty"`
	IsActive        bool       `json:"is_active"`
	ConfigJSON      string     `json:"config_json,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Due reports whether the handler should run at now.
func (h EventHandler) Due(now time.Time) bool {
	if !h.IsActive {
		return false
	}
	if h.LastCheck == nil {
		return true
	}
	return now.Sub(*h.LastCheck) >= time.Duration(h.IntervalSeconds)*time.Second
}

// ── System ───────────────────────────────────────────────────

// DependencyReport is the outcome of probing the local toolchain.
type DependencyReport struct {
	OS         string `json:"os"`
	Node       bool   `json:"node"`
	NodeVer    string `json:"node_version,omitempty"`
	NPM        bool   `json:"npm"`
	NPMVer     string `json:"npm_version,omitempty"`
	Playwright bool   `json:"playwright"`
	Ollama     bool   `json:"ollama"`
	OpenClaw   bool   `json:"openclaw"`
}

// Missing returns the names of dependencies that were not found.
func (r DependencyReport) Missing() []string {
	var out []string
	if !r.Node {
		out = append(out, "node")
	}
	if !r.NPM {
		out = append(out, "npm")
	}
	if !r.Playwright {
		out = append(out, "playwright")
	}
	if !r.Ollama {
		out = append(out, "ollama")
	}
	if !r.OpenClaw {
		out = append(out, "openclaw")
	}
	return out
}

// ── Worker Processes ─────────────────────────────────────────

type ProcessStatus string

const (
	ProcessRunning ProcessStatus = "running"
	ProcessExited  ProcessStatus = "exited"
	ProcessFailed  ProcessStatus = "failed"
)

// ProcessInfo describes a worker spawned by the assistant.
type ProcessInfo struct {
	ID        string        `json:"id"`
	Worker    Worker        `json:"worker"`
	PID       int           `json:"pid"`
	Status    ProcessStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	ExitedAt  *time.Time    `json:"exited_at,omitempty"`
	Error     string        `json:"error,omitempty"`
}
