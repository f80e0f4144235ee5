package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/api"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/api/handlers"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/approval"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/assistant"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/config"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/events"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/flow"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/planner"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/process"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/sessions"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/settings"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/store"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/synth"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoLLM struct{}

func (echoLLM) Complete(_ context.Context, prompt string) (string, error) {
	if strings.HasPrefix(prompt, "You are planning") {
		return "", errors.New("offline")
	}
	return "hello from the model", nil
}

func (echoLLM) Configure(models.LLMConfig) {}

type noHost struct{}

func (noHost) Dir() string                 { return "/missing" }
func (noHost) Exists() bool                { return false }
func (noHost) Start(context.Context) error { return errors.New("not installed") }
func (noHost) Stop(context.Context) error  { return errors.New("not running") }

type staticProbe struct{}

func (staticProbe) Check(context.Context) models.DependencyReport {
	return models.DependencyReport{OS: "linux", Node: true, NodeVer: "v20", NPM: true, NPMVer: "10"}
}

type testAPI struct {
	srv     *httptest.Server
	store   *store.MemoryStore
	session *sessions.Session
	poller  *events.Poller
}

func newTestAPI(t *testing.T, keys ...string) *testAPI {
	t.Helper()
	dir := t.TempDir()

	st := store.NewMemoryStore(dir, "")
	t.Cleanup(func() { st.Close() })

	logs := process.NewLogBuffer(0)
	workers := process.NewManager(dir, logs)
	session := sessions.New(false, models.DefaultLLMConfig())
	sy := synth.New(echoLLM{}, dir, dir)

	engine := assistant.New(assistant.Deps{
		Session: session,
		Machine: &flow.Machine{
			Planner:     planner.New(echoLLM{}),
			Synthesizer: sy,
			Runner:      workers,
			Gate:        approval.NewGate(st, noHost{}, 0),
		},
		LLM:      echoLLM{},
		Posts:    sy,
		Store:    st,
		Settings: settings.NewFileStore(dir),
		Probe:    staticProbe{},
		Host:     noHost{},
	})
	poller := events.NewPoller(st, time.Hour)
	t.Cleanup(func() { poller.Stop() })

	cfg := config.Defaults()
	cfg.Auth.APIKeys = keys
	h := handlers.New(engine, st, staticProbe{}, poller, workers)

	srv := httptest.NewServer(api.NewRouter(cfg, h))
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, store: st, session: session, poller: poller}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthAndVersion(t *testing.T) {
	a := newTestAPI(t, "secret")

	var health map[string]string
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/health", nil, &health))
	assert.Equal(t, "healthy", health["status"])

	var version map[string]string
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/version", nil, &version))
	assert.Equal(t, config.Defaults().Version, version["version"])

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/v1/session", nil, nil))
}

func TestChatRoundTrip(t *testing.T) {
	a := newTestAPI(t)

	var resp handlers.ChatResponse
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/chat", handlers.ChatRequest{Text: "hi there"}, &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "hello from the model", resp.Messages[0].Text)

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, "/api/v1/chat", handlers.ChatRequest{Text: "  "}, nil))

	var snap sessions.Snapshot
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/session", nil, &snap))
	assert.Len(t, snap.Messages, 2)
	assert.Equal(t, "none", snap.State.Pending)
}

func TestSettingsMasked(t *testing.T) {
	a := newTestAPI(t)

	body := models.LLMConfig{Provider: models.ProviderClaude, APIKey: "sk-ant-abcdef", Model: "claude-3-haiku-20240307"}
	var saved models.LLMConfig
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPut, "/api/v1/settings", body, &saved))
	assert.Equal(t, "*********cdef", saved.APIKey)

	var got models.LLMConfig
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/settings", nil, &got))
	assert.Equal(t, models.ProviderClaude, got.Provider)
	assert.Equal(t, "*********cdef", got.APIKey)

	bad := models.LLMConfig{Provider: "gemini"}
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPut, "/api/v1/settings", bad, nil))
}

func TestAgentsEndpoints(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	var agents []models.AgentRecord
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/agents", nil, &agents))
	assert.Empty(t, agents)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/v1/agents/ghost", nil, nil))

	_, err := a.store.CreateAgentFile(ctx, "Daily Poster", []byte(`{"name":"Daily Poster","schedule":"daily","enabled":true}`))
	require.NoError(t, err)

	var rec models.AgentRecord
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/agents/Daily%20Poster", nil, &rec))
	assert.Equal(t, "daily", rec.Schedule)

	var logs []models.AgentLog
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/agents/Daily%20Poster/logs?limit=5", nil, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, models.AgentLogCreated, logs[0].EventType)
}

func TestEventsEndpoints(t *testing.T) {
	a := newTestAPI(t)

	var created models.EventHandler
	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/api/v1/events",
		handlers.CreateEventRequest{Name: "site", EventType: models.EventWeb, URL: "https://example.com"}, &created))
	assert.Equal(t, 300, created.IntervalSeconds)
	assert.True(t, created.IsActive)

	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, "/api/v1/events",
		handlers.CreateEventRequest{Name: "x", EventType: "cron"}, nil))
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, "/api/v1/events",
		handlers.CreateEventRequest{Name: "x", EventType: models.EventPolling}, nil))

	var list []models.EventHandler
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/events", nil, &list))
	require.Len(t, list, 1)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/api/v1/events/site", nil, nil))
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, "/api/v1/events/site", nil, nil))
}

func TestPollerStartStop(t *testing.T) {
	a := newTestAPI(t)

	var st handlers.PollerStatus
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/events/poller/start", nil, &st))
	assert.Equal(t, handlers.PollerStatus{Running: true, Changed: true}, st)

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/events/poller/start", nil, &st))
	assert.Equal(t, handlers.PollerStatus{Running: true, Changed: false}, st)

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/events/poller/stop", nil, &st))
	assert.Equal(t, handlers.PollerStatus{Running: false, Changed: true}, st)
}

func TestSystemAndWorkers(t *testing.T) {
	a := newTestAPI(t)

	var deps struct {
		Report  models.DependencyReport `json:"report"`
		Missing []string                `json:"missing"`
	}
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/system/dependencies", nil, &deps))
	assert.True(t, deps.Report.Node)
	assert.Equal(t, []string{"playwright", "ollama", "openclaw"}, deps.Missing)

	var procs []models.ProcessInfo
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/workers", nil, &procs))
	assert.Empty(t, procs)

	var entries []process.LogEntry
	require.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/workers/logs", nil, &entries))
	assert.Empty(t, entries)
}

func TestSessionStream(t *testing.T) {
	a := newTestAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/api/v1/session/stream"
	ws, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer ws.Close(websocket.StatusNormalClosure, "")

	type frame struct {
		Type     string             `json:"type"`
		Snapshot *sessions.Snapshot `json:"snapshot"`
		Event    *sessions.Event    `json:"event"`
	}

	var first frame
	require.NoError(t, wsjson.Read(ctx, ws, &first))
	assert.Equal(t, "snapshot", first.Type)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, a.session.ID(), first.Snapshot.ID)

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/api/v1/chat", handlers.ChatRequest{Text: "sandbox on"}, nil))

	var texts []string
	sawState := false
	for len(texts) < 2 || !sawState {
		var f frame
		require.NoError(t, wsjson.Read(ctx, ws, &f))
		require.NotNil(t, f.Event)
		switch f.Type {
		case sessions.EventMessage:
			texts = append(texts, f.Event.Message.Text)
		case sessions.EventState:
			assert.True(t, f.Event.State.Sandbox)
			sawState = true
		}
	}
	assert.Equal(t, "sandbox on", texts[0])
	assert.Contains(t, texts[1], "Sandbox mode ENABLED")
}
