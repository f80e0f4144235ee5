package assistant_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/approval"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/assistant"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/flow"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/planner"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/sessions"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/settings"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/store"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/synth"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fakes ───────────────────────────────────────────────────

const planJSON = `Sure! {"needs_more_info": false, "name": "AI Hiring Poster", "role": "Content Creator",
"goal": "Post about AI hiring", "tools": ["playwright","linkedin","llm"], "schedule": "daily",
"schedule_time": "10:00", "script_file": "linkedin_bot.js", "reason": "posting request"}`

type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	err     error
	cfg     models.LLMConfig
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if strings.HasPrefix(prompt, "You are planning") {
		return planJSON, nil
	}
	return "Hiring great AI engineers is a team sport 🚀 #AI #hiring", nil
}

func (f *fakeLLM) Configure(cfg models.LLMConfig) {
	f.mu.Lock()
	f.cfg = cfg
	f.mu.Unlock()
}

type fakeRunner struct {
	workers []models.Worker
	args    [][]string
}

func (f *fakeRunner) Run(_ context.Context, w models.Worker, args []string) (string, error) {
	f.workers = append(f.workers, w)
	f.args = append(f.args, args)
	return "Started " + string(w) + " in background", nil
}

type fakeHost struct {
	dir      string
	exists   bool
	starts   int
	stops    int
	startErr error
}

func (h *fakeHost) Dir() string  { return h.dir }
func (h *fakeHost) Exists() bool { return h.exists }

func (h *fakeHost) Start(context.Context) error {
	h.starts++
	return h.startErr
}

func (h *fakeHost) Stop(context.Context) error {
	h.stops++
	return nil
}

type fakeProbe struct{ report models.DependencyReport }

func (p fakeProbe) Check(context.Context) models.DependencyReport { return p.report }

type harness struct {
	e        *assistant.Engine
	session  *sessions.Session
	llm      *fakeLLM
	runner   *fakeRunner
	host     *fakeHost
	store    *store.MemoryStore
	settings *settings.FileStore
}

func newHarness(t *testing.T, sandbox bool) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		session:  sessions.New(sandbox, models.DefaultLLMConfig()),
		llm:      &fakeLLM{},
		runner:   &fakeRunner{},
		host:     &fakeHost{dir: "/opt/openclaw"},
		store:    store.NewMemoryStore(dir, ""),
		settings: settings.NewFileStore(dir),
	}
	t.Cleanup(func() { h.store.Close() })

	sy := synth.New(h.llm, "/proj", "/proj/scripts")
	m := &flow.Machine{
		Planner:     planner.New(h.llm),
		Synthesizer: sy,
		Runner:      h.runner,
		Gate:        approval.NewGate(h.store, h.host, 0),
		Now:         func() time.Time { return time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC) },
	}
	h.e = assistant.New(assistant.Deps{
		Session:  h.session,
		Machine:  m,
		LLM:      h.llm,
		Posts:    sy,
		Store:    h.store,
		Settings: h.settings,
		Probe:    fakeProbe{report: models.DependencyReport{OS: "linux", Node: true, NodeVer: "v20"}},
		Host:     h.host,
	})
	return h
}

func (h *harness) send(t *testing.T, text string) string {
	t.Helper()
	msgs, err := h.e.Handle(context.Background(), text)
	require.NoError(t, err)
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		assert.Equal(t, models.RoleAssistant, m.Role)
		lines[i] = m.Text
	}
	return strings.Join(lines, "\n")
}

// ── Routing ─────────────────────────────────────────────────

func TestBlankInputIgnored(t *testing.T) {
	h := newHarness(t, false)

	msgs, err := h.e.Handle(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Zero(t, h.session.MessageCount())
}

func TestCancelledContext(t *testing.T) {
	h := newHarness(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.e.Handle(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.session.MessageCount())
}

func TestSettingsIntentCarriesAction(t *testing.T) {
	h := newHarness(t, false)

	msgs, err := h.e.Handle(context.Background(), "Open Settings")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.ActionOpenSettings, msgs[0].Action)
	assert.Equal(t, "Current LLM: local (phi3)", msgs[1].Text)
}

func TestSandboxToggle(t *testing.T) {
	h := newHarness(t, false)

	out := h.send(t, "sandbox on")
	assert.Contains(t, out, "Sandbox mode ENABLED")
	assert.True(t, h.session.Sandbox())

	out = h.send(t, "disable sandbox")
	assert.Contains(t, out, "Sandbox mode DISABLED")
	assert.False(t, h.session.Sandbox())
}

func TestDependencyCheck(t *testing.T) {
	h := newHarness(t, false)

	out := h.send(t, "system check")
	assert.Contains(t, out, "📋 System Status:")
	assert.Contains(t, out, "  • Node.js: ✅ v20")
	assert.Contains(t, out, "💡 Setup Required:")
	assert.Contains(t, out, "  • Run: setup openclaw")
	assert.NotContains(t, out, "All dependencies are ready")
}

func TestChat(t *testing.T) {
	h := newHarness(t, false)

	out := h.send(t, "how are you?")
	assert.NotEmpty(t, out)
	require.Len(t, h.llm.prompts, 1)
	assert.Equal(t, "You are Personaliz Desktop Assistant.\nhow are you?", h.llm.prompts[0])

	h.llm.err = errors.New("connection refused")
	assert.Equal(t, "AI error", h.send(t, "still there?"))
}

func TestSetupHost(t *testing.T) {
	h := newHarness(t, false)

	out := h.send(t, "setup openclaw")
	assert.Contains(t, out, "❌ OpenClaw not found at /opt/openclaw")
	assert.Zero(t, h.host.starts)

	h.host.exists = true
	out = h.send(t, "setup openclaw")
	assert.Contains(t, out, "✅ OpenClaw started in background!")
	assert.Equal(t, 1, h.host.starts)

	h.host.startErr = errors.New("npm: not found")
	out = h.send(t, "setup openclaw")
	assert.Contains(t, out, "❌ Failed starting OpenClaw: npm: not found")
}

// ── Event Handlers ──────────────────────────────────────────

func TestEventName(t *testing.T) {
	assert.Equal(t, "daily digest", assistant.EventName("create event for daily digest"))
	assert.Equal(t, "forum", assistant.EventName("create event FOR forum"))
	assert.Equal(t, assistant.DefaultEventName, assistant.EventName("create event before lunch"))
	assert.Equal(t, assistant.DefaultEventName, assistant.EventName("add event handler for "))
}

func TestCreateAndListEvents(t *testing.T) {
	h := newHarness(t, false)

	out := h.send(t, "create event for daily digest")
	assert.Contains(t, out, `✅ Event handler "daily digest" created successfully`)

	handlers, err := h.store.ListEventHandlers(context.Background())
	require.NoError(t, err)
	require.Len(t, handlers, 1)
	assert.Equal(t, models.EventPeriodic, handlers[0].EventType)
	assert.Equal(t, assistant.DefaultEventInterval, handlers[0].IntervalSeconds)
	assert.True(t, handlers[0].IsActive)

	out = h.send(t, "list events")
	assert.Contains(t, out, "daily digest [periodic] every 300s, last check: never")
}

// ── Flows ───────────────────────────────────────────────────

func TestBuildAgentEndToEnd(t *testing.T) {
	h := newHarness(t, true)

	out := h.send(t, "create an agent")
	assert.Contains(t, out, "No predefined form")
	assert.Equal(t, flow.AgentBuilder{Step: flow.StepSpec}, h.session.Pending())

	out = h.send(t, "post daily stuff")
	assert.Equal(t, flow.QuestionTooShort, out)
	assert.Empty(t, h.llm.prompts, "short specs never reach the planner")

	out = h.send(t, "about AI hiring on LinkedIn every morning at 10:00")
	assert.Contains(t, out, "🎉 Agent Preview:")
	assert.Contains(t, out, "📛 Name: AI Hiring Poster")
	a, ok := h.session.Pending().(flow.AgentApproval)
	require.True(t, ok, "got %T", h.session.Pending())
	assert.Equal(t, "linkedin_bot.js", a.Config.Metadata.AIPlannedScript)

	out = h.send(t, "maybe")
	assert.Contains(t, out, approval.RepromptAgent)
	assert.IsType(t, flow.AgentApproval{}, h.session.Pending())

	out = h.send(t, " YES ")
	assert.Contains(t, out, "Agent file created")
	assert.Contains(t, out, "SANDBOX MODE - Skipping OpenClaw restart")
	assert.Nil(t, h.session.Pending())
	assert.Zero(t, h.host.stops, "sandbox never touches the host")

	agents, err := h.store.ListAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "AI Hiring Poster", agents[0].Name)

	out = h.send(t, "view agents")
	assert.Contains(t, out, "AI Hiring Poster: daily at 10:00 (active)")
}

func TestHashtagMonitorEndToEnd(t *testing.T) {
	h := newHarness(t, false)

	h.send(t, "monitor a hashtag for me")
	assert.Equal(t, flow.HashtagMonitorSetup{}, h.session.Pending())

	out := h.send(t, "AI")
	assert.Contains(t, out, "✅ Monitoring hashtag: #AI")
	assert.Nil(t, h.session.Pending())
	require.Equal(t, []models.Worker{models.WorkerMonitor}, h.runner.workers)
	assert.Equal(t, []string{"#AI"}, h.runner.args[0])
}

func TestAutoCommentSkipEndToEnd(t *testing.T) {
	h := newHarness(t, false)
	link := "https://github.com/me/proj"

	out := h.send(t, "reply to linkedin posts")
	assert.Contains(t, out, "I'll help you reply to LinkedIn posts!")

	out = h.send(t, "github.com/me/proj")
	assert.Contains(t, out, "valid URL")
	assert.Equal(t, flow.AutoCommentSetup{Step: flow.StepGitHubLink}, h.session.Pending())

	h.send(t, link)
	assert.Equal(t, flow.AutoCommentSetup{Step: flow.StepCommentText, GitHubLink: link}, h.session.Pending())

	h.send(t, "skip")
	assert.Nil(t, h.session.Pending())
	require.Equal(t, []models.Worker{models.WorkerComment}, h.runner.workers)
	assert.Equal(t, []string{flow.DefaultComment(link)}, h.runner.args[0])
}

func TestTrendingSandboxSimulates(t *testing.T) {
	h := newHarness(t, true)

	out := h.send(t, "what is trending on linkedin")
	assert.Contains(t, out, "SANDBOX MODE")
	assert.Contains(t, out, "trending_topics.json")
	assert.Empty(t, h.runner.workers)
	assert.Nil(t, h.session.Pending())
}

func TestLinkedInPostApprovalThenTest(t *testing.T) {
	h := newHarness(t, true)

	out := h.send(t, "write a linkedin post about go generics")
	assert.Contains(t, out, "LinkedIn Post Preview:")
	assert.Contains(t, out, strings.Repeat("─", 50))
	post, ok := h.session.Pending().(flow.LinkedInPostApproval)
	require.True(t, ok, "got %T", h.session.Pending())
	assert.Contains(t, post.PostText, "#AI")

	out = h.send(t, "yes")
	assert.Contains(t, out, "Would you like to test it now? (yes/no)")
	assert.Equal(t, flow.PostTestConfirm{PostText: post.PostText}, h.session.Pending())

	h.send(t, "no")
	assert.Nil(t, h.session.Pending())

	rec, err := h.store.GetAgent(context.Background(), synth.PostAgentName)
	require.NoError(t, err)
	assert.Equal(t, []string{"/proj/scripts/linkedin_bot.js", post.PostText}, rec.Args)
}

func TestPendingFlowWinsOverIntent(t *testing.T) {
	h := newHarness(t, false)
	h.send(t, "monitor a hashtag")

	// "sandbox on" is the hashtag here, not a command.
	h.send(t, "sandbox on")
	assert.False(t, h.session.Sandbox())
	require.Len(t, h.runner.args, 1)
	assert.Equal(t, []string{"#sandbox on"}, h.runner.args[0])
}

// ── Settings ────────────────────────────────────────────────

func TestUpdateSettings(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.e.UpdateSettings(ctx, models.LLMConfig{Provider: models.ProviderOpenAI, Model: "gpt-4o-mini"})
	assert.ErrorIs(t, err, settings.ErrInvalid)
	assert.Equal(t, models.ProviderLocal, h.session.LLM().Provider, "rejected settings are not applied")

	got, err := h.e.UpdateSettings(ctx, models.LLMConfig{Provider: models.ProviderOpenAI, APIKey: "sk-secret1234", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "*********1234", got.APIKey)
	assert.Equal(t, "sk-secret1234", h.session.LLM().APIKey)
	assert.Equal(t, models.ProviderOpenAI, h.llm.cfg.Provider)

	// A client echoing the masked key keeps the stored one.
	_, err = h.e.UpdateSettings(ctx, models.LLMConfig{Provider: models.ProviderOpenAI, APIKey: got.APIKey, Model: "gpt-4o"})
	require.NoError(t, err)
	saved, err := h.settings.Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-secret1234", saved.APIKey)
	assert.Equal(t, "gpt-4o", saved.Model)
}

func TestSessionSeesTransactionAtomically(t *testing.T) {
	h := newHarness(t, true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.e.Handle(context.Background(), "sandbox on")
		}()
	}
	wg.Wait()

	msgs := h.session.Snapshot().Messages
	require.Len(t, msgs, 16)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, models.RoleUser, msgs[i].Role)
		assert.Equal(t, models.RoleAssistant, msgs[i+1].Role)
	}
}
