package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/flow"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/intent"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/synth"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/system"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultEventName names a handler created without "for <name>".
	DefaultEventName = "New Event Handler"
	// DefaultEventInterval is the check interval of chat-created handlers.
	DefaultEventInterval = 300

	chatPersona = "You are Personaliz Desktop Assistant.\n"
	chatError   = "AI error"
)

var eventNameRe = regexp.MustCompile(`(?i)\bfor\b\s*(.*)$`)

// EventName returns the handler name given after the word "for", or the
// default name.
func EventName(text string) string {
	if m := eventNameRe.FindStringSubmatch(text); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}
	return DefaultEventName
}

func (e *Engine) now() time.Time {
	if e.Machine.Now != nil {
		return e.Machine.Now()
	}
	return time.Now()
}

func (e *Engine) route(ctx context.Context, in intent.Intent, text string) {
	switch in {
	case intent.Settings:
		e.openSettings()
	case intent.CheckDependencies:
		e.checkDependencies(ctx)
	case intent.ListAgents:
		e.listAgents(ctx)
	case intent.ListEvents:
		e.listEvents(ctx)
	case intent.CreateEvent:
		e.createEvent(ctx, text)
	case intent.SandboxOn:
		e.setSandbox(true)
	case intent.SandboxOff:
		e.setSandbox(false)
	case intent.BuildAgent:
		e.startBuilder()
	case intent.AutoComment:
		e.startAutoComment(text)
	case intent.HashtagMonitor:
		e.startHashtagMonitor()
	case intent.Trending:
		e.runTrending(ctx)
	case intent.SetupHost:
		e.setupHost(ctx)
	case intent.LegacyCreateAgent:
		e.legacyCreateAgent(ctx, text)
	case intent.LegacyLinkedInPost:
		e.legacyLinkedInPost(ctx, text)
	default:
		e.chat(ctx, text)
	}
}

// ── Settings & System ────────────────────────────────────────

func (e *Engine) openSettings() {
	s := e.Session
	s.SayAction("⚙️ Opening settings...", models.ActionOpenSettings)
	cfg := s.LLM()
	s.Say(fmt.Sprintf("Current LLM: %s (%s)", cfg.Provider, cfg.Model))
}

func (e *Engine) checkDependencies(ctx context.Context) {
	s := e.Session
	s.Say("Checking system dependencies...")
	report := e.Probe.Check(ctx)
	for _, line := range system.Summary(report) {
		s.Say(line)
	}

	steps := system.FixSteps(report)
	if len(steps) == 0 {
		s.Say("✅ All dependencies are ready!")
		return
	}
	s.Say("💡 Setup Required:")
	for _, step := range steps {
		s.Say("  • " + step)
	}
	s.Log(fmt.Sprintf("[SYSTEM] Missing dependencies: %s", strings.Join(report.Missing(), ", ")))
}

func (e *Engine) setSandbox(on bool) {
	s := e.Session
	s.SetSandbox(on)
	if on {
		s.Say("🔒 Sandbox mode ENABLED. Automation scripts will be simulated.")
		s.Log("[SYSTEM] Sandbox mode enabled")
		return
	}
	s.Say("🔓 Sandbox mode DISABLED. Automation scripts will run normally.")
	s.Log("[SYSTEM] Sandbox mode disabled")
}

func (e *Engine) setupHost(ctx context.Context) {
	s := e.Session
	s.Log("[OPENCLAW] Checking directory...")
	if !e.Host.Exists() {
		s.Say("❌ OpenClaw not found at " + e.Host.Dir())
		s.Say("Please install OpenClaw first or set OPENCLAW_DIR.")
		s.Log("[OPENCLAW] ❌ Directory not found")
		return
	}
	s.Log("[OPENCLAW] ✅ Directory found")

	if s.Sandbox() {
		s.Say("🔒 SANDBOX MODE - Skipping OpenClaw start")
		s.Log("[OPENCLAW] (simulated) Would start OpenClaw")
		return
	}

	s.Say("Starting OpenClaw...")
	if err := e.Host.Start(ctx); err != nil {
		s.Say("❌ Failed starting OpenClaw: " + err.Error())
		s.Say("Make sure npm is installed and OpenClaw exists at the path.")
		s.Log("[OPENCLAW] ❌ Error: " + err.Error())
		return
	}
	s.Say("✅ OpenClaw started in background!")
	s.Say("Its output is streamed to the worker log.")
	s.Log("[OPENCLAW] ✅ Process started successfully")
}

// ── Store Views ──────────────────────────────────────────────

func (e *Engine) listAgents(ctx context.Context) {
	s := e.Session
	s.Say("Loading agents from database...")
	agents, err := e.Store.ListAgents(ctx)
	if err != nil {
		s.Log("[DB] Error loading agents")
		flow.ReportFailure(s, "Load agents", err)
		return
	}
	s.Log(fmt.Sprintf("[DB] Loaded %d agents from database", len(agents)))
	if len(agents) == 0 {
		s.Say("No agents yet. Try: create an agent that posts daily about AI")
		return
	}

	s.Say(fmt.Sprintf("🤖 %d agent(s):", len(agents)))
	for _, a := range agents {
		state := "active"
		if !a.IsActive {
			state = "disabled"
		}
		s.Say(fmt.Sprintf("  • %s: %s at %s (%s)", a.Name, a.Schedule, a.ScheduleTime, state))
	}
}

func (e *Engine) listEvents(ctx context.Context) {
	s := e.Session
	s.Say("Loading event handlers from database...")
	handlers, err := e.Store.ListEventHandlers(ctx)
	if err != nil {
		s.Log("[DB] Error loading event handlers")
		flow.ReportFailure(s, "Load event handlers", err)
		return
	}
	s.Log(fmt.Sprintf("[DB] Loaded %d event handlers", len(handlers)))
	if len(handlers) == 0 {
		s.Say("No event handlers yet. Try: create event for <name>")
		return
	}

	s.Say(fmt.Sprintf("⏱️ %d event handler(s):", len(handlers)))
	for _, h := range handlers {
		last := "never"
		if h.LastCheck != nil {
			last = h.LastCheck.Local().Format("Jan 2 15:04:05")
		}
		s.Say(fmt.Sprintf("  • %s [%s] every %ds, last check: %s", h.Name, h.EventType, h.IntervalSeconds, last))
	}
}

func (e *Engine) createEvent(ctx context.Context, text string) {
	s := e.Session
	s.Say("Creating periodic event handler...")

	h := &models.EventHandler{
		Name:            EventName(text),
		EventType:       models.EventPeriodic,
		IntervalSeconds: DefaultEventInterval,
		IsActive:        true,
		ConfigJSON:      fmt.Sprintf(`{"url":"","intervalSeconds":%d}`, DefaultEventInterval),
	}
	if err := e.Store.CreateEventHandler(ctx, h); err != nil {
		flow.ReportFailure(s, "Create Event Handler", err)
		return
	}
	s.Say(fmt.Sprintf("✅ Event handler %q created successfully", h.Name))
	s.Log("[DB] Created event handler: " + h.Name)
}

// ── Flow Starters ────────────────────────────────────────────

func (e *Engine) startBuilder() {
	s := e.Session
	s.Log("[AGENT] Starting conversational agent builder...")
	s.Say("🤖 Got it. No predefined form.")
	s.Say("Tell me what this agent should do, what it should post (if posting), and when it should run.")
	s.Say("💡 Example: Create an agent to post daily LinkedIn updates about AI hiring and include my GitHub repo link")
	s.SetPending(flow.AgentBuilder{Step: flow.StepSpec})
}

func (e *Engine) startAutoComment(text string) {
	s := e.Session
	verb := "comment on"
	if strings.Contains(intent.Normalize(text), "reply") {
		verb = "reply to"
	}
	s.Say(fmt.Sprintf("🤖 I'll help you %s LinkedIn posts!", verb))
	s.Say("Please provide your GitHub repository link:")
	s.Say("💡 Example: https://github.com/yourusername/yourproject")
	s.Log("[BROWSER] Auto-comment setup initiated")
	s.SetPending(flow.AutoCommentSetup{Step: flow.StepGitHubLink})
}

func (e *Engine) startHashtagMonitor() {
	s := e.Session
	s.Say("📊 I'll monitor LinkedIn for you!")
	s.Say("Please enter the hashtag you want to monitor:")
	s.Say("💡 Example: #AI or #TechNews")
	s.Log("[BROWSER] Hashtag monitor setup initiated")
	s.SetPending(flow.HashtagMonitorSetup{})
}

func (e *Engine) runTrending(ctx context.Context) {
	s := e.Session
	s.Say("🔥 Analyzing LinkedIn trends...")
	s.Say("A browser window will open - log into LinkedIn manually.")
	if err := e.Machine.Dispatch(ctx, models.WorkerTrend, nil, s.Sandbox(), s); err != nil {
		flow.ReportFailure(s, "Trending Scraper", err)
		return
	}
	s.Say("📌 Scraping trending hashtags and topics - results saved to trending_topics.json")
}

// ── Single-shot Commands ─────────────────────────────────────

func (e *Engine) legacyCreateAgent(ctx context.Context, text string) {
	s := e.Session
	s.Log("[AGENT] Starting creation flow...")
	s.Say("Generating agent...")

	plan, err := e.Machine.Planner.Plan(ctx, text)
	if err != nil {
		s.Log("[PLANNER] " + err.Error() + ", using heuristics")
	}
	cfg, _ := e.Machine.Synthesizer.Synthesize(ctx, synth.Request{
		Spec:    text,
		Plan:    plan,
		PlanErr: err,
		Sandbox: s.Sandbox(),
	})
	for _, line := range synth.Preview(cfg, e.now()) {
		s.Say(line)
	}
	s.Log("[AGENT] Preview ready - awaiting approval")
	s.SetPending(flow.AgentApproval{Config: cfg})
}

func (e *Engine) legacyLinkedInPost(ctx context.Context, text string) {
	s := e.Session
	s.Log("[LINKEDIN] Starting post generation flow...")
	s.Say("Generating LinkedIn post...")

	post, err := e.Posts.GeneratePost(ctx, text)
	if err != nil {
		s.Log("[LLM] " + err.Error())
		s.Say("Failed to generate LinkedIn post")
		return
	}
	s.Log("[LINKEDIN] Preview ready - awaiting approval")

	rule := strings.Repeat("─", 50)
	s.Say("LinkedIn Post Preview:")
	s.Say(rule)
	s.Say(post)
	s.Say(rule)
	s.Say("Approve to post? (yes/no)")
	s.SetPending(flow.LinkedInPostApproval{PostText: post})
}

func (e *Engine) chat(ctx context.Context, text string) {
	s := e.Session
	reply, err := e.LLM.Complete(ctx, chatPersona+text)
	if err != nil {
		log.Warn().Err(err).Msg("Chat completion failed")
		s.Log("[LLM] " + err.Error())
		s.Say(chatError)
		return
	}
	s.Say(reply)
}
