package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/approval"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/metrics"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/synth"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/rs/zerolog/log"
)

// MinSpecWords is the shortest agent description the builder will plan.
const MinSpecWords = 6

// User-facing prompts.
const (
	QuestionTooShort = "What exactly should it post or do, and how often should it run?"
	QuestionDefault  = "What should it post/do, and what schedule do you want?"
	InvalidLink      = "❌ Please provide a valid URL starting with http:// or https://"
	ReasonForced     = "Clarification limit reached, used heuristic planning"
)

// ErrInvalidInput marks a reply the current step cannot accept. The step
// re-prompts and the flow stays as it was.
var ErrInvalidInput = errors.New("invalid input")

// ValidateLink accepts links starting with "http".
func ValidateLink(link string) error {
	if !strings.HasPrefix(link, "http") {
		return fmt.Errorf("%w: %q is not a URL", ErrInvalidInput, link)
	}
	return nil
}

// DefaultComment is the comment posted when the user skips custom text.
func DefaultComment(link string) string {
	return "Great insights! Thanks for sharing this with the #openclaw community. 🚀\n\n" +
		"This aligns perfectly with what we're working on. Check out our project: " + link +
		"\n\n#automation #productivity #tech"
}

// Reporter receives chat and activity-log lines.
type Reporter = approval.Reporter

// Planner produces LLM plans.
type Planner interface {
	Plan(ctx context.Context, spec string) (*models.PlannerResult, error)
}

// Synthesizer assembles agent configs.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synth.Request) (models.AgentConfig, models.PlannerResult)
	PostAgent(text string, sandbox bool) models.AgentConfig
}

// Runner launches a worker script and returns a short status line.
type Runner interface {
	Run(ctx context.Context, w models.Worker, args []string) (string, error)
}

// Committer persists an approved agent and reloads the host.
type Committer interface {
	Commit(ctx context.Context, cfg models.AgentConfig, sandbox bool, r approval.Reporter) error
}

// Machine advances pending flows.
type Machine struct {
	Planner     Planner
	Synthesizer Synthesizer
	Runner      Runner
	Gate        Committer
	// MaxClarifications bounds follow-up questions; zero means unbounded.
	MaxClarifications int
	Now               func() time.Time
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Step feeds input to cur and returns the flow that replaces it. A nil result
// clears the slot. A reply the step cannot accept returns cur unchanged.
func (m *Machine) Step(ctx context.Context, cur Flow, input string, sandbox bool, r Reporter) Flow {
	switch f := cur.(type) {
	case AgentBuilder:
		return m.stepBuilder(ctx, f, input, sandbox, r)
	case AutoCommentSetup:
		return m.stepAutoComment(ctx, f, input, sandbox, r)
	case HashtagMonitorSetup:
		return m.stepHashtag(ctx, input, sandbox, r)
	case AgentApproval:
		return m.stepAgentApproval(ctx, f, input, sandbox, r)
	case LinkedInPostApproval:
		return m.stepPostApproval(ctx, f, input, sandbox, r)
	case PostTestConfirm:
		return m.stepPostTest(ctx, f, input, sandbox, r)
	}
	return nil
}

// ── Agent Builder ────────────────────────────────────────────

func (m *Machine) stepBuilder(ctx context.Context, f AgentBuilder, input string, sandbox bool, r Reporter) Flow {
	incoming := strings.TrimSpace(input)
	spec := incoming
	if f.Spec != "" {
		spec = f.Spec + "\n" + incoming
	}

	forced := m.MaxClarifications > 0 && f.Rounds >= m.MaxClarifications

	if !forced && len(strings.Fields(spec)) < MinSpecWords {
		r.Say(QuestionTooShort)
		return AgentBuilder{Step: StepFollowup, Spec: spec, LastQuestion: QuestionTooShort, Rounds: f.Rounds + 1}
	}

	req := synth.Request{Spec: spec, Sandbox: sandbox}
	if forced {
		r.Log("[AGENT] Clarification limit reached, completing with heuristics")
		req.Plan = &models.PlannerResult{Reason: ReasonForced}
	} else {
		plan, err := m.Planner.Plan(ctx, spec)
		if err == nil && plan.NeedsMoreInfo {
			q := strings.TrimSpace(plan.Question)
			if q == "" {
				q = QuestionDefault
			}
			r.Say(q)
			return AgentBuilder{Step: StepFollowup, Spec: spec, LastQuestion: q, Rounds: f.Rounds + 1}
		}
		if err != nil {
			r.Log("[PLANNER] " + err.Error() + ", using heuristics")
		}
		req.Plan, req.PlanErr = plan, err
	}

	cfg, _ := m.Synthesizer.Synthesize(ctx, req)
	for _, line := range synth.Preview(cfg, m.now()) {
		r.Say(line)
	}
	r.Log("[AGENT] AI-built agent preview ready: " + cfg.Name)
	return AgentApproval{Config: cfg}
}

// ── Auto Comment ─────────────────────────────────────────────

func (m *Machine) stepAutoComment(ctx context.Context, f AutoCommentSetup, input string, sandbox bool, r Reporter) Flow {
	switch f.Step {
	case StepGitHubLink:
		link := strings.TrimSpace(input)
		if err := ValidateLink(link); err != nil {
			r.Log("[BROWSER] " + err.Error())
			r.Say(InvalidLink)
			return f
		}
		r.Say("✅ GitHub link saved: " + link)
		r.Say("Now, would you like to customize the comment text?")
		r.Say("💡 Type your custom comment, or type 'skip' to use default")
		r.Log("[BROWSER] GitHub link: " + link)
		return AutoCommentSetup{Step: StepCommentText, GitHubLink: link}

	case StepCommentText:
		text := strings.TrimSpace(input)
		if text == "" || strings.EqualFold(text, "skip") {
			text = DefaultComment(f.GitHubLink)
			r.Say("✅ Using default comment template")
		} else {
			r.Say("✅ Custom comment saved")
		}
		r.Say("🤖 Launching browser...")
		r.Say("Log into LinkedIn manually when the browser opens.")
		if err := m.Dispatch(ctx, models.WorkerComment, []string{text}, sandbox, r); err != nil {
			ReportFailure(r, "Auto-Comment Bot", err)
			return nil
		}
		r.Say("📌 The bot will auto-comment on #openclaw posts once you log in.")
		return nil
	}
	return nil
}

// ── Hashtag Monitor ──────────────────────────────────────────

// NormalizeHashtag trims input and prefixes '#' when missing.
func NormalizeHashtag(input string) string {
	tag := strings.TrimSpace(input)
	if !strings.HasPrefix(tag, "#") {
		tag = "#" + tag
	}
	return tag
}

func (m *Machine) stepHashtag(ctx context.Context, input string, sandbox bool, r Reporter) Flow {
	tag := NormalizeHashtag(input)
	r.Say("✅ Monitoring hashtag: " + tag)
	r.Say("🤖 Launching browser...")
	r.Say("Log into LinkedIn manually when the browser opens.")
	if err := m.Dispatch(ctx, models.WorkerMonitor, []string{tag}, sandbox, r); err != nil {
		ReportFailure(r, "Hashtag Monitor", err)
		return nil
	}
	r.Say(fmt.Sprintf("📌 Monitoring %s posts - results will save to hashtag_%s_posts.json", tag, strings.TrimPrefix(tag, "#")))
	return nil
}

// ── Approvals ────────────────────────────────────────────────

func (m *Machine) stepAgentApproval(ctx context.Context, f AgentApproval, input string, sandbox bool, r Reporter) Flow {
	switch approval.Classify(input) {
	case approval.Approve:
		r.Log("[APPROVAL] ✅ User confirmed agent creation")
		r.Say("Creating agent...")
		if err := m.Gate.Commit(ctx, f.Config.Clone(), sandbox, r); err != nil {
			ReportFailure(r, "Agent deploy", err)
		}
		return nil
	case approval.Reject:
		r.Log("[APPROVAL] ❌ User cancelled agent creation")
		r.Say("Agent creation cancelled.")
		return nil
	}
	r.Say(approval.RepromptAgent)
	r.Say(approval.RepromptHint)
	return f
}

func (m *Machine) stepPostApproval(ctx context.Context, f LinkedInPostApproval, input string, sandbox bool, r Reporter) Flow {
	switch approval.Classify(input) {
	case approval.Approve:
		r.Log("[APPROVAL] ✅ User confirmed LinkedIn post")
		r.Say("Creating LinkedIn agent...")
		cfg := m.Synthesizer.PostAgent(f.PostText, sandbox)
		if err := m.Gate.Commit(ctx, cfg, sandbox, r); err != nil {
			ReportFailure(r, "LinkedIn agent", err)
			return nil
		}
		r.Say("✅ LinkedIn agent deployed successfully!")
		if sandbox {
			r.Say("🔒 Sandbox mode active")
		} else {
			r.Say(fmt.Sprintf("Agent scheduled for %s execution @ %s", cfg.Schedule, cfg.ScheduleTime))
		}
		r.Say("Would you like to test it now? (yes/no)")
		return PostTestConfirm{PostText: f.PostText}
	case approval.Reject:
		r.Log("[APPROVAL] ❌ User cancelled LinkedIn post")
		r.Say("LinkedIn post cancelled.")
		return nil
	}
	r.Say("Please reply with only 'yes' or 'no' for the current LinkedIn post.")
	r.Say(approval.RepromptHint)
	return f
}

func (m *Machine) stepPostTest(ctx context.Context, f PostTestConfirm, input string, sandbox bool, r Reporter) Flow {
	switch approval.Classify(input) {
	case approval.Approve:
		r.Log("[AUTOMATION] Starting immediate test...")
		r.Say("Starting LinkedIn bot for immediate test...")
		if sandbox {
			r.Say("🔒 SANDBOX MODE - Simulated execution:")
			for _, step := range []string{"open browser", "navigate to LinkedIn", "wait for manual login", "fill post content", "wait for manual approval"} {
				r.Say("   ✓ Would " + step)
			}
			r.Say("To run for real, disable sandbox mode: type 'sandbox off'")
			r.Log("[AUTOMATION] ✅ Simulation complete")
			metrics.RecordDispatch(string(models.WorkerPost), "sandbox", nil)
			return nil
		}
		if err := m.Dispatch(ctx, models.WorkerPost, []string{f.PostText}, false, r); err != nil {
			ReportFailure(r, "LinkedIn Bot Test", err)
			r.Say("💡 Make sure Playwright is installed: npx playwright install chromium")
			return nil
		}
		r.Say("Next steps:")
		r.Say("   1. Log in to LinkedIn manually")
		r.Say("   2. Review the highlighted post content")
		r.Say("   3. Click 'Post' button when ready")
		r.Say("   4. Or close browser to cancel")
		return nil
	case approval.Reject:
		r.Say("👍 Skipping the test run. The agent will post on its schedule.")
		return nil
	}
	r.Say("Please reply 'yes' to test the LinkedIn bot now, or 'no' to skip.")
	return f
}

// ── Dispatch ─────────────────────────────────────────────────

// Dispatch launches worker w with args, or simulates the launch in sandbox
// mode.
func (m *Machine) Dispatch(ctx context.Context, w models.Worker, args []string, sandbox bool, r Reporter) error {
	if sandbox {
		r.Say(fmt.Sprintf("🔒 SANDBOX MODE - Simulated %s with %d argument(s)", w, len(args)))
		r.Log("[BROWSER] (simulated) Would launch " + string(w))
		metrics.RecordDispatch(string(w), "sandbox", nil)
		return nil
	}

	r.Log("[BROWSER] Launching " + string(w))
	result, err := m.Runner.Run(ctx, w, args)
	metrics.RecordDispatch(string(w), "live", err)
	if err != nil {
		return err
	}
	r.Say("✅ " + result)
	log.Info().Str("worker", string(w)).Int("args", len(args)).Msg("Worker dispatched")
	return nil
}

// ReportFailure surfaces a dispatch failure in chat and in the activity log.
func ReportFailure(r Reporter, what string, err error) {
	r.Say(fmt.Sprintf("❌ %s failed: %v", what, err))
	r.Log(fmt.Sprintf("[ERROR] %s: %v", what, err))
	log.Error().Err(err).Str("action", what).Msg("Dispatch failed")
}
