package synth_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/planner"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/synth"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	out     string
	err     error
	prompts []string
}

func (s *stubLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.out, s.err
}

var fixedNow = time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

func newSynth(l *stubLLM) *synth.Synthesizer {
	return synth.New(l, "/work", "/work/scripts").WithClock(func() time.Time { return fixedNow })
}

func TestSynthesizeMonitorAgent(t *testing.T) {
	l := &stubLLM{err: errors.New("offline")}
	cfg, _ := newSynth(l).Synthesize(context.Background(), synth.Request{
		Spec:    "create an agent to monitor #AI posts daily",
		PlanErr: planner.ErrUnavailable,
	})

	assert.Equal(t, "node", cfg.Command)
	require.Len(t, cfg.Args, 2)
	assert.Equal(t, filepath.Join("/work/scripts", "linkedin_hashtag_monitor.js"), cfg.Args[0])
	assert.Equal(t, "#AI", cfg.Args[1])
	assert.Equal(t, []string{"playwright", "linkedin", "scraper"}, cfg.Tools)
	assert.Equal(t, "daily", cfg.Schedule)
	assert.Equal(t, planner.ReasonUnavailable, cfg.Metadata.PlannerReason)
	assert.Empty(t, l.prompts, "monitor agents need no generated content")
}

func TestSynthesizeMalformedPlanStillComplete(t *testing.T) {
	l := &stubLLM{out: "no json here"}
	_, err := planner.New(l).Plan(context.Background(), "post daily updates about golang jobs on linkedin")
	require.ErrorIs(t, err, planner.ErrMalformed)

	cfg, _ := newSynth(l).Synthesize(context.Background(), synth.Request{
		Spec:    "post daily updates about golang jobs on linkedin",
		PlanErr: err,
	})

	assert.NotEmpty(t, cfg.Name)
	assert.NotEmpty(t, cfg.Role)
	assert.NotEmpty(t, cfg.Goal)
	assert.NotEmpty(t, cfg.Tools)
	assert.NotEmpty(t, cfg.Schedule)
	assert.NotEmpty(t, cfg.ScheduleTime)
	assert.Equal(t, "node", cfg.Command)
	assert.Equal(t, "/work", cfg.WorkingDirectory)
	assert.Equal(t, int64(300000), cfg.Timeout)
	assert.Equal(t, "auto", cfg.ScriptType)
	assert.Equal(t, "ai_requirements", cfg.Metadata.BuildMode)
	assert.Equal(t, "Personaliz Assistant", cfg.Metadata.CreatedBy)
	// "no json here" is still a successful completion, so it becomes the post body.
	assert.Equal(t, "no json here", cfg.Args[1])
}

func TestSynthesizeContentFallback(t *testing.T) {
	l := &stubLLM{err: errors.New("timeout")}
	spec := "comment on AI posts with https://github.com/x/y"
	cfg, _ := newSynth(l).Synthesize(context.Background(), synth.Request{Spec: spec, PlanErr: planner.ErrUnavailable})

	require.Len(t, cfg.Args, 2)
	assert.Equal(t, synth.FallbackComment("https://github.com/x/y"), cfg.Args[1])
	assert.Equal(t, "https://github.com/x/y", cfg.GitHubLink)
	require.Len(t, l.prompts, 1)
	assert.Contains(t, l.prompts[0], "Include this GitHub link naturally: https://github.com/x/y")
}

func TestSynthesizeGenericAgent(t *testing.T) {
	l := &stubLLM{}
	cfg, plan := newSynth(l).Synthesize(context.Background(), synth.Request{
		Spec: `buy the "cheapest" flight to Lisbon every week`,
		Plan: &models.PlannerResult{Reason: "travel"},
	})

	assert.Equal(t, "cmd", cfg.Command)
	assert.Equal(t, []string{"/C", `echo AI Custom Agent invoked: buy the \"cheapest\" flight to Lisbon every week`}, cfg.Args)
	assert.Equal(t, models.NoWorker, cfg.Metadata.AIPlannedScript)
	assert.Equal(t, planner.ReasonGeneric, plan.Reason)
	assert.Equal(t, "weekly", cfg.Schedule)
}

func TestSynthesizeUsesPlannerFields(t *testing.T) {
	l := &stubLLM{out: "Fresh post text"}
	cfg, _ := newSynth(l).Synthesize(context.Background(), synth.Request{
		Spec: "share hiring news",
		Plan: &models.PlannerResult{
			Name:         "Hiring Herald",
			ScriptFile:   "linkedin_bot.js",
			Schedule:     "weekly",
			ScheduleTime: "11:00",
			Tools:        []string{"playwright", "linkedin"},
			Reason:       "posting",
		},
		Sandbox: true,
	})

	assert.Equal(t, "Hiring Herald", cfg.Name)
	assert.Equal(t, "weekly", cfg.Schedule)
	assert.Equal(t, "11:00", cfg.ScheduleTime)
	assert.Equal(t, "Fresh post text", cfg.Args[1])
	assert.True(t, cfg.Metadata.SandboxMode)
	assert.Equal(t, "posting", cfg.Metadata.PlannerReason)
}

func TestAgentConfigRoundTrip(t *testing.T) {
	l := &stubLLM{out: "A great post"}
	cfg, _ := newSynth(l).Synthesize(context.Background(), synth.Request{
		Spec: "post about https://github.com/alice/demo every 15 min at 07:45",
	})

	raw, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)

	for _, key := range []string{`"name"`, `"schedule_time"`, `"working_directory"`, `"retry_on_failure"`, `"script_type"`, `"github_link"`, `"ai_planned_script"`, `"planner_reason"`, `"build_mode"`} {
		assert.Contains(t, string(raw), key)
	}

	var back models.AgentConfig
	require.NoError(t, json.Unmarshal(raw, &back))
	if diff := cmp.Diff(cfg, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPostAgent(t *testing.T) {
	cfg := newSynth(&stubLLM{}).PostAgent("Hello LinkedIn", false)

	assert.Equal(t, synth.PostAgentName, cfg.Name)
	assert.Equal(t, "daily", cfg.Schedule)
	assert.Equal(t, "09:00", cfg.ScheduleTime)
	assert.Equal(t, []string{filepath.Join("/work/scripts", "linkedin_bot.js"), "Hello LinkedIn"}, cfg.Args)
}

func TestPreview(t *testing.T) {
	cfg, _ := newSynth(&stubLLM{err: errors.New("x")}).Synthesize(context.Background(), synth.Request{
		Spec:    "create an agent to monitor #AI posts daily",
		PlanErr: planner.ErrUnavailable,
	})
	lines := synth.Preview(cfg, fixedNow)

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "📛 Name: LinkedIn Hashtag Monitor")
	assert.Contains(t, joined, "⏰ Schedule: daily at 09:00")
	assert.Contains(t, joined, "🗓️ Next run: Fri May 1 09:00")
	assert.Equal(t, "Create this agent? (yes/no)", lines[len(lines)-1])
}
