// Package synth assembles the persisted agent configuration from a resolved
// plan, generating post or comment content through the LLM when the chosen
// worker needs it.
package synth

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/llm"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/planner"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/schedule"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeoutMs = 300000
	ScriptType       = "auto"
	CreatedBy        = "Personaliz Assistant"
	BuildMode        = "ai_requirements"

	PostAgentName = "LinkedIn AI Poster"
)

// Request is everything the synthesizer needs for one agent.
type Request struct {
	// Spec is the accumulated user request.
	Spec string
	// Plan is the LLM plan, nil when planning failed or was skipped.
	Plan *models.PlannerResult
	// PlanErr is the planning failure, if any.
	PlanErr error
	Sandbox bool
}

// Synthesizer builds AgentConfig values.
type Synthesizer struct {
	llm        llm.Completer
	projectDir string
	scriptsDir string
	now        func() time.Time
}

// New creates a synthesizer. Worker paths resolve under scriptsDir and agents
// run with projectDir as their working directory.
func New(c llm.Completer, projectDir, scriptsDir string) *Synthesizer {
	return &Synthesizer{
		llm:        c,
		projectDir: projectDir,
		scriptsDir: scriptsDir,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the creation timestamp source.
func (s *Synthesizer) WithClock(now func() time.Time) *Synthesizer {
	s.now = now
	return s
}

// WorkerPath returns the script path passed to node for w.
func (s *Synthesizer) WorkerPath(w models.Worker) string {
	return filepath.Join(s.scriptsDir, string(w))
}

// Synthesize resolves the plan and assembles the final config. It never
// fails: content generation errors fall back to fixed templates.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (models.AgentConfig, models.PlannerResult) {
	base := req.Plan
	if req.PlanErr != nil {
		base = &models.PlannerResult{Reason: planner.ReasonUnavailable}
	}
	plan := planner.Resolve(req.Spec, base)
	worker := models.ParseWorker(plan.ScriptFile)
	link := planner.ExtractGitHubLink(req.Spec)

	cfg := models.AgentConfig{
		Name:             plan.Name,
		Description:      req.Spec,
		Role:             plan.Role,
		Goal:             plan.Goal,
		Tools:            plan.Tools,
		Schedule:         plan.Schedule,
		ScheduleTime:     plan.ScheduleTime,
		Enabled:          true,
		WorkingDirectory: s.projectDir,
		Timeout:          DefaultTimeoutMs,
		RetryOnFailure:   false,
		ScriptType:       ScriptType,
		GitHubLink:       link,
		Metadata: models.AgentMetadata{
			CreatedAt:       s.now(),
			CreatedBy:       CreatedBy,
			SandboxMode:     req.Sandbox,
			Role:            plan.Role,
			Goal:            plan.Goal,
			AIPlannedScript: worker.String(),
			PlannerReason:   plan.Reason,
			BuildMode:       BuildMode,
		},
	}

	if worker == models.WorkerNone {
		cfg.Command = "cmd"
		cfg.Args = []string{"/C", "echo AI Custom Agent invoked: " + strings.ReplaceAll(req.Spec, `"`, `\"`)}
	} else {
		cfg.Command = "node"
		cfg.Args = append([]string{s.WorkerPath(worker)}, s.workerArgs(ctx, worker, req.Spec, link)...)
	}

	log.Info().
		Str("agent", cfg.Name).
		Str("worker", worker.String()).
		Str("reason", plan.Reason).
		Msg("Agent config synthesized")
	return cfg.Clone(), plan
}

func (s *Synthesizer) workerArgs(ctx context.Context, w models.Worker, spec, link string) []string {
	switch w {
	case models.WorkerPost:
		text, err := s.generate(ctx, "post", spec, link)
		if err != nil {
			return []string{FallbackPost(spec, link)}
		}
		return []string{text}
	case models.WorkerComment:
		text, err := s.generate(ctx, "comment", spec, link)
		if err != nil {
			return []string{FallbackComment(link)}
		}
		return []string{text}
	case models.WorkerMonitor:
		return []string{planner.ExtractHashtag(spec)}
	}
	return nil
}

func (s *Synthesizer) generate(ctx context.Context, kind, spec, link string) (string, error) {
	linkLine := ""
	if link != "" {
		linkLine = "Include this GitHub link naturally: " + link
	}
	prompt := fmt.Sprintf("Write a concise professional LinkedIn %s for this request:\n%s\n%s\nReturn only %s text.", kind, spec, linkLine, kind)

	text, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("Content generation failed, using template")
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty %s from llm", kind)
	}
	return text, nil
}

// FallbackPost is the post body used when the LLM cannot write one.
func FallbackPost(spec, link string) string {
	parts := []string{"Sharing an update on " + spec + "."}
	if link != "" {
		parts = append(parts, "Project: "+link)
	}
	parts = append(parts, "#automation #ai")
	return strings.Join(parts, " ")
}

// FallbackComment is the comment body used when the LLM cannot write one.
func FallbackComment(link string) string {
	if link == "" {
		return "Great perspective — thanks for sharing."
	}
	return "Great perspective — thanks for sharing. Related project: " + link
}

// PostAgent builds the fixed daily posting agent created after a LinkedIn post
// is approved.
func (s *Synthesizer) PostAgent(text string, sandbox bool) models.AgentConfig {
	return models.AgentConfig{
		Name:             PostAgentName,
		Description:      "AI-generated LinkedIn content",
		Role:             planner.DefaultRole(models.WorkerPost),
		Goal:             "Publish the approved LinkedIn post",
		Tools:            planner.DefaultTools(models.WorkerPost),
		Schedule:         planner.DefaultSchedule,
		ScheduleTime:     planner.DefaultTime,
		Enabled:          true,
		Command:          "node",
		Args:             []string{s.WorkerPath(models.WorkerPost), text},
		WorkingDirectory: s.projectDir,
		Timeout:          DefaultTimeoutMs,
		ScriptType:       ScriptType,
		Metadata: models.AgentMetadata{
			CreatedAt:       s.now(),
			CreatedBy:       CreatedBy,
			SandboxMode:     sandbox,
			Role:            planner.DefaultRole(models.WorkerPost),
			AIPlannedScript: models.WorkerPost.String(),
			PlannerReason:   "Approved LinkedIn post",
			BuildMode:       "linkedin_post",
		},
	}
}

const postPrompt = `Generate a professional LinkedIn post based on this request:
%s

Requirements:
- Professional tone
- Include relevant emojis
- Add 3-5 hashtags
- Keep it under 200 words
- Make it engaging

Return ONLY the post text, no explanations.`

// GeneratePost writes a standalone LinkedIn post for request.
func (s *Synthesizer) GeneratePost(ctx context.Context, request string) (string, error) {
	text, err := s.llm.Complete(ctx, fmt.Sprintf(postPrompt, request))
	if err != nil {
		return "", fmt.Errorf("generate post: %w", err)
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", fmt.Errorf("generate post: empty completion")
	}
	return text, nil
}

// Preview renders the chat lines shown before asking for approval.
func Preview(cfg models.AgentConfig, now time.Time) []string {
	rule := strings.Repeat("═", 50)
	lines := []string{
		"🎉 Agent Preview:",
		rule,
		"📛 Name: " + cfg.Name,
		"📝 Description: " + cfg.Description,
		"🎭 Role: " + cfg.Role,
		"📜 Script: " + cfg.Metadata.AIPlannedScript,
		fmt.Sprintf("⏰ Schedule: %s at %s", cfg.Schedule, cfg.ScheduleTime),
	}
	if next, err := schedule.Next(cfg.Schedule, cfg.ScheduleTime, now); err == nil {
		lines = append(lines, "🗓️ Next run: "+next.Format("Mon Jan 2 15:04"))
	}
	lines = append(lines,
		"🧠 Planner: "+cfg.Metadata.PlannerReason,
		rule,
		"Create this agent? (yes/no)",
	)
	return lines
}
