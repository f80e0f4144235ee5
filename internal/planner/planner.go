// Package planner turns an accumulated free-text request into a structured
// agent plan, either by asking the configured LLM or by deterministic keyword
// analysis when the LLM is unavailable or answers with something unusable.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/llm"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/metrics"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnavailable means the completion backend could not be reached or
	// answered with a failure status.
	ErrUnavailable = errors.New("planner unavailable")
	// ErrMalformed means the completion text held no parsable JSON object.
	ErrMalformed = errors.New("planner returned malformed output")
)

const promptTemplate = `You are planning an automation agent from user intent.
User request:
%s

Available scripts:
- linkedin_bot.js (posting)
- linkedin_comment_bot.js (commenting)
- linkedin_hashtag_monitor.js (monitoring hashtags)
- linkedin_trending_scraper.js (trending analysis)

Return ONLY JSON with this shape:
{
  "needs_more_info": boolean,
  "question": "only if needed",
  "name": "agent name",
  "role": "role",
  "goal": "goal",
  "tools": ["playwright","linkedin","llm"],
  "schedule": "daily|hourly|weekly|every X minutes",
  "schedule_time": "HH:MM",
  "script_file": "linkedin_bot.js|linkedin_comment_bot.js|linkedin_hashtag_monitor.js|linkedin_trending_scraper.js|none",
  "reason": "short reason"
}`

// Prompt renders the planning prompt for spec.
func Prompt(spec string) string {
	return fmt.Sprintf(promptTemplate, spec)
}

// Planner asks an LLM for a plan.
type Planner struct {
	llm llm.Completer
}

// New creates a planner backed by c.
func New(c llm.Completer) *Planner {
	return &Planner{llm: c}
}

// Completer exposes the underlying completion backend for content generation.
func (p *Planner) Completer() llm.Completer {
	return p.llm
}

// Plan asks the LLM to plan spec. Errors wrap ErrUnavailable or ErrMalformed;
// callers are expected to fall back to Resolve with a nil plan.
func (p *Planner) Plan(ctx context.Context, spec string) (*models.PlannerResult, error) {
	raw, err := p.llm.Complete(ctx, Prompt(spec))
	if err != nil {
		metrics.RecordPlannerOutcome("unavailable")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	body, err := ExtractJSON(raw)
	if err != nil {
		metrics.RecordPlannerOutcome("malformed")
		return nil, err
	}

	res, err := decodePlan(body)
	if err != nil {
		metrics.RecordPlannerOutcome("malformed")
		return nil, err
	}

	if res.NeedsMoreInfo {
		metrics.RecordPlannerOutcome("needs_more_info")
	} else {
		metrics.RecordPlannerOutcome("planned")
	}
	log.Debug().
		Str("script", res.ScriptFile).
		Bool("needs_more_info", res.NeedsMoreInfo).
		Msg("Planner produced plan")
	return &res, nil
}

// ExtractJSON returns the substring from the first '{' to the last '}'.
func ExtractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("%w: no JSON object in completion", ErrMalformed)
	}
	return raw[start : end+1], nil
}

// decodePlan decodes the plan object field by field. A field with the wrong
// type is dropped and left for the heuristic merge; only a body that is not
// a JSON object is malformed.
func decodePlan(body string) (models.PlannerResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return models.PlannerResult{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var res models.PlannerResult
	targets := map[string]any{
		"needs_more_info": &res.NeedsMoreInfo,
		"question":        &res.Question,
		"name":            &res.Name,
		"role":            &res.Role,
		"goal":            &res.Goal,
		"tools":           &res.Tools,
		"schedule":        &res.Schedule,
		"schedule_time":   &res.ScheduleTime,
		"script_file":     &res.ScriptFile,
		"reason":          &res.Reason,
	}
	for key, dst := range targets {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			log.Debug().Str("field", key).Err(err).Msg("Dropping planner field with unexpected type")
		}
	}
	return res, nil
}
