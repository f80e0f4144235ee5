package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
)

// Planner reasons recorded in agent metadata.
const (
	ReasonDefault     = "AI requirement analysis"
	ReasonUnavailable = "LLM planner unavailable, used heuristic planning"
	ReasonGeneric     = "No predefined automation script matched; created generic AI agent"
)

const (
	DefaultSchedule = "daily"
	DefaultTime     = "09:00"
	DefaultHashtag  = "#AI"
)

var (
	timeRe    = regexp.MustCompile(`\b([01]?\d|2[0-3]):[0-5]\d\b`)
	everyRe   = regexp.MustCompile(`every\s+(\d+)\s*min`)
	hashtagRe = regexp.MustCompile(`#\w+`)
	githubRe  = regexp.MustCompile(`(?i)https?://github\.com/\S+`)
)

type profile struct {
	name  string
	role  string
	tools []string
}

var profiles = map[models.Worker]profile{
	models.WorkerComment: {"LinkedIn Comment Agent", "Comment Assistant", []string{"playwright", "linkedin", "llm"}},
	models.WorkerMonitor: {"LinkedIn Hashtag Monitor", "Social Monitor", []string{"playwright", "linkedin", "scraper"}},
	models.WorkerTrend:   {"LinkedIn Trend Agent", "Trend Analyst", []string{"playwright", "linkedin", "llm"}},
	models.WorkerPost:    {"LinkedIn Content Agent", "Content Creator", []string{"playwright", "linkedin", "llm"}},
	models.WorkerNone:    {"AI Custom Agent", "Task Agent", []string{"llm", "openclaw"}},
}

// SelectWorker picks a worker from keywords in spec. First match wins.
func SelectWorker(spec string) models.Worker {
	s := strings.ToLower(spec)
	switch {
	case containsAny(s, "comment", "reply"):
		return models.WorkerComment
	case containsAny(s, "trend", "popular"):
		return models.WorkerTrend
	case containsAny(s, "monitor", "track", "hashtag", "#"):
		return models.WorkerMonitor
	case containsAny(s, "linkedin", "post"):
		return models.WorkerPost
	}
	return models.WorkerNone
}

// DefaultName returns the agent name used when the planner gave none.
func DefaultName(w models.Worker) string { return profiles[w].name }

// DefaultRole returns the agent role used when the planner gave none.
func DefaultRole(w models.Worker) string { return profiles[w].role }

// DefaultTools returns a fresh copy of the tool list for w.
func DefaultTools(w models.Worker) []string {
	return append([]string(nil), profiles[w].tools...)
}

// InferSchedule reads a cadence from spec: hourly, weekly, every N minutes,
// otherwise daily.
func InferSchedule(spec string) string {
	s := strings.ToLower(spec)
	switch {
	case strings.Contains(s, "hour"):
		return "hourly"
	case strings.Contains(s, "week"):
		return "weekly"
	}
	if m := everyRe.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("every %s minutes", m[1])
	}
	return DefaultSchedule
}

// InferTime returns the first HH:MM token in spec, or 09:00.
func InferTime(spec string) string {
	if m := timeRe.FindString(spec); m != "" {
		return m
	}
	return DefaultTime
}

// ExtractHashtag returns the first #tag in spec, or #AI.
func ExtractHashtag(spec string) string {
	if m := hashtagRe.FindString(spec); m != "" {
		return m
	}
	return DefaultHashtag
}

// ExtractGitHubLink returns the first github.com URL in spec, or "".
func ExtractGitHubLink(spec string) string {
	return githubRe.FindString(spec)
}

// Heuristic plans spec without an LLM.
func Heuristic(spec string) models.PlannerResult {
	return Resolve(spec, nil)
}

// Resolve merges a planner result with keyword analysis of spec. Non-empty
// planner fields win. A planner schedule of "daily" and time of "09:00" are
// treated as defaults and yield to explicit cadence or time found in spec.
// planned may be nil, or carry only a Reason.
func Resolve(spec string, planned *models.PlannerResult) models.PlannerResult {
	var p models.PlannerResult
	if planned != nil {
		p = *planned
		p.Tools = append([]string(nil), planned.Tools...)
	}

	out := models.PlannerResult{
		NeedsMoreInfo: p.NeedsMoreInfo,
		Question:      p.Question,
		Reason:        firstNonEmpty(p.Reason, ReasonDefault),
		Goal:          firstNonEmpty(p.Goal, spec),
	}

	worker := models.ParseWorker(p.ScriptFile)
	if worker == models.WorkerNone {
		worker = SelectWorker(spec)
		if worker == models.WorkerNone {
			out.Reason = ReasonGeneric
		}
	}
	out.ScriptFile = worker.String()

	out.Name = firstNonEmpty(p.Name, DefaultName(worker))
	out.Role = firstNonEmpty(p.Role, DefaultRole(worker))
	out.Tools = p.Tools
	if len(out.Tools) == 0 {
		out.Tools = DefaultTools(worker)
	}

	out.Schedule = p.Schedule
	if out.Schedule == "" || out.Schedule == DefaultSchedule {
		out.Schedule = InferSchedule(spec)
	}
	out.ScheduleTime = p.ScheduleTime
	if out.ScheduleTime == "" || out.ScheduleTime == DefaultTime {
		out.ScheduleTime = InferTime(spec)
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
