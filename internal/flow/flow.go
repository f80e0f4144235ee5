// Package flow holds the single pending multi-turn interaction of a session
// and advances it one step per user message.
//
// A Flow is a closed set of variants. A session holds at most one; Step
// returns the value that replaces it, or nil when the interaction is over.
package flow

import (
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
)

// Flow is one of the pending-flow variants declared in this package.
type Flow interface {
	// Name identifies the variant and step for logs and metrics.
	Name() string
	isFlow()
}

// Agent builder steps.
const (
	StepSpec     = "ai_spec"
	StepFollowup = "ai_followup"
)

// AgentBuilder accumulates a free-text agent description across turns.
type AgentBuilder struct {
	Step         string `json:"step"`
	Spec         string `json:"spec"`
	LastQuestion string `json:"last_question,omitempty"`
	Rounds       int    `json:"rounds"`
}

// Auto-comment steps.
const (
	StepGitHubLink  = "github_link"
	StepCommentText = "comment_text"
)

// AutoCommentSetup collects a project link and comment text for the comment
// worker.
type AutoCommentSetup struct {
	Step       string `json:"step"`
	GitHubLink string `json:"github_link,omitempty"`
}

// HashtagMonitorSetup waits for the hashtag to monitor.
type HashtagMonitorSetup struct{}

// AgentApproval holds a fully synthesized agent awaiting yes/no.
type AgentApproval struct {
	Config models.AgentConfig `json:"config"`
}

// LinkedInPostApproval holds a generated post awaiting yes/no.
type LinkedInPostApproval struct {
	PostText string `json:"post_text"`
}

// PostTestConfirm asks whether to run the posting worker right away after
// the posting agent was created.
type PostTestConfirm struct {
	PostText string `json:"post_text"`
}

func (AgentBuilder) isFlow() {}
func (AutoCommentSetup) isFlow() {}
func (HashtagMonitorSetup) isFlow() {}
func (AgentApproval) isFlow() {}
func (LinkedInPostApproval) isFlow() {}
func (PostTestConfirm) isFlow() {}

func (f AgentBuilder) Name() string { return "agent_builder." + f.Step }
func (f AutoCommentSetup) Name() string { return "auto_comment." + f.Step }
func (HashtagMonitorSetup) Name() string { return "hashtag_monitor.hashtag" }
func (AgentApproval) Name() string { return "agent_approval" }
func (LinkedInPostApproval) Name() string { return "linkedin_post_approval" }
func (PostTestConfirm) Name() string { return "post_test_confirm" }

// NameOf returns f.Name(), or "none" for nil.
func NameOf(f Flow) string {
	if f == nil {
		return "none"
	}
	return f.Name()
}
