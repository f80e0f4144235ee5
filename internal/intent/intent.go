// Package intent classifies a message that arrives while no flow is pending.
//
// Rules is an ordered table; the first matching rule wins. Several
// predicates overlap ("create an agent to comment on posts" satisfies both
// the builder and the comment rule), so the order is part of the behavior.
package intent

import "strings"

// Intent names the action bound to a message.
type Intent string

const (
	Settings           Intent = "settings"
	CheckDependencies  Intent = "check_dependencies"
	ListAgents         Intent = "list_agents"
	ListEvents         Intent = "list_events"
	CreateEvent        Intent = "create_event"
	SandboxOn          Intent = "sandbox_on"
	SandboxOff         Intent = "sandbox_off"
	BuildAgent         Intent = "build_agent"
	AutoComment        Intent = "auto_comment"
	HashtagMonitor     Intent = "hashtag_monitor"
	Trending           Intent = "trending"
	SetupHost          Intent = "setup_host"
	LegacyCreateAgent  Intent = "legacy_create_agent"
	LegacyLinkedInPost Intent = "legacy_linkedin_post"
	Chat               Intent = "chat"
)

// Rule pairs a predicate over the lower-cased, trimmed input with an intent.
type Rule struct {
	Intent Intent
	Match  func(lower string) bool
}

// Rules is the routing table in priority order.
var Rules = []Rule{
	{Settings, exact("settings", "open settings", "configure")},
	{CheckDependencies, exact("check dependencies", "check setup", "system check")},
	{ListAgents, exact("view agents", "list agents", "show agents")},
	{ListEvents, exact("view events", "list events", "show event handlers")},
	{CreateEvent, prefix("create event", "add event handler")},
	{SandboxOn, exact("sandbox on", "enable sandbox")},
	{SandboxOff, exact("sandbox off", "disable sandbox")},
	{BuildAgent, both(
		contains("create", "creat", "craete", "build", "make", "new", "setup", "set up"),
		contains("agent", "bot", "automation"),
	)},
	{AutoComment, both(contains("comment", "reply"), contains("linkedin", "post"))},
	{HashtagMonitor, both(contains("monitor", "track", "watch", "find"), contains("hashtag", "post", "#"))},
	{Trending, both(
		contains("trending", "trend", "popular", "what is", "find", "search"),
		contains("topic", "hashtag", "linkedin", "#"),
	)},
	{SetupHost, contains("setup openclaw")},
	// Shadowed by BuildAgent.
	{LegacyCreateAgent, contains("create agent")},
	{LegacyLinkedInPost, contains("linkedin post", "post to linkedin")},
}

// Normalize lower-cases and trims input the way every predicate expects.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Classify returns the first matching intent for text, or Chat.
func Classify(text string) Intent {
	lower := Normalize(text)
	for _, r := range Rules {
		if r.Match(lower) {
			return r.Intent
		}
	}
	return Chat
}

func exact(options ...string) func(string) bool {
	return func(s string) bool {
		for _, o := range options {
			if s == o {
				return true
			}
		}
		return false
	}
}

func prefix(options ...string) func(string) bool {
	return func(s string) bool {
		for _, o := range options {
			if strings.HasPrefix(s, o) {
				return true
			}
		}
		return false
	}
}

func contains(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

func both(a, b func(string) bool) func(string) bool {
	return func(s string) bool { return a(s) && b(s) }
}
