// Package sessions holds the single conversation session: transcript,
// activity log, pending flow, sandbox flag and LLM selection.
//
// Only the engine mutates a session, one transaction at a time. HTTP readers
// take snapshots concurrently and may subscribe to new entries.
package sessions

import (
	"sync"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/flow"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/google/uuid"
)

// Event kinds delivered to subscribers.
const (
	EventMessage = "message"
	EventLog     = "log"
	EventState   = "state"
)

// Event is one streamed change.
type Event struct {
	Type    string           `json:"type"`
	Message *models.Message  `json:"message,omitempty"`
	Log     *models.LogEntry `json:"log,omitempty"`
	State   *State           `json:"state,omitempty"`
}

// State is the non-transcript part of a session.
type State struct {
	Pending string           `json:"pending"`
	Sandbox bool             `json:"sandbox"`
	LLM     models.LLMConfig `json:"llm"`
}

// Snapshot is a consistent copy of a session.
type Snapshot struct {
	ID        string            `json:"id"`
	Messages  []models.Message  `json:"messages"`
	Logs      []models.LogEntry `json:"logs"`
	State     State             `json:"state"`
	CreatedAt time.Time         `json:"created_at"`
}

// Session is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	id        string
	createdAt time.Time
	messages  []models.Message
	logs      []models.LogEntry
	pending   flow.Flow
	sandbox   bool
	llm       models.LLMConfig
	now       func() time.Time

	subMu sync.Mutex
	subs  map[chan Event]struct{}
}

// New creates a session with the given sandbox flag and LLM selection.
func New(sandbox bool, llm models.LLMConfig) *Session {
	return &Session{
		id:        uuid.NewString(),
		createdAt: time.Now().UTC(),
		sandbox:   sandbox,
		llm:       llm,
		now:       func() time.Time { return time.Now().UTC() },
		subs:      make(map[chan Event]struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// AddUser appends a user message.
func (s *Session) AddUser(text string) models.Message {
	return s.add(models.RoleUser, text, models.ActionNone)
}

// Say appends an assistant message.
func (s *Session) Say(text string) {
	s.add(models.RoleAssistant, text, models.ActionNone)
}

// SayAction appends an assistant message carrying a UI action.
func (s *Session) SayAction(text string, action models.Action) {
	s.add(models.RoleAssistant, text, action)
}

func (s *Session) add(role models.Role, text string, action models.Action) models.Message {
	m := models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Action:    action,
		Timestamp: s.now(),
	}
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()

	s.broadcast(Event{Type: EventMessage, Message: &m})
	return m
}

// Log appends an activity-log line.
func (s *Session) Log(text string) {
	e := models.LogEntry{Text: text, Timestamp: s.now()}
	s.mu.Lock()
	s.logs = append(s.logs, e)
	s.mu.Unlock()

	s.broadcast(Event{Type: EventLog, Log: &e})
}

// MessageCount is the transcript length; messages appended after a call
// start at this index.
func (s *Session) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// MessagesSince returns a copy of the messages from index i on.
func (s *Session) MessagesSince(i int) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 {
		i = 0
	}
	if i >= len(s.messages) {
		return []models.Message{}
	}
	return append([]models.Message(nil), s.messages[i:]...)
}

func (s *Session) Pending() flow.Flow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// SetPending replaces the pending flow; nil clears it.
func (s *Session) SetPending(f flow.Flow) {
	s.mu.Lock()
	s.pending = f
	s.mu.Unlock()
	s.publishState()
}

func (s *Session) Sandbox() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sandbox
}

func (s *Session) SetSandbox(on bool) {
	s.mu.Lock()
	s.sandbox = on
	s.mu.Unlock()
	s.publishState()
}

func (s *Session) LLM() models.LLMConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llm
}

func (s *Session) SetLLM(cfg models.LLMConfig) {
	s.mu.Lock()
	s.llm = cfg
	s.mu.Unlock()
	s.publishState()
}

func (s *Session) state() State {
	return State{Pending: flow.NameOf(s.pending), Sandbox: s.sandbox, LLM: s.llm.Masked()}
}

func (s *Session) publishState() {
	s.mu.RLock()
	st := s.state()
	s.mu.RUnlock()
	s.broadcast(Event{Type: EventState, State: &st})
}

// Snapshot returns a copy of the session. The API key is masked.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:        s.id,
		Messages:  append([]models.Message{}, s.messages...),
		Logs:      append([]models.LogEntry{}, s.logs...),
		State:     s.state(),
		CreatedAt: s.createdAt,
	}
}

// ── Subscriptions ───────────────────────────────────────────

// Subscribe returns a channel receiving every new event. Slow subscribers
// drop events. Call Unsubscribe when done.
func (s *Session) Subscribe() chan Event {
	ch := make(chan Event, 64)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch. Safe to call more than once.
func (s *Session) Unsubscribe(ch chan Event) {
	s.subMu.Lock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
	s.subMu.Unlock()
}

func (s *Session) broadcast(e Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
