// Package store persists approved agents, their lifecycle log and the
// registered event handlers. Agent definitions are also written as JSON files
// into the agents directory, where the host runtime picks them up.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
)

// Store is the storage interface used by the assistant.
// SQLite backs the desktop build; the in-memory implementation serves tests
// and throwaway sessions.
type Store interface {
	AgentStore
	EventHandlerStore

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Agent Store ─────────────────────────────────────────────

type AgentStore interface {
	// CreateAgentFile writes content to the agents directory and upserts the
	// agent row. It returns a human-readable result line.
	CreateAgentFile(ctx context.Context, name string, content []byte) (string, error)
	ListAgents(ctx context.Context) ([]models.AgentRecord, error)
	GetAgent(ctx context.Context, name string) (*models.AgentRecord, error)

	LogAgentEvent(ctx context.Context, name, eventType, message, details string) error
	ListAgentLogs(ctx context.Context, name string, limit int) ([]models.AgentLog, error)
}

// ── Event Handler Store ─────────────────────────────────────

type EventHandlerStore interface {
	CreateEventHandler(ctx context.Context, h *models.EventHandler) error
	ListEventHandlers(ctx context.Context) ([]models.EventHandler, error)
	// TouchEventHandler records that the handler was checked at at.
	TouchEventHandler(ctx context.Context, id int64, at time.Time) error
	DeleteEventHandler(ctx context.Context, name string) error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ── Agent files ─────────────────────────────────────────────

// AgentFileName maps an agent name to its file name:
// spaces become underscores and the result is lower-cased.
func AgentFileName(name string) string {
	n := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
	n = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return -1
		}
		return r
	}, n)
	if n == "" || n == "." || n == ".." {
		n = "agent"
	}
	return n + ".json"
}

func writeAgentFile(dir, name string, content []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create agents dir: %w", err)
	}
	path := filepath.Join(dir, AgentFileName(name))
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write agent file: %w", err)
	}
	return path, nil
}

func createdMessage(path string) string {
	return "Agent file created: " + path
}

// recordFromFile builds the row for an agent file. Content that is not a
// valid agent config is still stored verbatim.
func recordFromFile(name, path string, content []byte, now time.Time) models.AgentRecord {
	rec := models.AgentRecord{
		Name:       name,
		FilePath:   path,
		ConfigJSON: string(content),
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	var cfg models.AgentConfig
	if err := json.Unmarshal(content, &cfg); err == nil {
		rec.Description = cfg.Description
		rec.Role = cfg.Role
		rec.Goal = cfg.Goal
		rec.Tools = cfg.Tools
		rec.Schedule = cfg.Schedule
		rec.ScheduleTime = cfg.ScheduleTime
		rec.Command = cfg.Command
		rec.Args = cfg.Args
		rec.Timeout = cfg.Timeout
		rec.IsActive = cfg.Enabled
	}
	return rec
}
