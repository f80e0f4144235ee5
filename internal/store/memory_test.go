package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/store"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
)

type backend struct {
	name string
	open func(t *testing.T, agentsDir string) store.Store
}

var backends = []backend{
	{"memory", func(t *testing.T, agentsDir string) store.Store {
		s := store.NewMemoryStore(agentsDir, "")
		t.Cleanup(func() { s.Close() })
		return s
	}},
	{"sqlite", func(t *testing.T, agentsDir string) store.Store {
		s, err := store.NewSQLite(filepath.Join(t.TempDir(), "db", "personaliz.db"), agentsDir)
		if err != nil {
			t.Fatalf("NewSQLite() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

func eachBackend(t *testing.T, fn func(t *testing.T, s store.Store, agentsDir string)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), ".agents")
			fn(t, b.open(t, dir), dir)
		})
	}
}

func agentJSON(t *testing.T, cfg models.AgentConfig) []byte {
	t.Helper()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestAgentFileName(t *testing.T) {
	tests := map[string]string{
		"LinkedIn AI Poster": "linkedin_ai_poster.json",
		"  Trend Agent ":     "trend_agent.json",
		"../evil/name":       "..evilname.json",
		"":                   "agent.json",
	}
	for in, want := range tests {
		if got := store.AgentFileName(in); got != want {
			t.Errorf("AgentFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

// ─── Agents ──────────────────────────────────────────────────

func TestCreateAgentFile(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store, dir string) {
		ctx := context.Background()
		content := agentJSON(t, models.AgentConfig{
			Name:     "Trend Agent",
			Role:     "Trend watcher",
			Tools:    []string{"playwright", "linkedin"},
			Schedule: "daily",
			Command:  "node",
			Args:     []string{"/p/linkedin_trending_scraper.js"},
			Timeout:  300000,
			Enabled:  true,
		})

		msg, err := s.CreateAgentFile(ctx, "Trend Agent", content)
		if err != nil {
			t.Fatalf("CreateAgentFile() error = %v", err)
		}
		path := filepath.Join(dir, "trend_agent.json")
		if msg != "Agent file created: "+path {
			t.Errorf("CreateAgentFile() = %q", msg)
		}

		onDisk, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("agent file not written: %v", err)
		}
		if string(onDisk) != string(content) {
			t.Errorf("file content differs from input")
		}

		got, err := s.GetAgent(ctx, "Trend Agent")
		if err != nil {
			t.Fatalf("GetAgent() error = %v", err)
		}
		if got.Role != "Trend watcher" || got.Schedule != "daily" || got.Timeout != 300000 {
			t.Errorf("GetAgent() = %+v", got)
		}
		if len(got.Tools) != 2 || got.Tools[1] != "linkedin" {
			t.Errorf("GetAgent().Tools = %v", got.Tools)
		}
		if got.FilePath != path || !got.IsActive {
			t.Errorf("GetAgent().FilePath = %q, IsActive = %v", got.FilePath, got.IsActive)
		}

		logs, err := s.ListAgentLogs(ctx, "Trend Agent", 0)
		if err != nil {
			t.Fatalf("ListAgentLogs() error = %v", err)
		}
		if len(logs) != 1 || logs[0].EventType != models.AgentLogCreated {
			t.Errorf("ListAgentLogs() = %+v, want one created entry", logs)
		}
	})
}

func TestCreateAgentFile_Upsert(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store, _ string) {
		ctx := context.Background()
		for _, role := range []string{"first", "second"} {
			content := agentJSON(t, models.AgentConfig{Name: "dup", Role: role, Enabled: true})
			if _, err := s.CreateAgentFile(ctx, "dup", content); err != nil {
				t.Fatalf("CreateAgentFile(%s) error = %v", role, err)
			}
		}

		agents, err := s.ListAgents(ctx)
		if err != nil {
			t.Fatalf("ListAgents() error = %v", err)
		}
		if len(agents) != 1 {
			t.Fatalf("ListAgents() len = %d, want 1", len(agents))
		}
		if agents[0].Role != "second" {
			t.Errorf("Role = %q, want %q", agents[0].Role, "second")
		}
	})
}

func TestCreateAgentFile_RawContent(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store, _ string) {
		ctx := context.Background()
		if _, err := s.CreateAgentFile(ctx, "raw", []byte("not json")); err != nil {
			t.Fatalf("CreateAgentFile() error = %v", err)
		}
		got, err := s.GetAgent(ctx, "raw")
		if err != nil {
			t.Fatalf("GetAgent() error = %v", err)
		}
		if got.ConfigJSON != "not json" {
			t.Errorf("ConfigJSON = %q", got.ConfigJSON)
		}
	})
}

func TestGetAgent_NotFound(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store, _ string) {
		_, err := s.GetAgent(context.Background(), "ghost")
		var nf *store.ErrNotFound
		if !errors.As(err, &nf) {
			t.Fatalf("GetAgent() error = %v, want ErrNotFound", err)
		}
		if nf.Error() != "agent not found: ghost" {
			t.Errorf("Error() = %q", nf.Error())
		}
	})
}

func TestAgentLogs_NewestFirstAndLimit(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store, _ string) {
		ctx := context.Background()
		for _, m := range []string{"one", "two", "three"} {
			if err := s.LogAgentEvent(ctx, "a", models.AgentLogExecuted, m, ""); err != nil {
				t.Fatalf("LogAgentEvent() error = %v", err)
			}
		}
		if err := s.LogAgentEvent(ctx, "b", models.AgentLogError, "other", "boom"); err != nil {
			t.Fatalf("LogAgentEvent() error = %v", err)
		}

		logs, err := s.ListAgentLogs(ctx, "a", 2)
		if err != nil {
			t.Fatalf("ListAgentLogs() error = %v", err)
		}
		if len(logs) != 2 || logs[0].Message != "three" || logs[1].Message != "two" {
			t.Errorf("ListAgentLogs(a, 2) = %+v", logs)
		}

		all, _ := s.ListAgentLogs(ctx, "", 0)
		if len(all) != 4 {
			t.Errorf("ListAgentLogs(all) len = %d, want 4", len(all))
		}
		if all[0].Details != "boom" {
			t.Errorf("Details = %q, want %q", all[0].Details, "boom")
		}
	})
}

// ─── Event Handlers ──────────────────────────────────────────

func TestEventHandlers(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store, _ string) {
		ctx := context.Background()
		h := &models.EventHandler{
			Name:            "github stars",
			EventType:       models.EventPeriodic,
			IntervalSeconds: 300,
			IsActive:        true,
		}
		if err := s.CreateEventHandler(ctx, h); err != nil {
			t.Fatalf("CreateEventHandler() error = %v", err)
		}
		if h.ID == 0 {
			t.Fatal("CreateEventHandler() did not assign an ID")
		}

		list, err := s.ListEventHandlers(ctx)
		if err != nil {
			t.Fatalf("ListEventHandlers() error = %v", err)
		}
		if len(list) != 1 || list[0].LastCheck != nil || list[0].EventType != models.EventPeriodic {
			t.Fatalf("ListEventHandlers() = %+v", list)
		}

		at := time.Unix(1767600000, 0)
		if err := s.TouchEventHandler(ctx, h.ID, at); err != nil {
			t.Fatalf("TouchEventHandler() error = %v", err)
		}
		list, _ = s.ListEventHandlers(ctx)
		if list[0].LastCheck == nil || !list[0].LastCheck.Equal(at) {
			t.Errorf("LastCheck = %v, want %v", list[0].LastCheck, at)
		}

		if err := s.DeleteEventHandler(ctx, "github stars"); err != nil {
			t.Fatalf("DeleteEventHandler() error = %v", err)
		}
		var nf *store.ErrNotFound
		if err := s.DeleteEventHandler(ctx, "github stars"); !errors.As(err, &nf) {
			t.Errorf("second DeleteEventHandler() error = %v, want ErrNotFound", err)
		}
		if err := s.TouchEventHandler(ctx, h.ID, at); !errors.As(err, &nf) {
			t.Errorf("TouchEventHandler(deleted) error = %v, want ErrNotFound", err)
		}
	})
}

func TestEventHandlersAreCopied(t *testing.T) {
	eachBackend(t, func(t *testing.T, s store.Store, _ string) {
		ctx := context.Background()
		h := &models.EventHandler{Name: "site", EventType: models.EventPeriodic, IntervalSeconds: 60, IsActive: true}
		if err := s.CreateEventHandler(ctx, h); err != nil {
			t.Fatalf("CreateEventHandler() error = %v", err)
		}
		h.Name = "changed by caller"

		at := time.Unix(1767600000, 0)
		if err := s.TouchEventHandler(ctx, h.ID, at); err != nil {
			t.Fatalf("TouchEventHandler() error = %v", err)
		}
		list, _ := s.ListEventHandlers(ctx)
		if len(list) != 1 || list[0].Name != "site" {
			t.Fatalf("ListEventHandlers() = %+v, want the stored name", list)
		}
		*list[0].LastCheck = time.Time{}

		again, _ := s.ListEventHandlers(ctx)
		if !again[0].LastCheck.Equal(at) {
			t.Errorf("LastCheck = %v after mutating a listed copy, want %v", again[0].LastCheck, at)
		}
	})
}

// ─── Snapshot ────────────────────────────────────────────────

func TestMemorySnapshotSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "data.json")
	ctx := context.Background()

	s := store.NewMemoryStore(filepath.Join(dir, ".agents"), snap)
	if _, err := s.CreateAgentFile(ctx, "keeper", []byte(`{"name":"keeper","enabled":true}`)); err != nil {
		t.Fatalf("CreateAgentFile() error = %v", err)
	}
	if err := s.CreateEventHandler(ctx, &models.EventHandler{Name: "h", EventType: models.EventWeb, IsActive: true}); err != nil {
		t.Fatalf("CreateEventHandler() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := store.NewMemoryStore(filepath.Join(dir, ".agents"), snap)
	defer reopened.Close()

	if _, err := reopened.GetAgent(ctx, "keeper"); err != nil {
		t.Errorf("GetAgent() after restart error = %v", err)
	}
	handlers, _ := reopened.ListEventHandlers(ctx)
	if len(handlers) != 1 {
		t.Errorf("ListEventHandlers() after restart len = %d, want 1", len(handlers))
	}
}
