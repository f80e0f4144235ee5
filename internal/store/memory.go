// In-memory Store implementation.
// Used when SQLite is disabled (throwaway sessions, tests). Supports an
// optional JSON snapshot so data survives restarts.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/rs/zerolog/log"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Agents   map[string]*models.AgentRecord `json:"agents"`
	Logs     []*models.AgentLog             `json:"logs"`
	Handlers map[int64]*models.EventHandler `json:"handlers"`
	NextID   int64                          `json:"next_id"`
}

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu        sync.RWMutex
	agents    map[string]*models.AgentRecord // key: name
	logs      []*models.AgentLog             // append-only
	handlers  map[int64]*models.EventHandler // key: id
	nextID    int64
	agentsDir string
	now       func() time.Time

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals the save loop to stop
	loopDone     chan struct{}
}

// NewMemoryStore creates a new in-memory store writing agent files into
// agentsDir. A non-empty snapshotPath enables JSON persistence.
func NewMemoryStore(agentsDir, snapshotPath string) *MemoryStore {
	m := &MemoryStore{
		agents:       make(map[string]*models.AgentRecord),
		handlers:     make(map[int64]*models.EventHandler),
		agentsDir:    agentsDir,
		now:          time.Now,
		snapshotPath: snapshotPath,
		saveCh:       make(chan struct{}, 1),
		doneCh:       make(chan struct{}),
		loopDone:     make(chan struct{}),
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	} else {
		close(m.loopDone)
	}

	log.Info().Str("snapshot", m.snapshotPath).Str("agents_dir", agentsDir).Msg("Memory store configured")
	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

// saveLoop debounces save requests to at most one write per 500ms.
func (m *MemoryStore) saveLoop() {
	defer close(m.loopDone)
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			select {
			case <-m.doneCh:
				return
			case <-time.After(500 * time.Millisecond):
			}
			m.saveSnapshot()
		}
	}
}

func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{Agents: m.agents, Logs: m.logs, Handlers: m.handlers, NextID: m.nextID}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}
	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Agents != nil {
		m.agents = snap.Agents
	}
	if snap.Handlers != nil {
		m.handlers = snap.Handlers
	}
	m.logs = snap.Logs
	m.nextID = snap.NextID

	log.Info().
		Int("agents", len(m.agents)).
		Int("handlers", len(m.handlers)).
		Str("path", m.snapshotPath).
		Msg("Snapshot loaded")
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops the save loop and forces a final snapshot write.
// Safe to call multiple times.
func (m *MemoryStore) Close() error {
	select {
	case <-m.doneCh:
		return nil
	default:
		close(m.doneCh)
	}
	<-m.loopDone

	if m.snapshotPath != "" {
		m.saveSnapshot()
	}
	return nil
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// ── Agent Store ─────────────────────────────────────────────

func (m *MemoryStore) CreateAgentFile(_ context.Context, name string, content []byte) (string, error) {
	path, err := writeAgentFile(m.agentsDir, name, content)
	if err != nil {
		return "", err
	}

	now := m.now()
	rec := recordFromFile(name, path, content, now)

	m.mu.Lock()
	if prev, ok := m.agents[name]; ok {
		rec.ID = prev.ID
		rec.CreatedAt = prev.CreatedAt
	} else {
		rec.ID = m.id()
	}
	m.agents[name] = &rec
	m.logs = append(m.logs, &models.AgentLog{
		ID: m.id(), AgentName: name, EventType: models.AgentLogCreated,
		Message: "Agent file created", Details: path, CreatedAt: now,
	})
	m.mu.Unlock()

	m.requestSave()
	return createdMessage(path), nil
}

func (m *MemoryStore) ListAgents(_ context.Context) ([]models.AgentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.AgentRecord, 0, len(m.agents))
	for _, a := range m.agents {
		result = append(result, cloneRecord(a))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (m *MemoryStore) GetAgent(_ context.Context, name string) (*models.AgentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[name]
	if !ok {
		return nil, &ErrNotFound{Entity: "agent", Key: name}
	}
	rec := cloneRecord(a)
	return &rec, nil
}

func (m *MemoryStore) LogAgentEvent(_ context.Context, name, eventType, message, details string) error {
	m.mu.Lock()
	m.logs = append(m.logs, &models.AgentLog{
		ID: m.id(), AgentName: name, EventType: eventType,
		Message: message, Details: details, CreatedAt: m.now(),
	})
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListAgentLogs(_ context.Context, name string, limit int) ([]models.AgentLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.AgentLog
	for i := len(m.logs) - 1; i >= 0 && len(result) < limit; i-- {
		if name == "" || m.logs[i].AgentName == name {
			result = append(result, *m.logs[i])
		}
	}
	return result, nil
}

// ── Event Handler Store ─────────────────────────────────────

func (m *MemoryStore) CreateEventHandler(_ context.Context, h *models.EventHandler) error {
	m.mu.Lock()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = m.now()
	}
	h.ID = m.id()
	hc := *h
	m.handlers[h.ID] = &hc
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListEventHandlers(_ context.Context) ([]models.EventHandler, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.EventHandler, 0, len(m.handlers))
	for _, h := range m.handlers {
		hc := *h
		if h.LastCheck != nil {
			t := *h.LastCheck
			hc.LastCheck = &t
		}
		result = append(result, hc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *MemoryStore) TouchEventHandler(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	h, ok := m.handlers[id]
	if ok {
		h.LastCheck = &at
	}
	m.mu.Unlock()
	if !ok {
		return &ErrNotFound{Entity: "event handler", Key: fmt.Sprint(id)}
	}
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteEventHandler(_ context.Context, name string) error {
	m.mu.Lock()
	deleted := 0
	for id, h := range m.handlers {
		if h.Name == name {
			delete(m.handlers, id)
			deleted++
		}
	}
	m.mu.Unlock()
	if deleted == 0 {
		return &ErrNotFound{Entity: "event handler", Key: name}
	}
	m.requestSave()
	return nil
}

func cloneRecord(a *models.AgentRecord) models.AgentRecord {
	c := *a
	c.Tools = append([]string(nil), a.Tools...)
	c.Args = append([]string(nil), a.Args...)
	return c
}
