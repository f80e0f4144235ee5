package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DefaultLogLimit caps ListAgentLogs when the caller passes no limit.
const DefaultLogLimit = 50

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db        *sql.DB
	agentsDir string
	now       func() time.Time
}

// NewSQLite opens (creating if needed) the database at dbPath. Agent files
// are written into agentsDir.
func NewSQLite(dbPath, agentsDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, agentsDir: agentsDir, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	log.Info().Str("path", dbPath).Str("agents_dir", agentsDir).Msg("SQLite store opened")
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		goal TEXT NOT NULL DEFAULT '',
		tools_json TEXT NOT NULL DEFAULT '[]',
		schedule TEXT NOT NULL DEFAULT '',
		schedule_time TEXT NOT NULL DEFAULT '',
		command TEXT NOT NULL DEFAULT '',
		args_json TEXT NOT NULL DEFAULT '[]',
		timeout INTEGER NOT NULL DEFAULT 0,
		file_path TEXT NOT NULL,
		config_json TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_name TEXT NOT NULL,
		event_type TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_agent_logs_agent ON agent_logs(agent_name, created_at);

	CREATE TABLE IF NOT EXISTS event_handlers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		event_type TEXT NOT NULL,
		url TEXT,
		interval_seconds INTEGER NOT NULL DEFAULT 300,
		last_check INTEGER,
		is_active INTEGER NOT NULL DEFAULT 1,
		config_json TEXT,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ── Agent Store ─────────────────────────────────────────────

// CreateAgentFile writes the file first; a failing row upsert is logged but
// does not fail the call, since the file is what the host runtime reads.
func (s *SQLiteStore) CreateAgentFile(ctx context.Context, name string, content []byte) (string, error) {
	path, err := writeAgentFile(s.agentsDir, name, content)
	if err != nil {
		return "", err
	}

	rec := recordFromFile(name, path, content, s.now())
	if err := s.upsertAgent(ctx, &rec); err != nil {
		log.Warn().Err(err).Str("agent", name).Msg("Failed to record agent row")
	} else if err := s.LogAgentEvent(ctx, name, models.AgentLogCreated, "Agent file created", path); err != nil {
		log.Warn().Err(err).Str("agent", name).Msg("Failed to log agent creation")
	}
	return createdMessage(path), nil
}

func (s *SQLiteStore) upsertAgent(ctx context.Context, rec *models.AgentRecord) error {
	tools, err := json.Marshal(nonNil(rec.Tools))
	if err != nil {
		return fmt.Errorf("marshal tools: %w", err)
	}
	args, err := json.Marshal(nonNil(rec.Args))
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}

	query := `
	INSERT INTO agents (name, description, role, goal, tools_json, schedule, schedule_time,
		command, args_json, timeout, file_path, config_json, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		description = excluded.description,
		role = excluded.role,
		goal = excluded.goal,
		tools_json = excluded.tools_json,
		schedule = excluded.schedule,
		schedule_time = excluded.schedule_time,
		command = excluded.command,
		args_json = excluded.args_json,
		timeout = excluded.timeout,
		file_path = excluded.file_path,
		config_json = excluded.config_json,
		is_active = excluded.is_active,
		updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		rec.Name, rec.Description, rec.Role, rec.Goal, string(tools), rec.Schedule, rec.ScheduleTime,
		rec.Command, string(args), rec.Timeout, rec.FilePath, rec.ConfigJSON, boolInt(rec.IsActive),
		rec.CreatedAt.Unix(), rec.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

const agentColumns = `id, name, description, role, goal, tools_json, schedule, schedule_time,
	command, args_json, timeout, file_path, config_json, is_active, created_at, updated_at`

func (s *SQLiteStore) ListAgents(ctx context.Context) ([]models.AgentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var out []models.AgentRecord
	for rows.Next() {
		rec, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetAgent(ctx context.Context, name string) (*models.AgentRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE name = ?`, name)
	rec, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "agent", Key: name}
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (*models.AgentRecord, error) {
	var rec models.AgentRecord
	var tools, args string
	var active int
	var createdAt, updatedAt int64
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Description, &rec.Role, &rec.Goal, &tools, &rec.Schedule, &rec.ScheduleTime,
		&rec.Command, &args, &rec.Timeout, &rec.FilePath, &rec.ConfigJSON, &active, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan agent row: %w", err)
	}
	if err := json.Unmarshal([]byte(tools), &rec.Tools); err != nil {
		return nil, fmt.Errorf("decode tools for %s: %w", rec.Name, err)
	}
	if err := json.Unmarshal([]byte(args), &rec.Args); err != nil {
		return nil, fmt.Errorf("decode args for %s: %w", rec.Name, err)
	}
	rec.IsActive = active != 0
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

func (s *SQLiteStore) LogAgentEvent(ctx context.Context, name, eventType, message, details string) error {
	var d any
	if details != "" {
		d = details
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_logs (agent_name, event_type, message, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		name, eventType, message, d, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert agent log: %w", err)
	}
	return nil
}

// ListAgentLogs returns the newest entries first. An empty name lists the
// entries of every agent.
func (s *SQLiteStore) ListAgentLogs(ctx context.Context, name string, limit int) ([]models.AgentLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	query := `SELECT id, agent_name, event_type, message, details, created_at FROM agent_logs`
	args := []any{}
	if name != "" {
		query += ` WHERE agent_name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query agent logs: %w", err)
	}
	defer rows.Close()

	var out []models.AgentLog
	for rows.Next() {
		var l models.AgentLog
		var details sql.NullString
		var createdAt int64
		if err := rows.Scan(&l.ID, &l.AgentName, &l.EventType, &l.Message, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("scan agent log: %w", err)
		}
		l.Details = details.String
		l.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, l)
	}
	return out, rows.Err()
}

// ── Event Handler Store ─────────────────────────────────────

func (s *SQLiteStore) CreateEventHandler(ctx context.Context, h *models.EventHandler) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO event_handlers (name, event_type, url, interval_seconds, is_active, config_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.Name, string(h.EventType), nullString(h.URL), h.IntervalSeconds, boolInt(h.IsActive),
		nullString(h.ConfigJSON), h.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert event handler: %w", err)
	}
	if h.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("event handler id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEventHandlers(ctx context.Context) ([]models.EventHandler, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, name, event_type, url, interval_seconds, last_check, is_active, config_json, created_at
	FROM event_handlers ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query event handlers: %w", err)
	}
	defer rows.Close()

	var out []models.EventHandler
	for rows.Next() {
		var h models.EventHandler
		var eventType string
		var url, cfg sql.NullString
		var lastCheck sql.NullInt64
		var active int
		var createdAt int64
		if err := rows.Scan(&h.ID, &h.Name, &eventType, &url, &h.IntervalSeconds, &lastCheck, &active, &cfg, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event handler: %w", err)
		}
		h.EventType = models.EventType(eventType)
		h.URL = url.String
		h.ConfigJSON = cfg.String
		h.IsActive = active != 0
		h.CreatedAt = time.Unix(createdAt, 0)
		if lastCheck.Valid {
			t := time.Unix(lastCheck.Int64, 0)
			h.LastCheck = &t
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) TouchEventHandler(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE event_handlers SET last_check = ? WHERE id = ?`, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("update last_check: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &ErrNotFound{Entity: "event handler", Key: fmt.Sprint(id)}
	}
	return nil
}

func (s *SQLiteStore) DeleteEventHandler(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM event_handlers WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete event handler: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &ErrNotFound{Entity: "event handler", Key: name}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
