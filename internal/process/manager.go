// Package process runs the browser-automation workers and controls the
// external agent host.
//
// Workers are Node.js scripts that live in the scripts directory. The
// Manager spawns them detached from the calling request, captures their
// output into a LogBuffer and tracks them until they exit:
//
//	flow.Machine.Dispatch
//	    └─► Manager.Run(worker, args)
//	            └─► node <scriptsDir>/<worker> args...
//	                    └─► LogBuffer (stdout/stderr lines)
package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/metrics"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// maxFinished bounds how many exited workers are remembered.
const maxFinished = 50

type tracked struct {
	info *models.ProcessInfo
	proc *localProcess
}

// Manager spawns and tracks worker processes.
type Manager struct {
	mu         sync.RWMutex
	scriptsDir string
	logs       *LogBuffer
	procs      map[string]*tracked // key: process ID

	// Interpreter runs the worker scripts. Empty means look up node on PATH
	// at each Run.
	Interpreter string
}

// NewManager creates a manager for the workers in scriptsDir.
func NewManager(scriptsDir string, logs *LogBuffer) *Manager {
	if logs == nil {
		logs = NewLogBuffer(0)
	}
	return &Manager{
		scriptsDir: scriptsDir,
		logs:       logs,
		procs:      make(map[string]*tracked),
	}
}

// Logs returns the buffer receiving worker output.
func (m *Manager) Logs() *LogBuffer { return m.logs }

// ScriptPath is where worker w is expected on disk.
func (m *Manager) ScriptPath(w models.Worker) string {
	return filepath.Join(m.scriptsDir, string(w))
}

// Run starts worker w with args in the background and returns a short
// status line. It fails if the script is missing or cannot be started.
func (m *Manager) Run(_ context.Context, w models.Worker, args []string) (string, error) {
	script := m.ScriptPath(w)
	if _, err := os.Stat(script); err != nil {
		return "", fmt.Errorf("Script not found: %s", w)
	}

	bin := m.Interpreter
	if bin == "" {
		if bin = findNode(); bin == "" {
			return "", fmt.Errorf("node not found in PATH, install Node.js to run %s", w)
		}
	}

	argv := append([]string{script}, args...)
	proc, err := startLocal(m.scriptsDir, bin, argv, string(w), m.logs)
	if err != nil {
		return "", err
	}

	info := &models.ProcessInfo{
		ID:        uuid.NewString(),
		Worker:    w,
		PID:       proc.cmd.Process.Pid,
		Status:    models.ProcessRunning,
		StartedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.procs[info.ID] = &tracked{info: info, proc: proc}
	m.mu.Unlock()
	m.publishRunning()

	log.Info().Str("worker", string(w)).Int("pid", info.PID).Str("id", info.ID).Msg("Worker started")
	m.logs.Write(string(w), "system", fmt.Sprintf("started (pid %d)", info.PID))

	go m.watch(info.ID, proc)

	return fmt.Sprintf("Started %s in background", w), nil
}

func (m *Manager) watch(id string, proc *localProcess) {
	<-proc.done

	m.mu.Lock()
	t, ok := m.procs[id]
	if ok {
		now := time.Now().UTC()
		t.info.ExitedAt = &now
		t.info.Status = models.ProcessExited
		if proc.err != nil {
			t.info.Status = models.ProcessFailed
			t.info.Error = proc.err.Error()
		}
	}
	m.pruneLocked()
	m.mu.Unlock()
	m.publishRunning()

	if !ok {
		return
	}
	ev := log.Info()
	if proc.err != nil {
		ev = log.Warn().Err(proc.err)
	}
	ev.Str("worker", string(t.info.Worker)).Int("pid", t.info.PID).Msg("Worker exited")
	m.logs.Write(string(t.info.Worker), "system", "exited: "+string(t.info.Status))
}

// pruneLocked forgets the oldest exited workers beyond maxFinished.
func (m *Manager) pruneLocked() {
	var finished []*models.ProcessInfo
	for _, t := range m.procs {
		if t.info.Status != models.ProcessRunning {
			finished = append(finished, t.info)
		}
	}
	if len(finished) <= maxFinished {
		return
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].ExitedAt.Before(*finished[j].ExitedAt) })
	for _, info := range finished[:len(finished)-maxFinished] {
		delete(m.procs, info.ID)
	}
}

func (m *Manager) publishRunning() {
	metrics.SetRunningWorkers(len(m.Running()))
}

// List returns every tracked worker, newest first.
func (m *Manager) List() []models.ProcessInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ProcessInfo, 0, len(m.procs))
	for _, t := range m.procs {
		out = append(out, *t.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Running returns the workers that have not exited yet.
func (m *Manager) Running() []models.ProcessInfo {
	var running []models.ProcessInfo
	for _, p := range m.List() {
		if p.Status == models.ProcessRunning {
			running = append(running, p)
		}
	}
	return running
}

// StopAll interrupts every running worker. Called on shutdown.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	var procs []*localProcess
	for _, t := range m.procs {
		if t.info.Status == models.ProcessRunning {
			procs = append(procs, t.proc)
		}
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func(p *localProcess) {
			defer wg.Done()
			if err := p.stop(ctx); err != nil {
				log.Warn().Err(err).Int("pid", p.cmd.Process.Pid).Msg("Worker stop interrupted")
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Info().Int("count", len(procs)).Msg("All workers stopped")
	return nil
}
