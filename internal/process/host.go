package process

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/config"
	"github.com/rs/zerolog/log"
)

// hostLogName tags host output in the LogBuffer.
const hostLogName = "openclaw"

// shellArgs wraps command for the platform shell.
func shellArgs(command string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", command}
	}
	return "sh", []string{"-c", command}
}

// RunShell runs command through the platform shell in dir and returns its
// stdout. A non-zero exit returns the trimmed stderr in the error.
func RunShell(ctx context.Context, dir, command string) (string, error) {
	bin, args := shellArgs(command)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.String(), fmt.Errorf("command failed: %s", msg)
		}
		return stdout.String(), fmt.Errorf("command failed: %w", err)
	}
	return stdout.String(), nil
}

// Host controls the external agent runtime that loads agent files.
type Host struct {
	cfg  config.HostConfig
	logs *LogBuffer

	mu   sync.Mutex
	proc *localProcess
}

// NewHost creates a controller for the host described by cfg.
func NewHost(cfg config.HostConfig, logs *LogBuffer) *Host {
	if logs == nil {
		logs = NewLogBuffer(0)
	}
	return &Host{cfg: cfg, logs: logs}
}

// Dir is the host installation directory.
func (h *Host) Dir() string { return h.cfg.Dir }

// Exists reports whether the host directory is present.
func (h *Host) Exists() bool {
	fi, err := os.Stat(h.cfg.Dir)
	return err == nil && fi.IsDir()
}

// Start launches the host in the background.
func (h *Host) Start(_ context.Context) error {
	if !h.Exists() {
		return fmt.Errorf("OpenClaw not found at %s", h.cfg.Dir)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.proc != nil {
		select {
		case <-h.proc.done:
		default:
			return nil
		}
	}

	bin, args := shellArgs(h.cfg.StartCommand)
	proc, err := startLocal(h.cfg.Dir, bin, args, hostLogName, h.logs)
	if err != nil {
		return err
	}
	h.proc = proc
	log.Info().Str("dir", h.cfg.Dir).Int("pid", proc.cmd.Process.Pid).Msg("Host started")
	return nil
}

// Stop terminates the host. A host started by this process is interrupted
// directly; otherwise the configured stop command is run and its failure
// (usually "no process found") is returned.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	proc := h.proc
	h.proc = nil
	h.mu.Unlock()

	if proc != nil {
		if err := proc.stop(ctx); err != nil {
			return fmt.Errorf("stop openclaw: %w", err)
		}
		log.Info().Msg("Host stopped")
		return nil
	}
	if h.cfg.StopCommand == "" {
		return fmt.Errorf("no stop command configured")
	}
	dir := h.cfg.Dir
	if !h.Exists() {
		dir = ""
	}
	_, err := RunShell(ctx, dir, h.cfg.StopCommand)
	return err
}
