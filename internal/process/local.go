package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// stopGrace is how long a worker gets to exit after an interrupt.
	stopGrace = 3 * time.Second
	// pipeGrace is how long Wait keeps reading output after the process
	// exits. Descendants that inherited the pipes are not waited for.
	pipeGrace = 2 * time.Second
	// maxLineBytes caps one log line; longer output is split.
	maxLineBytes = 64 * 1024
)

// localProcess tracks a running worker subprocess and its process group.
type localProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// startLocal launches bin with args in dir, streams its output into logs and
// returns once the process has started. The process is not tied to ctx: it
// keeps running after the request that spawned it returns.
func startLocal(dir, bin string, args []string, worker string, logs *LogBuffer) (*localProcess, error) {
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, bin, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killGroup(cmd.Process) }
	cmd.WaitDelay = pipeGrace

	stdout := &lineWriter{logs: logs, worker: worker, stream: "stdout"}
	stderr := &lineWriter{logs: logs, worker: worker, stream: "stderr"}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", filepath.Base(bin), err)
	}

	p := &localProcess{cmd: cmd, cancel: cancel, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		if errors.Is(err, exec.ErrWaitDelay) {
			// Exited cleanly; a descendant still held the output pipes.
			err = nil
		}
		p.err = err
		stdout.flush()
		stderr.flush()
		cancel()
		close(p.done)
	}()

	return p, nil
}

// stop interrupts the process group and kills it if the process does not
// exit within stopGrace. It returns early with ctx's error when ctx ends
// first; the kill has been sent by then.
func (p *localProcess) stop(ctx context.Context) error {
	// Descendants that ignored the interrupt go down with the group.
	defer killGroup(p.cmd.Process)

	if err := interruptGroup(p.cmd.Process); err != nil {
		p.cancel()
	}

	grace := time.NewTimer(stopGrace)
	defer grace.Stop()
	select {
	case <-p.done:
		return nil
	case <-grace.C:
		log.Warn().Int("pid", p.cmd.Process.Pid).Msg("Worker did not exit after interrupt, killing")
		p.cancel()
	case <-ctx.Done():
		p.cancel()
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lineWriter splits process output into LogBuffer lines. It never blocks
// the writer, so a chatty worker cannot stall on a full pipe.
type lineWriter struct {
	logs   *LogBuffer
	worker string
	stream string

	mu  sync.Mutex
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	for len(w.buf) >= maxLineBytes {
		w.emit(w.buf[:maxLineBytes])
		w.buf = w.buf[maxLineBytes:]
	}
	// Compact so the backing array does not grow with total output.
	w.buf = append([]byte(nil), w.buf...)
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(line []byte) {
	w.logs.Write(w.worker, w.stream, string(bytes.TrimSuffix(line, []byte("\r"))))
}

// findNode searches for the Node.js executable.
func findNode() string {
	for _, name := range []string{"node", "nodejs"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
