//go:build windows

package process

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// Windows has no interrupt for child processes; the error makes stop kill
// right away.
func interruptGroup(p *os.Process) error {
	return p.Signal(os.Interrupt)
}

func killGroup(p *os.Process) error {
	return p.Kill()
}
