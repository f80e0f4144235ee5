// Package system probes the local toolchain the workers and the host need.
package system

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// probeTimeout bounds each external command.
const probeTimeout = 10 * time.Second

// Runner executes a command and returns its trimmed stdout.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

// Probe checks for node, npm, the Playwright browser cache, Ollama and the
// host directory.
type Probe struct {
	HostDir       string
	PlaywrightDir string
	Run           Runner
}

// NewProbe creates a probe for the host at hostDir using the platform's
// default Playwright cache location.
func NewProbe(hostDir string) *Probe {
	return &Probe{HostDir: hostDir, PlaywrightDir: PlaywrightCacheDir(), Run: execRunner}
}

// PlaywrightCacheDir returns where Playwright keeps its browsers.
func PlaywrightCacheDir() string {
	if p := os.Getenv("PLAYWRIGHT_BROWSERS_PATH"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "ms-playwright")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "ms-playwright")
	default:
		return filepath.Join(home, ".cache", "ms-playwright")
	}
}

// Check runs every probe concurrently. Probes never fail the check; a
// missing tool is reported as false.
func (p *Probe) Check(ctx context.Context) models.DependencyReport {
	r := models.DependencyReport{OS: runtime.GOOS}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.NodeVer, r.Node = p.version(gctx, "node", "--version")
		return nil
	})
	g.Go(func() error {
		r.NPMVer, r.NPM = p.version(gctx, "npm", "--version")
		return nil
	})
	g.Go(func() error {
		_, r.Ollama = p.version(gctx, "ollama", "list")
		return nil
	})
	r.Playwright = dirExists(p.PlaywrightDir)
	r.OpenClaw = dirExists(p.HostDir)
	_ = g.Wait()

	log.Debug().Strs("missing", r.Missing()).Msg("Dependency check complete")
	return r
}

func (p *Probe) version(ctx context.Context, name string, args ...string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := p.Run(ctx, name, args...)
	if err != nil {
		return "", false
	}
	return out, true
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// Summary renders the report as chat lines.
func Summary(r models.DependencyReport) []string {
	return []string{
		"📋 System Status:",
		"  • OS: " + r.OS,
		"  • Node.js: " + mark(r.Node, "✅ "+r.NodeVer, "❌ Not found"),
		"  • npm: " + mark(r.NPM, "✅ "+r.NPMVer, "❌ Not found"),
		"  • Playwright: " + mark(r.Playwright, "✅ Installed", "❌ Not installed"),
		"  • Ollama: " + mark(r.Ollama, "✅ Running", "❌ Not running"),
		"  • OpenClaw: " + mark(r.OpenClaw, "✅ Found", "❌ Not found"),
	}
}

// FixSteps lists what the user should do about each missing dependency.
func FixSteps(r models.DependencyReport) []string {
	var steps []string
	if !r.Node {
		steps = append(steps, "Install Node.js from nodejs.org")
	}
	if !r.NPM {
		steps = append(steps, "npm should come with Node.js")
	}
	if !r.Playwright {
		steps = append(steps, "Run: npx playwright install chromium")
	}
	if !r.Ollama {
		steps = append(steps, "Install Ollama from ollama.ai and run: ollama serve")
	}
	if !r.OpenClaw {
		steps = append(steps, "Run: setup openclaw")
	}
	return steps
}

func mark(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
