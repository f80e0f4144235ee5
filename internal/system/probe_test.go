package system_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/system"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/stretchr/testify/assert"
)

func fakeRunner(found map[string]string) system.Runner {
	return func(_ context.Context, name string, _ ...string) (string, error) {
		if v, ok := found[name]; ok {
			return v, nil
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func TestCheckAllPresent(t *testing.T) {
	p := &system.Probe{
		HostDir:       t.TempDir(),
		PlaywrightDir: t.TempDir(),
		Run:           fakeRunner(map[string]string{"node": "v20.11.0", "npm": "10.2.4", "ollama": "phi3:latest"}),
	}

	r := p.Check(context.Background())

	assert.True(t, r.Node)
	assert.Equal(t, "v20.11.0", r.NodeVer)
	assert.Equal(t, "10.2.4", r.NPMVer)
	assert.True(t, r.Ollama)
	assert.True(t, r.Playwright)
	assert.True(t, r.OpenClaw)
	assert.Empty(t, r.Missing())
	assert.Empty(t, system.FixSteps(r))
}

func TestCheckMissing(t *testing.T) {
	p := &system.Probe{
		HostDir:       filepath.Join(t.TempDir(), "openclaw"),
		PlaywrightDir: "",
		Run:           fakeRunner(map[string]string{"node": "v20.11.0"}),
	}

	r := p.Check(context.Background())

	assert.Equal(t, []string{"npm", "playwright", "ollama", "openclaw"}, r.Missing())
	assert.Equal(t, []string{
		"npm should come with Node.js",
		"Run: npx playwright install chromium",
		"Install Ollama from ollama.ai and run: ollama serve",
		"Run: setup openclaw",
	}, system.FixSteps(r))
}

func TestSummary(t *testing.T) {
	lines := system.Summary(models.DependencyReport{OS: "linux", Node: true, NodeVer: "v20"})

	assert.Equal(t, "📋 System Status:", lines[0])
	assert.Contains(t, lines, "  • Node.js: ✅ v20")
	assert.Contains(t, lines, "  • npm: ❌ Not found")
	assert.Contains(t, lines, "  • OpenClaw: ❌ Not found")
}
