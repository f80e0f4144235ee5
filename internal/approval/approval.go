// Package approval guards every externally visible side effect behind a
// literal yes from the user, and performs the commit once it is given.
package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/metrics"
	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/rs/zerolog/log"
)

// Decision is the classification of a reply at an approval step.
type Decision int

const (
	Invalid Decision = iota
	Approve
	Reject
)

func (d Decision) String() string {
	switch d {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	}
	return "invalid"
}

// Classify accepts only "yes" or "no", case-insensitive after trimming.
func Classify(reply string) Decision {
	r := strings.TrimSpace(reply)
	switch {
	case strings.EqualFold(r, "yes"):
		return Approve
	case strings.EqualFold(r, "no"):
		return Reject
	}
	return Invalid
}

// Re-prompt lines for a reply that is neither yes nor no.
const (
	RepromptAgent = "Please reply with only 'yes' or 'no' for the current agent preview."
	RepromptHint  = "Type 'yes' to create it, or 'no' to cancel."
)

// commitTimeout bounds a commit after it is detached from the caller.
const commitTimeout = 30 * time.Second

// Reporter receives user-visible chat lines and activity log lines.
type Reporter interface {
	Say(text string)
	Log(text string)
}

// AgentWriter persists an approved agent definition.
type AgentWriter interface {
	CreateAgentFile(ctx context.Context, name string, content []byte) (string, error)
}

// HostController stops and starts the runtime that loads agent files.
type HostController interface {
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
}

// Gate commits approved agents: write the file, then restart the host.
type Gate struct {
	store        AgentWriter
	host         HostController
	restartDelay time.Duration
}

// NewGate creates a gate. restartDelay is the pause between stop and start.
func NewGate(store AgentWriter, host HostController, restartDelay time.Duration) *Gate {
	return &Gate{store: store, host: host, restartDelay: restartDelay}
}

// Commit persists cfg and restarts the host so it loads the new agent. In
// sandbox mode the restart is simulated. The file is still written so the
// user can inspect it.
func (g *Gate) Commit(ctx context.Context, cfg models.AgentConfig, sandbox bool, r Reporter) error {
	// An approved commit outlives its caller: once the host is stopped it
	// must be started again.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	mode := "live"
	if sandbox {
		mode = "sandbox"
	}

	name := cfg.Name
	if strings.TrimSpace(name) == "" {
		name = "custom_agent"
	}
	content, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode agent %q: %w", name, err)
	}

	r.Log("[AGENT] Writing configuration file...")
	result, err := g.store.CreateAgentFile(ctx, name, content)
	if err != nil {
		metrics.RecordDispatch("agent_file", mode, err)
		return fmt.Errorf("write agent file: %w", err)
	}
	r.Say("✅ " + result)
	r.Log("[OPENCLAW] ✅ Agent file written")

	err = g.restart(ctx, sandbox, r)
	metrics.RecordDispatch("host_restart", mode, err)
	if err != nil {
		return err
	}
	log.Info().Str("agent", name).Bool("sandbox", sandbox).Msg("Agent committed")
	return nil
}

func (g *Gate) restart(ctx context.Context, sandbox bool, r Reporter) error {
	if sandbox {
		r.Say("🔒 SANDBOX MODE - Skipping OpenClaw restart")
		r.Log("[OPENCLAW] (simulated) Would restart OpenClaw")
		return nil
	}

	r.Say("Restarting OpenClaw...")
	r.Log("[OPENCLAW] Terminating existing process...")
	if err := g.host.Stop(ctx); err != nil {
		r.Log("[OPENCLAW] No existing process found")
	} else {
		r.Log("[OPENCLAW] Process terminated")
		if g.restartDelay > 0 {
			select {
			case <-time.After(g.restartDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	r.Log("[OPENCLAW] Starting new process...")
	if err := g.host.Start(ctx); err != nil {
		return fmt.Errorf("start openclaw: %w", err)
	}
	r.Say("✅ OpenClaw restarted! Agent is now active.")
	r.Log("[OPENCLAW] ✅ Restarted successfully - agent loaded")
	return nil
}
