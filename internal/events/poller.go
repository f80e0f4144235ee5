// Package events runs the background poller for registered event handlers.
//
// The poller only reads and touches the store. It never enters the
// conversation state machine.
package events

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// checkTimeout bounds a single URL check.
const checkTimeout = 10 * time.Second

// HandlerStore is the part of the store the poller uses.
type HandlerStore interface {
	ListEventHandlers(ctx context.Context) ([]models.EventHandler, error)
	TouchEventHandler(ctx context.Context, id int64, at time.Time) error
}

// Poller periodically checks every due event handler.
type Poller struct {
	store    HandlerStore
	client   *http.Client
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPoller creates a poller that ticks every interval.
func NewPoller(store HandlerStore, interval time.Duration) *Poller {
	return &Poller{
		store:    store,
		client:   &http.Client{Timeout: checkTimeout},
		interval: interval,
		now:      time.Now,
	}
}

// WithHTTPClient replaces the client used for URL checks.
func (p *Poller) WithHTTPClient(c *http.Client) *Poller {
	p.client = c
	return p
}

// Start begins polling. It returns false if the poller is already running.
func (p *Poller) Start() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return false, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", p.interval)
	if _, err := c.AddFunc(spec, func() { p.Tick(context.Background()) }); err != nil {
		return false, fmt.Errorf("schedule poller %q: %w", spec, err)
	}
	c.Start()
	p.cron = c

	log.Info().Dur("interval", p.interval).Msg("Event poller started")
	return true, nil
}

// Stop halts polling and waits for an in-flight tick. It returns false if
// the poller was not running.
func (p *Poller) Stop() bool {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return false
	}
	<-c.Stop().Done()
	log.Info().Msg("Event poller stopped")
	return true
}

// Running reports whether the poller is scheduled.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cron != nil
}

// Tick checks each active handler that is due and records the check time.
// It returns the number of handlers processed.
func (p *Poller) Tick(ctx context.Context) int {
	handlers, err := p.store.ListEventHandlers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list event handlers")
		return 0
	}

	processed := 0
	for _, h := range handlers {
		now := p.now()
		if !h.Due(now) {
			continue
		}
		p.process(ctx, h)
		if err := p.store.TouchEventHandler(ctx, h.ID, now); err != nil {
			log.Error().Err(err).Str("handler", h.Name).Msg("Failed to update last check")
		}
		processed++
	}
	return processed
}

func (p *Poller) process(ctx context.Context, h models.EventHandler) {
	log.Debug().Str("handler", h.Name).Str("type", string(h.EventType)).Msg("Checking event handler")

	switch h.EventType {
	case models.EventPolling, models.EventWeb:
		if h.URL == "" {
			log.Warn().Str("handler", h.Name).Msg("Event handler has no URL")
			return
		}
		status, err := p.check(ctx, h.URL)
		if err != nil {
			log.Warn().Err(err).Str("handler", h.Name).Str("url", h.URL).Msg("Event check failed")
			return
		}
		log.Info().Str("handler", h.Name).Str("url", h.URL).Int("status", status).Msg("Event check")
	case models.EventPeriodic:
		log.Info().Str("handler", h.Name).Msg("Periodic check")
	default:
		log.Warn().Str("handler", h.Name).Str("type", string(h.EventType)).Msg("Unknown event type")
	}
}

func (p *Poller) check(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
