// Package settings persists the user's LLM provider selection.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/pkg/models"
	"github.com/rs/zerolog/log"
)

// FileName is the settings file inside the data directory.
const FileName = "settings.json"

// ErrInvalid is returned for a configuration that cannot be used.
var ErrInvalid = errors.New("invalid settings")

// Validate checks cfg before it is saved or applied.
func Validate(cfg models.LLMConfig) error {
	if !cfg.Provider.Valid() {
		return fmt.Errorf("%w: unknown provider %q", ErrInvalid, cfg.Provider)
	}
	if cfg.Provider != models.ProviderLocal && strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("%w: %s requires an API key", ErrInvalid, cfg.Provider)
	}
	return nil
}

// WithDefaults fills what an older or hand-edited file may leave out.
func WithDefaults(cfg models.LLMConfig) models.LLMConfig {
	def := models.DefaultLLMConfig()
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}
	if cfg.Provider == models.ProviderLocal {
		if cfg.Model == "" {
			cfg.Model = def.Model
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = def.Endpoint
		}
	}
	return cfg
}

// FileStore keeps settings as a JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore stores settings at <dataDir>/settings.json.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{path: filepath.Join(dataDir, FileName)}
}

// Path returns the settings file location.
func (s *FileStore) Path() string { return s.path }

// Load returns the saved settings, or the defaults when no file exists.
func (s *FileStore) Load() (models.LLMConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return models.DefaultLLMConfig(), nil
	}
	if err != nil {
		return models.LLMConfig{}, fmt.Errorf("read settings: %w", err)
	}

	var cfg models.LLMConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return models.LLMConfig{}, fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	return WithDefaults(cfg), nil
}

// Save validates and writes cfg.
func (s *FileStore) Save(cfg models.LLMConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	log.Info().Str("provider", string(cfg.Provider)).Str("model", cfg.Model).Msg("Settings saved")
	return nil
}
