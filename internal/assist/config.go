package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clipflow/clipflow-engine/internal/logging"
	"github.com/clipflow/clipflow-engine/internal/store"
)

// ConfigStore persists the assist configuration under its own key.
type ConfigStore struct {
	store  *store.Store
	logger *slog.Logger
}

func NewConfigStore(s *store.Store, logger *slog.Logger) *ConfigStore {
	return &ConfigStore{store: s, logger: logger.With("component", "assist")}
}

// Load returns the stored configuration, or defaults when nothing has
// been configured yet or the stored value cannot be parsed.
func (c *ConfigStore) Load(ctx context.Context) Config {
	cfg := DefaultConfig()
	raw, err := c.store.Get(ctx, store.KeyAssistConf)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("failed to load assist config, using defaults", "error", err)
		}
		return cfg
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		c.logger.Warn("corrupt assist config, using defaults", "error", err)
		return DefaultConfig()
	}
	return cfg
}

// Save validates and persists the configuration.
func (c *ConfigStore) Save(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode assist config: %w", err)
	}
	if err := c.store.Put(ctx, store.KeyAssistConf, string(data)); err != nil {
		return fmt.Errorf("failed to save assist config: %w", err)
	}
	c.logger.Info("assist config updated",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"api_key", logging.SanitizeToken(cfg.APIKey))
	return nil
}

// Redacted returns a copy safe to hand to API clients. An unset key
// stays empty so clients can tell "not configured" from "hidden".
func (cfg Config) Redacted() Config {
	out := cfg
	if out.APIKey != "" {
		out.APIKey = logging.SanitizeToken(out.APIKey)
	}
	return out
}
