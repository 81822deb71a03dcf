package coffer

import (
	"log/slog"
	"time"

	"github.com/cofferhq/coffer/plugin"
	"github.com/cofferhq/coffer/storage"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStorage sets the composite store.
func WithStorage(s storage.Store) Option { return func(e *Engine) { e.storage = s } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithPlugin registers a plugin with the engine.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) {
		if e.plugins == nil {
			e.plugins = plugin.NewRegistry(e.logger)
		}
		e.plugins.Register(x)
	}
}
