package extension

import (
	"log/slog"

	"github.com/cofferhq/coffer"
	"github.com/cofferhq/coffer/plugin"
	"github.com/cofferhq/coffer/storage"
)

// ExtOption configures the Coffer Forge extension.
type ExtOption func(*Extension)

// WithStorage sets the persistence backend.
func WithStorage(s storage.Store) ExtOption {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, coffer.WithStorage(s))
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithEngineOptions adds engine-level options.
func WithEngineOptions(opts ...coffer.Option) ExtOption {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opts...)
	}
}

// WithPlugin registers a lifecycle hook plugin.
func WithPlugin(x plugin.Plugin) ExtOption {
	return func(e *Extension) {
		e.plugins = append(e.plugins, x)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithDriver selects the backend wrapped around a DI-resolved grove.DB.
func WithDriver(driver string) ExtOption {
	return func(e *Extension) {
		e.config.Driver = driver
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}
