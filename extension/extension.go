// Package extension provides a Forge extension entry point for Coffer.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/cofferhq/coffer"
	"github.com/cofferhq/coffer/api"
	"github.com/cofferhq/coffer/plugin"
	"github.com/cofferhq/coffer/storage"
	"github.com/cofferhq/coffer/storage/mongo"
	"github.com/cofferhq/coffer/storage/postgres"
	"github.com/cofferhq/coffer/storage/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "coffer"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Permissioned object store engine with per-identity ACLs"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Coffer as a Forge extension.
type Extension struct {
	config     Config
	eng        *coffer.Engine
	apiHandler *api.API
	logger     *slog.Logger
	engineOpts []coffer.Option
	plugins    []plugin.Plugin
}

// New creates a Coffer Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying Coffer engine.
func (e *Extension) Engine() *coffer.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	// Register the engine in the DI container.
	if err := vessel.Provide(fapp.Container(), func() (*coffer.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("coffer: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Build engine options.
	opts := make([]coffer.Option, 0, len(e.engineOpts)+len(e.plugins)+2)
	opts = append(opts, coffer.WithLogger(logger))

	// Resolve storage from the DI container: a ready composite store
	// first, else a grove.DB wrapped by the configured driver's backend.
	if s, err := forge.Inject[storage.Store](fapp.Container()); err == nil {
		opts = append(opts, coffer.WithStorage(s))
	} else if db, err := forge.Inject[*grove.DB](fapp.Container()); err == nil {
		s, err := storeForDriver(e.config.Driver, db)
		if err != nil {
			return err
		}
		opts = append(opts, coffer.WithStorage(s))
	}

	// Append user-provided options (may override storage).
	opts = append(opts, e.engineOpts...)

	// Register extension hooks.
	for _, x := range e.plugins {
		opts = append(opts, coffer.WithPlugin(x))
	}

	eng, err := coffer.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("coffer: create engine: %w", err)
	}
	e.eng = eng

	// Create API handler.
	e.apiHandler = api.New(eng, fapp.Router())

	// Register HTTP routes unless disabled.
	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("coffer: register routes: %w", err)
		}
	}

	return nil
}

// storeForDriver wraps a grove.DB with the backend matching the
// configured driver name.
func storeForDriver(driver string, db *grove.DB) (storage.Store, error) {
	switch driver {
	case "postgres", "pg":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo", "mongodb":
		return mongo.New(db), nil
	case "":
		return nil, errors.New("coffer: driver must be set to wrap a grove database (postgres, sqlite, mongo)")
	default:
		return nil, fmt.Errorf("coffer: unknown driver %q", driver)
	}
}

// Start begins the engine and runs migrations if enabled.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("coffer: extension not initialized")
	}

	// Run migrations unless disabled.
	if !e.config.DisableMigrate {
		s := e.eng.Storage()
		if s != nil {
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("coffer: migration failed: %w", err)
			}
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("coffer: extension not initialized")
	}
	s := e.eng.Storage()
	if s == nil {
		return errors.New("coffer: no storage configured")
	}
	return s.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all Coffer API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
