package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/quizdrill/drill/internal/catalog"
	"github.com/quizdrill/drill/internal/engine"
	"github.com/quizdrill/drill/internal/storage"
)

// openEngine loads the catalog, opens the database, and brings the
// engine to ready (including the explicit schema migration the host
// owns). The returned closer flushes and releases everything.
func openEngine(ctx context.Context, opts *RootOptions) (*engine.Engine, []catalog.Item, func(), error) {
	items, err := catalog.Load(opts.Catalog)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	slog.Debug("catalog loaded", "path", opts.Catalog, "items", len(items))

	if dir := filepath.Dir(opts.Database); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, nil, WrapExitError(ExitCommandError, "failed to create database directory", err)
		}
	}
	backend, err := storage.Open(opts.Database)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	slog.Debug("database ready", "path", opts.Database)

	eng, err := engine.New(backend, engine.Config{})
	if err != nil {
		backend.Close()
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to create engine", err)
	}
	if err := eng.EnsureReady(ctx); err != nil {
		backend.Close()
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to initialize engine", err)
	}
	if err := eng.Migrate(ctx); err != nil {
		backend.Close()
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to migrate schema", err)
	}

	closer := func() {
		if err := eng.Close(ctx); err != nil {
			slog.Error("error closing engine", "error", err)
		}
		if err := backend.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}
	return eng, items, closer, nil
}
