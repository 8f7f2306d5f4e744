package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/nao1215/relcrawl/internal/checkpoint"
	"github.com/nao1215/relcrawl/internal/config"
	"github.com/nao1215/relcrawl/internal/database"
	"github.com/nao1215/relcrawl/internal/pipeline"
)

// defaultRunHistory is the number of runs shown in a summary.
const defaultRunHistory = 5

// backend is the opened checkpoint storage.
type backend struct {
	name     string
	location string

	// snapshotter is nil for a read-only backend with no checkpoint yet.
	snapshotter checkpoint.Snapshotter

	// db is set for an opened sqlite backend only.
	db *database.CrawlDB
}

// openBackend opens the checkpoint storage selected by cfg. With readOnly
// set, nothing is created: a missing sqlite database opens as a backend
// without a snapshotter.
func openBackend(cfg *config.Config, readOnly bool) (*backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		opts := database.DefaultOptions()
		if readOnly {
			opts = database.Options{}
		}
		db, err := database.Open(cfg.Storage.Dir, opts)
		if readOnly && errors.Is(err, database.ErrNotFound) {
			return &backend{
				name:     config.BackendSQLite,
				location: filepath.Join(cfg.Storage.Dir, database.FileName),
			}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return &backend{
			name:        config.BackendSQLite,
			location:    db.Path(),
			snapshotter: db,
			db:          db,
		}, nil
	case config.BackendFile:
		fs := checkpoint.NewFileSnapshotter(cfg.Storage.Dir)
		return &backend{
			name:        config.BackendFile,
			location:    fs.Dir(),
			snapshotter: fs,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Storage.Backend)
	}
}

// recorder returns the run history store, or nil when the backend keeps none.
func (b *backend) recorder() pipeline.RunRecorder {
	if b.db == nil {
		return nil
	}
	return b.db
}

// runs returns the most recent runs. The file backend has no history.
func (b *backend) runs(ctx context.Context, limit int) ([]database.Run, error) {
	if b.db == nil {
		return nil, nil
	}
	return b.db.ListRuns(ctx, limit)
}

// Close releases the backend.
func (b *backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
