// Package backend selects and wires a storage backend from configuration.
package backend

import (
	"fmt"

	"bilancio/internal/config"
	applog "bilancio/internal/log"
	"bilancio/internal/store"
	"bilancio/internal/store/memory"
	"bilancio/internal/store/sqlite"
)

const (
	SQLiteBackend = "sqlite"
	MemoryBackend = "memory"
)

// Result bundles the repository with its cleanup hook.
type Result struct {
	Repository store.Repository
	Cleanup    func() error
}

// Open builds the repository named by cfg.DataBackend.
func Open(cfg *config.Config, logger *applog.Logger) (*Result, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentStorage)

	switch cfg.DataBackend {
	case SQLiteBackend:
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite repository: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &Result{Repository: repo, Cleanup: repo.Close}, nil

	case MemoryBackend:
		repo := memory.New()
		logger.Info("Initialized memory backend")
		return &Result{Repository: repo, Cleanup: repo.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}
}
