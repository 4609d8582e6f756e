// Package factory constructs the configured audit backend.
package factory

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/chembench/server/internal/audit"
	"github.com/chembench/server/internal/audit/gormstore"
	"github.com/chembench/server/internal/audit/memory"
	"github.com/chembench/server/internal/config"
	"github.com/chembench/server/internal/database"
)

// NewBackend creates an audit backend based on configuration. The returned
// backend has not been initialized; callers must Init it before use.
func NewBackend(cfg config.AuditConfig, zlog zerolog.Logger, log *slog.Logger) (audit.Backend, error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(memory.Config{
			Capacity:  cfg.Memory.Capacity,
			OutputDir: cfg.Memory.OutputDir,
		}), nil

	case "sqlite":
		mgr := database.NewManager(zlog)
		db, err := mgr.GetSqliteDB(viper.GetString("audit.db.sqlitePath"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite audit DB: %w", err)
		}
		return gormstore.New(db, gormstore.Config{
			FlushInterval: cfg.FlushInterval,
			BatchSize:     cfg.BatchSize,
		}, log), nil

	case "postgres":
		mgr := database.NewManager(zlog)
		if err := mgr.Connect(); err != nil {
			return nil, fmt.Errorf("connect audit DB: %w", err)
		}
		return gormstore.New(mgr.DB, gormstore.Config{
			FlushInterval: cfg.FlushInterval,
			BatchSize:     cfg.BatchSize,
		}, log), nil

	default:
		return nil, fmt.Errorf("unknown audit backend: %s", cfg.Backend)
	}
}
