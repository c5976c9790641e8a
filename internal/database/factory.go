package database

import (
	"fmt"
	"os"
	"path/filepath"

	"papers-go/internal/config"
)

// DatabaseFileName is the SQLite file created inside DatabaseConfig.DataDir.
const DatabaseFileName = "papers.db"

// NewDatabaseFromConfig opens the database described by cfg.
// An in-memory database is migrated immediately since it starts empty;
// a file database keeps its schema version and is checked by the caller.
func NewDatabaseFromConfig(cfg config.DatabaseConfig) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, DatabaseFileName))
	case "memory":
		db, err := NewSQLiteDatabase(":memory:")
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating memory database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
