// Package db holds the DuckDB indicator warehouse.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-stat/internal/logger"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create duckdb directory: %w", err)
			return
		}

		name := cfg.DBName
		if name == "" {
			name = "statmap"
		}
		dbPath := filepath.Join(duckdbDir, name+".duckdb")
		if instance, initErr = Open(dbPath); initErr != nil {
			return
		}
		logger.L().Debug("duckdb_opened", "path", dbPath)
	})
	return instance, initErr
}

// sandbox keeps SQL from touching anything outside the database file:
// no file readers or writers, no ATTACH, no extension installs, and no SET
// to undo it.
const sandbox = "enable_external_access=false&lock_configuration=true"

// Open opens a sandboxed DuckDB database at path. An empty path opens an
// in-memory database.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("duckdb", path+"?"+sandbox)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Close closes the database connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}
