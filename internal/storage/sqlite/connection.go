// -----------------------------------------------------------------------
// SQLite Connection - pragmas, migrations, write serialization
// -----------------------------------------------------------------------

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/common"
	"github.com/ternarybob/doctrina/internal/models"
	_ "modernc.org/sqlite"
)

const (
	busyRetryCount = 5
	busyRetryDelay = 100 * time.Millisecond
)

// SQLiteDB manages the SQLite database connection. Writes are serialized
// through writeMu plus IMMEDIATE transactions; reads go direct via WAL.
type SQLiteDB struct {
	db      *sql.DB
	logger  arbor.ILogger
	config  common.StorageConfig
	writeMu sync.Mutex
}

// NewSQLiteDB opens the database, applies migrations and switches to the
// production pragma set
func NewSQLiteDB(config common.StorageConfig, embeddingDim int, logger arbor.ILogger) (*SQLiteDB, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &models.StoreError{Message: "failed to create database directory", Cause: err}
	}

	// modernc.org/sqlite registers driver name "sqlite" (not "sqlite3")
	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, &models.StoreError{Message: "failed to open database", Cause: err}
	}

	s := &SQLiteDB{
		db:     db,
		logger: logger,
		config: config,
	}

	if err := s.applyPragmas(migrationPragmas(config)); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(embeddingDim); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.applyPragmas(productionPragmas(config)); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.validateEmbeddingDim(embeddingDim); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("path", config.Path).Msg("SQLite database initialized")
	return s, nil
}

// migrationPragmas trade durability for speed while the schema is built
func migrationPragmas(config common.StorageConfig) []string {
	return []string{
		"PRAGMA journal_mode = OFF",
		"PRAGMA synchronous = OFF",
		fmt.Sprintf("PRAGMA cache_size = -%d", config.CacheSizeMB*1024),
		"PRAGMA mmap_size = 268435456",
	}
}

// productionPragmas are the steady-state settings
func productionPragmas(config common.StorageConfig) []string {
	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = -%d", config.CacheSizeMB*1024),
		fmt.Sprintf("PRAGMA busy_timeout = %d", config.BusyTimeoutMS),
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	if config.WALMode {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA wal_autocheckpoint = 1000",
		)
	} else {
		pragmas = append(pragmas, "PRAGMA journal_mode = DELETE")
	}
	return pragmas
}

func (s *SQLiteDB) applyPragmas(pragmas []string) error {
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return &models.StoreError{Message: "failed to execute " + pragma, Cause: err}
		}
	}
	return nil
}

// validateEmbeddingDim compares the configured dimension against the one
// pinned at first migration. A mismatch requires a re-index and is fatal.
func (s *SQLiteDB) validateEmbeddingDim(want int) error {
	var stored int
	err := s.db.QueryRow("SELECT value FROM _meta WHERE key = 'embedding_dim'").Scan(&stored)
	if err != nil {
		return &models.StoreError{Message: "failed to read embedding dimension", Cause: err}
	}
	if stored != want {
		return &models.StoreError{
			Message: fmt.Sprintf("embedding dimension mismatch: database has %d, configured %d", stored, want),
		}
	}
	return nil
}

// DB returns the underlying database connection
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// WriteTx runs fn inside an IMMEDIATE transaction with SQLITE_BUSY retries.
// All multi-statement writes go through here.
func (s *SQLiteDB) WriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= busyRetryCount; attempt++ {
		err := s.writeTxOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return &models.CancellationError{Cause: ctx.Err()}
		case <-time.After(busyRetryDelay):
		}
	}
	return &models.StoreError{Message: "write transaction kept hitting SQLITE_BUSY", Cause: lastErr}
}

func (s *SQLiteDB) writeTxOnce(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Acquire the write lock up front (IMMEDIATE semantics) so the
	// transaction cannot deadlock on a later lock upgrade
	if _, err := tx.ExecContext(ctx, "UPDATE _schema_migrations SET applied_at = applied_at WHERE 0"); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// isBusy detects SQLITE_BUSY and lock errors across driver wrappings
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
