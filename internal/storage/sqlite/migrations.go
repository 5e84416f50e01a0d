package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/doctrina/internal/models"
)

// migration is one ordered schema step. IDs sort like SQL filenames.
type migration struct {
	id string
	up func(ctx context.Context, tx *sql.Tx) error
}

// migrate applies pending migrations in order inside retried transactions.
// A run that applied at least one migration VACUUMs once at the end.
func (s *SQLiteDB) migrate(embeddingDim int) error {
	ctx := context.Background()

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return &models.StoreError{Message: "failed to create migrations table", Cause: err}
	}

	migrations := []migration{
		{id: "001_initial", up: migrateInitial(embeddingDim)},
		{id: "002_fts", up: migrateFTS},
		{id: "003_vectors", up: migrateVectors},
	}

	applied := 0
	for _, m := range migrations {
		ok, err := s.runMigration(ctx, m)
		if err != nil {
			return &models.StoreError{Message: "migration " + m.id + " failed", Cause: err}
		}
		if ok {
			applied++
		}
	}

	if applied > 0 {
		s.logger.Info().Int("applied", applied).Msg("Schema migrations applied")
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			return &models.StoreError{Message: "post-migration vacuum failed", Cause: err}
		}
	}
	return nil
}

// runMigration applies one migration if missing. SQLITE_BUSY is retried a
// bounded number of times with a fixed delay.
func (s *SQLiteDB) runMigration(ctx context.Context, m migration) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM _schema_migrations WHERE id = ?", m.id).Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	var lastErr error
	for attempt := 0; attempt <= busyRetryCount; attempt++ {
		err := s.runMigrationTx(ctx, m)
		if err == nil {
			return true, nil
		}
		if !isBusy(err) {
			return false, err
		}
		lastErr = err
		time.Sleep(busyRetryDelay)
	}
	return false, fmt.Errorf("migration kept hitting SQLITE_BUSY: %w", lastErr)
}

func (s *SQLiteDB) runMigrationTx(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.up(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO _schema_migrations (id, applied_at) VALUES (?, strftime('%s', 'now'))", m.id); err != nil {
		return err
	}
	return tx.Commit()
}

// migrateInitial creates libraries, versions, documents and pins the
// embedding dimension
func migrateInitial(embeddingDim int) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		queries := []string{
			`CREATE TABLE IF NOT EXISTS libraries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE
			)`,

			`CREATE TABLE IF NOT EXISTS versions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				library_id INTEGER NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
				name TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'not_indexed' CHECK (status IN
					('not_indexed','queued','running','updating','completed','failed','cancelled')),
				source_url TEXT,
				progress_pages INTEGER NOT NULL DEFAULT 0,
				progress_max_pages INTEGER NOT NULL DEFAULT 0,
				error_message TEXT,
				created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
				started_at INTEGER,
				updated_at INTEGER,
				UNIQUE (library_id, name)
			)`,

			`CREATE TABLE IF NOT EXISTS documents (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				library_id INTEGER NOT NULL,
				version_id INTEGER NOT NULL REFERENCES versions(id) ON DELETE CASCADE,
				url TEXT NOT NULL,
				content TEXT NOT NULL,
				metadata JSON,
				sort_order INTEGER NOT NULL DEFAULT 0
			)`,

			`CREATE INDEX IF NOT EXISTS idx_documents_version ON documents(library_id, version_id)`,

			`CREATE TABLE IF NOT EXISTS _meta (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
		}
		for _, query := range queries {
			if _, err := tx.ExecContext(ctx, query); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO _meta (key, value) VALUES ('embedding_dim', ?) ON CONFLICT (key) DO NOTHING",
			embeddingDim)
		return err
	}
}

// migrateFTS creates the full-text index. Rowids mirror documents.id; rows
// are maintained explicitly alongside document writes.
func migrateFTS(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(content, title, url, path)`)
	return err
}

// migrateVectors creates the embedding sidecar keyed by document id
func migrateVectors(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS document_vectors (
			doc_id INTEGER PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
			library_id INTEGER NOT NULL,
			version_id INTEGER NOT NULL,
			embedding BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vectors_scope ON document_vectors(library_id, version_id)`,
	}
	for _, query := range queries {
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}
