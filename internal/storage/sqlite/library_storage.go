// -----------------------------------------------------------------------
// Library Storage - libraries, versions, status and version resolution
// -----------------------------------------------------------------------

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/models"
)

// LibraryStorage persists libraries and their versions
type LibraryStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewLibraryStorage creates a library storage instance
func NewLibraryStorage(db *SQLiteDB, logger arbor.ILogger) *LibraryStorage {
	return &LibraryStorage{db: db, logger: logger}
}

// EnsureLibrary resolves or creates a library by name
func (l *LibraryStorage) EnsureLibrary(ctx context.Context, name string) (int64, error) {
	var id int64
	err := l.db.WriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO libraries (name) VALUES (?) ON CONFLICT (name) DO NOTHING", name); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT id FROM libraries WHERE name = ?", name).Scan(&id)
	})
	if err != nil {
		return 0, &models.StoreError{Message: "failed to resolve library " + name, Cause: err}
	}
	return id, nil
}

// EnsureVersion resolves or creates a (library, version) row. An empty name
// denotes the unversioned row.
func (l *LibraryStorage) EnsureVersion(ctx context.Context, libraryID int64, name string) (int64, error) {
	var id int64
	err := l.db.WriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO versions (library_id, name) VALUES (?, ?) ON CONFLICT (library_id, name) DO NOTHING",
			libraryID, name); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx,
			"SELECT id FROM versions WHERE library_id = ? AND name = ?", libraryID, name).Scan(&id)
	})
	if err != nil {
		return 0, &models.StoreError{Message: "failed to resolve version " + name, Cause: err}
	}
	return id, nil
}

// GetVersion loads one version row by library and version name
func (l *LibraryStorage) GetVersion(ctx context.Context, library, version string) (*models.Version, error) {
	row := l.db.db.QueryRowContext(ctx, `
		SELECT v.id, v.library_id, v.name, v.status, COALESCE(v.source_url, ''),
		       v.progress_pages, v.progress_max_pages, COALESCE(v.error_message, ''),
		       v.created_at, v.started_at, v.updated_at
		FROM versions v
		JOIN libraries l ON l.id = v.library_id
		WHERE l.name = ? AND v.name = ?`, library, version)
	return scanVersion(row)
}

// GetVersionByID loads one version row
func (l *LibraryStorage) GetVersionByID(ctx context.Context, id int64) (*models.Version, error) {
	row := l.db.db.QueryRowContext(ctx, `
		SELECT id, library_id, name, status, COALESCE(source_url, ''),
		       progress_pages, progress_max_pages, COALESCE(error_message, ''),
		       created_at, started_at, updated_at
		FROM versions WHERE id = ?`, id)
	return scanVersion(row)
}

type versionScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row versionScanner) (*models.Version, error) {
	var v models.Version
	var createdAt int64
	var startedAt, updatedAt sql.NullInt64
	err := row.Scan(&v.ID, &v.LibraryID, &v.Name, &v.Status, &v.SourceURL,
		&v.ProgressPages, &v.ProgressMaxPages, &v.ErrorMessage,
		&createdAt, &startedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.StoreError{Message: "failed to load version", Cause: err}
	}

	v.CreatedAt = time.Unix(createdAt, 0).UTC()
	if startedAt.Valid {
		t := time.Unix(startedAt.Int64, 0).UTC()
		v.StartedAt = &t
	}
	if updatedAt.Valid {
		t := time.Unix(updatedAt.Int64, 0).UTC()
		v.UpdatedAt = &t
	}
	return &v, nil
}

// SetVersionStatus transitions a version row. RUNNING is stored as UPDATING
// when the version already has documents from a previous completed run.
// errorMessage is persisted for FAILED, cleared otherwise.
func (l *LibraryStorage) SetVersionStatus(ctx context.Context, versionID int64, status models.VersionStatus, errorMessage string) error {
	err := l.db.WriteTx(ctx, func(tx *sql.Tx) error {
		effective := status
		if status == models.VersionStatusRunning {
			var docs int
			if err := tx.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM documents WHERE version_id = ?", versionID).Scan(&docs); err != nil {
				return err
			}
			if docs > 0 {
				effective = models.VersionStatusUpdating
			}
		}

		query := `UPDATE versions SET status = ?, error_message = ?, updated_at = strftime('%s', 'now')`
		args := []any{string(effective), nullIfEmpty(errorMessage)}
		if status == models.VersionStatusRunning {
			query += `, started_at = strftime('%s', 'now'), progress_pages = 0, progress_max_pages = 0`
		}
		query += ` WHERE id = ?`
		args = append(args, versionID)

		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return &models.StoreError{Message: "failed to update version status", Cause: err}
	}
	return nil
}

// SetVersionSource records the crawl start URL on the version row
func (l *LibraryStorage) SetVersionSource(ctx context.Context, versionID int64, sourceURL string) error {
	err := l.db.WriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"UPDATE versions SET source_url = ?, updated_at = strftime('%s', 'now') WHERE id = ?",
			sourceURL, versionID)
		return err
	})
	if err != nil {
		return &models.StoreError{Message: "failed to set version source", Cause: err}
	}
	return nil
}

// UpdateProgress writes the progress counters. progress_pages is monotonic
// for the duration of a crawl.
func (l *LibraryStorage) UpdateProgress(ctx context.Context, versionID int64, pages, maxPages int) error {
	err := l.db.WriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE versions
			SET progress_pages = MAX(progress_pages, ?),
			    progress_max_pages = ?,
			    updated_at = strftime('%s', 'now')
			WHERE id = ?`, pages, maxPages, versionID)
		return err
	})
	if err != nil {
		return &models.StoreError{Message: "failed to update progress", Cause: err}
	}
	return nil
}

// ListLibraries returns every library with its version summaries
func (l *LibraryStorage) ListLibraries(ctx context.Context) ([]models.LibrarySummary, error) {
	rows, err := l.db.db.QueryContext(ctx, `
		SELECT l.name, v.name, v.status, v.progress_pages, v.progress_max_pages,
		       COALESCE(v.source_url, ''), v.updated_at,
		       (SELECT COUNT(*) FROM documents d WHERE d.version_id = v.id)
		FROM libraries l
		JOIN versions v ON v.library_id = l.id
		ORDER BY l.name, v.name`)
	if err != nil {
		return nil, &models.StoreError{Message: "failed to list libraries", Cause: err}
	}
	defer rows.Close()

	var summaries []models.LibrarySummary
	for rows.Next() {
		var libName string
		var vs models.VersionSummary
		var updatedAt sql.NullInt64
		if err := rows.Scan(&libName, &vs.Ref, &vs.Status, &vs.ProgressPages,
			&vs.ProgressMaxPages, &vs.SourceURL, &updatedAt, &vs.DocumentCount); err != nil {
			return nil, &models.StoreError{Message: "failed to scan library row", Cause: err}
		}
		if updatedAt.Valid && vs.Status == models.VersionStatusCompleted {
			t := time.Unix(updatedAt.Int64, 0).UTC()
			vs.IndexedAt = &t
		}

		if len(summaries) == 0 || summaries[len(summaries)-1].Library != libName {
			summaries = append(summaries, models.LibrarySummary{Library: libName})
		}
		last := &summaries[len(summaries)-1]
		last.Versions = append(last.Versions, vs)
	}
	return summaries, rows.Err()
}

// FindBestVersion resolves a target version by semver semantics: empty target
// matches the unversioned row, a partial version picks the highest release
// under it, an exact version requires an exact match. When nothing matches,
// a VersionNotFoundError lists what exists.
func (l *LibraryStorage) FindBestVersion(ctx context.Context, library, target string) (models.VersionMatch, error) {
	names, err := l.versionNames(ctx, library)
	if err != nil {
		return models.VersionMatch{}, err
	}

	match := models.VersionMatch{}
	var available []string
	for _, name := range names {
		if name == "" {
			match.HasUnversioned = true
		} else {
			available = append(available, name)
		}
	}

	target = strings.TrimSpace(strings.TrimPrefix(target, "v"))

	if target == "" {
		if match.HasUnversioned {
			return match, nil
		}
		return match, &models.VersionNotFoundError{Library: library, Requested: target, Available: available}
	}

	if best := bestSemverMatch(available, target); best != "" {
		match.BestMatch = best
		return match, nil
	}

	// Non-semver names resolve by exact string match
	for _, name := range available {
		if name == target {
			match.BestMatch = name
			return match, nil
		}
	}

	return match, &models.VersionNotFoundError{Library: library, Requested: target, Available: available, HasUnversioned: match.HasUnversioned}
}

// versionNames lists the version names of a library that have content or are
// being indexed
func (l *LibraryStorage) versionNames(ctx context.Context, library string) ([]string, error) {
	rows, err := l.db.db.QueryContext(ctx, `
		SELECT v.name FROM versions v
		JOIN libraries l ON l.id = v.library_id
		WHERE l.name = ?`, library)
	if err != nil {
		return nil, &models.StoreError{Message: "failed to list versions of " + library, Cause: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &models.StoreError{Message: "failed to scan version name", Cause: err}
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// bestSemverMatch picks the highest version satisfying the target. Partial
// targets ("1", "1.2") act as ranges over their missing parts.
func bestSemverMatch(names []string, target string) string {
	rangeSpec := target
	if parts := strings.Split(target, "."); len(parts) < 3 {
		rangeSpec = target + ".x"
		if len(parts) == 1 {
			rangeSpec = target + ".x.x"
		}
	}
	constraint, err := semver.NewConstraint(rangeSpec)
	if err != nil {
		return ""
	}

	var candidates []*semver.Version
	byVersion := make(map[string]string)
	for _, name := range names {
		v, err := semver.NewVersion(name)
		if err != nil {
			continue
		}
		if constraint.Check(v) {
			candidates = append(candidates, v)
			byVersion[v.String()] = name
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.Sort(semver.Collection(candidates))
	return byVersion[candidates[len(candidates)-1].String()]
}

// RemoveVersion deletes a version row; documents and vectors cascade, FTS
// rows are removed explicitly
func (l *LibraryStorage) RemoveVersion(ctx context.Context, library, version string) error {
	err := l.db.WriteTx(ctx, func(tx *sql.Tx) error {
		var versionID int64
		err := tx.QueryRowContext(ctx, `
			SELECT v.id FROM versions v
			JOIN libraries l ON l.id = v.library_id
			WHERE l.name = ? AND v.name = ?`, library, version).Scan(&versionID)
		if errors.Is(err, sql.ErrNoRows) {
			return &models.VersionNotFoundError{Library: library, Requested: version}
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM documents_fts WHERE rowid IN (SELECT id FROM documents WHERE version_id = ?)",
			versionID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM versions WHERE id = ?", versionID)
		return err
	})

	var notFound *models.VersionNotFoundError
	if errors.As(err, &notFound) {
		return notFound
	}
	if err != nil {
		return &models.StoreError{Message: "failed to remove version", Cause: err}
	}

	l.logger.Info().Str("library", library).Str("version", version).Msg("Version removed")
	return nil
}

// VersionRef identifies a version by names plus its crawl source
type VersionRef struct {
	Library   string
	Version   string
	SourceURL string
}

// VersionsWithStatus lists versions currently in the given status
func (l *LibraryStorage) VersionsWithStatus(ctx context.Context, status models.VersionStatus) ([]VersionRef, error) {
	rows, err := l.db.db.QueryContext(ctx, `
		SELECT l.name, v.name, COALESCE(v.source_url, '')
		FROM versions v
		JOIN libraries l ON l.id = v.library_id
		WHERE v.status = ?
		ORDER BY v.created_at`, string(status))
	if err != nil {
		return nil, &models.StoreError{Message: "failed to list versions by status", Cause: err}
	}
	defer rows.Close()

	var refs []VersionRef
	for rows.Next() {
		var ref VersionRef
		if err := rows.Scan(&ref.Library, &ref.Version, &ref.SourceURL); err != nil {
			return nil, &models.StoreError{Message: "failed to scan version ref", Cause: err}
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ReconcileOnStartup fails any version left QUEUED or RUNNING by a previous
// process. Called before the job manager accepts work, so nothing is claimed.
func (l *LibraryStorage) ReconcileOnStartup(ctx context.Context) (int, error) {
	var reconciled int
	err := l.db.WriteTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE versions
			SET status = 'failed', error_message = 'interrupted', updated_at = strftime('%s', 'now')
			WHERE status IN ('queued', 'running', 'updating')`)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		reconciled = int(n)
		return err
	})
	if err != nil {
		return 0, &models.StoreError{Message: "startup reconciliation failed", Cause: err}
	}
	if reconciled > 0 {
		l.logger.Warn().Int("versions", reconciled).Msg("Reconciled interrupted versions to failed")
	}
	return reconciled, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
