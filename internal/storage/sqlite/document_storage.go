// -----------------------------------------------------------------------
// Document Storage - transactional document, FTS and vector writes
// -----------------------------------------------------------------------

package sqlite

import (
	"context"
	"database/sql"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/models"
)

// DocumentStorage persists document chunks with their full-text and vector
// index rows. FTS rowids mirror documents.id; the virtual table has no
// foreign keys, so its rows are maintained here explicitly.
type DocumentStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a document storage instance
func NewDocumentStorage(db *SQLiteDB, logger arbor.ILogger) *DocumentStorage {
	return &DocumentStorage{db: db, logger: logger}
}

// ReplaceDocuments atomically swaps the document set of a version. Old
// documents, FTS rows and vectors go away and the new batch comes in within
// one transaction, so readers never observe a half-indexed version.
// SortOrder follows slice order.
func (d *DocumentStorage) ReplaceDocuments(ctx context.Context, libraryID, versionID int64, docs []*models.Document) error {
	err := d.db.WriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM documents_fts WHERE rowid IN (SELECT id FROM documents WHERE version_id = ?)",
			versionID); err != nil {
			return err
		}
		// Vectors cascade from documents
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE version_id = ?", versionID); err != nil {
			return err
		}

		insertDoc, err := tx.PrepareContext(ctx, `
			INSERT INTO documents (library_id, version_id, url, content, metadata, sort_order)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer insertDoc.Close()

		insertFTS, err := tx.PrepareContext(ctx, `
			INSERT INTO documents_fts (rowid, content, title, url, path)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer insertFTS.Close()

		insertVec, err := tx.PrepareContext(ctx, `
			INSERT INTO document_vectors (doc_id, library_id, version_id, embedding)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer insertVec.Close()

		for i, doc := range docs {
			metadataJSON, err := doc.Metadata.ToJSON()
			if err != nil {
				return err
			}

			result, err := insertDoc.ExecContext(ctx,
				libraryID, versionID, doc.URL, doc.Content, metadataJSON, i)
			if err != nil {
				return err
			}
			docID, err := result.LastInsertId()
			if err != nil {
				return err
			}
			doc.ID = docID
			doc.LibraryID = libraryID
			doc.VersionID = versionID
			doc.SortOrder = i

			if _, err := insertFTS.ExecContext(ctx,
				docID, doc.Content, doc.Metadata.Title, doc.URL, doc.Metadata.Path); err != nil {
				return err
			}

			if len(doc.Embedding) > 0 {
				if _, err := insertVec.ExecContext(ctx,
					docID, libraryID, versionID, serializeEmbedding(doc.Embedding)); err != nil {
					return err
				}
			}
		}
		return nil
	})

	if models.IsCancellation(err) {
		return err
	}
	if err != nil {
		return &models.StoreError{Message: "failed to replace documents", Cause: err}
	}

	d.logger.Info().
		Int64("version_id", versionID).
		Int("documents", len(docs)).
		Msg("Document set replaced")
	return nil
}

// CountDocuments returns the number of documents stored for a version
func (d *DocumentStorage) CountDocuments(ctx context.Context, versionID int64) (int, error) {
	var count int
	err := d.db.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE version_id = ?", versionID).Scan(&count)
	if err != nil {
		return 0, &models.StoreError{Message: "failed to count documents", Cause: err}
	}
	return count, nil
}

// GetDocuments loads the full document set of a version in sort order
func (d *DocumentStorage) GetDocuments(ctx context.Context, versionID int64) ([]*models.Document, error) {
	rows, err := d.db.db.QueryContext(ctx, `
		SELECT id, library_id, version_id, url, content, COALESCE(metadata, ''), sort_order
		FROM documents WHERE version_id = ?
		ORDER BY sort_order`, versionID)
	if err != nil {
		return nil, &models.StoreError{Message: "failed to load documents", Cause: err}
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var metadataJSON string
		if err := rows.Scan(&doc.ID, &doc.LibraryID, &doc.VersionID,
			&doc.URL, &doc.Content, &metadataJSON, &doc.SortOrder); err != nil {
			return nil, &models.StoreError{Message: "failed to scan document", Cause: err}
		}
		doc.Metadata, err = models.MetadataFromJSON(metadataJSON)
		if err != nil {
			return nil, &models.StoreError{Message: "failed to parse document metadata", Cause: err}
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}
