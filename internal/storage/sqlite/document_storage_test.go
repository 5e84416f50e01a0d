package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/doctrina/internal/models"
)

func TestReplaceDocuments_InsertsAllIndexRows(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	libID, verID := mustVersion(t, mgr, "react", "18.2.0")
	docs := []*models.Document{
		{
			URL:       "https://react.dev/learn",
			Content:   "Learn React with hooks",
			Metadata:  models.DocumentMetadata{Title: "Quick Start", Path: "/learn"},
			Embedding: []float32{1, 0, 0, 0},
		},
		{
			URL:      "https://react.dev/reference",
			Content:  "API reference",
			Metadata: models.DocumentMetadata{Title: "Reference", Path: "/reference"},
		},
	}
	require.NoError(t, mgr.Documents.ReplaceDocuments(ctx, libID, verID, docs))

	// Sort order follows slice order and IDs are populated
	assert.Equal(t, 0, docs[0].SortOrder)
	assert.Equal(t, 1, docs[1].SortOrder)
	assert.NotZero(t, docs[0].ID)

	// FTS rowids mirror document ids
	var ftsCount int
	require.NoError(t, mgr.DB().DB().QueryRow(`
		SELECT COUNT(*) FROM documents_fts f
		JOIN documents d ON d.id = f.rowid`).Scan(&ftsCount))
	assert.Equal(t, 2, ftsCount)

	// Only the embedded document has a vector row
	var vecCount int
	require.NoError(t, mgr.DB().DB().QueryRow(
		"SELECT COUNT(*) FROM document_vectors WHERE doc_id = ?", docs[0].ID).Scan(&vecCount))
	assert.Equal(t, 1, vecCount)
	require.NoError(t, mgr.DB().DB().QueryRow("SELECT COUNT(*) FROM document_vectors").Scan(&vecCount))
	assert.Equal(t, 1, vecCount)
}

func TestReplaceDocuments_SwapLeavesNoLeftovers(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	libID, verID := mustVersion(t, mgr, "react", "18.2.0")
	first := []*models.Document{
		{URL: "https://react.dev/a", Content: "old a", Embedding: []float32{1, 0, 0, 0}},
		{URL: "https://react.dev/b", Content: "old b", Embedding: []float32{0, 1, 0, 0}},
		{URL: "https://react.dev/c", Content: "old c"},
	}
	require.NoError(t, mgr.Documents.ReplaceDocuments(ctx, libID, verID, first))

	second := []*models.Document{
		{URL: "https://react.dev/a", Content: "new a", Embedding: []float32{0, 0, 1, 0}},
	}
	require.NoError(t, mgr.Documents.ReplaceDocuments(ctx, libID, verID, second))

	count, err := mgr.Documents.CountDocuments(ctx, verID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var ftsCount, vecCount, orphans int
	require.NoError(t, mgr.DB().DB().QueryRow("SELECT COUNT(*) FROM documents_fts").Scan(&ftsCount))
	require.NoError(t, mgr.DB().DB().QueryRow("SELECT COUNT(*) FROM document_vectors").Scan(&vecCount))
	assert.Equal(t, 1, ftsCount)
	assert.Equal(t, 1, vecCount)

	// Every vector points at a live document
	require.NoError(t, mgr.DB().DB().QueryRow(`
		SELECT COUNT(*) FROM document_vectors v
		LEFT JOIN documents d ON d.id = v.doc_id
		WHERE d.id IS NULL`).Scan(&orphans))
	assert.Zero(t, orphans)

	docs, err := mgr.Documents.GetDocuments(ctx, verID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "new a", docs[0].Content)
}

func TestReplaceDocuments_ScopedToVersion(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	libID, v18 := mustVersion(t, mgr, "react", "18.2.0")
	_, v17 := mustVersion(t, mgr, "react", "17.0.2")

	require.NoError(t, mgr.Documents.ReplaceDocuments(ctx, libID, v17, []*models.Document{
		{URL: "https://17.react.dev/a", Content: "seventeen"},
	}))
	require.NoError(t, mgr.Documents.ReplaceDocuments(ctx, libID, v18, []*models.Document{
		{URL: "https://react.dev/a", Content: "eighteen"},
	}))

	count, err := mgr.Documents.CountDocuments(ctx, v17)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	docs, err := mgr.Documents.GetDocuments(ctx, v17)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "seventeen", docs[0].Content)
}

func TestGetDocuments_SortOrder(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	libID, verID := mustVersion(t, mgr, "react", "18.2.0")
	require.NoError(t, mgr.Documents.ReplaceDocuments(ctx, libID, verID, []*models.Document{
		{URL: "https://react.dev/1", Content: "first"},
		{URL: "https://react.dev/2", Content: "second"},
		{URL: "https://react.dev/3", Content: "third"},
	}))

	docs, err := mgr.Documents.GetDocuments(ctx, verID)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "first", docs[0].Content)
	assert.Equal(t, "second", docs[1].Content)
	assert.Equal(t, "third", docs[2].Content)
}
