package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/doctrina/internal/models"
)

func mustVersion(t *testing.T, mgr *Manager, library, version string) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	libID, err := mgr.Libraries.EnsureLibrary(ctx, library)
	require.NoError(t, err)
	verID, err := mgr.Libraries.EnsureVersion(ctx, libID, version)
	require.NoError(t, err)
	return libID, verID
}

func TestEnsureLibrary_Idempotent(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	first, err := mgr.Libraries.EnsureLibrary(ctx, "react")
	require.NoError(t, err)
	second, err := mgr.Libraries.EnsureLibrary(ctx, "react")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := mgr.Libraries.EnsureLibrary(ctx, "vue")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestEnsureVersion_UnversionedRow(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	libID, verID := mustVersion(t, mgr, "react", "")
	again, err := mgr.Libraries.EnsureVersion(ctx, libID, "")
	require.NoError(t, err)
	assert.Equal(t, verID, again)

	v, err := mgr.Libraries.GetVersion(ctx, "react", "")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, models.VersionStatusNotIndexed, v.Status)
}

func TestSetVersionStatus_RunningBecomesUpdatingWithDocuments(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	libID, verID := mustVersion(t, mgr, "react", "18.2.0")

	// No documents yet: RUNNING stays RUNNING
	require.NoError(t, mgr.Libraries.SetVersionStatus(ctx, verID, models.VersionStatusRunning, ""))
	v, err := mgr.Libraries.GetVersionByID(ctx, verID)
	require.NoError(t, err)
	assert.Equal(t, models.VersionStatusRunning, v.Status)
	assert.NotNil(t, v.StartedAt)

	require.NoError(t, mgr.Documents.ReplaceDocuments(ctx, libID, verID, []*models.Document{
		{URL: "https://react.dev/learn", Content: "hooks"},
	}))
	require.NoError(t, mgr.Libraries.SetVersionStatus(ctx, verID, models.VersionStatusCompleted, ""))

	// With documents present a re-index shows as UPDATING
	require.NoError(t, mgr.Libraries.SetVersionStatus(ctx, verID, models.VersionStatusRunning, ""))
	v, err = mgr.Libraries.GetVersionByID(ctx, verID)
	require.NoError(t, err)
	assert.Equal(t, models.VersionStatusUpdating, v.Status)
}

func TestSetVersionStatus_FailedKeepsMessage(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	_, verID := mustVersion(t, mgr, "react", "18.2.0")
	require.NoError(t, mgr.Libraries.SetVersionStatus(ctx, verID, models.VersionStatusFailed, "connection refused"))

	v, err := mgr.Libraries.GetVersionByID(ctx, verID)
	require.NoError(t, err)
	assert.Equal(t, models.VersionStatusFailed, v.Status)
	assert.Equal(t, "connection refused", v.ErrorMessage)

	// A later transition clears the message
	require.NoError(t, mgr.Libraries.SetVersionStatus(ctx, verID, models.VersionStatusQueued, ""))
	v, err = mgr.Libraries.GetVersionByID(ctx, verID)
	require.NoError(t, err)
	assert.Empty(t, v.ErrorMessage)
}

func TestUpdateProgress_Monotonic(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	_, verID := mustVersion(t, mgr, "react", "18.2.0")
	require.NoError(t, mgr.Libraries.SetVersionStatus(ctx, verID, models.VersionStatusRunning, ""))

	require.NoError(t, mgr.Libraries.UpdateProgress(ctx, verID, 10, 100))
	require.NoError(t, mgr.Libraries.UpdateProgress(ctx, verID, 5, 100))

	v, err := mgr.Libraries.GetVersionByID(ctx, verID)
	require.NoError(t, err)
	assert.Equal(t, 10, v.ProgressPages)
	assert.Equal(t, 100, v.ProgressMaxPages)
}

func TestListLibraries_DocumentCounts(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	libID, verID := mustVersion(t, mgr, "react", "18.2.0")
	require.NoError(t, mgr.Documents.ReplaceDocuments(ctx, libID, verID, []*models.Document{
		{URL: "https://react.dev/a", Content: "a"},
		{URL: "https://react.dev/b", Content: "b"},
	}))
	require.NoError(t, mgr.Libraries.SetVersionStatus(ctx, verID, models.VersionStatusCompleted, ""))
	mustVersion(t, mgr, "vue", "3.4.0")

	summaries, err := mgr.Libraries.ListLibraries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "react", summaries[0].Library)
	require.Len(t, summaries[0].Versions, 1)
	assert.Equal(t, "18.2.0", summaries[0].Versions[0].Ref)
	assert.Equal(t, 2, summaries[0].Versions[0].DocumentCount)
	assert.Equal(t, models.VersionStatusCompleted, summaries[0].Versions[0].Status)
	assert.NotNil(t, summaries[0].Versions[0].IndexedAt)

	assert.Equal(t, "vue", summaries[1].Library)
	assert.Equal(t, 0, summaries[1].Versions[0].DocumentCount)
	assert.Nil(t, summaries[1].Versions[0].IndexedAt)
}

func TestFindBestVersion(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	for _, name := range []string{"1.2.3", "1.3.0", "2.0.1", ""} {
		mustVersion(t, mgr, "react", name)
	}

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"exact", "1.2.3", "1.2.3"},
		{"partial major picks highest", "1", "1.3.0"},
		{"partial minor", "1.2", "1.2.3"},
		{"leading v stripped", "v2.0.1", "2.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := mgr.Libraries.FindBestVersion(ctx, "react", tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, match.BestMatch)
			assert.True(t, match.HasUnversioned)
		})
	}
}

func TestFindBestVersion_EmptyTargetNeedsUnversionedRow(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	mustVersion(t, mgr, "react", "")
	match, err := mgr.Libraries.FindBestVersion(ctx, "react", "")
	require.NoError(t, err)
	assert.Empty(t, match.BestMatch)
	assert.True(t, match.HasUnversioned)

	mustVersion(t, mgr, "vue", "3.4.0")
	_, err = mgr.Libraries.FindBestVersion(ctx, "vue", "")
	var notFound *models.VersionNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, []string{"3.4.0"}, notFound.Available)
	assert.False(t, notFound.HasUnversioned)
}

func TestFindBestVersion_NotFoundListsAvailable(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	mustVersion(t, mgr, "react", "18.2.0")
	mustVersion(t, mgr, "react", "17.0.2")

	_, err := mgr.Libraries.FindBestVersion(ctx, "react", "19")
	var notFound *models.VersionNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "react", notFound.Library)
	assert.ElementsMatch(t, []string{"18.2.0", "17.0.2"}, notFound.Available)
}

func TestFindBestVersion_NonSemverExactMatch(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	mustVersion(t, mgr, "react", "canary")
	match, err := mgr.Libraries.FindBestVersion(ctx, "react", "canary")
	require.NoError(t, err)
	assert.Equal(t, "canary", match.BestMatch)

	_, err = mgr.Libraries.FindBestVersion(ctx, "react", "beta")
	var notFound *models.VersionNotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestRemoveVersion_CleansAllTables(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	libID, verID := mustVersion(t, mgr, "react", "18.2.0")
	require.NoError(t, mgr.Documents.ReplaceDocuments(ctx, libID, verID, []*models.Document{
		{URL: "https://react.dev/a", Content: "a", Embedding: []float32{1, 0, 0, 0}},
	}))

	require.NoError(t, mgr.Libraries.RemoveVersion(ctx, "react", "18.2.0"))

	for _, q := range []string{
		"SELECT COUNT(*) FROM documents",
		"SELECT COUNT(*) FROM documents_fts",
		"SELECT COUNT(*) FROM document_vectors",
	} {
		var count int
		require.NoError(t, mgr.DB().DB().QueryRow(q).Scan(&count))
		assert.Zero(t, count, q)
	}

	// Missing version reports not found
	err := mgr.Libraries.RemoveVersion(ctx, "react", "18.2.0")
	var notFound *models.VersionNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestReconcileOnStartup(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	_, running := mustVersion(t, mgr, "react", "18.2.0")
	_, queued := mustVersion(t, mgr, "vue", "3.4.0")
	_, completed := mustVersion(t, mgr, "svelte", "4.0.0")

	require.NoError(t, mgr.Libraries.SetVersionStatus(ctx, running, models.VersionStatusRunning, ""))
	require.NoError(t, mgr.Libraries.SetVersionStatus(ctx, queued, models.VersionStatusQueued, ""))
	require.NoError(t, mgr.Libraries.SetVersionStatus(ctx, completed, models.VersionStatusCompleted, ""))

	n, err := mgr.Libraries.ReconcileOnStartup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []int64{running, queued} {
		v, err := mgr.Libraries.GetVersionByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.VersionStatusFailed, v.Status)
		assert.Equal(t, "interrupted", v.ErrorMessage)
	}

	v, err := mgr.Libraries.GetVersionByID(ctx, completed)
	require.NoError(t, err)
	assert.Equal(t, models.VersionStatusCompleted, v.Status)
}
