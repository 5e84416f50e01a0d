package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/common"
)

const testEmbeddingDim = 4

func testStorageConfig(t *testing.T) common.StorageConfig {
	t.Helper()
	return common.StorageConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		CacheSizeMB:   16,
		BusyTimeoutMS: 5000,
		WALMode:       false, // simpler cleanup in tests
	}
}

func setupTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(testStorageConfig(t), testEmbeddingDim, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}
