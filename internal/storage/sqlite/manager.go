package sqlite

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/common"
)

// Manager bundles the database connection with the storage services built on
// top of it
type Manager struct {
	db        *SQLiteDB
	Libraries *LibraryStorage
	Documents *DocumentStorage
	Search    *SearchStorage
	logger    arbor.ILogger
}

// NewManager opens the database and wires the storage services. embeddingDim
// must match the dimension pinned in the database on first run.
func NewManager(config common.StorageConfig, embeddingDim int, logger arbor.ILogger) (*Manager, error) {
	db, err := NewSQLiteDB(config, embeddingDim, logger)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:        db,
		Libraries: NewLibraryStorage(db, logger),
		Documents: NewDocumentStorage(db, logger),
		Search:    NewSearchStorage(db, logger),
		logger:    logger,
	}, nil
}

// DB exposes the underlying connection for advanced callers and tests
func (m *Manager) DB() *SQLiteDB {
	return m.db
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
