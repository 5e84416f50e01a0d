package models

import (
	"encoding/json"
	"time"
)

// DocumentMetadata carries the indexed metadata fields for a document chunk.
// Title, URL and Path are mirrored into the FTS index.
type DocumentMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path,omitempty"`
	Library     string `json:"library,omitempty"`
	Version     string `json:"version,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// ToJSON serializes the metadata for the documents.metadata column
func (m DocumentMetadata) ToJSON() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MetadataFromJSON parses a documents.metadata column value
func MetadataFromJSON(data string) (DocumentMetadata, error) {
	var m DocumentMetadata
	if data == "" {
		return m, nil
	}
	err := json.Unmarshal([]byte(data), &m)
	return m, err
}

// Document is one chunk of extracted text addressable by
// (library, version, url, sort_order).
type Document struct {
	ID        int64            `json:"id"`
	LibraryID int64            `json:"library_id"`
	VersionID int64            `json:"version_id"`
	URL       string           `json:"url"`
	Content   string           `json:"content"`
	Metadata  DocumentMetadata `json:"metadata"`
	SortOrder int              `json:"sort_order"`

	// Embedding is populated before insert and never serialized to clients
	Embedding []float32 `json:"-"`
}

// Library is the top-level namespace under which versions are indexed
type Library struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// VersionStatus is the lifecycle state of an indexed version
type VersionStatus string

const (
	VersionStatusNotIndexed VersionStatus = "not_indexed"
	VersionStatusQueued     VersionStatus = "queued"
	VersionStatusRunning    VersionStatus = "running"
	VersionStatusUpdating   VersionStatus = "updating"
	VersionStatusCompleted  VersionStatus = "completed"
	VersionStatusFailed     VersionStatus = "failed"
	VersionStatusCancelled  VersionStatus = "cancelled"
)

// IsTerminal reports whether the status is a terminal state
func (s VersionStatus) IsTerminal() bool {
	switch s {
	case VersionStatusCompleted, VersionStatusFailed, VersionStatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether a job currently owns this version
func (s VersionStatus) IsActive() bool {
	switch s {
	case VersionStatusQueued, VersionStatusRunning, VersionStatusUpdating:
		return true
	}
	return false
}

// Version is one indexed version of a library. Name is a normalized semver
// string, a partial semver, or "" for unversioned documentation.
type Version struct {
	ID               int64         `json:"id"`
	LibraryID        int64         `json:"library_id"`
	Name             string        `json:"name"`
	Status           VersionStatus `json:"status"`
	SourceURL        string        `json:"source_url,omitempty"`
	ProgressPages    int           `json:"progress_pages"`
	ProgressMaxPages int           `json:"progress_max_pages"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	UpdatedAt        *time.Time    `json:"updated_at,omitempty"`
}

// VersionSummary is the listing projection of a version
type VersionSummary struct {
	Ref              string        `json:"ref"` // version name, "" shown as unversioned
	Status           VersionStatus `json:"status"`
	ProgressPages    int           `json:"progress_pages,omitempty"`
	ProgressMaxPages int           `json:"progress_max_pages,omitempty"`
	DocumentCount    int           `json:"document_count"`
	IndexedAt        *time.Time    `json:"indexed_at,omitempty"`
	SourceURL        string        `json:"source_url,omitempty"`
}

// LibrarySummary groups version summaries under one library name
type LibrarySummary struct {
	Library  string           `json:"library"`
	Versions []VersionSummary `json:"versions"`
}

// VersionMatch is the result of best-version resolution
type VersionMatch struct {
	BestMatch      string `json:"best_match,omitempty"`
	HasUnversioned bool   `json:"has_unversioned"`
}

// SearchResult is one hybrid search hit
type SearchResult struct {
	Content  string           `json:"content"`
	Metadata DocumentMetadata `json:"metadata"`
	URL      string           `json:"url"`
	Score    float64          `json:"score"`
	Rank     int              `json:"rank"`
}
