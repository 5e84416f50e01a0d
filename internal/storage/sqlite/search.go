// -----------------------------------------------------------------------
// Hybrid Search - BM25 full-text plus vector KNN fused with RRF
// -----------------------------------------------------------------------

package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doctrina/internal/models"
)

const (
	// rrfConstant dampens the rank contribution in reciprocal rank fusion
	rrfConstant = 60.0

	// candidateFactor widens each retrieval run beyond the requested limit so
	// fusion has material to work with
	candidateFactor = 5
)

// SearchStorage answers hybrid queries over one (library, version) scope
type SearchStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewSearchStorage creates a search storage instance
func NewSearchStorage(db *SQLiteDB, logger arbor.ILogger) *SearchStorage {
	return &SearchStorage{db: db, logger: logger}
}

// ftsHit is one full-text candidate with its 1-based rank
type ftsHit struct {
	docID int64
	rank  int
}

// HybridSearch runs full-text and vector retrieval over the scope and fuses
// them with reciprocal rank fusion. A nil queryVec degrades to full-text
// only. An empty query returns no hits.
func (s *SearchStorage) HybridSearch(ctx context.Context, libraryID, versionID int64, query string, queryVec []float32, limit int) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	candidates := limit * candidateFactor

	ftsHits, err := s.ftsSearch(ctx, libraryID, versionID, query, candidates)
	if err != nil {
		return nil, err
	}

	var vecIDs []int64
	if len(queryVec) > 0 {
		vecIDs, err = s.vectorSearch(ctx, libraryID, versionID, queryVec, candidates)
		if err != nil {
			return nil, err
		}
	}

	fused := fuseRanks(ftsHits, vecIDs)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	if len(fused) == 0 {
		return nil, nil
	}

	return s.loadResults(ctx, fused)
}

// ftsSearch ranks the scope by BM25. Title and content carry most of the
// weight; url and path contribute lightly.
func (s *SearchStorage) ftsSearch(ctx context.Context, libraryID, versionID int64, query string, limit int) ([]ftsHit, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT rowid FROM documents_fts
		WHERE documents_fts MATCH ?
		AND rowid IN (SELECT id FROM documents WHERE library_id = ? AND version_id = ?)
		ORDER BY bm25(documents_fts, 10.0, 1.0, 5.0, 1.0)
		LIMIT ?`, ftsQuery(query), libraryID, versionID, limit)
	if err != nil {
		// FTS rejects some inputs even after quoting; treat as no matches
		s.logger.Debug().Err(err).Str("query", query).Msg("FTS query rejected")
		return nil, nil
	}
	defer rows.Close()

	var hits []ftsHit
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, &models.StoreError{Message: "failed to scan search hit", Cause: err}
		}
		hits = append(hits, ftsHit{docID: id, rank: len(hits) + 1})
	}
	return hits, rows.Err()
}

// ftsQuery quotes each term so user input is matched literally instead of
// being parsed as FTS5 operators
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(term, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

// vectorSearch scans the scoped embeddings and returns the nearest document
// ids by Euclidean distance
func (s *SearchStorage) vectorSearch(ctx context.Context, libraryID, versionID int64, queryVec []float32, limit int) ([]int64, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT doc_id, embedding FROM document_vectors
		WHERE library_id = ? AND version_id = ?`, libraryID, versionID)
	if err != nil {
		return nil, &models.StoreError{Message: "failed to load vectors", Cause: err}
	}
	defer rows.Close()

	type scored struct {
		docID    int64
		distance float64
	}
	var all []scored
	for rows.Next() {
		var docID int64
		var blob []byte
		if err := rows.Scan(&docID, &blob); err != nil {
			return nil, &models.StoreError{Message: "failed to scan vector row", Cause: err}
		}
		embedding, err := deserializeEmbedding(blob)
		if err != nil {
			return nil, &models.StoreError{Message: "corrupt embedding for document", Cause: err}
		}
		if len(embedding) != len(queryVec) {
			continue
		}
		all = append(all, scored{docID: docID, distance: l2Distance(queryVec, embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].distance < all[j].distance })
	if len(all) > limit {
		all = all[:limit]
	}

	ids := make([]int64, len(all))
	for i, h := range all {
		ids[i] = h.docID
	}
	return ids, nil
}

// fusedHit carries the fused score and the tie-break rank
type fusedHit struct {
	docID   int64
	score   float64
	ftsRank int
}

// fuseRanks merges the two ranked lists with reciprocal rank fusion. Score
// ties resolve by full-text rank, with documents absent from the full-text
// run sorting last among equals.
func fuseRanks(ftsHits []ftsHit, vecIDs []int64) []fusedHit {
	byID := make(map[int64]*fusedHit)

	for _, hit := range ftsHits {
		byID[hit.docID] = &fusedHit{
			docID:   hit.docID,
			score:   1.0 / (rrfConstant + float64(hit.rank)),
			ftsRank: hit.rank,
		}
	}
	for i, docID := range vecIDs {
		contribution := 1.0 / (rrfConstant + float64(i+1))
		if existing, ok := byID[docID]; ok {
			existing.score += contribution
		} else {
			byID[docID] = &fusedHit{docID: docID, score: contribution, ftsRank: len(ftsHits) + i + 1}
		}
	}

	fused := make([]fusedHit, 0, len(byID))
	for _, hit := range byID {
		fused = append(fused, *hit)
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].ftsRank < fused[j].ftsRank
	})
	return fused
}

// loadResults resolves fused hits back to document content and metadata,
// preserving fusion order
func (s *SearchStorage) loadResults(ctx context.Context, fused []fusedHit) ([]models.SearchResult, error) {
	results := make([]models.SearchResult, 0, len(fused))
	stmt, err := s.db.db.PrepareContext(ctx,
		"SELECT url, content, COALESCE(metadata, '') FROM documents WHERE id = ?")
	if err != nil {
		return nil, &models.StoreError{Message: "failed to prepare result lookup", Cause: err}
	}
	defer stmt.Close()

	for i, hit := range fused {
		var result models.SearchResult
		var metadataJSON string
		err := stmt.QueryRowContext(ctx, hit.docID).Scan(&result.URL, &result.Content, &metadataJSON)
		if err != nil {
			return nil, &models.StoreError{Message: "failed to load search result", Cause: err}
		}
		result.Metadata, err = models.MetadataFromJSON(metadataJSON)
		if err != nil {
			return nil, &models.StoreError{Message: "failed to parse result metadata", Cause: err}
		}
		result.Score = hit.score
		result.Rank = i + 1
		results = append(results, result)
	}
	return results, nil
}
