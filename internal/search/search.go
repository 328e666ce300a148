// Package search builds and executes the ranked full-text search query and
// serialises its rows into the API's result shape.
package search

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/abiiranathan/lexicon/internal/model"
)

// MaxResults bounds the number of rows the query can return.
const MaxResults = 100

const queryGlobal = `
WITH input_queries AS (
    SELECT websearch_to_tsquery('english', $1) AS broad_query,
           phraseto_tsquery('english', $1) AS phrase_query),
     RankedPages AS (
    SELECT p.file_id, p.page_num,
           ts_rank_cd(p.text_vector, inputs.broad_query)
             + CASE WHEN p.text_vector @@ inputs.phrase_query THEN 10.0 ELSE 0.0 END
           AS rank
    FROM pages p CROSS JOIN input_queries inputs
    WHERE p.text_vector @@ inputs.broad_query
    ORDER BY rank DESC LIMIT 100),
     UniquePages AS (
    SELECT DISTINCT ON (file_id, page_num) file_id, page_num, rank
    FROM RankedPages ORDER BY file_id, page_num, rank DESC)
SELECT u.file_id, f.name, f.num_pages, u.page_num,
       ts_headline('english', p.text, inputs.broad_query,
                   'StartSel=<b>, StopSel=</b>, MaxWords=200, MinWords=20') AS snippet,
       LEFT(p.text, 2000) AS extended_snippet,
       u.rank
FROM UniquePages u CROSS JOIN input_queries inputs
JOIN files f ON u.file_id = f.id
JOIN pages p ON u.file_id = p.file_id AND u.page_num = p.page_num
ORDER BY u.rank DESC, f.name, u.page_num LIMIT 100;
`

const queryPerFile = `
WITH input_queries AS (
    SELECT websearch_to_tsquery('english', $1) AS broad_query,
           phraseto_tsquery('english', $1) AS phrase_query),
     RankedPages AS (
    SELECT p.file_id, p.page_num,
           ts_rank_cd(p.text_vector, inputs.broad_query)
             + CASE WHEN p.text_vector @@ inputs.phrase_query THEN 10.0 ELSE 0.0 END
           AS rank
    FROM pages p CROSS JOIN input_queries inputs
    WHERE p.text_vector @@ inputs.broad_query
    AND p.file_id = $2
    ORDER BY rank DESC LIMIT 100),
     UniquePages AS (
    SELECT DISTINCT ON (file_id, page_num) file_id, page_num, rank
    FROM RankedPages ORDER BY file_id, page_num, rank DESC)
SELECT u.file_id, f.name, f.num_pages, u.page_num,
       ts_headline('english', p.text, inputs.broad_query,
                   'StartSel=<b>, StopSel=</b>, MaxWords=200, MinWords=20') AS snippet,
       LEFT(p.text, 2000) AS extended_snippet,
       u.rank
FROM UniquePages u CROSS JOIN input_queries inputs
JOIN files f ON u.file_id = f.id
JOIN pages p ON u.file_id = p.file_id AND u.page_num = p.page_num
ORDER BY u.rank DESC, f.name, u.page_num LIMIT 100;
`

// Search executes the ranked search, global unless fileID is non-nil, and
// streams the rows into model.SearchResult values.
func Search(ctx context.Context, db *sql.DB, query string, fileID *int64) ([]model.SearchResult, error) {
	var rows *sql.Rows
	var err error

	if fileID != nil {
		rows, err = db.QueryContext(ctx, queryPerFile, query, *fileID)
	} else {
		rows, err = db.QueryContext(ctx, queryGlobal, query)
	}
	if err != nil {
		return nil, fmt.Errorf("executing search query: %w", err)
	}
	defer rows.Close()

	results := make([]model.SearchResult, 0, MaxResults)
	for rows.Next() {
		var r model.SearchResult
		if err := rows.Scan(&r.FileID, &r.FileName, &r.NumPages, &r.PageNum, &r.Snippet, &r.ExtendedSnippet, &r.Rank); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}
	return results, nil
}

// CacheKey composes the deterministic cache key for a search request. It
// deliberately mirrors the original design's key shape — omitting
// ai_enabled — so a cached response from an ai_enabled=true request is
// also returned to an ai_enabled=false caller for the same query/file_id.
// See DESIGN.md for why this is kept rather than "fixed".
func CacheKey(query string, fileID *int64) string {
	if fileID == nil {
		return "search:" + query + ":all"
	}
	return fmt.Sprintf("search:%s:%d", query, *fileID)
}
