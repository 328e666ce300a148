// Package store wraps the relational store (PostgreSQL, via pgx) that
// persists files and pages and serves the full-text search index. It owns
// schema creation, the per-worker connection allocator, and the file/page
// write paths used by the ingestion pipeline.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	num_pages INT NOT NULL,
	path TEXT NOT NULL,
	UNIQUE(name, path)
);

CREATE TABLE IF NOT EXISTS pages (
	id BIGSERIAL PRIMARY KEY,
	file_id BIGINT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	page_num INT NOT NULL,
	text TEXT NOT NULL,
	text_vector tsvector GENERATED ALWAYS AS (to_tsvector('english', text)) STORED,
	UNIQUE(file_id, page_num)
);

CREATE INDEX IF NOT EXISTS pages_text_vector_idx ON pages USING GIN (text_vector);
`

// Open opens one *sql.DB against the pgx driver. Each caller that needs
// connection-per-worker affinity should call Open once per worker and
// pin its pool size to 1 (see Allocator).
func Open(conn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", conn)
	if err != nil {
		return nil, fmt.Errorf("opening store connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging store: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the files/pages tables and the full-text index if
// they do not already exist. Startup aborts the process on failure per the
// service's error handling design.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Allocator hands each server worker its own dedicated *sql.DB, pinned to
// a single underlying connection so no two goroutines share a connection
// concurrently. database/sql already pools internally; SetMaxOpenConns(1)
// combined with one *sql.DB per worker reproduces the "one connection per
// worker, no locking on the hot path" model without needing a raw driver
// connection handle.
type Allocator struct {
	conns []*sql.DB
}

// NewAllocator opens n worker connections against conn.
func NewAllocator(ctx context.Context, conn string, n int) (*Allocator, error) {
	if n < 1 {
		n = 1
	}
	a := &Allocator{conns: make([]*sql.DB, n)}
	for i := 0; i < n; i++ {
		db, err := Open(conn)
		if err != nil {
			a.CloseAll()
			return nil, fmt.Errorf("opening worker connection %d: %w", i, err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		a.conns[i] = db
	}
	return a, nil
}

// For returns the connection at workerIndex modulo N. The HTTP server
// chooses the index per request from the clock, not from a per-worker
// context, so one *sql.DB can serve concurrent requests; with
// SetMaxOpenConns(1) their queries run one at a time on its connection.
func (a *Allocator) For(workerIndex int) *sql.DB {
	return a.conns[workerIndex%len(a.conns)]
}

// N returns the number of worker connections.
func (a *Allocator) N() int { return len(a.conns) }

// CloseAll closes every worker connection, logging (not failing) on error
// since this only runs during shutdown.
func (a *Allocator) CloseAll() {
	for i, db := range a.conns {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			log.Error().Err(err).Int("worker", i).Msg("closing worker connection")
		}
	}
}

// UpsertFile inserts or updates a file row and returns its id, per the
// ingestion pipeline's conflict-handling contract: a normal upsert path via
// RETURNING, with a fallback SELECT for drivers/configurations where the
// RETURNING row is not produced on a no-op conflict.
func UpsertFile(ctx context.Context, db *sql.DB, name, path string, numPages int) (int64, error) {
	const upsert = `
		INSERT INTO files (name, path, num_pages)
		VALUES ($1, $2, $3)
		ON CONFLICT (name, path) DO UPDATE SET num_pages = EXCLUDED.num_pages
		RETURNING id`

	var id int64
	err := db.QueryRowContext(ctx, upsert, name, path, numPages).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("upserting file %s: %w", path, err)
	}

	const fallback = `SELECT id FROM files WHERE path = $1`
	if err := db.QueryRowContext(ctx, fallback, path).Scan(&id); err != nil {
		return 0, fmt.Errorf("fallback lookup for file %s: %w", path, err)
	}
	return id, nil
}

// InsertPage inserts one sanitised page of text, no-op on conflict. It
// returns an error only when the statement fails; a page skipped because
// of a conflict is not reported. The ingestion worker uses the error to
// track page-level failures.
func InsertPage(ctx context.Context, tx *sql.Tx, fileID int64, pageNum int, text string) error {
	const insert = `
		INSERT INTO pages (file_id, page_num, text)
		VALUES ($1, $2, $3)
		ON CONFLICT (file_id, page_num) DO NOTHING`

	_, err := tx.ExecContext(ctx, insert, fileID, pageNum, text)
	if err != nil {
		return fmt.Errorf("inserting page %d of file %d: %w", pageNum, fileID, err)
	}
	return nil
}

// GetFile fetches a single file row by id.
func GetFile(ctx context.Context, db *sql.DB, fileID int64) (name, path string, numPages int, err error) {
	const q = `SELECT name, path, num_pages FROM files WHERE id = $1`
	err = db.QueryRowContext(ctx, q, fileID).Scan(&name, &path, &numPages)
	return
}

// GetPageText fetches one page's sanitised text.
func GetPageText(ctx context.Context, db *sql.DB, fileID int64, pageNum int) (string, error) {
	const q = `SELECT text FROM pages WHERE file_id = $1 AND page_num = $2`
	var text string
	err := db.QueryRowContext(ctx, q, fileID, pageNum).Scan(&text)
	if err != nil {
		return "", err
	}
	return text, nil
}

// ListFiles paginates the files table ordered by name, optionally filtered
// by a case-insensitive substring match on name.
func ListFiles(ctx context.Context, db *sql.DB, page, limit int, name string) ([]FileRow, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}
	offset := (page - 1) * limit

	var total int
	var countErr error
	if name != "" {
		countErr = db.QueryRowContext(ctx, `SELECT count(*) FROM files WHERE name ILIKE $1`, "%"+name+"%").Scan(&total)
	} else {
		countErr = db.QueryRowContext(ctx, `SELECT count(*) FROM files`).Scan(&total)
	}
	if countErr != nil {
		return nil, 0, fmt.Errorf("counting files: %w", countErr)
	}

	var rows *sql.Rows
	var err error
	if name != "" {
		rows, err = db.QueryContext(ctx, `
			SELECT id, name, path, num_pages FROM files
			WHERE name ILIKE $1
			ORDER BY name LIMIT $2 OFFSET $3`, "%"+name+"%", limit, offset)
	} else {
		rows, err = db.QueryContext(ctx, `
			SELECT id, name, path, num_pages FROM files
			ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var out []FileRow
	for rows.Next() {
		var f FileRow
		if err := rows.Scan(&f.ID, &f.Name, &f.Path, &f.NumPages); err != nil {
			return nil, 0, fmt.Errorf("scanning file row: %w", err)
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}

// FileRow mirrors model.File to keep this package import-independent of
// the model package's JSON tags.
type FileRow struct {
	ID       int64
	Name     string
	Path     string
	NumPages int
}
