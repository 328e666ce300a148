// Package ingest walks a directory tree of PDFs, extracts and sanitises
// per-page text, and commits each file in an isolated transaction so a
// single file's failure never rolls back another file's pages.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/abiiranathan/lexicon/internal/metrics"
	"github.com/abiiranathan/lexicon/internal/render"
	"github.com/abiiranathan/lexicon/internal/sanitize"
	"github.com/abiiranathan/lexicon/internal/store"
)

// skipDirs mirrors the spec's explicit skip list of common build/VCS/cache
// directory names encountered while walking.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".cache":       true,
	"vendor":       true,
	"target":       true,
	"build":        true,
	"dist":         true,
	".venv":        true,
	"__pycache__":  true,
}

// Options configures one ingestion run.
type Options struct {
	Root     string
	MinPages int
	DryRun   bool
	Workers  int
	ConnStr  string
}

// Pipeline owns the main-thread connection, the renderer, and the worker
// pool used to process discovered PDFs.
type Pipeline struct {
	db       *sql.DB
	renderer render.Renderer
	metrics  *metrics.Registry
	opts     Options
}

// New creates a Pipeline. db is the main-thread connection used for the
// directory walk's per-file INSERT/upsert; each worker opens one dedicated
// connection of its own and reuses it for every task it processes.
func New(db *sql.DB, renderer render.Renderer, m *metrics.Registry, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	return &Pipeline{db: db, renderer: renderer, metrics: m, opts: opts}
}

// task is one PDF handed off to a worker, carrying just enough for the
// worker to process every page on its own connection.
type task struct {
	path     string
	name     string
	fileID   int64
	numPages int
}

// Run walks opts.Root, discovers candidate PDFs, upserts their File rows on
// the main connection, and fans page processing out to a worker pool.
func (p *Pipeline) Run(ctx context.Context) error {
	tasks := make(chan task, p.opts.Workers*2)
	var allOK int32 = 1 // shared success flag, 1 == true

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func(workerIdx int) {
			defer wg.Done()
			p.worker(ctx, workerIdx, tasks, &allOK)
		}(i)
	}

	walkErr := p.walk(ctx, tasks)
	close(tasks)
	wg.Wait()

	if walkErr != nil {
		return walkErr
	}
	if atomic.LoadInt32(&allOK) == 0 {
		return fmt.Errorf("one or more files failed to ingest; see logs")
	}
	return nil
}

func (p *Pipeline) walk(ctx context.Context, tasks chan<- task) error {
	return filepath.WalkDir(p.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}

		numPages, err := p.renderer.PageCount(ctx, path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("opening candidate PDF")
			return nil
		}
		if numPages == 0 || numPages < p.opts.MinPages {
			log.Info().Str("path", path).Int("pages", numPages).Msg("skipping PDF below min_pages")
			if p.metrics != nil {
				p.metrics.FilesSkipped.Inc()
			}
			return nil
		}

		name := filepath.Base(path)
		if p.opts.DryRun {
			log.Info().Str("path", path).Int("pages", numPages).Msg("dry-run: would ingest")
			return nil
		}

		fileID, err := store.UpsertFile(ctx, p.db, name, path, numPages)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("upserting file row")
			return nil
		}

		select {
		case tasks <- task{path: path, name: name, fileID: fileID, numPages: numPages}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

func (p *Pipeline) worker(ctx context.Context, workerIdx int, tasks <-chan task, allOK *int32) {
	conn, err := store.Open(p.opts.ConnStr)
	if err != nil {
		log.Error().Err(err).Int("worker", workerIdx).Msg("opening worker connection")
		atomic.StoreInt32(allOK, 0)
		return
	}
	defer conn.Close()

	for t := range tasks {
		if err := p.processFile(ctx, conn, t); err != nil {
			log.Error().Err(err).Str("path", t.path).Msg("ingesting file")
			atomic.StoreInt32(allOK, 0)
			if p.metrics != nil {
				p.metrics.IngestFailures.Inc()
			}
		} else if p.metrics != nil {
			p.metrics.FilesIngested.Inc()
		}
	}
}

// processFile opens its own transaction, inserts every non-empty sanitised
// page in page-number order, and commits only if every page insert
// succeeded; otherwise it rolls back the whole file so pages are never
// left in a partially-persisted state.
func (p *Pipeline) processFile(ctx context.Context, conn *sql.DB, t task) error {
	numPages, err := p.renderer.PageCount(ctx, t.path)
	if err != nil {
		return fmt.Errorf("reopening %s: %w", t.path, err)
	}
	if numPages != t.numPages {
		return fmt.Errorf("page count mismatch for %s: expected %d, got %d", t.path, t.numPages, numPages)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for %s: %w", t.path, err)
	}

	allOK := true
	for pageIndex := 0; pageIndex < t.numPages; pageIndex++ {
		raw, err := p.renderer.PageText(ctx, t.path, pageIndex)
		if err != nil {
			log.Error().Err(err).Str("path", t.path).Int("page", pageIndex).Msg("extracting page text")
			allOK = false
			continue
		}
		if raw == "" {
			continue
		}

		if len(raw) >= sanitize.MaxInputBytes {
			raw = raw[:sanitize.MaxInputBytes-1]
		}

		clean := sanitize.Text([]byte(raw), sanitize.RemoveURLs)
		if clean == "" {
			if p.metrics != nil {
				p.metrics.PagesRejected.Inc()
			}
			continue
		}

		if err := store.InsertPage(ctx, tx, t.fileID, pageIndex+1, clean); err != nil {
			log.Error().Err(err).Str("path", t.path).Int("page", pageIndex+1).Msg("inserting page")
			allOK = false
			continue
		}
		if p.metrics != nil {
			p.metrics.PagesPersisted.Inc()
		}
	}

	if allOK {
		if err := tx.Commit(); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Str("path", t.path).Msg("rollback after failed commit")
			}
			return fmt.Errorf("committing %s: %w", t.path, err)
		}
		return nil
	}

	if err := tx.Rollback(); err != nil {
		log.Error().Err(err).Str("path", t.path).Msg("rolling back failed file")
	}
	return fmt.Errorf("file %s had per-page failures, rolled back", t.path)
}
