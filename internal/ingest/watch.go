package ingest

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/abiiranathan/lexicon/internal/store"
)

// Watch follows up a completed Run with a live fsnotify watch on opts.Root:
// newly created or rewritten PDFs are re-ingested individually as they
// appear. This is a batch-ingestion convenience (see SPEC_FULL.md §12),
// distinct from the serving path's online re-indexing non-goal.
func (p *Pipeline) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(p.opts.Root); err != nil {
		return err
	}

	log.Info().Str("root", p.opts.Root).Msg("watching for new PDFs")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".pdf") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			p.reingestOne(ctx, ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}

func (p *Pipeline) reingestOne(ctx context.Context, path string) {
	numPages, err := p.renderer.PageCount(ctx, path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("watch: opening changed PDF")
		return
	}
	if numPages == 0 || numPages < p.opts.MinPages {
		return
	}

	name := filepath.Base(path)
	fileID, err := store.UpsertFile(ctx, p.db, name, path, numPages)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("watch: upserting file row")
		return
	}

	conn, err := store.Open(p.opts.ConnStr)
	if err != nil {
		log.Error().Err(err).Msg("watch: opening worker connection")
		return
	}
	defer conn.Close()

	t := task{path: path, name: name, fileID: fileID, numPages: numPages}
	if err := p.processFile(ctx, conn, t); err != nil {
		log.Error().Err(err).Str("path", path).Msg("watch: re-ingesting file")
	}
}
