// Command lexicon runs the full-text PDF search service: a server mode
// serving search/page/render endpoints, and an index subcommand that walks
// a directory of PDFs into the store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/abiiranathan/lexicon/internal/cache"
	"github.com/abiiranathan/lexicon/internal/config"
	"github.com/abiiranathan/lexicon/internal/httpapi"
	"github.com/abiiranathan/lexicon/internal/ingest"
	"github.com/abiiranathan/lexicon/internal/llmclient"
	"github.com/abiiranathan/lexicon/internal/metrics"
	"github.com/abiiranathan/lexicon/internal/render"
	"github.com/abiiranathan/lexicon/internal/store"
)

const (
	defaultCacheCapacity = 4096
	defaultWorkers       = 4
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	root := &cobra.Command{
		Use:   "lexicon",
		Short: "Full-text PDF search service",
		RunE:  runServer,
	}

	var pgconn string
	var addr string
	var port int
	root.Flags().StringVarP(&pgconn, "pgconn", "c", "", "PostgreSQL connection string (overrides PGCONN)")
	root.Flags().StringVarP(&addr, "addr", "a", "", "listen address, overrides --port when set")
	root.Flags().IntVarP(&port, "port", "p", 8080, "listen port")

	root.AddCommand(newIndexCommand())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("lexicon exited with error")
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	pgconn, _ := cmd.Flags().GetString("pgconn")
	addr, _ := cmd.Flags().GetString("addr")
	port, _ := cmd.Flags().GetInt("port")

	cfg, err := config.Load(pgconn)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if addr == "" {
		addr = fmt.Sprintf(":%d", port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.PGConn)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	if err := store.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	allocator, err := store.NewAllocator(ctx, cfg.PGConn, defaultWorkers)
	if err != nil {
		return fmt.Errorf("opening worker connections: %w", err)
	}
	defer allocator.CloseAll()

	// The default registerer is the one promhttp.Handler serves at /metrics.
	reg := prometheus.DefaultRegisterer
	m := metrics.New(reg)

	respCache := cache.New(defaultCacheCapacity).WithMetrics(m.CacheHits, m.CacheMisses, m.CacheEvictions)

	workDir, err := os.MkdirTemp("", "lexicon-render-*")
	if err != nil {
		return fmt.Errorf("creating render scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)
	renderer := render.NewPDFRenderer(workDir)

	llm := llmclient.New(cfg.GeminiKey, cfg.GeminiModel, respCache)

	srv := httpapi.NewServer(allocator, respCache, renderer, llm, m, cfg, addr)
	return srv.Start(ctx)
}

func newIndexCommand() *cobra.Command {
	var rootDir string
	var minPages int
	var dryRun bool
	var watch bool
	var pgconn string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Walk a directory of PDFs and ingest their text into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(pgconn)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := store.Open(cfg.PGConn)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer db.Close()

			if err := store.EnsureSchema(ctx, db); err != nil {
				return fmt.Errorf("ensuring schema: %w", err)
			}

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)

			workDir, err := os.MkdirTemp("", "lexicon-ingest-*")
			if err != nil {
				return fmt.Errorf("creating render scratch dir: %w", err)
			}
			defer os.RemoveAll(workDir)
			renderer := render.NewPDFRenderer(workDir)

			p := ingest.New(db, renderer, m, ingest.Options{
				Root:     rootDir,
				MinPages: minPages,
				DryRun:   dryRun,
				Workers:  defaultWorkers,
				ConnStr:  cfg.PGConn,
			})

			if err := p.Run(ctx); err != nil {
				return fmt.Errorf("ingestion run failed: %w", err)
			}
			log.Info().Str("root", rootDir).Msg("ingestion complete")

			if watch && !dryRun {
				return p.Watch(ctx)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&rootDir, "root", "r", "", "root directory to walk for PDFs")
	cmd.Flags().IntVar(&minPages, "min_pages", 4, "minimum page count for a PDF to be ingested")
	cmd.Flags().BoolVar(&dryRun, "dryrun", false, "log what would be ingested without writing to the store")
	cmd.Flags().BoolVar(&watch, "watch", false, "after the initial walk, watch root for new/changed PDFs")
	cmd.Flags().StringVarP(&pgconn, "pgconn", "c", "", "PostgreSQL connection string (overrides PGCONN)")
	cmd.MarkFlagRequired("root")

	return cmd
}
