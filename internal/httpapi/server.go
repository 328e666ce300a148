// Package httpapi provides the HTTP server: five thin request handlers
// over the cache, store, search, answer-context, and LLM components,
// wired through gorilla/mux for path-parameter routing.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/abiiranathan/lexicon/internal/cache"
	"github.com/abiiranathan/lexicon/internal/config"
	"github.com/abiiranathan/lexicon/internal/llmclient"
	"github.com/abiiranathan/lexicon/internal/metrics"
	"github.com/abiiranathan/lexicon/internal/render"
	"github.com/abiiranathan/lexicon/internal/store"
)

// Server is the HTTP server for the search API.
type Server struct {
	allocator *store.Allocator
	cache     *cache.Cache
	renderer  render.Renderer
	llm       *llmclient.Client
	metrics   *metrics.Registry
	cfg       *config.Config
	addr      string
}

// NewServer wires the request handlers over their dependencies.
func NewServer(allocator *store.Allocator, respCache *cache.Cache, renderer render.Renderer, llm *llmclient.Client, m *metrics.Registry, cfg *config.Config, addr string) *Server {
	return &Server{
		allocator: allocator,
		cache:     respCache,
		renderer:  renderer,
		llm:       llm,
		metrics:   m,
		cfg:       cfg,
		addr:      addr,
	}
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	r := mux.NewRouter()

	r.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/api/list-files", s.handleListFiles).Methods(http.MethodGet)
	r.HandleFunc("/api/list-files/{file_id}", s.handleGetFile).Methods(http.MethodGet)
	r.HandleFunc("/api/file/{file_id}/page/{page_num}", s.handlePageText).Methods(http.MethodGet)
	r.HandleFunc("/api/file/{file_id}/render-page/{page_num}", s.handleRenderPage).Methods(http.MethodGet)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())

	handler := corsMiddleware(loggingMiddleware(r))

	httpServer := &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", s.addr).Msg("lexicon server starting")
	return httpServer.ListenAndServe()
}

// workerConn picks a worker connection by taking the current time in
// nanoseconds modulo the allocator's size, spreading requests across its
// connections. Concurrent requests can receive the same connection; its
// single-connection pool then runs their queries one at a time.
func (s *Server) workerConn(r *http.Request) *sql.DB {
	n := s.allocator.N()
	idx := int(time.Now().UnixNano()) % n
	if idx < 0 {
		idx += n
	}
	return s.allocator.For(idx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().Str("method", r.Method).Str("path", r.URL.Path).Dur("latency", time.Since(start)).Msg("request")
	})
}
