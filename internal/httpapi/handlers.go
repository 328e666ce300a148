package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/abiiranathan/lexicon/internal/answerctx"
	"github.com/abiiranathan/lexicon/internal/cache"
	"github.com/abiiranathan/lexicon/internal/model"
	"github.com/abiiranathan/lexicon/internal/render"
	"github.com/abiiranathan/lexicon/internal/search"
	"github.com/abiiranathan/lexicon/internal/store"
)

func encodeJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// handleSearch serves GET /api/search?q=...&file_id=...&ai_enabled=true|false.
// It checks the response cache first, executes the ranked query on a miss,
// optionally summarises via the LLM client, and caches the serialised
// response under the query/file_id key.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.SearchRequests.Inc()
		start := time.Now()
		defer func() { s.metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing required query parameter: q")
		return
	}

	var fileID *int64
	if raw := r.URL.Query().Get("file_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid file_id")
			return
		}
		fileID = &id
	}

	aiRequested := fileID == nil && s.cfg.AIEnabled()
	if raw := r.URL.Query().Get("ai_enabled"); raw != "" {
		aiRequested = aiRequested && raw == "true"
	}

	cacheKey := search.CacheKey(query, fileID)
	if cached, ok := s.cache.Get(cacheKey); ok {
		defer cached.Release()
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached.Bytes())
		return
	}

	db := s.workerConn(r)
	results, err := search.Search(r.Context(), db, query, fileID)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("search query failed")
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resp := model.SearchResponse{
		Results: results,
		Count:   len(results),
		Query:   query,
	}

	if aiRequested && len(results) > 0 {
		ctxBlob := answerctx.Build(results)
		answer, _, err := s.llm.Answer(r.Context(), query, ctxBlob)
		if err != nil {
			log.Error().Err(err).Msg("LLM summarisation failed")
		} else {
			resp.AISummary = &answer
		}
	}

	body, err := encodeJSON(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding response")
		return
	}

	s.cache.Set(cacheKey, body, 0)

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// handleListFiles serves GET /api/list-files?page=&limit=&name=. It checks
// the response cache under a composite page/limit/name key before falling
// back to the store.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	name := q.Get("name")
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}

	listKey := "list-files:" + strconv.Itoa(page) + ":" + strconv.Itoa(limit) + ":" + name
	if cached, ok := s.cache.Get(listKey); ok {
		defer cached.Release()
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached.Bytes())
		return
	}

	db := s.workerConn(r)
	rows, total, err := store.ListFiles(r.Context(), db, page, limit, name)
	if err != nil {
		log.Error().Err(err).Msg("listing files")
		writeError(w, http.StatusInternalServerError, "listing files failed")
		return
	}

	files := make([]model.File, len(rows))
	for i, row := range rows {
		files[i] = model.File{ID: row.ID, Name: row.Name, Path: row.Path, NumPages: row.NumPages}
	}

	body, err := encodeJSON(model.FileListResponse{Files: files, Total: total, Page: page, Limit: limit})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding response")
		return
	}

	s.cache.Set(listKey, body, 0)

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// handleGetFile serves GET /api/list-files/{file_id}, checking the cache
// under the file:<id> key before falling back to the store.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := pathInt64(r, "file_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file_id")
		return
	}

	fileKey := cache.MakeKey(fileID, -1)
	if cached, ok := s.cache.Get(fileKey); ok {
		defer cached.Release()
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached.Bytes())
		return
	}

	db := s.workerConn(r)
	name, path, numPages, err := store.GetFile(r.Context(), db, fileID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("file_id", fileID).Msg("fetching file")
		writeError(w, http.StatusInternalServerError, "fetching file failed")
		return
	}

	body, err := encodeJSON(model.File{ID: fileID, Name: name, Path: path, NumPages: numPages})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding response")
		return
	}

	s.cache.Set(fileKey, body, 0)

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// handlePageText serves GET /api/file/{file_id}/page/{page_num}, checking
// the cache under the file/page key before falling back to the store.
func (s *Server) handlePageText(w http.ResponseWriter, r *http.Request) {
	fileID, err := pathInt64(r, "file_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file_id")
		return
	}
	pageNum, err := pathInt(r, "page_num")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page_num")
		return
	}

	key := cache.MakeKey(fileID, pageNum)
	if cached, ok := s.cache.Get(key); ok {
		defer cached.Release()
		w.Header().Set("Content-Type", "application/json")
		w.Write(cached.Bytes())
		return
	}

	db := s.workerConn(r)
	text, err := store.GetPageText(r.Context(), db, fileID, pageNum)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("file_id", fileID).Int("page_num", pageNum).Msg("fetching page text")
		writeError(w, http.StatusInternalServerError, "fetching page failed")
		return
	}

	resp := model.PageTextResponse{FileID: fileID, PageNum: pageNum, Text: text}
	body, err := encodeJSON(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding response")
		return
	}
	s.cache.Set(key, body, 0)

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// handleRenderPage serves GET /api/file/{file_id}/render-page/{page_num}?type=png|pdf.
func (s *Server) handleRenderPage(w http.ResponseWriter, r *http.Request) {
	fileID, err := pathInt64(r, "file_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file_id")
		return
	}
	pageNum, err := pathInt(r, "page_num")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page_num")
		return
	}

	typ := render.PNG
	contentType := "image/png"
	kind := "png"
	if r.URL.Query().Get("type") == "pdf" {
		typ = render.PDF
		contentType = "application/pdf"
		kind = "pdf"
	}

	renderKey := "render:" + strconv.FormatInt(fileID, 10) + ":" + strconv.Itoa(pageNum) + ":" + kind
	if cached, ok := s.cache.Get(renderKey); ok {
		defer cached.Release()
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(cached.Bytes())
		return
	}

	db := s.workerConn(r)
	_, path, numPages, err := store.GetFile(r.Context(), db, fileID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("file_id", fileID).Msg("fetching file for render")
		writeError(w, http.StatusInternalServerError, "fetching file failed")
		return
	}
	if pageNum < 1 || pageNum > numPages {
		writeError(w, http.StatusBadRequest, "page_num out of range")
		return
	}

	data, err := s.renderer.RenderPage(r.Context(), path, pageNum-1, typ)
	if err != nil {
		log.Error().Err(err).Str("path", path).Int("page_num", pageNum).Msg("rendering page")
		writeError(w, http.StatusInternalServerError, "rendering page failed")
		return
	}

	s.cache.Set(renderKey, data, 60*time.Second)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// handleHealth serves GET /api/health, reporting store reachability rather
// than a static OK so an unhealthy store connection is visible.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	db := s.workerConn(r)
	if err := db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

func pathInt(r *http.Request, name string) (int, error) {
	return strconv.Atoi(mux.Vars(r)[name])
}
