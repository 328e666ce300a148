package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

func TestPathInt64_ParsesVar(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r = mux.SetURLVars(r, map[string]string{"file_id": "42"})

	got, err := pathInt64(r, "file_id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestPathInt64_RejectsNonNumeric(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r = mux.SetURLVars(r, map[string]string{"file_id": "not-a-number"})

	if _, err := pathInt64(r, "file_id"); err == nil {
		t.Error("expected error for non-numeric file_id")
	}
}

func TestPathInt_ParsesVar(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r = mux.SetURLVars(r, map[string]string{"page_num": "7"})

	got, err := pathInt(r, "page_num")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
}

func TestWriteError_EncodesErrorField(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "bad request")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["error"] != "bad request" {
		t.Errorf("expected error message, got %q", body["error"])
	}
}

func TestCORSMiddleware_SetsHeadersAndShortCircuitsOptions(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	h := corsMiddleware(next)
	r := httptest.NewRequest(http.MethodOptions, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if called {
		t.Error("OPTIONS request should not reach the next handler")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS origin header to be set")
	}
}

func TestCORSMiddleware_PassesThroughGET(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	h := corsMiddleware(next)
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if !called {
		t.Error("GET request should reach the next handler")
	}
}
