package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abiiranathan/lexicon/internal/cache"
)

func TestClient_Answer_CacheMissThenHit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]interface{}{{"text": "<p>the answer</p>"}},
				}},
			},
		})
	}))
	defer server.Close()

	c := New("test-key", "test-model", cache.New(4))
	c.baseURL = server.URL

	answer, cached, err := c.Answer(context.Background(), "what is x", "context here")
	if err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	if cached {
		t.Error("expected first call to be a cache miss")
	}
	if answer != "<p>the answer</p>" {
		t.Errorf("unexpected answer: %q", answer)
	}

	answer2, cached2, err := c.Answer(context.Background(), "what is x", "context here")
	if err != nil {
		t.Fatalf("second answer failed: %v", err)
	}
	if !cached2 {
		t.Error("expected second call to be a cache hit")
	}
	if answer2 != answer {
		t.Errorf("cached answer differs: %q vs %q", answer2, answer)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 upstream call, got %d", calls)
	}
}

func TestClient_Answer_NonOKStatusReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	c := New("test-key", "", cache.New(4))
	c.baseURL = server.URL

	_, _, err := c.Answer(context.Background(), "q", "ctx")
	if err == nil {
		t.Fatal("expected error on non-200 upstream response")
	}
}
