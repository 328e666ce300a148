// Package llmclient calls the external LLM answer service and caches
// responses by query string. Shaped after the teacher's Ollama adapter:
// same baseURL/model/*http.Client struct layout and constructor
// defaulting pattern, pointed at the Gemini REST API instead.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/abiiranathan/lexicon/internal/cache"
)

const requestTimeout = 20 * time.Second
const maxErrorBodyBytes = 500

const promptTemplate = `You are a helpful research assistant. Using ONLY the
excerpts below, answer the question as HTML (no markdown). If the answer
is not contained in the excerpts, say so plainly.

Excerpts:
%s

Question: %s

Answer (HTML only):`

// Client calls the Gemini generateContent endpoint, caching responses by
// the exact query string.
type Client struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
	cache   *cache.Cache
}

// New creates a Gemini-backed LLM client. model defaults to
// "gemini-2.0-flash" when empty, matching the service's documented
// default for GEMINI_MODEL.
func New(apiKey, model string, respCache *cache.Cache) *Client {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Client{
		baseURL: "https://generativelanguage.googleapis.com/v1beta/models",
		model:   model,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
		cache:   respCache,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Answer returns a cached or freshly generated answer for query given
// context. The returned bool reports whether the response came from
// cache; Answer copies a cached value and releases its cache reference
// itself, so callers have nothing to release.
func (c *Client) Answer(ctx context.Context, query, answerContext string) (string, bool, error) {
	if cached, ok := c.cache.Get(query); ok {
		defer cached.Release()
		return string(cached.Bytes()), true, nil
	}

	prompt := fmt.Sprintf(promptTemplate, answerContext, query)
	text, err := c.generate(ctx, prompt)
	if err != nil {
		return "", false, err
	}

	c.cache.Set(query, []byte(text), 0)
	return text, false, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling LLM endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		log.Error().Int("status", resp.StatusCode).Bytes("body", body).Msg("LLM endpoint returned non-200")
		return "", fmt.Errorf("LLM endpoint returned status %d", resp.StatusCode)
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("LLM response had no candidates")
	}

	return gr.Candidates[0].Content.Parts[0].Text, nil
}
