package answerctx

import (
	"strings"
	"testing"

	"github.com/abiiranathan/lexicon/internal/model"
)

func TestBuild_EmptyResults(t *testing.T) {
	if got := Build(nil); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}

func TestBuild_FormatsExcerpts(t *testing.T) {
	results := []model.SearchResult{
		{FileName: "a.pdf", PageNum: 1, NumPages: 3, ExtendedSnippet: "hello world"},
	}
	got := Build(results)
	if !strings.Contains(got, "EXCERPT 1: [a.pdf, Page 1 of 3]") {
		t.Errorf("missing excerpt header, got %q", got)
	}
	if !strings.Contains(got, "hello world") {
		t.Errorf("missing excerpt body, got %q", got)
	}
}

func TestBuild_StopsAtMaxExcerpts(t *testing.T) {
	results := make([]model.SearchResult, MaxExcerpts+5)
	for i := range results {
		results[i] = model.SearchResult{FileName: "f.pdf", PageNum: i + 1, NumPages: 100, ExtendedSnippet: "x"}
	}
	got := Build(results)
	count := strings.Count(got, "=== EXCERPT")
	if count != MaxExcerpts {
		t.Errorf("expected %d excerpts, got %d", MaxExcerpts, count)
	}
}

func TestBuild_NeverExceedsHardCap(t *testing.T) {
	big := strings.Repeat("x", 10*1024)
	results := make([]model.SearchResult, MaxExcerpts)
	for i := range results {
		results[i] = model.SearchResult{FileName: "f.pdf", PageNum: i + 1, NumPages: 100, ExtendedSnippet: big}
	}
	got := Build(results)
	if len(got) > MaxContextSize {
		t.Errorf("context exceeded cap: %d bytes", len(got))
	}
}
