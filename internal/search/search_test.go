package search

import "testing"

func TestCacheKey_GlobalVsPerFile(t *testing.T) {
	global := CacheKey("hello", nil)
	if global != "search:hello:all" {
		t.Errorf("got %q", global)
	}

	fileID := int64(7)
	perFile := CacheKey("hello", &fileID)
	if perFile != "search:hello:7" {
		t.Errorf("got %q", perFile)
	}

	if global == perFile {
		t.Error("global and per-file keys must differ")
	}
}

func TestCacheKey_OmitsAIEnabled(t *testing.T) {
	// The cache key intentionally does not encode ai_enabled: an
	// ai_enabled=true response cached under this key is also served to an
	// ai_enabled=false caller for the same query. This test documents that
	// behaviour rather than "fixing" it — see DESIGN.md.
	a := CacheKey("q", nil)
	b := CacheKey("q", nil)
	if a != b {
		t.Fatalf("expected identical keys regardless of ai_enabled, got %q vs %q", a, b)
	}
}
