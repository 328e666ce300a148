package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/abiiranathan/lexicon/internal/render"
)

// fakeRenderer implements render.Renderer without touching a real PDF
// library, so the walker and dry-run path can be exercised without a
// store connection.
type fakeRenderer struct {
	pages map[string]int
	texts map[string][]string
	seen  map[string]bool // paths passed to PageCount, when non-nil
}

func (f *fakeRenderer) PageCount(ctx context.Context, path string) (int, error) {
	if f.seen != nil {
		f.seen[path] = true
	}
	return f.pages[path], nil
}

func (f *fakeRenderer) PageText(ctx context.Context, path string, pageIndex int) (string, error) {
	texts := f.texts[path]
	if pageIndex < 0 || pageIndex >= len(texts) {
		return "", nil
	}
	return texts[pageIndex], nil
}

func (f *fakeRenderer) RenderPage(ctx context.Context, path string, pageIndex int, typ render.ImageType) ([]byte, error) {
	return nil, nil
}

func TestWalk_DryRunEnqueuesNoTasks(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.pdf")
	skip := filepath.Join(dir, "skip.pdf")
	os.WriteFile(keep, []byte("irrelevant"), 0644)
	os.WriteFile(skip, []byte("irrelevant"), 0644)

	r := &fakeRenderer{pages: map[string]int{keep: 5, skip: 1}}

	p := New(nil, r, nil, Options{Root: dir, MinPages: 4, DryRun: true, Workers: 2})

	tasks := make(chan task, 10)
	if err := p.walk(context.Background(), tasks); err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	close(tasks)

	// Dry-run never enqueues tasks, regardless of page count.
	count := 0
	for range tasks {
		count++
	}
	if count != 0 {
		t.Errorf("expected 0 enqueued tasks in dry-run, got %d", count)
	}
}

func TestWalk_SkipsVCSAndBuildDirectories(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".git")
	os.MkdirAll(hidden, 0755)
	os.WriteFile(filepath.Join(hidden, "a.pdf"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "real.pdf"), []byte("x"), 0644)

	seen := map[string]bool{}
	r := &fakeRenderer{pages: map[string]int{
		filepath.Join(dir, "real.pdf"): 1,
	}, seen: seen}
	p := New(nil, r, nil, Options{Root: dir, MinPages: 1, DryRun: true})

	tasks := make(chan task, 10)
	p.walk(context.Background(), tasks)
	close(tasks)
	for range tasks {
	}

	if seen[filepath.Join(hidden, "a.pdf")] {
		t.Error(".git contents should never be visited")
	}
	if !seen[filepath.Join(dir, "real.pdf")] {
		t.Error("real.pdf outside .git should be visited")
	}
}

func TestWalk_IgnoresNonPDFExtensions(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)

	r := &fakeRenderer{pages: map[string]int{}}
	p := New(nil, r, nil, Options{Root: dir, MinPages: 1, DryRun: true})

	tasks := make(chan task, 10)
	if err := p.walk(context.Background(), tasks); err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	close(tasks)
	for range tasks {
		t.Error("non-PDF file should never produce a task")
	}
}
