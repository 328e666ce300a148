package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFRenderer implements Renderer over two pure-Go PDF libraries:
// ledongthuc/pdf for page counting and text extraction, and pdfcpu for the
// render-to-image / single-page-extraction path used by the render-page
// endpoint.
//
// The design notes treat the renderer as not fully thread-safe; both
// libraries operate on os.File handles and internal caches that were never
// designed for concurrent use from multiple goroutines against the same
// process, so every call is serialised behind one mutex. This trades
// render throughput for correctness, matching the spec's explicit design
// choice for this component.
type PDFRenderer struct {
	mu      sync.Mutex
	workDir string
}

// NewPDFRenderer creates a renderer that uses workDir as scratch space for
// pdfcpu's file-based extraction API. If workDir is empty, os.TempDir() is
// used.
func NewPDFRenderer(workDir string) *PDFRenderer {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &PDFRenderer{workDir: workDir}
}

func (r *PDFRenderer) PageCount(ctx context.Context, path string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, doc, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return doc.NumPage(), nil
}

func (r *PDFRenderer) PageText(ctx context.Context, path string, pageIndex int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, doc, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	// ledongthuc/pdf pages are 1-indexed; the core speaks zero-based
	// indices throughout.
	page := doc.Page(pageIndex + 1)
	if page.V.IsNull() {
		return "", nil
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extracting text from %s page %d: %w", path, pageIndex, err)
	}
	return text, nil
}

func (r *PDFRenderer) RenderPage(ctx context.Context, path string, pageIndex int, typ ImageType) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pageSelection := []string{strconv.Itoa(pageIndex + 1)}

	outDir, err := os.MkdirTemp(r.workDir, "lexicon-render-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	switch typ {
	case PDF:
		if err := api.ExtractPagesFile(path, outDir, pageSelection, nil); err != nil {
			return nil, fmt.Errorf("extracting page %d from %s: %w", pageIndex, path, err)
		}
		return readSingleOutput(outDir)
	case PNG:
		if err := api.RenderImagesFile(path, outDir, pageSelection, nil, nil); err != nil {
			return nil, fmt.Errorf("rendering page %d from %s: %w", pageIndex, path, err)
		}
		return readSingleOutput(outDir)
	default:
		return nil, fmt.Errorf("unsupported render type %q", typ)
	}
}

// readSingleOutput reads the one file pdfcpu wrote into a scratch
// directory created just for this call.
func readSingleOutput(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scratch dir: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("renderer produced no output")
	}

	var buf bytes.Buffer
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		return nil, fmt.Errorf("reading rendered output: %w", err)
	}
	buf.Write(data)
	return buf.Bytes(), nil
}
