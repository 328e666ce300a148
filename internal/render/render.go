// Package render defines the PDF rendering boundary the serving and
// ingestion paths consume, and provides a concrete adapter over it. Per
// the service's scope, full PDF parsing is out of bounds for the core: the
// core only ever calls Renderer, never a PDF library directly.
package render

import "context"

// ImageType selects the output format for RenderPage.
type ImageType string

const (
	PNG ImageType = "png"
	PDF ImageType = "pdf"
)

// Renderer is the external collaborator the ingestion and serving paths
// depend on: open a PDF, report its page count, extract one page's text,
// or render one page as an image/vector byte buffer.
type Renderer interface {
	// PageCount opens path and returns its page count.
	PageCount(ctx context.Context, path string) (int, error)

	// PageText extracts raw (not yet sanitised) text for the zero-based
	// page index.
	PageText(ctx context.Context, path string, pageIndex int) (string, error)

	// RenderPage renders the zero-based page index as the requested image
	// type and returns the raw byte buffer.
	RenderPage(ctx context.Context, path string, pageIndex int, typ ImageType) ([]byte, error)
}
