// Package answerctx packs ranked search results into a single bounded text
// blob suitable as LLM context.
package answerctx

import (
	"bytes"
	"fmt"

	"github.com/abiiranathan/lexicon/internal/model"
)

// MaxContextSize is the hard cap on the built context, in bytes.
const MaxContextSize = 30 * 1024

// InitialBufferSize is the capacity reserved up front. It is larger than
// MaxContextSize, so Build never has to grow the buffer.
const InitialBufferSize = 32 * 1024

// MaxExcerpts bounds how many of the top-ranked rows are considered.
const MaxExcerpts = 15

// Build packs the top MaxExcerpts results into a single blob, stopping
// before any excerpt would push the buffer past MaxContextSize. Returns an
// empty string if results is empty.
func Build(results []model.SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var buf bytes.Buffer
	buf.Grow(InitialBufferSize)

	n := len(results)
	if n > MaxExcerpts {
		n = MaxExcerpts
	}

	for i := 0; i < n; i++ {
		r := results[i]
		excerpt := fmt.Sprintf("\n=== EXCERPT %d: [%s, Page %d of %d] ===\n%s\n\n",
			i+1, r.FileName, r.PageNum, r.NumPages, r.ExtendedSnippet)

		if buf.Len()+len(excerpt) > MaxContextSize {
			break
		}
		buf.WriteString(excerpt)
	}

	return buf.String()
}
