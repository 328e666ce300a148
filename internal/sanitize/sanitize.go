// Package sanitize cleans raw page text extracted from a PDF renderer into
// UTF-8-safe, whitespace-normalised text suitable for a tokeniser and a
// full-text index.
package sanitize

import "unicode/utf8"

// MaxInputBytes is the tokeniser truncation limit. Callers must cut raw
// extracted text of MaxInputBytes or more down to MaxInputBytes-1 bytes
// before calling Text; Text itself does not truncate.
const MaxInputBytes = 2047

// MinOutputBytes is the minimum length a sanitised page must have to be
// kept; shorter results are rejected (returned as an empty string).
const MinOutputBytes = 3

// RemoveURLs, when passed to Text, elides http(s) URLs found in running
// text, replacing each with a single space.
const (
	KeepURLs   = false
	RemoveURLs = true
)

// Text applies the spec's single-pass cleaning algorithm to one page of raw
// extracted text and returns a possibly-shorter, valid-UTF-8 buffer. An
// empty return value means "reject this page entirely" (too short after
// cleaning).
func Text(raw []byte, removeURLs bool) string {
	if len(raw) == 0 {
		return ""
	}

	raw = stripLeadingPageNumber(raw)

	out := make([]byte, 0, len(raw))
	i := 0
	// dropped tracks whether the immediately preceding byte(s) were
	// discarded (invalid sequence, control character, or artifact
	// codepoint) without emitting anything. When the next kept byte
	// resumes right after such a run, and both sides of the gap are
	// non-whitespace, a run like "hello\x00\x00world" would otherwise
	// glue into "helloworld"; a single space is emitted to preserve the
	// word boundary the dropped bytes used to occupy.
	dropped := false
	for i < len(raw) {
		// URL elision: check before codepoint validation since URLs are
		// ASCII runs anyway.
		if removeURLs && isURLStart(raw, i) {
			j := skipURL(raw, i)
			if len(out) > 0 {
				out = append(out, ' ')
			}
			i = j
			dropped = false
			continue
		}

		size, ok := validRune(raw, i)
		if !ok {
			i++
			dropped = true
			continue
		}

		if isArtifact(raw[i : i+size]) {
			i += size
			dropped = true
			continue
		}

		if size == 1 {
			b := raw[i]
			if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
				i++
				dropped = true
				continue
			}
		}

		// A run of leading whitespace has no preceding word to separate
		// from; drop it silently instead of emitting a stray leading
		// space (this is also how a leading artifact/control run, once
		// dropped above, never surfaces the whitespace that followed it
		// as an orphaned leading space).
		if len(out) == 0 && size == 1 && isSpace(raw[i]) {
			i++
			continue
		}

		if dropped && len(out) > 0 {
			last := out[len(out)-1]
			cur := raw[i]
			if !isSpace(last) && !isSpace(cur) {
				out = append(out, ' ')
			}
		}
		dropped = false

		out = append(out, raw[i:i+size]...)
		i += size
	}

	out = collapseDashRuns(out)
	out = normalizeWhitespace(out)
	out = dropStrayPunctuation(out)
	// Dropping a stray mark leaves its two bordering spaces side by side;
	// normalise again so the output is stable under a second pass.
	out = normalizeWhitespace(out)
	out = stripTail(out)

	if len(out) < MinOutputBytes {
		return ""
	}
	return string(out)
}

// stripLeadingPageNumber skips a stray leading page number: digits and
// whitespace, up to 9 bytes, when the buffer starts with an ASCII digit.
func stripLeadingPageNumber(raw []byte) []byte {
	if len(raw) == 0 || raw[0] < '0' || raw[0] > '9' {
		return raw
	}
	n := 0
	for n < len(raw) && n < 9 {
		c := raw[n]
		if (c >= '0' && c <= '9') || c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			n++
			continue
		}
		break
	}
	return raw[n:]
}

func isURLStart(b []byte, i int) bool {
	rest := b[i:]
	return hasPrefix(rest, "http://") || hasPrefix(rest, "https://")
}

func hasPrefix(b []byte, s string) bool {
	if len(b) < len(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if b[i] != s[i] {
			return false
		}
	}
	return true
}

// skipURL advances past a URL run until whitespace or a closing delimiter.
func skipURL(b []byte, i int) int {
	for i < len(b) {
		c := b[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ')' || c == ']' || c == '>' {
			break
		}
		i++
	}
	return i
}

// validRune validates a UTF-8 sequence starting at i per the spec's
// per-codepoint rules (overlong/surrogate exclusions included). It returns
// the sequence length and whether it is valid; an invalid byte is reported
// with ok=false so the caller advances by exactly one byte.
func validRune(b []byte, i int) (size int, ok bool) {
	c := b[i]
	switch {
	case c <= 0x7F:
		return 1, true
	case c >= 0xC2 && c <= 0xDF:
		if i+1 < len(b) && isTrail(b[i+1]) {
			return 2, true
		}
		return 1, false
	case c >= 0xE0 && c <= 0xEF:
		if i+2 >= len(b) {
			return 1, false
		}
		t1, t2 := b[i+1], b[i+2]
		switch c {
		case 0xE0:
			if t1 < 0xA0 || t1 > 0xBF {
				return 1, false
			}
		case 0xED:
			if t1 < 0x80 || t1 > 0x9F {
				return 1, false
			}
		default:
			if !isTrail(t1) {
				return 1, false
			}
		}
		if !isTrail(t2) {
			return 1, false
		}
		return 3, true
	case c >= 0xF0 && c <= 0xF4:
		if i+3 >= len(b) {
			return 1, false
		}
		t1, t2, t3 := b[i+1], b[i+2], b[i+3]
		switch c {
		case 0xF0:
			if t1 < 0x90 || t1 > 0xBF {
				return 1, false
			}
		case 0xF4:
			if t1 < 0x80 || t1 > 0x8F {
				return 1, false
			}
		default:
			if !isTrail(t1) {
				return 1, false
			}
		}
		if !isTrail(t2) || !isTrail(t3) {
			return 1, false
		}
		return 4, true
	default:
		return 1, false
	}
}

func isTrail(b byte) bool { return b >= 0x80 && b <= 0xBF }

// isArtifact reports whether seq is one of the dropped artifact codepoints:
// U+FFFD, U+200B, U+200C, U+200D, U+2060.
func isArtifact(seq []byte) bool {
	switch string(seq) {
	case "�", "​", "‌", "‍", "⁠":
		return true
	default:
		return false
	}
}

// collapseDashRuns collapses runs of >=10 dash/dot characters (possibly
// interleaved with whitespace, up to 100 bytes of lookahead) into a single
// space. Per the spec's preserved open question, the run-length count only
// examines the current byte c and not the looked-ahead byte, so interleaved
// whitespace is counted toward the run length too.
func collapseDashRuns(in []byte) []byte {
	out := make([]byte, 0, len(in))
	i := 0
	for i < len(in) {
		c := in[i]
		if c == '-' || c == '.' {
			j := i
			count := 0
			for j < len(in) && j < i+100 {
				c2 := in[j]
				if c2 == '-' || c2 == '.' || c2 == ' ' || c2 == '\t' || c2 == '\n' || c2 == '\r' {
					count++
					j++
					continue
				}
				break
			}
			if count >= 10 {
				out = append(out, ' ')
				i = j
				continue
			}
		}
		out = append(out, c)
		i++
	}
	return out
}

// normalizeWhitespace collapses any run of whitespace to a single space,
// except a run of exactly two consecutive newlines, which is preserved
// verbatim as a paragraph break.
func normalizeWhitespace(in []byte) []byte {
	out := make([]byte, 0, len(in))
	i := 0
	for i < len(in) {
		c := in[i]
		if !isSpace(c) {
			out = append(out, c)
			i++
			continue
		}
		j := i
		for j < len(in) && isSpace(in[j]) {
			j++
		}
		run := in[i:j]
		if isExactlyTwoNewlines(run) {
			out = append(out, '\n', '\n')
		} else {
			out = append(out, ' ')
		}
		i = j
	}
	return out
}

func isExactlyTwoNewlines(run []byte) bool {
	if len(run) != 2 {
		return false
	}
	return run[0] == '\n' && run[1] == '\n'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// dropStrayPunctuation drops standalone |, ~, ^, ` when bordered by
// whitespace (or buffer edges, treated as whitespace) on both sides.
func dropStrayPunctuation(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		c := in[i]
		if c == '|' || c == '~' || c == '^' || c == '`' {
			before := i == 0 || isSpace(in[i-1])
			after := i == len(in)-1 || isSpace(in[i+1])
			if before && after {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// stripTail removes trailing whitespace, then trailing '-'/'.' characters.
func stripTail(in []byte) []byte {
	end := len(in)
	for end > 0 && isSpace(in[end-1]) {
		end--
	}
	for end > 0 && (in[end-1] == '-' || in[end-1] == '.') {
		end--
	}
	for end > 0 && isSpace(in[end-1]) {
		end--
	}
	return in[:end]
}

// Valid reports whether s is valid UTF-8, a property every string returned
// by Text has.
func Valid(s string) bool {
	return utf8.ValidString(s)
}
