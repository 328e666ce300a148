package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestText_DropsControlCharsAndArtifacts(t *testing.T) {
	// Matches spec.md's worked end-to-end example exactly: a stray page
	// number, a zero-width-space artifact, and two NUL bytes sitting
	// between "hello" and "world" (both render invisibly above, not as
	// spaces), plus a URL to elide.
	in := "3 ​ hello  world http://x/y stop"
	got := Text([]byte(in), RemoveURLs)
	want := "hello world stop"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestText_KeepsURLsWhenDisabled(t *testing.T) {
	in := "see http://example.com/a for details"
	got := Text([]byte(in), KeepURLs)
	if !strings.Contains(got, "http://example.com/a") {
		t.Errorf("expected URL preserved, got %q", got)
	}
}

func TestText_LeadingPageNumberStripped(t *testing.T) {
	in := "42 \n\n Chapter One begins here"
	got := Text([]byte(in), KeepURLs)
	if strings.HasPrefix(got, "42") {
		t.Errorf("expected leading page number stripped, got %q", got)
	}
}

func TestText_MinimumLengthGuard(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3} {
		in := strings.Repeat("a", n)
		got := Text([]byte(in), KeepURLs)
		if n < 3 && got != "" {
			t.Errorf("length %d: expected empty, got %q", n, got)
		}
	}
}

func TestText_DashRunCollapses(t *testing.T) {
	in := "before ---------- after"
	got := Text([]byte(in), KeepURLs)
	if strings.Contains(got, "----------") {
		t.Errorf("expected dash run collapsed, got %q", got)
	}
}

func TestText_ParagraphBreakPreserved(t *testing.T) {
	in := "first paragraph\n\nsecond paragraph"
	got := Text([]byte(in), KeepURLs)
	if !strings.Contains(got, "\n\n") {
		t.Errorf("expected paragraph break preserved, got %q", got)
	}
}

func TestText_StraySinglePunctuationDropped(t *testing.T) {
	in := "value | next"
	got := Text([]byte(in), KeepURLs)
	if strings.Contains(got, "|") {
		t.Errorf("expected stray pipe dropped, got %q", got)
	}
}

func TestText_TailStripped(t *testing.T) {
	in := "some sentence---   "
	got := Text([]byte(in), KeepURLs)
	if strings.HasSuffix(got, "-") || strings.HasSuffix(got, " ") {
		t.Errorf("expected trailing dashes/space stripped, got %q", got)
	}
}

func TestText_AlwaysValidUTF8(t *testing.T) {
	inputs := [][]byte{
		{0xFF, 0xFE, 'h', 'i'},
		{0xC2},
		{0xE0, 0x80, 0x80, 'x', 'y', 'z'},
		{0xED, 0xA0, 0x80, 'o', 'k', 'a', 'y'},
		[]byte("plain ascii text here"),
		[]byte("emoji test 😀 text"),
	}
	for _, in := range inputs {
		got := Text(in, KeepURLs)
		if !utf8.ValidString(got) {
			t.Errorf("output not valid UTF-8 for input %v: %q", in, got)
		}
	}
}

func TestText_Idempotent(t *testing.T) {
	inputs := []string{
		"3 ​ hello  world http://x/y stop",
		"some sentence---   ",
		"value | next thing here",
		"first paragraph\n\nsecond paragraph of real length",
	}
	for _, in := range inputs {
		once := Text([]byte(in), RemoveURLs)
		twice := Text([]byte(once), RemoveURLs)
		if once != twice {
			t.Errorf("not idempotent: sanitize(%q) = %q, sanitize(that) = %q", in, once, twice)
		}
	}
}

func TestText_BoundaryLengths(t *testing.T) {
	limitInput := strings.Repeat("x", MaxInputBytes+1)
	truncated := limitInput[:MaxInputBytes-1]
	got := Text([]byte(truncated), KeepURLs)
	if len(got) > MaxInputBytes {
		t.Errorf("sanitised output longer than input cap: %d bytes", len(got))
	}
}
