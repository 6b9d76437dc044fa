package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteCreatesParentsAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Base: dir}

	got, err := w.Write("verification/unlocked_view.png", []byte("first"))
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "verification", "unlocked_view.png")
	if got != want {
		t.Errorf("path: got %s, want %s", got, want)
	}

	if _, err := w.Write("verification/unlocked_view.png", []byte("second")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content: got %q, want overwrite", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(want))
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %d entries", len(entries))
	}
}

func TestWriteAbsolutePathIgnoresBase(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Base: "/nonexistent-base"}
	dst := filepath.Join(dir, "shot.png")
	got, err := w.Write(dst, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if got != dst {
		t.Errorf("got %s, want %s", got, dst)
	}
}

func TestWriteEmptyPath(t *testing.T) {
	w := &Writer{}
	if _, err := w.Write("", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestNewExcerptSanitizes(t *testing.T) {
	raw := `<div class="entry" onclick="steal()"><h3>A Test Dream</h3><script>alert(1)</script><p>body <b>text</b></p></div>`
	ex := NewExcerpt(raw, 0)

	if strings.Contains(ex.HTML, "<script") || strings.Contains(ex.HTML, "onclick") {
		t.Errorf("HTML not sanitized: %s", ex.HTML)
	}
	if !strings.Contains(ex.HTML, "A Test Dream") {
		t.Errorf("HTML lost content: %s", ex.HTML)
	}
	if !strings.Contains(ex.Markdown, "### A Test Dream") {
		t.Errorf("markdown heading missing: %q", ex.Markdown)
	}
	if !strings.Contains(ex.Markdown, "**text**") {
		t.Errorf("markdown emphasis missing: %q", ex.Markdown)
	}
	if ex.Truncated {
		t.Error("small excerpt reported truncated")
	}
}

func TestNewExcerptTruncatesOnRuneBoundary(t *testing.T) {
	raw := "<p>" + strings.Repeat("é", 100) + "</p>"
	ex := NewExcerpt(raw, 21)
	if !ex.Truncated {
		t.Fatal("expected truncation")
	}
	if len(ex.HTML) > 21 {
		t.Errorf("HTML length %d exceeds limit", len(ex.HTML))
	}
	for _, r := range ex.HTML {
		if r == '�' {
			t.Fatal("truncation split a rune")
		}
	}
}
