package words

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	tl, dict, err := load("", "")
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if len(tl) != 6 {
		t.Errorf("targets = %v, want the 6 default words", tl)
	}
	for _, w := range tl {
		if !dict.Contains(w) {
			t.Errorf("target %q missing from dictionary", w)
		}
	}
	for _, w := range []string{"toy", "stream", "victory"} {
		if !dict.Contains(w) {
			t.Errorf("dictionary missing %q", w)
		}
	}
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	tp := filepath.Join(dir, "targets.txt")
	dp := filepath.Join(dir, "dict.txt")
	if err := os.WriteFile(tp, []byte("Apple\n# comment\n\nbanana\napple\nnot-a-word\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dp, []byte("pear\nPLUM\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tl, dict, err := load(tp, dp)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if strings.Join(tl, ",") != "apple,banana" {
		t.Errorf("targets = %v, want [apple banana]", tl)
	}
	for _, w := range []string{"apple", "banana", "pear", "plum"} {
		if !dict.Contains(w) {
			t.Errorf("dictionary missing %q", w)
		}
	}
	if dict.Contains("toy") {
		t.Error("file dictionary still contains embedded words")
	}
}

func TestLoadEmptyTargets(t *testing.T) {
	tp := filepath.Join(t.TempDir(), "targets.txt")
	if err := os.WriteFile(tp, []byte("# nothing\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := load(tp, ""); err == nil {
		t.Error("load() with no targets succeeded, want error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, _, err := load(filepath.Join(t.TempDir(), "missing.txt"), ""); err == nil {
		t.Error("load() with missing file succeeded, want error")
	}
}

func TestSetContainsIgnoresCase(t *testing.T) {
	s := NewSet([]string{"Boy"})
	if !s.Contains("BOY") || !s.Contains("boy") {
		t.Error("Contains should be case-insensitive")
	}
	var empty Set
	if empty.Contains("boy") {
		t.Error("nil Set contains a word")
	}
}
