package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samshapley/ancientgrok/translate"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
}

func TestLoadPair(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "source.txt", "udu 10\n\nlugal kur-kur-ra\n  \nsze gur 5\n")
	writeFile(t, dir, "target.txt", "10 sheep\nking of all the lands\n5 gur of barley\n")

	pairs, err := LoadPair(filepath.Join(dir, "source.txt"), filepath.Join(dir, "target.txt"))
	if err != nil {
		t.Fatalf("LoadPair failed: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("Expected 3 pairs, got %d", len(pairs))
	}
	if pairs[1].Source != "lugal kur-kur-ra" || pairs[1].Target != "king of all the lands" {
		t.Errorf("Unexpected pair: %+v", pairs[1])
	}
}

func TestLoadPairMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "source.txt", "a\nb\nc\n")
	writeFile(t, dir, "target.txt", "x\ny\n")

	_, err := LoadPair(filepath.Join(dir, "source.txt"), filepath.Join(dir, "target.txt"))
	if err == nil {
		t.Fatal("Expected an error for mismatched line counts")
	}
	if !strings.Contains(err.Error(), "mismatched") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestLoadLinesSkipsBlanks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mono.txt", "  line one  \n\n\t\nline two\n")

	lines, err := LoadLines(filepath.Join(dir, "mono.txt"))
	if err != nil {
		t.Fatalf("LoadLines failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "line one" {
		t.Errorf("Expected trimmed line, got %q", lines[0])
	}
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sumerian_train.txt", "a1\na2\na3\na4\n")
	writeFile(t, dir, "english_train.txt", "b1\nb2\nb3\nb4\n")
	writeFile(t, dir, "sumerian_test.txt", "t1\nt2\n")
	writeFile(t, dir, "english_test.txt", "u1\nu2\n")
	writeFile(t, dir, "Sumerian_monolingual_processed.txt", "m1\nm2\nm3\n")

	c, err := Load(dir, "sumerian")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	stats := c.Stats()
	if stats.Train != 4 || stats.Val != 0 || stats.Test != 2 {
		t.Errorf("Unexpected split sizes: %+v", stats)
	}
	if stats.Total != 6 {
		t.Errorf("Expected total 6, got %d", stats.Total)
	}
	if stats.Monolingual != 3 {
		t.Errorf("Expected 3 monolingual lines, got %d", stats.Monolingual)
	}
}

func TestLoadEgyptianNaming(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "egyptian_train.txt", "jw.f\n")
	writeFile(t, dir, "english_egy_train.txt", "he is\n")
	// A stray Sumerian monolingual file must not leak into other datasets.
	writeFile(t, dir, "Sumerian_monolingual_processed.txt", "m1\n")

	c, err := Load(dir, "egyptian")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(c.Train) != 1 || c.Train[0].Source != "jw.f" {
		t.Errorf("Unexpected train split: %+v", c.Train)
	}
	if len(c.Monolingual) != 0 {
		t.Errorf("Expected no monolingual corpus for egyptian, got %d lines", len(c.Monolingual))
	}
}

func TestSampleDeterministic(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	first := Sample(items, 10, 42)
	second := Sample(items, 10, 42)
	if len(first) != 10 {
		t.Fatalf("Expected 10 items, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Same seed produced different samples: %v vs %v", first, second)
		}
	}

	seen := make(map[int]bool)
	for _, v := range first {
		if seen[v] {
			t.Fatalf("Duplicate item %d in sample", v)
		}
		seen[v] = true
	}
}

func TestSampleBounds(t *testing.T) {
	items := []string{"a", "b", "c"}

	if got := Sample(items, 0, 42); got != nil {
		t.Errorf("Expected nil for n=0, got %v", got)
	}
	all := Sample(items, 10, 42)
	if len(all) != 3 {
		t.Errorf("Expected full copy for n > len, got %v", all)
	}

	// The full copy must be independent of the source slice.
	all[0] = "z"
	if items[0] != "a" {
		t.Error("Sample should copy, not alias")
	}
}

func TestTestSubset(t *testing.T) {
	c := &Corpus{}
	for i := 0; i < 10; i++ {
		c.Test = append(c.Test, translate.Example{
			Source: strings.Repeat("s", i+1),
			Target: strings.Repeat("t", i+1),
		})
	}

	if got := c.TestSubset(0, 99); len(got) != 10 {
		t.Errorf("Expected whole split for n=0, got %d", len(got))
	}
	subset := c.TestSubset(4, 99)
	if len(subset) != 4 {
		t.Errorf("Expected 4 test pairs, got %d", len(subset))
	}
	again := c.TestSubset(4, 99)
	for i := range subset {
		if subset[i] != again[i] {
			t.Fatal("Same seed produced different test subsets")
		}
	}
}
