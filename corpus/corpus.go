// Package corpus reads line-oriented parallel corpus files: one sentence per
// line, source and target files with matching line counts. Sampling is
// seeded so benchmark runs draw identical examples across providers.
package corpus

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/samshapley/ancientgrok/translate"
)

// Corpus holds the train/val/test splits of one parallel dataset plus an
// optional monolingual corpus used for context priming.
type Corpus struct {
	Dataset     string
	Train       []translate.Example
	Val         []translate.Example
	Test        []translate.Example
	Monolingual []string
}

// Load reads a named dataset from dataDir. Sumerian splits live in
// sumerian_{split}.txt / english_{split}.txt, Egyptian in
// egyptian_{split}.txt / english_egy_{split}.txt. Missing split files load
// as empty splits; the monolingual corpus only exists for Sumerian.
func Load(dataDir, dataset string) (*Corpus, error) {
	sourcePrefix, targetPrefix := "sumerian", "english"
	if dataset == "egyptian" {
		sourcePrefix, targetPrefix = "egyptian", "english_egy"
	}

	c := &Corpus{Dataset: dataset}
	splits := []struct {
		name string
		dst  *[]translate.Example
	}{
		{"train", &c.Train},
		{"val", &c.Val},
		{"test", &c.Test},
	}
	for _, split := range splits {
		sourcePath := filepath.Join(dataDir, sourcePrefix+"_"+split.name+".txt")
		targetPath := filepath.Join(dataDir, targetPrefix+"_"+split.name+".txt")
		if !fileExists(sourcePath) || !fileExists(targetPath) {
			continue
		}
		pairs, err := LoadPair(sourcePath, targetPath)
		if err != nil {
			return nil, err
		}
		*split.dst = pairs
	}

	if dataset != "egyptian" {
		monoPath := filepath.Join(dataDir, "Sumerian_monolingual_processed.txt")
		if fileExists(monoPath) {
			lines, err := LoadLines(monoPath)
			if err != nil {
				return nil, err
			}
			c.Monolingual = lines
		}
	}
	return c, nil
}

// LoadPair reads aligned source/target files into examples. Line i of the
// source pairs with line i of the target; a count mismatch is an error
// rather than a silent truncation.
func LoadPair(sourcePath, targetPath string) ([]translate.Example, error) {
	source, err := LoadLines(sourcePath)
	if err != nil {
		return nil, err
	}
	target, err := LoadLines(targetPath)
	if err != nil {
		return nil, err
	}
	if len(source) != len(target) {
		return nil, fmt.Errorf("mismatched corpus files: %s has %d lines, %s has %d", sourcePath, len(source), targetPath, len(target))
	}

	examples := make([]translate.Example, len(source))
	for i := range source {
		examples[i] = translate.Example{Source: source[i], Target: target[i]}
	}
	return examples, nil
}

// LoadLines reads a corpus file, one sentence per line, trimming whitespace
// and skipping blank lines.
func LoadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

// Sample draws n items without replacement. The same seed always selects the
// same subset. When n covers the whole slice a plain copy is returned.
func Sample[T any](items []T, n int, seed int64) []T {
	if n <= 0 {
		return nil
	}
	if n >= len(items) {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}

	r := rand.New(rand.NewSource(seed))
	out := make([]T, 0, n)
	for _, idx := range r.Perm(len(items))[:n] {
		out = append(out, items[idx])
	}
	return out
}

// FewShot samples n training pairs for few-shot prompting.
func (c *Corpus) FewShot(n int, seed int64) []translate.Example {
	return Sample(c.Train, n, seed)
}

// SampleMonolingual samples n monolingual sentences for context priming.
func (c *Corpus) SampleMonolingual(n int, seed int64) []string {
	return Sample(c.Monolingual, n, seed)
}

// TestSubset returns n sampled test pairs, or the whole test split when
// n <= 0 or n covers it.
func (c *Corpus) TestSubset(n int, seed int64) []translate.Example {
	if n <= 0 || n >= len(c.Test) {
		return c.Test
	}
	return Sample(c.Test, n, seed)
}

// Stats summarizes split sizes.
type Stats struct {
	Dataset     string
	Train       int
	Val         int
	Test        int
	Total       int
	Monolingual int
}

// Stats reports how much data the corpus holds, for run logging.
func (c *Corpus) Stats() Stats {
	return Stats{
		Dataset:     c.Dataset,
		Train:       len(c.Train),
		Val:         len(c.Val),
		Test:        len(c.Test),
		Total:       len(c.Train) + len(c.Val) + len(c.Test),
		Monolingual: len(c.Monolingual),
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
