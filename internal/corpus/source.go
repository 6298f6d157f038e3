package corpus

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// Handles very long lines in web-scraped corpora.
const scannerBufSize = 4 * 1024 * 1024

// Sentence is one corpus unit: the ordered token sequence plus the
// original text, kept for realization samples.
type Sentence struct {
	Text   string
	Tokens []string
}

// Source yields sentences in a stable order. A Source corresponds to one
// corpus shard; scans are bounded by shard size and check the context
// between sentences, so a caller can stop a scan without partial-sentence
// checkpoints.
type Source interface {
	// Name identifies the shard in logs and skip reports.
	Name() string

	// Scan calls fn for every sentence in order. Scan stops early if fn
	// or the context returns an error.
	Scan(ctx context.Context, fn func(Sentence) error) error
}

// SliceSource is an in-memory Source, used by tests and small inputs.
type SliceSource struct {
	SourceName string
	Sentences  []Sentence
}

// FromTokens builds a SliceSource from bare token sequences.
// The joined tokens stand in for the original text.
func FromTokens(name string, sentences [][]string) *SliceSource {
	src := &SliceSource{SourceName: name}
	for _, toks := range sentences {
		src.Sentences = append(src.Sentences, Sentence{
			Text:   strings.Join(toks, ""),
			Tokens: toks,
		})
	}
	return src
}

func (s *SliceSource) Name() string { return s.SourceName }

func (s *SliceSource) Scan(ctx context.Context, fn func(Sentence) error) error {
	for _, sent := range s.Sentences {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(sent); err != nil {
			return err
		}
	}
	return nil
}

// FileSource reads a one-sentence-per-line corpus file, tokenizing each
// line with the configured Tokenizer. Blank lines are skipped.
type FileSource struct {
	Path string
	Tok  Tokenizer
}

func (f *FileSource) Name() string { return f.Path }

func (f *FileSource) Scan(ctx context.Context, fn func(Sentence) error) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("open corpus shard: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), scannerBufSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tokens := f.Tok.Tokenize(line)
		if len(tokens) == 0 {
			continue
		}
		if err := fn(Sentence{Text: line, Tokens: tokens}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read corpus shard %s: %w", f.Path, err)
	}
	return nil
}
