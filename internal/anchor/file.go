package anchor

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// File is the on-disk anchor set format, consumed by every downstream
// run. The stats block is audit material: runtime consumers only need
// the ordered anchor list and the fingerprint.
type File struct {
	Anchors []string         `json:"anchors"`
	Meta    FileMeta         `json:"meta"`
	Stats   map[string]Stats `json:"stats,omitempty"`
}

// FileMeta records provenance for the frozen set.
type FileMeta struct {
	Fingerprint    string     `json:"fingerprint"`
	BuiltAt        time.Time  `json:"built_at"`
	TotalSentences int64      `json:"total_sentences"`
	TopK           int        `json:"top_k"`
	Thresholds     Thresholds `json:"thresholds"`
	Tokenizer      string     `json:"tokenizer"`
}

// WriteFile persists a validation result as an anchor file.
func WriteFile(path string, result *Result, cfg ValidatorConfig, tokenizer string, includeStats bool) error {
	f := File{
		Anchors: result.Set.Anchors(),
		Meta: FileMeta{
			Fingerprint:    result.Set.Fingerprint(),
			BuiltAt:        time.Now().UTC(),
			TotalSentences: result.TotalSentences,
			TopK:           cfg.TopK,
			Thresholds:     cfg.Thresholds,
			Tokenizer:      tokenizer,
		},
	}
	if includeStats {
		f.Stats = result.Stats
	}

	data, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal anchor file: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write anchor file: %w", err)
	}
	return nil
}

// LoadFile reads an anchor file and rebuilds the frozen Set.
//
// If the file carries a fingerprint, the rebuilt set must reproduce it
// byte-for-byte; disagreement means the file was edited or produced by
// an incompatible engine, and consumers must not trust its keys.
func LoadFile(path string) (*Set, *File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read anchor file: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parse anchor file %s: %w", path, err)
	}
	if len(f.Anchors) == 0 {
		return nil, nil, NewConfigError("anchors", "anchor file %s has no anchors", path)
	}

	set, err := NewSet(f.Anchors)
	if err != nil {
		return nil, nil, err
	}
	if f.Meta.Fingerprint != "" {
		if err := set.Verify("anchor file "+path, f.Meta.Fingerprint); err != nil {
			return nil, nil, err
		}
	}
	return set, &f, nil
}
