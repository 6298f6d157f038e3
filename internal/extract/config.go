package extract

import (
	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/pattern"
)

// Config is the explicit enabled-family configuration for one extraction
// run. There is no implicit family set: every run states exactly which
// families it computes, and the configuration travels with the produced
// statistics so stores can be checked for compatibility.
type Config struct {
	// Families is the enabled family list. Duplicates and unknown tags
	// are configuration errors.
	Families []pattern.Family `yaml:"families" json:"families"`

	// MaxNgramN bounds token n-grams (n in [2, MaxNgramN]). Only used
	// when tok_ng is enabled.
	MaxNgramN int `yaml:"max_ngram_n" json:"max_ngram_n"`

	// SpanMaxGap bounds the intervening-token gap for anch_pair,
	// anch_span and span_sig.
	SpanMaxGap int `yaml:"span_max_gap" json:"span_max_gap"`

	// SkipMaxJump bounds the position jump between consecutive anchors
	// in a_skip2 / a_skip3 skip-grams.
	SkipMaxJump int `yaml:"skip_max_jump" json:"skip_max_jump"`
}

// DefaultConfig enables the core families with the usual bounds.
func DefaultConfig() Config {
	return Config{
		Families:    pattern.CoreFamilies(),
		MaxNgramN:   4,
		SpanMaxGap:  20,
		SkipMaxJump: 10,
	}
}

// Validate checks the extraction configuration.
func (c Config) Validate() error {
	if len(c.Families) == 0 {
		return anchor.NewConfigError("families", "enabled family set cannot be empty")
	}
	seen := make(map[pattern.Family]bool, len(c.Families))
	for _, f := range c.Families {
		if !f.Valid() {
			return anchor.NewConfigError("families", "unknown family tag %q", string(f))
		}
		if seen[f] {
			return anchor.NewConfigError("families", "family %q listed twice", string(f))
		}
		seen[f] = true
	}
	if seen[pattern.FamilyTokenNgram] && c.MaxNgramN < 2 {
		return anchor.NewConfigError("max_ngram_n", "must be >= 2 when tok_ng is enabled, got %d", c.MaxNgramN)
	}
	if c.SpanMaxGap < 1 {
		return anchor.NewConfigError("span_max_gap", "must be >= 1, got %d", c.SpanMaxGap)
	}
	if seen[pattern.FamilyAnchorSkip2] || seen[pattern.FamilyAnchorSkip3] {
		if c.SkipMaxJump < 1 {
			return anchor.NewConfigError("skip_max_jump", "must be >= 1 when skip-grams are enabled, got %d", c.SkipMaxJump)
		}
	}
	return nil
}

func (c Config) enabled() map[pattern.Family]bool {
	m := make(map[pattern.Family]bool, len(c.Families))
	for _, f := range c.Families {
		m[f] = true
	}
	return m
}
