package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/corpus"
	"github.com/zhlearn/anchorgram/internal/pattern"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParse_EmptyFileYieldsDefaults(t *testing.T) {
	cfg, err := Parse("empty.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_SelectiveOverride(t *testing.T) {
	doc := []byte(`
tokenizer: rune
workers: 2
validator:
  top_k: 50
  thresholds:
    min_df: 10
extract:
  families: [skel, anch_pair]
  span_max_gap: 12
`)
	cfg, err := Parse("test.yaml", doc)
	require.NoError(t, err)

	assert.Equal(t, TokenizerRune, cfg.Tokenizer)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 50, cfg.Validator.TopK)
	assert.Equal(t, int64(10), cfg.Validator.Thresholds.MinDF)
	assert.Equal(t, []pattern.Family{pattern.FamilySkeleton, pattern.FamilyAnchorPair},
		cfg.Extract.Families)
	assert.Equal(t, 12, cfg.Extract.SpanMaxGap)

	// Untouched sections keep their defaults.
	def := Default()
	assert.Equal(t, def.Validator.Weights, cfg.Validator.Weights)
	assert.Equal(t, def.Selector, cfg.Selector)
	assert.Equal(t, def.Emergence, cfg.Emergence)
}

func TestParse_UnknownFieldIsRejected(t *testing.T) {
	_, err := Parse("test.yaml", []byte("validater:\n  top_k: 3\n"))
	require.Error(t, err)
	assert.True(t, anchor.IsConfigError(err))
}

func TestParse_WrongTypeIsRejected(t *testing.T) {
	_, err := Parse("test.yaml", []byte("workers: many\n"))
	require.Error(t, err)
	assert.True(t, anchor.IsConfigError(err))
}

func TestParse_SchemaRangeIsRejected(t *testing.T) {
	_, err := Parse("test.yaml", []byte("workers: 0\n"))
	require.Error(t, err)
	assert.True(t, anchor.IsConfigError(err))
}

func TestParse_UnknownTokenizer(t *testing.T) {
	_, err := Parse("test.yaml", []byte("tokenizer: jieba\n"))
	require.Error(t, err)
	assert.True(t, anchor.IsConfigError(err))
}

func TestParse_BadFamilyFailsValidation(t *testing.T) {
	_, err := Parse("test.yaml", []byte("extract:\n  families: [bogus]\n"))
	require.Error(t, err)
	assert.True(t, anchor.IsConfigError(err))
}

func TestBuildTokenizer(t *testing.T) {
	cfg := Default()
	assert.IsType(t, corpus.WhitespaceTokenizer{}, cfg.BuildTokenizer())
	cfg.Tokenizer = TokenizerRune
	assert.IsType(t, corpus.RuneTokenizer{}, cfg.BuildTokenizer())
}
