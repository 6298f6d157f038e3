package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_WidthFolding(t *testing.T) {
	// Full-width ASCII and punctuation fold to their half-width forms.
	assert.Equal(t, "ABC123,", Normalize("ＡＢＣ１２３，"))
	assert.Equal(t, "因为", Normalize("因为"))
}

func TestNormalize_NFC(t *testing.T) {
	// e + combining acute composes to é.
	decomposed := "café"
	assert.Equal(t, "café", Normalize(decomposed))
}

func TestWhitespaceTokenizer(t *testing.T) {
	tok := WhitespaceTokenizer{}
	assert.Equal(t, []string{"因为", "他", "忙"}, tok.Tokenize("因为 他 忙"))
	assert.Equal(t, []string{"因为", "他"}, tok.Tokenize("  因为\t他  "))
	assert.Empty(t, tok.Tokenize(""))
	assert.Empty(t, tok.Tokenize("   "))
}

func TestRuneTokenizer(t *testing.T) {
	tok := RuneTokenizer{}
	assert.Equal(t, []string{"因", "为", "他", "忙"}, tok.Tokenize("因为 他忙"))
	assert.Equal(t, []string{"a", "b", "c"}, tok.Tokenize("ａｂｃ"))
	assert.Empty(t, tok.Tokenize(" \t\n"))
}

func TestSliceSource_ScanOrderAndCancel(t *testing.T) {
	src := FromTokens("mem", [][]string{
		{"一"},
		{"二"},
	})
	assert.Equal(t, "mem", src.Name())

	var texts []string
	err := src.Scan(context.Background(), func(s Sentence) error {
		texts = append(texts, s.Text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"一", "二"}, texts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = src.Scan(ctx, func(Sentence) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSource_Scan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	content := "因为 他 忙 所以 他 没 去\n\n  \n他 很 忙\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	src := &FileSource{Path: path, Tok: WhitespaceTokenizer{}}
	var got [][]string
	err := src.Scan(context.Background(), func(s Sentence) error {
		got = append(got, s.Tokens)
		return nil
	})
	require.NoError(t, err)

	// Blank lines are skipped.
	require.Len(t, got, 2)
	assert.Equal(t, []string{"因为", "他", "忙", "所以", "他", "没", "去"}, got[0])
	assert.Equal(t, []string{"他", "很", "忙"}, got[1])
}

func TestFileSource_MissingFile(t *testing.T) {
	src := &FileSource{Path: "testdata/nope.txt", Tok: WhitespaceTokenizer{}}
	err := src.Scan(context.Background(), func(Sentence) error { return nil })
	require.Error(t, err)
}
