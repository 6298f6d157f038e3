package corpus

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Tokenizer turns raw sentence text into an ordered token sequence.
//
// Segmentation itself is an external concern: the engine is agnostic to
// how tokens were produced and must tolerate empty sentences and
// non-Chinese tokens. The implementations here are boundary adapters,
// not segmenters.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Normalize canonicalizes sentence text before tokenization:
// NFC composition plus width folding, so full-width ASCII variants
// (ＡＢＣ, ，) and decomposed sequences produced by different corpus
// tooling map to the same tokens and therefore the same pattern keys.
func Normalize(text string) string {
	return norm.NFC.String(width.Fold.String(text))
}

// WhitespaceTokenizer splits pre-segmented text on whitespace.
// Use for corpora that were tokenized offline (one sentence per line,
// tokens separated by spaces).
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}

// RuneTokenizer emits one token per non-space rune. This is the
// character-level fallback for raw, unsegmented Chinese text: crude, but
// total, and sufficient for statistical anchor scoring.
type RuneTokenizer struct{}

func (RuneTokenizer) Tokenize(text string) []string {
	normalized := Normalize(text)
	out := make([]string, 0, len(normalized)/3)
	for _, r := range normalized {
		if unicode.IsSpace(r) {
			continue
		}
		out = append(out, string(r))
	}
	return out
}
