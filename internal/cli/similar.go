package cli

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/extract"
	"github.com/zhlearn/anchorgram/internal/score"
	"github.com/zhlearn/anchorgram/internal/store"
)

// SimilarOptions holds flags for the similar command.
type SimilarOptions struct {
	*RootOptions
	Anchors  string
	Database string
}

// NewSimilarCommand creates the similar command.
func NewSimilarCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimilarOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "similar <sentence-a> <sentence-b>",
		Short: "Score structural similarity between two sentences",
		Long: `Extract the pattern key sets of two sentences and score their
IDF-weighted Jaccard similarity against the global prior: sharing a
rare construction counts for more than sharing a ubiquitous one.

Sentences are tokenized with the configured tokenizer, so pass
pre-segmented text when using the whitespace tokenizer.

Example:
  anchorgram similar "因为 下雨 所以 没 去" "因为 他 忙 所以 没 来" \
    --anchors anchors.json --db prior.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimilar(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Anchors, "anchors", "", "anchor file (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the prior store (required)")
	_ = cmd.MarkFlagRequired("anchors")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

type similarReport struct {
	Similarity float64  `json:"similarity"`
	KeysA      int      `json:"keys_a"`
	KeysB      int      `json:"keys_b"`
	Shared     []string `json:"shared_keys,omitempty"`
}

func (r similarReport) String() string {
	s := fmt.Sprintf("similarity: %.4f (%d vs %d keys, %d shared)",
		r.Similarity, r.KeysA, r.KeysB, len(r.Shared))
	for _, key := range r.Shared {
		s += "\n  " + key
	}
	return s
}

func runSimilar(opts *SimilarOptions, sentenceA, sentenceB string, cmd *cobra.Command) error {
	formatter := opts.Formatter(cmd)

	cfg, err := opts.LoadConfig()
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load config", err)
	}

	set, _, err := anchor.LoadFile(opts.Anchors)
	if err != nil {
		formatter.Error(ErrCodeCorpus, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load anchor file", err)
	}
	extractor, err := extract.New(set, cfg.Extract)
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "build extractor", err)
	}

	tok := cfg.BuildTokenizer()
	keysA := extractor.KeySet(tok.Tokenize(sentenceA))
	keysB := extractor.KeySet(tok.Tokenize(sentenceB))

	st, err := store.Open(opts.Database)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing store", "error", closeErr)
		}
	}()

	global, err := st.LoadGlobal(cmd.Context(), extractor.Fingerprint())
	if err != nil {
		code := ErrCodeStore
		if anchor.IsMismatchError(err) {
			code = ErrCodeMismatch
		}
		formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "load prior", err)
	}

	similarity, err := score.SentenceSimilarity(keysA, keysB, global, extractor.Fingerprint())
	if err != nil {
		formatter.Error(ErrCodeMismatch, err.Error(), nil)
		return WrapExitError(ExitFailure, "score similarity", err)
	}

	report := similarReport{
		Similarity: similarity,
		KeysA:      len(keysA),
		KeysB:      len(keysB),
	}
	for key := range keysA {
		if _, ok := keysB[key]; ok {
			report.Shared = append(report.Shared, key)
		}
	}
	sort.Strings(report.Shared)
	return formatter.Success(report)
}
