package cli

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhlearn/anchorgram/internal/anchor"
)

// AnchorsOptions holds flags for the anchors command.
type AnchorsOptions struct {
	*RootOptions
	Candidates   string
	Output       string
	TopK         int
	IncludeStats bool
}

// NewAnchorsCommand creates the anchors command.
func NewAnchorsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnchorsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "anchors <corpus-file>...",
		Short: "Validate candidates against a corpus and freeze the anchor set",
		Long: `Score anchor candidates over one or more corpus shards and freeze the
top-K survivors into an anchor file.

Candidates are scored by document-frequency rate, neighbor entropy and
log term frequency; candidates below the configured thresholds are
discarded. The frozen set carries a fingerprint that every downstream
artifact is checked against.

Example:
  anchorgram anchors corpus-*.txt --candidates candidates.txt --out anchors.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnchors(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Candidates, "candidates", "", "candidate token file, one per line (required)")
	cmd.Flags().StringVar(&opts.Output, "out", "", "anchor file to write (required)")
	cmd.Flags().IntVar(&opts.TopK, "top-k", 0, "override the configured anchor set size")
	cmd.Flags().BoolVar(&opts.IncludeStats, "include-stats", false, "include per-anchor stats in the anchor file")
	_ = cmd.MarkFlagRequired("candidates")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

type anchorsReport struct {
	Anchors        int      `json:"anchors"`
	Fingerprint    string   `json:"fingerprint"`
	TotalSentences int64    `json:"total_sentences"`
	SkippedShards  []string `json:"skipped_shards,omitempty"`
	Output         string   `json:"output"`
}

func (r anchorsReport) String() string {
	s := fmt.Sprintf("froze %d anchors over %d sentences -> %s\nfingerprint: %s",
		r.Anchors, r.TotalSentences, r.Output, r.Fingerprint)
	if len(r.SkippedShards) > 0 {
		s += fmt.Sprintf("\nskipped shards: %s", strings.Join(r.SkippedShards, ", "))
	}
	return s
}

func runAnchors(opts *AnchorsOptions, corpusPaths []string, cmd *cobra.Command) error {
	formatter := opts.Formatter(cmd)

	cfg, err := opts.LoadConfig()
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load config", err)
	}

	candidates, err := readTokenLines(opts.Candidates)
	if err != nil {
		formatter.Error(ErrCodeCorpus, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read candidates", err)
	}

	vcfg := cfg.Validator
	if opts.TopK > 0 {
		vcfg.TopK = opts.TopK
	}
	vcfg.KeepDiscarded = vcfg.KeepDiscarded || opts.Verbose

	slog.Info("validating candidates",
		"candidates", len(candidates), "shards", len(corpusPaths), "top_k", vcfg.TopK)

	sources := corpusSources(corpusPaths, cfg.BuildTokenizer())
	result, err := anchor.Validate(cmd.Context(), candidates, sources, cfg.Workers, vcfg)
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitFailure, "validate candidates", err)
	}
	slog.Info("anchor set frozen",
		"anchors", result.Set.Len(), "sentences", result.TotalSentences)

	if err := anchor.WriteFile(opts.Output, result, vcfg, cfg.Tokenizer, opts.IncludeStats); err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "write anchor file", err)
	}

	report := anchorsReport{
		Anchors:        result.Set.Len(),
		Fingerprint:    result.Set.Fingerprint(),
		TotalSentences: result.TotalSentences,
		Output:         opts.Output,
	}
	for _, skip := range result.Skipped {
		report.SkippedShards = append(report.SkippedShards, skip.Shard)
	}
	return formatter.Success(report)
}

// readTokenLines reads a one-token-per-line file, skipping blanks.
func readTokenLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var tokens []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" {
			continue
		}
		tokens = append(tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}
