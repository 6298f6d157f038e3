package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/extract"
	"github.com/zhlearn/anchorgram/internal/stats"
	"github.com/zhlearn/anchorgram/internal/store"
)

// PriorOptions holds flags for the prior command.
type PriorOptions struct {
	*RootOptions
	Anchors  string
	Database string
}

// NewPriorCommand creates the prior command.
func NewPriorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PriorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prior <corpus-file>...",
		Short: "Build the global pattern prior from a corpus",
		Long: `Extract pattern keys from every corpus sentence under the frozen
anchor set and aggregate the global statistics (document frequency,
occurrence counts, realization samples) into a SQLite store.

The store is stamped with the anchor fingerprint; rebuilding it with a
different anchor file is refused.

Example:
  anchorgram prior corpus-*.txt --anchors anchors.json --db prior.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrior(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Anchors, "anchors", "", "anchor file (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the prior store (required)")
	_ = cmd.MarkFlagRequired("anchors")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

type priorReport struct {
	Sentences     int64    `json:"sentences"`
	Keys          int      `json:"keys"`
	Fingerprint   string   `json:"fingerprint"`
	SkippedShards []string `json:"skipped_shards,omitempty"`
	Database      string   `json:"database"`
}

func (r priorReport) String() string {
	s := fmt.Sprintf("aggregated %d keys over %d sentences -> %s",
		r.Keys, r.Sentences, r.Database)
	if len(r.SkippedShards) > 0 {
		s += fmt.Sprintf("\nskipped shards: %s", strings.Join(r.SkippedShards, ", "))
	}
	return s
}

func runPrior(opts *PriorOptions, corpusPaths []string, cmd *cobra.Command) error {
	formatter := opts.Formatter(cmd)

	cfg, err := opts.LoadConfig()
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load config", err)
	}

	set, _, err := anchor.LoadFile(opts.Anchors)
	if err != nil {
		code := ErrCodeCorpus
		if anchor.IsMismatchError(err) {
			code = ErrCodeMismatch
		}
		formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load anchor file", err)
	}

	extractor, err := extract.New(set, cfg.Extract)
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "build extractor", err)
	}

	slog.Info("building prior",
		"anchors", set.Len(), "shards", len(corpusPaths), "families", len(cfg.Extract.Families))

	sources := corpusSources(corpusPaths, cfg.BuildTokenizer())
	global, skipped, err := stats.BuildGlobal(cmd.Context(), extractor, sources,
		cfg.Workers, cfg.RealizationCap)
	if err != nil {
		formatter.Error(ErrCodeCorpus, err.Error(), nil)
		return WrapExitError(ExitFailure, "build prior", err)
	}
	slog.Info("prior built", "keys", global.Len(), "sentences", global.TotalSentences())

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

	if err := st.SaveGlobal(cmd.Context(), global, cfg.Extract); err != nil {
		code := ErrCodeStore
		if anchor.IsMismatchError(err) {
			code = ErrCodeMismatch
		}
		formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "save prior", err)
	}

	report := priorReport{
		Sentences:   global.TotalSentences(),
		Keys:        global.Len(),
		Fingerprint: global.Fingerprint(),
		Database:    opts.Database,
	}
	for _, skip := range skipped {
		report.SkippedShards = append(report.SkippedShards, skip.Shard)
	}
	return formatter.Success(report)
}
