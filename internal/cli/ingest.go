package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/corpus"
	"github.com/zhlearn/anchorgram/internal/extract"
	"github.com/zhlearn/anchorgram/internal/stats"
	"github.com/zhlearn/anchorgram/internal/store"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Anchors  string
	Database string
	PriorDB  string
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <sentences-file>",
		Short: "Fold sentences into a learner's exposure profile",
		Long: `Extract patterns from the sentences a learner has studied and update
their exposure profile: per-key counts, sentence diversity and
emergence status. Ingestion is ordered and resumable; the profile
store remembers the ingest position.

With --prior-db, also report how much of the corpus-wide pattern
probability mass the learner's emerged patterns now cover.

Example:
  anchorgram ingest studied.txt --anchors anchors.json --db learner.db --prior-db prior.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Anchors, "anchors", "", "anchor file (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the learner profile store (required)")
	cmd.Flags().StringVar(&opts.PriorDB, "prior-db", "", "global prior store for coverage reporting")
	_ = cmd.MarkFlagRequired("anchors")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

type ingestReport struct {
	Sentences    int64    `json:"sentences"`
	TotalOrder   int64    `json:"total_order"`
	KeysSeen     int      `json:"keys_seen"`
	Emerged      int      `json:"emerged"`
	NewlyEmerged int      `json:"newly_emerged"`
	CoverageMass *float64 `json:"coverage_mass,omitempty"`
}

func (r ingestReport) String() string {
	s := fmt.Sprintf("ingested %d sentences (position %d): %d keys seen, %d emerged (%d new)",
		r.Sentences, r.TotalOrder, r.KeysSeen, r.Emerged, r.NewlyEmerged)
	if r.CoverageMass != nil {
		s += fmt.Sprintf("\ncoverage mass: %.4f", *r.CoverageMass)
	}
	return s
}

func runIngest(opts *IngestOptions, sentencesPath string, cmd *cobra.Command) error {
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

	personal, err := st.LoadPersonal(cmd.Context(), extractor.Fingerprint(), cfg.Emergence)
	if err != nil {
		code := ErrCodeStore
		if anchor.IsMismatchError(err) {
			code = ErrCodeMismatch
		}
		formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "load profile", err)
	}
	emergedBefore := len(personal.EmergedKeys())
	startOrder := personal.Order()

	// Ingest order is part of the profile, so this scan is sequential.
	src := &corpus.FileSource{Path: sentencesPath, Tok: cfg.BuildTokenizer()}
	err = src.Scan(cmd.Context(), func(sent corpus.Sentence) error {
		personal.ObserveSentence(sent.Tokens, extractor.Extract(sent.Tokens))
		return nil
	})
	if err != nil {
		formatter.Error(ErrCodeCorpus, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read sentences", err)
	}
	slog.Info("sentences ingested",
		"sentences", personal.Order()-startOrder, "keys", personal.Len())

	if err := st.SavePersonal(cmd.Context(), personal, cfg.Extract); err != nil {
		code := ErrCodeStore
		if anchor.IsMismatchError(err) {
			code = ErrCodeMismatch
		}
		formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "save profile", err)
	}

	report := ingestReport{
		Sentences:    personal.Order() - startOrder,
		TotalOrder:   personal.Order(),
		KeysSeen:     personal.Len(),
		Emerged:      len(personal.EmergedKeys()),
		NewlyEmerged: len(personal.EmergedKeys()) - emergedBefore,
	}

	if opts.PriorDB != "" {
		mass, err := coverageAgainstPrior(cmd, opts.PriorDB, extractor, personal)
		if err != nil {
			code := ErrCodeStore
			if anchor.IsMismatchError(err) {
				code = ErrCodeMismatch
			}
			formatter.Error(code, err.Error(), nil)
			return WrapExitError(ExitFailure, "coverage", err)
		}
		report.CoverageMass = &mass
	}

	return formatter.Success(report)
}

func coverageAgainstPrior(cmd *cobra.Command, priorPath string, extractor *extract.Extractor, personal *stats.Personal) (float64, error) {
	priorStore, err := store.Open(priorPath)
	if err != nil {
		return 0, fmt.Errorf("open prior store: %w", err)
	}
	defer priorStore.Close()

	global, err := priorStore.LoadGlobal(cmd.Context(), extractor.Fingerprint())
	if err != nil {
		return 0, err
	}
	return personal.CoverageMass(global)
}
