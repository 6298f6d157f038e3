package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/stats"
	"github.com/zhlearn/anchorgram/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Database string
	Family   string
	Top      int
	Key      string
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect a statistics store",
		Long: `Show a store's provenance stamp and its most frequent pattern keys.
With --key, show the full record of one key including its realization
samples.

Example:
  anchorgram inspect --db prior.db --family anch_pair --top 20
  anchorgram inspect --db prior.db --key 'anch_pair|a=因为,所以|p=gap=2-3'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the store (required)")
	cmd.Flags().StringVar(&opts.Family, "family", "", "restrict top keys to one family")
	cmd.Flags().IntVar(&opts.Top, "top", 20, "number of top keys to show")
	cmd.Flags().StringVar(&opts.Key, "key", "", "show the full record for this key")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

type inspectReport struct {
	StoreID        string              `json:"store_id"`
	Fingerprint    string              `json:"fingerprint"`
	TotalSentences int64               `json:"total_sentences,omitempty"`
	TopKeys        []string            `json:"top_keys,omitempty"`
	Record         *stats.GlobalRecord `json:"record,omitempty"`
	RecordKey      string              `json:"record_key,omitempty"`
	IngestOrder    int64               `json:"ingest_order,omitempty"`
	KeysSeen       int                 `json:"keys_seen,omitempty"`
	EmergedKeys    []string            `json:"emerged_keys,omitempty"`
}

func (r inspectReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "store %s\nfingerprint: %s", r.StoreID, r.Fingerprint)
	if r.KeysSeen > 0 {
		fmt.Fprintf(&b, "\ningested: %d sentences, %d keys seen, %d emerged",
			r.IngestOrder, r.KeysSeen, len(r.EmergedKeys))
		for _, key := range r.EmergedKeys {
			fmt.Fprintf(&b, "\n%s", key)
		}
		return b.String()
	}
	fmt.Fprintf(&b, "\nsentences: %d", r.TotalSentences)
	if r.Record != nil {
		fmt.Fprintf(&b, "\n%s\n  df=%d occurrences=%d p_global=%.6f log_freq=%.4f",
			r.RecordKey, r.Record.CountSentences, r.Record.CountOccurrences,
			r.Record.PGlobal, r.Record.LogFreq)
		for _, realization := range r.Record.Realizations {
			fmt.Fprintf(&b, "\n  | %s", realization)
		}
		return b.String()
	}
	for _, key := range r.TopKeys {
		fmt.Fprintf(&b, "\n%s", key)
	}
	return b.String()
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	formatter := opts.Formatter(cmd)

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

	ctx := cmd.Context()
	fingerprint, err := st.Fingerprint(ctx)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "read store meta", err)
	}
	if fingerprint == "" {
		formatter.Error(ErrCodeStore, "store is empty; nothing was saved yet", nil)
		return NewExitError(ExitFailure, "empty store")
	}
	storeID, err := st.StoreID(ctx)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "read store meta", err)
	}

	global, err := st.LoadGlobal(ctx, fingerprint)
	if err != nil {
		if anchor.IsConfigError(err) {
			// Profile-only store: report the learner state instead.
			return inspectProfile(opts, cmd, st, storeID, fingerprint)
		}
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "load prior", err)
	}

	report := inspectReport{
		StoreID:        storeID,
		Fingerprint:    fingerprint,
		TotalSentences: global.TotalSentences(),
	}

	if opts.Key != "" {
		rec, ok := global.Record(opts.Key)
		if !ok {
			formatter.Error(ErrCodeGeneric, fmt.Sprintf("key not found: %s", opts.Key), nil)
			return NewExitError(ExitFailure, "key not found")
		}
		report.Record = rec
		report.RecordKey = opts.Key
		return formatter.Success(report)
	}

	keys, err := st.TopKeys(ctx, opts.Family, opts.Top)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "top keys", err)
	}
	report.TopKeys = keys
	return formatter.Success(report)
}

func inspectProfile(opts *InspectOptions, cmd *cobra.Command, st *store.Store, storeID, fingerprint string) error {
	formatter := opts.Formatter(cmd)

	cfg, err := opts.LoadConfig()
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load config", err)
	}
	personal, err := st.LoadPersonal(cmd.Context(), fingerprint, cfg.Emergence)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "load profile", err)
	}
	return formatter.Success(inspectReport{
		StoreID:     storeID,
		Fingerprint: fingerprint,
		IngestOrder: personal.Order(),
		KeysSeen:    personal.Len(),
		EmergedKeys: personal.EmergedKeys(),
	})
}
