package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhlearn/anchorgram/internal/anchor"
)

// CandidatesOptions holds flags for the candidates command.
type CandidatesOptions struct {
	*RootOptions
	Output string
	Sort   bool
}

// NewCandidatesCommand creates the candidates command.
func NewCandidatesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CandidatesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "candidates <lexicon.json>",
		Short: "Select anchor candidates from a POS-tagged lexicon",
		Long: `Filter a lexicon down to anchor candidates: tokens whose POS tags
intersect the accepted closed-class tags and whose length is within
bounds. The output is unranked; ranking happens in 'anchors'.

The lexicon is a JSON array of {"token": ..., "pos": [...]} entries.

Example:
  anchorgram candidates lexicon.json --out candidates.txt`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCandidates(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Output, "out", "", "write candidates to this file, one per line")
	cmd.Flags().BoolVar(&opts.Sort, "sort", false, "sort candidates instead of keeping lexicon order")

	return cmd
}

type candidatesReport struct {
	LexiconEntries int      `json:"lexicon_entries"`
	Candidates     []string `json:"candidates"`
}

func (r candidatesReport) String() string {
	return fmt.Sprintf("%d candidates from %d lexicon entries:\n%s",
		len(r.Candidates), r.LexiconEntries, strings.Join(r.Candidates, "\n"))
}

func runCandidates(opts *CandidatesOptions, lexiconPath string, cmd *cobra.Command) error {
	formatter := opts.Formatter(cmd)

	cfg, err := opts.LoadConfig()
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load config", err)
	}

	data, err := os.ReadFile(lexiconPath)
	if err != nil {
		formatter.Error(ErrCodeCorpus, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read lexicon", err)
	}
	var entries []anchor.LexiconEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		formatter.Error(ErrCodeCorpus, err.Error(), nil)
		return WrapExitError(ExitCommandError, "parse lexicon", err)
	}

	candidates, err := anchor.SelectCandidates(entries, cfg.Selector)
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "select candidates", err)
	}
	if len(candidates) == 0 {
		formatter.Error(ErrCodeGeneric, "no lexicon entry matched the accepted POS tags", nil)
		return NewExitError(ExitFailure, "no candidates selected")
	}
	// Default order is the lexicon's, which for frequency-ranked
	// lexicons keeps the most frequent candidates first.
	if opts.Sort {
		sort.Strings(candidates)
	}

	if opts.Output != "" {
		content := strings.Join(candidates, "\n") + "\n"
		if err := os.WriteFile(opts.Output, []byte(content), 0o644); err != nil {
			formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "write candidates", err)
		}
	}

	return formatter.Success(candidatesReport{
		LexiconEntries: len(entries),
		Candidates:     candidates,
	})
}
