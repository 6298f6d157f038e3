package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhlearn/anchorgram/internal/config"
	"github.com/zhlearn/anchorgram/internal/corpus"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // optional config file path
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the anchorgram CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "anchorgram",
		Short: "Anchor-driven pattern fingerprinting for Chinese text",
		Long: `Anchorgram learns grammatical patterns from Chinese corpora.

It freezes a statistically validated set of structural anchor words,
extracts deterministic pattern keys from tokenized sentences, aggregates
corpus-wide and per-learner statistics, and scores sentence similarity
by shared rare patterns.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			setupLogging(opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to YAML config file")

	cmd.AddCommand(NewCandidatesCommand(opts))
	cmd.AddCommand(NewAnchorsCommand(opts))
	cmd.AddCommand(NewPriorCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewSimilarCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// LoadConfig resolves the effective configuration: the defaults, or the
// file given by --config merged over them.
func (o *RootOptions) LoadConfig() (config.Config, error) {
	if o.Config == "" {
		return config.Default(), nil
	}
	return config.Load(o.Config)
}

// Formatter builds an output formatter bound to the command's streams.
func (o *RootOptions) Formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// corpusSources wraps corpus file paths as scan sources.
func corpusSources(paths []string, tok corpus.Tokenizer) []corpus.Source {
	sources := make([]corpus.Source, len(paths))
	for i, path := range paths {
		sources[i] = &corpus.FileSource{Path: path, Tok: tok}
	}
	return sources
}
