// Package config loads the engine configuration file: YAML for the
// values, a CUE schema for the shape.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/corpus"
	"github.com/zhlearn/anchorgram/internal/extract"
	"github.com/zhlearn/anchorgram/internal/stats"
)

//go:embed schema.cue
var schemaSource string

// Tokenizer names accepted in the config file.
const (
	TokenizerWhitespace = "whitespace"
	TokenizerRune       = "rune"
)

// Config is the full engine configuration. Every field has a working
// default; a config file overrides selectively.
type Config struct {
	// Tokenizer picks how corpus lines are split into tokens.
	Tokenizer string `yaml:"tokenizer"`

	// Workers bounds corpus scan parallelism.
	Workers int `yaml:"workers"`

	// RealizationCap bounds the realization samples kept per key.
	RealizationCap int `yaml:"realization_cap"`

	Selector  anchor.SelectorConfig     `yaml:"selector"`
	Validator anchor.ValidatorConfig    `yaml:"validator"`
	Extract   extract.Config            `yaml:"extract"`
	Emergence stats.EmergenceThresholds `yaml:"emergence"`
}

// Default is the configuration used when no file is given. The POS
// whitelist covers the closed-class tags of the common Chinese tagsets:
// particles, prepositions, conjunctions, modals, interjections, adverbs.
func Default() Config {
	return Config{
		Tokenizer:      TokenizerWhitespace,
		Workers:        4,
		RealizationCap: stats.DefaultRealizationCap,
		Selector: anchor.SelectorConfig{
			AcceptedTags: []string{"u", "p", "c", "y", "e", "d"},
			MaxTokenLen:  4,
		},
		Validator: anchor.ValidatorConfig{
			Thresholds: anchor.Thresholds{
				MinDF:      5,
				MinDFRate:  0.001,
				MinEntropy: 1.0,
			},
			Weights: anchor.DefaultScoreWeights(),
			TopK:    200,
		},
		Extract:   extract.DefaultConfig(),
		Emergence: stats.DefaultEmergenceThresholds(),
	}
}

// Validate checks the configuration, delegating to the per-component
// validators.
func (c Config) Validate() error {
	switch c.Tokenizer {
	case TokenizerWhitespace, TokenizerRune:
	default:
		return anchor.NewConfigError("tokenizer", "unknown tokenizer %q", c.Tokenizer)
	}
	if c.Workers < 1 {
		return anchor.NewConfigError("workers", "must be >= 1, got %d", c.Workers)
	}
	if c.RealizationCap < 0 {
		return anchor.NewConfigError("realization_cap", "must be >= 0, got %d", c.RealizationCap)
	}
	if err := c.Selector.Validate(); err != nil {
		return err
	}
	if err := c.Validator.Validate(); err != nil {
		return err
	}
	if err := c.Extract.Validate(); err != nil {
		return err
	}
	return c.Emergence.Validate()
}

// BuildTokenizer returns the configured tokenizer. Call after Validate.
func (c Config) BuildTokenizer() corpus.Tokenizer {
	if c.Tokenizer == TokenizerRune {
		return corpus.RuneTokenizer{}
	}
	return corpus.WhitespaceTokenizer{}
}

// Load reads a YAML config file, checks its shape against the schema
// and merges it over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse merges raw YAML over the defaults. The filename only labels
// schema error positions.
func Parse(filename string, data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := checkSchema(filename, data); err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, anchor.NewConfigError("config", "parse %s: %v", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// checkSchema unifies the YAML document with the closed #Config
// definition. Unknown fields and type mismatches surface here with file
// positions, before any value reaches the Go structs.
func checkSchema(filename string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return fmt.Errorf("config schema has no #Config definition")
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return anchor.NewConfigError("config", "parse %s: %v", filename, err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return anchor.NewConfigError("config", "parse %s: %v", filename, err)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(); err != nil {
		return anchor.NewConfigError("config", "%v", err)
	}
	return nil
}
