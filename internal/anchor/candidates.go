package anchor

import "unicode/utf8"

// LexiconEntry is one (token, POS tags) pair from an external lexicon.
// Entries with no tags, or only unknown tags, are skipped during
// selection rather than treated as errors: lexicons are messy.
type LexiconEntry struct {
	Token string   `json:"token"`
	POS   []string `json:"pos"`
}

// SelectorConfig configures candidate selection.
type SelectorConfig struct {
	// AcceptedTags is the POS-tag whitelist (e.g. u, p, c, y, e, d for
	// particles, prepositions, conjunctions, modals, interjections,
	// adverbs). Must be non-empty.
	AcceptedTags []string `yaml:"accepted_tags" json:"accepted_tags"`

	// MaxTokenLen is the maximum candidate length in runes, not bytes.
	MaxTokenLen int `yaml:"max_token_len" json:"max_token_len"`
}

// Validate checks the selector configuration.
func (c SelectorConfig) Validate() error {
	if len(c.AcceptedTags) == 0 {
		return NewConfigError("accepted_tags", "accepted POS tag set cannot be empty")
	}
	for _, tag := range c.AcceptedTags {
		if tag == "" {
			return NewConfigError("accepted_tags", "POS tag cannot be empty")
		}
	}
	if c.MaxTokenLen < 1 {
		return NewConfigError("max_token_len", "must be >= 1, got %d", c.MaxTokenLen)
	}
	return nil
}

// SelectCandidates filters a lexicon down to an unranked anchor candidate
// list: tokens whose tag set intersects the accepted tags and whose rune
// length is within bounds.
//
// The output is deduplicated and preserves lexicon order, which for
// frequency-ranked lexicons keeps the most frequent candidates first.
// No scoring happens here; that is the validator's job.
func SelectCandidates(entries []LexiconEntry, cfg SelectorConfig) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	accepted := make(map[string]bool, len(cfg.AcceptedTags))
	for _, tag := range cfg.AcceptedTags {
		accepted[tag] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.Token == "" || seen[e.Token] {
			continue
		}
		if utf8.RuneCountInString(e.Token) > cfg.MaxTokenLen {
			continue
		}
		matched := false
		for _, tag := range e.POS {
			if accepted[tag] {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		seen[e.Token] = true
		out = append(out, e.Token)
	}
	return out, nil
}
