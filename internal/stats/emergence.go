package stats

import "github.com/zhlearn/anchorgram/internal/anchor"

// EmergenceThresholds decide when a pattern counts as part of a
// learner's productive repertoire. Both conditions must hold: repetition
// alone can be one memorized sentence, diversity alone can be two
// one-off encounters.
type EmergenceThresholds struct {
	// MinCount is the minimum total times seen.
	MinCount int64 `yaml:"min_count" json:"min_count"`

	// MinDiversity is the minimum number of distinct sentences the
	// pattern was seen in.
	MinDiversity int64 `yaml:"min_diversity" json:"min_diversity"`
}

// DefaultEmergenceThresholds requires three sightings across at least
// two distinct sentences.
func DefaultEmergenceThresholds() EmergenceThresholds {
	return EmergenceThresholds{MinCount: 3, MinDiversity: 2}
}

// Validate checks the thresholds.
func (e EmergenceThresholds) Validate() error {
	if e.MinCount < 1 {
		return anchor.NewConfigError("min_count", "must be >= 1, got %d", e.MinCount)
	}
	if e.MinDiversity < 1 {
		return anchor.NewConfigError("min_diversity", "must be >= 1, got %d", e.MinDiversity)
	}
	return nil
}

// emerged reports whether a record's counters cross both thresholds.
// Counters only grow, so once true this stays true.
func (e EmergenceThresholds) emerged(countSeen, distinctSentences int64) bool {
	return countSeen >= e.MinCount && distinctSentences >= e.MinDiversity
}
