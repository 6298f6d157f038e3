// Package score compares sentences by their extracted pattern key sets.
package score

import (
	"math"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/pattern"
	"github.com/zhlearn/anchorgram/internal/stats"
)

// DFLookup supplies document frequencies for IDF weighting. The global
// prior satisfies it; tests can supply fixed tables.
type DFLookup interface {
	// DF returns the number of sentences containing the key, and whether
	// the key is known at all.
	DF(key string) (int64, bool)

	// TotalSentences is the corpus size the frequencies were counted over.
	TotalSentences() int64
}

// idf weights a key by its rarity in the corpus. Unknown keys get the
// maximum weight: a key the prior has never seen is at least as rare as
// a key seen once.
func idf(prior DFLookup, key string) float64 {
	total := prior.TotalSentences()
	if total < 1 {
		total = 1
	}
	df, ok := prior.DF(key)
	if !ok || df < 1 {
		df = 1
	}
	return math.Log(float64(total) / float64(df))
}

// WeightedJaccard is the IDF-weighted Jaccard similarity of two pattern
// key sets, as produced by the extractor's KeySet:
//
//	J = sum_{k in A∩B} w(k) / sum_{k in A∪B} w(k)
//
// Sharing a rare pattern means more than sharing a ubiquitous one. Two
// empty sets are identical by convention (J = 1). The result is always
// in [0, 1] and J(A, A) = 1 for any A.
func WeightedJaccard(a, b map[string]pattern.Key, prior DFLookup) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	var inter, union float64
	for key := range a {
		w := idf(prior, key)
		union += w
		if _, ok := b[key]; ok {
			inter += w
		}
	}
	for key := range b {
		if _, ok := a[key]; ok {
			continue
		}
		union += idf(prior, key)
	}
	if union == 0 {
		// Every key carries zero weight (df == total for all of them).
		// The sets still either match or they don't.
		if keysEqual(a, b) {
			return 1.0
		}
		return 0.0
	}
	return inter / union
}

func keysEqual(a, b map[string]pattern.Key) bool {
	if len(a) != len(b) {
		return false
	}
	for key := range a {
		if _, ok := b[key]; !ok {
			return false
		}
	}
	return true
}

// SentenceSimilarity scores two key sets against a global prior after
// checking both were extracted under the prior's anchor set. Comparing
// keys across anchor sets is meaningless, so the fingerprint check is
// not optional here.
func SentenceSimilarity(a, b map[string]pattern.Key, global *stats.Global, fingerprint string) (float64, error) {
	if global.Fingerprint() != fingerprint {
		return 0, anchor.NewMismatchError("sentence similarity", fingerprint, global.Fingerprint())
	}
	return WeightedJaccard(a, b, global), nil
}
