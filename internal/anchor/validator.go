package anchor

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/zhlearn/anchorgram/internal/corpus"
)

// Neighbor sentinels for sentence boundaries. A candidate at the edge of
// a sentence still contributes one neighbor observation.
const (
	neighborBOS = "<BOS>"
	neighborEOS = "<EOS>"
)

// Thresholds are the hard filters applied to every candidate after the
// corpus scan. A candidate failing any one of them is discarded before
// scoring.
type Thresholds struct {
	// MinDF is the minimum number of distinct sentences containing the
	// candidate.
	MinDF int64 `yaml:"min_df" json:"min_df"`

	// MinDFRate is the minimum df / total_sentences ratio.
	MinDFRate float64 `yaml:"min_df_rate" json:"min_df_rate"`

	// MinEntropy is the minimum neighbor entropy in bits. Low entropy
	// means the token keeps the same few neighbors: a content word, not
	// structural glue.
	MinEntropy float64 `yaml:"min_entropy" json:"min_entropy"`
}

// ScoreWeights combine the normalized statistics into a ranking score:
//
//	score = DFRate*df_rate + Entropy*H + LogTF*log1p(tf)
//
// The combination is monotonic in each statistic; the exact weights are
// tunable, not contractual.
type ScoreWeights struct {
	DFRate  float64 `yaml:"df_rate" json:"df_rate"`
	Entropy float64 `yaml:"entropy" json:"entropy"`
	LogTF   float64 `yaml:"log_tf" json:"log_tf"`
}

// DefaultScoreWeights favor distribution over context diversity, with
// log-scaled term frequency as a tie-breaker.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{DFRate: 2.0, Entropy: 0.25, LogTF: 0.10}
}

// ValidatorConfig configures a validation run.
type ValidatorConfig struct {
	Thresholds Thresholds   `yaml:"thresholds" json:"thresholds"`
	Weights    ScoreWeights `yaml:"weights" json:"weights"`

	// TopK is the frozen anchor set size. Must be positive.
	TopK int `yaml:"top_k" json:"top_k"`

	// KeepDiscarded retains stats for candidates that failed the hard
	// filters, for threshold tuning and debugging.
	KeepDiscarded bool `yaml:"keep_discarded" json:"keep_discarded"`
}

// Validate checks the validator configuration.
func (c ValidatorConfig) Validate() error {
	if c.TopK < 1 {
		return NewConfigError("top_k", "must be >= 1, got %d", c.TopK)
	}
	if c.Thresholds.MinDF < 0 {
		return NewConfigError("min_df", "must be >= 0, got %d", c.Thresholds.MinDF)
	}
	if c.Thresholds.MinDFRate < 0 || c.Thresholds.MinDFRate > 1 {
		return NewConfigError("min_df_rate", "must be in [0,1], got %g", c.Thresholds.MinDFRate)
	}
	if c.Thresholds.MinEntropy < 0 {
		return NewConfigError("min_entropy", "must be >= 0, got %g", c.Thresholds.MinEntropy)
	}
	if c.Weights.DFRate < 0 || c.Weights.Entropy < 0 || c.Weights.LogTF < 0 {
		return NewConfigError("score_weights", "weights must be >= 0")
	}
	return nil
}

// Stats is the per-anchor statistics record produced by validation.
// Frozen alongside the anchor set; never mutated afterwards.
type Stats struct {
	DocumentFrequency int64   `json:"df"`
	TermFrequency     int64   `json:"tf"`
	DFRate            float64 `json:"df_rate"`
	NeighborEntropy   float64 `json:"entropy"`
	Score             float64 `json:"score"`
}

// Result is the output of a validation run: the frozen anchor set plus
// audit statistics.
type Result struct {
	Set            *Set
	Stats          map[string]Stats
	Discarded      map[string]Stats
	TotalSentences int64
	Skipped        []corpus.Skipped
}

// counters is one worker's private partial scan state. Workers never
// share counters; partials merge by addition after all scans finish.
type counters struct {
	sentences int64
	df        map[string]int64
	tf        map[string]int64
	neighbors map[string]map[string]int64
}

func newCounters(candidates map[string]bool) *counters {
	c := &counters{
		df:        make(map[string]int64, len(candidates)),
		tf:        make(map[string]int64, len(candidates)),
		neighbors: make(map[string]map[string]int64, len(candidates)),
	}
	return c
}

func (c *counters) observe(candidates map[string]bool, tokens []string) {
	c.sentences++

	seen := make(map[string]bool)
	for i, tok := range tokens {
		if !candidates[tok] {
			continue
		}
		if !seen[tok] {
			seen[tok] = true
			c.df[tok]++
		}
		c.tf[tok]++

		left := neighborBOS
		if i > 0 {
			left = tokens[i-1]
		}
		right := neighborEOS
		if i+1 < len(tokens) {
			right = tokens[i+1]
		}
		nb := c.neighbors[tok]
		if nb == nil {
			nb = make(map[string]int64)
			c.neighbors[tok] = nb
		}
		nb[left]++
		nb[right]++
	}
}

// merge folds other into c. Addition for frequencies, multiset union for
// neighbor distributions. Entropy is NOT computed here: it does not
// compose linearly across partials and must wait for the full merge.
func (c *counters) merge(other *counters) {
	c.sentences += other.sentences
	for tok, n := range other.df {
		c.df[tok] += n
	}
	for tok, n := range other.tf {
		c.tf[tok] += n
	}
	for tok, dist := range other.neighbors {
		nb := c.neighbors[tok]
		if nb == nil {
			nb = make(map[string]int64, len(dist))
			c.neighbors[tok] = nb
		}
		for neighbor, n := range dist {
			nb[neighbor] += n
		}
	}
}

// entropyBits is the Shannon entropy (base 2) of a count distribution.
func entropyBits(dist map[string]int64) float64 {
	var total int64
	for _, n := range dist {
		total += n
	}
	if total <= 0 {
		return 0
	}
	h := 0.0
	for _, n := range dist {
		if n <= 0 {
			continue
		}
		p := float64(n) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// Validate scores candidates against a corpus and freezes the top-K
// anchor set.
//
// The scan runs one worker per shard up to workers, each with private
// counters; a single merge step combines partials before any entropy or
// score is computed. Identical corpus, thresholds and K always yield an
// identical anchor set regardless of shard order or worker count: counts
// merge commutatively and the final sort breaks score ties on the token.
func Validate(ctx context.Context, candidates []string, shards []corpus.Source, workers int, cfg ValidatorConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, NewConfigError("candidates", "candidate list cannot be empty")
	}
	if len(shards) == 0 {
		return nil, NewConfigError("corpus", "no corpus shards given")
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(shards) {
		workers = len(shards)
	}

	// Dedup while preserving order; order is the final tie-break domain.
	candSet := make(map[string]bool, len(candidates))
	ordered := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		if cand == "" || candSet[cand] {
			continue
		}
		candSet[cand] = true
		ordered = append(ordered, cand)
	}

	merged, skipped, err := scanShards(ctx, candSet, shards, workers)
	if err != nil {
		return nil, err
	}
	if merged.sentences == 0 {
		return nil, NewConfigError("corpus", "corpus is empty after scanning %d shard(s)", len(shards))
	}

	result := &Result{
		Stats:          make(map[string]Stats),
		TotalSentences: merged.sentences,
		Skipped:        skipped,
	}
	if cfg.KeepDiscarded {
		result.Discarded = make(map[string]Stats)
	}

	type scored struct {
		token string
		stats Stats
	}
	var survivors []scored

	for _, tok := range ordered {
		df := merged.df[tok]
		tf := merged.tf[tok]
		st := Stats{
			DocumentFrequency: df,
			TermFrequency:     tf,
			DFRate:            float64(df) / float64(merged.sentences),
			NeighborEntropy:   entropyBits(merged.neighbors[tok]),
		}
		st.Score = cfg.Weights.DFRate*st.DFRate +
			cfg.Weights.Entropy*st.NeighborEntropy +
			cfg.Weights.LogTF*math.Log1p(float64(tf))

		if df < cfg.Thresholds.MinDF ||
			st.DFRate < cfg.Thresholds.MinDFRate ||
			st.NeighborEntropy < cfg.Thresholds.MinEntropy {
			if cfg.KeepDiscarded {
				result.Discarded[tok] = st
			}
			continue
		}
		survivors = append(survivors, scored{token: tok, stats: st})
	}

	if len(survivors) == 0 {
		return nil, NewConfigError("thresholds", "no candidate survived the hard filters")
	}

	// Score descending, token ascending for equal scores. The secondary
	// key makes the ordering total, which makes the frozen set
	// deterministic.
	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].stats.Score != survivors[j].stats.Score {
			return survivors[i].stats.Score > survivors[j].stats.Score
		}
		return survivors[i].token < survivors[j].token
	})

	if len(survivors) > cfg.TopK {
		if cfg.KeepDiscarded {
			for _, s := range survivors[cfg.TopK:] {
				result.Discarded[s.token] = s.stats
			}
		}
		survivors = survivors[:cfg.TopK]
	}

	kept := make([]string, len(survivors))
	for i, s := range survivors {
		kept[i] = s.token
		result.Stats[s.token] = s.stats
	}

	set, err := NewSet(kept)
	if err != nil {
		return nil, err
	}
	result.Set = set
	return result, nil
}

// scanShards fans shards out to workers and merges their partials.
// Shard-level failures are logged and reported as skips; the scan
// continues over the remaining shards.
func scanShards(ctx context.Context, candidates map[string]bool, shards []corpus.Source, workers int) (*counters, []corpus.Skipped, error) {
	type shardOutcome struct {
		partial *counters
		skipped *corpus.Skipped
	}

	jobs := make(chan corpus.Source)
	outcomes := make(chan shardOutcome, len(shards))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for shard := range jobs {
				partial := newCounters(candidates)
				err := shard.Scan(ctx, func(sent corpus.Sentence) error {
					partial.observe(candidates, sent.Tokens)
					return nil
				})
				if err != nil {
					if ctx.Err() != nil {
						outcomes <- shardOutcome{}
						continue
					}
					slog.Warn("skipping corpus shard", "shard", shard.Name(), "error", err)
					outcomes <- shardOutcome{skipped: &corpus.Skipped{Shard: shard.Name(), Err: err}}
					continue
				}
				outcomes <- shardOutcome{partial: partial}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, shard := range shards {
			select {
			case jobs <- shard:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	merged := newCounters(candidates)
	var skipped []corpus.Skipped
	for outcome := range outcomes {
		if outcome.partial != nil {
			merged.merge(outcome.partial)
		}
		if outcome.skipped != nil {
			skipped = append(skipped, *outcome.skipped)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// Deterministic skip report ordering.
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Shard < skipped[j].Shard })
	return merged, skipped, nil
}
