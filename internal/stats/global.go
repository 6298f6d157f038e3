package stats

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/corpus"
	"github.com/zhlearn/anchorgram/internal/extract"
	"github.com/zhlearn/anchorgram/internal/pattern"
)

// DefaultRealizationCap bounds the distinct realization samples kept per
// key. Samples are inspection material; the cap keeps prior stores from
// ballooning on high-frequency keys.
const DefaultRealizationCap = 30

// GlobalRecord is the corpus-wide statistics record for one pattern key.
type GlobalRecord struct {
	Family pattern.Family `json:"family"`

	// CountSentences is the number of distinct sentences containing the
	// key at least once (the key's document frequency).
	CountSentences int64 `json:"count_sentences"`

	// CountOccurrences is the total occurrence count.
	CountOccurrences int64 `json:"count_occurrences"`

	// Realizations is a deduplicated, capped sample of literal spans
	// that produced the key, in first-seen order.
	Realizations []string `json:"realizations,omitempty"`

	// PGlobal is CountSentences / total sentences. Zero until finalize.
	PGlobal float64 `json:"p_global"`

	// LogFreq is log1p(CountOccurrences), a stable frequency score for
	// downstream ranking. Zero until finalize.
	LogFreq float64 `json:"log_freq"`
}

// GlobalAggregator accumulates corpus-wide pattern statistics.
//
// Aggregation is associative and commutative per partial batch: two
// aggregators built over disjoint corpus shards merge by addition into
// the same totals a single sequential scan would produce. Derived values
// (PGlobal, LogFreq) are only computed at finalize, after all merges.
type GlobalAggregator struct {
	fingerprint    string
	cap            int
	totalSentences int64
	records        map[string]*GlobalRecord
	seen           map[string]map[string]bool
}

// NewGlobalAggregator creates an aggregator bound to the extractor's
// anchor set fingerprint. realizationCap <= 0 disables sampling.
func NewGlobalAggregator(fingerprint string, realizationCap int) *GlobalAggregator {
	return &GlobalAggregator{
		fingerprint: fingerprint,
		cap:         realizationCap,
		records:     make(map[string]*GlobalRecord),
		seen:        make(map[string]map[string]bool),
	}
}

// Fingerprint returns the anchor set fingerprint this aggregate is bound to.
func (g *GlobalAggregator) Fingerprint() string { return g.fingerprint }

// ObserveSentence folds one sentence's extracted occurrences in.
// A sentence with no patterns still counts toward the total: p_global is
// a fraction of all scanned sentences, not of pattern-bearing ones.
func (g *GlobalAggregator) ObserveSentence(patterns []extract.Pattern) {
	g.totalSentences++

	inSentence := make(map[string]bool)
	for _, p := range patterns {
		key := p.Key.String()
		rec := g.records[key]
		if rec == nil {
			rec = &GlobalRecord{Family: p.Key.Family}
			g.records[key] = rec
		}
		rec.CountOccurrences++
		if !inSentence[key] {
			inSentence[key] = true
			rec.CountSentences++
		}
		g.sampleRealization(key, rec, p.Realization)
	}
}

func (g *GlobalAggregator) sampleRealization(key string, rec *GlobalRecord, realization string) {
	if g.cap <= 0 || realization == "" || len(rec.Realizations) >= g.cap {
		return
	}
	box := g.seen[key]
	if box == nil {
		box = make(map[string]bool)
		g.seen[key] = box
	}
	if box[realization] {
		return
	}
	box[realization] = true
	rec.Realizations = append(rec.Realizations, realization)
}

// Merge folds other into g. Both sides must be bound to the same anchor
// set fingerprint; merging across sets would mix incomparable keys.
func (g *GlobalAggregator) Merge(other *GlobalAggregator) error {
	if other.fingerprint != g.fingerprint {
		return anchor.NewMismatchError("global aggregate merge", g.fingerprint, other.fingerprint)
	}
	g.totalSentences += other.totalSentences
	for key, theirs := range other.records {
		rec := g.records[key]
		if rec == nil {
			rec = &GlobalRecord{Family: theirs.Family}
			g.records[key] = rec
		}
		rec.CountSentences += theirs.CountSentences
		rec.CountOccurrences += theirs.CountOccurrences
		for _, r := range theirs.Realizations {
			g.sampleRealization(key, rec, r)
		}
	}
	return nil
}

// Finalize computes the derived per-key values and freezes the aggregate
// into a read-only Global.
func (g *GlobalAggregator) Finalize() *Global {
	for _, rec := range g.records {
		if g.totalSentences > 0 {
			rec.PGlobal = float64(rec.CountSentences) / float64(g.totalSentences)
		}
		rec.LogFreq = math.Log1p(float64(rec.CountOccurrences))
	}
	return NewGlobal(g.fingerprint, g.totalSentences, g.records)
}

// Global is the read-only corpus-wide pattern statistics interface
// consumed by the similarity scorer and the emergence coverage report.
type Global struct {
	fingerprint    string
	totalSentences int64
	records        map[string]*GlobalRecord
}

// NewGlobal wraps finalized records. Used by the aggregator and by the
// store when loading a persisted prior.
func NewGlobal(fingerprint string, totalSentences int64, records map[string]*GlobalRecord) *Global {
	if records == nil {
		records = make(map[string]*GlobalRecord)
	}
	return &Global{
		fingerprint:    fingerprint,
		totalSentences: totalSentences,
		records:        records,
	}
}

// Fingerprint returns the anchor set fingerprint the prior was built under.
func (s *Global) Fingerprint() string { return s.fingerprint }

// TotalSentences returns the number of sentences scanned.
func (s *Global) TotalSentences() int64 { return s.totalSentences }

// Len returns the number of distinct keys.
func (s *Global) Len() int { return len(s.records) }

// Record returns the stats record for a key.
func (s *Global) Record(key string) (*GlobalRecord, bool) {
	rec, ok := s.records[key]
	return rec, ok
}

// DF returns the key's document frequency (sentences containing it).
func (s *Global) DF(key string) (int64, bool) {
	rec, ok := s.records[key]
	if !ok {
		return 0, false
	}
	return rec.CountSentences, true
}

// Keys returns all keys in sorted order, for deterministic iteration.
func (s *Global) Keys() []string {
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildGlobal scans corpus shards with the extractor and produces the
// finalized global prior. Workers hold private aggregators; partials
// merge by addition afterwards. Shard failures are logged, counted and
// surfaced, never hidden.
func BuildGlobal(ctx context.Context, extractor *extract.Extractor, shards []corpus.Source, workers, realizationCap int) (*Global, []corpus.Skipped, error) {
	if len(shards) == 0 {
		return nil, nil, anchor.NewConfigError("corpus", "no corpus shards given")
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(shards) {
		workers = len(shards)
	}

	type outcome struct {
		partial *GlobalAggregator
		skipped *corpus.Skipped
	}

	jobs := make(chan corpus.Source)
	outcomes := make(chan outcome, len(shards))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for shard := range jobs {
				partial := NewGlobalAggregator(extractor.Fingerprint(), realizationCap)
				err := shard.Scan(ctx, func(sent corpus.Sentence) error {
					partial.ObserveSentence(extractor.Extract(sent.Tokens))
					return nil
				})
				if err != nil {
					if ctx.Err() != nil {
						outcomes <- outcome{}
						continue
					}
					slog.Warn("skipping corpus shard", "shard", shard.Name(), "error", err)
					outcomes <- outcome{skipped: &corpus.Skipped{Shard: shard.Name(), Err: err}}
					continue
				}
				outcomes <- outcome{partial: partial}
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

	merged := NewGlobalAggregator(extractor.Fingerprint(), realizationCap)
	var skipped []corpus.Skipped
	for o := range outcomes {
		if o.partial != nil {
			if err := merged.Merge(o.partial); err != nil {
				return nil, nil, err
			}
		}
		if o.skipped != nil {
			skipped = append(skipped, *o.skipped)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Shard < skipped[j].Shard })
	return merged.Finalize(), skipped, nil
}
