package stats

import (
	"crypto/sha256"
	"math"
	"sort"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/extract"
	"github.com/zhlearn/anchorgram/internal/pattern"
)

// digestCap bounds the per-key sentence digest set used to count
// distinct sentences. Far above any sensible diversity threshold;
// beyond it the distinct count saturates rather than growing the set.
const digestCap = 64

// PersonalRecord tracks one pattern key in a learner's exposure history.
type PersonalRecord struct {
	Family pattern.Family

	// CountSeen is the total number of times the key was produced,
	// one per occurrence, so a sentence using a pattern twice counts
	// twice.
	CountSeen int64

	// DistinctSentenceCount is the number of distinct sentences the key
	// was seen in, measured by sentence digest.
	DistinctSentenceCount int64

	// Emerged is true once the key has crossed the emergence
	// thresholds. Monotonic: never reset by later observations.
	Emerged bool

	// LastSeenOrder is the 1-based ingest ordinal of the most recent
	// sentence containing the key.
	LastSeenOrder int64
}

// Mastery is a soft per-key exposure score, log-scaled so early
// encounters matter most.
func (r *PersonalRecord) Mastery() float64 {
	return math.Log1p(float64(r.CountSeen))
}

// Personal is a learner's pattern exposure state. It is bound to the
// anchor set fingerprint its keys were extracted under; mixing sets
// would make keys incomparable.
//
// Not safe for concurrent use. Ingest is inherently ordered (the
// LastSeenOrder ordinal is the ingest sequence), so callers serialize.
type Personal struct {
	fingerprint string
	thresholds  EmergenceThresholds
	order       int64
	records     map[string]*PersonalRecord
	digests     map[string]map[[sha256.Size]byte]bool
}

// NewPersonal creates an empty exposure state.
func NewPersonal(fingerprint string, thresholds EmergenceThresholds) (*Personal, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Personal{
		fingerprint: fingerprint,
		thresholds:  thresholds,
		records:     make(map[string]*PersonalRecord),
		digests:     make(map[string]map[[sha256.Size]byte]bool),
	}, nil
}

// RestorePersonal rebuilds state from persisted records, resuming the
// ingest ordinal at order. The per-key digest sets are not persisted, so
// a sentence re-ingested after a restore counts as distinct again; the
// distinct count remains a valid lower-bound-turned-estimate and
// emergence stays monotonic.
func RestorePersonal(fingerprint string, thresholds EmergenceThresholds, records map[string]*PersonalRecord, order int64) (*Personal, error) {
	p, err := NewPersonal(fingerprint, thresholds)
	if err != nil {
		return nil, err
	}
	if order < 0 {
		return nil, anchor.NewConfigError("order", "must be >= 0, got %d", order)
	}
	p.order = order
	for key, rec := range records {
		clone := *rec
		p.records[key] = &clone
	}
	return p, nil
}

// Fingerprint returns the anchor set fingerprint this state is bound to.
func (p *Personal) Fingerprint() string { return p.fingerprint }

// Order returns the number of sentences ingested so far.
func (p *Personal) Order() int64 { return p.order }

// Len returns the number of distinct keys seen.
func (p *Personal) Len() int { return len(p.records) }

// Record returns the exposure record for a key.
func (p *Personal) Record(key string) (*PersonalRecord, bool) {
	rec, ok := p.records[key]
	return rec, ok
}

// Keys returns all seen keys in sorted order.
func (p *Personal) Keys() []string {
	keys := make([]string, 0, len(p.records))
	for k := range p.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ObserveSentence folds one ingested sentence's extracted occurrences
// into the exposure state. The sentence tokens feed the digest used for
// the distinct sentence counts.
func (p *Personal) ObserveSentence(tokens []string, patterns []extract.Pattern) {
	p.order++
	if len(patterns) == 0 {
		return
	}
	digest := sentenceDigest(tokens)

	for _, pat := range patterns {
		key := pat.Key.String()
		rec := p.records[key]
		if rec == nil {
			rec = &PersonalRecord{Family: pat.Key.Family}
			p.records[key] = rec
		}
		rec.CountSeen++
		rec.LastSeenOrder = p.order
		p.noteDigest(key, rec, digest)
		if !rec.Emerged && p.thresholds.emerged(rec.CountSeen, rec.DistinctSentenceCount) {
			rec.Emerged = true
		}
	}
}

func (p *Personal) noteDigest(key string, rec *PersonalRecord, digest [sha256.Size]byte) {
	box := p.digests[key]
	if box == nil {
		box = make(map[[sha256.Size]byte]bool)
		p.digests[key] = box
	}
	if box[digest] {
		return
	}
	if len(box) >= digestCap {
		// Saturated. The count stays a lower bound; the emergence
		// thresholds sit orders of magnitude below the cap.
		return
	}
	box[digest] = true
	rec.DistinctSentenceCount++
}

func sentenceDigest(tokens []string) [sha256.Size]byte {
	h := sha256.New()
	for _, tok := range tokens {
		h.Write([]byte(tok))
		h.Write([]byte{0})
	}
	var digest [sha256.Size]byte
	h.Sum(digest[:0])
	return digest
}

// EmergedKeys returns the sorted keys that have crossed the emergence
// thresholds.
func (p *Personal) EmergedKeys() []string {
	var keys []string
	for k, rec := range p.records {
		if rec.Emerged {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// CoverageMass is the corpus-wide pattern probability mass the learner's
// emerged patterns account for: the sum of p_global over emerged keys.
// Keys absent from the prior contribute nothing. Zero for an empty
// emerged set, and monotone under further ingestion since emergence
// never reverts.
func (p *Personal) CoverageMass(global *Global) (float64, error) {
	if global.Fingerprint() != p.fingerprint {
		return 0, anchor.NewMismatchError("coverage mass", p.fingerprint, global.Fingerprint())
	}

	var covered float64
	for key, rec := range p.records {
		if !rec.Emerged {
			continue
		}
		if g, ok := global.Record(key); ok {
			covered += g.PGlobal
		}
	}
	return covered, nil
}
