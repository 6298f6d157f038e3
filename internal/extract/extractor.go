package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/pattern"
)

// Structural placeholder markers used inside signatures.
const (
	markSpan   = "<SPAN>"
	markNumber = "<NUM>"
	markChar1  = "<C1>"
	markChar2  = "<C2>"
	markWord   = "<W>"
	markOther  = "<X>"
	markEnd    = "<END>"
)

var numberRE = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Pattern is one extracted occurrence: a canonical key plus the literal
// token span that produced it. The realization is inspection material
// only and is never part of key identity.
type Pattern struct {
	Key         pattern.Key
	Realization string
}

// Extractor converts tokenized sentences into pattern occurrences for
// every enabled family.
//
// Extraction is a pure function of (anchor set, config, tokens): the
// extractor holds no mutable state, so one instance is safe for
// concurrent use, and identical inputs always produce identical keys.
type Extractor struct {
	anchors *anchor.Set
	cfg     Config
	enabled map[pattern.Family]bool
}

// New builds an Extractor over a frozen anchor set.
func New(anchors *anchor.Set, cfg Config) (*Extractor, error) {
	if anchors == nil {
		return nil, anchor.NewConfigError("anchors", "anchor set is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{anchors: anchors, cfg: cfg, enabled: cfg.enabled()}, nil
}

// Fingerprint returns the fingerprint of the underlying anchor set.
// Aggregators copy it onto their output so stores stay comparable.
func (e *Extractor) Fingerprint() string {
	return e.anchors.Fingerprint()
}

// Config returns the extraction configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// anchorOcc is one anchor occurrence: the token and its position.
type anchorOcc struct {
	tok string
	pos int
}

// occurrences returns the left-to-right anchor occurrence sequence.
func (e *Extractor) occurrences(tokens []string) []anchorOcc {
	var seq []anchorOcc
	for i, tok := range tokens {
		if e.anchors.Contains(tok) {
			seq = append(seq, anchorOcc{tok: tok, pos: i})
		}
	}
	return seq
}

// Extract produces every pattern occurrence of the enabled families.
//
// The result may repeat keys (one entry per occurrence); use KeySet for
// the deduplicated sentence-level key set. An empty sentence yields an
// empty result. A sentence with no anchors yields only the skeleton
// (its pure shape signature); the anchor-dependent families produce
// nothing, which is a valid zero-pattern outcome, not an error.
func (e *Extractor) Extract(tokens []string) []Pattern {
	if len(tokens) == 0 {
		return nil
	}
	seq := e.occurrences(tokens)
	if len(seq) == 0 {
		// The skeleton is defined for any non-empty sentence: with no
		// anchors it degenerates to the pure shape signature. Every
		// other family needs at least one anchor.
		if e.enabled[pattern.FamilySkeleton] {
			return []Pattern{e.skeleton(tokens, seq)}
		}
		return nil
	}

	var out []Pattern
	if e.enabled[pattern.FamilyTokenNgram] {
		out = append(out, e.tokenNgrams(tokens)...)
	}
	if e.enabled[pattern.FamilyAnchorWindow] {
		out = append(out, e.anchorWindows(tokens, seq)...)
	}
	if e.enabled[pattern.FamilyAnchorPair] {
		out = append(out, e.anchorPairs(tokens, seq)...)
	}
	if e.enabled[pattern.FamilyAnchorSequence] {
		out = append(out, e.anchorSequence(seq)...)
	}
	if e.enabled[pattern.FamilySkeleton] {
		out = append(out, e.skeleton(tokens, seq))
	}
	if e.enabled[pattern.FamilyCompressedSkeleton] {
		if p, ok := e.compressedSkeleton(tokens, seq); ok {
			out = append(out, p)
		}
	}
	if e.enabled[pattern.FamilyAnchorSpan] {
		out = append(out, e.anchorSpans(tokens, false)...)
	}
	if e.enabled[pattern.FamilySpanSignature] {
		out = append(out, e.anchorSpans(tokens, true)...)
	}
	if e.enabled[pattern.FamilyAnchorSkip2] || e.enabled[pattern.FamilyAnchorSkip3] {
		out = append(out, e.anchorSkipgrams(seq)...)
	}
	return out
}

// KeySet extracts and deduplicates to the sentence-level key set, keyed
// by canonical string form.
func (e *Extractor) KeySet(tokens []string) map[string]pattern.Key {
	set := make(map[string]pattern.Key)
	for _, p := range e.Extract(tokens) {
		set[p.Key.String()] = p.Key
	}
	return set
}

// classify maps a non-anchor token to its shape marker.
func classify(tok string) string {
	if numberRE.MatchString(tok) {
		return markNumber
	}
	switch utf8.RuneCountInString(tok) {
	case 1:
		return markChar1
	case 2:
		return markChar2
	default:
		return markWord
	}
}

func anchorTokens(seq []anchorOcc) []string {
	out := make([]string, len(seq))
	for i, occ := range seq {
		out[i] = occ.tok
	}
	return out
}

// skeleton keeps anchors literal and classes every other token by shape.
func (e *Extractor) skeleton(tokens []string, seq []anchorOcc) Pattern {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		if e.anchors.Contains(tok) {
			parts[i] = tok
		} else {
			parts[i] = classify(tok)
		}
	}
	key := pattern.MustNew(pattern.FamilySkeleton, anchorTokens(seq), map[string]string{
		"sig": strings.Join(parts, " "),
	})
	return Pattern{Key: key, Realization: strings.Join(tokens, " ")}
}

// compressedSkeleton collapses every non-anchor run into one span marker
// and trims leading/trailing spans. Reports ok=false when the signature
// would be empty.
func (e *Extractor) compressedSkeleton(tokens []string, seq []anchorOcc) (Pattern, bool) {
	var parts []string
	inSpan := false
	for _, tok := range tokens {
		if e.anchors.Contains(tok) {
			parts = append(parts, tok)
			inSpan = false
		} else if !inSpan {
			parts = append(parts, markSpan)
			inSpan = true
		}
	}
	for len(parts) > 0 && parts[0] == markSpan {
		parts = parts[1:]
	}
	for len(parts) > 0 && parts[len(parts)-1] == markSpan {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return Pattern{}, false
	}
	key := pattern.MustNew(pattern.FamilyCompressedSkeleton, anchorTokens(seq), map[string]string{
		"sig": strings.Join(parts, " "),
	})
	return Pattern{Key: key, Realization: strings.Join(tokens, " ")}, true
}

// anchorPairs links every ordered anchor occurrence pair within the gap
// bound. This is the family that captures 因为…所以 / 虽然…但是 style
// constructions regardless of what sits between the anchors.
func (e *Extractor) anchorPairs(tokens []string, seq []anchorOcc) []Pattern {
	var out []Pattern
	for a := 0; a < len(seq); a++ {
		for b := a + 1; b < len(seq); b++ {
			gap := seq[b].pos - seq[a].pos - 1
			if gap > e.cfg.SpanMaxGap {
				// Positions increase, so later anchors only widen the gap.
				break
			}
			key := pattern.MustNew(pattern.FamilyAnchorPair,
				[]string{seq[a].tok, seq[b].tok},
				map[string]string{"gap": GapBucket(gap)})
			out = append(out, Pattern{
				Key:         key,
				Realization: strings.Join(tokens[seq[a].pos:seq[b].pos+1], " "),
			})
		}
	}
	return out
}

// anchorWindows captures the ±2 token neighborhood of each anchor
// occurrence. Non-anchor neighbors appear as <X> slots; co-occurring
// anchors stay literal.
func (e *Extractor) anchorWindows(tokens []string, seq []anchorOcc) []Pattern {
	var out []Pattern
	for _, occ := range seq {
		lo := occ.pos - 2
		if lo < 0 {
			lo = 0
		}
		hi := occ.pos + 3
		if hi > len(tokens) {
			hi = len(tokens)
		}
		left := tokens[lo:occ.pos]
		right := tokens[occ.pos+1 : hi]

		slots := make([]string, 0, len(left)+len(right))
		keyAnchors := []string{}
		for _, tok := range left {
			if e.anchors.Contains(tok) {
				slots = append(slots, tok)
				keyAnchors = append(keyAnchors, tok)
			} else {
				slots = append(slots, markOther)
			}
		}
		keyAnchors = append(keyAnchors, occ.tok)
		for _, tok := range right {
			if e.anchors.Contains(tok) {
				slots = append(slots, tok)
				keyAnchors = append(keyAnchors, tok)
			} else {
				slots = append(slots, markOther)
			}
		}

		key := pattern.MustNew(pattern.FamilyAnchorWindow, keyAnchors, map[string]string{
			"l":   fmt.Sprintf("%d", len(left)),
			"r":   fmt.Sprintf("%d", len(right)),
			"sig": strings.Join(slots, ","),
		})
		out = append(out, Pattern{
			Key:         key,
			Realization: strings.Join(tokens[lo:hi], " "),
		})
	}
	return out
}

// anchorSequence emits the ordered anchor signature of the sentence,
// only when at least two anchors are present: a single anchor carries no
// ordering information.
func (e *Extractor) anchorSequence(seq []anchorOcc) []Pattern {
	if len(seq) < 2 {
		return nil
	}
	toks := anchorTokens(seq)
	key := pattern.MustNew(pattern.FamilyAnchorSequence, toks, nil)
	return []Pattern{{Key: key, Realization: strings.Join(toks, " ")}}
}

// anchorSpans emits one span per anchor up to the next anchor. With
// signature=true the
// interior shape (anchor / non-anchor counts) joins the key (span_sig
// family); otherwise only the bucketed gap does (anch_span family).
//
// A span with no following anchor inside the bound keeps tail=<END> in
// its params, so key anchors remain a subset of the frozen set.
func (e *Extractor) anchorSpans(tokens []string, signature bool) []Pattern {
	var out []Pattern
	n := len(tokens)
	for i, tok := range tokens {
		if !e.anchors.Contains(tok) {
			continue
		}

		tail := markEnd
		tailPos := -1
		limit := i + 1 + e.cfg.SpanMaxGap
		if limit > n {
			limit = n
		}
		for j := i + 1; j < limit; j++ {
			if e.anchors.Contains(tokens[j]) {
				tail = tokens[j]
				tailPos = j
				break
			}
		}

		end := limit
		if tailPos >= 0 {
			end = tailPos
		}
		inside := tokens[i+1 : end]
		gap := len(inside)

		keyAnchors := []string{tok}
		if tailPos >= 0 {
			keyAnchors = append(keyAnchors, tail)
		}
		params := map[string]string{
			"gap":  GapBucket(gap),
			"tail": tail,
		}

		family := pattern.FamilyAnchorSpan
		if signature {
			family = pattern.FamilySpanSignature
			kA := 0
			for _, x := range inside {
				if e.anchors.Contains(x) {
					kA++
				}
			}
			params["kA"] = fmt.Sprintf("%d", kA)
			params["kX"] = fmt.Sprintf("%d", len(inside)-kA)
		}

		realEnd := end
		if tailPos >= 0 {
			realEnd = tailPos + 1
		}
		out = append(out, Pattern{
			Key:         pattern.MustNew(family, keyAnchors, params),
			Realization: strings.Join(tokens[i:realEnd], " "),
		})
	}
	return out
}

// anchorSkipgrams emits 2- and 3-anchor skip-grams over the anchor-only
// sequence, bounded by the max jump between consecutive members.
func (e *Extractor) anchorSkipgrams(seq []anchorOcc) []Pattern {
	jump := fmt.Sprintf("%d", e.cfg.SkipMaxJump)
	var out []Pattern

	if e.enabled[pattern.FamilyAnchorSkip2] {
		for a := 0; a < len(seq); a++ {
			for b := a + 1; b < len(seq); b++ {
				if seq[b].pos-seq[a].pos > e.cfg.SkipMaxJump {
					break
				}
				key := pattern.MustNew(pattern.FamilyAnchorSkip2,
					[]string{seq[a].tok, seq[b].tok},
					map[string]string{"max_jump": jump})
				out = append(out, Pattern{
					Key:         key,
					Realization: seq[a].tok + " ... " + seq[b].tok,
				})
			}
		}
	}

	if e.enabled[pattern.FamilyAnchorSkip3] {
		for a := 0; a < len(seq); a++ {
			for b := a + 1; b < len(seq); b++ {
				if seq[b].pos-seq[a].pos > e.cfg.SkipMaxJump {
					break
				}
				for c := b + 1; c < len(seq); c++ {
					if seq[c].pos-seq[b].pos > e.cfg.SkipMaxJump {
						break
					}
					key := pattern.MustNew(pattern.FamilyAnchorSkip3,
						[]string{seq[a].tok, seq[b].tok, seq[c].tok},
						map[string]string{"max_jump": jump})
					out = append(out, Pattern{
						Key:         key,
						Realization: seq[a].tok + " ... " + seq[b].tok + " ... " + seq[c].tok,
					})
				}
			}
		}
	}
	return out
}

// tokenNgrams emits token n-grams containing at least one anchor.
// Anchor positions get anchor-specific slots (<A:tok>) so frequent
// anchors do not collapse every n-gram into one mega-pattern.
func (e *Extractor) tokenNgrams(tokens []string) []Pattern {
	var out []Pattern
	for n := 2; n <= e.cfg.MaxNgramN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			ng := tokens[i : i+n]
			var keyAnchors []string
			slots := make([]string, n)
			for j, tok := range ng {
				if e.anchors.Contains(tok) {
					slots[j] = "<A:" + tok + ">"
					keyAnchors = append(keyAnchors, tok)
				} else {
					slots[j] = markOther
				}
			}
			if len(keyAnchors) == 0 {
				continue
			}
			key := pattern.MustNew(pattern.FamilyTokenNgram, keyAnchors, map[string]string{
				"n":   fmt.Sprintf("%d", n),
				"sig": strings.Join(slots, "|"),
			})
			out = append(out, Pattern{
				Key:         key,
				Realization: strings.Join(ng, " "),
			})
		}
	}
	return out
}
