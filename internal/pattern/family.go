package pattern

// Family identifies one pattern extraction algorithm. The tag is part of
// every key's textual form, so tags are frozen: renaming a family silently
// orphans every key already persisted under the old tag.
type Family string

const (
	// FamilySkeleton replaces non-anchor tokens with shape classes and
	// keeps anchors literal.
	FamilySkeleton Family = "skel"

	// FamilyCompressedSkeleton collapses non-anchor runs into a single
	// span marker, making the signature robust to span-length variation.
	FamilyCompressedSkeleton Family = "cskel"

	// FamilyAnchorPair links every ordered pair of anchor occurrences
	// within a bounded gap, with the gap bucketed.
	FamilyAnchorPair Family = "anch_pair"

	// FamilyAnchorWindow captures the ±2 token neighborhood around each
	// anchor occurrence.
	FamilyAnchorWindow Family = "anch_win"

	// FamilyAnchorSkip2 and FamilyAnchorSkip3 are skip-grams over the
	// anchor-only sequence, bounded by a max jump.
	FamilyAnchorSkip2 Family = "a_skip2"
	FamilyAnchorSkip3 Family = "a_skip3"

	// FamilyTokenNgram is token n-grams containing at least one anchor,
	// with anchor-specific slots.
	FamilyTokenNgram Family = "tok_ng"

	// FamilyAnchorSequence is the ordered anchor signature of a sentence.
	FamilyAnchorSequence Family = "anch_seq"

	// FamilyAnchorSpan links each anchor to the next anchor (or sentence
	// end) within a bounded gap.
	FamilyAnchorSpan Family = "anch_span"

	// FamilySpanSignature is FamilyAnchorSpan plus a coarse interior
	// shape signature (anchor / non-anchor counts inside the span).
	FamilySpanSignature Family = "span_sig"
)

// familyInfo records per-family contract details.
//
// Core families are always extracted; optional families must be enabled
// explicitly. AllowEmptyAnchors marks families whose keys may carry an
// empty anchor component: only skel today, whose signature degenerates
// to pure shape classes in an anchor-free sentence. Even tok_ng requires
// at least one anchor in the n-gram.
type familyInfo struct {
	Core              bool
	AllowEmptyAnchors bool
}

var families = map[Family]familyInfo{
	FamilySkeleton:           {Core: true, AllowEmptyAnchors: true},
	FamilyCompressedSkeleton: {Core: true},
	FamilyAnchorPair:         {Core: true},
	FamilyAnchorWindow:       {Core: true},
	FamilyAnchorSkip2:        {},
	FamilyAnchorSkip3:        {},
	FamilyTokenNgram:         {},
	FamilyAnchorSequence:     {},
	FamilyAnchorSpan:         {},
	FamilySpanSignature:      {},
}

// Valid reports whether f is a known family tag.
func (f Family) Valid() bool {
	_, ok := families[f]
	return ok
}

// Core reports whether f belongs to the always-on core family set.
func (f Family) Core() bool {
	return families[f].Core
}

// AllowsEmptyAnchors reports whether keys of this family may have an
// empty anchor component.
func (f Family) AllowsEmptyAnchors() bool {
	return families[f].AllowEmptyAnchors
}

// AllFamilies returns every known family in a fixed, documented order:
// core families first, then optional families. The order matters for
// deterministic iteration in reports and tests.
func AllFamilies() []Family {
	return []Family{
		FamilySkeleton,
		FamilyCompressedSkeleton,
		FamilyAnchorPair,
		FamilyAnchorWindow,
		FamilyAnchorSkip2,
		FamilyAnchorSkip3,
		FamilyTokenNgram,
		FamilyAnchorSequence,
		FamilyAnchorSpan,
		FamilySpanSignature,
	}
}

// CoreFamilies returns the always-on family set.
func CoreFamilies() []Family {
	var out []Family
	for _, f := range AllFamilies() {
		if f.Core() {
			out = append(out, f)
		}
	}
	return out
}
