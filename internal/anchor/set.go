package anchor

// Set is a frozen, ordered, deduplicated collection of anchor tokens.
//
// A Set is built once per corpus version and shared by reference with
// every downstream consumer; nothing mutates it after construction. Its
// content fingerprint is the compatibility check between stores: two
// stores' pattern keys are only comparable when their fingerprints match.
type Set struct {
	anchors     []string
	index       map[string]int
	fingerprint string
}

// NewSet freezes an ordered anchor list into a Set.
//
// Duplicates are dropped, first occurrence wins; order is otherwise
// preserved because it is part of the set's identity. Empty tokens are
// rejected. An empty list is a configuration error: an engine with zero
// anchors extracts nothing and silently produces empty stores.
func NewSet(anchors []string) (*Set, error) {
	if len(anchors) == 0 {
		return nil, NewConfigError("anchors", "anchor set cannot be empty")
	}

	s := &Set{
		anchors: make([]string, 0, len(anchors)),
		index:   make(map[string]int, len(anchors)),
	}
	for _, a := range anchors {
		if a == "" {
			return nil, NewConfigError("anchors", "anchor token cannot be empty")
		}
		if _, dup := s.index[a]; dup {
			continue
		}
		s.index[a] = len(s.anchors)
		s.anchors = append(s.anchors, a)
	}

	fp, err := fingerprintAnchors(s.anchors)
	if err != nil {
		return nil, err
	}
	s.fingerprint = fp
	return s, nil
}

// Contains reports whether tok is an anchor.
func (s *Set) Contains(tok string) bool {
	_, ok := s.index[tok]
	return ok
}

// Len returns the number of anchors.
func (s *Set) Len() int {
	return len(s.anchors)
}

// Anchors returns a copy of the ordered anchor list.
// Callers get a copy so the frozen set stays frozen.
func (s *Set) Anchors() []string {
	out := make([]string, len(s.anchors))
	copy(out, s.anchors)
	return out
}

// Fingerprint returns the content-addressed identity of this set.
// Stable across processes given the same ordered anchor list.
func (s *Set) Fingerprint() string {
	return s.fingerprint
}

// Verify checks a fingerprint recorded elsewhere (a store, a partial
// aggregate) against this set. Returns a MismatchError on disagreement.
func (s *Set) Verify(context, fingerprint string) error {
	if fingerprint != s.fingerprint {
		return NewMismatchError(context, s.fingerprint, fingerprint)
	}
	return nil
}
