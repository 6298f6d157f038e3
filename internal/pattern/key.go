package pattern

import (
	"fmt"
	"sort"
	"strings"
)

// Param is one normalized key/value parameter of a PatternKey.
type Param struct {
	Name  string
	Value string
}

// Key is the canonical identity of one structural pattern instance.
//
// Two occurrences with identical (family, anchors, params) collapse to the
// same key, in any sentence and any corpus. Keys are pure values: they are
// computed once and never mutated.
//
// Textual form (stable across processes and versions):
//
//	family|a=<anchor1,anchor2,...>|p=<k1=v1,k2=v2,...>
//
// Params are sorted by name. Separator characters inside components are
// escaped, so the form round-trips through Parse byte-for-byte.
type Key struct {
	Family  Family
	Anchors []string
	Params  []Param
}

// ParseError reports a malformed or unknown pattern key string.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid pattern key %q: %s", e.Input, e.Reason)
}

// New builds a Key with normalized (name-sorted) params.
// Param names must be non-empty; the family tag must be known.
func New(family Family, anchors []string, params map[string]string) (Key, error) {
	if !family.Valid() {
		return Key{}, &ParseError{Input: string(family), Reason: "unknown family tag"}
	}
	normalized := make([]Param, 0, len(params))
	for name, value := range params {
		if name == "" {
			return Key{}, &ParseError{Input: string(family), Reason: "empty param name"}
		}
		normalized = append(normalized, Param{Name: name, Value: value})
	}
	sort.Slice(normalized, func(i, j int) bool { return normalized[i].Name < normalized[j].Name })

	k := Key{Family: family, Params: normalized}
	if len(anchors) > 0 {
		k.Anchors = append([]string(nil), anchors...)
	}
	return k, nil
}

// MustNew is like New but panics on error. Use only when inputs are known
// to be valid (extraction code paths with compile-time family constants).
func MustNew(family Family, anchors []string, params map[string]string) Key {
	k, err := New(family, anchors, params)
	if err != nil {
		panic(err)
	}
	return k
}

// String renders the canonical textual form of the key.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(string(k.Family))
	b.WriteString("|a=")
	for i, a := range k.Anchors {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeComponent(a))
	}
	b.WriteString("|p=")
	for i, p := range k.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeComponent(p.Name))
		b.WriteByte('=')
		b.WriteString(escapeComponent(p.Value))
	}
	return b.String()
}

// Param returns the value of the named parameter, if present.
func (k Key) Param(name string) (string, bool) {
	for _, p := range k.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Parse decodes the canonical textual form back into a Key.
// Unknown family tags are rejected, so a store built by a newer engine
// with extra families fails loudly instead of silently misclassifying.
func Parse(s string) (Key, error) {
	segments, err := splitUnescaped(s, '|')
	if err != nil {
		return Key{}, &ParseError{Input: s, Reason: err.Error()}
	}
	if len(segments) != 3 {
		return Key{}, &ParseError{Input: s, Reason: fmt.Sprintf("expected 3 segments, got %d", len(segments))}
	}

	family := Family(segments[0])
	if !family.Valid() {
		return Key{}, &ParseError{Input: s, Reason: fmt.Sprintf("unknown family tag %q", segments[0])}
	}
	if !strings.HasPrefix(segments[1], "a=") {
		return Key{}, &ParseError{Input: s, Reason: "second segment must start with a="}
	}
	if !strings.HasPrefix(segments[2], "p=") {
		return Key{}, &ParseError{Input: s, Reason: "third segment must start with p="}
	}

	k := Key{Family: family}

	anchorsCSV := segments[1][len("a="):]
	if anchorsCSV != "" {
		parts, err := splitUnescaped(anchorsCSV, ',')
		if err != nil {
			return Key{}, &ParseError{Input: s, Reason: err.Error()}
		}
		for _, part := range parts {
			a, err := unescapeComponent(part)
			if err != nil {
				return Key{}, &ParseError{Input: s, Reason: err.Error()}
			}
			k.Anchors = append(k.Anchors, a)
		}
	}

	paramsCSV := segments[2][len("p="):]
	if paramsCSV != "" {
		parts, err := splitUnescaped(paramsCSV, ',')
		if err != nil {
			return Key{}, &ParseError{Input: s, Reason: err.Error()}
		}
		for _, part := range parts {
			kv, err := splitUnescaped(part, '=')
			if err != nil {
				return Key{}, &ParseError{Input: s, Reason: err.Error()}
			}
			if len(kv) != 2 {
				return Key{}, &ParseError{Input: s, Reason: fmt.Sprintf("malformed param %q", part)}
			}
			name, err := unescapeComponent(kv[0])
			if err != nil {
				return Key{}, &ParseError{Input: s, Reason: err.Error()}
			}
			if name == "" {
				return Key{}, &ParseError{Input: s, Reason: "empty param name"}
			}
			value, err := unescapeComponent(kv[1])
			if err != nil {
				return Key{}, &ParseError{Input: s, Reason: err.Error()}
			}
			k.Params = append(k.Params, Param{Name: name, Value: value})
		}
	}

	return k, nil
}

// escapeComponent protects the key grammar's separator characters.
// The escape set is frozen alongside the key format itself.
func escapeComponent(s string) string {
	if !strings.ContainsAny(s, "\\|,=") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '\\', '|', ',', '=':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unescapeComponent(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if escaped {
			switch r {
			case '\\', '|', ',', '=':
				b.WriteRune(r)
			default:
				return "", fmt.Errorf("invalid escape sequence \\%c", r)
			}
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	if escaped {
		return "", fmt.Errorf("dangling escape at end of component")
	}
	return b.String(), nil
}

// splitUnescaped splits on sep, honoring backslash escapes.
// The escape characters themselves are preserved for later unescaping.
func splitUnescaped(s string, sep rune) ([]string, error) {
	var parts []string
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			b.WriteRune(r)
			escaped = true
		case sep:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		return nil, fmt.Errorf("dangling escape in %q", s)
	}
	parts = append(parts, b.String())
	return parts, nil
}
