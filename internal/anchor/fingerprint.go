package anchor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/text/unicode/norm"
)

// Domain prefix for content-addressed anchor set identity.
// Version suffix enables future algorithm migration.
const domainAnchorSet = "anchorgram/anchorset/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalStringList produces a canonical JSON array for hashing.
// This is the ONLY serialization used for fingerprint computation.
//
// Properties:
//   - element order preserved (anchor order is part of identity)
//   - strings NFC-normalized at the serialization boundary, so visually
//     identical anchors produced by different tooling hash identically
//   - no HTML escaping (< > & are kept literal)
func canonicalStringList(items []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		s, err := canonicalString(item)
		if err != nil {
			return nil, err
		}
		buf.Write(s)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func canonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline, remove it.
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}

// fingerprintAnchors computes the content fingerprint for an ordered
// anchor list.
func fingerprintAnchors(anchors []string) (string, error) {
	canonical, err := canonicalStringList(anchors)
	if err != nil {
		return "", err
	}
	return hashWithDomain(domainAnchorSet, canonical), nil
}
