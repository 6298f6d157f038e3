package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyString_CanonicalForm(t *testing.T) {
	k, err := New(FamilyAnchorPair, []string{"因为", "所以"}, map[string]string{"gap": "2-3"})
	require.NoError(t, err)

	assert.Equal(t, "anch_pair|a=因为,所以|p=gap=2-3", k.String())
}

func TestKeyString_ParamsSortedByName(t *testing.T) {
	k, err := New(FamilySpanSignature, []string{"在"}, map[string]string{
		"tail": "<END>",
		"gap":  "4-7",
		"kX":   "5",
		"kA":   "0",
	})
	require.NoError(t, err)

	// Map iteration order must not leak into the key.
	assert.Equal(t, "span_sig|a=在|p=gap=4-7,kA=0,kX=5,tail=<END>", k.String())
}

func TestKeyRoundTrip(t *testing.T) {
	cases := []Key{
		MustNew(FamilySkeleton, []string{"的", "了"}, map[string]string{"sig": "<C2> 的 <W> 了"}),
		MustNew(FamilyAnchorPair, []string{"因为", "所以"}, map[string]string{"gap": "2-3"}),
		MustNew(FamilyAnchorSequence, []string{"如果", "就"}, nil),
		MustNew(FamilyAnchorWindow, []string{"在"}, map[string]string{"l": "2", "r": "1", "sig": "<X>,<X>,<X>"}),
		MustNew(FamilyTokenNgram, []string{"的"}, map[string]string{"n": "2", "sig": "<X>|<A:的>"}),
	}

	for _, want := range cases {
		got, err := Parse(want.String())
		require.NoError(t, err, "key %s", want.String())
		assert.Equal(t, want, got)
	}
}

func TestKeyRoundTrip_EscapedSeparators(t *testing.T) {
	// Tokenizers occasionally emit tokens containing the grammar's own
	// separator characters. They must survive the round trip.
	k := MustNew(FamilySkeleton, []string{"a|b", "c,d", "e=f", `g\h`}, map[string]string{
		"sig": `a|b <W> c,d`,
	})

	got, err := Parse(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, got)
}

func TestParse_RejectsUnknownFamily(t *testing.T) {
	_, err := Parse("mystery|a=的|p=")
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "unknown family")
}

func TestParse_RejectsMalformedInput(t *testing.T) {
	bad := []string{
		"",
		"skel",
		"skel|a=的",
		"skel|a=的|p=|extra",
		"skel|x=的|p=",
		"skel|a=的|q=",
		"skel|a=的|p==v",
		"skel|a=的|p=k=v=w",
		"skel|a=的|p=sig=abc\\",
	}
	for _, s := range bad {
		_, err := Parse(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestParse_EmptyAnchorsAndParams(t *testing.T) {
	got, err := Parse("anch_seq|a=|p=")
	require.NoError(t, err)
	assert.Equal(t, FamilyAnchorSequence, got.Family)
	assert.Empty(t, got.Anchors)
	assert.Empty(t, got.Params)
}

func TestNew_RejectsUnknownFamily(t *testing.T) {
	_, err := New(Family("nope"), nil, nil)
	assert.Error(t, err)
}

func TestFamilyRegistry(t *testing.T) {
	for _, f := range AllFamilies() {
		assert.True(t, f.Valid(), "family %s", f)
	}
	assert.False(t, Family("bogus").Valid())

	core := CoreFamilies()
	assert.Equal(t, []Family{
		FamilySkeleton,
		FamilyCompressedSkeleton,
		FamilyAnchorPair,
		FamilyAnchorWindow,
	}, core)
}
