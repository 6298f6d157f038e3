package extract

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/pattern"
)

// 因为…所以… scenario sentence used throughout.
var causalTokens = []string{"因为", "他", "忙", "所以", "他", "没", "去"}

func newTestExtractor(t *testing.T, anchors []string, cfg Config) *Extractor {
	t.Helper()
	set, err := anchor.NewSet(anchors)
	require.NoError(t, err)
	e, err := New(set, cfg)
	require.NoError(t, err)
	return e
}

func sortedKeys(m map[string]pattern.Key) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestExtract_AnchorPairScenario(t *testing.T) {
	cfg := Config{
		Families:   []pattern.Family{pattern.FamilyAnchorPair},
		SpanMaxGap: 6,
	}
	e := newTestExtractor(t, []string{"因为", "所以"}, cfg)

	got := e.Extract(causalTokens)
	require.Len(t, got, 1)
	assert.Equal(t, "anch_pair|a=因为,所以|p=gap=2-3", got[0].Key.String())
	assert.Equal(t, "因为 他 忙 所以", got[0].Realization)
}

func TestExtract_AnchorPairGapBound(t *testing.T) {
	cfg := Config{
		Families:   []pattern.Family{pattern.FamilyAnchorPair},
		SpanMaxGap: 1,
	}
	e := newTestExtractor(t, []string{"因为", "所以"}, cfg)

	// Gap between the two anchors is 2, above the bound of 1.
	assert.Empty(t, e.Extract(causalTokens))
}

func TestExtract_Skeletons(t *testing.T) {
	cfg := Config{
		Families: []pattern.Family{
			pattern.FamilySkeleton,
			pattern.FamilyCompressedSkeleton,
		},
		SpanMaxGap: 20,
	}
	e := newTestExtractor(t, []string{"因为", "所以"}, cfg)

	keys := sortedKeys(e.KeySet(causalTokens))
	assert.Equal(t, []string{
		"cskel|a=因为,所以|p=sig=因为 <SPAN> 所以",
		"skel|a=因为,所以|p=sig=因为 <C1> <C1> 所以 <C1> <C1> <C1>",
	}, keys)
}

func TestExtract_SkeletonClassesNumbersAndLengths(t *testing.T) {
	cfg := Config{
		Families:   []pattern.Family{pattern.FamilySkeleton},
		SpanMaxGap: 20,
	}
	e := newTestExtractor(t, []string{"在"}, cfg)

	got := e.Extract([]string{"我们", "在", "2024", "图书馆", "玩"})
	require.Len(t, got, 1)
	sig, ok := got[0].Key.Param("sig")
	require.True(t, ok)
	assert.Equal(t, "<C2> 在 <NUM> <W> <C1>", sig)
}

func TestExtract_AnchorWindow(t *testing.T) {
	cfg := Config{
		Families:   []pattern.Family{pattern.FamilyAnchorWindow},
		SpanMaxGap: 20,
	}
	e := newTestExtractor(t, []string{"因为", "所以"}, cfg)

	keys := sortedKeys(e.KeySet(causalTokens))
	assert.Equal(t, []string{
		`anch_win|a=因为|p=l=0,r=2,sig=<X>\,<X>`,
		`anch_win|a=所以|p=l=2,r=2,sig=<X>\,<X>\,<X>\,<X>`,
	}, keys)
}

func TestExtract_AnchorWindowKeepsCooccurringAnchors(t *testing.T) {
	cfg := Config{
		Families:   []pattern.Family{pattern.FamilyAnchorWindow},
		SpanMaxGap: 20,
	}
	e := newTestExtractor(t, []string{"的", "了"}, cfg)

	got := e.Extract([]string{"吃", "了", "我", "的", "饭"})
	// Window of 了 at position 1 contains 的 at position 3.
	var sigs []string
	for _, p := range got {
		sig, _ := p.Key.Param("sig")
		sigs = append(sigs, sig)
	}
	assert.Contains(t, sigs, "<X>,<X>,的")
}

func TestExtract_AnchorSequence(t *testing.T) {
	cfg := Config{
		Families:   []pattern.Family{pattern.FamilyAnchorSequence},
		SpanMaxGap: 20,
	}
	e := newTestExtractor(t, []string{"因为", "所以"}, cfg)

	got := e.Extract(causalTokens)
	require.Len(t, got, 1)
	assert.Equal(t, "anch_seq|a=因为,所以|p=", got[0].Key.String())

	// A single anchor carries no ordering information.
	assert.Empty(t, e.Extract([]string{"因为", "他", "忙"}))
}

func TestExtract_AnchorSpanAndSignature(t *testing.T) {
	cfg := Config{
		Families: []pattern.Family{
			pattern.FamilyAnchorSpan,
			pattern.FamilySpanSignature,
		},
		SpanMaxGap: 20,
	}
	e := newTestExtractor(t, []string{"因为", "所以"}, cfg)

	keys := sortedKeys(e.KeySet(causalTokens))
	assert.Equal(t, []string{
		"anch_span|a=因为,所以|p=gap=2-3,tail=所以",
		"anch_span|a=所以|p=gap=2-3,tail=<END>",
		"span_sig|a=因为,所以|p=gap=2-3,kA=0,kX=2,tail=所以",
		"span_sig|a=所以|p=gap=2-3,kA=0,kX=3,tail=<END>",
	}, keys)
}

func TestExtract_AnchorSkipgrams(t *testing.T) {
	cfg := Config{
		Families: []pattern.Family{
			pattern.FamilyAnchorSkip2,
			pattern.FamilyAnchorSkip3,
		},
		SpanMaxGap:  20,
		SkipMaxJump: 10,
	}
	e := newTestExtractor(t, []string{"如果", "就", "了"}, cfg)

	keys := sortedKeys(e.KeySet([]string{"如果", "你", "来", "就", "好", "了"}))
	assert.Equal(t, []string{
		"a_skip2|a=如果,了|p=max_jump=10",
		"a_skip2|a=如果,就|p=max_jump=10",
		"a_skip2|a=就,了|p=max_jump=10",
		"a_skip3|a=如果,就,了|p=max_jump=10",
	}, keys)
}

func TestExtract_SkipgramJumpBound(t *testing.T) {
	cfg := Config{
		Families:    []pattern.Family{pattern.FamilyAnchorSkip2},
		SpanMaxGap:  20,
		SkipMaxJump: 2,
	}
	e := newTestExtractor(t, []string{"因为", "所以"}, cfg)

	// Positions 0 and 3: jump of 3 exceeds the bound.
	assert.Empty(t, e.Extract(causalTokens))
}

func TestExtract_TokenNgrams(t *testing.T) {
	cfg := Config{
		Families:   []pattern.Family{pattern.FamilyTokenNgram},
		MaxNgramN:  2,
		SpanMaxGap: 20,
	}
	e := newTestExtractor(t, []string{"的"}, cfg)

	keys := sortedKeys(e.KeySet([]string{"我", "的", "书"}))
	assert.Equal(t, []string{
		"tok_ng|a=的|p=n=2,sig=<A:的>\\|<X>",
		"tok_ng|a=的|p=n=2,sig=<X>\\|<A:的>",
	}, keys)
}

func TestExtract_EmptyAndAnchorFreeSentences(t *testing.T) {
	e := newTestExtractor(t, []string{"的"}, DefaultConfig())

	assert.Empty(t, e.Extract(nil))
	assert.Empty(t, e.Extract([]string{}))

	// No anchors: the skeleton still fires as a pure shape signature
	// with an empty anchor component. cskel trims to nothing and the
	// anchor-dependent families stay silent.
	keys := sortedKeys(e.KeySet([]string{"他", "很", "忙"}))
	assert.Equal(t, []string{"skel|a=|p=sig=<C1> <C1> <C1>"}, keys)
}

func TestExtract_AnchorFreeSkeletonNeedsSkelEnabled(t *testing.T) {
	cfg := Config{
		Families:   []pattern.Family{pattern.FamilyCompressedSkeleton, pattern.FamilyAnchorPair},
		SpanMaxGap: 20,
	}
	e := newTestExtractor(t, []string{"的"}, cfg)

	assert.Empty(t, e.Extract([]string{"他", "很", "忙"}))
}

func TestExtract_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Families = pattern.AllFamilies()
	e := newTestExtractor(t, []string{"因为", "所以", "的"}, cfg)

	first := sortedKeys(e.KeySet(causalTokens))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, sortedKeys(e.KeySet(causalTokens)))
	}
}

func TestExtract_KeysAreWellFormed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Families = pattern.AllFamilies()
	set, err := anchor.NewSet([]string{"因为", "所以", "的", "了", "在"})
	require.NoError(t, err)
	e, err := New(set, cfg)
	require.NoError(t, err)

	enabled := cfg.enabled()
	sentences := [][]string{
		causalTokens,
		{"我", "的", "书", "在", "桌子", "上", "了"},
		{"的"},
		{"在", "在", "在"},
		{"你", "好"},
	}
	for _, tokens := range sentences {
		for _, p := range e.Extract(tokens) {
			parsed, err := pattern.Parse(p.Key.String())
			require.NoError(t, err, "key %s", p.Key.String())
			assert.True(t, enabled[parsed.Family], "family %s not enabled", parsed.Family)
			if !parsed.Family.AllowsEmptyAnchors() {
				require.NotEmpty(t, parsed.Anchors, "key %s", p.Key.String())
			}
			for _, a := range parsed.Anchors {
				assert.True(t, set.Contains(a),
					"key %s anchor %q outside frozen set", p.Key.String(), a)
			}
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	require.NoError(t, valid.Validate())

	cases := []Config{
		{},
		{Families: []pattern.Family{"bogus"}, SpanMaxGap: 20},
		{Families: []pattern.Family{pattern.FamilySkeleton, pattern.FamilySkeleton}, SpanMaxGap: 20},
		{Families: []pattern.Family{pattern.FamilyTokenNgram}, MaxNgramN: 1, SpanMaxGap: 20},
		{Families: []pattern.Family{pattern.FamilySkeleton}, SpanMaxGap: 0},
		{Families: []pattern.Family{pattern.FamilyAnchorSkip2}, SpanMaxGap: 20, SkipMaxJump: 0},
	}
	for i, cfg := range cases {
		err := cfg.Validate()
		require.Error(t, err, "case %d", i)
		assert.True(t, anchor.IsConfigError(err), "case %d", i)
	}
}

func TestGapBucket_Totality(t *testing.T) {
	expected := map[string]bool{"0": true, "1": true, "2-3": true, "4-7": true, "8+": true}
	for g := 0; g <= 1000; g++ {
		label := GapBucket(g)
		assert.True(t, expected[label], "gap %d mapped to unknown bucket %q", g, label)
	}

	// Exact boundaries.
	assert.Equal(t, "0", GapBucket(0))
	assert.Equal(t, "1", GapBucket(1))
	assert.Equal(t, "2-3", GapBucket(2))
	assert.Equal(t, "2-3", GapBucket(3))
	assert.Equal(t, "4-7", GapBucket(4))
	assert.Equal(t, "4-7", GapBucket(7))
	assert.Equal(t, "8+", GapBucket(8))
	assert.Equal(t, "8+", GapBucket(10_000))
}
