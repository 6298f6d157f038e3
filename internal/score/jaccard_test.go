package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhlearn/anchorgram/internal/anchor"
	"github.com/zhlearn/anchorgram/internal/extract"
	"github.com/zhlearn/anchorgram/internal/pattern"
	"github.com/zhlearn/anchorgram/internal/stats"
)

// fixedPrior is a hand-built DF table for exact-value assertions.
type fixedPrior struct {
	total int64
	df    map[string]int64
}

func (p fixedPrior) TotalSentences() int64 { return p.total }

func (p fixedPrior) DF(key string) (int64, bool) {
	n, ok := p.df[key]
	return n, ok
}

func keySet(keys ...string) map[string]pattern.Key {
	out := make(map[string]pattern.Key, len(keys))
	for _, k := range keys {
		parsed, err := pattern.Parse(k)
		if err != nil {
			panic(err)
		}
		out[k] = parsed
	}
	return out
}

var (
	rareKey   = "anch_pair|a=因为,所以|p=gap=2-3"
	commonKey = "anch_pair|a=的,了|p=gap=0"
	otherKey  = "anch_pair|a=但是,所以|p=gap=1"
)

func testPrior() fixedPrior {
	return fixedPrior{
		total: 100,
		df: map[string]int64{
			rareKey:   2,
			commonKey: 90,
			otherKey:  10,
		},
	}
}

func TestWeightedJaccard_Identity(t *testing.T) {
	prior := testPrior()
	sets := []map[string]pattern.Key{
		keySet(rareKey),
		keySet(rareKey, commonKey),
		keySet(rareKey, commonKey, otherKey),
	}
	for _, s := range sets {
		assert.InDelta(t, 1.0, WeightedJaccard(s, s, prior), 1e-12)
	}
}

func TestWeightedJaccard_EmptySets(t *testing.T) {
	prior := testPrior()
	assert.Equal(t, 1.0, WeightedJaccard(nil, nil, prior))
	assert.Equal(t, 0.0, WeightedJaccard(keySet(rareKey), nil, prior))
	assert.Equal(t, 0.0, WeightedJaccard(nil, keySet(rareKey), prior))
}

func TestWeightedJaccard_Bounds(t *testing.T) {
	prior := testPrior()
	pairs := [][2]map[string]pattern.Key{
		{keySet(rareKey), keySet(commonKey)},
		{keySet(rareKey, commonKey), keySet(commonKey)},
		{keySet(rareKey, otherKey), keySet(otherKey, commonKey)},
	}
	for _, p := range pairs {
		j := WeightedJaccard(p[0], p[1], prior)
		assert.GreaterOrEqual(t, j, 0.0)
		assert.LessOrEqual(t, j, 1.0)
		// Symmetric.
		assert.InDelta(t, j, WeightedJaccard(p[1], p[0], prior), 1e-12)
	}
}

func TestWeightedJaccard_RareSharedKeyDominates(t *testing.T) {
	prior := testPrior()

	// Both pairs share one key and differ on one key of equal weight.
	// Sharing the rare key must score higher than sharing the common one.
	shareRare := WeightedJaccard(
		keySet(rareKey, commonKey), keySet(rareKey, otherKey), prior)
	shareCommon := WeightedJaccard(
		keySet(commonKey, rareKey), keySet(commonKey, otherKey), prior)
	assert.Greater(t, shareRare, shareCommon)
}

func TestWeightedJaccard_ExactValue(t *testing.T) {
	prior := testPrior()

	// A = {rare, common}, B = {rare, other}. Intersection {rare}.
	wRare := math.Log(100.0 / 2.0)
	wCommon := math.Log(100.0 / 90.0)
	wOther := math.Log(100.0 / 10.0)
	want := wRare / (wRare + wCommon + wOther)

	got := WeightedJaccard(keySet(rareKey, commonKey), keySet(rareKey, otherKey), prior)
	assert.InDelta(t, want, got, 1e-12)
}

func TestWeightedJaccard_UnknownKeyGetsMaxRarity(t *testing.T) {
	prior := testPrior()
	unknown := "anch_pair|a=如果,就|p=gap=1"

	// df falls back to 1, the heaviest possible weight.
	got := WeightedJaccard(keySet(unknown), keySet(unknown), prior)
	assert.InDelta(t, 1.0, got, 1e-12)

	mixed := WeightedJaccard(keySet(unknown, commonKey), keySet(commonKey), prior)
	wUnknown := math.Log(100.0)
	wCommon := math.Log(100.0 / 90.0)
	assert.InDelta(t, wCommon/(wUnknown+wCommon), mixed, 1e-12)
}

func TestWeightedJaccard_AllZeroWeights(t *testing.T) {
	// Every key appears in every sentence: all IDF weights are zero.
	prior := fixedPrior{total: 5, df: map[string]int64{rareKey: 5, otherKey: 5}}

	assert.Equal(t, 1.0, WeightedJaccard(keySet(rareKey), keySet(rareKey), prior))
	assert.Equal(t, 0.0, WeightedJaccard(keySet(rareKey), keySet(otherKey), prior))
}

func TestSentenceSimilarity_EndToEnd(t *testing.T) {
	set, err := anchor.NewSet([]string{"因为", "所以", "但是"})
	require.NoError(t, err)
	e, err := extract.New(set, extract.Config{
		Families:   []pattern.Family{pattern.FamilyAnchorPair},
		SpanMaxGap: 6,
	})
	require.NoError(t, err)

	corpusSentences := [][]string{
		{"因为", "他", "忙", "所以", "他", "没", "去"},
		{"因为", "她", "很", "忙", "所以", "没", "来"},
		{"他", "很", "忙", "但是", "他", "去", "了"},
	}
	agg := stats.NewGlobalAggregator(e.Fingerprint(), 0)
	for _, s := range corpusSentences {
		agg.ObserveSentence(e.Extract(s))
	}
	global := agg.Finalize()

	// Two fresh sentences sharing the 因为…所以 construction.
	a := e.KeySet([]string{"因为", "下雨", "很", "大", "所以", "不", "去"})
	b := e.KeySet([]string{"因为", "你", "不", "在", "所以", "我", "走"})
	require.NotEmpty(t, a)

	j, err := SentenceSimilarity(a, b, global, e.Fingerprint())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, j, 1e-12)

	// A different construction shares no keys at all.
	c := e.KeySet([]string{"他", "忙", "但是", "因为", "下雨"})
	j, err = SentenceSimilarity(a, c, global, e.Fingerprint())
	require.NoError(t, err)
	assert.Equal(t, 0.0, j)
}

func TestSentenceSimilarity_FingerprintMismatch(t *testing.T) {
	global := stats.NewGlobal("fp-one", 10, nil)
	_, err := SentenceSimilarity(nil, nil, global, "fp-two")
	require.Error(t, err)
	assert.True(t, anchor.IsMismatchError(err))
}
