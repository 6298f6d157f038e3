package anchor

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhlearn/anchorgram/internal/corpus"
)

// Corpus from the conjunction scenario: three sentences, three candidate
// conjunctions, each appearing exactly once in exactly one sentence.
func scenarioShard() corpus.Source {
	return corpus.FromTokens("scenario", [][]string{
		{"因为", "他", "忙", ",", "所以", "他", "没", "去"},
		{"他", "很", "忙", ",", "但是", "他", "去", "了"},
		{"他", "没", "去"},
	})
}

func permissiveConfig(topK int) ValidatorConfig {
	return ValidatorConfig{
		Weights: DefaultScoreWeights(),
		TopK:    topK,
	}
}

func TestValidate_ScenarioCounts(t *testing.T) {
	result, err := Validate(context.Background(),
		[]string{"因为", "所以", "但是"},
		[]corpus.Source{scenarioShard()}, 1, permissiveConfig(3))
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.TotalSentences)
	for _, tok := range []string{"因为", "所以", "但是"} {
		st, ok := result.Stats[tok]
		require.True(t, ok, "anchor %s missing", tok)
		assert.Equal(t, int64(1), st.DocumentFrequency, "df of %s", tok)
		assert.Equal(t, int64(1), st.TermFrequency, "tf of %s", tok)
		assert.InDelta(t, 1.0/3.0, st.DFRate, 1e-12)
	}
}

func TestValidate_TieBreakIsLexicographic(t *testing.T) {
	// All three candidates score identically here (df=1, tf=1, and two
	// distinct neighbors each), so the frozen order must fall back to
	// token order.
	result, err := Validate(context.Background(),
		[]string{"所以", "因为", "但是"},
		[]corpus.Source{scenarioShard()}, 1, permissiveConfig(3))
	require.NoError(t, err)

	assert.Equal(t, []string{"但是", "因为", "所以"}, result.Set.Anchors())
}

func TestValidate_DeterministicAcrossWorkerCounts(t *testing.T) {
	sentences := [][]string{
		{"因为", "他", "忙", ",", "所以", "他", "没", "去"},
		{"他", "很", "忙", ",", "但是", "他", "去", "了"},
		{"他", "的", "书", "在", "桌子", "上"},
		{"我", "的", "朋友", "因为", "下雨", "没", "来"},
		{"书", "在", "那里"},
	}
	candidates := []string{"因为", "所以", "但是", "的", "在"}

	single, err := Validate(context.Background(), candidates,
		[]corpus.Source{corpus.FromTokens("all", sentences)}, 1, permissiveConfig(5))
	require.NoError(t, err)

	sharded, err := Validate(context.Background(), candidates,
		[]corpus.Source{
			corpus.FromTokens("a", sentences[:2]),
			corpus.FromTokens("b", sentences[2:4]),
			corpus.FromTokens("c", sentences[4:]),
		}, 3, permissiveConfig(5))
	require.NoError(t, err)

	assert.Equal(t, single.Set.Anchors(), sharded.Set.Anchors())
	assert.Equal(t, single.Set.Fingerprint(), sharded.Set.Fingerprint())
	assert.Equal(t, single.TotalSentences, sharded.TotalSentences)
	assert.Equal(t, single.Stats, sharded.Stats)
}

func TestValidate_ThresholdsDiscard(t *testing.T) {
	cfg := permissiveConfig(5)
	cfg.Thresholds.MinDF = 2
	cfg.KeepDiscarded = true

	result, err := Validate(context.Background(),
		[]string{"的", "因为"},
		[]corpus.Source{corpus.FromTokens("c", [][]string{
			{"我", "的", "书"},
			{"他", "的", "笔"},
			{"因为", "下雨"},
		})}, 1, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"的"}, result.Set.Anchors())
	discarded, ok := result.Discarded["因为"]
	require.True(t, ok)
	assert.Equal(t, int64(1), discarded.DocumentFrequency)
}

func TestValidate_NoSurvivorsIsConfigError(t *testing.T) {
	cfg := permissiveConfig(5)
	cfg.Thresholds.MinEntropy = 99

	_, err := Validate(context.Background(),
		[]string{"的"},
		[]corpus.Source{corpus.FromTokens("c", [][]string{{"我", "的", "书"}})}, 1, cfg)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestValidate_ZeroTopKIsConfigError(t *testing.T) {
	_, err := Validate(context.Background(), []string{"的"},
		[]corpus.Source{scenarioShard()}, 1, permissiveConfig(0))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestValidate_UnreadableShardIsSkippedNotFatal(t *testing.T) {
	shards := []corpus.Source{
		&corpus.FileSource{Path: "testdata/does-not-exist.txt", Tok: corpus.WhitespaceTokenizer{}},
		scenarioShard(),
	}

	result, err := Validate(context.Background(),
		[]string{"因为", "所以", "但是"}, shards, 2, permissiveConfig(3))
	require.NoError(t, err)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "testdata/does-not-exist.txt", result.Skipped[0].Shard)
	assert.Error(t, result.Skipped[0].Err)
	assert.Equal(t, int64(3), result.TotalSentences)
}

func TestValidate_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Validate(ctx, []string{"的"},
		[]corpus.Source{scenarioShard()}, 1, permissiveConfig(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEntropyBits(t *testing.T) {
	assert.Equal(t, 0.0, entropyBits(nil))
	assert.Equal(t, 0.0, entropyBits(map[string]int64{"a": 7}))
	assert.InDelta(t, 1.0, entropyBits(map[string]int64{"a": 3, "b": 3}), 1e-12)
	assert.InDelta(t, 2.0, entropyBits(map[string]int64{"a": 1, "b": 1, "c": 1, "d": 1}), 1e-12)

	// Skewed distribution: H = -(0.75*log2(0.75) + 0.25*log2(0.25))
	want := -(0.75*math.Log2(0.75) + 0.25*math.Log2(0.25))
	assert.InDelta(t, want, entropyBits(map[string]int64{"a": 3, "b": 1}), 1e-12)
}

func TestCountersMerge_MatchesSequentialScan(t *testing.T) {
	cands := map[string]bool{"的": true, "在": true}
	sentences := [][]string{
		{"我", "的", "书", "在", "这里"},
		{"他", "的", "的", "在"},
	}

	sequential := newCounters(cands)
	for _, s := range sentences {
		sequential.observe(cands, s)
	}

	p1 := newCounters(cands)
	p1.observe(cands, sentences[0])
	p2 := newCounters(cands)
	p2.observe(cands, sentences[1])
	p1.merge(p2)

	assert.Equal(t, sequential.sentences, p1.sentences)
	assert.Equal(t, sequential.df, p1.df)
	assert.Equal(t, sequential.tf, p1.tf)
	assert.Equal(t, sequential.neighbors, p1.neighbors)
}
