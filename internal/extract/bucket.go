package extract

// GapBucket maps a non-negative intervening-token gap to its bucket
// label. The table is total over all g >= 0 and every gap lands in
// exactly one bucket, so bucketed keys stay comparable across corpora
// with very different sentence lengths.
//
// Bucket table (frozen; changing it orphans every persisted bucketed
// key): 0, 1, 2-3, 4-7, 8+.
func GapBucket(g int) string {
	switch {
	case g <= 0:
		return "0"
	case g == 1:
		return "1"
	case g <= 3:
		return "2-3"
	case g <= 7:
		return "4-7"
	default:
		return "8+"
	}
}
