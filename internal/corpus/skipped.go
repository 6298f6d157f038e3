package corpus

// Skipped records a shard-level scan failure. Scans continue over the
// remaining shards; skips are surfaced to the caller, never hidden.
type Skipped struct {
	Shard string
	Err   error
}
