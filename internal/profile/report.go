package profile

// LargeProfileShardCount is the shard count above which callers should
// warn that analysis may take a while.
const LargeProfileShardCount = 100

// Report is the complete analysis of one profile response: an immutable
// snapshot recomputed from scratch on each load.
type Report struct {
	TookMS     float64        `json:"took_ms"`
	HasPhases  bool           `json:"has_phases"`
	Phases     []PhaseTiming  `json:"phases,omitempty"`
	Shards     []Shard        `json:"shards"`
	Components []ComponentRef `json:"components"`
	SlowShards []ShardCost    `json:"slow_shards"`

	// rawShards keeps the untyped per-shard trace so operation trees can
	// be rebuilt on demand without re-parsing the document.
	rawShards []any
}

// Analyze runs the full pipeline over a parsed document: phase summary,
// shard normalization, and component ranking. Documents without a profile
// section fail with MissingProfileError.
func Analyze(doc Document) (*Report, error) {
	section, ok := doc.Profile()
	if !ok {
		return nil, &MissingProfileError{Document: doc}
	}

	report := &Report{
		TookMS:    doc.TookMS(),
		Shards:    Normalize(section),
		rawShards: docList(section, "shards"),
	}
	if phaseTook, ok := doc.PhaseTook(); ok {
		report.HasPhases = true
		report.Phases = SummarizePhases(phaseTook)
	}
	report.Components = RankComponents(report.Shards)
	report.SlowShards = RankShards(report.Shards)

	return report, nil
}

// ShardCount returns the number of normalized shards.
func (r *Report) ShardCount() int {
	return len(r.Shards)
}

// TopComponents returns the first n ranked components.
func (r *Report) TopComponents(n int) []ComponentRef {
	if n <= 0 || n > len(r.Components) {
		n = len(r.Components)
	}
	return r.Components[:n]
}

// OperationsFor rebuilds the operation tree for one search of one shard
// from the raw trace. The second return is false when the indices do not
// address a search in the raw data.
func (r *Report) OperationsFor(shardIdx, searchIdx int) ([]Operation, bool) {
	if shardIdx < 0 || shardIdx >= len(r.rawShards) {
		return nil, false
	}
	shardNode, ok := docObject(r.rawShards[shardIdx])
	if !ok {
		return nil, false
	}
	searches := docList(shardNode, "searches")
	if searchIdx < 0 || searchIdx >= len(searches) {
		return nil, false
	}
	searchNode, ok := docObject(searches[searchIdx])
	if !ok {
		return nil, false
	}
	return BuildOperations(searchNode["query"], 0), true
}
