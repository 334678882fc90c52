package profile

import (
	"fmt"
	"sort"
	"strings"
)

const nanosPerMilli = 1_000_000

// Shard is one normalized per-shard trace. Shards are built fresh on every
// normalization pass and never mutated afterwards.
type Shard struct {
	ID           string        `json:"id"`
	Index        string        `json:"index"`
	Searches     []Search      `json:"searches"`
	Aggregations []Aggregation `json:"aggregations"`
}

// Search is one search execution against a shard. A shard may run several,
// for example separate query and dfs phases.
type Search struct {
	Queries    []Query     `json:"queries"`
	Collectors []Collector `json:"collectors"`
}

type Query struct {
	Type        string           `json:"type"`
	Description string           `json:"description"`
	TimeMS      float64          `json:"time_ms"`
	Breakdown   []BreakdownEntry `json:"breakdown"`
}

type Collector struct {
	Name     string      `json:"name"`
	Reason   string      `json:"reason"`
	TimeMS   float64     `json:"time_ms"`
	Children []Collector `json:"children,omitempty"`
}

type Aggregation struct {
	Type        string           `json:"type"`
	Description string           `json:"description"`
	TimeMS      float64          `json:"time_ms"`
	Breakdown   []BreakdownEntry `json:"breakdown"`
}

// BreakdownEntry is one named sub-phase of an operation's elapsed time.
type BreakdownEntry struct {
	Operation string  `json:"operation"`
	TimeMS    float64 `json:"time_ms"`
}

// Label is the display name for a shard, "index[id]".
func (s Shard) Label() string {
	return fmt.Sprintf("%s[%s]", s.Index, s.ID)
}

// Normalize walks the raw profile section's shard list and produces the
// uniform Shard tree with all timings converted to milliseconds. Input
// order of shards, searches, queries, and aggregations is preserved; no
// sorting happens here. The transform is pure and single-pass per shard.
func Normalize(profileSection map[string]any) []Shard {
	rawShards := docList(profileSection, "shards")
	shards := make([]Shard, 0, len(rawShards))
	for i, raw := range rawShards {
		node, ok := docObject(raw)
		if !ok {
			continue
		}
		shards = append(shards, normalizeShard(node, i))
	}
	return shards
}

func normalizeShard(node map[string]any, position int) Shard {
	id := docString(node, "id", fmt.Sprintf("shard_%d", position))
	shard := Shard{
		ID:           id,
		Index:        indexFromShardID(id),
		Searches:     []Search{},
		Aggregations: []Aggregation{},
	}

	for _, rawSearch := range docList(node, "searches") {
		searchNode, ok := docObject(rawSearch)
		if !ok {
			continue
		}
		shard.Searches = append(shard.Searches, normalizeSearch(searchNode))
	}

	for _, rawAgg := range docList(node, "aggregations") {
		aggNode, ok := docObject(rawAgg)
		if !ok {
			continue
		}
		shard.Aggregations = append(shard.Aggregations, Aggregation{
			Type:        docString(aggNode, "type", "unknown"),
			Description: docString(aggNode, "description", ""),
			TimeMS:      docFloat(aggNode, "time_in_nanos") / nanosPerMilli,
			Breakdown:   normalizeBreakdown(aggNode["breakdown"]),
		})
	}

	return shard
}

func normalizeSearch(node map[string]any) Search {
	search := Search{
		Queries:    []Query{},
		Collectors: []Collector{},
	}

	for _, rawQuery := range docList(node, "query") {
		queryNode, ok := docObject(rawQuery)
		if !ok {
			continue
		}
		search.Queries = append(search.Queries, Query{
			Type:        docString(queryNode, "type", "unknown"),
			Description: docString(queryNode, "description", ""),
			TimeMS:      docFloat(queryNode, "time_in_nanos") / nanosPerMilli,
			Breakdown:   normalizeBreakdown(queryNode["breakdown"]),
		})
	}

	for _, rawCollector := range docList(node, "collector") {
		collectorNode, ok := docObject(rawCollector)
		if !ok {
			continue
		}
		search.Collectors = append(search.Collectors, normalizeCollector(collectorNode, true))
	}

	return search
}

// normalizeCollector maps one collector node. One level of children is
// normalized explicitly; anything deeper stays available only through the
// raw form consumed by BuildOperations.
func normalizeCollector(node map[string]any, withChildren bool) Collector {
	collector := Collector{
		Name:   docString(node, "name", "unknown"),
		Reason: docString(node, "reason", ""),
		TimeMS: docFloat(node, "time_in_nanos") / nanosPerMilli,
	}
	if !withChildren {
		return collector
	}
	for _, rawChild := range docList(node, "children") {
		childNode, ok := docObject(rawChild)
		if !ok {
			continue
		}
		collector.Children = append(collector.Children, normalizeCollector(childNode, false))
	}
	return collector
}

// normalizeBreakdown converts a raw breakdown into entries with exact
// nanosecond division. List form keeps its order; map form is keyed and
// therefore unordered in JSON, so keys are sorted for deterministic output.
// Counter fields are kept here; dropping them is the reshaper's contract.
func normalizeBreakdown(raw any) []BreakdownEntry {
	switch typed := raw.(type) {
	case []any:
		entries := make([]BreakdownEntry, 0, len(typed))
		for _, item := range typed {
			node, ok := docObject(item)
			if !ok {
				continue
			}
			entries = append(entries, BreakdownEntry{
				Operation: docString(node, "operation", "unknown"),
				TimeMS:    docFloat(node, "time_in_nanos") / nanosPerMilli,
			})
		}
		return entries
	case map[string]any:
		names := make([]string, 0, len(typed))
		for name := range typed {
			names = append(names, name)
		}
		sort.Strings(names)

		entries := make([]BreakdownEntry, 0, len(names))
		for _, name := range names {
			value, ok := numericValue(typed[name])
			if !ok {
				continue
			}
			entries = append(entries, BreakdownEntry{
				Operation: name,
				TimeMS:    value / nanosPerMilli,
			})
		}
		return entries
	default:
		return []BreakdownEntry{}
	}
}

// indexFromShardID derives the index name from a shard id of the form
// "index[n]". The split is purely syntactic, not a topology lookup.
func indexFromShardID(id string) string {
	if i := strings.Index(id, "["); i >= 0 {
		return id[:i]
	}
	return "unknown"
}
