package profile

import "sort"

// counterSuffix marks breakdown fields that carry invocation counts, not
// durations. They are excluded from timing reshaping regardless of value.
const counterSuffix = "_count"

// Raw map-form breakdown values are ambiguous: usually nanoseconds, but
// some producers emit already-scaled milliseconds. Values above this
// threshold are treated as nanoseconds. This is a documented imprecision,
// not a guarantee: a genuinely sub-microsecond nanosecond value will be
// misread as milliseconds.
const nanosHeuristicThreshold = 1000.0

// ReshapeBreakdown normalizes breakdown data of any accepted shape into
// one canonical ranked list: counter fields dropped, zero-time entries
// dropped, descending by time with input order preserved on ties, and at
// most limit entries retained (limit <= 0 keeps everything; the retention
// count is a presentation parameter, not a core invariant).
//
// Accepted shapes: an already-normalized []BreakdownEntry, a raw list of
// {operation, time_ms} objects, or a raw name-to-number map. Only the map
// form applies the nanosecond heuristic; list-form times pass through
// unchanged.
func ReshapeBreakdown(raw any, limit int) []BreakdownEntry {
	var entries []BreakdownEntry

	switch typed := raw.(type) {
	case []BreakdownEntry:
		entries = make([]BreakdownEntry, 0, len(typed))
		for _, entry := range typed {
			entries = append(entries, entry)
		}
	case []any:
		entries = make([]BreakdownEntry, 0, len(typed))
		for _, item := range typed {
			node, ok := docObject(item)
			if !ok {
				continue
			}
			entries = append(entries, BreakdownEntry{
				Operation: docString(node, "operation", "unknown"),
				TimeMS:    docFloat(node, "time_ms"),
			})
		}
	case map[string]any:
		names := make([]string, 0, len(typed))
		for name := range typed {
			names = append(names, name)
		}
		sort.Strings(names)

		entries = make([]BreakdownEntry, 0, len(names))
		for _, name := range names {
			value, ok := numericValue(typed[name])
			if !ok {
				continue
			}
			entries = append(entries, BreakdownEntry{
				Operation: name,
				TimeMS:    scaleBreakdownValue(value),
			})
		}
	default:
		return []BreakdownEntry{}
	}

	ranked := make([]BreakdownEntry, 0, len(entries))
	for _, entry := range entries {
		if isCounterKey(entry.Operation) {
			continue
		}
		if entry.TimeMS == 0 {
			continue
		}
		ranked = append(ranked, entry)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TimeMS > ranked[j].TimeMS
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func scaleBreakdownValue(value float64) float64 {
	if value > nanosHeuristicThreshold {
		return value / nanosPerMilli
	}
	return value
}
