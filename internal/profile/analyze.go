package profile

import "sort"

// ComponentKind identifies which leaf a ranked component came from.
type ComponentKind string

const (
	KindQuery       ComponentKind = "Query"
	KindCollector   ComponentKind = "Collector"
	KindAggregation ComponentKind = "Aggregation"
)

// ComponentRef is one ranked leaf component across all shards.
type ComponentRef struct {
	Shard  string        `json:"shard"`
	Kind   ComponentKind `json:"kind"`
	Name   string        `json:"name"`
	TimeMS float64       `json:"time_ms"`
}

// ShardCost is one shard's total query time, used for slowest-shard views.
type ShardCost struct {
	Label  string  `json:"label"`
	TimeMS float64 `json:"time_ms"`
}

// Severity tiers for percentage values, presentation contract only.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityElevated = "elevated"
	SeverityModerate = "moderate"
	SeverityLow      = "low"
)

// SelfTime is an operation's total time minus the total time of its direct
// children. Grandchildren are already accounted for inside each child. The
// result may be negative when upstream measurements skew; that is surfaced
// as-is, never clamped.
func SelfTime(op Operation) float64 {
	self := op.TimeMS
	for _, child := range op.Children {
		self -= child.TimeMS
	}
	return self
}

// PercentageOf returns valueMS as a percentage of referenceMS, or 0 when
// the reference is zero or absent. This zero-handling intentionally
// differs from BuildOperations, which falls back to 100 in the same case;
// see the note there.
func PercentageOf(valueMS, referenceMS float64) float64 {
	if referenceMS <= 0 {
		return 0
	}
	return 100 * valueMS / referenceMS
}

// RankComponents flattens every query, collector, and aggregation leaf
// across all shards and sorts them by time descending. The sort is stable:
// equal times keep their input encounter order.
func RankComponents(shards []Shard) []ComponentRef {
	var components []ComponentRef
	for _, shard := range shards {
		label := shard.Label()
		for _, search := range shard.Searches {
			for _, query := range search.Queries {
				components = append(components, ComponentRef{
					Shard:  label,
					Kind:   KindQuery,
					Name:   query.Type,
					TimeMS: query.TimeMS,
				})
			}
			for _, collector := range search.Collectors {
				components = append(components, ComponentRef{
					Shard:  label,
					Kind:   KindCollector,
					Name:   collector.Name,
					TimeMS: collector.TimeMS,
				})
			}
		}
		for _, agg := range shard.Aggregations {
			components = append(components, ComponentRef{
				Shard:  label,
				Kind:   KindAggregation,
				Name:   agg.Type,
				TimeMS: agg.TimeMS,
			})
		}
	}

	sort.SliceStable(components, func(i, j int) bool {
		return components[i].TimeMS > components[j].TimeMS
	})
	return components
}

// RankShards totals each shard's query time and sorts descending.
func RankShards(shards []Shard) []ShardCost {
	costs := make([]ShardCost, 0, len(shards))
	for _, shard := range shards {
		total := 0.0
		for _, search := range shard.Searches {
			for _, query := range search.Queries {
				total += query.TimeMS
			}
		}
		costs = append(costs, ShardCost{Label: shard.Label(), TimeMS: total})
	}

	sort.SliceStable(costs, func(i, j int) bool {
		return costs[i].TimeMS > costs[j].TimeMS
	})
	return costs
}

// SeverityFor maps a percentage to one of five ordered severity tiers.
func SeverityFor(percentage float64) string {
	switch {
	case percentage >= 80:
		return SeverityCritical
	case percentage >= 60:
		return SeverityHigh
	case percentage >= 40:
		return SeverityElevated
	case percentage >= 20:
		return SeverityModerate
	default:
		return SeverityLow
	}
}
