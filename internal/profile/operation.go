package profile

// Operation is one node of the hierarchical view of a single search's raw
// query trace. The tree is transient: it is rebuilt from raw data whenever
// a hierarchical view is needed and is not part of the normalized Shard.
type Operation struct {
	Type        string      `json:"type"`
	Description string      `json:"description"`
	TimeMS      float64     `json:"time_ms"`
	TimeNS      float64     `json:"time_ns"`
	Breakdown   any         `json:"breakdown,omitempty"`
	Children    []Operation `json:"children,omitempty"`
	Percentage  float64     `json:"percentage"`
}

// maxOperationDepth bounds recursion through the children relation. Well
// formed traces are acyclic, so this is purely a defensive cap.
const maxOperationDepth = 64

// BuildOperations expands a raw query entry, or list of entries, into a
// tree of Operations. parentTimeMS is the reference time for percentage
// attribution: when it is not a positive number every node at this level
// gets 100, which also guards the zero-reference divide. Each node's
// children recurse with that node's own time as the new reference.
//
// Note the asymmetry with PercentageOf, which yields 0 for a zero
// reference. The two call sites have always handled the zero case
// differently and the difference is kept deliberately.
func BuildOperations(raw any, parentTimeMS float64) []Operation {
	return buildOperations(raw, parentTimeMS, 0)
}

func buildOperations(raw any, parentTimeMS float64, depth int) []Operation {
	if depth > maxOperationDepth {
		return nil
	}

	switch node := raw.(type) {
	case []any:
		// A list flattens into the concatenated builds of its elements,
		// all sharing the same parent reference.
		ops := make([]Operation, 0, len(node))
		for _, item := range node {
			ops = append(ops, buildOperations(item, parentTimeMS, depth+1)...)
		}
		return ops
	case map[string]any:
		timeNS := docFloat(node, "time_in_nanos")
		timeMS := timeNS / nanosPerMilli

		percentage := 100.0
		if parentTimeMS > 0 {
			percentage = 100 * timeMS / parentTimeMS
		}

		op := Operation{
			Type:        docString(node, "type", "unknown"),
			Description: docString(node, "description", ""),
			TimeMS:      timeMS,
			TimeNS:      timeNS,
			Breakdown:   node["breakdown"],
			Percentage:  percentage,
		}
		if children, ok := node["children"]; ok {
			op.Children = buildOperations(children, timeMS, depth+1)
		}
		return []Operation{op}
	default:
		return nil
	}
}
