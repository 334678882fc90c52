package profile

// phaseOrder is the fixed display order of known query execution phases.
var phaseOrder = []string{
	"dfs_pre_query",
	"query",
	"fetch",
	"dfs_query",
	"expand",
	"can_match",
}

// PhaseTiming is one phase's elapsed time, already in milliseconds per the
// external protocol. No unit normalization happens here.
type PhaseTiming struct {
	Phase  string  `json:"phase"`
	TimeMS float64 `json:"time_ms"`
}

// SummarizePhases extracts the known phases from a raw phase_took mapping
// in fixed order, defaulting absent phases to 0. Values pass through as
// received.
func SummarizePhases(phaseTook map[string]any) []PhaseTiming {
	phases := make([]PhaseTiming, 0, len(phaseOrder))
	for _, phase := range phaseOrder {
		phases = append(phases, PhaseTiming{
			Phase:  phase,
			TimeMS: docFloat(phaseTook, phase),
		})
	}
	return phases
}
