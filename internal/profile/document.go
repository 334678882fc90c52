package profile

import "strings"

// Document is a parsed profile response envelope. The cluster is a trust
// boundary: any field may be absent or carry an unexpected type, so all
// access goes through the typed accessors below and absence never
// propagates past the normalizer.
type Document map[string]any

// Profile returns the document's profile section, if present.
func (d Document) Profile() (map[string]any, bool) {
	return docObject(d["profile"])
}

// PhaseTook returns the raw per-phase timing map, if present.
func (d Document) PhaseTook() (map[string]any, bool) {
	return docObject(d["phase_took"])
}

// TookMS returns the cluster-reported total time in milliseconds.
func (d Document) TookMS() float64 {
	return docFloat(d, "took")
}

func docObject(value any) (map[string]any, bool) {
	typed, ok := value.(map[string]any)
	return typed, ok
}

func docString(node map[string]any, key, fallback string) string {
	raw, ok := node[key]
	if !ok {
		return fallback
	}
	value, ok := raw.(string)
	if !ok {
		return fallback
	}
	return value
}

func docFloat(node map[string]any, key string) float64 {
	raw, ok := node[key]
	if !ok {
		return 0
	}
	switch typed := raw.(type) {
	case float64:
		return typed
	case float32:
		return float64(typed)
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	default:
		return 0
	}
}

func docList(node map[string]any, key string) []any {
	raw, ok := node[key]
	if !ok {
		return nil
	}
	typed, ok := raw.([]any)
	if !ok {
		return nil
	}
	return typed
}

func numericValue(raw any) (float64, bool) {
	switch typed := raw.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	default:
		return 0, false
	}
}

func isCounterKey(name string) bool {
	return strings.HasSuffix(name, counterSuffix)
}
