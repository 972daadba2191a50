package graph

import "strconv"

// GetString returns the string at key, or "".
func GetString(r Record, key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

// GetInt returns the integer at key. Bolt integers arrive as int64;
// floats are truncated and numeric strings parsed.
func GetInt(r Record, key string) int {
	switch n := r[key].(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case string:
		v, _ := strconv.Atoi(n)
		return v
	}
	return 0
}

// GetFloat returns the number at key as float64, or 0.
func GetFloat(r Record, key string) float64 {
	switch n := r[key].(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// GetStringSlice returns the string list at key. Non-string items are
// skipped; a missing key yields nil.
func GetStringSlice(r Record, key string) []string {
	switch s := r[key].(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// GetMapSlice returns a list of maps at key, as produced by
// collect({...}) in Cypher.
func GetMapSlice(r Record, key string) []map[string]any {
	items, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
