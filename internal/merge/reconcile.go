package merge

import (
	"strings"
)

// NormalizeList trims every item, drops empties and removes case-insensitive
// duplicates. The first casing seen wins and order is preserved.
func NormalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		key := strings.ToLower(it)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Union appends the items of incoming that existing does not already hold
// (case-insensitively). changed is false when the result equals existing, in
// which case existing is returned as is.
func Union(existing, incoming []string) (result []string, changed bool) {
	if len(incoming) == 0 {
		return existing, false
	}

	seen := make(map[string]struct{}, len(existing)+len(incoming))
	result = make([]string, 0, len(existing)+len(incoming))
	for _, it := range existing {
		key := strings.ToLower(strings.TrimSpace(it))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, it)
	}
	dedupedExisting := len(result) == len(existing)

	for _, it := range incoming {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		key := strings.ToLower(it)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, it)
	}

	if dedupedExisting && len(result) == len(existing) {
		return existing, false
	}
	return result, true
}

// MergeNutrition overwrites the keys of existing with those of incoming, one
// level deep. Keys absent from incoming are left untouched.
func MergeNutrition(existing, incoming map[string]float64) (map[string]float64, bool) {
	if len(incoming) == 0 {
		return existing, false
	}

	changed := false
	merged := make(map[string]float64, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		if old, ok := merged[k]; !ok || old != v {
			changed = true
		}
		merged[k] = v
	}
	if !changed {
		return existing, false
	}
	return merged, true
}
