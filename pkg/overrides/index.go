package overrides

import (
	"fmt"
	"sort"
)

// Index builds a canonical snapshot from a fetched payload. Items without a
// quiz id are skipped; the count of skipped items is returned so the caller
// can log it as a data-quality signal. Each quiz's entries are normalized
// and sorted by the composite key, so identical payloads always index to
// identical group sequences.
func Index(items []ParentRecord) (Snapshot, int) {
	snap := make(Snapshot, len(items))
	skipped := 0
	for _, item := range items {
		if item.ID == "" {
			skipped++
			continue
		}
		group := make([]Entry, 0, len(item.Children))
		for _, child := range item.Children {
			group = append(group, Normalize(child))
		}
		sortGroup(group)
		snap[item.ID] = group
	}
	return snap, skipped
}

// sortGroup orders entries by (title, base flag descending, due_at,
// unlock_at, lock_at), all compared as strings. The key is total for
// well-formed input; stable sort keeps ties reproducible across runs.
func sortGroup(group []Entry) {
	sort.SliceStable(group, func(i, j int) bool {
		return lessKey(sortKey(group[i]), sortKey(group[j]))
	})
}

func lessKey(a, b [5]string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func sortKey(e Entry) [5]string {
	// Base entries sort before non-base ones within the same title, hence
	// the inverted rank.
	baseRank := "1"
	if b, ok := e["base"].(bool); ok && b {
		baseRank = "0"
	}
	return [5]string{
		keyString(e["title"]),
		baseRank,
		keyString(e["due_at"]),
		keyString(e["unlock_at"]),
		keyString(e["lock_at"]),
	}
}

func keyString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
