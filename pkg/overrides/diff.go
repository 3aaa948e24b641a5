package overrides

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// ErrUnsortableID is returned when a quiz id does not parse as an integer.
// Report ordering is numeric, so a non-numeric id cannot be placed correctly
// and must be surfaced instead of silently misordered.
var ErrUnsortableID = errors.New("quiz id is not numeric")

// Diff compares two canonical snapshots. Added and Removed hold ids present
// on only one side; Changed holds a positional, field-level diff for every
// id present on both sides whose groups differ.
//
// Comparison is index-aligned after sort normalization, not content-matched:
// a single inserted entry can cascade into several position diffs. That is
// the intended behavior; a key-matched diff would be a separate algorithm,
// not a tweak here.
func Diff(oldSnap, newSnap Snapshot) (ChangeSet, error) {
	var cs ChangeSet
	var common []string
	for id := range newSnap {
		if _, ok := oldSnap[id]; ok {
			common = append(common, id)
		} else {
			cs.Added = append(cs.Added, id)
		}
	}
	for id := range oldSnap {
		if _, ok := newSnap[id]; !ok {
			cs.Removed = append(cs.Removed, id)
		}
	}

	for _, ids := range [][]string{cs.Added, cs.Removed, common} {
		if err := sortNumeric(ids); err != nil {
			return ChangeSet{}, err
		}
	}

	for _, id := range common {
		if positions := diffGroups(oldSnap[id], newSnap[id]); len(positions) > 0 {
			cs.Changed = append(cs.Changed, GroupDiff{ID: id, Positions: positions})
		}
	}
	return cs, nil
}

func sortNumeric(ids []string) error {
	keys := make(map[string]int64, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrUnsortableID, id)
		}
		keys[id] = n
	}
	sort.Slice(ids, func(i, j int) bool { return keys[ids[i]] < keys[ids[j]] })
	return nil
}

// diffGroups compares two sorted groups position by position up to the
// longer group's length. A position where only one side has an entry yields
// a single whole-entry diff; otherwise every differing field over the union
// of both entries' keys is recorded.
func diffGroups(oldGroup, newGroup []Entry) []PositionDiff {
	var out []PositionDiff
	n := len(oldGroup)
	if len(newGroup) > n {
		n = len(newGroup)
	}
	for i := 0; i < n; i++ {
		var left, right Entry
		if i < len(oldGroup) {
			left = oldGroup[i]
		}
		if i < len(newGroup) {
			right = newGroup[i]
		}
		switch {
		case left == nil || right == nil:
			out = append(out, PositionDiff{
				Index:  i,
				Fields: map[string]FieldChange{EntryField: {Old: entryValue(left), New: entryValue(right)}},
			})
		default:
			fields := make(map[string]FieldChange)
			for _, k := range unionKeys(left, right) {
				if !valueEqual(left[k], right[k]) {
					fields[k] = FieldChange{Old: left[k], New: right[k]}
				}
			}
			if len(fields) > 0 {
				out = append(out, PositionDiff{Index: i, Fields: fields})
			}
		}
	}
	return out
}

// unionKeys merges both entries' key sets. Normalized entries share the
// fixed schema, but a snapshot loaded from an older or hand-edited file may
// carry extras; comparing the union keeps those visible without widening
// the schema anywhere else.
func unionKeys(a, b Entry) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var keys []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func valueEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// entryValue keeps a missing entry as a plain nil interface instead of a
// typed nil map, so renderers and JSON encoding see real null.
func entryValue(e Entry) any {
	if e == nil {
		return nil
	}
	return e
}
