package overrides

// Fields is the fixed, ordered set of recognized override fields. Everything
// else on a raw record is dropped during normalization.
var Fields = []string{"due_at", "unlock_at", "lock_at", "title", "base"}

// EntryField is the pseudo field name used in a position diff when one side
// has no entry at that index (whole entry added or removed).
const EntryField = "<entry>"

// Entry is a normalized override record: exactly the recognized fields,
// absent ones filled with nil. Values are kept as received (string, bool,
// number, nil) with no coercion.
type Entry map[string]any

// Snapshot maps a quiz id (string form of its numeric id) to the sorted
// group of normalized override entries for that quiz. This is the unit of
// persistence and of diffing.
type Snapshot map[string][]Entry

// ParentRecord is one item of the fetched payload: a quiz id plus its raw
// due-date records. An empty ID means the source item had no quiz id; the
// indexer skips such items and reports them to the caller.
type ParentRecord struct {
	ID       string
	Children []map[string]any
}

// FieldChange holds the before/after values of a single field.
type FieldChange struct {
	Old any
	New any
}

// PositionDiff collects the field changes at one index of a group.
type PositionDiff struct {
	Index  int
	Fields map[string]FieldChange
}

// GroupDiff is the full positional diff for one quiz present in both
// snapshots.
type GroupDiff struct {
	ID        string
	Positions []PositionDiff
}

// ChangeSet is the structured result of comparing two snapshots. Added and
// Removed are sorted by numeric id ascending; Changed is ordered the same
// way and contains only quizzes with at least one non-empty position diff.
type ChangeSet struct {
	Added   []string
	Removed []string
	Changed []GroupDiff
}

// Empty reports whether the change-set carries no changes at all.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}
