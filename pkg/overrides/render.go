package overrides

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

var timestampFields = map[string]bool{
	"due_at":    true,
	"unlock_at": true,
	"lock_at":   true,
}

// Render formats a change-set into the notification text. An empty
// change-set renders to "" (meaning: send nothing). The output is fully
// deterministic: ids arrive numerically sorted from Diff, positions are in
// index order, and fields render in schema order with extras alphabetical
// after. Truncation to transport limits is the transport's job, not ours.
func Render(cs ChangeSet, contextLabel string) string {
	if cs.Empty() {
		return ""
	}

	var lines []string
	if len(cs.Added) > 0 {
		lines = append(lines, "**➕ Quizzes added (new overrides):** "+backtickList(cs.Added))
	}
	if len(cs.Removed) > 0 {
		lines = append(lines, "**➖ Quizzes removed (overrides gone):** "+backtickList(cs.Removed))
	}
	if len(cs.Changed) > 0 {
		lines = append(lines, "**✏️ Overrides changed:**")
		for _, g := range cs.Changed {
			lines = append(lines, fmt.Sprintf("- quiz `%s`", g.ID))
			for _, p := range g.Positions {
				lines = append(lines, "   • "+renderPosition(p))
			}
		}
	}

	header := fmt.Sprintf("📣 Canvas changes detected for course `%s` (quiz_assignment_overrides)", contextLabel)
	return header + "\n" + strings.Join(lines, "\n")
}

func renderPosition(p PositionDiff) string {
	if fc, ok := p.Fields[EntryField]; ok {
		return fmt.Sprintf("entry #%d: %s → %s", p.Index, jsonDump(fc.Old), jsonDump(fc.New))
	}
	var parts []string
	for _, k := range orderedFieldNames(p.Fields) {
		fc := p.Fields[k]
		if timestampFields[k] {
			parts = append(parts, fmt.Sprintf("%s: `%s` → `%s`", k, timestampValue(fc.Old), timestampValue(fc.New)))
		} else {
			parts = append(parts, fmt.Sprintf("%s: `%s` → `%s`", k, plainValue(fc.Old), plainValue(fc.New)))
		}
	}
	return strings.Join(parts, "; ")
}

// orderedFieldNames returns field names in recognized-schema order first,
// then any extra names alphabetically.
func orderedFieldNames(fields map[string]FieldChange) []string {
	var out []string
	for _, k := range Fields {
		if _, ok := fields[k]; ok {
			out = append(out, k)
		}
	}
	var extras []string
	known := make(map[string]bool, len(Fields))
	for _, k := range Fields {
		known[k] = true
	}
	for k := range fields {
		if !known[k] {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return append(out, extras...)
}

// timestampValue renders a timestamp field: the raw value, or the literal
// null marker when absent or empty.
func timestampValue(v any) string {
	if v == nil || v == "" {
		return "null"
	}
	return fmt.Sprint(v)
}

func plainValue(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}

func jsonDump(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func backtickList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "`" + id + "`"
	}
	return strings.Join(quoted, ", ")
}
