package overrides

// Normalize projects a raw record onto the recognized field set. Missing
// fields become nil, unrecognized fields are dropped, values pass through
// unchanged. Two records with the same recognized values normalize to equal
// entries no matter what extra keys the source attached.
func Normalize(raw map[string]any) Entry {
	out := make(Entry, len(Fields))
	for _, k := range Fields {
		out[k] = raw[k]
	}
	return out
}
