package manifest

// DeepMergeLastWins merges objects left to right into a new object.
//
// A key present in several objects takes the value of the last one, except
// when both the accumulated value and the incoming value are objects: those
// are merged recursively with the same rule. Arrays are never merged, they
// are replaced. An object merged onto a scalar or array replaces it, and so
// does a scalar or null merged onto an object. Inputs are not modified; the
// result shares no maps or slices with them.
func DeepMergeLastWins(objs ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, obj := range objs {
		mergeInto(result, obj)
	}
	return result
}

func mergeInto(dst, src map[string]any) {
	for key, val := range src {
		incoming, incomingIsObject := val.(map[string]any)
		if !incomingIsObject {
			dst[key] = Clone(val)
			continue
		}
		if current, ok := dst[key].(map[string]any); ok {
			mergeInto(current, incoming)
			continue
		}
		dst[key] = Clone(incoming)
	}
}

// Clone deep-copies JSON-like data made of maps, slices and scalars.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}

// CloneObject deep-copies an object.
func CloneObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return Clone(m).(map[string]any)
}

// UniqueBy groups objects by the string value of key, keeping the position of
// the first occurrence and deep-merging later occurrences on top of it.
// Entries that are not objects are kept as they are.
func UniqueBy(items []any, key string) []any {
	out := make([]any, 0, len(items))
	positions := make(map[string]int)

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			out = append(out, Clone(item))
			continue
		}
		id := keyOf(obj, key)
		if pos, seen := positions[id]; seen {
			out[pos] = DeepMergeLastWins(out[pos].(map[string]any), obj)
			continue
		}
		positions[id] = len(out)
		out = append(out, DeepMergeLastWins(obj))
	}
	return out
}

// UniquePages deduplicates page entries by path.
func UniquePages(pages []any) []any {
	return UniqueBy(pages, "path")
}

func keyOf(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return "s:" + v
	case nil:
		return "nil"
	default:
		return "v:" + stringify(v)
	}
}
