package docstore

// MergePatch applies an RFC 7396 JSON merge patch to target. Object keys
// merge recursively, a null patch value deletes the key, and arrays and
// scalars replace wholesale. Neither input is mutated.
func MergePatch(target, patch any) any {
	patchObj, ok := patch.(map[string]any)
	if !ok {
		// Non-object patch replaces the target entirely.
		return clone(patch)
	}
	targetObj, ok := target.(map[string]any)
	if !ok {
		targetObj = map[string]any{}
	}
	out := make(map[string]any, len(targetObj))
	for k, v := range targetObj {
		out[k] = clone(v)
	}
	for k, v := range patchObj {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = MergePatch(out[k], v)
	}
	return out
}

// clone deep-copies a parsed JSON value.
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = clone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	default:
		return v
	}
}
