// Package jsonextract recovers JSON objects from free-form model output.
//
// Model completions often wrap the requested array in commentary or code
// fences, and long completions may be cut off mid-object. Extract scans the
// text for JSON starts, parses each candidate permissively and returns every
// object it could recover. Candidates that do not parse are skipped.
package jsonextract

// Extract returns the JSON objects found in text, flattening nested arrays.
// Non-object values and empty objects (a stray "{" or "{}") are ignored. It never fails; no match yields an empty slice.
func Extract(text string) []map[string]any {
	out := make([]map[string]any, 0)

	for i := 0; i < len(text); {
		c := text[i]
		if c != '{' && c != '[' {
			i++

			continue
		}

		v, end, ok := parseLenient(text, i)
		if !ok {
			i++

			continue
		}

		out = flatten(out, v)
		i = end
	}

	return out
}

func flatten(out []map[string]any, v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			return out
		}

		return append(out, t)
	case []any:
		for _, el := range t {
			out = flatten(out, el)
		}
	}

	return out
}
