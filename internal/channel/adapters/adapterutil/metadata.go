package adapterutil

import (
	"encoding/json"
	"strconv"
	"strings"
)

// StringMetadata flattens provider attribute maps into string metadata. Later maps win on
// conflicting keys. Nil and empty values are skipped; non-string scalars are formatted and
// nested values JSON encoded.
func StringMetadata(sources ...map[string]any) map[string]string {
	out := map[string]string{}
	for _, src := range sources {
		for key, raw := range src {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if value, ok := stringValue(raw); ok {
				out[key] = value
			}
		}
	}
	return out
}

func stringValue(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		s := string(encoded)
		if s == "{}" || s == "[]" || s == "null" {
			return "", false
		}
		return s, true
	}
}
