package normalize

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"
)

// record is one decoded JSON object read through an alias table.
type record struct {
	fields  map[string]any
	aliases Aliases
}

func newRecord(raw any, aliases Aliases) record {
	return record{fields: asObject(raw), aliases: aliases}
}

func (r record) empty() bool {
	return len(r.fields) == 0
}

// value returns the first present, non-null value among the aliases of field.
// Blank strings count as absent.
func (r record) value(field string) (any, bool) {
	if r.fields == nil {
		return nil, false
	}
	names, ok := r.aliases[field]
	if !ok {
		names = []string{field}
	}
	for _, name := range names {
		v, ok := r.fields[name]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func (r record) str(field, fallback string) string {
	v, ok := r.value(field)
	if !ok {
		return fallback
	}
	s, ok := toText(v)
	if !ok {
		return fallback
	}
	return s
}

func (r record) float(field string) *float64 {
	v, ok := r.value(field)
	if !ok {
		return nil
	}
	return toFloat(v)
}

func (r record) count(field string) (int, bool) {
	v, ok := r.value(field)
	if !ok {
		return 0, false
	}
	return toCount(v)
}

func (r record) strings(field string) []string {
	v, ok := r.value(field)
	if !ok {
		return []string{}
	}
	return toStringList(v)
}

func (r record) list(field string) []any {
	v, ok := r.value(field)
	if !ok {
		return nil
	}
	return toList(v)
}

func (r record) object(field string) map[string]any {
	v, ok := r.value(field)
	if !ok {
		return nil
	}
	return asObject(v)
}

// asObject accepts a decoded object, or JSON text that decodes to one.
func asObject(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	case json.RawMessage:
		return decodeObject(v)
	case []byte:
		return decodeObject(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "{") {
			return decodeObject([]byte(trimmed))
		}
	}
	return nil
}

func decodeObject(data []byte) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func toText(v any) (string, bool) {
	switch v.(type) {
	case map[string]any, []any, bool:
		return "", false
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	s = cleanText(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func toFloat(v any) *float64 {
	if _, isBool := v.(bool); isBool {
		return nil
	}
	if s, isString := v.(string); isString {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func toCount(v any) (int, bool) {
	f := toFloat(v)
	if f == nil {
		return 0, false
	}
	n := cast.ToInt(math.Trunc(*f))
	if n < 0 {
		n = 0
	}
	return n, true
}

// toStringList accepts a list of scalars, or a single string holding a
// comma separated list.
func toStringList(v any) []string {
	out := []string{}
	switch list := v.(type) {
	case string:
		for _, part := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == '،' }) {
			if s := cleanText(part); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range list {
			if s := cleanText(item); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range list {
			if s, ok := toText(item); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// toList accepts a JSON array, or a single object which is treated as a
// one-element array.
func toList(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []map[string]any:
		out := make([]any, 0, len(list))
		for _, item := range list {
			out = append(out, item)
		}
		return out
	case map[string]any:
		return []any{list}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
