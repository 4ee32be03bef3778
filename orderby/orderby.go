// Package orderby implements the order specification applied to query
// results. The same comparator is used by the server when selecting rows
// and by the client when re-sorting optimistic snapshots, so both sides
// agree on where a speculative row lands.
package orderby

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

type JSON = map[string]interface{}

// Field is one term of an order specification.
type Field struct {
	Name       string `json:"name"`
	Descending bool   `json:"descending,omitempty"`
}

// Parse reads a comma separated list of field names, each optionally
// prefixed with '-' to reverse it, for example "name,-age".
func Parse(spec string) []Field {

	fields := []Field{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields = append(fields, Field{
			Name:       strings.TrimPrefix(part, "-"),
			Descending: strings.HasPrefix(part, "-"),
		})
	}

	return fields
}

// String is the inverse of Parse.
func String(spec []Field) string {

	parts := make([]string, 0, len(spec))
	for _, field := range spec {
		if field.Descending {
			parts = append(parts, "-"+field.Name)
			continue
		}
		parts = append(parts, field.Name)
	}

	return strings.Join(parts, ",")
}

// Sort returns a sorted copy of rows. The sort is stable so rows that
// compare equal keep their relative order, and the input is never
// modified.
func Sort(spec []Field, rows []JSON) []JSON {

	if len(spec) == 0 || len(rows) == 0 {
		return rows
	}

	sorted := make([]JSON, len(rows))
	copy(sorted, rows)

	sort.SliceStable(sorted, func(i, j int) bool {
		return Compare(spec, sorted[i], sorted[j]) < 0
	})

	return sorted
}

// Compare returns -1, 0 or 1 comparing a and b field by field. Missing
// values sort first, values of unsupported or mismatched types do not
// alter the order.
func Compare(spec []Field, a, b JSON) int {

	for _, field := range spec {
		valueA, existsA := a[field.Name]
		valueB, existsB := b[field.Name]

		c := 0
		switch {
		case !existsA && !existsB:
			continue
		case !existsA:
			c = -1
		case !existsB:
			c = 1
		default:
			c = compareValues(valueA, valueB)
		}

		if c == 0 {
			continue
		}
		if field.Descending {
			return -c
		}
		return c
	}

	return 0
}

func compareValues(a, b interface{}) int {

	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0
		}
		if a == nil {
			return -1 // nulls first, like missing fields
		}
		return 1
	}

	if valueA, ok := a.(string); ok {
		valueB, ok := b.(string)
		if !ok {
			return 0
		}
		return strings.Compare(valueA, valueB)
	}

	if valueA, ok := Number(a); ok {
		valueB, ok := Number(b)
		if !ok {
			return 0
		}
		if valueA < valueB {
			return -1
		}
		if valueA > valueB {
			return 1
		}
		return 0
	}

	if valueA, ok := a.(bool); ok {
		valueB, ok := b.(bool)
		if !ok {
			return 0
		}
		if valueA == valueB {
			return 0
		}
		if valueB {
			return -1 // false before true
		}
		return 1
	}

	return 0
}

// Number upcasts any numeric JSON value to float64. Rows decoded from
// JSON carry float64 but rows built in Go code may carry int values.
func Number(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	}
	return 0, false
}
