// Package attrs works with slog-style key/value argument lists
// ([key1, value1, key2, value2, ...]).
package attrs

// AppendNonEmpty appends key and value only when value is not empty.
func AppendNonEmpty(attrs []any, key, value string) []any {
	if value == "" {
		return attrs
	}
	return append(attrs, key, value)
}
