// Package metadata packs and unpacks the single per-entry metadata field
// the full-text index attaches to each posting: "_occurs_", a comma-joined
// decimal list of the positions a word occurs at in a record, bounded to
// 255 bytes to fit the substrate's fixed-size metadata slots.
package metadata

import (
	"log/slog"
	"strconv"
	"strings"
)

// FieldName is the sole metadata key this index type declares.
const FieldName = "_occurs_"

// MaxBytes is the fixed byte budget enforced on the encoded field.
const MaxBytes = 255

// Encode renders indexes as a comma-joined decimal string, truncated at
// the last comma boundary at or before MaxBytes. word and path are used
// only to label the truncation warning; both may be empty.
func Encode(indexes []int, word, path string) string {
	if len(indexes) == 0 {
		return ""
	}
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = strconv.Itoa(idx)
	}
	full := strings.Join(parts, ",")
	if len(full) <= MaxBytes {
		return full
	}

	cut := strings.LastIndex(full[:MaxBytes+1], ",")
	if cut < 0 {
		// not even the first position fits; truncate hard (best effort).
		cut = MaxBytes
	}
	truncated := full[:cut]
	slog.Warn("_occurs_ metadata truncated",
		"word", word,
		"path", path,
		"original_bytes", len(full),
		"truncated_bytes", len(truncated),
	)
	return truncated
}

// Decode parses a comma-joined decimal string back into an ordered list of
// non-negative integers. An empty string decodes to an empty (nil) list.
func Decode(encoded string) []int {
	if encoded == "" {
		return nil
	}
	parts := strings.Split(encoded, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
