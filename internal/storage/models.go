package storage

import (
	"fmt"
	"sort"
	"strings"
)

// EmbeddedDocument is a chunk ready for the index. IDs are caller- or
// content-derived; re-upserting an ID replaces the previous entry.
type EmbeddedDocument struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]any // Scalars only: string, bool, int64, float64
}

// SearchHit is one similarity match. Hits are produced per query and never stored.
type SearchHit struct {
	ID       string
	Content  string
	Score    float64 // In [0, 1], higher is more similar
	Metadata map[string]any
}

// Filter restricts a query to entries whose metadata equals every given value.
type Filter map[string]string

// Keys returns the filter keys in sorted order.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matches reports whether metadata satisfies the filter.
func (f Filter) Matches(metadata map[string]any) bool {
	for k, want := range f {
		got, ok := metadata[k]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

// Stats summarises the index.
type Stats struct {
	Count     uint64
	Dimension int
	Fullness  float64 // Count/Capacity, or 0 when no capacity is configured
}

// NormalizeMetadata converts metadata values to the scalar set the backends
// store. String slices are joined with ", ".
func NormalizeMetadata(metadata map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case nil:
			continue
		case string, bool, int64, float64:
			out[k] = val
		case int:
			out[k] = int64(val)
		case int32:
			out[k] = int64(val)
		case uint32:
			out[k] = int64(val)
		case float32:
			out[k] = float64(val)
		case []string:
			out[k] = strings.Join(val, ", ")
		default:
			return nil, fmt.Errorf("%w: metadata %q has unsupported type %T", ErrInvalidDocument, k, v)
		}
	}
	return out, nil
}
