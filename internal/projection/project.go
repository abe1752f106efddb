// Package projection derives the list views of the dashboard from store
// collections: search, categorical narrowing, grouping and status counts,
// always in that order and always recomputed from scratch.
package projection

import "strings"

// Group is one partition of a grouped list, in first-encounter order.
type Group[T any] struct {
	Key   string
	Items []T
}

// Filter keeps the items for which keep returns true, preserving order.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// GroupBy partitions items by key. Groups appear in the order their key was
// first seen; items keep their relative order inside a group.
func GroupBy[T any](items []T, key func(T) string) []Group[T] {
	var groups []Group[T]
	index := make(map[string]int)
	for _, it := range items {
		k := key(it)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group[T]{Key: k})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

// CountBy tallies items per key.
func CountBy[T any, K comparable](items []T, key func(T) K) map[K]int {
	out := make(map[K]int)
	for _, it := range items {
		out[key(it)]++
	}
	return out
}

// matchQuery reports whether q is a case-insensitive substring of any field.
// An empty query matches everything.
func matchQuery(q string, fields ...string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// matchSelector treats the empty string as "no constraint".
func matchSelector(selector, value string) bool {
	return selector == "" || selector == value
}
