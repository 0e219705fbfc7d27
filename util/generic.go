// util/generic.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"slices"

	"golang.org/x/exp/constraints"
)

func Select[T any](sel bool, a, b T) T {
	if sel {
		return a
	} else {
		return b
	}
}

// SortedMapKeys returns the keys of the given map, sorted from low to high.
func SortedMapKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MapSlice returns the slice that is the result of applying the provided
// xform function to all of the elements of the given slice.
func MapSlice[F, T any](from []F, xform func(F) T) []T {
	var to []T
	for _, item := range from {
		to = append(to, xform(item))
	}
	return to
}

// FilterSliceInPlace applies the given filter function pred to the given
// slice, returning a slice constructed from the provided slice's memory
// that only contains elements where pred returned true.
func FilterSliceInPlace[V any](s []V, pred func(V) bool) []V {
	out := s[:0]
	for _, item := range s {
		if pred(item) {
			out = append(out, item)
		}
	}
	// Clear the tail so that pointers there can be collected.
	clear(s[len(out):])
	return out
}
