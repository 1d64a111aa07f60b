// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package types holds small generic containers shared by the operator and kernel packages.
// See sub-packages `shapes` and `tensors`.
package types

import (
	"cmp"
	"slices"
)

// Set of comparable keys, used for reduction axes and dtype groups.
type Set[T comparable] map[T]struct{}

// MakeSet returns an empty Set with room for size elements.
func MakeSet[T comparable](size int) Set[T] {
	return make(Set[T], size)
}

// SetWith creates a Set with the given elements.
func SetWith[T comparable](elements ...T) Set[T] {
	s := MakeSet[T](len(elements))
	s.Insert(elements...)
	return s
}

// Has returns whether key is in the set.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into the set.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// SortedElements returns the elements of an ordered set in increasing order.
//
// Reduce axes are kept in a Set, and everything that is printed or hashed from them (signatures,
// cache keys, provider arguments) uses this order.
func SortedElements[T cmp.Ordered](s Set[T]) []T {
	elements := make([]T, 0, len(s))
	for k := range s {
		elements = append(elements, k)
	}
	slices.Sort(elements)
	return elements
}
