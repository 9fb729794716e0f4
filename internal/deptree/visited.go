// SPDX-License-Identifier: MPL-2.0

package deptree

import (
	"maps"
	"slices"
)

// VisitedSet is an immutable set of dependency references. With and Merge
// return new sets and leave the receiver untouched, so a set handed to a
// recursive call can never be changed behind the caller's back.
//
// The zero value is an empty set.
type VisitedSet struct {
	members map[string]struct{}
}

// NewVisitedSet returns a set holding refs.
func NewVisitedSet(refs ...string) VisitedSet {
	var s VisitedSet
	for _, r := range refs {
		s = s.With(r)
	}
	return s
}

// Contains reports whether ref is a member.
func (s VisitedSet) Contains(ref string) bool {
	_, ok := s.members[ref]
	return ok
}

// Len returns the number of members.
func (s VisitedSet) Len() int {
	return len(s.members)
}

// With returns a copy of s that also contains ref.
func (s VisitedSet) With(ref string) VisitedSet {
	if s.Contains(ref) {
		return s
	}
	m := make(map[string]struct{}, len(s.members)+1)
	maps.Copy(m, s.members)
	m[ref] = struct{}{}
	return VisitedSet{members: m}
}

// Merge returns the union of s and other.
func (s VisitedSet) Merge(other VisitedSet) VisitedSet {
	if other.Len() == 0 {
		return s
	}
	if s.Len() == 0 {
		return other
	}
	m := make(map[string]struct{}, len(s.members)+len(other.members))
	maps.Copy(m, s.members)
	maps.Copy(m, other.members)
	return VisitedSet{members: m}
}

// Members returns the references in lexical order.
func (s VisitedSet) Members() []string {
	return slices.Sorted(maps.Keys(s.members))
}
