package model

import (
	"sort"

	"github.com/google/uuid"
)

// Pair identifies one bookable unit: a table in a time slot.  On a given
// date at most one active reservation line may hold a pair.
type Pair struct {
	ResourceID uuid.UUID `json:"resource_id" validate:"required"`
	SlotID     uuid.UUID `json:"slot_id" validate:"required"`
}

// String renders the pair as "resource/slot".
func (p Pair) String() string {
	return p.ResourceID.String() + "/" + p.SlotID.String()
}

// Less orders pairs by resource id, then slot id, using canonical string form.
func (p Pair) Less(o Pair) bool {
	a, b := p.ResourceID.String(), o.ResourceID.String()
	if a != b {
		return a < b
	}
	return p.SlotID.String() < o.SlotID.String()
}

// PairSet is an unordered set of pairs.
type PairSet map[Pair]struct{}

// NewPairSet builds a set from the given pairs.
func NewPairSet(pairs ...Pair) PairSet {
	s := make(PairSet, len(pairs))
	for _, p := range pairs {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether p is in the set.
func (s PairSet) Has(p Pair) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the members in deterministic order.
func (s PairSet) Sorted() []Pair {
	out := make([]Pair, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	SortPairs(out)
	return out
}

// Minus returns the members of s that are not in o.
func (s PairSet) Minus(o PairSet) PairSet {
	out := PairSet{}
	for p := range s {
		if !o.Has(p) {
			out[p] = struct{}{}
		}
	}
	return out
}

// SortPairs sorts in place.
func SortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Less(pairs[j]) })
}

// DedupePairs drops repeated pairs, keeping first occurrence order.
func DedupePairs(pairs []Pair) []Pair {
	seen := make(map[Pair]struct{}, len(pairs))
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ResourceIDs returns the distinct resource ids of pairs, in first-seen order.
func ResourceIDs(pairs []Pair) []uuid.UUID {
	return distinct(pairs, func(p Pair) uuid.UUID { return p.ResourceID })
}

// SlotIDs returns the distinct slot ids of pairs, in first-seen order.
func SlotIDs(pairs []Pair) []uuid.UUID {
	return distinct(pairs, func(p Pair) uuid.UUID { return p.SlotID })
}

func distinct(pairs []Pair, key func(Pair) uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(pairs))
	out := make([]uuid.UUID, 0, len(pairs))
	for _, p := range pairs {
		id := key(p)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SortIDs sorts ids by canonical string form.
func SortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
