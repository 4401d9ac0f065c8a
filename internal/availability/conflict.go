// Package availability holds the two store-backed checks run before a
// reservation is committed: whether the requested (table, slot) pairs are
// already held on the date, and whether the tables seat the party.
package availability

import (
	"context"

	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/model"
)

// LineFinder returns the pairs among pairs held by an active reservation
// line on date, ignoring lines of the excluded reservation.
type LineFinder interface {
	FindActiveLines(ctx context.Context, pairs []model.Pair, date model.Date, exclude *uuid.UUID) ([]model.Pair, error)
}

// Detector finds already-taken pairs.  Results are never cached: a stale
// "free" answer would let a double booking through to the commit.
type Detector struct {
	lines LineFinder
}

func NewDetector(lines LineFinder) *Detector { return &Detector{lines: lines} }

// FindTakenPairs returns the requested pairs that are taken on date.
func (d *Detector) FindTakenPairs(ctx context.Context, pairs []model.Pair, date model.Date, exclude *uuid.UUID) (model.PairSet, error) {
	taken := model.PairSet{}
	pairs = model.DedupePairs(pairs)
	if len(pairs) == 0 {
		return taken, nil
	}

	rows, err := d.lines.FindActiveLines(ctx, pairs, date, exclude)
	if err != nil {
		return nil, err
	}
	requested := model.NewPairSet(pairs...)
	for _, p := range rows {
		if requested.Has(p) {
			taken[p] = struct{}{}
		}
	}
	return taken, nil
}
