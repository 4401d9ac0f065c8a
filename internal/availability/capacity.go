package availability

import (
	"context"

	"github.com/google/uuid"
)

// CapacitySummer totals the capacity of the given tables.
type CapacitySummer interface {
	SumCapacity(ctx context.Context, resourceIDs []uuid.UUID) (int, error)
}

// Capacity checks that a set of tables seats a party.
type Capacity struct {
	store CapacitySummer
}

func NewCapacity(store CapacitySummer) *Capacity { return &Capacity{store: store} }

// HasCapacity reports partySize <= total capacity of the distinct tables.
// An empty id list has zero capacity and is not sent to the store.
func (c *Capacity) HasCapacity(ctx context.Context, resourceIDs []uuid.UUID, partySize int) (bool, error) {
	ids := dedupeIDs(resourceIDs)
	if len(ids) == 0 {
		return partySize <= 0, nil
	}
	total, err := c.store.SumCapacity(ctx, ids)
	if err != nil {
		return false, err
	}
	return partySize <= total, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
