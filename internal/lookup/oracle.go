// Package lookup answers "which of these ids are active (and owned by this
// parent)?" for batches of ids, using the cache for repeat questions and
// the durable store for everything else.
package lookup

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/cache"
	"github.com/iliyamo/table-reservation/internal/model"
)

const (
	minNegativeTTL = 5 * time.Second
	maxNegativeTTL = 60 * time.Second
)

// Namespace separates cache keys of one entity type and carries the
// lifetime of positive answers for it.
type Namespace struct {
	Name string
	TTL  time.Duration
}

// FetchFunc returns the subset of ids that exist and are active (and, when
// the caller scoped it, owned by the parent).  It is called at most once
// per lookup and only with ids the cache could not answer.
type FetchFunc func(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)

// IDSet is a set of ids.
type IDSet map[uuid.UUID]struct{}

func (s IDSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Missing returns the ids not in s, sorted.
func (s IDSet) Missing(ids []uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	seen := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		if _, dup := seen[id]; dup || s.Has(id) {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	model.SortIDs(out)
	return out
}

// Oracle is the cache-assisted existence check.
type Oracle struct {
	store       cache.Store
	negativeTTL time.Duration
	log         *slog.Logger
}

// NewOracle builds an oracle over store.  negativeTTL overrides the derived
// lifetime of "not found" answers when positive.
func NewOracle(store cache.Store, negativeTTL time.Duration, log *slog.Logger) *Oracle {
	if store == nil {
		store = cache.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Oracle{store: store, negativeTTL: negativeTTL, log: log}
}

// NegativeTTL is the lifetime of "not found" answers in a namespace whose
// positive lifetime is positive.
// It never reaches positive.
func (o *Oracle) NegativeTTL(positive time.Duration) time.Duration {
	if o.negativeTTL > 0 {
		return belowPositive(o.negativeTTL, positive)
	}
	return DerivedNegativeTTL(positive)
}

// DerivedNegativeTTL is max(5s, min(60s, positive/10)), clamped below
// positive for namespaces shorter than the 5s floor.
func DerivedNegativeTTL(positive time.Duration) time.Duration {
	d := positive / 10
	if d > maxNegativeTTL {
		d = maxNegativeTTL
	}
	if d < minNegativeTTL {
		d = minNegativeTTL
	}
	return belowPositive(d, positive)
}

func belowPositive(d, positive time.Duration) time.Duration {
	if positive > 0 && d >= positive {
		return positive / 2
	}
	return d
}

// Key builds the cache key of id under parent in ns.  An empty parent is
// left out of the key.
func Key(ns Namespace, parent string, id uuid.UUID) string {
	if parent == "" {
		return ns.Name + ":" + id.String() + ":active"
	}
	return ns.Name + ":" + parent + ":" + id.String() + ":active"
}

// ActiveAndOwned returns the subset of ids that are active and owned by
// parent.  Cached answers of either polarity are trusted; the rest go to
// fetch in one call and are written back.  Only fetch errors are returned.
func (o *Oracle) ActiveAndOwned(ctx context.Context, ns Namespace, parent string, ids []uuid.UUID, fetch FetchFunc) (IDSet, error) {
	found := IDSet{}
	if len(ids) == 0 {
		return found, nil
	}

	var missing []uuid.UUID
	queued := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		if _, dup := queued[id]; dup || found.Has(id) {
			continue
		}
		raw, ok := o.store.Get(ctx, Key(ns, parent, id))
		if ok {
			if active, known := decode(raw); known {
				if active {
					found[id] = struct{}{}
				}
				queued[id] = struct{}{}
				continue
			}
		}
		queued[id] = struct{}{}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return found, nil
	}

	fetched, err := fetch(ctx, missing)
	if err != nil {
		return nil, err
	}
	hit := make(map[uuid.UUID]struct{}, len(fetched))
	for _, id := range fetched {
		hit[id] = struct{}{}
	}

	neg := o.NegativeTTL(ns.TTL)
	for _, id := range missing {
		if _, ok := hit[id]; ok {
			found[id] = struct{}{}
			o.store.Set(ctx, Key(ns, parent, id), encodedTrue, ns.TTL)
			continue
		}
		o.store.Set(ctx, Key(ns, parent, id), encodedFalse, neg)
	}
	o.log.Debug("existence lookup", "namespace", ns.Name, "requested", len(ids), "fetched", len(missing), "found", len(found))
	return found, nil
}

// Forget overwrites the cached answers for ids with a tombstone, so the
// next lookup of each goes to the durable store whichever way it changed.
// Store has no delete; the tombstone lives for the negative TTL.
func (o *Oracle) Forget(ctx context.Context, ns Namespace, parent string, ids ...uuid.UUID) {
	neg := o.NegativeTTL(ns.TTL)
	for _, id := range ids {
		o.store.Set(ctx, Key(ns, parent, id), encodedForgotten, neg)
	}
}

var (
	encodedTrue      = []byte("true")
	encodedFalse     = []byte("false")
	encodedForgotten = []byte("null")
)

// decode accepts JSON booleans and the legacy 1/0 integers.
func decode(raw []byte) (active bool, known bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		switch t {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}
	return false, false
}
