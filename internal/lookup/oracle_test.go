package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/cache"
)

type fetchRecorder struct {
	active map[uuid.UUID]bool
	calls  [][]uuid.UUID
	err    error
}

func (f *fetchRecorder) fetch(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	f.calls = append(f.calls, append([]uuid.UUID(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	var out []uuid.UUID
	for _, id := range ids {
		if f.active[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

var resourceNS = Namespace{Name: ResourceNamespace, TTL: 120 * time.Second}

func TestActiveAndOwnedEmptyInputTouchesNothing(t *testing.T) {
	mem := cache.NewMemory()
	o := NewOracle(mem, 0, nil)
	f := &fetchRecorder{}

	set, err := o.ActiveAndOwned(context.Background(), resourceNS, "v", nil, f.fetch)
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 0 || len(f.calls) != 0 {
		t.Fatalf("expected no work, got set=%v calls=%v", set, f.calls)
	}
	if gets, sets := mem.Calls(); gets+sets != 0 {
		t.Errorf("cache touched: %d gets %d sets", gets, sets)
	}
}

func TestActiveAndOwnedSecondCallServedFromCache(t *testing.T) {
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	f := &fetchRecorder{active: map[uuid.UUID]bool{a: true, b: true}}
	o := NewOracle(cache.NewMemory(), 0, nil)

	first, err := o.ActiveAndOwned(ctx, resourceNS, "v", []uuid.UUID{a, b, c}, f.fetch)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Has(a) || !first.Has(b) || first.Has(c) {
		t.Fatalf("first lookup: got %v", first)
	}

	second, err := o.ActiveAndOwned(ctx, resourceNS, "v", []uuid.UUID{a, b, c}, f.fetch)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 2 || second.Has(c) {
		t.Fatalf("second lookup: got %v", second)
	}
	if len(f.calls) != 1 {
		t.Fatalf("expected one store call, got %d", len(f.calls))
	}
	if len(f.calls[0]) != 3 {
		t.Errorf("expected batched fetch of 3 ids, got %v", f.calls[0])
	}
}

func TestActiveAndOwnedWritesTTLs(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := cache.NewMemory().WithClock(func() time.Time { return now })
	a, gone := uuid.New(), uuid.New()
	f := &fetchRecorder{active: map[uuid.UUID]bool{a: true}}
	o := NewOracle(mem, 0, nil)

	if _, err := o.ActiveAndOwned(ctx, resourceNS, "v", []uuid.UUID{a, gone}, f.fetch); err != nil {
		t.Fatal(err)
	}
	if got := mem.TTL(Key(resourceNS, "v", a)); got != 120*time.Second {
		t.Errorf("positive ttl: got %s", got)
	}
	if got := mem.TTL(Key(resourceNS, "v", gone)); got != 12*time.Second {
		t.Errorf("negative ttl: got %s", got)
	}
}

func TestNegativeEntryExpiresAndIsRediscovered(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := cache.NewMemory().WithClock(func() time.Time { return now })
	id := uuid.New()
	f := &fetchRecorder{active: map[uuid.UUID]bool{}}
	o := NewOracle(mem, 0, nil)

	set, _ := o.ActiveAndOwned(ctx, resourceNS, "v", []uuid.UUID{id}, f.fetch)
	if set.Has(id) {
		t.Fatal("expected miss before activation")
	}

	f.active[id] = true
	set, _ = o.ActiveAndOwned(ctx, resourceNS, "v", []uuid.UUID{id}, f.fetch)
	if set.Has(id) {
		t.Fatal("negative entry should still be trusted")
	}
	if len(f.calls) != 1 {
		t.Fatalf("expected no store call while negative entry lives, got %d", len(f.calls))
	}

	now = now.Add(DerivedNegativeTTL(resourceNS.TTL))
	set, _ = o.ActiveAndOwned(ctx, resourceNS, "v", []uuid.UUID{id}, f.fetch)
	if !set.Has(id) {
		t.Fatal("expected rediscovery after negative ttl")
	}
}

func TestLegacyAndUndecodableValues(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	one, zero, junk := uuid.New(), uuid.New(), uuid.New()
	mem.Put(Key(resourceNS, "v", one), []byte("1"), time.Minute)
	mem.Put(Key(resourceNS, "v", zero), []byte("0"), time.Minute)
	mem.Put(Key(resourceNS, "v", junk), []byte(`"yes"`), time.Minute)
	f := &fetchRecorder{active: map[uuid.UUID]bool{junk: true}}
	o := NewOracle(mem, 0, nil)

	set, err := o.ActiveAndOwned(ctx, resourceNS, "v", []uuid.UUID{one, zero, junk}, f.fetch)
	if err != nil {
		t.Fatal(err)
	}
	if !set.Has(one) || set.Has(zero) || !set.Has(junk) {
		t.Fatalf("got %v", set)
	}
	if len(f.calls) != 1 || len(f.calls[0]) != 1 || f.calls[0][0] != junk {
		t.Fatalf("expected only undecodable id fetched, got %v", f.calls)
	}
}

func TestCacheUnavailableFallsThroughToStore(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	mem.Unavailable = true
	id := uuid.New()
	f := &fetchRecorder{active: map[uuid.UUID]bool{id: true}}
	o := NewOracle(mem, 0, nil)

	for i := 0; i < 2; i++ {
		set, err := o.ActiveAndOwned(ctx, resourceNS, "v", []uuid.UUID{id}, f.fetch)
		if err != nil {
			t.Fatalf("cache failure leaked as error: %v", err)
		}
		if !set.Has(id) {
			t.Fatal("expected store answer")
		}
	}
	if len(f.calls) != 2 {
		t.Errorf("expected a store call per lookup, got %d", len(f.calls))
	}
}

func TestFetchErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	f := &fetchRecorder{err: boom}
	o := NewOracle(cache.NewMemory(), 0, nil)

	_, err := o.ActiveAndOwned(context.Background(), resourceNS, "v", []uuid.UUID{uuid.New()}, f.fetch)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
}

func TestNamespacesAndParentsAreIsolated(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	f := &fetchRecorder{active: map[uuid.UUID]bool{id: true}}
	o := NewOracle(cache.NewMemory(), 0, nil)
	slotNS := Namespace{Name: SlotNamespace, TTL: time.Minute}

	_, _ = o.ActiveAndOwned(ctx, resourceNS, "v1", []uuid.UUID{id}, f.fetch)
	_, _ = o.ActiveAndOwned(ctx, resourceNS, "v2", []uuid.UUID{id}, f.fetch)
	_, _ = o.ActiveAndOwned(ctx, slotNS, "v1", []uuid.UUID{id}, f.fetch)
	if len(f.calls) != 3 {
		t.Fatalf("expected independent keys, got %d store calls", len(f.calls))
	}
}

func TestDerivedNegativeTTL(t *testing.T) {
	tests := []struct {
		positive, want time.Duration
	}{
		{10 * time.Second, 5 * time.Second},
		{120 * time.Second, 12 * time.Second},
		{300 * time.Second, 30 * time.Second},
		{time.Hour, 60 * time.Second},
		{2 * time.Second, time.Second},
	}
	for _, tt := range tests {
		if got := DerivedNegativeTTL(tt.positive); got != tt.want {
			t.Errorf("positive %s: got %s, want %s", tt.positive, got, tt.want)
		}
	}

	o := NewOracle(nil, 7*time.Second, nil)
	if got := o.NegativeTTL(time.Hour); got != 7*time.Second {
		t.Errorf("override: got %s", got)
	}
	if got := o.NegativeTTL(4 * time.Second); got != 2*time.Second {
		t.Errorf("override above positive: got %s", got)
	}
}

func TestForgetForcesRefetch(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	f := &fetchRecorder{active: map[uuid.UUID]bool{id: true}}
	o := NewOracle(cache.NewMemory(), 0, nil)

	set, _ := o.ActiveAndOwned(ctx, resourceNS, "v", []uuid.UUID{id}, f.fetch)
	if !set.Has(id) {
		t.Fatal("expected active")
	}

	f.active[id] = false
	o.Forget(ctx, resourceNS, "v", id)
	set, _ = o.ActiveAndOwned(ctx, resourceNS, "v", []uuid.UUID{id}, f.fetch)
	if set.Has(id) {
		t.Fatal("deactivated id still read as active")
	}

	f.active[id] = true
	o.Forget(ctx, resourceNS, "v", id)
	set, _ = o.ActiveAndOwned(ctx, resourceNS, "v", []uuid.UUID{id}, f.fetch)
	if !set.Has(id) {
		t.Fatal("reactivated id still read as inactive")
	}
}
