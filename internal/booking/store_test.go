package booking

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/repository"
)

type lineKey struct {
	pair model.Pair
	date string
}

// memStore is an in-memory store that keeps the one-active-line-per-pair
// rule the way the MySQL unique index does.
type memStore struct {
	mu sync.Mutex

	venues    map[uuid.UUID]bool
	resources map[uuid.UUID]model.Resource
	slots     map[uuid.UUID]model.Slot

	reservations map[uuid.UUID]model.Reservation
	lines        map[uuid.UUID][]model.ReservationLine
	active       map[lineKey]uuid.UUID

	calls map[string]int

	// beforeCommit runs inside CreateReservation before the index check.
	beforeCommit func()
	failWith     error
}

func newMemStore() *memStore {
	return &memStore{
		venues:       map[uuid.UUID]bool{},
		resources:    map[uuid.UUID]model.Resource{},
		slots:        map[uuid.UUID]model.Slot{},
		reservations: map[uuid.UUID]model.Reservation{},
		lines:        map[uuid.UUID][]model.ReservationLine{},
		active:       map[lineKey]uuid.UUID{},
		calls:        map[string]int{},
	}
}

func (m *memStore) count(name string) {
	m.mu.Lock()
	m.calls[name]++
	m.mu.Unlock()
}

func (m *memStore) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *memStore) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *memStore) resetCalls() {
	m.mu.Lock()
	m.calls = map[string]int{}
	m.mu.Unlock()
}

func (m *memStore) addVenue(active bool) uuid.UUID {
	id := uuid.New()
	m.venues[id] = active
	return id
}

func (m *memStore) addResource(venue uuid.UUID, capacity int, active bool) uuid.UUID {
	id := uuid.New()
	m.resources[id] = model.Resource{ID: id, VenueID: venue, Capacity: capacity, Active: active}
	return id
}

func (m *memStore) addSlot(venue uuid.UUID, active bool) uuid.UUID {
	id := uuid.New()
	m.slots[id] = model.Slot{ID: id, VenueID: venue, StartTime: "19:00", EndTime: "21:00", Active: active}
	return id
}

func (m *memStore) ActiveVenueIDs(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	m.count("ActiveVenueIDs")
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []uuid.UUID
	for _, id := range ids {
		if m.venues[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memStore) ActiveResourceIDs(_ context.Context, venue uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	m.count("ActiveResourceIDs")
	var out []uuid.UUID
	for _, id := range ids {
		if r, ok := m.resources[id]; ok && r.Active && r.VenueID == venue {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memStore) ActiveSlotIDs(_ context.Context, venue uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	m.count("ActiveSlotIDs")
	var out []uuid.UUID
	for _, id := range ids {
		if s, ok := m.slots[id]; ok && s.Active && s.VenueID == venue {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memStore) SumCapacity(_ context.Context, ids []uuid.UUID) (int, error) {
	m.count("SumCapacity")
	total := 0
	for _, id := range ids {
		total += m.resources[id].Capacity
	}
	return total, nil
}

func (m *memStore) FindActiveLines(_ context.Context, pairs []model.Pair, date model.Date, exclude *uuid.UUID) ([]model.Pair, error) {
	m.count("FindActiveLines")
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Pair
	for _, p := range pairs {
		owner, ok := m.active[lineKey{p, date.String()}]
		if !ok || (exclude != nil && owner == *exclude) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) CreateReservation(_ context.Context, r *model.Reservation) error {
	m.count("CreateReservation")
	if m.beforeCommit != nil {
		m.beforeCommit()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range r.Lines {
		if _, taken := m.active[lineKey{l.Pair(), l.Date.String()}]; taken {
			return repository.ErrLineTaken
		}
	}
	for _, l := range r.Lines {
		m.active[lineKey{l.Pair(), l.Date.String()}] = r.ID
	}
	stored := *r
	stored.Lines = nil
	m.reservations[r.ID] = stored
	m.lines[r.ID] = append([]model.ReservationLine(nil), r.Lines...)
	return nil
}

func (m *memStore) ApplyUpdate(_ context.Context, r *model.Reservation, changes model.LineChanges) error {
	m.count("ApplyUpdate")
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.reservations[r.ID]
	if !ok {
		return repository.ErrNotFound
	}

	// Work on copies so a violation leaves state untouched, like a rollback.
	active := make(map[lineKey]uuid.UUID, len(m.active))
	for k, v := range m.active {
		active[k] = v
	}
	lines := append([]model.ReservationLine(nil), m.lines[r.ID]...)

	drop := model.NewPairSet(changes.Deactivate...)
	for i, l := range lines {
		if l.Active && drop.Has(l.Pair()) {
			lines[i].Active = false
			delete(active, lineKey{l.Pair(), l.Date.String()})
		}
	}
	if changes.MoveTo != nil {
		for i, l := range lines {
			if !l.Active {
				continue
			}
			delete(active, lineKey{l.Pair(), l.Date.String()})
			lines[i].Date = *changes.MoveTo
		}
		for _, l := range lines {
			if !l.Active {
				continue
			}
			k := lineKey{l.Pair(), l.Date.String()}
			if owner, taken := active[k]; taken && owner != r.ID {
				return repository.ErrLineTaken
			}
			active[k] = r.ID
		}
	}
	for _, p := range changes.Insert {
		k := lineKey{p, r.Date.String()}
		if _, taken := active[k]; taken {
			return repository.ErrLineTaken
		}
		active[k] = r.ID
		lines = append(lines, model.ReservationLine{ID: uuid.New(), ReservationID: r.ID, ResourceID: p.ResourceID, SlotID: p.SlotID, Date: r.Date, Active: true})
	}

	stored := *r
	stored.Lines = nil
	stored.CreatedAt = old.CreatedAt
	m.reservations[r.ID] = stored
	m.lines[r.ID] = lines
	m.active = active
	return nil
}

func (m *memStore) GetReservation(_ context.Context, id uuid.UUID) (*model.Reservation, error) {
	m.count("GetReservation")
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, l := range m.lines[id] {
		if l.Active {
			r.Lines = append(r.Lines, l)
		}
	}
	return &r, nil
}

func (m *memStore) ListReservations(_ context.Context, f model.ListFilter) ([]model.Reservation, error) {
	m.count("ListReservations")
	m.mu.Lock()
	var out []model.Reservation
	for _, r := range m.reservations {
		if !f.IncludeCanceled && !r.Active {
			continue
		}
		if f.RequesterID != nil && r.RequesterID != *f.RequesterID {
			continue
		}
		if f.VenueID != nil && r.VenueID != *f.VenueID {
			continue
		}
		out = append(out, r)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}
