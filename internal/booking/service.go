// Package booking validates, commits and reads reservations.  Every check
// that can refuse a request lives here; the store is trusted only to keep
// the one-active-line-per-pair rule as a last line of defence.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/logger"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// Store persists reservations.  CreateReservation and ApplyUpdate run in
// one transaction each and return repository.ErrLineTaken when the
// unique index on active lines rejects the write.
type Store interface {
	CreateReservation(ctx context.Context, r *model.Reservation) error
	ApplyUpdate(ctx context.Context, r *model.Reservation, lines model.LineChanges) error
	GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	ListReservations(ctx context.Context, f model.ListFilter) ([]model.Reservation, error)
}

// Publisher delivers reservation events.  Failures are logged by the
// service and never fail the request.
type Publisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// Requester is the authenticated caller.  Staff may see and change any
// reservation; everyone else only their own.
type Requester struct {
	ID    uuid.UUID
	Staff bool
}

// Deps wires a Service.
type Deps struct {
	Catalog   Catalog
	Conflicts ConflictFinder
	Capacity  CapacityChecker
	Store     Store
	Publisher Publisher
	Rules     Rules
	Log       *logger.Logger
}

type Service struct {
	catalog   Catalog
	conflicts ConflictFinder
	capacity  CapacityChecker
	store     Store
	publisher Publisher
	rules     Rules
	input     *inputValidator
	log       *logger.Logger
}

func NewService(d Deps) *Service {
	rules := d.Rules.withDefaults()
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		catalog:   d.Catalog,
		conflicts: d.Conflicts,
		capacity:  d.Capacity,
		store:     d.Store,
		publisher: d.Publisher,
		rules:     rules,
		input:     newInputValidator(rules),
		log:       log,
	}
}

// Create validates in and commits it for req.
func (s *Service) Create(ctx context.Context, req Requester, in CreateInput) (*model.Reservation, error) {
	in.RequesterID = req.ID
	res, err := s.ValidateAndPrepareCreate(ctx, in)
	if err != nil {
		s.logRejected("create", req, uuid.Nil, err)
		return nil, err
	}

	if err := s.store.CreateReservation(ctx, res); err != nil {
		if errors.Is(err, repository.ErrLineTaken) {
			f := s.lostRace(ctx, res.ActivePairs(), res.Date, nil)
			s.log.Warn("reservation commit lost race", "requester_id", req.ID, "venue_id", res.VenueID, "date", res.Date.String(), "message", f.Message)
			return nil, f
		}
		s.log.Error("reservation commit failed", "requester_id", req.ID, "error", err)
		return nil, infrastructure("reservation commit", err)
	}

	s.log.Info("reservation created", "reservation_id", res.ID, "requester_id", req.ID, "venue_id", res.VenueID, "date", res.Date.String(), "lines", len(res.Lines))
	s.publish(ctx, queue.EventReservationCreated, res)
	return res, nil
}

// Update applies p to the reservation id on behalf of req.
func (s *Service) Update(ctx context.Context, req Requester, id uuid.UUID, p Patch) (*model.Reservation, error) {
	existing, err := s.Get(ctx, req, id)
	if err != nil {
		return nil, err
	}
	e, err := s.ValidateAndPrepareUpdate(ctx, existing, p)
	if err != nil {
		s.logRejected("update", req, id, err)
		return nil, err
	}
	if !e.Changed() {
		return existing, nil
	}

	updated := *existing
	e.Apply(&updated)
	updated.UpdatedAt = s.rules.Now().UTC()
	if err := s.store.ApplyUpdate(ctx, &updated, e.Lines); err != nil {
		if errors.Is(err, repository.ErrLineTaken) {
			f := s.lostRace(ctx, e.PairsToCheck, e.Date, &existing.ID)
			s.log.Warn("reservation update lost race", "reservation_id", id, "date", e.Date.String(), "message", f.Message)
			return nil, f
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(id)
		}
		s.log.Error("reservation update failed", "reservation_id", id, "error", err)
		return nil, infrastructure("reservation update", err)
	}

	fresh, err := s.store.GetReservation(ctx, id)
	if err != nil {
		s.log.Warn("reload after update failed", "reservation_id", id, "error", err)
		fresh = &updated
	}
	s.log.Info("reservation updated", "reservation_id", id, "requester_id", req.ID, "status", fresh.Status, "cancel", e.Cancel)

	evType := queue.EventReservationUpdated
	if e.Cancel {
		evType = queue.EventReservationCanceled
	}
	s.publish(ctx, evType, fresh)
	return fresh, nil
}

// Get returns the reservation if req may see it.  A reservation belonging
// to someone else reads as not found.
func (s *Service) Get(ctx context.Context, req Requester, id uuid.UUID) (*model.Reservation, error) {
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, infrastructure("reservation lookup", err)
	}
	if !req.Staff && res.RequesterID != req.ID {
		return nil, notFound(id)
	}
	return res, nil
}

// List returns reservations visible to req.  Non-staff callers always get
// their own active reservations; f only narrows by venue for them.
func (s *Service) List(ctx context.Context, req Requester, f model.ListFilter) ([]model.Reservation, error) {
	if !req.Staff {
		own := req.ID
		f.RequesterID = &own
		f.IncludeCanceled = false
	}
	out, err := s.store.ListReservations(ctx, f)
	if err != nil {
		return nil, infrastructure("reservation listing", err)
	}
	return out, nil
}

// lostRace names the pairs another commit took first.  It falls back to
// every pair that was being written when the re-check cannot tell.
func (s *Service) lostRace(ctx context.Context, pairs []model.Pair, date model.Date, exclude *uuid.UUID) *Failure {
	if taken, err := s.conflicts.FindTakenPairs(ctx, pairs, date, exclude); err == nil && len(taken) > 0 {
		return conflict(date, taken.Sorted())
	}
	return conflict(date, pairs)
}

func (s *Service) publish(ctx context.Context, t queue.EventType, r *model.Reservation) {
	if s.publisher == nil {
		return
	}
	ev := queue.NewReservationEvent(t, r, s.rules.Now())
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pctx, ev); err != nil {
		s.log.Warn("publish reservation event failed", "type", t, "reservation_id", r.ID, "error", err)
	}
}

func (s *Service) logRejected(op string, req Requester, id uuid.UUID, err error) {
	f, ok := AsFailure(err)
	if !ok {
		s.log.Error("reservation "+op+" failed", "requester_id", req.ID, "error", err)
		return
	}
	args := []any{"op", op, "kind", f.Kind, "requester_id", req.ID, "message", f.Message}
	if id != uuid.Nil {
		args = append(args, "reservation_id", id)
	}
	if f.Kind == KindInfrastructureFailure {
		s.log.Error("reservation request failed", append(args, "error", f.Err)...)
		return
	}
	s.log.Warn("reservation request rejected", args...)
}
