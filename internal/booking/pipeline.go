package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/table-reservation/internal/lookup"
	"github.com/iliyamo/table-reservation/internal/model"
)

// Catalog answers existence and ownership questions about venues, tables
// and slots.
type Catalog interface {
	VenueActive(ctx context.Context, venueID uuid.UUID) (bool, error)
	ActiveResources(ctx context.Context, venueID uuid.UUID, ids []uuid.UUID) (lookup.IDSet, error)
	ActiveSlots(ctx context.Context, venueID uuid.UUID, ids []uuid.UUID) (lookup.IDSet, error)
}

// ConflictFinder reports pairs already held on a date.
type ConflictFinder interface {
	FindTakenPairs(ctx context.Context, pairs []model.Pair, date model.Date, exclude *uuid.UUID) (model.PairSet, error)
}

// CapacityChecker reports whether tables seat a party.
type CapacityChecker interface {
	HasCapacity(ctx context.Context, resourceIDs []uuid.UUID, partySize int) (bool, error)
}

// ValidateAndPrepareCreate runs the create checks in order and stops at the
// first failure: input shape, venue, pair selection, capacity, conflicts.
// On success it returns the reservation ready to be committed, with ids
// assigned and one active line per distinct pair.
func (s *Service) ValidateAndPrepareCreate(ctx context.Context, in CreateInput) (*model.Reservation, error) {
	if err := s.input.checkCreate(&in); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = model.StatusPending
	}

	if err := s.checkVenue(ctx, in.VenueID); err != nil {
		return nil, err
	}

	pairs := model.DedupePairs(in.Pairs)
	if len(pairs) == 0 {
		return nil, emptySelection()
	}
	if err := s.checkPairsInVenue(ctx, in.VenueID, pairs); err != nil {
		return nil, err
	}
	if err := s.checkCapacity(ctx, pairs, in.PartySize); err != nil {
		return nil, err
	}
	if err := s.checkConflicts(ctx, pairs, in.Date, nil); err != nil {
		return nil, err
	}

	now := s.rules.Now().UTC()
	res := &model.Reservation{
		ID:          uuid.New(),
		RequesterID: in.RequesterID,
		VenueID:     in.VenueID,
		PartySize:   in.PartySize,
		Date:        in.Date,
		Note:        in.Note,
		Status:      status,
		Active:      model.ActiveFor(status),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, p := range sortedCopy(pairs) {
		res.Lines = append(res.Lines, model.ReservationLine{
			ID:            uuid.New(),
			ReservationID: res.ID,
			ResourceID:    p.ResourceID,
			SlotID:        p.SlotID,
			Date:          in.Date,
			Active:        true,
			CreatedAt:     now,
		})
	}
	return res, nil
}

// ValidateAndPrepareUpdate checks p against existing and returns the
// merged result.  All rules that need no store run before the first store
// call.  Availability is only re-checked for pairs whose holding changes.
func (s *Service) ValidateAndPrepareUpdate(ctx context.Context, existing *model.Reservation, p Patch) (*EffectivePatch, error) {
	if p.Empty() {
		return nil, invalidInput("", "patch contains no fields")
	}
	if nulls := p.nullFields(); len(nulls) > 0 {
		return nil, invalidInput(nulls[0], "fields must not be null: "+strings.Join(nulls, ", "))
	}
	if err := s.checkPatchShape(p); err != nil {
		return nil, err
	}

	status, err := targetStatus(existing, p)
	if err != nil {
		return nil, err
	}
	e := buildEffectivePatch(existing, p, status)

	if e.VenueChanged && !p.Pairs.Set {
		return nil, structural("venue_id", "changing venue_id requires pairs for the new venue")
	}
	if existing.Status.Terminal() && (e.VenueChanged || e.DateChanged || e.PartySizeChanged || p.Pairs.Set || e.StatusChanged) {
		return nil, structural("status", fmt.Sprintf("reservation is %s; only note can be changed", existing.Status))
	}
	if e.Cancel {
		if e.VenueChanged || e.DateChanged || e.PartySizeChanged || p.Pairs.Set {
			return nil, structural("status", "cancellation cannot be combined with venue, date, party size or pair changes")
		}
		return e, nil
	}

	if e.VenueChanged {
		if err := s.checkVenue(ctx, e.VenueID); err != nil {
			return nil, err
		}
	}
	// Kept pairs must still belong to the (possibly new) venue.
	owned := e.PairsToCheck
	if e.VenueChanged || e.NeedsCapacityCheck() {
		owned = e.EffectivePairs
	}
	if len(owned) > 0 {
		if err := s.checkPairsInVenue(ctx, e.VenueID, owned); err != nil {
			return nil, err
		}
	}
	if len(e.PairsToCheck) > 0 {
		own := existing.ID
		if err := s.checkConflicts(ctx, e.PairsToCheck, e.Date, &own); err != nil {
			return nil, err
		}
	}
	if e.NeedsCapacityCheck() {
		if err := s.checkCapacity(ctx, e.EffectivePairs, e.PartySize); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (s *Service) checkPatchShape(p Patch) error {
	if p.VenueID.Set && p.VenueID.Value == uuid.Nil {
		return invalidInput("venue_id", "venue_id is invalid")
	}
	if p.Date.Set {
		if err := s.input.checkDate(p.Date.Value); err != nil {
			return err
		}
	}
	if p.PartySize.Set {
		if err := s.input.checkPartySize(p.PartySize.Value); err != nil {
			return err
		}
	}
	if p.Note.Set {
		if err := checkNote(p.Note.Value); err != nil {
			return err
		}
	}
	if p.Status.Set && !p.Status.Value.Valid() {
		return invalidInput("status", fmt.Sprintf("unknown status %q", p.Status.Value))
	}
	if p.Pairs.Set {
		if len(p.Pairs.Value) == 0 {
			return emptySelection()
		}
		if err := checkPairIDs(p.Pairs.Value); err != nil {
			return err
		}
	}
	return nil
}

// targetStatus resolves status and is_active into one status and checks
// the transition.  A lone is_active=false means CANCELED.
func targetStatus(existing *model.Reservation, p Patch) (model.Status, error) {
	target := existing.Status
	if p.Status.Set {
		target = p.Status.Value
	}
	if p.IsActive.Set {
		active := p.IsActive.Value
		switch {
		case p.Status.Set:
			if model.ActiveFor(target) != active {
				return "", structural("is_active", fmt.Sprintf("status %s is inconsistent with is_active=%t", target, active))
			}
		case !active:
			target = model.StatusCanceled
		case existing.Status == model.StatusCanceled:
			return "", structural("is_active", "a canceled reservation cannot be reactivated")
		}
	}
	if !existing.Status.CanTransition(target) {
		return "", structural("status", fmt.Sprintf("cannot change status from %s to %s", existing.Status, target))
	}
	return target, nil
}

func (s *Service) checkVenue(ctx context.Context, venueID uuid.UUID) error {
	ok, err := s.catalog.VenueActive(ctx, venueID)
	if err != nil {
		return infrastructure("venue lookup", err)
	}
	if !ok {
		return venueUnavailable(venueID)
	}
	return nil
}

// checkPairsInVenue looks tables and slots up concurrently and reports
// every missing id of both kinds at once.
func (s *Service) checkPairsInVenue(ctx context.Context, venueID uuid.UUID, pairs []model.Pair) error {
	resourceIDs := model.ResourceIDs(pairs)
	slotIDs := model.SlotIDs(pairs)

	var resources, slots lookup.IDSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resources, err = s.catalog.ActiveResources(gctx, venueID, resourceIDs)
		return err
	})
	g.Go(func() error {
		var err error
		slots, err = s.catalog.ActiveSlots(gctx, venueID, slotIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return infrastructure("resource and slot lookup", err)
	}

	missingResources := resources.Missing(resourceIDs)
	missingSlots := slots.Missing(slotIDs)
	if len(missingResources) > 0 || len(missingSlots) > 0 {
		return catalogUnavailable(venueID, missingResources, missingSlots)
	}
	return nil
}

func (s *Service) checkCapacity(ctx context.Context, pairs []model.Pair, partySize int) error {
	ids := model.ResourceIDs(pairs)
	ok, err := s.capacity.HasCapacity(ctx, ids, partySize)
	if err != nil {
		return infrastructure("capacity lookup", err)
	}
	if !ok {
		return capacityExceeded(partySize, ids)
	}
	return nil
}

func (s *Service) checkConflicts(ctx context.Context, pairs []model.Pair, date model.Date, exclude *uuid.UUID) error {
	taken, err := s.conflicts.FindTakenPairs(ctx, pairs, date, exclude)
	if err != nil {
		return infrastructure("conflict lookup", err)
	}
	if len(taken) > 0 {
		return conflict(date, taken.Sorted())
	}
	return nil
}
