package booking

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/queue"
)

func TestUpdateSelfExclusion(t *testing.T) {
	h := newHarness(t)
	res := h.mustCreate(t, 2, h.pair())

	got, err := h.svc.Update(context.Background(), h.user, res.ID, Patch{
		Pairs:     model.Some([]model.Pair{h.pair()}),
		PartySize: model.Some(4),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.PartySize != 4 {
		t.Errorf("party size: got %d", got.PartySize)
	}
	if len(got.Lines) != 1 || got.Lines[0].Pair() != h.pair() {
		t.Errorf("lines: %+v", got.Lines)
	}
}

func TestUpdateDateChangeRechecksOwnPairsWithExclusion(t *testing.T) {
	h := newHarness(t)
	res := h.mustCreate(t, 2, h.pair())
	newDay := h.day.AddDays(1)

	e, err := h.svc.ValidateAndPrepareUpdate(context.Background(), res, Patch{Date: model.Some(newDay)})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(e.PairsToCheck) != 1 || e.Lines.MoveTo == nil || !e.Lines.MoveTo.Equal(newDay) {
		t.Fatalf("effective patch: %+v", e)
	}

	got, err := h.svc.Update(context.Background(), h.user, res.ID, Patch{Date: model.Some(newDay)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.Date.Equal(newDay) || !got.Lines[0].Date.Equal(newDay) {
		t.Errorf("date not moved: %s / %s", got.Date, got.Lines[0].Date)
	}

	// The old date is free again.
	if _, err := h.svc.Create(context.Background(), Requester{ID: uuid.New()}, h.input(2, h.pair())); err != nil {
		t.Errorf("old date still held: %v", err)
	}
}

func TestUpdateDateChangeConflictsWithOthers(t *testing.T) {
	h := newHarness(t)
	mine := h.mustCreate(t, 2, h.pair())
	other := h.input(2, h.pair())
	other.Date = h.day.AddDays(1)
	if _, err := h.svc.Create(context.Background(), Requester{ID: uuid.New()}, other); err != nil {
		t.Fatal(err)
	}

	_, err := h.svc.Update(context.Background(), h.user, mine.ID, Patch{Date: model.Some(h.day.AddDays(1))})
	wantKind(t, err, KindConflict)
}

func TestUpdateVenueChangeWithoutPairsTouchesNoStore(t *testing.T) {
	h := newHarness(t)
	res := h.mustCreate(t, 2, h.pair())
	v2 := h.store.addVenue(true)
	h.store.resetCalls()

	_, err := h.svc.ValidateAndPrepareUpdate(context.Background(), res, Patch{VenueID: model.Some(v2)})
	wantKind(t, err, KindStructuralRuleViolation)
	if n := h.store.totalCalls(); n != 0 {
		t.Errorf("store called %d times", n)
	}
}

func TestUpdateVenueChangeWithPairs(t *testing.T) {
	h := newHarness(t)
	res := h.mustCreate(t, 2, h.pair())
	v2 := h.store.addVenue(true)
	t2 := h.store.addResource(v2, 6, true)
	s2 := h.store.addSlot(v2, true)

	got, err := h.svc.Update(context.Background(), h.user, res.ID, Patch{
		VenueID: model.Some(v2),
		Pairs:   model.Some([]model.Pair{{ResourceID: t2, SlotID: s2}}),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.VenueID != v2 || len(got.Lines) != 1 || got.Lines[0].ResourceID != t2 {
		t.Errorf("got %+v", got)
	}

	// Pairs of the old venue are rejected under the new one.
	_, err = h.svc.Update(context.Background(), h.user, res.ID, Patch{Pairs: model.Some([]model.Pair{h.pair()})})
	wantKind(t, err, KindNotFoundOrInactive)
}

func TestUpdateVenueChangeRejectsOldVenuePairs(t *testing.T) {
	tests := []struct {
		name    string
		withNew bool
	}{
		{"kept only", false},
		{"kept and new", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			v2 := h.store.addVenue(true)
			t2 := h.store.addResource(v2, 6, true)
			s2 := h.store.addSlot(v2, true)
			res := h.mustCreate(t, 2, h.pair())
			h.store.resetCalls()

			pairs := []model.Pair{h.pair()}
			if tt.withNew {
				pairs = append(pairs, model.Pair{ResourceID: t2, SlotID: s2})
			}
			_, err := h.svc.Update(context.Background(), h.user, res.ID, Patch{
				VenueID: model.Some(v2),
				Pairs:   model.Some(pairs),
			})
			f := wantKind(t, err, KindNotFoundOrInactive)
			if len(f.IDs) != 2 || f.IDs[0] != h.table || f.IDs[1] != h.slot {
				t.Errorf("ids: got %v want [%s %s]", f.IDs, h.table, h.slot)
			}
			if n := h.store.callCount("ApplyUpdate"); n != 0 {
				t.Errorf("rejected update was written %d times", n)
			}

			got, err := h.svc.Get(context.Background(), h.user, res.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.VenueID != h.venue || len(got.Lines) != 1 || got.Lines[0].Pair() != h.pair() {
				t.Errorf("reservation changed: %+v", got)
			}
		})
	}
}

func TestUpdateReplaceChecksOnlyNewPairs(t *testing.T) {
	h := newHarness(t)
	s2 := h.store.addSlot(h.venue, true)
	kept := h.pair()
	added := model.Pair{ResourceID: h.table, SlotID: s2}
	res := h.mustCreate(t, 2, kept)

	e, err := h.svc.ValidateAndPrepareUpdate(context.Background(), res, Patch{Pairs: model.Some([]model.Pair{kept, added})})
	if err != nil {
		t.Fatal(err)
	}
	if len(e.PairsToCheck) != 1 || e.PairsToCheck[0] != added {
		t.Errorf("pairs to check: %v", e.PairsToCheck)
	}
	if len(e.Lines.Insert) != 1 || len(e.Lines.Deactivate) != 0 {
		t.Errorf("line changes: %+v", e.Lines)
	}

	// Someone else holds the added pair.
	in := h.input(2, added)
	if _, err := h.svc.Create(context.Background(), Requester{ID: uuid.New()}, in); err != nil {
		t.Fatal(err)
	}
	_, err = h.svc.Update(context.Background(), h.user, res.ID, Patch{Pairs: model.Some([]model.Pair{kept, added})})
	f := wantKind(t, err, KindConflict)
	if len(f.Pairs) != 1 || f.Pairs[0] != added {
		t.Errorf("conflict pairs: %v", f.Pairs)
	}
}

func TestUpdateReplaceReleasesDroppedPairs(t *testing.T) {
	h := newHarness(t)
	s2 := h.store.addSlot(h.venue, true)
	moved := model.Pair{ResourceID: h.table, SlotID: s2}
	res := h.mustCreate(t, 2, h.pair())

	got, err := h.svc.Update(context.Background(), h.user, res.ID, Patch{Pairs: model.Some([]model.Pair{moved})})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Lines) != 1 || got.Lines[0].Pair() != moved {
		t.Fatalf("lines: %+v", got.Lines)
	}
	if _, err := h.svc.Create(context.Background(), Requester{ID: uuid.New()}, h.input(2, h.pair())); err != nil {
		t.Errorf("dropped pair still held: %v", err)
	}
}

func TestUpdatePartySizeAboveCapacity(t *testing.T) {
	h := newHarness(t)
	res := h.mustCreate(t, 2, h.pair())
	_, err := h.svc.Update(context.Background(), h.user, res.ID, Patch{PartySize: model.Some(5)})
	wantKind(t, err, KindCapacityExceeded)
}

func TestUpdateStatusRules(t *testing.T) {
	tests := []struct {
		name  string
		from  model.Status
		patch Patch
		kind  Kind
	}{
		{"inconsistent canceled active", model.StatusPending, Patch{Status: model.Some(model.StatusCanceled), IsActive: model.Some(true)}, KindStructuralRuleViolation},
		{"inconsistent confirmed inactive", model.StatusPending, Patch{Status: model.Some(model.StatusConfirmed), IsActive: model.Some(false)}, KindStructuralRuleViolation},
		{"skip to completed", model.StatusPending, Patch{Status: model.Some(model.StatusCompleted)}, KindStructuralRuleViolation},
		{"back to pending", model.StatusConfirmed, Patch{Status: model.Some(model.StatusPending)}, KindStructuralRuleViolation},
		{"reopen canceled", model.StatusCanceled, Patch{Status: model.Some(model.StatusConfirmed)}, KindStructuralRuleViolation},
		{"reactivate canceled", model.StatusCanceled, Patch{IsActive: model.Some(true)}, KindStructuralRuleViolation},
		{"edit completed", model.StatusCompleted, Patch{PartySize: model.Some(3)}, KindStructuralRuleViolation},
		{"cancel and move", model.StatusPending, Patch{Status: model.Some(model.StatusCanceled), PartySize: model.Some(3)}, KindStructuralRuleViolation},
		{"unknown status", model.StatusPending, Patch{Status: model.Some(model.Status("LOST"))}, KindInvalidInput},
		{"null field", model.StatusPending, Patch{Note: model.Null[string]()}, KindInvalidInput},
		{"empty patch", model.StatusPending, Patch{}, KindInvalidInput},
		{"empty pairs", model.StatusPending, Patch{Pairs: model.Some([]model.Pair{})}, KindEmptySelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			existing := &model.Reservation{
				ID: uuid.New(), RequesterID: h.user.ID, VenueID: h.venue, PartySize: 2, Date: h.day,
				Status: tt.from, Active: model.ActiveFor(tt.from),
			}
			_, err := h.svc.ValidateAndPrepareUpdate(context.Background(), existing, tt.patch)
			wantKind(t, err, tt.kind)
			if n := h.store.totalCalls(); n != 0 {
				t.Errorf("store called %d times", n)
			}
		})
	}
}

func TestUpdateAllowedTransitions(t *testing.T) {
	h := newHarness(t)
	res := h.mustCreate(t, 2, h.pair())

	got, err := h.svc.Update(context.Background(), h.user, res.ID, Patch{Status: model.Some(model.StatusConfirmed)})
	if err != nil || got.Status != model.StatusConfirmed {
		t.Fatalf("confirm: %v %v", got, err)
	}
	got, err = h.svc.Update(context.Background(), h.user, res.ID, Patch{Status: model.Some(model.StatusCompleted)})
	if err != nil || got.Status != model.StatusCompleted {
		t.Fatalf("complete: %v %v", got, err)
	}
	got, err = h.svc.Update(context.Background(), h.user, res.ID, Patch{Note: model.Some("window seat")})
	if err != nil || got.Note != "window seat" {
		t.Fatalf("note on completed: %v %v", got, err)
	}
}

func TestCancelReleasesLines(t *testing.T) {
	for name, patch := range map[string]Patch{
		"status":    {Status: model.Some(model.StatusCanceled)},
		"is_active": {IsActive: model.Some(false)},
		"both":      {Status: model.Some(model.StatusCanceled), IsActive: model.Some(false), Note: model.Some("changed plans")},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			res := h.mustCreate(t, 2, h.pair())
			h.store.resetCalls()

			got, err := h.svc.Update(context.Background(), h.user, res.ID, patch)
			if err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if got.Status != model.StatusCanceled || got.Active || len(got.Lines) != 0 {
				t.Errorf("got %+v", got)
			}
			if n := h.store.callCount("FindActiveLines") + h.store.callCount("SumCapacity"); n != 0 {
				t.Errorf("availability checked on cancel")
			}
			last := h.pub.events[len(h.pub.events)-1]
			if last.Type != queue.EventReservationCanceled {
				t.Errorf("event: %s", last.Type)
			}
			if _, err := h.svc.Create(context.Background(), Requester{ID: uuid.New()}, h.input(2, h.pair())); err != nil {
				t.Errorf("pair still held after cancel: %v", err)
			}
		})
	}
}

func TestUpdateNoopSkipsCommit(t *testing.T) {
	h := newHarness(t)
	res := h.mustCreate(t, 2, h.pair())
	if _, err := h.svc.Update(context.Background(), h.user, res.ID, Patch{PartySize: model.Some(2)}); err != nil {
		t.Fatal(err)
	}
	if n := h.store.callCount("ApplyUpdate"); n != 0 {
		t.Errorf("unchanged patch committed %d times", n)
	}
}

func TestReservationVisibility(t *testing.T) {
	h := newHarness(t)
	res := h.mustCreate(t, 2, h.pair())
	stranger := Requester{ID: uuid.New()}

	_, err := h.svc.Get(context.Background(), stranger, res.ID)
	wantKind(t, err, KindNotFound)
	_, err = h.svc.Update(context.Background(), stranger, res.ID, Patch{Note: model.Some("mine now")})
	wantKind(t, err, KindNotFound)

	staff := Requester{ID: uuid.New(), Staff: true}
	if _, err := h.svc.Get(context.Background(), staff, res.ID); err != nil {
		t.Errorf("staff get: %v", err)
	}
	_, err = h.svc.Get(context.Background(), h.user, uuid.New())
	wantKind(t, err, KindNotFound)
}

func TestListScopesNonStaff(t *testing.T) {
	h := newHarness(t)
	h.mustCreate(t, 2, h.pair())
	s2 := h.store.addSlot(h.venue, true)
	other := Requester{ID: uuid.New()}
	if _, err := h.svc.Create(context.Background(), other, h.input(2, model.Pair{ResourceID: h.table, SlotID: s2})); err != nil {
		t.Fatal(err)
	}

	mine, err := h.svc.List(context.Background(), h.user, model.ListFilter{RequesterID: &other.ID, IncludeCanceled: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].RequesterID != h.user.ID {
		t.Errorf("non-staff saw %+v", mine)
	}

	all, err := h.svc.List(context.Background(), Requester{ID: uuid.New(), Staff: true}, model.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("staff saw %d reservations", len(all))
	}
}
