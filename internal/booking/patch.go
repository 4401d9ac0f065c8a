package booking

import (
	"sort"

	"github.com/google/uuid"

	"github.com/iliyamo/table-reservation/internal/model"
)

// Patch is a partial update.  Absent fields keep their current value;
// present-null fields are rejected.
type Patch struct {
	VenueID   model.Field[uuid.UUID]    `json:"venue_id"`
	Date      model.Field[model.Date]   `json:"date"`
	PartySize model.Field[int]          `json:"party_size"`
	Note      model.Field[string]       `json:"note"`
	Status    model.Field[model.Status] `json:"status"`
	IsActive  model.Field[bool]         `json:"is_active"`
	Pairs     model.Field[[]model.Pair] `json:"pairs"`
}

// Empty reports that no field was sent.
func (p Patch) Empty() bool {
	return !p.VenueID.Set && !p.Date.Set && !p.PartySize.Set && !p.Note.Set &&
		!p.Status.Set && !p.IsActive.Set && !p.Pairs.Set
}

// nullFields lists the fields sent as null, sorted.
func (p Patch) nullFields() []string {
	var out []string
	add := func(name string, set, null bool) {
		if set && null {
			out = append(out, name)
		}
	}
	add("venue_id", p.VenueID.Set, p.VenueID.Null)
	add("date", p.Date.Set, p.Date.Null)
	add("party_size", p.PartySize.Set, p.PartySize.Null)
	add("note", p.Note.Set, p.Note.Null)
	add("status", p.Status.Set, p.Status.Null)
	add("is_active", p.IsActive.Set, p.IsActive.Null)
	add("pairs", p.Pairs.Set, p.Pairs.Null)
	sort.Strings(out)
	return out
}

// EffectivePatch is the result of applying a Patch to a reservation: the
// values the reservation will hold, what changed, and which pairs still
// need availability checks.
type EffectivePatch struct {
	ReservationID uuid.UUID

	VenueID   uuid.UUID
	Date      model.Date
	PartySize int
	Note      string
	Status    model.Status
	Active    bool

	VenueChanged     bool
	DateChanged      bool
	PartySizeChanged bool
	NoteChanged      bool
	StatusChanged    bool
	// ReplaceLines is set when the patch carried a pair list.
	ReplaceLines bool
	// Cancel is set when the patch moves the reservation to CANCELED.
	Cancel bool

	CurrentPairs   []model.Pair
	IncomingPairs  []model.Pair
	EffectivePairs []model.Pair
	PairsToCheck   []model.Pair

	Lines model.LineChanges
}

// NeedsCapacityCheck reports whether the seating total must be re-checked.
func (e *EffectivePatch) NeedsCapacityCheck() bool {
	return !e.Cancel && (e.PartySizeChanged || e.ReplaceLines)
}

// Changed reports whether anything would be written.
func (e *EffectivePatch) Changed() bool {
	return e.VenueChanged || e.DateChanged || e.PartySizeChanged || e.NoteChanged ||
		e.StatusChanged || len(e.Lines.Deactivate) > 0 || len(e.Lines.Insert) > 0
}

// Apply copies the effective values onto r.  Lines are left unchanged;
// the store rewrites them from Lines.
func (e *EffectivePatch) Apply(r *model.Reservation) {
	r.VenueID = e.VenueID
	r.Date = e.Date
	r.PartySize = e.PartySize
	r.Note = e.Note
	r.Status = e.Status
	r.Active = e.Active
}

// buildEffectivePatch merges the patch into existing.  status is the
// already validated target status.
func buildEffectivePatch(existing *model.Reservation, p Patch, status model.Status) *EffectivePatch {
	e := &EffectivePatch{
		ReservationID: existing.ID,
		VenueID:       existing.VenueID,
		Date:          existing.Date,
		PartySize:     existing.PartySize,
		Note:          existing.Note,
		Status:        status,
		Active:        model.ActiveFor(status),
		CurrentPairs:  sortedCopy(existing.ActivePairs()),
	}
	if p.VenueID.HasValue() && p.VenueID.Value != existing.VenueID {
		e.VenueID = p.VenueID.Value
		e.VenueChanged = true
	}
	if p.Date.HasValue() && !p.Date.Value.Equal(existing.Date) {
		e.Date = p.Date.Value
		e.DateChanged = true
	}
	if p.PartySize.HasValue() && p.PartySize.Value != existing.PartySize {
		e.PartySize = p.PartySize.Value
		e.PartySizeChanged = true
	}
	if p.Note.HasValue() && p.Note.Value != existing.Note {
		e.Note = p.Note.Value
		e.NoteChanged = true
	}
	e.StatusChanged = status != existing.Status
	e.Cancel = status == model.StatusCanceled && existing.Status != model.StatusCanceled

	if e.Cancel {
		e.EffectivePairs = []model.Pair{}
		e.Lines.Deactivate = e.CurrentPairs
		return e
	}

	current := model.NewPairSet(e.CurrentPairs...)
	if p.Pairs.HasValue() {
		e.ReplaceLines = true
		e.IncomingPairs = sortedCopy(model.DedupePairs(p.Pairs.Value))
		e.EffectivePairs = e.IncomingPairs
		incoming := model.NewPairSet(e.IncomingPairs...)
		e.Lines.Insert = incoming.Minus(current).Sorted()
		e.Lines.Deactivate = current.Minus(incoming).Sorted()
	} else {
		e.EffectivePairs = e.CurrentPairs
	}

	switch {
	case e.DateChanged:
		e.PairsToCheck = e.EffectivePairs
	case e.ReplaceLines:
		e.PairsToCheck = e.Lines.Insert
	}
	if e.DateChanged {
		d := e.Date
		e.Lines.MoveTo = &d
	}
	return e
}

func sortedCopy(pairs []model.Pair) []model.Pair {
	out := append([]model.Pair{}, pairs...)
	model.SortPairs(out)
	return out
}
