package model

import (
	"time"

	"github.com/google/uuid"
)

// Reservation records a requester's booking of one or more tables at a
// venue on a single date.  The tables and time slots it holds are listed
// in Lines; a reservation line is the unit the double-booking rule
// applies to.
//
// Fields:
//  ID          – primary key identifier.
//  RequesterID – user who made the reservation.
//  VenueID     – venue being reserved.
//  PartySize   – number of guests, at least 1.
//  Date        – calendar date of the visit.
//  Note        – free text for the venue, at most 255 characters.
//  Status      – PENDING, CONFIRMED, CANCELED or COMPLETED.
//  Active      – false only when the reservation is canceled.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Reservation struct {
	ID          uuid.UUID         `json:"id"`           // reservations.id
	RequesterID uuid.UUID         `json:"requester_id"` // reservations.requester_id
	VenueID     uuid.UUID         `json:"venue_id"`     // reservations.venue_id
	PartySize   int               `json:"party_size"`   // reservations.party_size
	Date        Date              `json:"date"`         // reservations.date
	Note        string            `json:"note"`         // reservations.note
	Status      Status            `json:"status"`       // reservations.status
	Active      bool              `json:"is_active"`    // reservations.active
	Lines       []ReservationLine `json:"lines"`
	CreatedAt   time.Time         `json:"created_at"` // reservations.created_at
	UpdatedAt   time.Time         `json:"updated_at"` // reservations.updated_at
}

// ActivePairs returns the pairs of the reservation's active lines.
func (r *Reservation) ActivePairs() []Pair {
	out := make([]Pair, 0, len(r.Lines))
	for _, l := range r.Lines {
		if l.Active {
			out = append(out, l.Pair())
		}
	}
	return out
}

// ReservationLine binds a reservation to one (table, slot) pair on the
// reservation's date.  Inactive lines are kept for history only.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – owning reservation.
//  ResourceID    – table held by the line.
//  SlotID        – time slot held by the line.
//  Date          – copy of the reservation's date.
//  Active        – whether the line currently holds the pair.
type ReservationLine struct {
	ID            uuid.UUID `json:"id"`             // reservation_lines.id
	ReservationID uuid.UUID `json:"reservation_id"` // reservation_lines.reservation_id
	ResourceID    uuid.UUID `json:"resource_id"`    // reservation_lines.resource_id
	SlotID        uuid.UUID `json:"slot_id"`        // reservation_lines.slot_id
	Date          Date      `json:"date"`           // reservation_lines.date
	Active        bool      `json:"is_active"`      // reservation_lines.active
	CreatedAt     time.Time `json:"created_at"`     // reservation_lines.created_at
}

// Pair returns the (resource, slot) the line holds.
func (l ReservationLine) Pair() Pair {
	return Pair{ResourceID: l.ResourceID, SlotID: l.SlotID}
}

// LineChanges is what an update does to a reservation's lines.  Deactivate
// releases pairs, Insert adds new active lines, and MoveTo, when set,
// moves the remaining active lines to another date.
type LineChanges struct {
	Deactivate []Pair
	Insert     []Pair
	MoveTo     *Date
}

// Empty reports that the lines stay as they are.
func (c LineChanges) Empty() bool {
	return len(c.Deactivate) == 0 && len(c.Insert) == 0 && c.MoveTo == nil
}

// ListFilter narrows a reservation listing.  Nil ids mean "any".
type ListFilter struct {
	RequesterID     *uuid.UUID
	VenueID         *uuid.UUID
	IncludeCanceled bool
}
