package model

import (
	"time"

	"github.com/google/uuid"
)

// Venue is a bookable place such as a restaurant.  Only active venues
// accept new reservations.
//
// Fields:
//  ID     – primary key identifier.
//  Name   – display name.
//  Active – false once the venue has been disabled by its managers.
type Venue struct {
	ID        uuid.UUID // venues.id
	Name      string    // venues.name
	Active    bool      // venues.active
	CreatedAt time.Time // venues.created_at
}

// Resource is a table that belongs to exactly one venue.  Capacity is the
// number of seats it contributes to a reservation and is always positive.
type Resource struct {
	ID       uuid.UUID // resources.id
	VenueID  uuid.UUID // resources.venue_id
	Name     string    // resources.name
	Capacity int       // resources.capacity
	Active   bool      // resources.active
}

// Slot is a named time window of a venue, e.g. 19:00–21:00.  Start is
// always before End; that rule is enforced by the administration side.
type Slot struct {
	ID        uuid.UUID // slots.id
	VenueID   uuid.UUID // slots.venue_id
	StartTime string    // slots.start_time, "15:04"
	EndTime   string    // slots.end_time, "15:04"
	Active    bool      // slots.active
}
