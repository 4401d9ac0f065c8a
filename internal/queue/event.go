// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

import (
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// EventType names what happened to a reservation.
type EventType string

const (
	EventReservationCreated  EventType = "reservation.created"
	EventReservationUpdated  EventType = "reservation.updated"
	EventReservationCanceled EventType = "reservation.canceled"
)

// ReservationQueueName is the RabbitMQ queue (and default Kafka topic)
// reservation events are published to.
const ReservationQueueName = "reservation.events"

// ReservationEvent is published after a reservation commit.  It carries
// enough for downstream consumers to log, notify venue staff or feed
// analytics without querying the primary database.
type ReservationEvent struct {
	Type          EventType    `json:"type"`
	ReservationID string       `json:"reservation_id"`
	RequesterID   string       `json:"requester_id"`
	VenueID       string       `json:"venue_id"`
	Date          string       `json:"date"`
	PartySize     int          `json:"party_size"`
	Status        model.Status `json:"status"`
	Pairs         []model.Pair `json:"pairs"`
	OccurredAt    string       `json:"occurred_at"`
}

// NewReservationEvent snapshots r.
func NewReservationEvent(t EventType, r *model.Reservation, at time.Time) ReservationEvent {
	pairs := r.ActivePairs()
	model.SortPairs(pairs)
	return ReservationEvent{
		Type:          t,
		ReservationID: r.ID.String(),
		RequesterID:   r.RequesterID.String(),
		VenueID:       r.VenueID.String(),
		Date:          r.Date.String(),
		PartySize:     r.PartySize,
		Status:        r.Status,
		Pairs:         pairs,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
