package lookup

import (
	"context"

	"github.com/google/uuid"
)

// Default namespace names.  Keys look like "resource:{venue}:{id}:active".
const (
	VenueNamespace    = "venue"
	ResourceNamespace = "resource"
	SlotNamespace     = "slot"
)

// CatalogStore is the part of the durable store the catalog checks need.
type CatalogStore interface {
	ActiveVenueIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	ActiveResourceIDs(ctx context.Context, venueID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	ActiveSlotIDs(ctx context.Context, venueID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
}

// Namespaces holds one namespace per entity type.
type Namespaces struct {
	Venue    Namespace
	Resource Namespace
	Slot     Namespace
}

// Catalog runs venue, table and slot existence checks through an Oracle.
type Catalog struct {
	oracle *Oracle
	store  CatalogStore
	ns     Namespaces
}

func NewCatalog(oracle *Oracle, store CatalogStore, ns Namespaces) *Catalog {
	return &Catalog{oracle: oracle, store: store, ns: ns}
}

// VenueActive reports whether the venue exists and is active.
func (c *Catalog) VenueActive(ctx context.Context, venueID uuid.UUID) (bool, error) {
	set, err := c.oracle.ActiveAndOwned(ctx, c.ns.Venue, "", []uuid.UUID{venueID}, c.store.ActiveVenueIDs)
	if err != nil {
		return false, err
	}
	return set.Has(venueID), nil
}

// ActiveResources returns the ids among ids that are active tables of the venue.
func (c *Catalog) ActiveResources(ctx context.Context, venueID uuid.UUID, ids []uuid.UUID) (IDSet, error) {
	return c.oracle.ActiveAndOwned(ctx, c.ns.Resource, venueID.String(), ids,
		func(ctx context.Context, missing []uuid.UUID) ([]uuid.UUID, error) {
			return c.store.ActiveResourceIDs(ctx, venueID, missing)
		})
}

// ActiveSlots returns the ids among ids that are active slots of the venue.
func (c *Catalog) ActiveSlots(ctx context.Context, venueID uuid.UUID, ids []uuid.UUID) (IDSet, error) {
	return c.oracle.ActiveAndOwned(ctx, c.ns.Slot, venueID.String(), ids,
		func(ctx context.Context, missing []uuid.UUID) ([]uuid.UUID, error) {
			return c.store.ActiveSlotIDs(ctx, venueID, missing)
		})
}

// ForgetResources resets cached answers for tables of a venue.
func (c *Catalog) ForgetResources(ctx context.Context, venueID uuid.UUID, ids ...uuid.UUID) {
	c.oracle.Forget(ctx, c.ns.Resource, venueID.String(), ids...)
}

// ForgetSlots resets cached answers for slots of a venue.
func (c *Catalog) ForgetSlots(ctx context.Context, venueID uuid.UUID, ids ...uuid.UUID) {
	c.oracle.Forget(ctx, c.ns.Slot, venueID.String(), ids...)
}

// ForgetVenue resets the cached answer for a venue.
func (c *Catalog) ForgetVenue(ctx context.Context, venueID uuid.UUID) {
	c.oracle.Forget(ctx, c.ns.Venue, "", venueID)
}
