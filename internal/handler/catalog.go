package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CatalogCache is the part of the availability cache staff can reset after
// changing venues, tables or slots outside this service.
type CatalogCache interface {
	ForgetVenue(ctx context.Context, venueID uuid.UUID)
	ForgetResources(ctx context.Context, venueID uuid.UUID, ids ...uuid.UUID)
	ForgetSlots(ctx context.Context, venueID uuid.UUID, ids ...uuid.UUID)
}

type CatalogHandler struct {
	cache CatalogCache
}

func NewCatalogHandler(cache CatalogCache) *CatalogHandler {
	return &CatalogHandler{cache: cache}
}

type forgetRequest struct {
	VenueID     uuid.UUID   `json:"venue_id"`
	ResourceIDs []uuid.UUID `json:"resource_ids"`
	SlotIDs     []uuid.UUID `json:"slot_ids"`
}

// Forget handles POST /v1/admin/catalog/forget.  With no resource or slot
// ids the venue entry itself is dropped.
func (h *CatalogHandler) Forget(c echo.Context) error {
	var body forgetRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.VenueID == uuid.Nil {
		return badRequest(c, "venue_id is required")
	}
	ctx := c.Request().Context()
	if len(body.ResourceIDs) == 0 && len(body.SlotIDs) == 0 {
		h.cache.ForgetVenue(ctx, body.VenueID)
	}
	if len(body.ResourceIDs) > 0 {
		h.cache.ForgetResources(ctx, body.VenueID, body.ResourceIDs...)
	}
	if len(body.SlotIDs) > 0 {
		h.cache.ForgetSlots(ctx, body.VenueID, body.SlotIDs...)
	}
	return c.NoContent(http.StatusNoContent)
}
