package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/booking"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/model"
)

// Reservations is what ReservationHandler needs from the booking service.
type Reservations interface {
	Create(ctx context.Context, req booking.Requester, in booking.CreateInput) (*model.Reservation, error)
	Update(ctx context.Context, req booking.Requester, id uuid.UUID, p booking.Patch) (*model.Reservation, error)
	Get(ctx context.Context, req booking.Requester, id uuid.UUID) (*model.Reservation, error)
	List(ctx context.Context, req booking.Requester, f model.ListFilter) ([]model.Reservation, error)
}

// ReservationHandler serves /v1/reservations.  All methods assume JWTAuth
// has run; they answer 401 when no requester is in the context.
type ReservationHandler struct {
	svc Reservations
}

func NewReservationHandler(svc Reservations) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc}
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	req, ok := middleware.RequesterFrom(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
	}
	var in booking.CreateInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.svc.Create(c.Request().Context(), req, in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Update handles PATCH /v1/reservations/:id.  Fields absent from the body
// keep their value; fields sent as null are rejected.
func (h *ReservationHandler) Update(c echo.Context) error {
	req, ok := middleware.RequesterFrom(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid reservation id")
	}
	var p booking.Patch
	if err := (&echo.DefaultBinder{}).BindBody(c, &p); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.svc.Update(c.Request().Context(), req, id, p)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	req, ok := middleware.RequesterFrom(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid reservation id")
	}
	res, err := h.svc.Get(c.Request().Context(), req, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// List handles GET /v1/reservations?venue_id=&user_id=&show_all=.
// user_id and show_all only take effect for staff.
func (h *ReservationHandler) List(c echo.Context) error {
	req, ok := middleware.RequesterFrom(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
	}
	var f model.ListFilter
	if v := c.QueryParam("venue_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid venue_id")
		}
		f.VenueID = &id
	}
	if v := c.QueryParam("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest(c, "invalid user_id")
		}
		f.RequesterID = &id
	}
	if v := c.QueryParam("show_all"); v != "" {
		all, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "invalid show_all")
		}
		f.IncludeCanceled = all
	}

	out, err := h.svc.List(c.Request().Context(), req, f)
	if err != nil {
		return fail(c, err)
	}
	if out == nil {
		out = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out, "count": len(out)})
}
