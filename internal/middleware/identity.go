package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/booking"
)

// Context keys set by JWTAuth.
const (
	ContextRequesterID = "requester_id"
	ContextUserID      = "user_id"
	ContextRole        = "role"
)

// Staff roles may read and change any reservation.
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
)

func IsStaff(role string) bool { return role == RoleAdmin || role == RoleManager }

// RequesterFrom returns the authenticated caller, or false when JWTAuth did
// not run for this request.
func RequesterFrom(c echo.Context) (booking.Requester, bool) {
	id, ok := c.Get(ContextRequesterID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return booking.Requester{}, false
	}
	role, _ := c.Get(ContextRole).(string)
	return booking.Requester{ID: id, Staff: IsStaff(role)}, true
}

// userID is the rate limit identity; "anon" when unauthenticated.
func userID(c echo.Context) string {
	if s, ok := c.Get(ContextUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
