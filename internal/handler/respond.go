package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/booking"
)

// fail writes err as {"error": {"code", "message", "details"}}.  Errors
// that are not a booking.Failure are reported as 500 without detail.
func fail(c echo.Context, err error) error {
	f, ok := booking.AsFailure(err)
	if !ok {
		c.Logger().Errorf("unclassified error: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
	details := echo.Map{}
	if f.Field != "" {
		details["field"] = f.Field
	}
	if len(f.IDs) > 0 {
		details["ids"] = f.IDs
	}
	if len(f.Pairs) > 0 {
		details["pairs"] = f.Pairs
	}
	msg := f.Message
	if f.Kind == booking.KindInfrastructureFailure {
		// The cause stays in the server log.
		details = nil
	}
	return errorJSON(c, f.Kind.HTTPStatus(), string(f.Kind), msg, details)
}

func errorJSON(c echo.Context, status int, code, msg string, details echo.Map) error {
	body := echo.Map{"code": code, "message": msg}
	if len(details) > 0 {
		body["details"] = details
	}
	return c.JSON(status, echo.Map{"error": body})
}

func badRequest(c echo.Context, msg string) error {
	return errorJSON(c, http.StatusBadRequest, string(booking.KindInvalidInput), msg, nil)
}
