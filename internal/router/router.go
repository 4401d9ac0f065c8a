// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// ready may be nil, in which case only /healthz is exposed.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// RegisterReservations mounts /v1/reservations behind JWTAuth.  writeLimit
// wraps the routes that commit, so reads are never throttled.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, writeLimit echo.MiddlewareFunc) {
	g := e.Group("/v1/reservations", middleware.JWTAuth(jwtSecret))
	g.POST("", h.Create, writeLimit)
	g.PATCH("/:id", h.Update, writeLimit)
	g.GET("/:id", h.Get)
	g.GET("", h.List)
}

// RegisterAdmin mounts staff-only maintenance endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, h *handler.CatalogHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin, middleware.RoleManager),
	)
	g.POST("/catalog/forget", h.Forget)
}
