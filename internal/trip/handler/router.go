package handler

import (
	"net/http"

	"trip-hail-system/internal/common/auth"
	"trip-hail-system/internal/trip/notify"
	tripws "trip-hail-system/internal/trip/websocket"
)

// SetupRoutes registers the trip surface. The event stream and health probe
// stay outside the auth middleware; everything else requires a bearer token.
func SetupRoutes(mux *http.ServeMux, h *TripHandler, bus *notify.Bus) {
	authed := func(fn http.HandlerFunc) http.Handler {
		return auth.AuthMiddleware(fn)
	}

	mux.Handle("POST /v1/trips/quote", authed(h.Quote))
	mux.Handle("POST /v1/trips", authed(h.Create))
	mux.Handle("GET /v1/trips/{trip_id}", authed(h.Get))
	mux.Handle("GET /v1/trips/{trip_id}/history", authed(h.History))
	mux.Handle("POST /v1/trips/{trip_id}/cancel", authed(h.Cancel))
	mux.Handle("POST /v1/trips/{trip_id}/rate", authed(h.Rate))
	mux.Handle("POST /v1/trips/{trip_id}/accept", authed(h.Accept))
	mux.Handle("POST /v1/trips/{trip_id}/decline", authed(h.Decline))
	mux.Handle("POST /v1/trips/{trip_id}/arrive-pickup", authed(h.Arrive))
	mux.Handle("POST /v1/trips/{trip_id}/start", authed(h.Start))
	mux.Handle("POST /v1/trips/{trip_id}/finish", authed(h.Finish))

	mux.HandleFunc("GET /v1/trips/{trip_id}/events", tripws.TripEventsHandler(bus))
	mux.HandleFunc("GET /v1/health", h.Health)
}
