package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"trip-hail-system/internal/common/auth"
	"trip-hail-system/internal/common/logger"
	"trip-hail-system/internal/trip/handler/dto"
	"trip-hail-system/internal/trip/service"

	"github.com/jackc/pgx/v5/pgxpool"
)

type TripHandler struct {
	TripService *service.TripService
	DB          *pgxpool.Pool
}

func NewTripHandler(svc *service.TripService, db *pgxpool.Pool) *TripHandler {
	return &TripHandler{TripService: svc, DB: db}
}

func (h *TripHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req dto.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON")
		return
	}

	quote, err := h.TripService.Quote(r.Context(), req.Origin, req.Destination)
	if err != nil {
		writeServiceError(w, r, "Quote", err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *TripHandler) Create(w http.ResponseWriter, r *http.Request) {
	const action = "CreateTrip"
	requestID := r.Header.Get("X-Request-ID")

	var req dto.CreateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn(action, "invalid JSON in request body", requestID, "", err.Error())
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON")
		return
	}

	res, err := h.TripService.Create(r.Context(), actorID(r, "passenger"), service.CreateTripInput{
		Origin:          req.Origin,
		Destination:     req.Destination,
		Note:            req.Note,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		writeServiceError(w, r, action, err)
		return
	}

	logger.Info(action, "trip created", requestID, res.Trip.ID)
	writeJSON(w, http.StatusCreated, dto.NewCreateTripResponse(res))
}

func (h *TripHandler) Get(w http.ResponseWriter, r *http.Request) {
	trip, err := h.TripService.Get(r.Context(), r.PathValue("trip_id"))
	if err != nil {
		writeServiceError(w, r, "GetTrip", err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (h *TripHandler) History(w http.ResponseWriter, r *http.Request) {
	events, err := h.TripService.History(r.Context(), r.PathValue("trip_id"))
	if err != nil {
		writeServiceError(w, r, "TripHistory", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *TripHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("trip_id")

	var req dto.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON")
		return
	}
	if req.ReasonCode == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "reasonCode is required")
		return
	}

	if err := h.TripService.Cancel(r.Context(), tripID, actorID(r, "unknown"), req.ReasonCode, req.Note); err != nil {
		writeServiceError(w, r, "CancelTrip", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CancelResponse{Success: true})
}

func (h *TripHandler) Rate(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("trip_id")

	var req dto.RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON")
		return
	}

	if err := h.TripService.Rate(r.Context(), tripID, actorID(r, "unknown"), req.Stars, req.Comment); err != nil {
		writeServiceError(w, r, "RateTrip", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *TripHandler) Accept(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("trip_id")

	res, err := h.TripService.Accept(r.Context(), tripID, actorID(r, "driver"))
	if err != nil {
		writeServiceError(w, r, "AcceptTrip", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AcceptResponse{OK: res.OK, Reason: res.Reason})
}

func (h *TripHandler) Decline(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("trip_id")

	if err := h.TripService.Decline(r.Context(), tripID, actorID(r, "driver")); err != nil {
		writeServiceError(w, r, "DeclineTrip", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *TripHandler) Arrive(w http.ResponseWriter, r *http.Request) {
	if err := h.TripService.Arrive(r.Context(), r.PathValue("trip_id")); err != nil {
		writeServiceError(w, r, "ArrivePickup", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *TripHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.TripService.Start(r.Context(), r.PathValue("trip_id")); err != nil {
		writeServiceError(w, r, "StartTrip", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *TripHandler) Finish(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("trip_id")

	var req dto.FinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON")
		return
	}

	final, err := h.TripService.Finish(r.Context(), tripID, req.ActualDistanceKm, req.ActualDurationMin)
	if err != nil {
		writeServiceError(w, r, "FinishTrip", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FinishResponse{FinalFareTotal: final, OK: true})
}

func (h *TripHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if _, err := h.DB.Exec(r.Context(), "SELECT 1"); err != nil {
			writeError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "trip-service"})
}

func actorID(r *http.Request, fallback string) string {
	if claims := auth.FromContext(r); claims != nil && claims.UserID != "" {
		return claims.UserID
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: code, Message: message})
}

func writeServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	requestID := r.Header.Get("X-Request-ID")
	tripID := r.PathValue("trip_id")

	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "trip not found")
	case errors.Is(err, service.ErrInvalidState):
		writeError(w, http.StatusConflict, "INVALID_STATE", "operation not allowed for current trip status")
	case errors.Is(err, service.ErrNotCompleted):
		writeError(w, http.StatusConflict, "NOT_COMPLETED", "trip is not completed")
	default:
		logger.Error(action, "operation failed", requestID, tripID, err.Error())
		writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "upstream dependency failed")
	}
}
