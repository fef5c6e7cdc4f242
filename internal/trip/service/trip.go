package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trip-hail-system/internal/common/logger"
	"trip-hail-system/internal/trip/model"
	"trip-hail-system/internal/trip/notify"

	"github.com/google/uuid"
)

const (
	searchRadiusMeters = 3000
	searchLimit        = 20
	inviteTTLSeconds   = 15
	minFinalFare       = 10000
)

type TripService struct {
	repo    TripRepository
	users   UserDirectory
	drivers DriverMatcher
	bus     *notify.Bus
	events  EventPublisher
}

// NewTripService wires the orchestrator. events may be nil when the broker is
// unavailable; broker publishing is best-effort either way.
func NewTripService(repo TripRepository, users UserDirectory, drivers DriverMatcher, bus *notify.Bus, events EventPublisher) *TripService {
	return &TripService{repo: repo, users: users, drivers: drivers, bus: bus, events: events}
}

type CreateTripInput struct {
	Origin          *model.LatLng
	Destination     *model.LatLng
	Note            *string
	PaymentMethodID *string
}

type CreateTripResult struct {
	Trip             *model.Trip
	SubscriptionPath string
}

type AcceptResult struct {
	OK     bool
	Reason string
}

// Quote prices a prospective trip without persisting anything.
func (s *TripService) Quote(ctx context.Context, origin, destination *model.LatLng) (*Quote, error) {
	return ComputeQuote(origin, destination)
}

// Create persists a new trip in DRIVER_SEARCHING and kicks off driver
// matching. Matching is best-effort: gateway failures after the trip row is
// committed are recorded and absorbed, never unwound.
func (s *TripService) Create(ctx context.Context, passengerID string, in CreateTripInput) (*CreateTripResult, error) {
	q, err := ComputeQuote(in.Origin, in.Destination)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.ProfileExists(ctx, passengerID)
	if err != nil {
		logger.Warn("profile_lookup_failed", "user directory unavailable, proceeding", "", "", err.Error())
	} else if !exists {
		logger.Warn("profile_not_found", fmt.Sprintf("user %s unknown, proceeding", passengerID), "", "", "")
	}

	trip := model.Trip{
		ID:               uuid.NewString(),
		PassengerID:      passengerID,
		OriginLat:        in.Origin.Lat,
		OriginLng:        in.Origin.Lng,
		DestLat:          in.Destination.Lat,
		DestLng:          in.Destination.Lng,
		Note:             in.Note,
		Status:           model.TripDriverSearching,
		QuoteDistanceKm:  q.DistanceKm,
		QuoteDurationMin: q.DurationMin,
		QuoteFareTotal:   q.Fare.Total,
	}

	created, err := s.repo.InsertTrip(ctx, trip)
	if err != nil {
		logger.Error("insert_trip_failed", "failed to persist trip", "", "", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	s.notifyTrip(created.ID, model.NotifyTripCreated, map[string]any{
		"id":     created.ID,
		"status": created.Status,
	})

	s.searchDrivers(ctx, created)

	logger.Info("trip_created", "trip created, driver search dispatched", "", created.ID)
	return &CreateTripResult{
		Trip:             created,
		SubscriptionPath: fmt.Sprintf("/v1/trips/%s/events", created.ID),
	}, nil
}

// searchDrivers invites nearby candidates. Every step is a best-effort side
// effect of an already-committed trip; outcomes are recorded in the event log
// so observers can tell degraded from clean runs.
func (s *TripService) searchDrivers(ctx context.Context, trip *model.Trip) {
	candidates, err := s.drivers.NearbyDrivers(ctx, trip.Origin(), searchRadiusMeters, searchLimit)
	if err != nil {
		logger.Warn("nearby_drivers_failed", "driver matcher unavailable, continuing without candidates", "", trip.ID, err.Error())
		s.appendEvent(ctx, trip.ID, model.EventDriverSearchError, map[string]any{"message": "driver matcher unavailable"})
		return
	}
	if len(candidates) == 0 {
		logger.Info("no_candidates", "no drivers nearby", "", trip.ID)
		return
	}

	if _, err := s.drivers.PrepareAssign(ctx, trip.ID, candidates, inviteTTLSeconds); err != nil {
		logger.Warn("prepare_assign_failed", "prepare-assign dispatch failed, invitations may not reach drivers", "", trip.ID, err.Error())
	}

	assignments := make([]model.TripAssignment, 0, len(candidates))
	for _, driverID := range candidates {
		assignments = append(assignments, model.TripAssignment{
			TripID:     trip.ID,
			DriverID:   driverID,
			State:      model.AssignmentInvited,
			TTLSeconds: inviteTTLSeconds,
		})
	}
	if _, err := s.repo.InsertAssignments(ctx, assignments); err != nil {
		logger.Warn("insert_assignments_failed", "failed to record invitations", "", trip.ID, err.Error())
	}

	s.appendEvent(ctx, trip.ID, model.EventDriverSearchStarted, map[string]any{"candidates": candidates})
}

func (s *TripService) Get(ctx context.Context, tripID string) (*model.Trip, error) {
	trip, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, model.ErrTripNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return trip, nil
}

// History returns the trip's append-only event log in creation order. This
// is the replay path for observers who subscribed after the fact.
func (s *TripService) History(ctx context.Context, tripID string) ([]model.TripEvent, error) {
	if _, err := s.Get(ctx, tripID); err != nil {
		return nil, err
	}
	events, err := s.repo.ListTripEvents(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return events, nil
}

// Cancel moves any cancellable trip to CANCELED exactly once. The conditional
// update carries the full set of cancellable statuses, so two racing cancels
// cannot both apply.
func (s *TripService) Cancel(ctx context.Context, tripID, actorID, reasonCode string, note *string) error {
	trip, err := s.Get(ctx, tripID)
	if err != nil {
		return err
	}
	if model.CancelBlocked(trip.Status) {
		return ErrInvalidState
	}

	now := time.Now().UTC()
	updated, err := s.repo.UpdateTripStatus(ctx, tripID, model.StatusesAllowing(model.TripCanceled), model.TripUpdate{
		Status:           model.TripCanceled,
		CancelReasonCode: &reasonCode,
		CanceledAt:       &now,
	})
	if err != nil {
		return s.transitionErr(err)
	}

	s.notifyStatus(updated, map[string]any{"status": updated.Status})
	payload := map[string]any{"by": actorID, "reasonCode": reasonCode}
	if note != nil {
		payload["note"] = *note
	}
	s.appendEvent(ctx, tripID, model.EventCanceled, payload)

	logger.Info("trip_canceled", fmt.Sprintf("canceled by %s (%s)", actorID, reasonCode), "", tripID)
	return nil
}

// Rate records at most one rating per trip; repeat calls overwrite.
func (s *TripService) Rate(ctx context.Context, tripID, raterID string, stars int, comment *string) error {
	if stars < 1 || stars > 5 {
		return fmt.Errorf("%w: stars must be between 1 and 5", ErrValidation)
	}

	trip, err := s.Get(ctx, tripID)
	if err != nil {
		return err
	}
	if trip.Status != model.TripCompleted {
		return ErrNotCompleted
	}

	var driverID string
	if trip.DriverID != nil {
		driverID = *trip.DriverID
	}
	rating := model.TripRating{
		TripID:   tripID,
		RaterID:  raterID,
		DriverID: driverID,
		Stars:    stars,
		Comment:  comment,
	}
	if err := s.repo.UpsertRating(ctx, rating); err != nil {
		logger.Error("upsert_rating_failed", "failed to store rating", "", tripID, err.Error())
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	s.appendEvent(ctx, tripID, model.EventRated, map[string]any{"stars": stars})
	return nil
}

// Accept mirrors the external claim arbiter's verdict. The matcher's
// ClaimTrip is the single point of truth for which driver wins; a rejection
// comes back as a normal result, not an error.
func (s *TripService) Accept(ctx context.Context, tripID, driverID string) (*AcceptResult, error) {
	trip, err := s.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(trip.Status, model.TripEnRouteToPickup) {
		return nil, ErrInvalidState
	}

	verdict, err := s.drivers.ClaimTrip(ctx, tripID, driverID)
	if err != nil {
		logger.Warn("claim_trip_failed", "claim call failed, treating as declined", "", tripID, err.Error())
		verdict = ClaimDeclined
	}

	if verdict != ClaimAccepted {
		s.markAssignment(ctx, tripID, driverID, model.AssignmentDeclined)
		s.appendEvent(ctx, tripID, model.EventDriverDeclined, map[string]any{"driverId": driverID})
		return &AcceptResult{OK: false, Reason: "CLAIM_REJECTED"}, nil
	}

	s.markAssignment(ctx, tripID, driverID, model.AssignmentClaimed)

	updated, err := s.repo.UpdateTripStatus(ctx, tripID,
		model.StatusesAllowing(model.TripEnRouteToPickup),
		model.TripUpdate{Status: model.TripEnRouteToPickup, DriverID: &driverID},
	)
	if err != nil {
		return nil, s.transitionErr(err)
	}

	s.notifyStatus(updated, map[string]any{"status": updated.Status, "driverId": driverID})
	s.appendEvent(ctx, tripID, model.EventDriverAccepted, map[string]any{"driverId": driverID})

	logger.Info("driver_accepted", fmt.Sprintf("driver %s claimed trip", driverID), "", tripID)
	return &AcceptResult{OK: true}, nil
}

// Decline marks the driver's invitation declined; the trip keeps searching.
func (s *TripService) Decline(ctx context.Context, tripID, driverID string) error {
	if _, err := s.Get(ctx, tripID); err != nil {
		return err
	}

	if err := s.repo.UpdateAssignmentState(ctx, tripID, driverID, model.AssignmentDeclined); err != nil {
		logger.Error("decline_assignment_failed", "failed to mark assignment declined", "", tripID, err.Error())
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	s.appendEvent(ctx, tripID, model.EventDriverDeclined, map[string]any{"driverId": driverID})
	return nil
}

func (s *TripService) Arrive(ctx context.Context, tripID string) error {
	return s.bump(ctx, tripID, model.TripArrived, model.EventArrived)
}

func (s *TripService) Start(ctx context.Context, tripID string) error {
	return s.bump(ctx, tripID, model.TripInTrip, model.EventStarted)
}

// Finish completes an in-progress trip. The final fare never drops below the
// base fare floor regardless of the quote.
func (s *TripService) Finish(ctx context.Context, tripID string, actualDistanceKm float64, actualDurationMin int) (int64, error) {
	trip, err := s.Get(ctx, tripID)
	if err != nil {
		return 0, err
	}
	if !model.CanTransition(trip.Status, model.TripCompleted) {
		return 0, ErrInvalidState
	}

	final := trip.QuoteFareTotal
	if final < minFinalFare {
		final = minFinalFare
	}

	updated, err := s.repo.UpdateTripStatus(ctx, tripID,
		model.StatusesAllowing(model.TripCompleted),
		model.TripUpdate{
			Status:            model.TripCompleted,
			ActualDistanceKm:  &actualDistanceKm,
			ActualDurationMin: &actualDurationMin,
			FinalFareTotal:    &final,
		},
	)
	if err != nil {
		return 0, s.transitionErr(err)
	}

	s.notifyStatus(updated, map[string]any{"status": updated.Status, "finalFareTotal": final})
	s.appendEvent(ctx, tripID, model.EventCompleted, map[string]any{
		"actualDistanceKm":  actualDistanceKm,
		"actualDurationMin": actualDurationMin,
	})

	logger.Info("trip_completed", fmt.Sprintf("final fare %d", final), "", tripID)
	return final, nil
}

// ExpireAssignments handles the matcher's TTL-expiry signal for a trip's
// outstanding invitations.
func (s *TripService) ExpireAssignments(ctx context.Context, tripID string) error {
	n, err := s.repo.ExpireInvitedAssignments(ctx, tripID)
	if err != nil {
		logger.Error("expire_assignments_failed", "failed to expire invitations", "", tripID, err.Error())
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if n > 0 {
		s.appendEvent(ctx, tripID, model.EventAssignmentExpired, map[string]any{"expired": n})
	}
	return nil
}

// ExpireSearch handles the matcher's search-window-expiry signal: a trip
// still searching moves to EXPIRED. A trip already claimed or canceled is
// left alone.
func (s *TripService) ExpireSearch(ctx context.Context, tripID string) error {
	updated, err := s.repo.UpdateTripStatus(ctx, tripID,
		model.StatusesAllowing(model.TripExpired),
		model.TripUpdate{Status: model.TripExpired},
	)
	if err != nil {
		if errors.Is(err, model.ErrStatusConflict) {
			logger.Debug("search_expiry_skipped", "trip no longer searching", "", tripID)
			return nil
		}
		return s.transitionErr(err)
	}

	if _, err := s.repo.ExpireInvitedAssignments(ctx, tripID); err != nil {
		logger.Warn("expire_assignments_failed", "failed to expire invitations", "", tripID, err.Error())
	}

	s.notifyStatus(updated, map[string]any{"status": updated.Status})
	s.appendEvent(ctx, tripID, model.EventSearchExpired, map[string]any{})
	return nil
}

// bump advances the trip to "to"; the set of statuses the move is legal from
// comes straight out of the transition table.
func (s *TripService) bump(ctx context.Context, tripID string, to model.TripStatus, evt model.TripEventType) error {
	if _, err := s.Get(ctx, tripID); err != nil {
		return err
	}

	updated, err := s.repo.UpdateTripStatus(ctx, tripID, model.StatusesAllowing(to), model.TripUpdate{Status: to})
	if err != nil {
		return s.transitionErr(err)
	}

	s.notifyStatus(updated, map[string]any{"status": updated.Status})
	s.appendEvent(ctx, tripID, evt, map[string]any{})
	return nil
}

func (s *TripService) transitionErr(err error) error {
	switch {
	case errors.Is(err, model.ErrTripNotFound):
		return ErrNotFound
	case errors.Is(err, model.ErrStatusConflict):
		return ErrInvalidState
	default:
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
}

// markAssignment is bookkeeping around an already-decided claim; failure is
// logged, not surfaced.
func (s *TripService) markAssignment(ctx context.Context, tripID, driverID string, state model.AssignmentState) {
	if err := s.repo.UpdateAssignmentState(ctx, tripID, driverID, state); err != nil {
		logger.Warn("update_assignment_failed",
			fmt.Sprintf("failed to mark assignment %s for driver %s", state, driverID), "", tripID, err.Error())
	}
}

// appendEvent writes to the audit log after the primary mutation has already
// committed; failure is logged, the committed change stands.
func (s *TripService) appendEvent(ctx context.Context, tripID string, evt model.TripEventType, payload map[string]any) {
	data, _ := json.Marshal(payload)
	event := model.TripEvent{
		TripID:  tripID,
		Type:    evt,
		Payload: data,
	}
	if err := s.repo.InsertTripEvent(ctx, event); err != nil {
		logger.Warn("insert_trip_event_failed", fmt.Sprintf("failed to append %s event", evt), "", tripID, err.Error())
	}

	if s.events != nil {
		if err := s.events.PublishTripEvent(ctx, tripID, evt, payload); err != nil {
			logger.Warn("publish_trip_event_failed", fmt.Sprintf("failed to publish %s event", evt), "", tripID, err.Error())
		}
	}
}

func (s *TripService) notifyTrip(tripID, eventType string, data map[string]any) {
	s.bus.Publish(tripID, notify.Event{Type: eventType, Data: data})
}

func (s *TripService) notifyStatus(trip *model.Trip, data map[string]any) {
	s.bus.Publish(trip.ID, notify.Event{Type: model.NotifyStatusChanged, Data: data})
}
