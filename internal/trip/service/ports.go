package service

import (
	"context"

	"trip-hail-system/internal/trip/model"
)

// TripRepository is the storage contract the orchestrator needs. It enforces
// no business rules beyond uniqueness; the conditional status update is the
// compare-and-swap that keeps racing transitions from double-applying.
type TripRepository interface {
	InsertTrip(ctx context.Context, trip model.Trip) (*model.Trip, error)
	GetTrip(ctx context.Context, tripID string) (*model.Trip, error)
	// UpdateTripStatus applies upd iff the trip's current status is one of
	// expected. Returns model.ErrTripNotFound when the trip does not exist
	// and model.ErrStatusConflict when the precondition fails.
	UpdateTripStatus(ctx context.Context, tripID string, expected []model.TripStatus, upd model.TripUpdate) (*model.Trip, error)
	// InsertAssignments batch-creates invitations, silently skipping
	// duplicate (trip_id, driver_id) pairs. Returns the number inserted.
	InsertAssignments(ctx context.Context, assignments []model.TripAssignment) (int, error)
	UpdateAssignmentState(ctx context.Context, tripID, driverID string, state model.AssignmentState) error
	// ExpireInvitedAssignments moves every still-INVITED assignment of the
	// trip to EXPIRED. Returns the number affected.
	ExpireInvitedAssignments(ctx context.Context, tripID string) (int, error)
	InsertTripEvent(ctx context.Context, event model.TripEvent) error
	ListTripEvents(ctx context.Context, tripID string) ([]model.TripEvent, error)
	UpsertRating(ctx context.Context, rating model.TripRating) error
}

// UserDirectory is the profile service contract. Calls are timeout-bounded
// and fallible; the orchestrator treats failure as "unknown user" and keeps
// going.
type UserDirectory interface {
	ProfileExists(ctx context.Context, userID string) (bool, error)
}

type ClaimVerdict string

const (
	ClaimAccepted ClaimVerdict = "ACCEPTED"
	ClaimDeclined ClaimVerdict = "DECLINED"
)

// DriverMatcher is the driver-location service contract. ClaimTrip is the
// single arbiter of the accept race: it must be atomic per trip across
// concurrent callers, and the orchestrator only mirrors its verdict.
type DriverMatcher interface {
	NearbyDrivers(ctx context.Context, location model.LatLng, radiusMeters, limit int) ([]string, error)
	PrepareAssign(ctx context.Context, tripID string, candidateIDs []string, ttlSeconds int) (bool, error)
	ClaimTrip(ctx context.Context, tripID, driverID string) (ClaimVerdict, error)
}

// EventPublisher fans trip lifecycle events out to the message broker for
// downstream consumers. Best-effort: failures are logged, never surfaced.
type EventPublisher interface {
	PublishTripEvent(ctx context.Context, tripID string, eventType model.TripEventType, payload any) error
}
