package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trip-hail-system/internal/trip/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TripRepository struct {
	DB *pgxpool.Pool
}

func NewTripRepository(pool *pgxpool.Pool) *TripRepository {
	return &TripRepository{DB: pool}
}

const tripColumns = `
	id, created_at, updated_at, passenger_id, driver_id,
	origin_lat, origin_lng, dest_lat, dest_lng, note, status,
	quote_distance_km, quote_duration_min, quote_fare_total,
	actual_distance_km, actual_duration_min, final_fare_total,
	cancel_reason_code, canceled_at`

func scanTrip(row pgx.Row) (*model.Trip, error) {
	var t model.Trip
	var status string
	err := row.Scan(
		&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.PassengerID, &t.DriverID,
		&t.OriginLat, &t.OriginLng, &t.DestLat, &t.DestLng, &t.Note, &status,
		&t.QuoteDistanceKm, &t.QuoteDurationMin, &t.QuoteFareTotal,
		&t.ActualDistanceKm, &t.ActualDurationMin, &t.FinalFareTotal,
		&t.CancelReasonCode, &t.CanceledAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = model.TripStatus(status)
	return &t, nil
}

func (r *TripRepository) InsertTrip(ctx context.Context, trip model.Trip) (*model.Trip, error) {
	query := `
		INSERT INTO trips (
			id, passenger_id, origin_lat, origin_lng, dest_lat, dest_lng,
			note, status, quote_distance_km, quote_duration_min, quote_fare_total
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + tripColumns

	row := r.DB.QueryRow(ctx, query,
		trip.ID, trip.PassengerID,
		trip.OriginLat, trip.OriginLng, trip.DestLat, trip.DestLng,
		trip.Note, string(trip.Status),
		trip.QuoteDistanceKm, trip.QuoteDurationMin, trip.QuoteFareTotal,
	)

	created, err := scanTrip(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert trip: %w", err)
	}
	return created, nil
}

func (r *TripRepository) GetTrip(ctx context.Context, tripID string) (*model.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.DB.QueryRow(ctx, query, tripID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrTripNotFound
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

// UpdateTripStatus is a compare-and-swap on the persisted status: the update
// applies only while the current status is one of expected, so two racing
// transitions cannot both land.
func (r *TripRepository) UpdateTripStatus(ctx context.Context, tripID string, expected []model.TripStatus, upd model.TripUpdate) (*model.Trip, error) {
	statuses := make([]string, 0, len(expected))
	for _, s := range expected {
		statuses = append(statuses, string(s))
	}

	query := `
		UPDATE trips
		SET status = $1,
		    driver_id = COALESCE($2, driver_id),
		    actual_distance_km = COALESCE($3, actual_distance_km),
		    actual_duration_min = COALESCE($4, actual_duration_min),
		    final_fare_total = COALESCE($5, final_fare_total),
		    cancel_reason_code = COALESCE($6, cancel_reason_code),
		    canceled_at = COALESCE($7, canceled_at),
		    updated_at = NOW()
		WHERE id = $8 AND status = ANY($9)
		RETURNING ` + tripColumns

	row := r.DB.QueryRow(ctx, query,
		string(upd.Status), upd.DriverID,
		upd.ActualDistanceKm, upd.ActualDurationMin, upd.FinalFareTotal,
		upd.CancelReasonCode, upd.CanceledAt,
		tripID, statuses,
	)

	updated, err := scanTrip(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing trip from a lost race on status.
			if _, getErr := r.GetTrip(ctx, tripID); getErr != nil {
				return nil, getErr
			}
			return nil, model.ErrStatusConflict
		}
		return nil, fmt.Errorf("failed to update trip status: %w", err)
	}
	return updated, nil
}

func (r *TripRepository) InsertAssignments(ctx context.Context, assignments []model.TripAssignment) (int, error) {
	if len(assignments) == 0 {
		return 0, nil
	}

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trip_assignments (trip_id, driver_id, state, ttl_seconds)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (trip_id, driver_id) DO NOTHING
	`

	inserted := 0
	for _, a := range assignments {
		tag, err := tx.Exec(ctx, query, a.TripID, a.DriverID, string(a.State), a.TTLSeconds)
		if err != nil {
			return 0, fmt.Errorf("failed to insert assignment: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit assignments: %w", err)
	}
	return inserted, nil
}

func (r *TripRepository) UpdateAssignmentState(ctx context.Context, tripID, driverID string, state model.AssignmentState) error {
	query := `
		UPDATE trip_assignments
		SET state = $1, responded_at = NOW()
		WHERE trip_id = $2 AND driver_id = $3
	`

	if _, err := r.DB.Exec(ctx, query, string(state), tripID, driverID); err != nil {
		return fmt.Errorf("failed to update assignment state: %w", err)
	}
	return nil
}

func (r *TripRepository) ExpireInvitedAssignments(ctx context.Context, tripID string) (int, error) {
	query := `
		UPDATE trip_assignments
		SET state = 'EXPIRED', responded_at = NOW()
		WHERE trip_id = $1 AND state = 'INVITED'
	`

	tag, err := r.DB.Exec(ctx, query, tripID)
	if err != nil {
		return 0, fmt.Errorf("failed to expire assignments: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *TripRepository) InsertTripEvent(ctx context.Context, event model.TripEvent) error {
	query := `
		INSERT INTO trip_events (trip_id, type, payload)
		VALUES ($1, $2, $3)
	`

	if _, err := r.DB.Exec(ctx, query, event.TripID, string(event.Type), event.Payload); err != nil {
		return fmt.Errorf("failed to insert trip event: %w", err)
	}
	return nil
}

// ListTripEvents returns the trip's history in append order; this is the
// replay path for observers who subscribed too late for the live stream.
func (r *TripRepository) ListTripEvents(ctx context.Context, tripID string) ([]model.TripEvent, error) {
	query := `
		SELECT id, created_at, trip_id, type, payload
		FROM trip_events
		WHERE trip_id = $1
		ORDER BY created_at
	`

	rows, err := r.DB.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trip events: %w", err)
	}
	defer rows.Close()

	var events []model.TripEvent
	for rows.Next() {
		var e model.TripEvent
		var typ string
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &createdAt, &e.TripID, &typ, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan trip event: %w", err)
		}
		e.CreatedAt = createdAt
		e.Type = model.TripEventType(typ)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *TripRepository) UpsertRating(ctx context.Context, rating model.TripRating) error {
	query := `
		INSERT INTO trip_ratings (trip_id, rater_id, driver_id, stars, comment)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (trip_id)
		DO UPDATE SET stars = EXCLUDED.stars, comment = EXCLUDED.comment, updated_at = NOW()
	`

	if _, err := r.DB.Exec(ctx, query, rating.TripID, rating.RaterID, rating.DriverID, rating.Stars, rating.Comment); err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}
	return nil
}
