package model

import "time"

// TripUpdate carries the fields applied together with a status transition.
// The repository writes it as a single conditional update keyed by trip id
// and expected prior status.
type TripUpdate struct {
	Status            TripStatus
	DriverID          *string
	ActualDistanceKm  *float64
	ActualDurationMin *int
	FinalFareTotal    *int64
	CancelReasonCode  *string
	CanceledAt        *time.Time
}
