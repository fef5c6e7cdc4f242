package model

import (
	"encoding/json"
	"time"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Trip struct {
	ID                string     `json:"id" db:"id"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
	PassengerID       string     `json:"passenger_id" db:"passenger_id"`
	DriverID          *string    `json:"driver_id,omitempty" db:"driver_id"`
	OriginLat         float64    `json:"origin_lat" db:"origin_lat"`
	OriginLng         float64    `json:"origin_lng" db:"origin_lng"`
	DestLat           float64    `json:"dest_lat" db:"dest_lat"`
	DestLng           float64    `json:"dest_lng" db:"dest_lng"`
	Note              *string    `json:"note,omitempty" db:"note"`
	Status            TripStatus `json:"status" db:"status"`
	QuoteDistanceKm   float64    `json:"quote_distance_km" db:"quote_distance_km"`
	QuoteDurationMin  int        `json:"quote_duration_min" db:"quote_duration_min"`
	QuoteFareTotal    int64      `json:"quote_fare_total" db:"quote_fare_total"`
	ActualDistanceKm  *float64   `json:"actual_distance_km,omitempty" db:"actual_distance_km"`
	ActualDurationMin *int       `json:"actual_duration_min,omitempty" db:"actual_duration_min"`
	FinalFareTotal    *int64     `json:"final_fare_total,omitempty" db:"final_fare_total"`
	CancelReasonCode  *string    `json:"cancel_reason_code,omitempty" db:"cancel_reason_code"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty" db:"canceled_at"`
}

func (t *Trip) Origin() LatLng {
	return LatLng{Lat: t.OriginLat, Lng: t.OriginLng}
}

func (t *Trip) Destination() LatLng {
	return LatLng{Lat: t.DestLat, Lng: t.DestLng}
}

type TripAssignment struct {
	ID          string          `json:"id" db:"id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	TripID      string          `json:"trip_id" db:"trip_id"`
	DriverID    string          `json:"driver_id" db:"driver_id"`
	State       AssignmentState `json:"state" db:"state"`
	TTLSeconds  int             `json:"ttl_seconds" db:"ttl_seconds"`
	RespondedAt *time.Time      `json:"responded_at,omitempty" db:"responded_at"`
}

type TripEvent struct {
	ID        string          `json:"id" db:"id"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	TripID    string          `json:"trip_id" db:"trip_id"`
	Type      TripEventType   `json:"type" db:"type"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
}

type TripRating struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	TripID    string    `json:"trip_id" db:"trip_id"`
	RaterID   string    `json:"rater_id" db:"rater_id"`
	DriverID  string    `json:"driver_id" db:"driver_id"`
	Stars     int       `json:"stars" db:"stars"`
	Comment   *string   `json:"comment,omitempty" db:"comment"`
}
