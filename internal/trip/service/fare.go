package service

import (
	"fmt"
	"math"

	"trip-hail-system/internal/trip/model"
)

const (
	earthRadiusKm   = 6371.0
	avgSpeedKmH     = 30.0
	baseFare        = 10000
	farePerKm       = 7000
	farePerMin      = 500
	etaPickupMin    = 5
)

type FareBreakdown struct {
	Base     int64 `json:"base"`
	Distance int64 `json:"distance"`
	Time     int64 `json:"time"`
	Total    int64 `json:"total"`
}

type Quote struct {
	DistanceKm   float64       `json:"distanceKm"`
	DurationMin  int           `json:"durationMin"`
	EtaPickupMin int           `json:"etaPickupMin"`
	Fare         FareBreakdown `json:"fare"`
}

// ComputeQuote is the single pricing function: standalone quotes and trip
// creation both go through it, so the same coordinates always price the same.
// Fares are in the smallest unit of the billing currency.
func ComputeQuote(origin, destination *model.LatLng) (*Quote, error) {
	if origin == nil || destination == nil {
		return nil, fmt.Errorf("%w: origin & destination are required", ErrValidation)
	}
	if err := validateLatLng(*origin); err != nil {
		return nil, err
	}
	if err := validateLatLng(*destination); err != nil {
		return nil, err
	}

	km := haversine(*origin, *destination)
	durationMin := int(math.Ceil(km / avgSpeedKmH * 60))
	distanceFare := int64(math.Ceil(km * farePerKm))
	timeFare := int64(durationMin) * farePerMin

	return &Quote{
		DistanceKm:   math.Round(km*100) / 100,
		DurationMin:  durationMin,
		EtaPickupMin: etaPickupMin,
		Fare: FareBreakdown{
			Base:     baseFare,
			Distance: distanceFare,
			Time:     timeFare,
			Total:    baseFare + distanceFare + timeFare,
		},
	}, nil
}

func validateLatLng(p model.LatLng) error {
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: latitude or longitude out of range", ErrValidation)
	}
	return nil
}

func haversine(a, b model.LatLng) float64 {
	lat1 := degreesToRadians(a.Lat)
	lat2 := degreesToRadians(b.Lat)
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
