package dto

import (
	"trip-hail-system/internal/trip/model"
	"trip-hail-system/internal/trip/service"
)

type QuoteRequest struct {
	Origin      *model.LatLng `json:"origin"`
	Destination *model.LatLng `json:"destination"`
	ServiceType *string       `json:"serviceType,omitempty"`
}

type CreateTripRequest struct {
	Origin          *model.LatLng `json:"origin"`
	Destination     *model.LatLng `json:"destination"`
	Note            *string       `json:"note,omitempty"`
	PaymentMethodID *string       `json:"paymentMethodId,omitempty"`
}

type Tracking struct {
	SubscriptionPath string `json:"subscriptionPath"`
}

type CreateTripResponse struct {
	model.Trip
	Tracking Tracking `json:"tracking"`
}

type CancelRequest struct {
	ReasonCode string  `json:"reasonCode"`
	Note       *string `json:"note,omitempty"`
}

type CancelResponse struct {
	Success bool `json:"success"`
}

type RateRequest struct {
	Stars   int     `json:"stars"`
	Comment *string `json:"comment,omitempty"`
}

type AcceptResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type FinishRequest struct {
	ActualDistanceKm  float64 `json:"actualDistanceKm"`
	ActualDurationMin int     `json:"actualDurationMin"`
}

type FinishResponse struct {
	FinalFareTotal int64 `json:"finalFareTotal"`
	OK             bool  `json:"ok"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewCreateTripResponse(res *service.CreateTripResult) CreateTripResponse {
	return CreateTripResponse{
		Trip:     *res.Trip,
		Tracking: Tracking{SubscriptionPath: res.SubscriptionPath},
	}
}
