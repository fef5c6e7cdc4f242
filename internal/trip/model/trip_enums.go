package model

type TripStatus string

const (
	TripRequested       TripStatus = "REQUESTED"
	TripDriverSearching TripStatus = "DRIVER_SEARCHING"
	TripDriverAssigned  TripStatus = "DRIVER_ASSIGNED"
	TripEnRouteToPickup TripStatus = "EN_ROUTE_TO_PICKUP"
	TripArrived         TripStatus = "ARRIVED"
	TripInTrip          TripStatus = "IN_TRIP"
	TripCompleted       TripStatus = "COMPLETED"
	TripCanceled        TripStatus = "CANCELED"
	TripExpired         TripStatus = "EXPIRED"
)

type AssignmentState string

const (
	AssignmentInvited  AssignmentState = "INVITED"
	AssignmentClaimed  AssignmentState = "CLAIMED"
	AssignmentDeclined AssignmentState = "DECLINED"
	AssignmentExpired  AssignmentState = "EXPIRED"
)

type TripEventType string

const (
	EventDriverSearchStarted TripEventType = "DriverSearchStarted"
	EventDriverSearchError   TripEventType = "DriverSearchError"
	EventDriverAccepted      TripEventType = "DriverAccepted"
	EventDriverDeclined      TripEventType = "DriverDeclined"
	EventArrived             TripEventType = "Arrived"
	EventStarted             TripEventType = "Started"
	EventCompleted           TripEventType = "Completed"
	EventCanceled            TripEventType = "Canceled"
	EventRated               TripEventType = "Rated"
	EventSearchExpired       TripEventType = "SearchExpired"
	EventAssignmentExpired   TripEventType = "AssignmentExpired"
)

// Notification types pushed on the per-trip channel.
const (
	NotifyTripCreated   = "TRIP_CREATED"
	NotifyStatusChanged = "STATUS_CHANGED"
)
