package model

// validTransitions is the trip state machine. The orchestrator's guards and
// CAS expected-status lists are all derived from this table, so adding a
// state or edge is an edit here, not a new conditional in the orchestrator.
// An EXPIRED trip keeps a single edge to CANCELED: the passenger may still
// cancel an expired search for bookkeeping.
var validTransitions = map[TripStatus][]TripStatus{
	TripRequested:       {TripDriverSearching, TripCanceled},
	TripDriverSearching: {TripDriverAssigned, TripEnRouteToPickup, TripCanceled, TripExpired},
	TripDriverAssigned:  {TripEnRouteToPickup, TripCanceled},
	TripEnRouteToPickup: {TripArrived, TripCanceled},
	TripArrived:         {TripInTrip, TripCanceled},
	TripInTrip:          {TripCompleted, TripCanceled},
	TripCompleted:       {},
	TripCanceled:        {},
	TripExpired:         {TripCanceled},
}

// statusOrder fixes the iteration order for derived status lists.
var statusOrder = []TripStatus{
	TripRequested,
	TripDriverSearching,
	TripDriverAssigned,
	TripEnRouteToPickup,
	TripArrived,
	TripInTrip,
	TripCompleted,
	TripCanceled,
	TripExpired,
}

func CanTransition(from, to TripStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StatusesAllowing returns every status a trip may move to "to" from. This is
// what the orchestrator hands to the conditional status update as its
// expected-status precondition.
func StatusesAllowing(to TripStatus) []TripStatus {
	var from []TripStatus
	for _, s := range statusOrder {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

// IsTerminal reports whether the trip's lifecycle can make no further
// progress. Cancellation does not count as progress, so EXPIRED is terminal
// despite its bookkeeping edge to CANCELED.
func IsTerminal(s TripStatus) bool {
	for _, to := range validTransitions[s] {
		if to != TripCanceled {
			return false
		}
	}
	return true
}

// CancelBlocked is the guard for the cancel operation.
func CancelBlocked(s TripStatus) bool {
	return !CanTransition(s, TripCanceled)
}
