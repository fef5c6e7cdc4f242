package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"trip-hail-system/internal/trip/model"
	"trip-hail-system/internal/trip/notify"
)

// ---- fakes ----

type fakeRepo struct {
	mu          sync.Mutex
	trips       map[string]*model.Trip
	assignments map[string]map[string]*model.TripAssignment
	events      []model.TripEvent
	ratings     map[string]model.TripRating
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		trips:       make(map[string]*model.Trip),
		assignments: make(map[string]map[string]*model.TripAssignment),
		ratings:     make(map[string]model.TripRating),
	}
}

func (r *fakeRepo) InsertTrip(_ context.Context, trip model.Trip) (*model.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := trip
	r.trips[trip.ID] = &stored
	out := stored
	return &out, nil
}

func (r *fakeRepo) GetTrip(_ context.Context, tripID string) (*model.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trip, ok := r.trips[tripID]
	if !ok {
		return nil, model.ErrTripNotFound
	}
	out := *trip
	return &out, nil
}

func (r *fakeRepo) UpdateTripStatus(_ context.Context, tripID string, expected []model.TripStatus, upd model.TripUpdate) (*model.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trip, ok := r.trips[tripID]
	if !ok {
		return nil, model.ErrTripNotFound
	}
	allowed := false
	for _, s := range expected {
		if trip.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, model.ErrStatusConflict
	}
	trip.Status = upd.Status
	if upd.DriverID != nil {
		trip.DriverID = upd.DriverID
	}
	if upd.ActualDistanceKm != nil {
		trip.ActualDistanceKm = upd.ActualDistanceKm
	}
	if upd.ActualDurationMin != nil {
		trip.ActualDurationMin = upd.ActualDurationMin
	}
	if upd.FinalFareTotal != nil {
		trip.FinalFareTotal = upd.FinalFareTotal
	}
	if upd.CancelReasonCode != nil {
		trip.CancelReasonCode = upd.CancelReasonCode
	}
	if upd.CanceledAt != nil {
		trip.CanceledAt = upd.CanceledAt
	}
	out := *trip
	return &out, nil
}

func (r *fakeRepo) InsertAssignments(_ context.Context, assignments []model.TripAssignment) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, a := range assignments {
		byDriver, ok := r.assignments[a.TripID]
		if !ok {
			byDriver = make(map[string]*model.TripAssignment)
			r.assignments[a.TripID] = byDriver
		}
		if _, dup := byDriver[a.DriverID]; dup {
			continue
		}
		stored := a
		byDriver[a.DriverID] = &stored
		inserted++
	}
	return inserted, nil
}

func (r *fakeRepo) UpdateAssignmentState(_ context.Context, tripID, driverID string, state model.AssignmentState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.assignments[tripID][driverID]; ok {
		a.State = state
	}
	return nil
}

func (r *fakeRepo) ExpireInvitedAssignments(_ context.Context, tripID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.assignments[tripID] {
		if a.State == model.AssignmentInvited {
			a.State = model.AssignmentExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) InsertTripEvent(_ context.Context, event model.TripEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeRepo) ListTripEvents(_ context.Context, tripID string) ([]model.TripEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.TripEvent
	for _, e := range r.events {
		if e.TripID == tripID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpsertRating(_ context.Context, rating model.TripRating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ratings[rating.TripID] = rating
	return nil
}

func (r *fakeRepo) eventTypes(tripID string) []model.TripEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []model.TripEventType
	for _, e := range r.events {
		if e.TripID == tripID {
			types = append(types, e.Type)
		}
	}
	return types
}

func (r *fakeRepo) assignmentState(tripID, driverID string) model.AssignmentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.assignments[tripID][driverID]; ok {
		return a.State
	}
	return ""
}

type fakeUsers struct {
	exists bool
	err    error
}

func (u *fakeUsers) ProfileExists(context.Context, string) (bool, error) {
	return u.exists, u.err
}

type fakeMatcher struct {
	mu         sync.Mutex
	candidates []string
	nearbyErr  error
	prepareErr error
	claimErr   error
	claimed    string
}

func (m *fakeMatcher) NearbyDrivers(context.Context, model.LatLng, int, int) ([]string, error) {
	if m.nearbyErr != nil {
		return nil, m.nearbyErr
	}
	return m.candidates, nil
}

func (m *fakeMatcher) PrepareAssign(context.Context, string, []string, int) (bool, error) {
	if m.prepareErr != nil {
		return false, m.prepareErr
	}
	return true, nil
}

// ClaimTrip awards the trip to the first claimant, mirroring the external
// arbiter's per-trip atomicity.
func (m *fakeMatcher) ClaimTrip(_ context.Context, _, driverID string) (ClaimVerdict, error) {
	if m.claimErr != nil {
		return ClaimDeclined, m.claimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed == "" || m.claimed == driverID {
		m.claimed = driverID
		return ClaimAccepted, nil
	}
	return ClaimDeclined, nil
}

func newTestService(matcher *fakeMatcher, users *fakeUsers) (*TripService, *fakeRepo, *notify.Bus) {
	repo := newFakeRepo()
	bus := notify.NewBus()
	svc := NewTripService(repo, users, matcher, bus, nil)
	return svc, repo, bus
}

func createTrip(t *testing.T, svc *TripService) *model.Trip {
	t.Helper()
	res, err := svc.Create(context.Background(), "passenger-1", CreateTripInput{
		Origin:      &benThanh,
		Destination: &thaoDien,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return res.Trip
}

func hasEvent(types []model.TripEventType, want model.TripEventType) bool {
	for _, tt := range types {
		if tt == want {
			return true
		}
	}
	return false
}

// ---- tests ----

func TestCreate_ThenGet(t *testing.T) {
	svc, repo, _ := newTestService(&fakeMatcher{candidates: []string{"driver-1", "driver-2"}}, &fakeUsers{exists: true})
	ctx := context.Background()

	res, err := svc.Create(ctx, "passenger-1", CreateTripInput{Origin: &benThanh, Destination: &thaoDien})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if res.SubscriptionPath != "/v1/trips/"+res.Trip.ID+"/events" {
		t.Errorf("unexpected subscription path %q", res.SubscriptionPath)
	}

	trip, err := svc.Get(ctx, res.Trip.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if trip.Status != model.TripDriverSearching {
		t.Errorf("expected DRIVER_SEARCHING, got %s", trip.Status)
	}

	q, _ := ComputeQuote(&benThanh, &thaoDien)
	if trip.QuoteFareTotal != q.Fare.Total || trip.QuoteDistanceKm != q.DistanceKm || trip.QuoteDurationMin != q.DurationMin {
		t.Errorf("trip quote %v/%v/%v does not match standalone quote %v/%v/%v",
			trip.QuoteDistanceKm, trip.QuoteDurationMin, trip.QuoteFareTotal,
			q.DistanceKm, q.DurationMin, q.Fare.Total)
	}

	if st := repo.assignmentState(trip.ID, "driver-1"); st != model.AssignmentInvited {
		t.Errorf("expected driver-1 INVITED, got %q", st)
	}
	if !hasEvent(repo.eventTypes(trip.ID), model.EventDriverSearchStarted) {
		t.Error("expected DriverSearchStarted event")
	}
}

func TestCreate_MissingCoordinates(t *testing.T) {
	svc, _, _ := newTestService(&fakeMatcher{}, &fakeUsers{exists: true})

	_, err := svc.Create(context.Background(), "passenger-1", CreateTripInput{Origin: &benThanh})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestCreate_MatcherDownIsAbsorbed(t *testing.T) {
	matcher := &fakeMatcher{nearbyErr: errors.New("dial tcp: connection refused")}
	svc, repo, _ := newTestService(matcher, &fakeUsers{exists: true})

	trip := createTrip(t, svc)

	if trip.Status != model.TripDriverSearching {
		t.Errorf("expected DRIVER_SEARCHING, got %s", trip.Status)
	}
	if !hasEvent(repo.eventTypes(trip.ID), model.EventDriverSearchError) {
		t.Error("expected DriverSearchError event")
	}
	if hasEvent(repo.eventTypes(trip.ID), model.EventDriverSearchStarted) {
		t.Error("did not expect DriverSearchStarted event")
	}
}

func TestCreate_ProfileLookupFailureIsAbsorbed(t *testing.T) {
	svc, _, _ := newTestService(&fakeMatcher{}, &fakeUsers{err: errors.New("user directory timeout")})

	trip := createTrip(t, svc)
	if trip.Status != model.TripDriverSearching {
		t.Errorf("expected trip despite profile outage, got status %s", trip.Status)
	}
}

func TestCreate_DuplicateCandidatesSkipped(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1", "driver-1", "driver-2"}}
	svc, repo, _ := newTestService(matcher, &fakeUsers{exists: true})

	trip := createTrip(t, svc)

	repo.mu.Lock()
	n := len(repo.assignments[trip.ID])
	repo.mu.Unlock()
	if n != 2 {
		t.Errorf("expected 2 unique assignments, got %d", n)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _ := newTestService(&fakeMatcher{}, &fakeUsers{exists: true})

	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAccept_HappyPath(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}}
	svc, repo, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)

	res, err := svc.Accept(ctx, trip.ID, "driver-1")
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected accepted claim, got reason %q", res.Reason)
	}

	updated, _ := svc.Get(ctx, trip.ID)
	if updated.Status != model.TripEnRouteToPickup {
		t.Errorf("expected EN_ROUTE_TO_PICKUP, got %s", updated.Status)
	}
	if updated.DriverID == nil || *updated.DriverID != "driver-1" {
		t.Errorf("expected driver-1 assigned, got %v", updated.DriverID)
	}
	if st := repo.assignmentState(trip.ID, "driver-1"); st != model.AssignmentClaimed {
		t.Errorf("expected CLAIMED assignment, got %q", st)
	}
	if !hasEvent(repo.eventTypes(trip.ID), model.EventDriverAccepted) {
		t.Error("expected DriverAccepted event")
	}
}

func TestAccept_ClaimRejected(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1", "driver-2"}, claimed: "driver-1"}
	svc, repo, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)

	res, err := svc.Accept(ctx, trip.ID, "driver-2")
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if res.OK || res.Reason != "CLAIM_REJECTED" {
		t.Fatalf("expected CLAIM_REJECTED, got %+v", res)
	}

	updated, _ := svc.Get(ctx, trip.ID)
	if updated.Status != model.TripDriverSearching {
		t.Errorf("expected status unchanged, got %s", updated.Status)
	}
	if st := repo.assignmentState(trip.ID, "driver-2"); st != model.AssignmentDeclined {
		t.Errorf("expected DECLINED assignment, got %q", st)
	}
}

func TestAccept_ClaimTransportFailureTreatedAsDeclined(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}, claimErr: errors.New("matcher unreachable")}
	svc, _, _ := newTestService(matcher, &fakeUsers{exists: true})

	trip := createTrip(t, svc)

	res, err := svc.Accept(context.Background(), trip.ID, "driver-1")
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if res.OK {
		t.Error("expected rejection when claim call fails")
	}
}

func TestAccept_InvalidState(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}}
	svc, _, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)
	if _, err := svc.Accept(ctx, trip.ID, "driver-1"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	if _, err := svc.Accept(ctx, trip.ID, "driver-9"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState after assignment, got %v", err)
	}
}

func TestAccept_ConcurrentDrivers(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1", "driver-2"}}
	svc, repo, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)

	var wg sync.WaitGroup
	results := make([]*AcceptResult, 2)
	for i, driverID := range []string{"driver-1", "driver-2"} {
		wg.Add(1)
		go func(i int, driverID string) {
			defer wg.Done()
			res, err := svc.Accept(ctx, trip.ID, driverID)
			if err != nil {
				// The loser may observe the winner's transition before its
				// own claim call; that surfaces as INVALID_STATE.
				if !errors.Is(err, ErrInvalidState) {
					t.Errorf("unexpected accept error: %v", err)
				}
				results[i] = &AcceptResult{OK: false, Reason: "CLAIM_REJECTED"}
				return
			}
			results[i] = res
		}(i, driverID)
	}
	wg.Wait()

	wins := 0
	for _, res := range results {
		if res.OK {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins)
	}

	updated, _ := svc.Get(ctx, trip.ID)
	if updated.Status != model.TripEnRouteToPickup {
		t.Errorf("expected EN_ROUTE_TO_PICKUP, got %s", updated.Status)
	}

	claimed := 0
	for _, driverID := range []string{"driver-1", "driver-2"} {
		if repo.assignmentState(trip.ID, driverID) == model.AssignmentClaimed {
			claimed++
		}
	}
	if claimed != 1 {
		t.Errorf("expected exactly one CLAIMED assignment, got %d", claimed)
	}
}

func TestDecline_KeepsTripSearching(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1", "driver-2"}}
	svc, repo, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)

	if err := svc.Decline(ctx, trip.ID, "driver-1"); err != nil {
		t.Fatalf("Decline failed: %v", err)
	}

	updated, _ := svc.Get(ctx, trip.ID)
	if updated.Status != model.TripDriverSearching {
		t.Errorf("expected status unchanged after decline, got %s", updated.Status)
	}
	if st := repo.assignmentState(trip.ID, "driver-1"); st != model.AssignmentDeclined {
		t.Errorf("expected DECLINED, got %q", st)
	}

	// A later candidate can still claim.
	res, err := svc.Accept(ctx, trip.ID, "driver-2")
	if err != nil || !res.OK {
		t.Fatalf("expected driver-2 to claim after decline, got %+v, %v", res, err)
	}
}

func TestBumps_RequirePriorState(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}}
	svc, _, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)

	if err := svc.Arrive(ctx, trip.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("arrive while searching: expected ErrInvalidState, got %v", err)
	}
	if err := svc.Start(ctx, trip.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("start while searching: expected ErrInvalidState, got %v", err)
	}
	if _, err := svc.Finish(ctx, trip.ID, 5.0, 12); !errors.Is(err, ErrInvalidState) {
		t.Errorf("finish while searching: expected ErrInvalidState, got %v", err)
	}

	updated, _ := svc.Get(ctx, trip.ID)
	if updated.Status != model.TripDriverSearching {
		t.Errorf("failed guards must not mutate status, got %s", updated.Status)
	}
}

func TestLifecycle_HappyPath(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}}
	svc, repo, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)

	if _, err := svc.Accept(ctx, trip.ID, "driver-1"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if err := svc.Arrive(ctx, trip.ID); err != nil {
		t.Fatalf("Arrive failed: %v", err)
	}
	if err := svc.Start(ctx, trip.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	final, err := svc.Finish(ctx, trip.ID, 4.9, 11)
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if final != trip.QuoteFareTotal {
		t.Errorf("expected final fare %d (quote above floor), got %d", trip.QuoteFareTotal, final)
	}

	updated, _ := svc.Get(ctx, trip.ID)
	if updated.Status != model.TripCompleted {
		t.Errorf("expected COMPLETED, got %s", updated.Status)
	}
	if updated.FinalFareTotal == nil || *updated.FinalFareTotal != final {
		t.Errorf("expected persisted final fare %d, got %v", final, updated.FinalFareTotal)
	}
	if updated.ActualDistanceKm == nil || *updated.ActualDistanceKm != 4.9 {
		t.Errorf("expected actual distance 4.9, got %v", updated.ActualDistanceKm)
	}

	types := repo.eventTypes(trip.ID)
	for _, want := range []model.TripEventType{model.EventDriverAccepted, model.EventArrived, model.EventStarted, model.EventCompleted} {
		if !hasEvent(types, want) {
			t.Errorf("expected %s event in log", want)
		}
	}
}

func TestFinish_AppliesFareFloor(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}}
	svc, repo, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)

	// Force a below-floor quote on the stored trip.
	repo.mu.Lock()
	repo.trips[trip.ID].QuoteFareTotal = 4200
	repo.mu.Unlock()

	if _, err := svc.Accept(ctx, trip.ID, "driver-1"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if err := svc.Arrive(ctx, trip.ID); err != nil {
		t.Fatalf("Arrive failed: %v", err)
	}
	if err := svc.Start(ctx, trip.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	final, err := svc.Finish(ctx, trip.ID, 1.0, 2)
	if err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if final != 10000 {
		t.Errorf("expected fare floor 10000, got %d", final)
	}
}

func TestCancel_Semantics(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}}
	svc, _, bus := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)

	events, cancelSub := bus.Subscribe(trip.ID)
	defer cancelSub()

	if err := svc.Cancel(ctx, trip.ID, "passenger-1", "CHANGED_MIND", nil); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Type != model.NotifyStatusChanged {
			t.Errorf("expected STATUS_CHANGED, got %s", ev.Type)
		}
		if ev.Data["status"] != model.TripCanceled {
			t.Errorf("expected CANCELED in notification, got %v", ev.Data["status"])
		}
	default:
		t.Fatal("expected a notification for the pre-subscribed listener")
	}

	// Late subscriber sees no history.
	late, cancelLate := bus.Subscribe(trip.ID)
	defer cancelLate()
	select {
	case ev := <-late:
		t.Fatalf("late subscriber must not replay history, got %+v", ev)
	default:
	}

	if err := svc.Cancel(ctx, trip.ID, "passenger-1", "CHANGED_MIND", nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second cancel: expected ErrInvalidState, got %v", err)
	}

	updated, _ := svc.Get(ctx, trip.ID)
	if updated.Status != model.TripCanceled {
		t.Errorf("expected CANCELED, got %s", updated.Status)
	}
	if updated.CancelReasonCode == nil || *updated.CancelReasonCode != "CHANGED_MIND" {
		t.Errorf("expected persisted reason code, got %v", updated.CancelReasonCode)
	}
}

func TestCancel_CompletedTripRejected(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}}
	svc, _, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)
	svc.Accept(ctx, trip.ID, "driver-1")
	svc.Arrive(ctx, trip.ID)
	svc.Start(ctx, trip.ID)
	if _, err := svc.Finish(ctx, trip.ID, 4.9, 11); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	if err := svc.Cancel(ctx, trip.ID, "passenger-1", "TOO_LATE", nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on completed trip, got %v", err)
	}
}

func TestRate_Semantics(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}}
	svc, repo, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)

	if err := svc.Rate(ctx, trip.ID, "passenger-1", 5, nil); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("expected ErrNotCompleted before completion, got %v", err)
	}
	if err := svc.Rate(ctx, trip.ID, "passenger-1", 9, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for out-of-range stars, got %v", err)
	}

	svc.Accept(ctx, trip.ID, "driver-1")
	svc.Arrive(ctx, trip.ID)
	svc.Start(ctx, trip.ID)
	svc.Finish(ctx, trip.ID, 4.9, 11)

	if err := svc.Rate(ctx, trip.ID, "passenger-1", 4, nil); err != nil {
		t.Fatalf("Rate failed: %v", err)
	}
	comment := "smooth ride"
	if err := svc.Rate(ctx, trip.ID, "passenger-1", 2, &comment); err != nil {
		t.Fatalf("repeat Rate failed: %v", err)
	}

	repo.mu.Lock()
	rating := repo.ratings[trip.ID]
	count := len(repo.ratings)
	repo.mu.Unlock()
	if count != 1 {
		t.Errorf("expected a single rating record, got %d", count)
	}
	if rating.Stars != 2 {
		t.Errorf("expected repeat rate to overwrite stars, got %d", rating.Stars)
	}
	if rating.DriverID != "driver-1" {
		t.Errorf("expected rating bound to driver-1, got %q", rating.DriverID)
	}
}

func TestExpireSearch(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}}
	svc, repo, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)

	if err := svc.ExpireSearch(ctx, trip.ID); err != nil {
		t.Fatalf("ExpireSearch failed: %v", err)
	}

	updated, _ := svc.Get(ctx, trip.ID)
	if updated.Status != model.TripExpired {
		t.Errorf("expected EXPIRED, got %s", updated.Status)
	}
	if st := repo.assignmentState(trip.ID, "driver-1"); st != model.AssignmentExpired {
		t.Errorf("expected assignment EXPIRED, got %q", st)
	}
}

func TestExpireSearch_SkipsClaimedTrip(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}}
	svc, _, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)
	if _, err := svc.Accept(ctx, trip.ID, "driver-1"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	if err := svc.ExpireSearch(ctx, trip.ID); err != nil {
		t.Fatalf("ExpireSearch should be a no-op on claimed trip, got %v", err)
	}

	updated, _ := svc.Get(ctx, trip.ID)
	if updated.Status != model.TripEnRouteToPickup {
		t.Errorf("expected claimed trip untouched, got %s", updated.Status)
	}
}

func TestCancel_AfterSearchExpiry(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}}
	svc, _, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)
	if err := svc.ExpireSearch(ctx, trip.ID); err != nil {
		t.Fatalf("ExpireSearch failed: %v", err)
	}

	// An expired search may still be canceled for bookkeeping.
	if err := svc.Cancel(ctx, trip.ID, "passenger-1", "GAVE_UP", nil); err != nil {
		t.Fatalf("Cancel after expiry failed: %v", err)
	}

	updated, _ := svc.Get(ctx, trip.ID)
	if updated.Status != model.TripCanceled {
		t.Errorf("expected CANCELED, got %s", updated.Status)
	}
}

func TestExpireAssignments(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1", "driver-2", "driver-3"}}
	svc, repo, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)

	// Settle two invitations before the TTL signal lands.
	if err := repo.UpdateAssignmentState(ctx, trip.ID, "driver-1", model.AssignmentClaimed); err != nil {
		t.Fatalf("seed assignment state: %v", err)
	}
	if err := repo.UpdateAssignmentState(ctx, trip.ID, "driver-2", model.AssignmentDeclined); err != nil {
		t.Fatalf("seed assignment state: %v", err)
	}

	if err := svc.ExpireAssignments(ctx, trip.ID); err != nil {
		t.Fatalf("ExpireAssignments failed: %v", err)
	}

	if st := repo.assignmentState(trip.ID, "driver-1"); st != model.AssignmentClaimed {
		t.Errorf("expected CLAIMED untouched, got %q", st)
	}
	if st := repo.assignmentState(trip.ID, "driver-2"); st != model.AssignmentDeclined {
		t.Errorf("expected DECLINED untouched, got %q", st)
	}
	if st := repo.assignmentState(trip.ID, "driver-3"); st != model.AssignmentExpired {
		t.Errorf("expected INVITED to expire, got %q", st)
	}

	countExpiredEvents := func() int {
		n := 0
		for _, typ := range repo.eventTypes(trip.ID) {
			if typ == model.EventAssignmentExpired {
				n++
			}
		}
		return n
	}
	if n := countExpiredEvents(); n != 1 {
		t.Errorf("expected one AssignmentExpired event, got %d", n)
	}

	// A second signal finds nothing INVITED and must not log another event.
	if err := svc.ExpireAssignments(ctx, trip.ID); err != nil {
		t.Fatalf("repeat ExpireAssignments failed: %v", err)
	}
	if n := countExpiredEvents(); n != 1 {
		t.Errorf("expected no event when nothing expired, got %d", n)
	}
}

func TestHistory_ReturnsAppendOrder(t *testing.T) {
	matcher := &fakeMatcher{candidates: []string{"driver-1"}}
	svc, _, _ := newTestService(matcher, &fakeUsers{exists: true})
	ctx := context.Background()

	trip := createTrip(t, svc)
	svc.Accept(ctx, trip.ID, "driver-1")

	events, err := svc.History(ctx, trip.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("expected at least search and accept events, got %d", len(events))
	}
	if events[0].Type != model.EventDriverSearchStarted {
		t.Errorf("expected DriverSearchStarted first, got %s", events[0].Type)
	}
	if events[len(events)-1].Type != model.EventDriverAccepted {
		t.Errorf("expected DriverAccepted last, got %s", events[len(events)-1].Type)
	}
}
