package assignment

import (
	"context"
	"testing"

	"fieldops_backend/internal/geo"
	"fieldops_backend/internal/leads/domain"
	"fieldops_backend/internal/reps"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLeadStore struct {
	lead *domain.Lead

	coordsSet    bool
	setLat       float64
	setLng       float64
	assignCalled bool
	assignOK     bool
	assignedTo   uuid.UUID
	assignedDist float64
}

func (f *fakeLeadStore) GetByID(_ context.Context, _ uuid.UUID) (*domain.Lead, error) {
	return f.lead, nil
}

func (f *fakeLeadStore) SetCoordinates(_ context.Context, _ uuid.UUID, lat, lng float64) error {
	f.coordsSet = true
	f.setLat = lat
	f.setLng = lng
	return nil
}

func (f *fakeLeadStore) AssignIfUnassigned(_ context.Context, _ uuid.UUID, assigneeID uuid.UUID, _ domain.AssigneeKind, distanceMiles float64) (bool, error) {
	f.assignCalled = true
	f.assignedTo = assigneeID
	f.assignedDist = distanceMiles
	return f.assignOK, nil
}

type fakeCandidates struct {
	pool []reps.Representative
}

func (f *fakeCandidates) ListAssignable(_ context.Context, _ domain.AssigneeKind) ([]reps.Representative, error) {
	return f.pool, nil
}

type fakeResolver struct {
	table map[string]geo.Coordinates
}

func (f *fakeResolver) Resolve(_ context.Context, postalCode string) (geo.Coordinates, error) {
	coords, ok := f.table[postalCode]
	if !ok {
		return geo.Coordinates{}, geo.ErrNotFound
	}
	return coords, nil
}

func newLead(zip string) *domain.Lead {
	return &domain.Lead{
		ID:     uuid.New(),
		Phone:  "+14055550100",
		Zip:    zip,
		Status: domain.StatusNew,
	}
}

func repAt(name string, lat, lng float64) reps.Representative {
	return reps.Representative{
		ID:     uuid.New(),
		Name:   name,
		Role:   "sales",
		Active: true,
		Lat:    &lat,
		Lng:    &lng,
	}
}

func newTestService(store *fakeLeadStore, candidates *fakeCandidates, resolver *fakeResolver) *Service {
	return NewService(store, candidates, resolver, nil, logger.New("test"))
}

func TestAssignPicksNearestCandidate(t *testing.T) {
	// Lead in Edmond (73012); one rep in Edmond, one in Tulsa.
	edmondRep := repAt("edmond", 35.6530, -97.4780)
	tulsaRep := repAt("tulsa", 36.1415, -95.9935)

	store := &fakeLeadStore{lead: newLead("73012"), assignOK: true}
	candidates := &fakeCandidates{pool: []reps.Representative{tulsaRep, edmondRep}}
	resolver := &fakeResolver{table: map[string]geo.Coordinates{
		"73012": {Lat: 35.6660, Lng: -97.4966},
	}}

	result, err := newTestService(store, candidates, resolver).Assign(context.Background(), store.lead.ID, domain.AssigneeRep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Code != ResultAssigned {
		t.Fatalf("expected assigned, got %s", result.Code)
	}
	if store.assignedTo != edmondRep.ID {
		t.Fatalf("expected nearest rep %s, got %s", edmondRep.ID, store.assignedTo)
	}
	if store.assignedDist >= 90 {
		t.Fatalf("expected local distance, got %f miles", store.assignedDist)
	}
}

func TestAssignAlreadyAssignedIsNoOp(t *testing.T) {
	existing := uuid.New()
	lead := newLead("73012")
	lead.AssigneeID = &existing

	store := &fakeLeadStore{lead: lead}
	candidates := &fakeCandidates{pool: []reps.Representative{repAt("someone", 36.0, -96.0)}}
	resolver := &fakeResolver{table: map[string]geo.Coordinates{"73012": {Lat: 35.6660, Lng: -97.4966}}}

	result, err := newTestService(store, candidates, resolver).Assign(context.Background(), lead.ID, domain.AssigneeRep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Code != ResultAlreadyAssigned {
		t.Fatalf("expected already_assigned, got %s", result.Code)
	}
	if store.assignCalled {
		t.Fatalf("expected no assignment write for already-assigned lead")
	}
}

func TestAssignRaceReportsAlreadyAssigned(t *testing.T) {
	store := &fakeLeadStore{lead: newLead("73012"), assignOK: false}
	candidates := &fakeCandidates{pool: []reps.Representative{repAt("someone", 35.7, -97.5)}}
	resolver := &fakeResolver{table: map[string]geo.Coordinates{"73012": {Lat: 35.6660, Lng: -97.4966}}}

	result, err := newTestService(store, candidates, resolver).Assign(context.Background(), store.lead.ID, domain.AssigneeRep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Code != ResultAlreadyAssigned {
		t.Fatalf("expected already_assigned on lost race, got %s", result.Code)
	}
}

func TestAssignNoCoordinates(t *testing.T) {
	store := &fakeLeadStore{lead: newLead("99999")}
	candidates := &fakeCandidates{pool: []reps.Representative{repAt("someone", 35.7, -97.5)}}
	resolver := &fakeResolver{table: map[string]geo.Coordinates{}}

	result, err := newTestService(store, candidates, resolver).Assign(context.Background(), store.lead.ID, domain.AssigneeRep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Code != ResultNoCoordinates {
		t.Fatalf("expected no_coordinates, got %s", result.Code)
	}
	if store.assignCalled {
		t.Fatalf("expected no assignment write without coordinates")
	}
}

func TestAssignNoCandidates(t *testing.T) {
	store := &fakeLeadStore{lead: newLead("73012")}
	candidates := &fakeCandidates{}
	resolver := &fakeResolver{table: map[string]geo.Coordinates{"73012": {Lat: 35.6660, Lng: -97.4966}}}

	result, err := newTestService(store, candidates, resolver).Assign(context.Background(), store.lead.ID, domain.AssigneeRep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Code != ResultNoCandidates {
		t.Fatalf("expected no_candidates, got %s", result.Code)
	}
}

func TestAssignPersistsGeocodedCoordinates(t *testing.T) {
	// Coordinates are stored even though the pool is empty and no
	// assignment happens.
	store := &fakeLeadStore{lead: newLead("73012")}
	candidates := &fakeCandidates{}
	resolver := &fakeResolver{table: map[string]geo.Coordinates{"73012": {Lat: 35.6660, Lng: -97.4966}}}

	result, err := newTestService(store, candidates, resolver).Assign(context.Background(), store.lead.ID, domain.AssigneeRep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Code != ResultNoCandidates {
		t.Fatalf("expected no_candidates, got %s", result.Code)
	}
	if !store.coordsSet {
		t.Fatalf("expected coordinates persisted regardless of assignment outcome")
	}
	if store.setLat != 35.6660 || store.setLng != -97.4966 {
		t.Fatalf("unexpected persisted coordinates: %f, %f", store.setLat, store.setLng)
	}
}

func TestAssignSkipsExistingCoordinates(t *testing.T) {
	lat, lng := 35.6660, -97.4966
	lead := newLead("73012")
	lead.Lat = &lat
	lead.Lng = &lng

	store := &fakeLeadStore{lead: lead, assignOK: true}
	candidates := &fakeCandidates{pool: []reps.Representative{repAt("edmond", 35.6530, -97.4780)}}
	// Empty resolver table: a geocoder call would fail the run.
	resolver := &fakeResolver{table: map[string]geo.Coordinates{}}

	result, err := newTestService(store, candidates, resolver).Assign(context.Background(), lead.ID, domain.AssigneeRep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Code != ResultAssigned {
		t.Fatalf("expected assigned using stored coordinates, got %s", result.Code)
	}
	if store.coordsSet {
		t.Fatalf("expected no re-geocode for lead with coordinates")
	}
}

func TestAssignDerivesCandidateCoordinatesFromZip(t *testing.T) {
	zipRep := reps.Representative{
		ID:     uuid.New(),
		Name:   "zip-only",
		Role:   "sales",
		Active: true,
		Zip:    "74119",
	}
	noLocationRep := reps.Representative{
		ID:     uuid.New(),
		Name:   "no-location",
		Role:   "sales",
		Active: true,
	}

	store := &fakeLeadStore{lead: newLead("73012"), assignOK: true}
	candidates := &fakeCandidates{pool: []reps.Representative{noLocationRep, zipRep}}
	resolver := &fakeResolver{table: map[string]geo.Coordinates{
		"73012": {Lat: 35.6660, Lng: -97.4966},
		"74119": {Lat: 36.1415, Lng: -95.9935},
	}}

	result, err := newTestService(store, candidates, resolver).Assign(context.Background(), store.lead.ID, domain.AssigneeRep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Code != ResultAssigned {
		t.Fatalf("expected assigned, got %s", result.Code)
	}
	if store.assignedTo != zipRep.ID {
		t.Fatalf("expected zip-derived candidate, got %s", store.assignedTo)
	}
	// Edmond to Tulsa, rounded to one decimal.
	if store.assignedDist < 85 || store.assignedDist > 95 {
		t.Fatalf("expected cross-metro distance, got %f", store.assignedDist)
	}
}
