// Package assignment implements distance-based auto-assignment of new leads
// to the nearest eligible representative.
package assignment

import (
	"context"
	"errors"
	"fmt"

	"fieldops_backend/internal/events"
	"fieldops_backend/internal/geo"
	"fieldops_backend/internal/leads/domain"
	"fieldops_backend/internal/reps"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
)

// ResultCode classifies the outcome of an assignment run.
type ResultCode string

const (
	// ResultAssigned means the lead was assigned to the nearest candidate.
	ResultAssigned ResultCode = "assigned"
	// ResultAlreadyAssigned means the lead already carried an assignee.
	// The engine never reassigns; that is a separate manual operation.
	ResultAlreadyAssigned ResultCode = "already_assigned"
	// ResultNoCoordinates means the lead could not be geocoded.
	ResultNoCoordinates ResultCode = "no_coordinates"
	// ResultNoCandidates means the eligible candidate pool was empty.
	ResultNoCandidates ResultCode = "no_candidates"
)

// Result describes what the engine did with a lead.
type Result struct {
	Code          ResultCode `json:"code"`
	AssigneeID    *uuid.UUID `json:"assigneeId,omitempty"`
	DistanceMiles float64    `json:"distanceMiles,omitempty"`
}

// LeadStore is the slice of the lead repository the engine owns:
// coordinates and assignment fields only.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error)
	SetCoordinates(ctx context.Context, id uuid.UUID, lat, lng float64) error
	AssignIfUnassigned(ctx context.Context, id uuid.UUID, assigneeID uuid.UUID, kind domain.AssigneeKind, distanceMiles float64) (bool, error)
}

// CandidateSource supplies the eligible representative pool.
type CandidateSource interface {
	ListAssignable(ctx context.Context, kind domain.AssigneeKind) ([]reps.Representative, error)
}

// Resolver maps a postal code to coordinates, best-effort.
type Resolver interface {
	Resolve(ctx context.Context, postalCode string) (geo.Coordinates, error)
}

// Service is the assignment engine.
type Service struct {
	leadStore  LeadStore
	candidates CandidateSource
	geocoder   Resolver
	bus        events.Bus
	log        *logger.Logger
}

func NewService(leadStore LeadStore, candidates CandidateSource, geocoder Resolver, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		leadStore:  leadStore,
		candidates: candidates,
		geocoder:   geocoder,
		bus:        bus,
		log:        log,
	}
}

// Assign finds the nearest eligible, active representative for the lead and
// writes the assignment. Leads that already carry an assignee are left
// untouched and reported as ResultAlreadyAssigned.
func (s *Service) Assign(ctx context.Context, leadID uuid.UUID, kind domain.AssigneeKind) (Result, error) {
	lead, err := s.leadStore.GetByID(ctx, leadID)
	if err != nil {
		return Result{}, fmt.Errorf("load lead: %w", err)
	}

	if lead.AssigneeID != nil {
		return Result{Code: ResultAlreadyAssigned, AssigneeID: lead.AssigneeID}, nil
	}

	coords, ok := s.leadCoordinates(ctx, lead)
	if !ok {
		return Result{Code: ResultNoCoordinates}, nil
	}

	pool, err := s.candidates.ListAssignable(ctx, kind)
	if err != nil {
		return Result{}, fmt.Errorf("list candidates: %w", err)
	}

	best, bestDistance, found := s.nearestCandidate(ctx, coords, pool)
	if !found {
		return Result{Code: ResultNoCandidates}, nil
	}

	rounded := geo.RoundMiles(bestDistance)
	assigned, err := s.leadStore.AssignIfUnassigned(ctx, leadID, best.ID, kind, rounded)
	if err != nil {
		return Result{}, fmt.Errorf("write assignment: %w", err)
	}
	if !assigned {
		// Raced with another assignment; treat like the precondition check.
		return Result{Code: ResultAlreadyAssigned}, nil
	}

	s.log.Info("lead assigned", "leadId", leadID, "assigneeId", best.ID, "distanceMiles", rounded)

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadAssigned{
			BaseEvent:     events.NewBaseEvent(),
			LeadID:        leadID,
			AssigneeID:    best.ID,
			AssigneeKind:  string(kind),
			DistanceMiles: rounded,
		})
	}

	return Result{Code: ResultAssigned, AssigneeID: &best.ID, DistanceMiles: rounded}, nil
}

// leadCoordinates returns the lead's coordinates, deriving and persisting
// them from the postal code when missing. Derived coordinates are stored
// regardless of assignment outcome so future runs skip the geocoder.
func (s *Service) leadCoordinates(ctx context.Context, lead *domain.Lead) (geo.Coordinates, bool) {
	if lead.HasCoordinates() {
		return geo.Coordinates{Lat: *lead.Lat, Lng: *lead.Lng}, true
	}

	coords, err := s.geocoder.Resolve(ctx, lead.Zip)
	if err != nil {
		if !errors.Is(err, geo.ErrNotFound) {
			s.log.Warn("geocode failed", "leadId", lead.ID, "zip", lead.Zip, "error", err)
		}
		return geo.Coordinates{}, false
	}

	if err := s.leadStore.SetCoordinates(ctx, lead.ID, coords.Lat, coords.Lng); err != nil {
		s.log.DatabaseError("set lead coordinates", err)
	}

	return coords, true
}

// nearestCandidate computes the distance to every coordinate-bearing
// candidate and returns the minimum. Candidates whose coordinates cannot
// be derived are excluded, never guessed. Ties keep the first-seen
// candidate; sub-meter ties are not practically distinguishable.
func (s *Service) nearestCandidate(ctx context.Context, from geo.Coordinates, pool []reps.Representative) (reps.Representative, float64, bool) {
	var (
		best         reps.Representative
		bestDistance float64
		found        bool
	)

	for _, candidate := range pool {
		coords, ok := s.candidateCoordinates(ctx, candidate)
		if !ok {
			continue
		}

		distance := geo.DistanceMiles(from, coords)
		if !found || distance < bestDistance {
			best = candidate
			bestDistance = distance
			found = true
		}
	}

	return best, bestDistance, found
}

func (s *Service) candidateCoordinates(ctx context.Context, rep reps.Representative) (geo.Coordinates, bool) {
	if rep.Lat != nil && rep.Lng != nil {
		return geo.Coordinates{Lat: *rep.Lat, Lng: *rep.Lng}, true
	}

	if rep.Zip == "" {
		return geo.Coordinates{}, false
	}

	coords, err := s.geocoder.Resolve(ctx, rep.Zip)
	if err != nil {
		return geo.Coordinates{}, false
	}

	return coords, true
}
