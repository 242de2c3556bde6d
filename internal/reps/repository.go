// Package reps provides the representative candidate pool used by the
// assignment engine. Distance is a query-time projection computed against a
// specific lead, never stored.
package reps

import (
	"context"

	"fieldops_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Representative is an assignment candidate.
type Representative struct {
	ID     uuid.UUID
	Name   string
	Role   string
	Active bool
	Zip    string
	Lat    *float64
	Lng    *float64
}

// Repository reads the candidate pool.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// roleFor maps an assignee kind to the eligible representative role.
func roleFor(kind domain.AssigneeKind) string {
	if kind == domain.AssigneeSubscriber {
		return "subscriber"
	}
	return "sales"
}

// ListAssignable returns active representatives with the eligible role.
// Candidates without stored coordinates are included; the engine may still
// derive coordinates from their zip, but never guesses.
func (r *Repository) ListAssignable(ctx context.Context, kind domain.AssigneeKind) ([]Representative, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, role, active, zip, lat, lng
		FROM representatives
		WHERE role = $1 AND active = true
		ORDER BY created_at ASC
	`, roleFor(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := make([]Representative, 0)
	for rows.Next() {
		var rep Representative
		if err := rows.Scan(&rep.ID, &rep.Name, &rep.Role, &rep.Active, &rep.Zip, &rep.Lat, &rep.Lng); err != nil {
			return nil, err
		}
		candidates = append(candidates, rep)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return candidates, nil
}
