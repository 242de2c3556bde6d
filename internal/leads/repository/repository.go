// Package repository provides pgx-backed persistence for leads.
// Updates are field-level so each component only touches the fields it
// owns (assignment fields, attempt/due fields, conversation mirror fields).
package repository

import (
	"context"
	"errors"
	"time"

	"fieldops_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `
	id, first_name, last_name, phone, email,
	street, city, state, zip, lat, lng,
	status, quality, assignee_id, assignee_kind, assigned_distance_miles,
	call_attempts, sms_attempts, last_call_outcome, last_sms_outcome,
	scheduled_call_at, scheduled_sms_at,
	last_contact_at, sms_outcome, sms_message_count, remove_from_list, source,
	created_at, updated_at`

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var lead domain.Lead
	err := row.Scan(
		&lead.ID, &lead.FirstName, &lead.LastName, &lead.Phone, &lead.Email,
		&lead.Street, &lead.City, &lead.State, &lead.Zip, &lead.Lat, &lead.Lng,
		&lead.Status, &lead.Quality, &lead.AssigneeID, &lead.AssigneeKind, &lead.AssignedDistanceMiles,
		&lead.CallAttempts, &lead.SMSAttempts, &lead.LastCallOutcome, &lead.LastSMSOutcome,
		&lead.ScheduledCallAt, &lead.ScheduledSMSAt,
		&lead.LastContactAt, &lead.SMSOutcome, &lead.SMSMessageCount, &lead.RemoveFromList, &lead.Source,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// CreateParams are the fields settable at lead creation.
type CreateParams struct {
	FirstName       string
	LastName        string
	Phone           string
	Email           *string
	Street          string
	City            string
	State           string
	Zip             string
	Source          *string
	ScheduledSMSAt  *time.Time
	ScheduledCallAt *time.Time
}

// Create inserts a new lead in status "new".
func (r *Repository) Create(ctx context.Context, params CreateParams) (*domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			id, first_name, last_name, phone, email,
			street, city, state, zip,
			status, source, scheduled_sms_at, scheduled_call_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING `+leadColumns,
		uuid.New(), params.FirstName, params.LastName, params.Phone, params.Email,
		params.Street, params.City, params.State, params.Zip,
		domain.StatusNew, params.Source, params.ScheduledSMSAt, params.ScheduledCallAt,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// ListDueForOutreach returns leads whose channel due timestamp is at or
// before now and whose status is still outreach-eligible, bounded to limit.
func (r *Repository) ListDueForOutreach(ctx context.Context, channel domain.Channel, now time.Time, limit int) ([]*domain.Lead, error) {
	dueColumn := "scheduled_sms_at"
	if channel == domain.ChannelCall {
		dueColumn = "scheduled_call_at"
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE `+dueColumn+` IS NOT NULL
		  AND `+dueColumn+` <= $1
		  AND status IN ($2, $3)
		ORDER BY `+dueColumn+` ASC
		LIMIT $4
	`, now, domain.StatusNew, domain.StatusAssigned, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]*domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return leads, nil
}

// SetCoordinates persists geocoded coordinates onto the lead. Called by the
// assignment engine regardless of assignment outcome so later runs do not
// re-geocode.
func (r *Repository) SetCoordinates(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET lat = $2, lng = $3, updated_at = now()
		WHERE id = $1
	`, id, lat, lng)
	return err
}

// AssignIfUnassigned writes the assignment only when no assignee is set.
// Returns false when the lead already carries an assignee, making repeated
// invocation a no-op.
func (r *Repository) AssignIfUnassigned(ctx context.Context, id uuid.UUID, assigneeID uuid.UUID, kind domain.AssigneeKind, distanceMiles float64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET assignee_id = $2, assignee_kind = $3, assigned_distance_miles = $4,
		    status = $5, updated_at = now()
		WHERE id = $1 AND assignee_id IS NULL
	`, id, assigneeID, kind, distanceMiles, domain.StatusAssigned)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ClearDue clears the channel due timestamp and records a reason without
// counting an attempt. Used for the scheduler's exit conditions (missing
// phone, terminal prior outcome, attempt cap already reached).
func (r *Repository) ClearDue(ctx context.Context, id uuid.UUID, channel domain.Channel, reason string) error {
	query := `
		UPDATE leads
		SET scheduled_sms_at = NULL, last_sms_outcome = $2, updated_at = now()
		WHERE id = $1`
	if channel == domain.ChannelCall {
		query = `
		UPDATE leads
		SET scheduled_call_at = NULL, last_call_outcome = $2, updated_at = now()
		WHERE id = $1`
	}
	_, err := r.pool.Exec(ctx, query, id, reason)
	return err
}

// RecordSendSuccess increments the channel attempt counter, clears the due
// timestamp and records the provider outcome, all in one conditional write.
// The attempt counter never moves past the cap.
func (r *Repository) RecordSendSuccess(ctx context.Context, id uuid.UUID, channel domain.Channel, outcome string) (int, error) {
	query := `
		UPDATE leads
		SET sms_attempts = sms_attempts + 1,
		    scheduled_sms_at = NULL,
		    last_sms_outcome = $2,
		    updated_at = now()
		WHERE id = $1 AND sms_attempts < $3
		RETURNING sms_attempts`
	if channel == domain.ChannelCall {
		query = `
		UPDATE leads
		SET call_attempts = call_attempts + 1,
		    scheduled_call_at = NULL,
		    last_call_outcome = $2,
		    updated_at = now()
		WHERE id = $1 AND call_attempts < $3
		RETURNING call_attempts`
	}

	var attempts int
	err := r.pool.QueryRow(ctx, query, id, outcome, domain.MaxAttempts).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return attempts, err
}

// RecordSendFailure increments the channel attempt counter and either
// reschedules the due timestamp (under the cap) or clears it permanently
// (at the cap). Single conditional write; safe under concurrent batches.
func (r *Repository) RecordSendFailure(ctx context.Context, id uuid.UUID, channel domain.Channel, nextDue time.Time, reason string) (int, error) {
	query := `
		UPDATE leads
		SET sms_attempts = sms_attempts + 1,
		    scheduled_sms_at = CASE WHEN sms_attempts + 1 >= $3 THEN NULL ELSE $4 END,
		    last_sms_outcome = $2,
		    updated_at = now()
		WHERE id = $1 AND sms_attempts < $3
		RETURNING sms_attempts`
	if channel == domain.ChannelCall {
		query = `
		UPDATE leads
		SET call_attempts = call_attempts + 1,
		    scheduled_call_at = CASE WHEN call_attempts + 1 >= $3 THEN NULL ELSE $4 END,
		    last_call_outcome = $2,
		    updated_at = now()
		WHERE id = $1 AND call_attempts < $3
		RETURNING call_attempts`
	}

	var attempts int
	err := r.pool.QueryRow(ctx, query, id, reason, domain.MaxAttempts, nextDue).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return attempts, err
}

// MarkContacted stamps last contact, mirrors the running message count and
// flips still-eligible leads to contacted. The contact fields update even
// when the status already moved past assigned.
func (r *Repository) MarkContacted(ctx context.Context, id uuid.UUID, at time.Time, messageCount int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET status = CASE WHEN status IN ($4, $5) THEN $2 ELSE status END,
		    last_contact_at = $3,
		    sms_message_count = $6,
		    updated_at = now()
		WHERE id = $1
	`, id, domain.StatusContacted, at, domain.StatusNew, domain.StatusAssigned, messageCount)
	return err
}

// RecordConversationOutcome mirrors terminal conversation fields onto the lead.
func (r *Repository) RecordConversationOutcome(ctx context.Context, id uuid.UUID, outcome string, quality *domain.Quality, removeFromList bool, messageCount int, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET sms_outcome = $2,
		    quality = COALESCE($3, quality),
		    remove_from_list = remove_from_list OR $4,
		    sms_message_count = $5,
		    last_contact_at = $6,
		    updated_at = now()
		WHERE id = $1
	`, id, outcome, quality, removeFromList, messageCount, at)
	return err
}

// ReturnToPool is the explicit manual action that clears an assignment and
// returns the lead to the unassigned pool.
func (r *Repository) ReturnToPool(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET assignee_id = NULL, assignee_kind = NULL, assigned_distance_miles = NULL,
		    status = $2, updated_at = now()
		WHERE id = $1
	`, id, domain.StatusReturned)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
