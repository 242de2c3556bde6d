package conversation

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("conversation not found")

// Repository provides pgx-backed persistence for conversations. Message
// appends update the message counter in the same transaction so the
// count-equals-log-length invariant holds after every transition.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AppendParams describes one message to append to the log.
type AppendParams struct {
	Role              string
	Body              string
	ProviderMessageID *string
	DeliveryStatus    string
}

// Create opens an active conversation with its first assistant message.
func (r *Repository) Create(ctx context.Context, leadID uuid.UUID, phoneNumber string, first AppendParams) (*Conversation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	convID := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, lead_id, phone, status, message_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, now(), now())
	`, convID, leadID, phoneNumber, StatusActive)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, role, body, provider_message_id, delivery_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, uuid.New(), convID, first.Role, first.Body, first.ProviderMessageID, first.DeliveryStatus)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, convID)
}

// GetByID loads a conversation with its ordered message log.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, phone, status, message_count, analysis, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`, id)
	return r.scanWithMessages(ctx, row)
}

// GetActiveByPhone finds the single active conversation for a channel
// identity. Inbound messages without one are rejected by the service.
func (r *Repository) GetActiveByPhone(ctx context.Context, phoneNumber string) (*Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, phone, status, message_count, analysis, created_at, updated_at
		FROM conversations
		WHERE phone = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, phoneNumber, StatusActive)
	return r.scanWithMessages(ctx, row)
}

// GetLatestByLeadID returns the most recent conversation for a lead.
func (r *Repository) GetLatestByLeadID(ctx context.Context, leadID uuid.UUID) (*Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, phone, status, message_count, analysis, created_at, updated_at
		FROM conversations
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, leadID)
	return r.scanWithMessages(ctx, row)
}

// HasCompletedForLead reports whether the lead already has a completed SMS
// conversation; the outreach scheduler treats that as a terminal positive
// outcome and stops scheduling sends.
func (r *Repository) HasCompletedForLead(ctx context.Context, leadID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversations WHERE lead_id = $1 AND status = $2
		)
	`, leadID, StatusCompleted).Scan(&exists)
	return exists, err
}

// AppendMessage appends to the log and bumps the counter atomically.
// Returns the new message count.
func (r *Repository) AppendMessage(ctx context.Context, convID uuid.UUID, params AppendParams) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, role, body, provider_message_id, delivery_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, uuid.New(), convID, params.Role, params.Body, params.ProviderMessageID, params.DeliveryStatus)
	if err != nil {
		return 0, err
	}

	var count int
	err = tx.QueryRow(ctx, `
		UPDATE conversations
		SET message_count = message_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING message_count
	`, convID).Scan(&count)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return count, nil
}

// Close moves an active conversation to a terminal status, optionally
// recording the analysis. Closing an already-terminal conversation is a
// no-op reported as ErrNotFound.
func (r *Repository) Close(ctx context.Context, convID uuid.UUID, status Status, analysis *Analysis) error {
	var analysisJSON []byte
	if analysis != nil {
		data, err := json.Marshal(analysis)
		if err != nil {
			return err
		}
		analysisJSON = data
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET status = $2, analysis = COALESCE($3, analysis), updated_at = now()
		WHERE id = $1 AND status = $4
	`, convID, status, analysisJSON, StatusActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) scanWithMessages(ctx context.Context, row pgx.Row) (*Conversation, error) {
	var (
		conv         Conversation
		analysisJSON []byte
	)
	err := row.Scan(&conv.ID, &conv.LeadID, &conv.Phone, &conv.Status, &conv.MessageCount, &analysisJSON, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(analysisJSON) > 0 {
		var analysis Analysis
		if err := json.Unmarshal(analysisJSON, &analysis); err != nil {
			return nil, err
		}
		conv.Analysis = &analysis
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, role, body, provider_message_id, delivery_status, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, conv.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conv.Messages = make([]Message, 0, conv.MessageCount)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Body, &msg.ProviderMessageID, &msg.DeliveryStatus, &msg.CreatedAt); err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, msg)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return &conv, nil
}
