package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	port "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/port"
)

// PgMessageRepository implements the messaging repository port on Postgres.
type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

// Ensure interface compliance at compile time
var _ port.MessageRepository = (*PgMessageRepository)(nil)

func (r *PgMessageRepository) GetConversation(ctx context.Context, id string) (*messaging.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessageRepository: nil pool")
	}
	var c messaging.Conversation
	err := r.pool.QueryRow(ctx, `
		SELECT id::text,
		       customer_id::text, customer_name, customer_email, COALESCE(customer_photo_url, ''),
		       vendor_id::text, vendor_name, vendor_email, COALESCE(vendor_photo_url, ''),
		       last_message_at, created_at
		FROM messaging.conversation
		WHERE id = $1::uuid
	`, id).Scan(
		&c.ID,
		&c.Customer.UserID, &c.Customer.Name, &c.Customer.Email, &c.Customer.PhotoURL,
		&c.Vendor.UserID, &c.Vendor.Name, &c.Vendor.Email, &c.Vendor.PhotoURL,
		&c.LastMessageAt, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, messaging.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

func (r *PgMessageRepository) ListMessages(ctx context.Context, conversationID string) ([]messaging.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgMessageRepository: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, conversation_id::text, sender_id::text, body, msg_type, is_read, created_at
		FROM messaging.message
		WHERE conversation_id = $1::uuid
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []messaging.Message
	for rows.Next() {
		var m messaging.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.MsgType, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return msgs, nil
}

func (r *PgMessageRepository) SaveMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	if r == nil || r.pool == nil {
		return messaging.Message{}, errors.New("PgMessageRepository: nil pool")
	}
	// id and created_at are storage-assigned; created_at is authoritative
	// for ordering.
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messaging.message (conversation_id, sender_id, body, msg_type, is_read)
		VALUES ($1::uuid, $2::uuid, $3, $4, FALSE)
		RETURNING id::text, created_at
	`, m.ConversationID, m.SenderID, m.Body, m.MsgType).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return messaging.Message{}, fmt.Errorf("save message: %w", err)
	}
	m.IsRead = false
	return m, nil
}

// MarkMessagesRead flips is_read for the given ids. Already-read ids are
// silently skipped, which is what lets the batch and targeted receipt paths
// race without coordination.
func (r *PgMessageRepository) MarkMessagesRead(ctx context.Context, conversationID string, ids []string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgMessageRepository: nil pool")
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE messaging.message
		SET is_read = TRUE
		WHERE conversation_id = $1::uuid AND id = ANY($2::uuid[])
	`, conversationID, ids)
	if err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return nil
}

// TouchConversation advances last_message_at, never rewinds it.
func (r *PgMessageRepository) TouchConversation(ctx context.Context, id string, at time.Time) error {
	if r == nil || r.pool == nil {
		return errors.New("PgMessageRepository: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE messaging.conversation
		SET last_message_at = $2
		WHERE id = $1::uuid AND (last_message_at IS NULL OR last_message_at < $2)
	`, id, at)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
