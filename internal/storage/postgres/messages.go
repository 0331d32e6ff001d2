package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/campuslink/campuslink-backend/internal/live"
	"github.com/campuslink/campuslink-backend/internal/models"
	"github.com/campuslink/campuslink-backend/internal/storage"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MessageStore implements the message store on PostgreSQL.
type MessageStore struct {
	db     *sql.DB
	broker *live.Broker
}

// NewMessageStore opens the database connection and verifies it.
func NewMessageStore(dataSourceName string, broker *live.Broker) (*MessageStore, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection for messages: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database for messages: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Println("Successfully connected to PostgreSQL database for messages.")

	return &MessageStore{db: db, broker: broker}, nil
}

// Migrate creates the messages table and its indexes if they are
// missing. Profiles are owned by the rest of the platform and are not
// migrated here.
func (s *MessageStore) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		sender_id TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		content TEXT NOT NULL CHECK (btrim(content) <> ''),
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (sender_id <> recipient_id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);
	CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate messages schema: %w", err)
	}
	return nil
}

const messageColumns = "id, sender_id, recipient_id, content, read, created_at, updated_at"

func scanMessage(row interface{ Scan(...any) error }, msg *models.Message) error {
	return row.Scan(
		&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Content,
		&msg.Read, &msg.CreatedAt, &msg.UpdatedAt,
	)
}

// Send persists a new message and publishes its insert event. The id and
// both timestamps are assigned by the database.
func (s *MessageStore) Send(ctx context.Context, callerID, recipientID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty message content", storage.ErrValidation)
	}
	if callerID == "" || recipientID == "" {
		return nil, fmt.Errorf("%w: sender and recipient are required", storage.ErrValidation)
	}
	if callerID == recipientID {
		return nil, fmt.Errorf("%w: cannot message yourself", storage.ErrValidation)
	}

	query := `
		INSERT INTO messages (sender_id, recipient_id, content)
		VALUES ($1, $2, $3)
		RETURNING ` + messageColumns

	msg := &models.Message{}
	if err := scanMessage(s.db.QueryRowContext(ctx, query, callerID, recipientID, content), msg); err != nil {
		log.Printf("Error inserting message from %s to %s: %v", callerID, recipientID, err)
		return nil, fmt.Errorf("%w: insert message: %v", storage.ErrTransport, err)
	}

	if s.broker != nil {
		s.broker.Publish(live.Event{Kind: live.EventInsert, Message: msg})
	}
	return msg, nil
}

// ListForUser returns every message the user sent or received.
func (s *MessageStore) ListForUser(ctx context.Context, callerID, userID string) ([]models.Message, error) {
	if callerID != userID {
		return nil, fmt.Errorf("%w: cannot list another user's messages", storage.ErrAuth)
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE sender_id = $1 OR recipient_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Printf("Error listing messages for user %s: %v", userID, err)
		return nil, fmt.Errorf("%w: list messages: %v", storage.ErrTransport, err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		if err := scanMessage(rows, &msg); err != nil {
			log.Printf("Error scanning message row for user %s: %v", userID, err)
			continue
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate messages: %v", storage.ErrTransport, err)
	}
	return msgs, nil
}

// validUUIDs keeps only the ids that parse as UUIDs. The id column is
// typed uuid, so a malformed element in the ANY($1) array would abort
// the whole statement with a 22P02 before any row is touched. Malformed
// ids get the same silent skip as unknown and foreign ones.
func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		valid = append(valid, id)
	}
	return valid
}

// MarkRead flips the read flag for the caller's messages among the given
// ids. The WHERE clause scopes the update to recipient = caller and
// read = false, so foreign, unknown, and already-read ids fall out of the
// statement instead of erroring the batch.
func (s *MessageStore) MarkRead(ctx context.Context, callerID string, messageIDs []string) error {
	ids := validUUIDs(messageIDs)
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE messages
		SET read = TRUE, updated_at = NOW()
		WHERE id = ANY($1) AND recipient_id = $2 AND read = FALSE
		RETURNING ` + messageColumns

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids), callerID)
	if err != nil {
		log.Printf("Error marking messages read for user %s: %v", callerID, err)
		return fmt.Errorf("%w: mark read: %v", storage.ErrTransport, err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg models.Message
		if err := scanMessage(rows, &msg); err != nil {
			log.Printf("Error scanning updated message row for user %s: %v", callerID, err)
			continue
		}
		if s.broker != nil {
			s.broker.Publish(live.Event{Kind: live.EventUpdate, Message: &msg})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate updated messages: %v", storage.ErrTransport, err)
	}
	return nil
}

// Close closes the database connection.
func (s *MessageStore) Close() error {
	return s.db.Close()
}
