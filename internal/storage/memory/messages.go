package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/campuslink/campuslink-backend/internal/live"
	"github.com/campuslink/campuslink-backend/internal/models"
	"github.com/campuslink/campuslink-backend/internal/storage"
	"github.com/google/uuid"
)

// MessageStore keeps the full message set in memory. It backs local
// development and tests; the PostgreSQL store is the production twin.
type MessageStore struct {
	mu        sync.RWMutex
	messages  map[string]*models.Message // messageID -> message
	userIndex map[string][]string        // userID -> []messageID, sender or recipient
	broker    *live.Broker
	now       func() time.Time
}

// NewMessageStore creates an empty store publishing events to broker.
// A nil broker disables publishing, which some tests rely on.
func NewMessageStore(broker *live.Broker) *MessageStore {
	return &MessageStore{
		messages:  make(map[string]*models.Message),
		userIndex: make(map[string][]string),
		broker:    broker,
		now:       time.Now,
	}
}

// SetClock overrides the store's clock. Tests use it to pin created_at.
func (s *MessageStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

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

	s.mu.Lock()
	ts := s.now().UTC()
	msg := &models.Message{
		ID:          uuid.NewString(),
		SenderID:    callerID,
		RecipientID: recipientID,
		Content:     content,
		Read:        false,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	s.messages[msg.ID] = msg
	s.userIndex[callerID] = append(s.userIndex[callerID], msg.ID)
	s.userIndex[recipientID] = append(s.userIndex[recipientID], msg.ID)
	out := *msg
	s.mu.Unlock()

	s.publish(live.Event{Kind: live.EventInsert, Message: &out})
	return &out, nil
}

func (s *MessageStore) ListForUser(ctx context.Context, callerID, userID string) ([]models.Message, error) {
	if callerID != userID {
		return nil, fmt.Errorf("%w: cannot list another user's messages", storage.ErrAuth)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.userIndex[userID]
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.messages[id])
	}
	return out, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, callerID string, messageIDs []string) error {
	var flipped []models.Message

	s.mu.Lock()
	for _, id := range messageIDs {
		msg, ok := s.messages[id]
		// Foreign and unknown ids are skipped, not errored: a batch must
		// not leak whether an id exists or whom it belongs to.
		if !ok || msg.RecipientID != callerID || msg.Read {
			continue
		}
		msg.Read = true
		msg.UpdatedAt = s.now().UTC()
		flipped = append(flipped, *msg)
	}
	s.mu.Unlock()

	for i := range flipped {
		s.publish(live.Event{Kind: live.EventUpdate, Message: &flipped[i]})
	}
	return nil
}

func (s *MessageStore) publish(ev live.Event) {
	if s.broker != nil {
		s.broker.Publish(ev)
	}
}
