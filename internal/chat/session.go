package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/campuslink/campuslink-backend/internal/live"
	"github.com/campuslink/campuslink-backend/internal/models"
	"github.com/campuslink/campuslink-backend/internal/storage"
)

// Session is the per-client messaging state: the local copy of the user's
// message set, kept current by live events and reconciliation, plus the
// operations a conversation surface needs (compose, open thread, list).
//
// A Session is owned by a single goroutine, mirroring the event-driven UI
// loop it stands in for; it does no locking of its own. Live events
// arrive on Events() and are applied by the owner via Apply.
type Session struct {
	userID   string
	store    storage.MessageStore
	profiles storage.ProfileStore
	broker   *live.Broker
	sub      *live.Subscription

	messages map[string]models.Message
	version  uint64

	memoVersion uint64
	memoValid   bool
	memo        []models.ConversationSummary
}

// NewSession creates a session for userID. The broker may be nil for a
// session that only polls.
func NewSession(userID string, store storage.MessageStore, profiles storage.ProfileStore, broker *live.Broker) *Session {
	return &Session{
		userID:   userID,
		store:    store,
		profiles: profiles,
		broker:   broker,
		messages: make(map[string]models.Message),
	}
}

// UserID returns the identity this session acts as.
func (s *Session) UserID() string {
	return s.userID
}

// Connect subscribes to live updates and reconciles the local state from
// the store. Reconcile-before-trusting-pushes is mandatory: any event
// fired while the session was offline is gone, and only a full refetch
// closes that gap. Call Connect again after a dropped subscription.
func (s *Session) Connect(ctx context.Context) error {
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	if s.broker != nil {
		s.sub = s.broker.Subscribe(s.userID)
	}
	return s.Reconcile(ctx)
}

// Events exposes the live event stream. Nil when not connected.
func (s *Session) Events() <-chan live.Event {
	if s.sub == nil {
		return nil
	}
	return s.sub.C
}

// Close cancels the live subscription. Synchronous: no event is
// delivered after it returns, so the owner can tear down safely.
func (s *Session) Close() {
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
}

// Reconcile replaces the local state with the store's truth.
func (s *Session) Reconcile(ctx context.Context) error {
	msgs, err := s.store.ListForUser(ctx, s.userID, s.userID)
	if err != nil {
		return err
	}
	s.messages = make(map[string]models.Message, len(msgs))
	for _, msg := range msgs {
		s.messages[msg.ID] = msg
	}
	s.bump()
	return nil
}

// Apply merges one live event into local state. The merge is an upsert
// by id: a duplicate insert is absorbed, an update replaces the previous
// copy, and the read flip never reverts. A stale or re-delivered event
// cannot make a read message unread again.
func (s *Session) Apply(ev live.Event) {
	if ev.Message == nil {
		return
	}
	incoming := *ev.Message
	if prev, ok := s.messages[incoming.ID]; ok && prev.Read {
		incoming.Read = true
	}
	s.messages[incoming.ID] = incoming
	s.bump()
}

// Compose validates and sends a new message, merging the confirmed
// record immediately so the open thread shows it without a reload.
func (s *Session) Compose(ctx context.Context, otherUserID, content string) (*models.Message, error) {
	// Fast-path reject; the store enforces this authoritatively.
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty message content", storage.ErrValidation)
	}
	msg, err := s.store.Send(ctx, s.userID, otherUserID, content)
	if err != nil {
		return nil, err
	}
	s.messages[msg.ID] = *msg
	s.bump()
	return msg, nil
}

// OpenThread returns the conversation with otherUserID oldest-first and
// flips every loaded message still unread for the viewer. Only messages
// addressed to the viewer are submitted; re-opening an all-read thread
// touches nothing.
func (s *Session) OpenThread(ctx context.Context, otherUserID string) ([]models.Message, error) {
	thread := Thread(s.snapshot(), s.userID, otherUserID)
	unread := UnreadIDs(thread, s.userID)
	if len(unread) > 0 {
		if err := s.store.MarkRead(ctx, s.userID, unread); err != nil {
			return nil, err
		}
		// Reflect the flip locally; the update events re-deliver the
		// same state and merge as no-ops.
		for _, id := range unread {
			msg := s.messages[id]
			msg.Read = true
			s.messages[id] = msg
		}
		for i := range thread {
			if thread[i].RecipientID == s.userID {
				thread[i].Read = true
			}
		}
		s.bump()
	}
	return thread, nil
}

// LocalThread returns the conversation with otherUserID from local state
// only, oldest first, without touching read state or the store. Renders
// use it between events; OpenThread is the call that reports the view.
func (s *Session) LocalThread(otherUserID string) []models.Message {
	return Thread(s.snapshot(), s.userID, otherUserID)
}

// Summaries returns the conversation list for the session's user. The
// aggregation itself is pure; the result is memoized against the local
// state version so unrelated recomputes don't resort unchanged data.
func (s *Session) Summaries(ctx context.Context) []models.ConversationSummary {
	if s.memoValid && s.memoVersion == s.version {
		return s.memo
	}
	s.memo = Aggregate(ctx, s.snapshot(), s.userID, s.profiles)
	s.memoVersion = s.version
	s.memoValid = true
	return s.memo
}

// StartThread resolves the deep-link target and returns the (possibly
// empty) thread with them. An unresolvable target is ErrNotFound; the
// caller shows "user not found" and falls back to the list.
func (s *Session) StartThread(ctx context.Context, otherUserID string) ([]models.Message, error) {
	profile, err := s.profiles.GetProfileByID(ctx, otherUserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: user %s", storage.ErrNotFound, otherUserID)
	}
	return s.OpenThread(ctx, otherUserID)
}

func (s *Session) snapshot() []models.Message {
	out := make([]models.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		out = append(out, msg)
	}
	return out
}

func (s *Session) bump() {
	s.version++
	s.memoValid = false
}
