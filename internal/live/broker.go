package live

import (
	"log"
	"sync"

	"github.com/campuslink/campuslink-backend/internal/models"
)

// EventKind tells a subscriber whether a pushed record is a brand new
// message or an updated copy of one it may already hold.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
)

// Event is a single push: the full message record, so subscribers can
// upsert by id without a follow-up fetch.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Message *models.Message `json:"message"`
}

// subscriberBuffer bounds how many undelivered events a subscription can
// hold. A subscriber that falls further behind loses pushes and must
// reconcile with the store, which the contract allows.
const subscriberBuffer = 64

// Subscription is one client session's view of the broker. Events arrive
// on C. Delivery is at-least-once and unordered relative to other
// sessions; consumers must treat every event as an upsert by message id.
type Subscription struct {
	UserID string
	C      chan Event

	broker *Broker
	once   sync.Once
}

// Cancel detaches the subscription. It is synchronous: once it returns,
// no further event will be delivered on C.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		defer s.broker.mu.Unlock()
		subs := s.broker.subs[s.UserID]
		for i, sub := range subs {
			if sub == s {
				s.broker.subs[s.UserID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(s.broker.subs[s.UserID]) == 0 {
			delete(s.broker.subs, s.UserID)
		}
		close(s.C)
	})
}

// Broker fans message events out to the sessions of both participants.
// It is the in-process half of the live update channel; the WebSocket hub
// is just one consumer of it.
type Broker struct {
	mu   sync.Mutex
	subs map[string][]*Subscription
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]*Subscription)}
}

// Subscribe registers a session for every message where userID is sender
// or recipient.
func (b *Broker) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		UserID: userID,
		C:      make(chan Event, subscriberBuffer),
		broker: b,
	}
	b.mu.Lock()
	b.subs[userID] = append(b.subs[userID], sub)
	b.mu.Unlock()
	return sub
}

// Publish delivers the event to every live session of the message's
// sender and recipient. A session whose buffer is full loses this push;
// it is expected to reconcile via the store on its own schedule.
func (b *Broker) Publish(ev Event) {
	if ev.Message == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	targets := []string{ev.Message.SenderID, ev.Message.RecipientID}
	for _, userID := range targets {
		for _, sub := range b.subs[userID] {
			select {
			case sub.C <- ev:
			default:
				log.Printf("[LIVE] dropping %s event %s for slow subscriber %s", ev.Kind, ev.Message.ID, userID)
			}
		}
	}
}
