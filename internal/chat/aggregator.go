package chat

import (
	"context"
	"sort"

	"github.com/campuslink/campuslink-backend/internal/models"
	"github.com/campuslink/campuslink-backend/internal/storage"
)

// newerThan orders messages by created_at with message id as the
// tie-break, so equal timestamps never flicker between recomputes.
func newerThan(a, b *models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Aggregate folds a flat message list into the ordered conversation list
// for currentUserID: one summary per counterpart, newest conversation
// first, each carrying the preview message and the unread count. It is a
// pure transformation of its inputs: the same messages always produce
// the same list.
//
// A counterpart whose profile does not resolve is dropped from the list
// rather than shown with no identity; a profile lookup error drops that
// single conversation the same way instead of failing the whole list.
func Aggregate(ctx context.Context, msgs []models.Message, currentUserID string, profiles storage.ProfileStore) []models.ConversationSummary {
	type partition struct {
		head   *models.Message
		unread int
	}
	parts := make(map[string]*partition)

	for i := range msgs {
		msg := &msgs[i]
		other := msg.OtherParty(currentUserID)
		p, ok := parts[other]
		if !ok {
			p = &partition{}
			parts[other] = p
		}
		if p.head == nil || newerThan(msg, p.head) {
			p.head = msg
		}
		if msg.RecipientID == currentUserID && !msg.Read {
			p.unread++
		}
	}

	summaries := make([]models.ConversationSummary, 0, len(parts))
	for otherID, p := range parts {
		profile, err := profiles.GetProfileByID(ctx, otherID)
		if err != nil || profile == nil {
			continue
		}
		summaries = append(summaries, models.ConversationSummary{
			Profile:        profile,
			LastMessage:    p.head,
			UnreadCount:    p.unread,
			LastFromViewer: p.head.SenderID == currentUserID,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return newerThan(summaries[i].LastMessage, summaries[j].LastMessage)
	})
	return summaries
}

// Thread filters msgs down to the conversation between currentUserID and
// otherUserID, ordered ascending by created_at. Oldest first is the
// order a thread view renders in.
func Thread(msgs []models.Message, currentUserID, otherUserID string) []models.Message {
	var thread []models.Message
	for _, msg := range msgs {
		between := (msg.SenderID == currentUserID && msg.RecipientID == otherUserID) ||
			(msg.SenderID == otherUserID && msg.RecipientID == currentUserID)
		if between {
			thread = append(thread, msg)
		}
	}
	sort.Slice(thread, func(i, j int) bool {
		return newerThan(&thread[j], &thread[i])
	})
	return thread
}

// UnreadIDs returns the ids within msgs that viewerID still has to read:
// addressed to the viewer and not yet flipped. The viewer's own sent
// messages never qualify.
func UnreadIDs(msgs []models.Message, viewerID string) []string {
	var ids []string
	for _, msg := range msgs {
		if msg.RecipientID == viewerID && !msg.Read {
			ids = append(ids, msg.ID)
		}
	}
	return ids
}
