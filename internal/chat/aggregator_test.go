package chat

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/campuslink/campuslink-backend/internal/models"
	"github.com/campuslink/campuslink-backend/internal/storage/memory"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func msg(id, sender, recipient, content string, offset time.Duration, read bool) models.Message {
	return models.Message{
		ID:          id,
		SenderID:    sender,
		RecipientID: recipient,
		Content:     content,
		Read:        read,
		CreatedAt:   baseTime.Add(offset),
		UpdatedAt:   baseTime.Add(offset),
	}
}

func profilesWith(ids ...string) *memory.ProfileStore {
	store := memory.NewProfileStore()
	for _, id := range ids {
		store.Put(&models.Profile{ID: id, Name: "User " + id})
	}
	return store
}

func TestAggregatePartitionsAndCounts(t *testing.T) {
	msgs := []models.Message{
		msg("m1", "alice", "bob", "hey bob", 0, true),
		msg("m2", "bob", "alice", "hey alice", time.Minute, false),
		msg("m3", "carol", "alice", "lunch?", 2*time.Minute, false),
		msg("m4", "carol", "alice", "or coffee", 3*time.Minute, false),
		msg("m5", "alice", "carol", "coffee", 4*time.Minute, true),
	}

	got := Aggregate(context.Background(), msgs, "alice", profilesWith("bob", "carol"))

	if len(got) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(got))
	}

	carol := got[0]
	if carol.Profile.ID != "carol" {
		t.Fatalf("most recent conversation should be carol, got %s", carol.Profile.ID)
	}
	if carol.LastMessage.ID != "m5" {
		t.Errorf("carol preview = %s, want m5", carol.LastMessage.ID)
	}
	if carol.UnreadCount != 2 {
		t.Errorf("carol unread = %d, want 2", carol.UnreadCount)
	}
	if !carol.LastFromViewer {
		t.Error("carol preview was sent by the viewer, LastFromViewer should be true")
	}

	bob := got[1]
	if bob.Profile.ID != "bob" {
		t.Fatalf("second conversation should be bob, got %s", bob.Profile.ID)
	}
	if bob.LastMessage.ID != "m2" {
		t.Errorf("bob preview = %s, want m2", bob.LastMessage.ID)
	}
	if bob.UnreadCount != 1 {
		t.Errorf("bob unread = %d, want 1", bob.UnreadCount)
	}
	if bob.LastFromViewer {
		t.Error("bob preview was sent by bob, LastFromViewer should be false")
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	msgs := []models.Message{
		msg("m1", "bob", "alice", "one", 0, false),
		msg("m2", "carol", "alice", "two", time.Minute, false),
		msg("m3", "alice", "bob", "three", 2*time.Minute, true),
	}
	profiles := profilesWith("bob", "carol")

	first := Aggregate(context.Background(), msgs, "alice", profiles)
	second := Aggregate(context.Background(), msgs, "alice", profiles)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("two aggregations of the same input differ:\n%v\n%v", first, second)
	}
}

func TestAggregateUnreadCountIgnoresArrivalOrder(t *testing.T) {
	forward := []models.Message{
		msg("m1", "bob", "alice", "a", 0, false),
		msg("m2", "bob", "alice", "b", time.Minute, true),
		msg("m3", "bob", "alice", "c", 2*time.Minute, false),
	}
	reversed := []models.Message{forward[2], forward[1], forward[0]}
	profiles := profilesWith("bob")

	for _, msgs := range [][]models.Message{forward, reversed} {
		got := Aggregate(context.Background(), msgs, "alice", profiles)
		if len(got) != 1 {
			t.Fatalf("expected 1 conversation, got %d", len(got))
		}
		if got[0].UnreadCount != 2 {
			t.Errorf("unread = %d, want 2", got[0].UnreadCount)
		}
		if got[0].LastMessage.ID != "m3" {
			t.Errorf("preview = %s, want m3", got[0].LastMessage.ID)
		}
	}
}

func TestAggregateTieBreakIsStable(t *testing.T) {
	// Same created_at on both previews: order must come from the id
	// tie-break and never flicker between calls.
	msgs := []models.Message{
		msg("m1", "bob", "alice", "same instant", 0, false),
		msg("m2", "carol", "alice", "same instant", 0, false),
	}
	profiles := profilesWith("bob", "carol")

	first := Aggregate(context.Background(), msgs, "alice", profiles)
	for i := 0; i < 10; i++ {
		again := Aggregate(context.Background(), msgs, "alice", profiles)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("tie-break order changed between calls")
		}
	}
	if first[0].LastMessage.ID != "m2" {
		t.Errorf("descending id tie-break: first preview = %s, want m2", first[0].LastMessage.ID)
	}
}

func TestAggregateDropsUnresolvedProfiles(t *testing.T) {
	msgs := []models.Message{
		msg("m1", "bob", "alice", "hello", 0, false),
		msg("m2", "ghost", "alice", "boo", time.Minute, false),
	}

	got := Aggregate(context.Background(), msgs, "alice", profilesWith("bob"))

	if len(got) != 1 {
		t.Fatalf("expected the unresolved conversation to be dropped, got %d summaries", len(got))
	}
	if got[0].Profile.ID != "bob" {
		t.Errorf("remaining conversation = %s, want bob", got[0].Profile.ID)
	}
}

func TestThreadOrdersAscending(t *testing.T) {
	msgs := []models.Message{
		msg("m3", "alice", "bob", "third", 2*time.Minute, false),
		msg("m1", "alice", "bob", "first", 0, true),
		msg("m4", "alice", "carol", "other thread", 3*time.Minute, false),
		msg("m2", "bob", "alice", "second", time.Minute, true),
	}

	thread := Thread(msgs, "alice", "bob")

	want := []string{"m1", "m2", "m3"}
	if len(thread) != len(want) {
		t.Fatalf("thread length = %d, want %d", len(thread), len(want))
	}
	for i, id := range want {
		if thread[i].ID != id {
			t.Errorf("thread[%d] = %s, want %s", i, thread[i].ID, id)
		}
	}
}

func TestUnreadIDsScopedToViewer(t *testing.T) {
	msgs := []models.Message{
		msg("m1", "bob", "alice", "to viewer, unread", 0, false),
		msg("m2", "bob", "alice", "to viewer, read", time.Minute, true),
		msg("m3", "alice", "bob", "from viewer, unread on bob's side", 2*time.Minute, false),
	}

	got := UnreadIDs(msgs, "alice")

	if len(got) != 1 || got[0] != "m1" {
		t.Errorf("UnreadIDs = %v, want [m1]", got)
	}
}
