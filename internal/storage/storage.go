package storage

import (
	"context"

	"github.com/campuslink/campuslink-backend/internal/models"
)

// MessageStore is the only component allowed to mutate the message set.
// Caller identity is passed explicitly on every operation; implementations
// never consult ambient session state.
type MessageStore interface {
	// Send validates and persists a new message from callerID to recipientID
	// and publishes exactly one insert event for it. Fails with
	// ErrValidation when the content trims to empty or callerID equals
	// recipientID.
	Send(ctx context.Context, callerID, recipientID, content string) (*models.Message, error)

	// ListForUser returns every message where userID is sender or
	// recipient, in no particular order. Fails with ErrAuth when callerID
	// differs from userID.
	ListForUser(ctx context.Context, callerID, userID string) ([]models.Message, error)

	// MarkRead flips read=false to read=true for each id whose recipient
	// is callerID, publishing one update event per actual flip. Ids not
	// addressed to the caller, unknown ids, and already-read ids are
	// skipped silently.
	MarkRead(ctx context.Context, callerID string, messageIDs []string) error
}

// ProfileStore resolves user profiles. Profiles are owned by an external
// service; a nil, nil return means the user does not resolve and the
// caller must treat the participant as unknown.
type ProfileStore interface {
	GetProfileByID(ctx context.Context, id string) (*models.Profile, error)
}
