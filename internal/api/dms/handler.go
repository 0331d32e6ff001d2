package dms

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/campuslink/campuslink-backend/internal/chat"
	"github.com/campuslink/campuslink-backend/internal/middleware"
	"github.com/campuslink/campuslink-backend/internal/models"
	"github.com/campuslink/campuslink-backend/internal/storage"
	"github.com/campuslink/campuslink-backend/internal/ws"
	"github.com/gorilla/mux"
)

// Handler holds the dependencies for the direct-messaging endpoints.
// The caller's identity always comes from the auth middleware, never
// from request bodies or query parameters.
type Handler struct {
	Store    storage.MessageStore
	Profiles storage.ProfileStore
	Hub      *ws.Hub
}

// ListConversations returns the caller's aggregated conversation list:
// one summary per counterpart, most recently active first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserIDFromContext(r.Context())

	msgs, err := h.Store.ListForUser(r.Context(), caller, caller)
	if err != nil {
		writeError(w, err)
		return
	}

	summaries := chat.Aggregate(r.Context(), msgs, caller, h.Profiles)
	writeJSON(w, http.StatusOK, summaries)
}

// GetThread returns the conversation with the path user, oldest first.
// With ?mark_read=1 it also flips the loaded messages still unread for
// the caller, which is how a client opening the thread reports the view.
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserIDFromContext(r.Context())
	otherID := mux.Vars(r)["userID"]

	msgs, err := h.Store.ListForUser(r.Context(), caller, caller)
	if err != nil {
		writeError(w, err)
		return
	}

	thread := chat.Thread(msgs, caller, otherID)
	if r.URL.Query().Get("mark_read") == "1" {
		unread := chat.UnreadIDs(thread, caller)
		if len(unread) > 0 {
			if err := h.Store.MarkRead(r.Context(), caller, unread); err != nil {
				writeError(w, err)
				return
			}
			for i := range thread {
				if thread[i].RecipientID == caller {
					thread[i].Read = true
				}
			}
		}
	}
	if thread == nil {
		thread = []models.Message{}
	}
	writeJSON(w, http.StatusOK, thread)
}

// SendMessage persists a new message from the caller. The store
// publishes the insert event to both participants' live sessions.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserIDFromContext(r.Context())

	var req struct {
		RecipientID string `json:"recipient_id"`
		Content     string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	msg, err := h.Store.Send(r.Context(), caller, req.RecipientID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("[DM] %s -> %s message %s", msg.SenderID, msg.RecipientID, msg.ID)
	writeJSON(w, http.StatusCreated, msg)
}

// MarkRead flips the read flag on the given ids where the caller is the
// recipient. Ids not addressed to the caller are skipped, not errored.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserIDFromContext(r.Context())

	var req struct {
		MessageIDs []string `json:"message_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if err := h.Store.MarkRead(r.Context(), caller, req.MessageIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// StartThread handles the deep-link into a conversation with a specific
// user: confirm the target resolves, then return the thread, possibly
// empty, pending a first send. An unresolvable target is a 404 the
// client surfaces as "user not found".
func (h *Handler) StartThread(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserIDFromContext(r.Context())
	otherID := mux.Vars(r)["userID"]

	profile, err := h.Profiles.GetProfileByID(r.Context(), otherID)
	if err != nil {
		writeError(w, err)
		return
	}
	if profile == nil {
		http.Error(w, `{"error": "User not found"}`, http.StatusNotFound)
		return
	}

	msgs, err := h.Store.ListForUser(r.Context(), caller, caller)
	if err != nil {
		writeError(w, err)
		return
	}

	thread := chat.Thread(msgs, caller, otherID)
	if thread == nil {
		thread = []models.Message{}
	}
	writeJSON(w, http.StatusOK, struct {
		Profile  *models.Profile  `json:"profile"`
		Messages []models.Message `json:"messages"`
	}{profile, thread})
}

// ServeWS hands the connection to the hub for live message delivery.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserIDFromContext(r.Context())
	h.Hub.ServeWS(w, r, caller)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[DM] error encoding response: %v", err)
	}
}

// writeError maps the error taxonomy to a status and a fixed
// client-facing message. The wrapped detail can carry driver internals,
// so it goes to the log only, never into the response body.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	var status int
	var message string
	switch {
	case errors.Is(err, storage.ErrValidation):
		status, message = http.StatusBadRequest, "Invalid request"
	case errors.Is(err, storage.ErrAuth):
		status, message = http.StatusForbidden, "Not permitted"
	case errors.Is(err, storage.ErrNotFound):
		status, message = http.StatusNotFound, "Not found"
	case errors.Is(err, storage.ErrTransport):
		status, message = http.StatusBadGateway, "Service temporarily unavailable"
	default:
		status, message = http.StatusInternalServerError, "Internal error"
	}
	log.Printf("[DM] request failed (%d): %v", status, err)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
