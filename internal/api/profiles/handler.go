package profiles

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/campuslink/campuslink-backend/internal/storage"
	"github.com/gorilla/mux"
)

// Handler serves read-only profile lookups. Profiles belong to the wider
// platform; the messaging front-end only needs them to label
// conversation counterparts, so this surface is a single GET.
type Handler struct {
	Store storage.ProfileStore
}

// GetProfile resolves a profile by id. Unknown ids are a 404.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["userID"]

	profile, err := h.Store.GetProfileByID(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrTransport) {
			status = http.StatusBadGateway
		}
		http.Error(w, `{"error": "Failed to fetch profile"}`, status)
		log.Printf("[PROFILE] lookup %s failed: %v", id, err)
		return
	}
	if profile == nil {
		http.Error(w, `{"error": "User not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}
