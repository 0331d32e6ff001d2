package profiles

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterProfileRoutes registers the profile lookup route.
func RegisterProfileRoutes(r *mux.Router, handler *Handler) {
	r.HandleFunc("/api/v1/profiles/{userID}", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[PROFILE] %s %s", r.Method, r.URL.Path)
		handler.GetProfile(w, r)
	}).Methods(http.MethodGet)
}
