package dms

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterDMRoutes registers all DM-related HTTP and WebSocket routes.
// Every route assumes the auth middleware already ran.
func RegisterDMRoutes(r *mux.Router, handler *Handler) {
	r.HandleFunc("/api/v1/dms/conversations", logged(handler.ListConversations)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/dms/thread/{userID}", logged(handler.GetThread)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/dms/send", logged(handler.SendMessage)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/dms/read", logged(handler.MarkRead)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/dms/start/{userID}", logged(handler.StartThread)).Methods(http.MethodGet)
	r.HandleFunc("/ws/dms", handler.ServeWS).Methods(http.MethodGet)
}

func logged(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[DM] %s %s", r.Method, r.URL.Path)
		next(w, r)
	}
}
