package main

import (
	"log"
	"net/http"

	"github.com/campuslink/campuslink-backend/internal/api/dms"
	"github.com/campuslink/campuslink-backend/internal/api/profiles"
	"github.com/campuslink/campuslink-backend/internal/config"
	"github.com/campuslink/campuslink-backend/internal/live"
	"github.com/campuslink/campuslink-backend/internal/middleware"
	"github.com/campuslink/campuslink-backend/internal/storage"
	"github.com/campuslink/campuslink-backend/internal/storage/memory"
	"github.com/campuslink/campuslink-backend/internal/storage/postgres"
	"github.com/campuslink/campuslink-backend/internal/storage/valkeycache"
	"github.com/campuslink/campuslink-backend/internal/ws"
	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()

	broker := live.NewBroker()

	var messageStore storage.MessageStore
	var profileStore storage.ProfileStore
	if cfg.DatabaseURL != "" {
		pgMessages, err := postgres.NewMessageStore(cfg.DatabaseURL, broker)
		if err != nil {
			log.Fatalf("message store: %v", err)
		}
		defer pgMessages.Close()
		if err := pgMessages.Migrate(); err != nil {
			log.Fatalf("message store migration: %v", err)
		}

		pgProfiles, err := postgres.NewProfileStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("profile store: %v", err)
		}
		defer pgProfiles.Close()

		messageStore = pgMessages
		profileStore = pgProfiles
	} else {
		log.Println("DATABASE_URL not set, using in-memory stores")
		messageStore = memory.NewMessageStore(broker)
		profileStore = memory.NewProfileStore()
	}

	if cfg.ValkeyAddr != "" {
		cache, err := valkeycache.NewProfileCache(cfg.ValkeyAddr, profileStore)
		if err != nil {
			log.Fatalf("profile cache: %v", err)
		}
		defer cache.Close()
		profileStore = cache
	}

	hub := ws.NewHub(broker)
	go hub.Run()

	dmHandler := &dms.Handler{Store: messageStore, Profiles: profileStore, Hub: hub}
	profileHandler := &profiles.Handler{Store: profileStore}

	router := mux.NewRouter()
	dms.RegisterDMRoutes(router, dmHandler)
	profiles.RegisterProfileRoutes(router, profileHandler)

	handler := middleware.CORS(cfg.AllowedOrigin)(middleware.Auth(cfg.JWTSecret)(router))

	log.Printf("Server started at :%s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}
