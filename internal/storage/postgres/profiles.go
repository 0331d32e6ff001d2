package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/campuslink/campuslink-backend/internal/models"
	"github.com/campuslink/campuslink-backend/internal/storage"
)

// ProfileStore reads user profiles from the profiles table maintained by
// the rest of the platform. The messaging backend never writes to it.
type ProfileStore struct {
	db *sql.DB
}

// NewProfileStore opens the database connection and verifies it.
func NewProfileStore(dataSourceName string) (*ProfileStore, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection for profiles: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database for profiles: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Println("Successfully connected to PostgreSQL database for profiles.")

	return &ProfileStore{db: db}, nil
}

// GetProfileByID resolves a profile. A missing row is nil, nil: the
// participant simply does not resolve.
func (s *ProfileStore) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `
		SELECT id, name, profile_picture, university, department
		FROM profiles
		WHERE id = $1
	`
	p := &models.Profile{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.ProfilePicture, &p.University, &p.Department,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		log.Printf("Error fetching profile %s: %v", id, err)
		return nil, fmt.Errorf("%w: fetch profile: %v", storage.ErrTransport, err)
	}
	return p, nil
}

// Close closes the database connection.
func (s *ProfileStore) Close() error {
	return s.db.Close()
}
