package db

import (
	"context"

	"authgate-backend-go/internal/models"
)

// ProfileRepository defines the storage contract for user profile documents.
// The production implementation targets Firestore; development mode routes
// these calls to the mock persistence adapter.
type ProfileRepository interface {
	// Upsert writes the profile with merge semantics: existing fields are
	// preserved, CreatedAt is kept if already present and UpdatedAt is
	// always refreshed.
	Upsert(ctx context.Context, userID string, profile *models.UserProfile) error
	// GetByID retrieves the profile document, or ErrNotFound.
	GetByID(ctx context.Context, userID string) (*models.UserProfile, error)
}
