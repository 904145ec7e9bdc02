package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"authgate-backend-go/internal/models"
)

const usersCollection = "users"

// ErrNotFound is returned when a document is not found in Firestore.
var ErrNotFound = errors.New("document not found")

// firestoreProfileRepository implements ProfileRepository using Firestore.
type firestoreProfileRepository struct {
	client *firestore.Client
}

// NewFirestoreProfileRepository creates a new Firestore-backed profile
// repository.
func NewFirestoreProfileRepository(client *firestore.Client) ProfileRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for ProfileRepository.")
	}
	return &firestoreProfileRepository{client: client}
}

// Upsert writes the profile document with merge semantics. The user's auth
// UID is the Firestore document ID. CreatedAt carries over from the existing
// document if one exists; UpdatedAt is always refreshed.
func (r *firestoreProfileRepository) Upsert(ctx context.Context, userID string, profile *models.UserProfile) error {
	if userID == "" {
		return errors.New("user ID cannot be empty for Upsert operation")
	}

	now := time.Now().UTC()

	// MergeAll requires map data. Fields absent from the map survive on the
	// existing document; createdAt is only written on first creation.
	data := map[string]interface{}{
		"updatedAt": now,
	}
	if profile.AuthProvider != "" {
		data["authProvider"] = profile.AuthProvider
	}
	if profile.Email != "" {
		data["email"] = profile.Email
	}
	if profile.PhoneNumber != "" {
		data["phoneNumber"] = profile.PhoneNumber
	}

	_, err := r.GetByID(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		if profile.CreatedAt.IsZero() {
			data["createdAt"] = now
		} else {
			data["createdAt"] = profile.CreatedAt
		}
	case err != nil:
		return err
	}

	_, err = r.client.Collection(usersCollection).Doc(userID).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to upsert profile for user '%s': %w", userID, err)
	}
	return nil
}

// GetByID retrieves a profile document by its ID (auth UID).
func (r *firestoreProfileRepository) GetByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("profile for user '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile for user '%s': %w", userID, err)
	}

	var profile models.UserProfile
	if err := docSnap.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile data for user '%s': %w", userID, err)
	}
	profile.ID = docSnap.Ref.ID

	return &profile, nil
}
