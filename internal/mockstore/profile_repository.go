package mockstore

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"authgate-backend-go/internal/db"
	"authgate-backend-go/internal/models"
)

// profileRepository implements db.ProfileRepository on local durable storage.
// Storage failures log and degrade to sentinel results instead of
// propagating, keeping the development path non-fatal.
type profileRepository struct {
	kv     KV
	logger *zap.Logger
}

// NewProfileRepository creates the development-mode profile repository.
func NewProfileRepository(kv KV, logger *zap.Logger) db.ProfileRepository {
	return &profileRepository{kv: kv, logger: logger}
}

func (r *profileRepository) Upsert(ctx context.Context, userID string, profile *models.UserProfile) error {
	if userID == "" {
		r.logger.Error("no user ID provided for profile upsert")
		return nil
	}

	now := time.Now().UTC()
	merged := *profile
	merged.ID = userID
	merged.UpdatedAt = now
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = now
	}

	if raw, exists, err := r.kv.HGet(ctx, keyMockUserDB, userID); err != nil {
		r.logger.Error("failed to read mock profile", zap.String("uid", userID), zap.Error(err))
		return nil
	} else if exists {
		var existing models.UserProfile
		if err := json.Unmarshal([]byte(raw), &existing); err == nil {
			merged.CreatedAt = existing.CreatedAt
			// Merge semantics: fields absent from the new record survive.
			if merged.Email == "" {
				merged.Email = existing.Email
			}
			if merged.PhoneNumber == "" {
				merged.PhoneNumber = existing.PhoneNumber
			}
			if merged.AuthProvider == "" {
				merged.AuthProvider = existing.AuthProvider
			}
		}
	}

	raw, _ := json.Marshal(&merged)
	if err := r.kv.HSet(ctx, keyMockUserDB, userID, string(raw)); err != nil {
		r.logger.Error("failed to store mock profile", zap.String("uid", userID), zap.Error(err))
		return nil
	}
	return nil
}

func (r *profileRepository) GetByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		r.logger.Error("no user ID provided for profile read")
		return nil, db.ErrNotFound
	}
	raw, exists, err := r.kv.HGet(ctx, keyMockUserDB, userID)
	if err != nil {
		r.logger.Error("failed to read mock profile", zap.String("uid", userID), zap.Error(err))
		return nil, db.ErrNotFound
	}
	if !exists {
		return nil, db.ErrNotFound
	}
	var profile models.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		r.logger.Error("corrupt mock profile record", zap.String("uid", userID), zap.Error(err))
		return nil, db.ErrNotFound
	}
	profile.ID = userID
	return &profile, nil
}
