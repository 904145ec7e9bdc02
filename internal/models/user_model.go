package models

import "time"

// Auth provider identifiers stored on a user profile.
const (
	AuthProviderEmail = "email"
	AuthProviderPhone = "phone"
)

// User represents an authenticated identity as reported by the identity
// provider. It is read-only to the rest of the system except for
// LastSignInTime, which the provider refreshes on successful sign-in.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email,omitempty"`
	PhoneNumber    string    `json:"phoneNumber,omitempty"`
	EmailVerified  bool      `json:"emailVerified"`
	CreatedAt      time.Time `json:"createdAt"`
	LastSignInTime time.Time `json:"lastSignInTime"`
}

// UserProfile is the denormalized profile document kept per user; the
// document ID equals User.ID. It is upserted with merge semantics on every
// successful sign-up or phone verification: CreatedAt is preserved once set,
// UpdatedAt is always refreshed.
type UserProfile struct {
	ID           string    `json:"id" firestore:"-"`
	AuthProvider string    `json:"authProvider" firestore:"authProvider"`
	Email        string    `json:"email,omitempty" firestore:"email,omitempty"`
	PhoneNumber  string    `json:"phoneNumber,omitempty" firestore:"phoneNumber,omitempty"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" firestore:"updatedAt"`
}
