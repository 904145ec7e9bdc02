package core

import (
	"context"

	"authgate-backend-go/internal/identity"
	"authgate-backend-go/internal/models"
)

// Purpose distinguishes the two phone verification flows. Sign-up rejects
// numbers that already have an account; sign-in rejects numbers that don't.
type Purpose string

const (
	PurposeSignIn Purpose = "signin"
	PurposeSignUp Purpose = "signup"
)

// AuthService is the process-wide auth session controller. It composes the
// identity provider and profile repository selected by the execution mode;
// nothing behind this interface branches on mode.
type AuthService interface {
	// Start resolves the provider's persisted session into the current-user
	// slot and marks the controller ready. Consumers must not read
	// CurrentUser before Ready is closed.
	Start(ctx context.Context) error
	// Ready is closed once the initial session resolution completes.
	Ready() <-chan struct{}
	// CurrentUser returns the signed-in user, or nil.
	CurrentUser() *models.User

	// SignUpWithEmail registers an email/password account and upserts the
	// user profile with authProvider "email".
	SignUpWithEmail(ctx context.Context, email, password string) (*identity.Session, error)
	// SignInWithEmail authenticates an email/password account.
	SignInWithEmail(ctx context.Context, email, password string) (*identity.Session, error)
	// Logout clears the provider session and the current-user slot.
	// Idempotent.
	Logout(ctx context.Context) error

	// SendPhoneVerification checks registration membership for the purpose
	// and issues an OTP challenge. The returned challenge is owned by the
	// caller, which must Clear it on every exit path.
	SendPhoneVerification(ctx context.Context, phoneNumber string, purpose Purpose, captchaToken string) (*identity.Challenge, error)
	// VerifyPhoneCode redeems a challenge and upserts the user profile with
	// authProvider "phone".
	VerifyPhoneCode(ctx context.Context, verificationID, code, phoneNumber string) (*identity.Session, error)
	// CheckExistingPhone reports whether an account exists for the phone.
	CheckExistingPhone(ctx context.Context, phoneNumber string) (bool, error)
	// CheckExistingEmail reports whether an account exists for the email.
	CheckExistingEmail(ctx context.Context, email string) (bool, error)

	// ResolveToken maps a presented session token back to its user, or nil.
	ResolveToken(ctx context.Context, token string) (*models.User, error)
	// ProfileByID loads the persisted profile document for a user.
	ProfileByID(ctx context.Context, userID string) (*models.UserProfile, error)
}
