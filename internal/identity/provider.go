// Package identity abstracts the external identity provider behind a single
// send/verify/check contract with a production (Firebase) and a mock
// implementation. Callers never branch on execution mode directly.
package identity

import (
	"context"
	"sync"

	"authgate-backend-go/internal/models"
)

// Session is the result of a successful authentication event: the resolved
// user plus the opaque session token the client presents on later requests.
type Session struct {
	User  *models.User
	Token string
}

// Challenge is an issued phone verification challenge. The VerificationID is
// authoritative only for the phone number it was created for. The holder owns
// the challenge resource and must call Clear on every exit path.
type Challenge struct {
	VerificationID string
	Phone          string

	clearOnce sync.Once
	teardown  func()
}

// NewChallenge builds a challenge with an optional teardown hook releasing
// any provider-side resource (e.g. a bot-check widget binding).
func NewChallenge(verificationID, phoneNumber string, teardown func()) *Challenge {
	return &Challenge{VerificationID: verificationID, Phone: phoneNumber, teardown: teardown}
}

// Clear releases the challenge resource. Safe to call more than once.
func (c *Challenge) Clear() {
	c.clearOnce.Do(func() {
		if c.teardown != nil {
			c.teardown()
		}
	})
}

// Provider is the identity provider contract consumed by the auth service.
type Provider interface {
	// CreateUser registers an email/password account. Fails with
	// autherr.ErrDuplicateAccount if the email is already in use.
	CreateUser(ctx context.Context, email, password string) (*Session, error)

	// SignIn authenticates an email/password account. Fails with
	// autherr.ErrInvalidCredentials on a wrong password or unknown email.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// SignOut invalidates the provider session for the user. Idempotent.
	SignOut(ctx context.Context, uid string) error

	// StartPhoneVerification issues an OTP challenge for the phone number.
	// captchaToken carries the bot-check widget response where the provider
	// requires one.
	StartPhoneVerification(ctx context.Context, phoneNumber, captchaToken string) (*Challenge, error)

	// ConfirmPhoneCode redeems a challenge. Fails with autherr.ErrInvalidCode
	// on a code mismatch.
	ConfirmPhoneCode(ctx context.Context, verificationID, code, phoneNumber string) (*Session, error)

	// RestoreSession resolves a previously issued session token back to its
	// user, or returns nil if the token no longer identifies a session.
	RestoreSession(ctx context.Context, token string) (*models.User, error)

	// IsEmailRegistered reports whether an account exists for the email.
	IsEmailRegistered(ctx context.Context, email string) (bool, error)

	// IsPhoneRegistered reports whether an account exists for the phone.
	IsPhoneRegistered(ctx context.Context, phoneNumber string) (bool, error)
}
