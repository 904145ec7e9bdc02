// Package autherr defines the error taxonomy surfaced by the auth service.
// Handlers map these onto HTTP statuses; none are retried automatically.
package autherr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPhoneFormat is returned when a phone number fails regional
	// validation before any OTP send is attempted.
	ErrInvalidPhoneFormat = errors.New("invalid phone number format")

	// ErrAlreadyRegistered is returned on sign-up with a phone number that
	// already has an account.
	ErrAlreadyRegistered = errors.New("this phone number is already registered")

	// ErrNotRegistered is returned on sign-in with an unknown phone number.
	ErrNotRegistered = errors.New("this phone number is not registered")

	// ErrInvalidCode is returned when an OTP does not match the challenge.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrDuplicateAccount is returned on sign-up with an email already in use.
	ErrDuplicateAccount = errors.New("this email is already registered")

	// ErrInvalidCredentials is returned on sign-in with a wrong password or
	// an unknown email.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrStoreUnavailable is returned when the document store cannot be
	// reached.
	ErrStoreUnavailable = errors.New("document store unavailable")
)

// ProviderError wraps an unclassified failure reported by the identity
// provider. The provider's message is surfaced to the user verbatim.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "identity provider error"
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Provider wraps err as a ProviderError with a formatted message.
func Provider(err error, format string, args ...interface{}) error {
	return &ProviderError{Message: fmt.Sprintf(format, args...), Err: err}
}

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
