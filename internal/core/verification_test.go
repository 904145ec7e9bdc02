package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"authgate-backend-go/internal/autherr"
	"authgate-backend-go/internal/identity"
	"authgate-backend-go/internal/mockstore"
	"authgate-backend-go/internal/models"
)

func newTestFlows(t *testing.T) (*FlowRegistry, AuthService, *mockstore.Provider) {
	t.Helper()
	auth, provider := newTestAuth(t)
	return NewFlowRegistry(auth, zap.NewNop()), auth, provider
}

func registerPhone(t *testing.T, provider *mockstore.Provider, phoneNumber string) {
	t.Helper()
	_, err := provider.ConfirmPhoneCode(context.Background(), mockstore.MockVerificationID, mockstore.MockOTPCode, phoneNumber)
	require.NoError(t, err)
}

func TestSignUpFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	flows, auth, provider := newTestFlows(t)
	phoneNumber := "+919876543210"

	f := flows.StartFlow(PurposeSignUp)
	assert.Equal(t, StateIdle, f.State())

	_, err := flows.SendCode(ctx, f.ID, "9876543210", "")
	require.NoError(t, err)
	assert.Equal(t, StateCodeSent, f.State())
	assert.Equal(t, mockstore.MockVerificationID, f.VerificationID())

	// A wrong code surfaces InvalidCode, keeps the flow in CodeSent and
	// leaves the registered set unchanged.
	_, err = flows.Verify(ctx, f.ID, "000000", phoneNumber)
	assert.ErrorIs(t, err, autherr.ErrInvalidCode)
	assert.Equal(t, StateCodeSent, f.State())
	registered, err := provider.IsPhoneRegistered(ctx, phoneNumber)
	require.NoError(t, err)
	assert.False(t, registered)

	// The correct code completes the flow without a new challenge.
	sess, err := flows.Verify(ctx, f.ID, mockstore.MockOTPCode, phoneNumber)
	require.NoError(t, err)
	assert.Equal(t, phoneNumber, sess.User.PhoneNumber)

	registered, err = provider.IsPhoneRegistered(ctx, phoneNumber)
	require.NoError(t, err)
	assert.True(t, registered)

	require.NotNil(t, auth.CurrentUser())
	assert.Equal(t, phoneNumber, auth.CurrentUser().PhoneNumber)

	// Profile upserted with authProvider "phone".
	profile, err := auth.ProfileByID(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AuthProviderPhone, profile.AuthProvider)

	// Completed flows leave the registry.
	_, err = flows.Verify(ctx, f.ID, mockstore.MockOTPCode, phoneNumber)
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestSendCodePreconditions(t *testing.T) {
	ctx := context.Background()
	flows, _, provider := newTestFlows(t)
	registerPhone(t, provider, "+919876543210")

	// Invalid format is rejected before any challenge is issued.
	f := flows.StartFlow(PurposeSignUp)
	_, err := flows.SendCode(ctx, f.ID, "12345", "")
	assert.ErrorIs(t, err, autherr.ErrInvalidPhoneFormat)
	assert.Equal(t, StateIdle, f.State())

	// Sign-up with an already registered number.
	_, err = flows.SendCode(ctx, f.ID, "+919876543210", "")
	assert.ErrorIs(t, err, autherr.ErrAlreadyRegistered)
	assert.Equal(t, StateIdle, f.State())
	assert.Empty(t, f.VerificationID())

	// Sign-in with an unknown number.
	g := flows.StartFlow(PurposeSignIn)
	_, err = flows.SendCode(ctx, g.ID, "+919999999999", "")
	assert.ErrorIs(t, err, autherr.ErrNotRegistered)
	assert.Equal(t, StateIdle, g.State())
}

func TestVerifyRequiresMatchingPhone(t *testing.T) {
	ctx := context.Background()
	flows, _, _ := newTestFlows(t)

	f := flows.StartFlow(PurposeSignUp)
	_, err := flows.SendCode(ctx, f.ID, "+919876543210", "")
	require.NoError(t, err)

	// The challenge is authoritative only for the number it was issued for.
	_, err = flows.Verify(ctx, f.ID, mockstore.MockOTPCode, "+919999999999")
	assert.ErrorIs(t, err, autherr.ErrInvalidCode)
	assert.Equal(t, StateCodeSent, f.State())
}

func TestVerifyBeforeSend(t *testing.T) {
	ctx := context.Background()
	flows, _, _ := newTestFlows(t)

	f := flows.StartFlow(PurposeSignUp)
	_, err := flows.Verify(ctx, f.ID, mockstore.MockOTPCode, "+919876543210")
	assert.ErrorIs(t, err, ErrNoCodeSent)
}

func TestSendWhileCodeSent(t *testing.T) {
	ctx := context.Background()
	flows, _, _ := newTestFlows(t)

	f := flows.StartFlow(PurposeSignUp)
	_, err := flows.SendCode(ctx, f.ID, "+919876543210", "")
	require.NoError(t, err)

	_, err = flows.SendCode(ctx, f.ID, "+919876543210", "")
	assert.ErrorIs(t, err, ErrCodeAlreadySent)
}

func TestChangeNumberResetsFlow(t *testing.T) {
	ctx := context.Background()
	flows, _, _ := newTestFlows(t)

	f := flows.StartFlow(PurposeSignUp)
	_, err := flows.SendCode(ctx, f.ID, "+919876543210", "")
	require.NoError(t, err)

	require.NoError(t, flows.ChangeNumber(f.ID))
	assert.Equal(t, StateIdle, f.State())
	assert.Empty(t, f.VerificationID())

	// The phone input is re-enabled: a new send succeeds.
	_, err = flows.SendCode(ctx, f.ID, "+919888888888", "")
	require.NoError(t, err)
	assert.Equal(t, StateCodeSent, f.State())
}

func TestSwitchMethodDiscardsPendingChallenge(t *testing.T) {
	ctx := context.Background()
	flows, _, _ := newTestFlows(t)

	f := flows.StartFlow(PurposeSignUp)
	_, err := flows.SendCode(ctx, f.ID, "+919876543210", "")
	require.NoError(t, err)
	require.Equal(t, StateCodeSent, f.State())

	require.NoError(t, flows.SwitchMethod(f.ID))
	assert.Equal(t, StateIdle, f.State())
	assert.Empty(t, f.VerificationID())
}

func TestResetRejectedWhileFlowBusy(t *testing.T) {
	ctx := context.Background()
	flows, _, _ := newTestFlows(t)

	f := flows.StartFlow(PurposeSignUp)
	_, err := flows.SendCode(ctx, f.ID, "+919876543210", "")
	require.NoError(t, err)

	// A reset racing an in-flight verify must not clobber its state.
	require.NoError(t, f.acquire())
	assert.ErrorIs(t, flows.ChangeNumber(f.ID), ErrFlowBusy)
	assert.ErrorIs(t, flows.SwitchMethod(f.ID), ErrFlowBusy)
	assert.Equal(t, StateCodeSent, f.State())
	assert.NotEmpty(t, f.VerificationID())

	// Abandoning a busy flow leaves it registered for the sweeper.
	flows.Abandon(f.ID)
	_, err = flows.get(f.ID)
	require.NoError(t, err)

	f.release()
	require.NoError(t, flows.ChangeNumber(f.ID))
	assert.Equal(t, StateIdle, f.State())
}

func TestSweepReleasesAbandonedFlows(t *testing.T) {
	ctx := context.Background()
	flows, _, _ := newTestFlows(t)

	f := flows.StartFlow(PurposeSignUp)
	_, err := flows.SendCode(ctx, f.ID, "+919876543210", "")
	require.NoError(t, err)

	f.mu.Lock()
	f.touchedAt = time.Now().Add(-time.Hour)
	f.mu.Unlock()
	flows.Sweep()

	_, err = flows.Verify(ctx, f.ID, mockstore.MockOTPCode, "+919876543210")
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

// stubProvider counts challenge teardowns to assert the flow releases the
// challenge resource on every exit path.
type stubProvider struct {
	mu        sync.Mutex
	teardowns int
}

func (s *stubProvider) CreateUser(context.Context, string, string) (*identity.Session, error) {
	return nil, autherr.ErrDuplicateAccount
}

func (s *stubProvider) SignIn(context.Context, string, string) (*identity.Session, error) {
	return nil, autherr.ErrInvalidCredentials
}

func (s *stubProvider) SignOut(context.Context, string) error { return nil }

func (s *stubProvider) StartPhoneVerification(_ context.Context, phoneNumber, _ string) (*identity.Challenge, error) {
	return identity.NewChallenge("stub-id", phoneNumber, func() {
		s.mu.Lock()
		s.teardowns++
		s.mu.Unlock()
	}), nil
}

func (s *stubProvider) ConfirmPhoneCode(_ context.Context, _, code, phoneNumber string) (*identity.Session, error) {
	if code != mockstore.MockOTPCode {
		return nil, autherr.ErrInvalidCode
	}
	return &identity.Session{User: &models.User{ID: "stub", PhoneNumber: phoneNumber}, Token: "t"}, nil
}

func (s *stubProvider) RestoreSession(context.Context, string) (*models.User, error) {
	return nil, nil
}

func (s *stubProvider) IsEmailRegistered(context.Context, string) (bool, error) { return false, nil }
func (s *stubProvider) IsPhoneRegistered(context.Context, string) (bool, error) { return false, nil }

func (s *stubProvider) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teardowns
}

func TestChallengeTeardownOnExitPaths(t *testing.T) {
	ctx := context.Background()
	provider := &stubProvider{}
	profiles := mockstore.NewProfileRepository(mockstore.NewMemoryKV(), zap.NewNop())
	auth := NewAuthService(provider, profiles, zap.NewNop())
	flows := NewFlowRegistry(auth, zap.NewNop())

	// Tab switch tears the challenge down.
	f := flows.StartFlow(PurposeSignUp)
	_, err := flows.SendCode(ctx, f.ID, "+919876543210", "")
	require.NoError(t, err)
	require.NoError(t, flows.SwitchMethod(f.ID))
	assert.Equal(t, 1, provider.count())

	// A failed verify keeps the challenge alive for re-entry; success
	// releases it.
	g := flows.StartFlow(PurposeSignUp)
	_, err = flows.SendCode(ctx, g.ID, "+919876543210", "")
	require.NoError(t, err)
	_, err = flows.Verify(ctx, g.ID, "000000", "+919876543210")
	assert.ErrorIs(t, err, autherr.ErrInvalidCode)
	assert.Equal(t, 1, provider.count())
	_, err = flows.Verify(ctx, g.ID, mockstore.MockOTPCode, "+919876543210")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.count())

	// Abandonment releases it too.
	h := flows.StartFlow(PurposeSignUp)
	_, err = flows.SendCode(ctx, h.ID, "+919876543210", "")
	require.NoError(t, err)
	flows.Abandon(h.ID)
	assert.Equal(t, 3, provider.count())
}
