package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"authgate-backend-go/internal/autherr"
	"authgate-backend-go/internal/db"
	"authgate-backend-go/internal/identity"
	"authgate-backend-go/internal/models"
	"authgate-backend-go/internal/phone"
)

// SessionRestorer is implemented by providers that persist the last
// signed-in session across restarts (the mock provider does; the production
// provider has no server-side session to restore).
type SessionRestorer interface {
	RestorePersisted(ctx context.Context) (*models.User, error)
}

// authService implements AuthService.
type authService struct {
	provider identity.Provider
	profiles db.ProfileRepository
	logger   *zap.Logger

	mu          sync.RWMutex
	currentUser *models.User

	ready     chan struct{}
	readyOnce sync.Once
}

// NewAuthService creates the auth session controller over the injected
// provider and profile repository.
func NewAuthService(provider identity.Provider, profiles db.ProfileRepository, logger *zap.Logger) AuthService {
	return &authService{
		provider: provider,
		profiles: profiles,
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

func (s *authService) Start(ctx context.Context) error {
	defer s.readyOnce.Do(func() { close(s.ready) })

	restorer, ok := s.provider.(SessionRestorer)
	if !ok {
		s.logger.Info("no persisted session source; starting signed out")
		return nil
	}
	user, err := restorer.RestorePersisted(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore persisted session: %w", err)
	}
	if user != nil {
		s.setCurrentUser(user)
		s.logger.Info("restored persisted session",
			zap.String("uid", user.ID),
			zap.String("email", user.Email),
			zap.String("phone", user.PhoneNumber))
	}
	return nil
}

func (s *authService) Ready() <-chan struct{} { return s.ready }

func (s *authService) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUser
}

func (s *authService) setCurrentUser(u *models.User) {
	s.mu.Lock()
	s.currentUser = u
	s.mu.Unlock()
}

func (s *authService) SignUpWithEmail(ctx context.Context, email, password string) (*identity.Session, error) {
	sess, err := s.provider.CreateUser(ctx, email, password)
	if err != nil {
		// Provider failures never mutate the current-user slot.
		return nil, err
	}
	s.logger.Info("sign up successful", zap.String("email", email))

	s.upsertProfile(ctx, sess.User.ID, &models.UserProfile{
		AuthProvider: models.AuthProviderEmail,
		Email:        sess.User.Email,
	})
	s.setCurrentUser(sess.User)
	return sess, nil
}

func (s *authService) SignInWithEmail(ctx context.Context, email, password string) (*identity.Session, error) {
	sess, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sign in successful", zap.String("email", email))
	s.setCurrentUser(sess.User)
	return sess, nil
}

func (s *authService) Logout(ctx context.Context) error {
	s.mu.RLock()
	uid := ""
	if s.currentUser != nil {
		uid = s.currentUser.ID
	}
	s.mu.RUnlock()

	if err := s.provider.SignOut(ctx, uid); err != nil {
		return err
	}
	s.setCurrentUser(nil)
	return nil
}

func (s *authService) SendPhoneVerification(ctx context.Context, phoneNumber string, purpose Purpose, captchaToken string) (*identity.Challenge, error) {
	if !phone.IsValid(phoneNumber) {
		return nil, autherr.ErrInvalidPhoneFormat
	}

	exists, err := s.CheckExistingPhone(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	// Membership gates run before any challenge is issued.
	if purpose == PurposeSignUp && exists {
		return nil, autherr.ErrAlreadyRegistered
	}
	if purpose == PurposeSignIn && !exists {
		return nil, autherr.ErrNotRegistered
	}

	return s.provider.StartPhoneVerification(ctx, phoneNumber, captchaToken)
}

func (s *authService) VerifyPhoneCode(ctx context.Context, verificationID, code, phoneNumber string) (*identity.Session, error) {
	if code == "" {
		return nil, autherr.ErrInvalidCode
	}
	sess, err := s.provider.ConfirmPhoneCode(ctx, verificationID, code, phoneNumber)
	if err != nil {
		return nil, err
	}
	s.logger.Info("phone verification successful", zap.String("phone", sess.User.PhoneNumber))

	s.upsertProfile(ctx, sess.User.ID, &models.UserProfile{
		AuthProvider: models.AuthProviderPhone,
		PhoneNumber:  sess.User.PhoneNumber,
	})
	s.setCurrentUser(sess.User)
	return sess, nil
}

func (s *authService) CheckExistingPhone(ctx context.Context, phoneNumber string) (bool, error) {
	return s.provider.IsPhoneRegistered(ctx, phoneNumber)
}

func (s *authService) CheckExistingEmail(ctx context.Context, email string) (bool, error) {
	return s.provider.IsEmailRegistered(ctx, email)
}

func (s *authService) ResolveToken(ctx context.Context, token string) (*models.User, error) {
	return s.provider.RestoreSession(ctx, token)
}

func (s *authService) ProfileByID(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", autherr.ErrStoreUnavailable, err)
	}
	return profile, nil
}

// upsertProfile records the profile document after a successful auth event.
// A store failure here does not fail the authentication itself.
func (s *authService) upsertProfile(ctx context.Context, userID string, profile *models.UserProfile) {
	if err := s.profiles.Upsert(ctx, userID, profile); err != nil {
		s.logger.Error("failed to upsert user profile", zap.String("uid", userID), zap.Error(err))
	}
}
