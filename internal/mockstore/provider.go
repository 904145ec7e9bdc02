package mockstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"authgate-backend-go/internal/autherr"
	"authgate-backend-go/internal/identity"
	"authgate-backend-go/internal/models"
)

// Sentinel values the mock provider substitutes for real OTP delivery.
const (
	MockVerificationID = "test-verification-id"
	MockOTPCode        = "123456"
)

// mockAccount is an email/password account held in local storage.
type mockAccount struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Provider implements identity.Provider on local durable storage. OTP sends
// always succeed with a fixed sentinel verification handle; redeeming
// requires the fixed sentinel code.
type Provider struct {
	kv     KV
	logger *zap.Logger
}

// NewProvider creates the development-mode identity provider.
func NewProvider(kv KV, logger *zap.Logger) *Provider {
	return &Provider{kv: kv, logger: logger}
}

func (p *Provider) CreateUser(ctx context.Context, email, password string) (*identity.Session, error) {
	_, exists, err := p.kv.HGet(ctx, keyMockEmailDB, email)
	if err != nil {
		return nil, autherr.Provider(err, "mock store unavailable")
	}
	if exists {
		return nil, autherr.ErrDuplicateAccount
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, autherr.Provider(err, "failed to create account")
	}

	now := time.Now().UTC()
	account := mockAccount{
		UID:          "dev-" + uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	raw, _ := json.Marshal(account)
	if err := p.kv.HSet(ctx, keyMockEmailDB, email, string(raw)); err != nil {
		return nil, autherr.Provider(err, "mock store unavailable")
	}

	user := &models.User{
		ID:             account.UID,
		Email:          email,
		EmailVerified:  false,
		CreatedAt:      now,
		LastSignInTime: now,
	}
	return p.openSession(ctx, user)
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	raw, exists, err := p.kv.HGet(ctx, keyMockEmailDB, email)
	if err != nil {
		return nil, autherr.Provider(err, "mock store unavailable")
	}
	if !exists {
		return nil, autherr.ErrInvalidCredentials
	}

	var account mockAccount
	if err := json.Unmarshal([]byte(raw), &account); err != nil {
		p.logger.Error("corrupt mock account record", zap.String("email", email), zap.Error(err))
		return nil, autherr.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, autherr.ErrInvalidCredentials
	}

	user := &models.User{
		ID:             account.UID,
		Email:          account.Email,
		CreatedAt:      account.CreatedAt,
		LastSignInTime: time.Now().UTC(),
	}
	return p.openSession(ctx, user)
}

// SignOut revokes the user's active session token and drops the persisted
// mock session, so a logged-out bearer token no longer resolves. Idempotent;
// storage failures are logged rather than propagated to keep the mock path
// non-fatal.
func (p *Provider) SignOut(ctx context.Context, uid string) error {
	token, exists, err := p.kv.HGet(ctx, keyMockUserTokens, uid)
	if err != nil {
		p.logger.Error("failed to look up mock session token", zap.String("uid", uid), zap.Error(err))
	} else if exists {
		if err := p.kv.HDel(ctx, keyMockSessions, token); err != nil {
			p.logger.Error("failed to revoke mock session token", zap.String("uid", uid), zap.Error(err))
		}
		if err := p.kv.HDel(ctx, keyMockUserTokens, uid); err != nil {
			p.logger.Error("failed to clear mock token index", zap.String("uid", uid), zap.Error(err))
		}
	}
	if err := p.kv.Del(ctx, keyMockUser); err != nil {
		p.logger.Error("failed to clear mock session", zap.String("uid", uid), zap.Error(err))
	}
	return nil
}

// StartPhoneVerification simulates OTP delivery. Registration-membership
// preconditions are enforced by the caller before the challenge is issued.
func (p *Provider) StartPhoneVerification(_ context.Context, phoneNumber, _ string) (*identity.Challenge, error) {
	p.logger.Info("simulating OTP send", zap.String("phone", phoneNumber))
	return identity.NewChallenge(MockVerificationID, phoneNumber, nil), nil
}

func (p *Provider) ConfirmPhoneCode(ctx context.Context, verificationID, code, phoneNumber string) (*identity.Session, error) {
	if verificationID != MockVerificationID || code != MockOTPCode {
		return nil, autherr.ErrInvalidCode
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:             mockUID(phoneNumber),
		PhoneNumber:    phoneNumber,
		CreatedAt:      now,
		LastSignInTime: now,
	}
	if err := p.kv.SAdd(ctx, keyRegisteredPhones, phoneNumber); err != nil {
		return nil, autherr.Provider(err, "mock store unavailable")
	}
	return p.openSession(ctx, user)
}

func (p *Provider) RestoreSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	raw, exists, err := p.kv.HGet(ctx, keyMockSessions, token)
	if err != nil {
		p.logger.Error("failed to read mock session", zap.Error(err))
		return nil, nil
	}
	if !exists {
		return nil, nil
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		p.logger.Error("corrupt mock session record", zap.Error(err))
		return nil, nil
	}
	return &user, nil
}

// RestorePersisted loads the last signed-in mock user, mirroring session
// restore on page reload. Returns nil when no session is stored.
func (p *Provider) RestorePersisted(ctx context.Context) (*models.User, error) {
	raw, exists, err := p.kv.Get(ctx, keyMockUser)
	if err != nil {
		p.logger.Error("failed to read persisted mock session", zap.Error(err))
		return nil, nil
	}
	if !exists {
		return nil, nil
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		p.logger.Error("corrupt persisted mock session", zap.Error(err))
		return nil, nil
	}
	return &user, nil
}

func (p *Provider) IsEmailRegistered(ctx context.Context, email string) (bool, error) {
	_, exists, err := p.kv.HGet(ctx, keyMockEmailDB, email)
	if err != nil {
		return false, autherr.Provider(err, "mock store unavailable")
	}
	return exists, nil
}

func (p *Provider) IsPhoneRegistered(ctx context.Context, phoneNumber string) (bool, error) {
	ok, err := p.kv.SIsMember(ctx, keyRegisteredPhones, phoneNumber)
	if err != nil {
		return false, autherr.Provider(err, "mock store unavailable")
	}
	return ok, nil
}

// openSession issues a fresh session token for the user and persists both
// the token mapping and the last-signed-in session used for restore. Each
// user holds at most one active token; a prior token is revoked when the
// user signs in again.
func (p *Provider) openSession(ctx context.Context, user *models.User) (*identity.Session, error) {
	if prev, exists, err := p.kv.HGet(ctx, keyMockUserTokens, user.ID); err != nil {
		p.logger.Error("failed to look up mock session token", zap.String("uid", user.ID), zap.Error(err))
	} else if exists {
		if err := p.kv.HDel(ctx, keyMockSessions, prev); err != nil {
			p.logger.Error("failed to revoke mock session token", zap.String("uid", user.ID), zap.Error(err))
		}
	}

	token := uuid.NewString()
	raw, _ := json.Marshal(user)
	if err := p.kv.HSet(ctx, keyMockSessions, token, string(raw)); err != nil {
		return nil, autherr.Provider(err, "mock store unavailable")
	}
	if err := p.kv.HSet(ctx, keyMockUserTokens, user.ID, token); err != nil {
		p.logger.Error("failed to index mock session token", zap.String("uid", user.ID), zap.Error(err))
	}
	if err := p.kv.Set(ctx, keyMockUser, string(raw)); err != nil {
		p.logger.Error("failed to persist mock session", zap.Error(err))
	}
	return &identity.Session{User: user, Token: token}, nil
}

// mockUID derives a stable development UID from the digits of the phone
// number, so repeated verifications of the same number map to one account.
func mockUID(phoneNumber string) string {
	var b strings.Builder
	b.WriteString("dev-")
	for _, r := range phoneNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
