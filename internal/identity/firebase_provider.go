package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"authgate-backend-go/internal/autherr"
	"authgate-backend-go/internal/models"
)

const identityToolkitBase = "https://identitytoolkit.googleapis.com/v1"

// firebaseProvider implements Provider against Firebase Authentication.
// Account lookups, token verification and session revocation go through the
// Admin SDK; credential exchanges (password sign-in, OTP send/redeem) go
// through the Identity Toolkit REST surface, which is the only place Firebase
// exposes them server-side.
type firebaseProvider struct {
	authClient *fbauth.Client
	httpClient *http.Client
	apiKey     string
	logger     *zap.Logger
}

// NewFirebaseProvider creates the production identity provider.
func NewFirebaseProvider(authClient *fbauth.Client, apiKey string, logger *zap.Logger) Provider {
	return &firebaseProvider{
		authClient: authClient,
		httpClient: &http.Client{},
		apiKey:     apiKey,
		logger:     logger,
	}
}

func (p *firebaseProvider) CreateUser(ctx context.Context, email, password string) (*Session, error) {
	var resp struct {
		LocalID string `json:"localId"`
		IDToken string `json:"idToken"`
	}
	err := p.post(ctx, "accounts:signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		if apiErrorIs(err, "EMAIL_EXISTS") {
			return nil, autherr.ErrDuplicateAccount
		}
		return nil, autherr.Provider(err, "failed to create account")
	}

	user, err := p.userByID(ctx, resp.LocalID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: resp.IDToken}, nil
}

func (p *firebaseProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var resp struct {
		LocalID string `json:"localId"`
		IDToken string `json:"idToken"`
	}
	err := p.post(ctx, "accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		if apiErrorIs(err, "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS") {
			return nil, autherr.ErrInvalidCredentials
		}
		return nil, autherr.Provider(err, "failed to sign in")
	}

	user, err := p.userByID(ctx, resp.LocalID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: resp.IDToken}, nil
}

func (p *firebaseProvider) SignOut(ctx context.Context, uid string) error {
	if uid == "" {
		return nil
	}
	if err := p.authClient.RevokeRefreshTokens(ctx, uid); err != nil {
		if fbauth.IsUserNotFound(err) {
			return nil
		}
		return autherr.Provider(err, "failed to sign out")
	}
	return nil
}

func (p *firebaseProvider) StartPhoneVerification(ctx context.Context, phoneNumber, captchaToken string) (*Challenge, error) {
	var resp struct {
		SessionInfo string `json:"sessionInfo"`
	}
	err := p.post(ctx, "accounts:sendVerificationCode", map[string]interface{}{
		"phoneNumber":    phoneNumber,
		"recaptchaToken": captchaToken,
	}, &resp)
	if err != nil {
		return nil, autherr.Provider(err, "failed to send verification code")
	}
	p.logger.Info("verification code sent", zap.String("phone", phoneNumber))
	// sessionInfo is single-use and expires server-side; nothing to release
	// beyond dropping the handle.
	return NewChallenge(resp.SessionInfo, phoneNumber, nil), nil
}

func (p *firebaseProvider) ConfirmPhoneCode(ctx context.Context, verificationID, code, phoneNumber string) (*Session, error) {
	var resp struct {
		LocalID     string `json:"localId"`
		IDToken     string `json:"idToken"`
		PhoneNumber string `json:"phoneNumber"`
	}
	err := p.post(ctx, "accounts:signInWithPhoneNumber", map[string]interface{}{
		"sessionInfo": verificationID,
		"code":        code,
	}, &resp)
	if err != nil {
		if apiErrorIs(err, "INVALID_CODE", "INVALID_SESSION_INFO", "SESSION_EXPIRED") {
			return nil, autherr.ErrInvalidCode
		}
		return nil, autherr.Provider(err, "failed to verify code")
	}
	if resp.PhoneNumber != "" && phoneNumber != "" && resp.PhoneNumber != phoneNumber {
		// The challenge was issued for a different number than the form holds.
		return nil, autherr.ErrInvalidCode
	}

	user, err := p.userByID(ctx, resp.LocalID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: resp.IDToken}, nil
}

func (p *firebaseProvider) RestoreSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	decoded, err := p.authClient.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, nil
	}
	return p.userByID(ctx, decoded.UID)
}

func (p *firebaseProvider) IsEmailRegistered(ctx context.Context, email string) (bool, error) {
	_, err := p.authClient.GetUserByEmail(ctx, email)
	if err != nil {
		if fbauth.IsUserNotFound(err) {
			return false, nil
		}
		return false, autherr.Provider(err, "failed to look up email")
	}
	return true, nil
}

func (p *firebaseProvider) IsPhoneRegistered(ctx context.Context, phoneNumber string) (bool, error) {
	_, err := p.authClient.GetUserByPhoneNumber(ctx, phoneNumber)
	if err != nil {
		if fbauth.IsUserNotFound(err) {
			return false, nil
		}
		return false, autherr.Provider(err, "failed to look up phone number")
	}
	return true, nil
}

func (p *firebaseProvider) userByID(ctx context.Context, uid string) (*models.User, error) {
	rec, err := p.authClient.GetUser(ctx, uid)
	if err != nil {
		return nil, autherr.Provider(err, "failed to load user record")
	}
	return userFromRecord(rec), nil
}

func userFromRecord(rec *fbauth.UserRecord) *models.User {
	u := &models.User{
		ID:            rec.UID,
		Email:         rec.Email,
		PhoneNumber:   rec.PhoneNumber,
		EmailVerified: rec.EmailVerified,
	}
	if rec.UserMetadata != nil {
		u.CreatedAt = time.UnixMilli(rec.UserMetadata.CreationTimestamp).UTC()
		if rec.UserMetadata.LastLogInTimestamp > 0 {
			u.LastSignInTime = time.UnixMilli(rec.UserMetadata.LastLogInTimestamp).UTC()
		}
	}
	return u
}

// apiError is an error response from the Identity Toolkit REST API.
type apiError struct {
	StatusCode int
	Code       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("identity toolkit: %s (http %d)", e.Code, e.StatusCode)
}

func apiErrorIs(err error, codes ...string) bool {
	ae, ok := err.(*apiError)
	if !ok {
		return false
	}
	for _, code := range codes {
		// Codes may carry a trailing detail, e.g. "INVALID_PASSWORD : ...".
		if ae.Code == code || strings.HasPrefix(ae.Code, code+" ") || strings.HasPrefix(ae.Code, code+":") {
			return true
		}
	}
	return false
}

func (p *firebaseProvider) post(ctx context.Context, action string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s?key=%s", identityToolkitBase, action, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var errBody struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &errBody); err != nil || errBody.Error.Message == "" {
			return &apiError{StatusCode: resp.StatusCode, Code: "UNKNOWN"}
		}
		return &apiError{StatusCode: resp.StatusCode, Code: errBody.Error.Message}
	}
	return json.Unmarshal(data, out)
}
