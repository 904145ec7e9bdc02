package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"authgate-backend-go/internal/core"
	"authgate-backend-go/internal/mockstore"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kv := mockstore.NewMemoryKV()
	logger := zap.NewNop()
	provider := mockstore.NewProvider(kv, logger)
	profiles := mockstore.NewProfileRepository(kv, logger)
	authService := core.NewAuthService(provider, profiles, logger)
	require.NoError(t, authService.Start(context.Background()))
	flows := core.NewFlowRegistry(authService, logger)

	router := gin.New()
	SetupRoutes(router, logger, authService, flows)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestEmailSignUpAndProfile(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup",
		gin.H{"email": "a@x.com", "password": "p1secret"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sess SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "a@x.com", sess.User.Email)
	require.NotEmpty(t, sess.Token)

	// Duplicate sign-up conflicts.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/signup",
		gin.H{"email": "a@x.com", "password": "p1secret"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The dashboard profile endpoint honors the session token.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/me", nil, sess.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "email", profile["authProvider"])

	// And rejects requests without one.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPhoneFlowOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/phone/start",
		gin.H{"purpose": "signup"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var flow FlowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flow))
	require.NotEmpty(t, flow.FlowID)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/phone/send",
		gin.H{"flowId": flow.FlowID, "phone": "9876543210"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flow))
	assert.Equal(t, "code_sent", flow.State)

	// Wrong code: 400, flow stays usable.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/phone/verify",
		gin.H{"flowId": flow.FlowID, "code": "000000", "phone": "+919876543210"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/phone/verify",
		gin.H{"flowId": flow.FlowID, "code": "123456", "phone": "+919876543210"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "+919876543210", sess.User.PhoneNumber)

	// The phone now reports as registered.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/auth/phone/exists?phone=%2B919876543210", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var exists PhoneExistsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exists))
	assert.True(t, exists.Exists)
}

func TestPhoneSendRejectsBadNumber(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/phone/start",
		gin.H{"purpose": "signin"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var flow FlowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &flow))

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/phone/send",
		gin.H{"flowId": flow.FlowID, "phone": "12345"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown numbers cannot request a sign-in code.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/phone/send",
		gin.H{"flowId": flow.FlowID, "phone": "+919999999999"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutRevokesSessionToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup",
		gin.H{"email": "a@x.com", "password": "p1secret"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var sess SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.Token)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/me", nil, sess.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// The old bearer token no longer passes the route guard.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/me", nil, sess.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutTwice(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/signup",
		gin.H{"email": "a@x.com", "password": "p1secret"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/logout", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/logout", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
