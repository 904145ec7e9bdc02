package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authgate-backend-go/internal/core"
	"authgate-backend-go/internal/models"
)

// AuthHandler handles email/password authentication endpoints.
type AuthHandler struct {
	auth   core.AuthService
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth core.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// SignUp handles POST /api/v1/auth/signup.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Please enter both email and password", Details: err.Error()})
		return
	}

	sess, err := h.auth.SignUpWithEmail(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("sign up failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, SessionResponse{User: sess.User, Token: sess.Token})
}

// SignIn handles POST /api/v1/auth/signin.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req models.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Please enter both email and password", Details: err.Error()})
		return
	}

	sess, err := h.auth.SignInWithEmail(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("sign in failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SessionResponse{User: sess.User, Token: sess.Token})
}

// EmailExists handles GET /api/v1/auth/email/exists?email=...
func (h *AuthHandler) EmailExists(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Please enter an email address"})
		return
	}
	exists, err := h.auth.CheckExistingEmail(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("email lookup failed", zap.String("email", email), zap.Error(err))
		c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": email, "exists": exists})
}

// Logout handles POST /api/v1/auth/logout. Calling it while already signed
// out is not an error.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		c.JSON(statusForError(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
