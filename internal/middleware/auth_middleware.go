package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authgate-backend-go/internal/core"
)

// ErrorResponse mirrors the API layer's error shape; defined locally to
// avoid an import cycle with internal/api.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// AuthMiddleware is the route guard: requests to protected routes must carry
// a session token that the identity provider can resolve to a user.
type AuthMiddleware struct {
	auth   core.AuthService
	logger *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(auth core.AuthService, logger *zap.Logger) *AuthMiddleware {
	if auth == nil {
		panic("AuthMiddleware requires a non-nil AuthService")
	}
	return &AuthMiddleware{auth: auth, logger: logger}
}

// RequireAuth verifies the bearer session token and populates user identity
// in the Gin context. It waits for the controller's initial session
// resolution before reading any auth state.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		select {
		case <-m.auth.Ready():
		case <-c.Request.Context().Done():
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Service is starting up"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header is required"})
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		user, err := m.auth.ResolveToken(c.Request.Context(), parts[1])
		if err != nil {
			m.logger.Warn("token resolution failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}

		c.Set("userID", user.ID)
		if user.Email != "" {
			c.Set("userEmail", user.Email)
		}
		if user.PhoneNumber != "" {
			c.Set("userPhone", user.PhoneNumber)
		}
		c.Next()
	}
}
