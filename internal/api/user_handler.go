package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authgate-backend-go/internal/core"
	"authgate-backend-go/internal/db"
)

// UserHandler handles user-profile endpoints backing the dashboard view.
type UserHandler struct {
	auth   core.AuthService
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(auth core.AuthService, logger *zap.Logger) *UserHandler {
	return &UserHandler{auth: auth, logger: logger}
}

// GetCurrentUserProfile handles GET /api/v1/users/me. It returns the profile
// document of the authenticated user; the route guard has already resolved
// the session token into a userID.
func (h *UserHandler) GetCurrentUserProfile(c *gin.Context) {
	rawUserID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: User ID not found in context"})
		return
	}
	userID, ok := rawUserID.(string)
	if !ok || userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid user ID format in context"})
		return
	}

	profile, err := h.auth.ProfileByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "User profile not found"})
			return
		}
		h.logger.Error("failed to load user profile", zap.String("uid", userID), zap.Error(err))
		c.JSON(statusForError(err), ErrorResponse{Error: "Failed to retrieve user profile", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}
