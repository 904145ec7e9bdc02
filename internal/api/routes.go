package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authgate-backend-go/internal/core"
	"authgate-backend-go/internal/middleware"
)

// SetupRoutes configures all application routes. Global middleware (logging,
// recovery, CORS) is applied to the router before this is called.
func SetupRoutes(
	router *gin.Engine,
	logger *zap.Logger,
	authService core.AuthService,
	flows *core.FlowRegistry,
) {
	authMW := middleware.NewAuthMiddleware(authService, logger)

	authHandler := NewAuthHandler(authService, logger)
	phoneHandler := NewPhoneHandler(authService, flows, logger)
	userHandler := NewUserHandler(authService, logger)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.SignUp)
			authGroup.POST("/signin", authHandler.SignIn)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.GET("/email/exists", authHandler.EmailExists)

			phoneGroup := authGroup.Group("/phone")
			{
				phoneGroup.POST("/start", phoneHandler.StartFlow)
				phoneGroup.POST("/send", phoneHandler.SendCode)
				phoneGroup.POST("/verify", phoneHandler.VerifyCode)
				phoneGroup.POST("/change-number", phoneHandler.ChangeNumber)
				phoneGroup.POST("/switch-method", phoneHandler.SwitchMethod)
				phoneGroup.POST("/abandon", phoneHandler.Abandon)
				phoneGroup.GET("/exists", phoneHandler.Exists)
			}
		}

		// The dashboard's profile view sits behind the route guard.
		usersGroup := apiV1.Group("/users", authMW.RequireAuth())
		{
			usersGroup.GET("/me", userHandler.GetCurrentUserProfile)
		}
	}

	logger.Info("API routes configured.")
}
