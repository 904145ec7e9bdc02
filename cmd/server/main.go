package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"authgate-backend-go/internal/api"
	"authgate-backend-go/internal/config"
	"authgate-backend-go/internal/core"
	"authgate-backend-go/internal/db"
	"authgate-backend-go/internal/identity"
	"authgate-backend-go/internal/middleware"
	"authgate-backend-go/internal/mockstore"
)

func main() {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	zapLogger.Info("Application configuration loaded successfully.",
		zap.String("mode", appConfig.AppEnv))

	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()

	// Select the execution mode's provider and profile store once, here.
	// Everything downstream works against the same contracts.
	var (
		provider identity.Provider
		profiles db.ProfileRepository
	)
	if appConfig.IsDevelopment() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		})
		if err := redisClient.Ping(initCtx).Err(); err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis for mock storage", zap.Error(err))
		}
		kv := mockstore.NewRedisKV(redisClient)
		provider = mockstore.NewProvider(kv, zapLogger)
		profiles = mockstore.NewProfileRepository(kv, zapLogger)
		zapLogger.Info("Development mode: mock identity provider and profile store initialized.")
	} else {
		if err := db.InitFirebase(initCtx, appConfig); err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
		}
		firestoreClient := db.GetFirestoreClient()
		firebaseAuthClient := db.GetFirebaseAuthClient()
		if firestoreClient == nil || firebaseAuthClient == nil {
			zapLogger.Fatal("CRITICAL_ERROR: Firebase clients are nil after initialization. Application cannot start.")
		}
		provider = identity.NewFirebaseProvider(firebaseAuthClient, appConfig.FirebaseWebAPIKey, zapLogger)
		profiles = db.NewFirestoreProfileRepository(firestoreClient)
		zapLogger.Info("Production mode: Firebase identity provider and Firestore profile store initialized.")
	}

	authService := core.NewAuthService(provider, profiles, zapLogger)
	if err := authService.Start(initCtx); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to resolve initial auth session", zap.Error(err))
	}

	flows := core.NewFlowRegistry(authService, zapLogger)
	sweeperCtx, cancelSweeper := context.WithCancel(context.Background())
	defer cancelSweeper()
	go flows.RunSweeper(sweeperCtx, 5*time.Minute)

	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()

	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	if appConfig.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(appConfig))
		zapLogger.Info("CORS Middleware enabled", zap.String("clientURL", appConfig.ClientURL))
	} else {
		zapLogger.Warn("CORS Middleware SKIPPED: CLIENT_URL is not configured.")
	}

	api.SetupRoutes(router, zapLogger, authService, flows)

	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	cancelSweeper()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("Server forced to shutdown due to error during graceful shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exiting gracefully.")
}
