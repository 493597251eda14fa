package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/preceptly/backend/internal/application/services"
	"github.com/preceptly/backend/internal/bootstrap"
	"github.com/preceptly/backend/internal/infrastructure/database"
	"github.com/preceptly/backend/internal/interfaces/middleware"
	"github.com/preceptly/backend/internal/interfaces/rest"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	port := os.Getenv("PORT")
	if port == "" {
		port = constants.DefaultPort
	}

	db, err := database.GetInstance()
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	log.Info("database connection established")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := bootstrap.InitializeSchema(ctx, db, log); err != nil {
		cancel()
		log.Fatal("failed to initialize schema", "error", err)
	}
	cancel()

	svcMgr := services.NewServiceManager(db, log)
	if err := svcMgr.StartReaper(); err != nil {
		log.Fatal("failed to start session reaper", "error", err)
	}

	if os.Getenv("APP_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	onboardingHandler := rest.NewOnboardingHandler(svcMgr.Onboarding, svcMgr.Finalizer)
	analyticsHandler := rest.NewAnalyticsHandler(svcMgr.Analytics)

	requireAuth := middleware.RequireAuth()

	api := router.Group("/api")
	{
		onboarding := api.Group("/onboarding")
		onboarding.Use(requireAuth)
		{
			onboarding.POST("/session", onboardingHandler.StartSession)
			onboarding.POST("/session/:sessionId/step", onboardingHandler.SubmitStep)
			onboarding.POST("/session/:sessionId/complete", onboardingHandler.Complete)
			onboarding.POST("/session/:sessionId/pause", onboardingHandler.Pause)
			onboarding.DELETE("/session/:sessionId", onboardingHandler.Abandon)
			onboarding.GET("/session/:sessionId/progress", onboardingHandler.Progress)
		}

		analytics := api.Group("/analytics")
		analytics.Use(requireAuth)
		{
			analytics.POST("/track", analyticsHandler.Track)
		}
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Info("server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	// Wait for interrupt, then drain in-flight requests before exit
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	svcMgr.StopReaper()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("forced shutdown", "error", err)
	}
	log.Info("server stopped")
}
