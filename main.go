// File: tutorlink/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"tutorlink/config"
	"tutorlink/cron"
	"tutorlink/database"
	ledgerRepo "tutorlink/database/repository/ledger"
	scheduleRepo "tutorlink/database/repository/schedule"
	"tutorlink/handlers"
	"tutorlink/middleware"
	"tutorlink/routes"
	"tutorlink/services/booking"
	"tutorlink/services/notification"
	"tutorlink/utils"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	// Stores: memory for single-node deployments, mongo otherwise. Both
	// sit behind the same interfaces; the engine's locking is identical.
	var (
		schedule scheduleRepo.ScheduleStore
		ledger   ledgerRepo.BookingLedger
	)
	if config.AppConfig.StoreBackend == "mongo" {
		database.InitDB()
		schedule = scheduleRepo.NewMongoScheduleStore(config.AppConfig.MongoDatabase)
		ledger = ledgerRepo.NewMongoBookingLedger(config.AppConfig.MongoDatabase)
	} else {
		schedule = scheduleRepo.NewMemoryScheduleStore()
		ledger = ledgerRepo.NewMemoryBookingLedger()
	}

	utils.InitIdempotencyCache()
	seen := booking.NewRedisIdempotencyStore(
		utils.GetIdempotencyCacheClient(),
		time.Duration(config.AppConfig.IdempotencyTTLMinutes)*time.Minute,
	)

	engine := booking.NewCoordinationEngine(schedule, ledger, seen)

	// Event consumers: notification boundary plus the completion sweep.
	notifSvc := notification.NewDefaultNotificationService(nil)
	engine.Subscribe(notifSvc)

	completionClient := cron.NewCompletionClient()
	engine.Subscribe(&cron.CompletionScheduler{Client: completionClient, Engine: engine})
	cron.InitCompletionWorker(engine)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	handlerBundle := &routes.HandlerBundle{
		Booking:  handlers.NewBookingHandler(engine, logger),
		Schedule: handlers.NewScheduleHandler(engine, logger),
		Message:  handlers.NewMessageHandler(engine, logger),
	}
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}
	database.CloseDB(ctx)

	logger.Sugar().Info("main: server stopped gracefully")
}
