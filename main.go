// File: handyhub/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"handyhub/config"
	"handyhub/cron"
	"handyhub/database"
	bookingRepoPkg "handyhub/database/repository/booking"
	userRepoPkg "handyhub/database/repository/user"
	"handyhub/handlers"
	"handyhub/middleware"
	"handyhub/routes"
	bookingSvc "handyhub/services/booking"
	"handyhub/services/commission"
	"handyhub/services/identity"
	"handyhub/services/notification"
	"handyhub/services/payment"
	"handyhub/services/realtime"
	userSvc "handyhub/services/user"
	"handyhub/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitRedis()
	utils.FirebaseInit()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())
	stripe.Key = config.AppConfig.StripeKey

	// repositories.
	userRepo := userRepoPkg.NewMongoUserRepo()
	bookingRepo := bookingRepoPkg.NewMongoBookingRepo()

	// services.
	resolver := identity.NewDefaultResolver(userRepo, config.AppConfig.DefaultBrokerName)
	engine := &commission.Engine{
		Counter:     bookingRepo,
		Resolver:    resolver,
		DefaultRate: config.AppConfig.DefaultCommissionRate,
		JobCap:      config.AppConfig.CommissionJobCap,
	}

	pushService, err := notification.NewFCMService(userRepo)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize notification service: %v", err)
	}

	bookingService := &bookingSvc.DefaultBookingService{
		Repo:         bookingRepo,
		Users:        userRepo,
		Resolver:     resolver,
		Engine:       engine,
		Notifier:     realtime.NewRedisNotifier(utils.GetEventsClient(), logger),
		Push:         pushService,
		Payments:     payment.NewStripeProcessor(logger),
		Reminders:    cron.Scheduler{},
		CancelWindow: time.Duration(config.AppConfig.CancelWindowMin) * time.Minute,
	}

	userService := &userSvc.DefaultUserService{
		Repo:   userRepo,
		Family: identity.NoopFamilySync{},
	}

	// Background reminder worker.
	cron.InitReminderWorker(pushService)

	// Assemble the handler bundle and register routes.
	handlerBundle := &routes.HandlerBundle{
		UserRepo:       userRepo,
		BookingHandler: handlers.NewBookingHandler(bookingService, logger),
		UserHandler:    handlers.NewUserHandler(userService),
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

	logger.Sugar().Info("main: server stopped gracefully")
}
