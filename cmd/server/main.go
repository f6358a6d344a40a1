package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/cache"
	"github.com/smartbus-tz/booking-backend/internal/clock"
	"github.com/smartbus-tz/booking-backend/internal/config"
	"github.com/smartbus-tz/booking-backend/internal/database"
	"github.com/smartbus-tz/booking-backend/internal/handlers"
	"github.com/smartbus-tz/booking-backend/internal/middleware"
	"github.com/smartbus-tz/booking-backend/internal/services"
	"github.com/smartbus-tz/booking-backend/internal/workers"
	"github.com/smartbus-tz/booking-backend/migrations"
	"github.com/smartbus-tz/booking-backend/pkg/jwt"
	"github.com/smartbus-tz/booking-backend/pkg/mailer"
)

var version = "1.0.0"

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Infof("Starting SmartBus Booking Backend, version %s", version)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if err := migrations.Apply(context.Background(), db); err != nil {
		logger.Fatalf("Failed to apply migrations: %v", err)
	}

	// Repositories
	userRepo := database.NewUserRepository(db)
	otpRepo := database.NewOTPRepository(db)
	routeRepo := database.NewRouteRepository(db)
	tripRepo := database.NewTripRepository(db)
	tripSeatRepo := database.NewTripSeatRepository(db)
	bookingRepo := database.NewBookingRepository(db)
	paymentRepo := database.NewPaymentRepository(db)

	// Shared infrastructure
	clk := clock.NewSystem()
	cacheClient := cache.New(cfg.Redis, logger)
	defer cacheClient.Close()

	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		DevMode:  cfg.SMTP.Mode != "production",
	}, logger)

	notifier, err := services.NewNotificationService(cfg.AMQP, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to message broker: %v", err)
	}
	defer notifier.Close()

	// Services
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	otpService := services.NewOTPService(otpRepo, cfg.OTP, clk)
	rateLimitService := services.NewRateLimitService(otpRepo, cfg.OTP, clk)
	authService := services.NewAuthService(userRepo, otpService, rateLimitService, mail, jwtService, logger)
	tripService := services.NewTripService(routeRepo, tripRepo, tripSeatRepo, cacheClient, clk, logger)
	bookingService := services.NewBookingService(
		bookingRepo, tripSeatRepo, tripRepo, paymentRepo, cacheClient,
		clk, cfg.Booking.SeatHoldDuration, logger,
	)
	paymentService := services.NewPaymentService(
		paymentRepo, bookingRepo, tripSeatRepo, notifier, cacheClient, clk, logger,
	)

	// Background workers
	expirationService := services.NewHoldExpirationService(
		bookingRepo, tripSeatRepo, cacheClient,
		cfg.Booking.SweepInterval, cfg.Booking.SweepBatchSize, logger,
	)
	expirationService.Start()

	consumer := workers.NewNotificationConsumer(notifier, userRepo, mail, logger)
	if err := consumer.Start(); err != nil {
		logger.WithError(err).Warn("Notification consumer not running, ticket emails disabled")
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, logger)
	tripHandler := handlers.NewTripHandler(tripService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, paymentService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db))

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/verify", authHandler.Verify)
			auth.POST("/login", authHandler.Login)
			auth.POST("/resend-otp", authHandler.ResendOTP)
			auth.POST("/refresh", authHandler.Refresh)
			auth.GET("/me", middleware.AuthMiddleware(jwtService), authHandler.Me)
		}

		v1.GET("/locations", tripHandler.Locations)
		v1.GET("/payment-methods", tripHandler.PaymentMethods)
		v1.GET("/trips/search", tripHandler.Search)
		v1.GET("/trips/:tripId", tripHandler.Get)
		v1.GET("/trips/:tripId/seats", tripHandler.SeatMap)

		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.POST("", bookingHandler.Create)
			bookings.GET("", bookingHandler.List)
			bookings.GET("/:bookingId", bookingHandler.Get)
			bookings.POST("/:bookingId/confirm", bookingHandler.Confirm)
			bookings.DELETE("/:bookingId", bookingHandler.Cancel)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	expirationService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// healthCheckHandler reports process and database health
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
