package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reignacare/service-booking/internal/application"
	"github.com/reignacare/service-booking/internal/config"
	bookingDomain "github.com/reignacare/service-booking/internal/domain/booking"
	"github.com/reignacare/service-booking/internal/domain/party"
	bookingEvents "github.com/reignacare/service-booking/internal/events"
	"github.com/reignacare/service-booking/internal/handler"
	"github.com/reignacare/service-booking/internal/notify"
	"github.com/reignacare/service-booking/internal/payment"
	"github.com/reignacare/service-booking/internal/platform/auth"
	"github.com/reignacare/service-booking/internal/platform/database"
	"github.com/reignacare/service-booking/internal/platform/health"
	"github.com/reignacare/service-booking/internal/platform/kafka"
	"github.com/reignacare/service-booking/internal/platform/logger"
	"github.com/reignacare/service-booking/internal/platform/middleware"
	"github.com/reignacare/service-booking/internal/realtime"
	"github.com/reignacare/service-booking/internal/repository"
)

const serviceName = "service-booking"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewWithOptions(cfg.AppEnv, logger.Options{File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	log = log.Named(serviceName).With(zap.String("service", serviceName))
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.IsDevelopment() {
		if err := db.AutoMigrate(repository.Models()...); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		cfg.JWTConfig.Issuer,
		15*time.Minute,
		7*24*time.Hour,
	)

	// Initialize Kafka producer
	var producer application.EventProducer = application.NoopProducer{}
	if cfg.KafkaConfig.Enabled() {
		kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		producer = kafkaProducer
	} else {
		log.Warn("no Kafka brokers configured, booking events will not be published")
	}

	// Initialize notification senders
	var emailSender notify.EmailSender = notify.NewLogEmailSender(log)
	if cfg.MailConfig.Host != "" {
		emailSender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.MailConfig.Host,
			Port:     cfg.MailConfig.Port,
			Username: cfg.MailConfig.Username,
			Password: cfg.MailConfig.Password,
			From:     cfg.MailConfig.From,
		})
	}
	var pushSender notify.PushSender = notify.NewLogPushSender(log)
	if cfg.FirebaseConfig.CredentialsFile != "" {
		fcm, err := notify.NewFCMSender(context.Background(), cfg.FirebaseConfig.CredentialsFile, cfg.FirebaseConfig.ProjectID)
		if err != nil {
			log.Fatal("failed to initialize firebase messaging", zap.Error(err))
		}
		pushSender = fcm
	}
	dispatcher := notify.NewDispatcher(emailSender, pushSender, log)

	// Initialize realtime fan-out
	registry := realtime.NewRegistry()
	broadcaster := realtime.NewBroadcaster(registry, log)

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	notificationRepo := repository.NewGormNotificationRepository(db)
	partyRepo := repository.NewGormPartyRepository(db)
	directory := party.Directory{Carers: partyRepo, Clients: partyRepo}

	// Initialize pricing strategy
	pricingStrategy := bookingDomain.NewHourlyPricingStrategy()

	// Initialize application services
	effects := application.NewEffectRunner(cfg.SideEffectTimeout, application.NewLogErrorSink(log))
	bookingService := application.NewBookingService(
		bookingRepo,
		notificationRepo,
		directory,
		pricingStrategy,
		dispatcher,
		broadcaster,
		producer,
		effects,
		log,
	)

	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     cfg.StripeConfig.SecretKey,
		WebhookSecret: cfg.StripeConfig.WebhookSecret,
		Currency:      cfg.StripeConfig.Currency,
		FrontendURL:   cfg.StripeConfig.FrontendURL,
	})
	settlementService := application.NewSettlementService(
		bookingRepo,
		directory,
		pricingStrategy,
		gateway,
		broadcaster,
		producer,
		effects,
		log,
	)

	// Initialize and start payment event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	closedDone := make(chan struct{})
	close(closedDone)
	var consumerDone <-chan struct{} = closedDone
	if cfg.KafkaConfig.Enabled() {
		groupID := cfg.KafkaConfig.GroupPrefix + "booking-service"
		paymentConsumer := bookingEvents.NewPaymentEventConsumer(
			cfg.KafkaConfig.Brokers,
			groupID,
			settlementService,
			log,
		)
		defer func() { _ = paymentConsumer.Close() }()

		consumerDone = paymentConsumer.Run(ctx)
	}

	// Rate limiting store: Redis when configured, in-memory otherwise
	var redisClient *redis.Client
	if cfg.RedisConfig.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer func() { _ = redisClient.Close() }()
	}
	limiterStore, err := middleware.NewRateLimitStore(redisClient)
	if err != nil {
		log.Fatal("failed to create rate limit store", zap.Error(err))
	}
	rateLimit, err := middleware.RateLimitMiddleware(limiterStore, cfg.RateLimit)
	if err != nil {
		log.Fatal("invalid rate limit", zap.String("rate", cfg.RateLimit), zap.Error(err))
	}

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService)
	carerHandler := handler.NewCarerHandler(bookingService)
	paymentHandler := handler.NewPaymentHandler(settlementService)
	adminBookingHandler := handler.NewAdminBookingHandler(bookingService)
	wsHandler := realtime.NewHandler(registry, cfg.CORSOrigins, log)

	// Setup Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins...))
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, serviceName)
	if redisClient != nil {
		healthHandler.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler.RegisterRoutes(router)

	// Register websocket route
	wsHandler.RegisterRoutes(router, jwtManager)

	// Register API routes
	api := router.Group("")
	api.Use(rateLimit)
	bookingHandler.RegisterRoutes(api, jwtManager)
	carerHandler.RegisterRoutes(api, jwtManager)
	paymentHandler.RegisterRoutes(api, jwtManager)
	adminBookingHandler.RegisterRoutes(api, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	// Wait for the consumer to stop so no settlement starts new side effects
	<-consumerDone

	// Let in-flight notifications and events finish before closing the producer
	effects.Wait()

	log.Info(serviceName + " stopped")
}
