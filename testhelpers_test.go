//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reignacare/service-booking/internal/application"
	bookingDomain "github.com/reignacare/service-booking/internal/domain/booking"
	"github.com/reignacare/service-booking/internal/domain/party"
	bookingEvents "github.com/reignacare/service-booking/internal/events"
	"github.com/reignacare/service-booking/internal/notify"
	"github.com/reignacare/service-booking/internal/payment"
	"github.com/reignacare/service-booking/internal/platform/database"
	"github.com/reignacare/service-booking/internal/platform/kafka"
	"github.com/reignacare/service-booking/internal/realtime"
	"github.com/reignacare/service-booking/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Bookings        *application.BookingService
	Settlements     *application.SettlementService
	Effects         *application.EffectRunner
	Consumer        *bookingEvents.PaymentEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers, applies the
// migrations and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pgConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_booking",
		SSLMode:  "disable",
	}

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(pgConfig, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(pgConfig.DatabaseURL(), "migrations", logger))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, bookingDomain.TopicBookingEvents, bookingDomain.TopicPaymentEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the full booking service stack with log-only notification senders.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewGormBookingRepository(db)
	partyRepo := repository.NewGormPartyRepository(db)
	directory := party.Directory{Carers: partyRepo, Clients: partyRepo}
	pricing := bookingDomain.NewHourlyPricingStrategy()
	producer := kafka.NewProducer(brokers, logger)
	dispatcher := notify.NewDispatcher(notify.NewLogEmailSender(logger), notify.NewLogPushSender(logger), logger)
	broadcaster := realtime.NewBroadcaster(realtime.NewRegistry(), logger)
	effects := application.NewEffectRunner(10*time.Second, application.NewLogErrorSink(logger))

	bookingSvc := application.NewBookingService(bookingRepo, repository.NewGormNotificationRepository(db),
		directory, pricing, dispatcher, broadcaster, producer, effects, logger)
	gateway := payment.NewStripeGateway(payment.StripeConfig{SecretKey: "sk_test_unused", WebhookSecret: "whsec_unused"})
	settlementSvc := application.NewSettlementService(bookingRepo, directory, pricing, gateway, broadcaster, producer, effects, logger)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewPaymentEventConsumer(brokers, groupID, settlementSvc, logger)

	return &bookingStack{
		Bookings:    bookingSvc,
		Settlements: settlementSvc,
		Effects:     effects,
		Consumer:    consumer,
		CleanupProducer: func() {
			effects.Wait()
			_ = producer.Close()
		},
	}
}

// seedParties inserts a carer charging rate per hour and a client.
func seedParties(t *testing.T, db *gorm.DB, rate float64) (carerID, clientID uint64) {
	t.Helper()
	suffix := uuid.New().String()[:8]
	carer := repository.CarerModel{FullName: "Integration Carer", Email: "carer-" + suffix + "@example.com", ChargeRate: &rate}
	require.NoError(t, db.Create(&carer).Error)
	client := repository.ClientModel{FullName: "Integration Client", Email: "client-" + suffix + "@example.com"}
	require.NoError(t, db.Create(&client).Error)
	return carer.ID, client.ID
}

// seedCompletedBooking inserts an unpaid completed booking priced at hours × rate.
func seedCompletedBooking(t *testing.T, db *gorm.DB, carerID, clientID uint64, hours, rate float64) uint64 {
	t.Helper()
	now := time.Now().UTC()
	pence := int64(hours * rate * 100)
	model := repository.BookingModel{
		ClientID:       clientID,
		CarerID:        carerID,
		ServiceType:    "Companionship",
		ServiceHours:   &hours,
		ScheduledDate:  now.Truncate(24 * time.Hour),
		ScheduledTime:  "09:00",
		Location:       "Leeds",
		Status:         "completed",
		TotalCostPence: &pence,
		HourlyRate:     &rate,
		PaymentStatus:  "pending",
		Version:        4,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed booking")
	return model.ID
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForPaymentStatus polls the bookings table until the payment status matches.
func waitForPaymentStatus(t *testing.T, db *gorm.DB, bookingID uint64, expected string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		if err := db.Where("id = ?", bookingID).First(&model).Error; err != nil {
			return false
		}
		if model.PaymentStatus == expected {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking payment did not reach %s", expected)
	return result
}

// countSettlements returns the number of settlement rows for a booking.
func countSettlements(t *testing.T, db *gorm.DB, bookingID uint64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&repository.PaymentSettlementModel{}).Where("booking_id = ?", bookingID).Count(&n).Error)
	return n
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
