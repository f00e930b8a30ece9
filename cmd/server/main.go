package main

import (
	"context"

	attendancehandler "gymgate/internal/attendance/handler"
	attendancerepo "gymgate/internal/attendance/repository"
	attendanceservice "gymgate/internal/attendance/service"
	lockershandler "gymgate/internal/lockers/handler"
	lockersrepo "gymgate/internal/lockers/repository"
	lockersservice "gymgate/internal/lockers/service"
	passeshandler "gymgate/internal/passes/handler"
	passesrepo "gymgate/internal/passes/repository"
	passesservice "gymgate/internal/passes/service"
	passesvalidator "gymgate/internal/passes/validator"
	"gymgate/internal/payments"
	paymentshandler "gymgate/internal/payments/handler"
	paymentsrepo "gymgate/internal/payments/repository"
	paymentsservice "gymgate/internal/payments/service"
	sessionshandler "gymgate/internal/sessions/handler"
	sessionsrepo "gymgate/internal/sessions/repository"
	sessionsservice "gymgate/internal/sessions/service"
	sessionsvalidator "gymgate/internal/sessions/validator"
	slotshandler "gymgate/internal/slots/handler"
	slotsrepo "gymgate/internal/slots/repository"
	slotsservice "gymgate/internal/slots/service"
	slotsvalidator "gymgate/internal/slots/validator"
	zoneshandler "gymgate/internal/zones/handler"
	zonesrepo "gymgate/internal/zones/repository"
	zonesservice "gymgate/internal/zones/service"
	zonesvalidator "gymgate/internal/zones/validator"
	"gymgate/pkg/app"
	"gymgate/pkg/config"
	"gymgate/pkg/kafka"
	kafka_config "gymgate/pkg/kafka/config"
	kafka_middleware "gymgate/pkg/kafka/middleware"
)

const ServiceName = "gymgate"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	cfg.Log.Info("Starting GymGate service")

	sessionEvents := newProducer(cfg, kafkaCfg, kafka.TopicSessionCompleted)
	defer sessionEvents.Close()
	checkinEvents := newProducer(cfg, kafkaCfg, kafka.TopicVisitCheckedIn)
	defer checkinEvents.Close()
	checkoutEvents := newProducer(cfg, kafkaCfg, kafka.TopicVisitCheckedOut)
	defer checkoutEvents.Close()

	zoneService := zonesservice.NewZoneService(
		zonesrepo.NewMongoZoneRepository(cfg),
		zonesvalidator.NewZoneValidator(cfg.Log),
		cfg,
	)
	passService := passesservice.NewPassService(
		passesrepo.NewMongoPassRepository(cfg),
		passesvalidator.NewPassValidator(cfg.Log),
		cfg,
	)
	lockerService := lockersservice.NewLockerService(
		lockersrepo.NewMongoLockerRepository(cfg),
		cfg,
	)

	sessionRepo := sessionsrepo.NewMongoSessionRepository(cfg)
	visitRepo := attendancerepo.NewMongoVisitRepository(cfg)

	slotService := slotsservice.NewSlotService(
		slotsrepo.NewMongoSlotRepository(cfg),
		sessionRepo,
		slotsvalidator.NewSlotValidator(cfg.Log),
		cfg,
	)
	sessionService := sessionsservice.NewSessionService(
		sessionRepo,
		sessionsrepo.NewMongoParticipantRepository(cfg),
		sessionsrepo.NewMongoSessionLockRepository(cfg),
		zoneService,
		passService,
		visitRepo,
		sessionEvents,
		sessionsvalidator.NewSessionValidator(cfg.Log),
		cfg,
	)
	attendanceService := attendanceservice.NewAttendanceService(
		visitRepo,
		zoneService,
		passService,
		lockerService,
		checkinEvents,
		checkoutEvents,
		cfg,
	)
	paymentService := paymentsservice.NewPaymentService(
		paymentsrepo.NewMongoProcessedPaymentRepository(cfg),
		passService,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startPaymentsConsumer(ctx, cfg, kafkaCfg, paymentService)

	serverApp := app.NewApplication(cfg)
	serverApp.SetWebhook(paymentshandler.NewWebhookHandler(paymentService, cfg.Log))
	serverApp.SetApp(
		zoneshandler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
		zoneshandler.NewZoneHandler(zoneService, cfg.Log),
		slotshandler.NewSlotHandler(slotService, cfg.Log),
		sessionshandler.NewSessionHandler(sessionService, cfg.Log),
		passeshandler.NewPassHandler(passService, cfg.Log),
		lockershandler.NewLockerHandler(lockerService, cfg.Log),
		attendancehandler.NewAttendanceHandler(attendanceService, cfg.Log),
	)
	serverApp.Run()
}

func newProducer(cfg *config.Config, kafkaCfg *kafka_config.Config, topic string) *kafka.Producer {
	producer, err := kafka.NewProducer(kafkaCfg, topic, topic+kafka.DLQSuffix)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "topic", topic, "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	return producer
}

func startPaymentsConsumer(ctx context.Context, cfg *config.Config, kafkaCfg *kafka_config.Config, paymentService paymentsservice.PaymentService) {
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		kafka.TopicPaymentsConfirmed,
		ServiceName+"-payments",
		kafka.TopicPaymentsConfirmed+kafka.DLQSuffix,
		payments.NewConfirmationHandler(paymentService, cfg.Log),
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create payments consumer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	}

	go func() {
		cfg.Log.Info("Payments consumer started", "topic", kafka.TopicPaymentsConfirmed)
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			cfg.Log.Error("Payments consumer stopped", "error", err)
		}
	}()
}
