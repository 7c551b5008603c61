package main

import (
	"pitchside/internal/bookings/handler"
	"pitchside/internal/bookings/repository"
	"pitchside/internal/bookings/service"
	"pitchside/internal/bookings/validator"
	"pitchside/internal/payments"
	"pitchside/pkg/app"
	"pitchside/pkg/client"
	"pitchside/pkg/config"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()

	cfg.Log.Info("Starting Bookings service")
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	deps := initServices(cfg)

	scheduler := service.NewSweepScheduler(deps.jobLocks, deps.reconciler, cfg)
	scheduler.Start()

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
		handler.NewAPIHandler(
			handler.NewBookingHandler(deps.bookings, cfg.Log),
			handler.NewEventHandler(deps.events, deps.availability, deps.reconciler, cfg.Log),
		),
		handler.NewWebhookHandler(deps.bookings, cfg.Log),
	)
	serverApp.OnShutdown(scheduler.Stop)
	serverApp.OnShutdown(func() {
		if err := deps.notifier.Close(); err != nil {
			cfg.Log.Error("Failed to close notifier", "error", err)
		}
	})
	serverApp.Run()
}

type services struct {
	bookings     service.BookingService
	events       service.EventService
	availability service.AvailabilityService
	reconciler   service.ReconciliationService
	notifier     service.Notifier
	jobLocks     repository.JobLockRepository
}

func initServices(cfg *config.Config) *services {
	bookingValidator := validator.NewBookingValidator(cfg.Log)

	eventRepo := repository.NewMongoEventRepository(cfg)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	slotRepo := repository.NewMongoBookingSlotRepository(cfg)
	refundRepo := repository.NewMongoRefundRepository(cfg)
	jobLockRepo := repository.NewMongoJobLockRepository(cfg)

	gateway := payments.NewRazorpayGateway(cfg)
	users := client.NewUserClient(cfg.UsersServiceURL)
	notifier, err := service.NewKafkaNotifier(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize Kafka notifier", "error", err)
	}

	slotLock := service.NewSlotLockService(eventRepo, slotRepo, cfg)
	availability := service.NewAvailabilityService(eventRepo, slotRepo, notifier, cfg)
	bookingService := service.NewBookingService(
		bookingRepo,
		slotRepo,
		eventRepo,
		refundRepo,
		slotLock,
		gateway,
		users,
		notifier,
		availability,
		bookingValidator,
		cfg,
	)
	reconciler := service.NewReconciliationService(
		bookingRepo,
		slotRepo,
		refundRepo,
		slotLock,
		gateway,
		bookingService,
		availability,
		cfg,
	)
	eventService := service.NewEventService(eventRepo, bookingValidator, cfg)

	cfg.Log.Info("Booking services initialized", "database", cfg.MongoDatabaseName)
	return &services{
		bookings:     bookingService,
		events:       eventService,
		availability: availability,
		reconciler:   reconciler,
		notifier:     notifier,
		jobLocks:     jobLockRepo,
	}
}
