// Package bootstrap builds the repositories, adapters and services shared by
// the API server and the cron runner from one loaded configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"carbooking-backend/internal/config"
	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/logger"
	"carbooking-backend/internal/notify"
	"carbooking-backend/internal/payment"
	"carbooking-backend/internal/pricing"
	"carbooking-backend/internal/queue"
	"carbooking-backend/internal/repository"
	"carbooking-backend/internal/repository/memory"
	"carbooking-backend/internal/repository/postgres"
	"carbooking-backend/internal/service"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Repositories is the storage view every service is built on.
type Repositories struct {
	Users         repository.UserRepository
	Cars          repository.CarRepository
	Bookings      repository.BookingRepository
	Notifications repository.NotificationRepository
	Ping          func(ctx context.Context) error
}

// App holds the wired services and the resources Close releases.
type App struct {
	Config        *config.Config
	Repos         Repositories
	Deduper       service.Deduper
	Notifier      service.Notifier
	Availability  service.AvailabilityService
	Bookings      service.BookingService
	Payments      service.PaymentService
	Notifications service.NotificationService

	closers []func() error
}

// New connects storage and adapters described by cfg and wires the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	repos, err := app.openRepositories(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Repos = repos

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.closers = append(app.closers, redisClient.Close)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable at startup, dedup will retry per call", "addr", cfg.Redis.Addr, "error", err)
		}
		app.Deduper = payment.NewRedisDeduper(redisClient, cfg.DedupTTL())
		logger.Info("Redis configured", "addr", cfg.Redis.Addr)
	} else {
		logger.Warn("Redis not configured, webhook deduplication relies on idempotent transitions only")
	}

	channels, err := buildChannels(ctx, cfg, redisClient)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Notifier = notify.NewDispatcher(repos.Notifications, repos.Users, channels...)

	var publisher service.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		p := queue.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		app.closers = append(app.closers, p.Close)
		publisher = p
		logger.Info("Booking events published to RabbitMQ", "exchange", cfg.RabbitMQ.Exchange)
	}

	engine := pricing.NewEngine(pricing.DeliveryPolicy{
		FlatFee:            cfg.Pricing.DeliveryFlatFee,
		MaxDistanceKm:      cfg.Pricing.MaxDeliveryDistanceKm,
		RejectBeyondRadius: cfg.Pricing.RejectBeyondRadius,
	}, policies(cfg))

	enforceRefundBound := cfg.Payment.EnforceRefundBound == nil || *cfg.Payment.EnforceRefundBound

	app.Availability = service.NewAvailabilityService(repos.Bookings)
	app.Bookings = service.NewBookingService(repos.Bookings, repos.Cars, engine, app.Notifier, publisher, service.BookingOptions{
		DurationUnitHours:  cfg.Booking.DurationUnitHours,
		MaxDurationHours:   cfg.Booking.MaxDurationHours,
		LateFeePerHour:     cfg.Booking.LateFeePerHour,
		Currency:           cfg.Booking.Currency,
		EnforceRefundBound: enforceRefundBound,
	})
	app.Payments = service.NewPaymentService(gateways(cfg), repos.Bookings, app.Bookings, app.Deduper, service.PaymentOptions{
		Currency:           strings.ToLower(cfg.Booking.Currency),
		VerifyTimeout:      cfg.VerifyTimeout(),
		EnforceRefundBound: enforceRefundBound,
	})
	app.Notifications = service.NewNotificationService(repos.Notifications)
	return app, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

func (a *App) openRepositories(ctx context.Context) (Repositories, error) {
	cfg := a.Config
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory store, data is lost on restart")
		store := memory.NewStore()
		return Repositories{
			Users:         store.Users(),
			Cars:          store.Cars(),
			Bookings:      store.Bookings(),
			Notifications: store.Notifications(),
			Ping:          func(context.Context) error { return nil },
		}, nil
	}

	logger.Debug("Connecting to database...", "connection_string", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return Repositories{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	// Test database connection
	if err := db.PingContext(ctx); err != nil {
		return Repositories{}, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return Repositories{}, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database schema applied")
	}

	store := postgres.NewStore(db)
	return Repositories{
		Users:         store.UserRepository,
		Cars:          store.CarRepository,
		Bookings:      store.BookingRepository,
		Notifications: store.NotificationRepository,
		Ping:          store.Ping,
	}, nil
}

func buildChannels(ctx context.Context, cfg *config.Config, redisClient *redis.Client) ([]notify.Channel, error) {
	var channels []notify.Channel
	if cfg.SendGrid.APIKey != "" {
		channels = append(channels, notify.NewEmailChannel(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName))
		logger.Info("Email notifications enabled", "from", cfg.SendGrid.FromEmail)
	}
	if cfg.Firebase.CredentialsFile != "" {
		if redisClient == nil {
			logger.Warn("Push notifications need redis for device tokens, skipping")
		} else {
			client, err := notify.NewFirebaseMessaging(ctx, cfg.Firebase.CredentialsFile)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize firebase messaging: %w", err)
			}
			channels = append(channels, notify.NewPushChannel(client, redisClient))
			logger.Info("Push notifications enabled")
		}
	}
	return channels, nil
}

func policies(cfg *config.Config) map[domain.PricingScheme]pricing.Policy {
	p := pricing.DefaultPolicies()
	p[domain.PricingSchemeTiered] = pricing.TieredPolicy{UnitHours: cfg.Pricing.TierUnitHours}
	return p
}

func gateways(cfg *config.Config) *payment.Registry {
	var gws []payment.Gateway
	if cfg.Payment.Stripe.SecretKey != "" {
		gws = append(gws, payment.NewStripeGateway(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.WebhookSecret))
	}
	if cfg.Payment.Razorpay.KeyID != "" {
		gws = append(gws, payment.NewRazorpayGateway(cfg.Payment.Razorpay.KeyID, cfg.Payment.Razorpay.KeySecret, cfg.Payment.Razorpay.WebhookSecret))
	}
	registry := payment.NewRegistry(gws...)
	logger.Info("Payment providers configured", "providers", registry.Providers())
	return registry
}
