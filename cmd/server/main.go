package main // Entry point package

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/seatd/internal/booking"
	"github.com/iliyamo/seatd/internal/booking/memstore"
	"github.com/iliyamo/seatd/internal/config"
	"github.com/iliyamo/seatd/internal/database"
	"github.com/iliyamo/seatd/internal/handler"
	"github.com/iliyamo/seatd/internal/logging"
	"github.com/iliyamo/seatd/internal/middleware"
	"github.com/iliyamo/seatd/internal/notify"
	"github.com/iliyamo/seatd/internal/queue"
	"github.com/iliyamo/seatd/internal/repository"
	"github.com/iliyamo/seatd/internal/router"
	"github.com/iliyamo/seatd/internal/supervisor"
	"github.com/iliyamo/seatd/internal/utils"
)

// store is everything the server needs from a storage driver.  Both
// repository.Store and memstore.Store satisfy it.
type store interface {
	booking.Ledger
	booking.Showtimes
	booking.Inventory
	booking.SeedStore
	handler.Catalog
	handler.TicketStore
	EnsureAdmin(ctx context.Context, email, name, passwordHash string) (bool, error)
}

func main() {
	cfg := config.Load() // Load environment config
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, ping, closeStore := openStore(ctx, cfg)
	defer closeStore()
	seed(ctx, cfg, st)

	rdb := config.NewRedisClient() // nil when Redis is disabled or unreachable
	if rdb != nil {
		defer rdb.Close()
	}

	tree := supervisor.New(supervisor.TreeConfig{})

	// Seat change fan-out: through Redis when available so every instance
	// sees every change, otherwise straight to the local hub.
	hub := notify.NewHub()
	var notifier booking.Notifier = hub
	if rdb != nil {
		notifier = notify.NewRedisBroadcaster(rdb, hub)
		tree.AddMessagingService(notify.NewRedisRelay(rdb, hub))
	}

	policy := booking.NewExpiryPolicy(cfg.HoldDuration)
	clock := booking.RealClock{}
	coord := booking.NewCoordinator(st, st, notifier, policy, clock)
	proj := booking.NewProjector(st, st, st, policy, clock)

	if cfg.AMQPEnabled {
		pub := queue.NewPublisher(cfg.RabbitMQURL)
		defer pub.Close()
		coord.SetEventPublisher(pub)
		tree.AddMessagingService(queue.NewConsumer("payment-consumer", cfg.RabbitMQURL, queue.PaymentCompletedQueue, queue.PaymentHandler(coord)).
			WithDeadLetter(queue.PaymentDeadLetterQueue))
		tree.AddMessagingService(queue.NewConsumer("booking-log-consumer", cfg.RabbitMQURL, queue.BookingConfirmedQueue, queue.BookingLogHandler(cfg.BookingLogPath)))
	}
	if cfg.HoldSweepInterval > 0 {
		tree.AddStorageService(booking.NewSweeper(st, notifier, clock, cfg.HoldSweepInterval))
	}

	e := router.New()
	e.Use(middleware.RateLimit(config.LoadRateLimitConfig(), rdb))
	showtimes := handler.NewShowtimeHandler(coord, proj)
	router.RegisterRoutes(e, ping)
	router.RegisterPublic(e, handler.NewCatalogHandler(st), showtimes, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterCustomer(e, showtimes, handler.NewTicketHandler(st), cfg.JWTSecret, middleware.RateLimit(config.LoadHoldRateLimitConfig(), rdb))
	router.RegisterAdmin(e, handler.NewAdminHandler(coord, proj, st), cfg.JWTSecret)
	router.RegisterInternal(e, handler.NewPaymentHandler(coord), cfg.InternalToken)
	router.RegisterWS(e, handler.NewWSHandler(hub, cfg.AllowedOrigins), cfg.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	tree.AddAPIService(supervisor.NewHTTPService(srv, 10*time.Second))

	logging.Info().
		Str("addr", srv.Addr).
		Str("env", cfg.Env).
		Str("storage", cfg.StorageDriver).
		Bool("redis", rdb != nil).
		Bool("amqp", cfg.AMQPEnabled).
		Dur("hold_duration", cfg.HoldDuration).
		Msg("listening")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("supervisor stopped")
	}
	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("services did not stop in time")
	}
	logging.Info().Msg("shutdown complete")
}

// openStore connects the configured storage driver.
func openStore(ctx context.Context, cfg config.Config) (store, handler.Pinger, func()) {
	if cfg.StorageDriver == config.DriverMemory {
		logging.Warn().Msg("using in-memory storage; state is lost on restart")
		return memstore.New(), nil, func() {}
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logging.Fatal().Err(err).Msg("db connect failed")
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logging.Fatal().Err(err).Msg("db migrate failed")
		}
	}
	return repository.NewStore(db), db.PingContext, func() { _ = db.Close() }
}

// seed creates the default auditoriums, the demo showtime and the
// operator account.  Every step is idempotent.
func seed(ctx context.Context, cfg config.Config, st store) {
	if cfg.SeedDefaults {
		if err := booking.SeedDefaultAuditoriums(ctx, st); err != nil {
			logging.Fatal().Err(err).Msg("seed auditoriums failed")
		}
		if _, err := booking.SeedDemoShowtime(ctx, st, time.Now()); err != nil {
			logging.Fatal().Err(err).Msg("seed demo showtime failed")
		}
	}

	if cfg.AdminEmail == "" {
		return
	}
	hash, err := utils.HashPassword(cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		logging.Fatal().Err(err).Msg("hash admin password failed")
	}
	created, err := st.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminName, hash)
	if err != nil {
		logging.Fatal().Err(err).Msg("ensure admin failed")
	}
	if created {
		logging.Info().Str("email", cfg.AdminEmail).Msg("admin user created")
	}
}
