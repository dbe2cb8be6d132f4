package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	_ "time/tzdata"

	"github.com/md-rashed-zaman/lexbook/libs/db"
	"github.com/md-rashed-zaman/lexbook/libs/grpcx"
	"github.com/md-rashed-zaman/lexbook/libs/httpx"
	"github.com/md-rashed-zaman/lexbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/lexbook/libs/otel"
	"github.com/md-rashed-zaman/lexbook/libs/runtime"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/holds"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/holiday"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/payments"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/profiles"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/reservations"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/migrations"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// gateway starts checkouts and verifies their webhooks.
type gateway interface {
	reservations.PaymentGateway
	handlers.WebhookParser
}

// reservationStore is what both storage backends provide.
type reservationStore interface {
	reservations.Store
	availability.BusySource
	holds.Expirer
}

func main() {
	cfg, err := loadSettings()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Service, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var checks []runtime.ReadyCheck
	var (
		store    reservationStore
		profileS availability.ProfileSource
	)
	switch cfg.Storage {
	case "postgres":
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{MaxConns: int32(cfg.DBMaxConns)})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()
		if err := migrations.Apply(ctx, pool); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}

		outboxRepo := outbox.NewRepository()
		store = storage.NewReservationRepository(pool, outboxRepo, cfg.Location)
		profileS = storage.NewProfileRepository(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   cfg.Brokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go publisher.Run(ctx)
		if cfg.Brokers != "" {
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkax.SplitBrokers(cfg.Brokers))})
		}
	case "memory":
		logger.Warn("using in-memory reservations; data is lost on restart")
		store = reservations.NewMemoryStore()
	}

	switch {
	case cfg.ProfileGRPCAddr != "":
		src, err := profiles.NewGRPCSource(cfg.ProfileGRPCAddr, grpcx.DialOptions{CallTimeout: cfg.SourceTimeout})
		if err != nil {
			logger.Error("profile client init failed", "err", err)
			panic(err)
		}
		defer func() { _ = src.Close() }()
		profileS = src
	case cfg.ProfilesFile != "":
		src, err := profiles.LoadFile(cfg.ProfilesFile)
		if err != nil {
			logger.Error("profiles file load failed", "err", err)
			panic(err)
		}
		profileS = src
	case profileS == nil:
		logger.Warn("no profile source configured; every provider lookup will miss")
		profileS = profiles.NewStatic()
	}

	var (
		sessions booking.Store
		locker   booking.Locker
		limiter  httpx.Limiter
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		sessions = booking.NewRedisStore(rdb, cfg.SessionTTL)
		locker = booking.NewRedisLocker(rdb)
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "rl:booking")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	} else {
		logger.Warn("REDIS_ADDR not set; booking sessions and rate limits are per process")
		sessions = booking.NewMemoryStore(cfg.SessionTTL)
		locker = booking.NewMemoryLocker()
		limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	pay := newGateway(cfg, logger)
	calendar := holiday.Colombia(cfg.Holidays...)
	engine := availability.NewEngine(profileS, store, calendar, logger, availability.Config{
		HorizonDays:   cfg.HorizonDays,
		LeadTime:      cfg.LeadTime,
		SourceTimeout: cfg.SourceTimeout,
		Location:      cfg.Location,
	})
	svc := reservations.NewService(store, pay, logger, reservations.Config{HoldTTL: cfg.HoldTTL, Location: cfg.Location, Slots: engine})
	flow := booking.NewOrchestrator(engine, svc, svc, sessions, locker, logger)

	reaper := holds.NewReaper(store, pay, logger, holds.ReaperConfig{Interval: cfg.ReapEvery})
	go reaper.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.Routes{
		Availability: handlers.NewAvailabilityHandler(engine, logger),
		Sessions:     handlers.NewSessionHandler(flow, cfg.Location, logger),
		Bookings:     handlers.NewBookingHandler(engine, svc, cfg.Location, logger),
		Webhooks:     handlers.NewWebhookHandler(pay, svc, logger),
	}.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", httpx.UserIDHeader, "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.RateLimit(limiter, logger, true),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("booking service configured", "storage", cfg.Storage, "timezone", cfg.Location.String())
	if err := runtime.Serve(ctx, srv, logger, runtime.DefaultShutdownGrace); err != nil {
		logger.Error("http server error", "err", err)
	}
}

// newGateway uses Stripe when a secret key is configured and the local
// stand-in otherwise.
func newGateway(cfg settings, logger *slog.Logger) gateway {
	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set; using local checkout gateway")
		return payments.NewLocalGateway(cfg.LocalCheckoutURL)
	}
	gw, err := payments.NewStripeGateway(payments.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Currency:      cfg.StripeCurrency,
		SuccessURL:    cfg.SuccessURL,
		CancelURL:     cfg.CancelURL,
	})
	if err != nil {
		logger.Error("stripe gateway init failed", "err", err)
		panic(err)
	}
	return gw
}
