package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/lexbook/libs/config"
	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/holiday"
)

type settings struct {
	Service  string
	Port     string
	LogLevel string
	Storage  string // postgres | memory

	DatabaseURL string
	DBMaxConns  int
	RedisAddr   string
	Brokers     string

	ProfileGRPCAddr string
	ProfilesFile    string

	Location      *time.Location
	HorizonDays   int
	LeadTime      time.Duration
	SourceTimeout time.Duration
	HoldTTL       time.Duration
	SessionTTL    time.Duration
	ReapEvery     time.Duration
	Holidays      []time.Time

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeCurrency      string
	SuccessURL          string
	CancelURL           string
	LocalCheckoutURL    string

	RateLimitPerMinute int
	CORSOrigins        []string
}

func loadSettings() (settings, error) {
	s := settings{
		Service:             config.String("SERVICE_NAME", "booking-service"),
		LogLevel:            config.String("LOG_LEVEL", "info"),
		Storage:             strings.ToLower(config.String("STORAGE", "postgres")),
		RedisAddr:           config.String("REDIS_ADDR", ""),
		Brokers:             config.String("KAFKA_BROKERS", ""),
		ProfileGRPCAddr:     config.String("PROFILE_GRPC_ADDR", ""),
		ProfilesFile:        config.String("PROFILES_FILE", ""),
		StripeSecretKey:     config.String("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: config.String("STRIPE_WEBHOOK_SECRET", ""),
		StripeCurrency:      config.String("STRIPE_CURRENCY", "cop"),
		SuccessURL:          config.String("CHECKOUT_SUCCESS_URL", "http://localhost:3000/reservas/exito"),
		CancelURL:           config.String("CHECKOUT_CANCEL_URL", "http://localhost:3000/reservas/cancelada"),
		LocalCheckoutURL:    config.String("LOCAL_CHECKOUT_URL", "http://localhost:8083"),
		CORSOrigins:         config.List("CORS_ALLOWED_ORIGINS"),
	}

	var err error
	if s.Port, err = config.Port("PORT", "8083"); err != nil {
		return s, err
	}
	if s.Location, err = time.LoadLocation(config.String("TIMEZONE", "America/Bogota")); err != nil {
		return s, fmt.Errorf("TIMEZONE: %w", err)
	}
	if s.HorizonDays, err = config.Int("HORIZON_DAYS", 30); err != nil {
		return s, err
	}
	if s.DBMaxConns, err = config.Int("DB_MAX_CONNS", 10); err != nil {
		return s, err
	}
	if s.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return s, err
	}
	if s.LeadTime, err = config.Duration("LEAD_TIME", 15*time.Minute); err != nil {
		return s, err
	}
	if s.SourceTimeout, err = config.Duration("SOURCE_TIMEOUT", 3*time.Second); err != nil {
		return s, err
	}
	if s.HoldTTL, err = config.Duration("HOLD_TTL", 30*time.Minute); err != nil {
		return s, err
	}
	if s.SessionTTL, err = config.Duration("SESSION_TTL", 2*time.Hour); err != nil {
		return s, err
	}
	if s.ReapEvery, err = config.Duration("REAPER_INTERVAL", 30*time.Second); err != nil {
		return s, err
	}
	if s.Holidays, err = holiday.Parse(config.String("HOLIDAYS", "")); err != nil {
		return s, fmt.Errorf("HOLIDAYS: %w", err)
	}

	switch s.Storage {
	case "postgres":
		if s.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
			return s, err
		}
	case "memory":
	default:
		return s, fmt.Errorf("STORAGE must be postgres or memory, got %q", s.Storage)
	}
	return s, nil
}
