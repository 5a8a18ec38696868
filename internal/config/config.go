package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PGDSN        string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	OTLPEndpoint string
	GatewayURL   string // external payment provider; empty selects the simulator

	SessionTTL     time.Duration
	PaymentTimeout time.Duration
	WaiverValidity time.Duration

	Pricing PricingConfig
}

// PricingConfig carries the business constants the pricing engine needs.
// Rates are basis points to keep the math in integers.
type PricingConfig struct {
	ProcessingRateBP     int64  // 300 = 3%
	ProcessingFixedCents int64  // 30 = $0.30
	EquipmentFeeCents    int64  // per line when gear not included
	PeakStart            string // "MM-DD", inclusive
	PeakEnd              string // "MM-DD", inclusive
	LoyaltyTierPoints    int
	LoyaltyTierCents     int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		PGDSN:          os.Getenv("PG_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		GatewayURL:     os.Getenv("PAYMENT_GATEWAY_URL"),
		SessionTTL:     durationEnv("SESSION_TTL", 24*time.Hour),
		PaymentTimeout: durationEnv("PAYMENT_TIMEOUT", 15*time.Second),
		WaiverValidity: durationEnv("WAIVER_VALIDITY", 365*24*time.Hour),
		Pricing: PricingConfig{
			ProcessingRateBP:     intEnv("PROCESSING_RATE_BP", 300),
			ProcessingFixedCents: intEnv("PROCESSING_FIXED_CENTS", 30),
			EquipmentFeeCents:    intEnv("EQUIPMENT_FEE_CENTS", 2500),
			PeakStart:            stringEnv("PEAK_START", "06-01"),
			PeakEnd:              stringEnv("PEAK_END", "09-15"),
			LoyaltyTierPoints:    int(intEnv("LOYALTY_TIER_POINTS", 100)),
			LoyaltyTierCents:     intEnv("LOYALTY_TIER_VALUE_CENTS", 4500),
		},
	}, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d == 0 {
		return def
	}
	return d
}
