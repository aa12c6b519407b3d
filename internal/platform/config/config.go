package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration. Every backend is optional:
// with nothing configured the service runs entirely in-memory, which is the
// demo/development mode.
type Server struct {
	Addr string

	// Document store. Empty MongoURI selects the in-memory stores.
	MongoURI string
	MongoDB  string

	// Optional PostgreSQL archive backend for the local ledger collection.
	LedgerArchiveDSN string

	// Redis for the cross-instance match-cycle lock. Empty selects the
	// in-process lock.
	RedisURL     string
	CycleLockTTL time.Duration

	// External trust-ledger service. Empty URL selects the in-memory ledger.
	TrustLedgerURL     string
	TrustLedgerTimeout time.Duration

	// Kafka audit stream. Empty brokers select the log emitter.
	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Server config from environment variables so main stays
// lean.
func FromEnv() Server {
	cfg := Server{
		Addr:               getenv("ORGANLINK_ADDR", ":8080"),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getenv("MONGO_DB", "organlink"),
		LedgerArchiveDSN:   os.Getenv("LEDGER_ARCHIVE_DSN"),
		RedisURL:           os.Getenv("REDIS_URL"),
		CycleLockTTL:       getduration("CYCLE_LOCK_TTL", 30*time.Second),
		TrustLedgerURL:     os.Getenv("TRUST_LEDGER_URL"),
		TrustLedgerTimeout: getduration("TRUST_LEDGER_TIMEOUT", 5*time.Second),
		KafkaTopic:         getenv("KAFKA_AUDIT_TOPIC", "organlink.audit"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
