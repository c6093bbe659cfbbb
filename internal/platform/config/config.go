package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything main needs to wire the service.
type Config struct {
	Addr       string
	AdminToken string
	// JWTSigningKey verifies caller bearer tokens.
	JWTSigningKey string

	// Treasury is the identity holding the service's own funds: stake escrow
	// and the claim distribution pool.
	Treasury string
	// PoolFunds seeds the treasury balance on the in-memory ledger.
	PoolFunds uint64

	// PostgresDSN enables the Postgres-backed stores when set.
	PostgresDSN string
	Redis       RedisConfig

	// KafkaBrokers enables the Kafka audit sink when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	Mint    MintConfig
	Staking StakingConfig
	Claims  ClaimsConfig
}

// MintConfig holds the immutable mint policy.
type MintConfig struct {
	MaxSupply uint64
	UnitPrice uint64
	Cooldown  time.Duration
}

// StakingConfig holds the initial reward policy; the rate is adjustable at
// runtime through the admin surface.
type StakingConfig struct {
	RewardRate uint64
}

// ClaimsConfig holds the fixed per-claim payout.
type ClaimsConfig struct {
	RewardAmount uint64
}

// RedisConfig configures the shared cooldown store. Empty URL means the
// in-memory store is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("MINTGATE_ADDR", ":8080"),
		AdminToken:    envOr("MINTGATE_ADMIN_TOKEN", "dev-admin-token-change-in-production"),
		JWTSigningKey: envOr("MINTGATE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Treasury:      envOr("MINTGATE_TREASURY", "0x0000000000000000000000000000000000000001"),
		PoolFunds:     envUint("MINTGATE_POOL_FUNDS", 1_000_000),
		PostgresDSN:   os.Getenv("MINTGATE_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("MINTGATE_REDIS_URL"),
			PoolSize:     envInt("MINTGATE_REDIS_POOL_SIZE", 10),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaTopic: envOr("MINTGATE_KAFKA_AUDIT_TOPIC", "mintgate.audit"),
		Mint: MintConfig{
			MaxSupply: envUint("MINTGATE_MAX_SUPPLY", 10_000),
			UnitPrice: envUint("MINTGATE_UNIT_PRICE", 100),
			Cooldown:  envDuration("MINTGATE_MINT_COOLDOWN", time.Hour),
		},
		Staking: StakingConfig{
			RewardRate: envUint("MINTGATE_REWARD_RATE", 10),
		},
		Claims: ClaimsConfig{
			RewardAmount: envUint("MINTGATE_CLAIM_AMOUNT", 50),
		},
	}
	if brokers := os.Getenv("MINTGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitCSV(brokers)
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
