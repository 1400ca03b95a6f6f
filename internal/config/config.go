package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	RPCURL  string
	ChainID uint64

	PolicyNFTAddress         string
	PolicyDistributorAddress string
	PayoutModuleAddress      string
	ReservePoolAddress       string
	OracleAnchorsAddress     string

	QuoteSignerKeyHex  string
	OracleSignerKeyHex string

	ValidatorAPIBaseURL string
	ValidatorAPISecret  string

	AdminAPIKey          string
	WebhookMaxAgeSeconds int

	QuoteDeadlineSeconds int
	MintStartBufferSecs  int

	ClaimGateBundlePath string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                 addr,
		PostgresDSN:              os.Getenv("POSTGRES_DSN"),
		LogLevel:                 envDefault("LOG_LEVEL", "info"),
		RPCURL:                   os.Getenv("RPC_URL"),
		ChainID:                  uint64(envIntDefault("CHAIN_ID", 1)),
		PolicyNFTAddress:         os.Getenv("POLICY_NFT_ADDRESS"),
		PolicyDistributorAddress: os.Getenv("POLICY_DISTRIBUTOR_ADDRESS"),
		PayoutModuleAddress:      os.Getenv("PAYOUT_MODULE_ADDRESS"),
		ReservePoolAddress:       os.Getenv("RESERVE_POOL_ADDRESS"),
		OracleAnchorsAddress:     os.Getenv("ORACLE_ANCHORS_ADDRESS"),
		QuoteSignerKeyHex:        os.Getenv("QUOTE_SIGNER_KEY"),
		OracleSignerKeyHex:       os.Getenv("ORACLE_SIGNER_KEY"),
		ValidatorAPIBaseURL:      os.Getenv("VALIDATOR_API_BASE_URL"),
		ValidatorAPISecret:       os.Getenv("VALIDATOR_API_SECRET"),
		AdminAPIKey:              os.Getenv("ADMIN_API_KEY"),
		WebhookMaxAgeSeconds:     envIntDefault("WEBHOOK_MAX_AGE_SECONDS", 300),
		QuoteDeadlineSeconds:     envIntDefault("QUOTE_DEADLINE_SECONDS", 3600),
		MintStartBufferSecs:      envIntDefault("MINT_START_BUFFER_SECONDS", 300),
		ClaimGateBundlePath:      os.Getenv("CLAIM_GATE_BUNDLE_PATH"),
		RateLimitRequests:        envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:   envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:         envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func (c Config) WebhookMaxAge() time.Duration {
	return time.Duration(c.WebhookMaxAgeSeconds) * time.Second
}

func (c Config) QuoteDeadline() time.Duration {
	return time.Duration(c.QuoteDeadlineSeconds) * time.Second
}

func (c Config) MintStartBuffer() time.Duration {
	return time.Duration(c.MintStartBufferSecs) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}
