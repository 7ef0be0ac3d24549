package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all environment-derived configuration for the zone node.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string
	HealthAddr  string

	// Zone identity (C10/C11: the credential issuer and signer)
	ZoneDID                string
	ZoneVerificationMethod string
	ZoneSigningKeyPath     string // path to a raw 32-byte Ed25519 seed

	// Jurisdiction/policy configuration (C6/C8/C9 policy and sovereignty
	// definitions, loaded from YAML — see zone_config.go)
	JurisdictionConfigPath string

	// Content-addressed store (C3)
	CASRootDir string

	// Audit trail (spec bounded-capacity, drop-oldest invariant)
	AuditCapacity int

	// L1 anchor target (C12)
	AnchorMode               string // "mock" or "evm"
	EthereumRPCURL           string
	EthChainID               int64
	AnchorContractAddress    string
	AnchorPrivateKeyHex      string
	AnchorGasLimit           uint64
	AnchorConfirmationBlocks uint64
	AnchorCallTimeout        time.Duration

	// Durable entity store (pkg/store, optional Postgres path)
	DatabaseURL      string
	DatabaseRequired bool

	// Rate limiting (ingress)
	RateLimitRPS    float64
	RateLimitBurst  int
	RateLimitMaxAge time.Duration

	// Security
	JWTSecret   string
	CORSOrigins []string
	TLSEnabled  bool

	LogLevel string
}

// Load reads configuration from environment variables. Call Validate()
// before starting the service to confirm required values are present.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),
		MetricsAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("METRICS_PORT", "9090"),
		HealthAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("HEALTH_CHECK_PORT", "8081"),

		ZoneDID:                getEnv("ZONE_DID", ""),
		ZoneVerificationMethod: getEnv("ZONE_VERIFICATION_METHOD", ""),
		ZoneSigningKeyPath:     getEnv("ZONE_SIGNING_KEY_PATH", ""),

		JurisdictionConfigPath: getEnv("JURISDICTION_CONFIG_PATH", "./config/jurisdictions.yaml"),

		CASRootDir: getEnv("CAS_ROOT_DIR", "./data/cas"),

		AuditCapacity: getEnvInt("AUDIT_LOG_CAPACITY", 100000),

		AnchorMode:               getEnv("ANCHOR_MODE", "mock"),
		EthereumRPCURL:           getEnv("ETHEREUM_URL", ""),
		EthChainID:               getEnvInt64("ETH_CHAIN_ID", 11155111),
		AnchorContractAddress:    getEnv("ANCHOR_CONTRACT_ADDRESS", ""),
		AnchorPrivateKeyHex:      getEnv("ANCHOR_PRIVATE_KEY", ""),
		AnchorGasLimit:           uint64(getEnvInt("ANCHOR_GAS_LIMIT", 200000)),
		AnchorConfirmationBlocks: uint64(getEnvInt("ANCHOR_CONFIRMATION_BLOCKS", 6)),
		AnchorCallTimeout:        getEnvDuration("ANCHOR_CALL_TIMEOUT", 30*time.Second),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseRequired: getEnvBool("DATABASE_REQUIRED", false),

		RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 100),
		RateLimitMaxAge: getEnvDuration("RATE_LIMIT_MAX_AGE", 3*time.Minute),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		TLSEnabled:  getEnvBool("TLS_ENABLED", true),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present for
// production operation.
func (c *Config) Validate() error {
	var errors []string

	if c.ZoneDID == "" {
		errors = append(errors, "ZONE_DID is required but not set")
	}
	if c.ZoneVerificationMethod == "" {
		errors = append(errors, "ZONE_VERIFICATION_METHOD is required but not set")
	}
	if c.ZoneSigningKeyPath == "" {
		errors = append(errors, "ZONE_SIGNING_KEY_PATH is required but not set")
	}

	switch c.AnchorMode {
	case "mock":
		// no external configuration required
	case "evm":
		if c.EthereumRPCURL == "" {
			errors = append(errors, "ETHEREUM_URL is required when ANCHOR_MODE=evm")
		}
		if c.AnchorContractAddress == "" {
			errors = append(errors, "ANCHOR_CONTRACT_ADDRESS is required when ANCHOR_MODE=evm")
		}
		if c.AnchorPrivateKeyHex == "" {
			errors = append(errors, "ANCHOR_PRIVATE_KEY is required when ANCHOR_MODE=evm")
		}
	default:
		errors = append(errors, fmt.Sprintf("ANCHOR_MODE %q is not one of mock, evm", c.AnchorMode))
	}

	if c.DatabaseRequired && c.DatabaseURL == "" {
		errors = append(errors, "DATABASE_URL is required when DATABASE_REQUIRED=true")
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET must be at least 32 characters")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

// ValidateForDevelopment performs relaxed validation suitable for local
// development against the mock anchor target.
func (c *Config) ValidateForDevelopment() error {
	if c.ZoneDID == "" {
		return fmt.Errorf("development configuration validation failed:\n  - ZONE_DID is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
