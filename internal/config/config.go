package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrMasterKeyRequired is returned when a data directory is configured
// without a master key to seal the stored private keys.
var ErrMasterKeyRequired = errors.New("ECSIGN_MASTER_KEY is required when ECSIGN_DATA_DIR is set")

type Config struct {
	GRPCAddr        string
	TLSCert         string
	TLSKey          string
	AuthToken       string
	AuditBuffer     int
	RateLimitRPS    int
	DataDir         string
	MasterKey       []byte
	ShutdownTimeout time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		GRPCAddr:        envOr("ECSIGN_GRPC_ADDR", ":50051"),
		TLSCert:         os.Getenv("ECSIGN_TLS_CERT"),
		TLSKey:          os.Getenv("ECSIGN_TLS_KEY"),
		AuthToken:       envOr("ECSIGN_AUTH_TOKEN", "dev-token"),
		AuditBuffer:     envInt("ECSIGN_AUDIT_BUFFER", 1024),
		RateLimitRPS:    envInt("ECSIGN_RATE_LIMIT_RPS", 100),
		DataDir:         envOr("ECSIGN_DATA_DIR", ""),
		ShutdownTimeout: envDuration("ECSIGN_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.AuditBuffer <= 0 {
		return Config{}, fmt.Errorf("ECSIGN_AUDIT_BUFFER: must be positive, got %d", cfg.AuditBuffer)
	}

	if v := os.Getenv("ECSIGN_MASTER_KEY"); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return Config{}, fmt.Errorf("ECSIGN_MASTER_KEY: %w", err)
		}
		if len(key) < 32 {
			return Config{}, fmt.Errorf("ECSIGN_MASTER_KEY: need at least 32 bytes, got %d", len(key))
		}
		cfg.MasterKey = key
	}
	if cfg.DataDir != "" && cfg.MasterKey == nil {
		return Config{}, ErrMasterKeyRequired
	}
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return Config{}, errors.New("ECSIGN_TLS_CERT and ECSIGN_TLS_KEY must be set together")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
