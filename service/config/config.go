package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Known network names. The signing agent and the mirror node both key their
// behavior off this value, so anything else is rejected at startup.
const (
	NetworkMainnet    = "mainnet"
	NetworkTestnet    = "testnet"
	NetworkPreviewnet = "previewnet"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Network configuration
	Network       string
	JSONRPCURL    string
	MirrorNodeURL string

	// Wallet pairing configuration
	WalletConnectProjectID string

	// Contract configuration
	FactoryAddress string
	USDCTokenID    string

	// Local storage configuration
	SessionDBPath string

	// Transaction configuration
	TxTimeout           time.Duration
	ReceiptPollInterval time.Duration

	// Display configuration
	NairaPerUSD float64

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.Network = getEnvOrDefault("AJO_NETWORK", NetworkTestnet)
	switch cfg.Network {
	case NetworkMainnet, NetworkTestnet, NetworkPreviewnet:
	default:
		errs = append(errs, fmt.Errorf("AJO_NETWORK: unknown network %q", cfg.Network))
	}

	cfg.JSONRPCURL = os.Getenv("AJO_JSONRPC_URL")
	if cfg.JSONRPCURL == "" {
		errs = append(errs, fmt.Errorf("AJO_JSONRPC_URL is required"))
	}

	cfg.MirrorNodeURL = os.Getenv("AJO_MIRROR_NODE_URL")
	if cfg.MirrorNodeURL == "" {
		errs = append(errs, fmt.Errorf("AJO_MIRROR_NODE_URL is required"))
	}

	cfg.WalletConnectProjectID = os.Getenv("AJO_WALLETCONNECT_PROJECT_ID")
	if cfg.WalletConnectProjectID == "" {
		errs = append(errs, fmt.Errorf("AJO_WALLETCONNECT_PROJECT_ID is required"))
	}

	cfg.FactoryAddress = os.Getenv("AJO_FACTORY_ADDRESS")
	if cfg.FactoryAddress == "" {
		errs = append(errs, fmt.Errorf("AJO_FACTORY_ADDRESS is required"))
	}

	cfg.USDCTokenID = os.Getenv("AJO_USDC_TOKEN_ID")

	cfg.SessionDBPath = getEnvOrDefault("AJO_SESSION_DB_PATH", defaultSessionDBPath())

	txTimeout, err := parseDuration("AJO_TX_TIMEOUT", "60s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.TxTimeout = txTimeout
	}

	pollInterval, err := parseDuration("AJO_RECEIPT_POLL_INTERVAL", "2s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ReceiptPollInterval = pollInterval
	}

	nairaRate, err := parseFloat("AJO_NAIRA_PER_USD", 1600)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.NairaPerUSD = nairaRate
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for CLI initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	switch c.Network {
	case NetworkMainnet, NetworkTestnet, NetworkPreviewnet:
	default:
		errs = append(errs, fmt.Errorf("Network: unknown network %q", c.Network))
	}

	if c.JSONRPCURL == "" {
		errs = append(errs, fmt.Errorf("JSONRPCURL is required"))
	}

	if c.MirrorNodeURL == "" {
		errs = append(errs, fmt.Errorf("MirrorNodeURL is required"))
	}

	if c.WalletConnectProjectID == "" {
		errs = append(errs, fmt.Errorf("WalletConnectProjectID is required"))
	}

	if c.FactoryAddress == "" {
		errs = append(errs, fmt.Errorf("FactoryAddress is required"))
	}

	if c.TxTimeout < time.Second {
		errs = append(errs, fmt.Errorf("TxTimeout must be at least 1 second"))
	}

	if c.ReceiptPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ReceiptPollInterval must be positive"))
	}

	if c.ReceiptPollInterval > c.TxTimeout {
		errs = append(errs, fmt.Errorf("ReceiptPollInterval (%v) cannot be greater than TxTimeout (%v)",
			c.ReceiptPollInterval, c.TxTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// defaultSessionDBPath returns the default location of the local session database.
func defaultSessionDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ajolink.db"
	}
	return filepath.Join(home, ".ajolink", "ajolink.db")
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}
