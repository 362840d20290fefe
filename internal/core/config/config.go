// Package config provides configuration management for dialectc.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the full dialectc configuration.
type Config struct {
	Server   ServerConfig
	Rules    RulesConfig
	Oracle   OracleConfig
	Verifier VerifierConfig
	Journal  JournalConfig
}

// ServerConfig holds configuration for the gRPC translation service.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	MaxSourceBytes int
}

// RulesConfig locates the rule store and controls hot reload.
type RulesConfig struct {
	Dir      string
	Watch    bool
	Debounce time.Duration
}

// OracleConfig selects the language model. The API key is never read from
// the config file; see OracleAPIKey.
type OracleConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// VerifierConfig controls compilation of generated units.
type VerifierConfig struct {
	Javac   string
	Timeout time.Duration
	Unit    string
}

// JournalConfig locates the run journal database.
type JournalConfig struct {
	DBURL string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50051,
			RequestTimeout: 2 * time.Minute,
			MaxSourceBytes: 1024 * 1024,
		},
		Rules: RulesConfig{
			Dir:      "./runtime/kb",
			Watch:    true,
			Debounce: 250 * time.Millisecond,
		},
		Oracle: OracleConfig{
			Provider:    "none",
			Temperature: 0.2,
			Timeout:     60 * time.Second,
			MaxRetries:  3,
		},
		Verifier: VerifierConfig{
			Javac:   "javac",
			Timeout: 60 * time.Second,
			Unit:    "TranslatedProgram",
		},
		Journal: JournalConfig{
			DBURL: "sqlite://./runtime/dialectc.db",
		},
	}
}

// OracleAPIKey returns the oracle API key from the environment.
// DIALECTC_ORACLE_API_KEY wins; the gemini provider falls back to
// GEMINI_API_KEY.
func OracleAPIKey(provider string) string {
	if v := strings.TrimSpace(os.Getenv("DIALECTC_ORACLE_API_KEY")); v != "" {
		return v
	}
	if strings.EqualFold(provider, "gemini") {
		return strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	return ""
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports DIALECTC_HMAC_SECRET (single) and DIALECTC_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(key, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' found in environment variables (check DIALECTC_HMAC_SECRET and DIALECTC_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
		return nil
	}

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("DIALECTC_HMAC_SECRET"); val != "" {
		if err := add("DIALECTC_HMAC_SECRET", val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets keep old and new keys valid during rotation.
	for i := 1; ; i++ {
		key := fmt.Sprintf("DIALECTC_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecret decodes a base64-encoded HMAC secret.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = ParseHMACSecret(parts[1])
	if err != nil {
		return "", nil, err
	}
	return secretID, secret, nil
}
