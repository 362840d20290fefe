package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	// DIALECTC_SERVER_PORT, DIALECTC_ORACLE_PROVIDER, ...
	v.SetEnvPrefix("DIALECTC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			MaxSourceBytes: v.GetInt("server.max_source_bytes"),
		},
		Rules: RulesConfig{
			Dir:      v.GetString("rules.dir"),
			Watch:    v.GetBool("rules.watch"),
			Debounce: v.GetDuration("rules.debounce"),
		},
		Oracle: OracleConfig{
			Provider:    strings.ToLower(v.GetString("oracle.provider")),
			Model:       v.GetString("oracle.model"),
			BaseURL:     v.GetString("oracle.base_url"),
			Temperature: v.GetFloat64("oracle.temperature"),
			Timeout:     v.GetDuration("oracle.timeout"),
			MaxRetries:  v.GetInt("oracle.max_retries"),
		},
		Verifier: VerifierConfig{
			Javac:   v.GetString("verifier.javac"),
			Timeout: v.GetDuration("verifier.timeout"),
			Unit:    v.GetString("verifier.unit"),
		},
		Journal: JournalConfig{
			DBURL: v.GetString("journal.db_url"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.max_source_bytes", d.Server.MaxSourceBytes)

	v.SetDefault("rules.dir", d.Rules.Dir)
	v.SetDefault("rules.watch", d.Rules.Watch)
	v.SetDefault("rules.debounce", d.Rules.Debounce.String())

	v.SetDefault("oracle.provider", d.Oracle.Provider)
	v.SetDefault("oracle.model", d.Oracle.Model)
	v.SetDefault("oracle.base_url", d.Oracle.BaseURL)
	v.SetDefault("oracle.temperature", d.Oracle.Temperature)
	v.SetDefault("oracle.timeout", d.Oracle.Timeout.String())
	v.SetDefault("oracle.max_retries", d.Oracle.MaxRetries)

	v.SetDefault("verifier.javac", d.Verifier.Javac)
	v.SetDefault("verifier.timeout", d.Verifier.Timeout.String())
	v.SetDefault("verifier.unit", d.Verifier.Unit)

	v.SetDefault("journal.db_url", d.Journal.DBURL)
}

var oracleProviders = map[string]bool{"none": true, "gemini": true, "openai": true}

// validateConfig checks ranges and enumerations.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.MaxSourceBytes <= 0 {
		return fmt.Errorf("max_source_bytes must be positive, got %d", cfg.Server.MaxSourceBytes)
	}
	if cfg.Rules.Dir == "" {
		return fmt.Errorf("rules.dir must not be empty")
	}
	if cfg.Rules.Debounce < 0 {
		return fmt.Errorf("rules.debounce must not be negative, got %v", cfg.Rules.Debounce)
	}
	if !oracleProviders[cfg.Oracle.Provider] {
		return fmt.Errorf("oracle.provider must be one of none, gemini, openai, got %q", cfg.Oracle.Provider)
	}
	if cfg.Oracle.Temperature < 0 || cfg.Oracle.Temperature > 2 {
		return fmt.Errorf("oracle.temperature must be between 0 and 2, got %v", cfg.Oracle.Temperature)
	}
	if cfg.Oracle.MaxRetries <= 0 {
		return fmt.Errorf("oracle.max_retries must be positive, got %d", cfg.Oracle.MaxRetries)
	}
	if cfg.Verifier.Timeout <= 0 {
		return fmt.Errorf("verifier.timeout must be positive, got %v", cfg.Verifier.Timeout)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use DIALECTC_HMAC_SECRET environment variable)")
	}
	if v.InConfig("oracle.api_key") || v.InConfig("api_key") {
		return fmt.Errorf("oracle API keys not allowed in config files (use DIALECTC_ORACLE_API_KEY environment variable)")
	}
	return nil
}
