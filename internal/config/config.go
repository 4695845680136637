package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort     string   `mapstructure:"SERVER_PORT"`
	ProxyHeader    string   `mapstructure:"PROXY_HEADER"`
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`

	GeoDBPath         string        `mapstructure:"GEO_DB_PATH"`
	ASNDBPath         string        `mapstructure:"ASN_DB_PATH"`
	GeoDBURL          string        `mapstructure:"GEO_DB_URL"`
	ASNDBURL          string        `mapstructure:"ASN_DB_URL"`
	DBRefreshInterval time.Duration `mapstructure:"DB_REFRESH_INTERVAL"`

	AllowedCountries []string `mapstructure:"ALLOWED_COUNTRIES"`
	AllowedIPs       []string `mapstructure:"ALLOWED_IPS"`

	RedisURL     string        `mapstructure:"REDIS_URL"`
	CacheTTL     time.Duration `mapstructure:"CACHE_TTL"`
	PostgresURL  string        `mapstructure:"POSTGRES_URL"`
	AuditEnabled bool          `mapstructure:"AUDIT_ENABLED"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogFile  string `mapstructure:"LOG_FILE"`
}

func Load() (*Config, error) {
	viper.SetDefault("SERVER_PORT", ":8080")
	viper.SetDefault("PROXY_HEADER", "")
	viper.SetDefault("TRUSTED_PROXIES", []string{})
	viper.SetDefault("GEO_DB_PATH", "data/GeoLite2-City.mmdb")
	viper.SetDefault("ASN_DB_PATH", "data/GeoLite2-ASN.mmdb")
	viper.SetDefault("GEO_DB_URL", "")
	viper.SetDefault("ASN_DB_URL", "")
	viper.SetDefault("DB_REFRESH_INTERVAL", 24*time.Hour)
	viper.SetDefault("ALLOWED_COUNTRIES", []string{"IN", "MY"})
	viper.SetDefault("ALLOWED_IPS", []string{})
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("CACHE_TTL", time.Hour)
	viper.SetDefault("POSTGRES_URL", "")
	viper.SetDefault("AUDIT_ENABLED", false)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FILE", "")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.AllowedCountries = splitList(config.AllowedCountries)
	config.AllowedIPs = splitList(config.AllowedIPs)
	config.TrustedProxies = splitList(config.TrustedProxies)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.GeoDBPath == "" {
		return fmt.Errorf("GEO_DB_PATH is required")
	}
	if c.ProxyHeader != "" && len(c.TrustedProxies) == 0 {
		return fmt.Errorf("TRUSTED_PROXIES is required when PROXY_HEADER is set")
	}
	if c.ASNDBURL != "" && c.ASNDBPath == "" {
		return fmt.Errorf("ASN_DB_PATH is required when ASN_DB_URL is set")
	}
	if c.AuditEnabled && c.PostgresURL == "" {
		return fmt.Errorf("POSTGRES_URL is required when AUDIT_ENABLED=true")
	}
	if c.DBRefreshInterval < 0 {
		return fmt.Errorf("DB_REFRESH_INTERVAL must not be negative")
	}
	return nil
}

// splitList flattens entries that still carry commas or spaces, which
// happens when a list arrives through a single flag value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' }) {
			out = append(out, part)
		}
	}
	return out
}
