package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gatekeeper/internal/flagx"
	"github.com/dmitrijs2005/gatekeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Every field is
// optional: absent fields leave the current value untouched, which is why
// the scalar fields are pointers.
type JsonConfig struct {
	EndpointAddrHTTP        *string         `json:"endpoint_addr_http"`
	DatabaseDSN             *string         `json:"database_dsn"`
	LogLevel                *string         `json:"log_level"`
	PasswordHasher          *string         `json:"password_hasher"`
	BcryptCost              *int            `json:"bcrypt_cost"`
	ConsumeRegistrationKeys *bool           `json:"consume_registration_keys"`
	RedisURL                *string         `json:"redis_url"`
	SessionCacheTTL         *timex.Duration `json:"session_cache_ttl"`
	ShutdownTimeout         *timex.Duration `json:"shutdown_timeout"`
	MetricsEnabled          *bool           `json:"metrics_enabled"`
	TrustProxyHeaders       *bool           `json:"trust_proxy_headers"`
}

// parseJson overlays values from the JSON file named by -c/-config.
// Without such a flag nothing is loaded. An unreadable file or invalid JSON
// panics: the server must not start on a half-read configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	if c.EndpointAddrHTTP != nil {
		config.EndpointAddrHTTP = *c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.LogLevel != nil {
		config.LogLevel = *c.LogLevel
	}
	if c.PasswordHasher != nil {
		config.PasswordHasher = *c.PasswordHasher
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.ConsumeRegistrationKeys != nil {
		config.ConsumeRegistrationKeys = *c.ConsumeRegistrationKeys
	}
	if c.RedisURL != nil {
		config.RedisURL = *c.RedisURL
	}
	if c.SessionCacheTTL != nil {
		config.SessionCacheTTL = c.SessionCacheTTL.Duration
	}
	if c.ShutdownTimeout != nil {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.MetricsEnabled != nil {
		config.MetricsEnabled = *c.MetricsEnabled
	}
	if c.TrustProxyHeaders != nil {
		config.TrustProxyHeaders = *c.TrustProxyHeaders
	}
}
