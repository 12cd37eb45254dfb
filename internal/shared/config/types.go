package config

import "fmt"

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	BaseURL        string   `mapstructure:"base_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	AccessExpMinutes int    `mapstructure:"access_exp_minutes"`
}

type AuthConfig struct {
	JWT JWTConfig `mapstructure:"jwt"`
}

// VaultConfig holds the key used to encrypt tokens and feed URLs at rest.
// The key must decode to exactly 32 bytes (AES-256).
type VaultConfig struct {
	Key string `mapstructure:"key"`
}

type GoogleOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// CalendlyOAuthConfig configures the scheduling-service OAuth client.
// Endpoint URLs are configurable so tests and staging can point at a stub.
type CalendlyOAuthConfig struct {
	ClientID    string `mapstructure:"client_id"`
	RedirectURL string `mapstructure:"redirect_url"`
	AuthURL     string `mapstructure:"auth_url"`
	TokenURL    string `mapstructure:"token_url"`
	RevokeURL   string `mapstructure:"revoke_url"`
}

type OAuthConfig struct {
	Google   GoogleOAuthConfig   `mapstructure:"google"`
	Calendly CalendlyOAuthConfig `mapstructure:"calendly"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SyncConfig tunes the calendar synchronization engine.
type SyncConfig struct {
	IntervalMinutes        int `mapstructure:"interval_minutes"`
	BatchSize              int `mapstructure:"batch_size"`
	RateLimitWindowMinutes int `mapstructure:"rate_limit_window_minutes"`
	FetchTimeoutSeconds    int `mapstructure:"fetch_timeout_seconds"`
	ProbeTimeoutSeconds    int `mapstructure:"probe_timeout_seconds"`
	AccountTimeoutSeconds  int `mapstructure:"account_timeout_seconds"`
}
