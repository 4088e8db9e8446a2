package config

import "time"

// Server holds development backend configuration values.
type Server struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath       string        `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret          string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer          string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience        string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL           time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultServer returns backend configuration with reasonable starter defaults.
func DefaultServer() Server {
	return Server{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		DatabasePath:       "wirechat.db",
		JWTSecret:          "change-me",
		JWTIssuer:          "wirechat",
		JWTAudience:        "wirechat-client",
		TokenTTL:           24 * time.Hour,
		MaxMessageBytes:    1 << 20,
		RateLimitPerMinute: 120,
		LogLevel:           "info",
	}
}

// Client holds chat client configuration values.
type Client struct {
	ServerURL      string        `mapstructure:"server_url" yaml:"server_url"`
	WSURL          string        `mapstructure:"ws_url" yaml:"ws_url"`
	Username       string        `mapstructure:"username" yaml:"username"`
	Token          string        `mapstructure:"token" yaml:"token"`
	HistoryLimit   int           `mapstructure:"history_limit" yaml:"history_limit"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// DefaultClient returns client configuration pointing at a local backend.
func DefaultClient() Client {
	return Client{
		ServerURL:      "http://localhost:8080",
		WSURL:          "ws://localhost:8080/ws",
		HistoryLimit:   100,
		LogLevel:       "warn",
		RequestTimeout: 10 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other into the receiver.
func (c *Client) UpdateFrom(other Client) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.WSURL != "" {
		c.WSURL = other.WSURL
	}
	if other.Username != "" {
		c.Username = other.Username
	}
	if other.Token != "" {
		c.Token = other.Token
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.RequestTimeout != 0 {
		c.RequestTimeout = other.RequestTimeout
	}
}
