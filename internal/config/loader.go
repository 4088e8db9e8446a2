package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "WIRECHAT_CONFIG_DEFAULT_PATH"
	serverConfigName     = "server.yaml"
	clientConfigName     = "client.yaml"
)

// LoadServer builds backend configuration and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func LoadServer(logger *zerolog.Logger, explicitPath string) (Server, string, error) {
	cfg := DefaultServer()
	path := resolveConfigPath(explicitPath, serverConfigName)
	err := load(logger, path, cfg, map[string]any{
		"addr":                  cfg.Addr,
		"read_header_timeout":   cfg.ReadHeaderTimeout,
		"shutdown_timeout":      cfg.ShutdownTimeout,
		"database_path":         cfg.DatabasePath,
		"jwt_secret":            cfg.JWTSecret,
		"jwt_issuer":            cfg.JWTIssuer,
		"jwt_audience":          cfg.JWTAudience,
		"token_ttl":             cfg.TokenTTL,
		"max_message_bytes":     cfg.MaxMessageBytes,
		"rate_limit_per_minute": cfg.RateLimitPerMinute,
		"log_level":             cfg.LogLevel,
	}, &cfg)
	return cfg, path, err
}

// LoadClient builds chat client configuration and returns the resolved path.
func LoadClient(logger *zerolog.Logger, explicitPath string) (Client, string, error) {
	cfg := DefaultClient()
	path := resolveConfigPath(explicitPath, clientConfigName)
	err := load(logger, path, cfg, map[string]any{
		"server_url":      cfg.ServerURL,
		"ws_url":          cfg.WSURL,
		"username":        cfg.Username,
		"token":           cfg.Token,
		"history_limit":   cfg.HistoryLimit,
		"log_level":       cfg.LogLevel,
		"request_timeout": cfg.RequestTimeout,
	}, &cfg)
	return cfg, path, err
}

// SaveClient writes cfg to path, replacing the file. Used after login.
func SaveClient(path string, cfg Client) error {
	return writeYAML(path, cfg)
}

func load(logger *zerolog.Logger, path string, defaults any, keys map[string]any, out any) error {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range keys {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("WIRECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config: %w", err)
		}
		if writeErr := writeYAML(path, defaults); writeErr != nil {
			if logger != nil {
				logger.Warn().Err(writeErr).Str("path", path).Msg("failed to write default config")
			}
		} else {
			if logger != nil {
				logger.Info().Str("path", path).Msg("created default config")
			}
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", path).Msg("failed to read config after writing default")
			}
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func resolveConfigPath(explicitPath, name string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, name)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return name
	}
	return filepath.Join(cwd, name)
}

func writeYAML(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
