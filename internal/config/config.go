package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                   string `yaml:"port"`
	DatabaseURL            string `yaml:"databaseURL"`
	RedisAddr              string `yaml:"redisAddr"`
	RedisPassword          string `yaml:"redisPassword"`
	LogLevel               string `yaml:"logLevel"`
	SpotifyClientID        string `yaml:"spotifyClientId"`
	SpotifyClientSecret    string `yaml:"spotifyClientSecret"`
	AppleTeamID            string `yaml:"appleTeamId"`
	AppleKeyID             string `yaml:"appleKeyId"`
	ApplePrivateKeyPath    string `yaml:"applePrivateKeyPath"`
	AppleStorefront        string `yaml:"appleStorefront"`
	AppleDevTokenTTL       string `yaml:"appleDevTokenTTL"`
	RoundEventStream       string `yaml:"roundEventStream"`
	SyncRateLimitPerMinute int    `yaml:"syncRateLimitPerMinute"`
	PlatformRequestsPerSec int    `yaml:"platformRequestsPerSec"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		cfg.SpotifyClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		cfg.SpotifyClientSecret = v
	}
	if v := os.Getenv("APPLE_TEAM_ID"); v != "" {
		cfg.AppleTeamID = v
	}
	if v := os.Getenv("APPLE_KEY_ID"); v != "" {
		cfg.AppleKeyID = v
	}
	if v := os.Getenv("APPLE_PRIVATE_KEY_PATH"); v != "" {
		cfg.ApplePrivateKeyPath = v
	}
	if v := os.Getenv("APPLE_STOREFRONT"); v != "" {
		cfg.AppleStorefront = v
	}
	if v := os.Getenv("ROUND_EVENT_STREAM"); v != "" {
		cfg.RoundEventStream = v
	}
	if v := os.Getenv("SYNC_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SyncRateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if cfg.SpotifyClientID == "" || cfg.SpotifyClientSecret == "" {
		return errors.New("config: spotifyClientId and spotifyClientSecret are required")
	}
	// Apple Music is optional; configuring it partially is always a mistake.
	appleSet := cfg.AppleTeamID != "" || cfg.AppleKeyID != "" || cfg.ApplePrivateKeyPath != ""
	appleComplete := cfg.AppleTeamID != "" && cfg.AppleKeyID != "" && cfg.ApplePrivateKeyPath != ""
	if appleSet && !appleComplete {
		return errors.New("config: appleTeamId, appleKeyId and applePrivateKeyPath must be set together")
	}
	if cfg.SyncRateLimitPerMinute < 0 {
		return errors.New("config: syncRateLimitPerMinute must be >= 0")
	}
	if cfg.PlatformRequestsPerSec < 0 {
		return errors.New("config: platformRequestsPerSec must be >= 0")
	}
	return nil
}

// AppleEnabled reports whether the Apple Music adapter can be constructed.
func (c FileConfig) AppleEnabled() bool {
	return c.AppleTeamID != "" && c.AppleKeyID != "" && c.ApplePrivateKeyPath != ""
}

// ParseAppleDevTokenTTL parses the optional developer token TTL string.
func ParseAppleDevTokenTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid appleDevTokenTTL duration: %w", err)
	}
	return dur, nil
}
