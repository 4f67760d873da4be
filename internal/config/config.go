package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName       = "Proxyward"
	defaultAppEnv        = "development"
	defaultLogLevel      = "info"
	defaultOpsPort       = "8080"
	defaultTurboPort     = "8443"
	defaultStablePort    = "443"
	defaultSessionMaxAge = 24 * time.Hour
	defaultStuckAfter    = time.Hour
	defaultWizardDevices = 5
	defaultWizardDays    = 0
	defaultShutdownDelay = 10 * time.Second
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string
	AppEnv   string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	BotToken   string
	OperatorID int64

	ProxyServer     string
	ProxyTurboPort  string
	ProxyStablePort string
	ProxySecret     string

	SessionMaxAge        time.Duration
	StuckAfter           time.Duration
	WizardDefaultDevices int
	WizardDefaultDays    int

	OpsPort      string
	OpsTokenHash string

	ShutdownPeriod time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:              getEnv("APP_NAME", defaultAppName),
		AppEnv:               getEnv("APP_ENV", defaultAppEnv),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		BotToken:             os.Getenv("BOT_TOKEN"),
		ProxyServer:          os.Getenv("PROXY_SERVER"),
		ProxyTurboPort:       getEnv("PROXY_TURBO_PORT", defaultTurboPort),
		ProxyStablePort:      getEnv("PROXY_STABLE_PORT", defaultStablePort),
		ProxySecret:          os.Getenv("PROXY_SECRET"),
		SessionMaxAge:        defaultSessionMaxAge,
		StuckAfter:           defaultStuckAfter,
		WizardDefaultDevices: defaultWizardDevices,
		WizardDefaultDays:    defaultWizardDays,
		OpsPort:              getEnv("OPS_PORT", defaultOpsPort),
		OpsTokenHash:         os.Getenv("OPS_TOKEN_HASH"),
		ShutdownPeriod:       defaultShutdownDelay,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.BotToken == "" {
		return Config{}, fmt.Errorf("BOT_TOKEN must be set")
	}

	operator := os.Getenv("OPERATOR_ID")
	if operator == "" {
		return Config{}, fmt.Errorf("OPERATOR_ID must be set")
	}
	id, err := strconv.ParseInt(operator, 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid OPERATOR_ID: %w", err)
	}
	cfg.OperatorID = id

	if cfg.SessionMaxAge, err = durationEnv("SESSION_MAX_AGE", cfg.SessionMaxAge); err != nil {
		return Config{}, err
	}
	if cfg.StuckAfter, err = durationEnv("STUCK_AFTER", cfg.StuckAfter); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.WizardDefaultDevices, err = intEnv("WIZARD_DEFAULT_DEVICES", cfg.WizardDefaultDevices); err != nil {
		return Config{}, err
	}
	if cfg.WizardDefaultDays, err = intEnv("WIZARD_DEFAULT_DAYS", cfg.WizardDefaultDays); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// OpsAddress returns the ops listen address in the format Fiber expects.
func (c Config) OpsAddress() string {
	if strings.HasPrefix(c.OpsPort, ":") {
		return c.OpsPort
	}
	return fmt.Sprintf(":%s", c.OpsPort)
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
