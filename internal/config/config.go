package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Transports supported by the serve command.
const (
	TransportWhatsApp = "whatsapp"
	TransportTelegram = "telegram"
)

// Session backends.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// Config holds runtime settings read from the environment.
type Config struct {
	AppEnv           string
	LogLevel         string
	LogFormat        string
	HTTPListenAddr   string
	PublicBasePath   string
	MetricsNamespace string

	DatabaseURL    string
	SupabaseSchema string
	SQLitePath     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	SessionBackend  string
	SessionTTL      time.Duration
	CatalogCacheTTL time.Duration
	PageSize        int

	Transport         string
	WhatsAppStorePath string
	WhatsAppLogLevel  string
	TelegramToken     string

	BusinessTimezone string
	Location         *time.Location
}

// Load reads the configuration from environment variables. Callers load a
// .env file beforehand when they want one.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "text")),
		HTTPListenAddr:    getEnv("HTTP_LISTEN_ADDR", ":8080"),
		PublicBasePath:    getEnv("PUBLIC_BASE_PATH", ""),
		MetricsNamespace:  getEnv("METRICS_NAMESPACE", "opsbot"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SupabaseSchema:    getEnv("SUPABASE_SCHEMA", "public"),
		SQLitePath:        getEnv("SQLITE_PATH", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		SessionBackend:    strings.ToLower(getEnv("SESSION_BACKEND", SessionMemory)),
		Transport:         strings.ToLower(getEnv("TRANSPORT", TransportWhatsApp)),
		WhatsAppStorePath: getEnv("WHATSAPP_STORE_PATH", "whatsmeow.db"),
		WhatsAppLogLevel:  getEnv("WHATSAPP_LOG_LEVEL", "INFO"),
		TelegramToken:     getEnv("TELEGRAM_TOKEN", ""),
		BusinessTimezone:  getEnv("BUSINESS_TIMEZONE", "UTC"),
	}

	var errs []error
	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.RedisTLS, err = getBool("REDIS_TLS", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.CatalogCacheTTL, err = getDuration("CATALOG_CACHE_TTL", 5*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.PageSize, err = getInt("PAGE_SIZE", 8); err != nil {
		errs = append(errs, err)
	}
	if cfg.Location, err = time.LoadLocation(cfg.BusinessTimezone); err != nil {
		errs = append(errs, fmt.Errorf("BUSINESS_TIMEZONE: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" && c.SQLitePath == "" {
		errs = append(errs, errors.New("DATABASE_URL or SQLITE_PATH is required"))
	}
	switch c.SessionBackend {
	case SessionMemory:
	case SessionRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis session backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND %q is not supported", c.SessionBackend))
	}
	switch c.Transport {
	case TransportWhatsApp:
	case TransportTelegram:
		if c.TelegramToken == "" {
			errs = append(errs, errors.New("TELEGRAM_TOKEN is required for the telegram transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("TRANSPORT %q is not supported", c.Transport))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, errors.New("SESSION_TTL must not be negative"))
	}
	return errors.Join(errs...)
}

// UsesSQLite reports whether the SQLite repository is selected. Postgres wins
// when both are configured.
func (c *Config) UsesSQLite() bool {
	return c.DatabaseURL == "" && c.SQLitePath != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: parse int %q: %w", key, raw, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: parse bool %q: %w", key, raw, err)
	}
	return v, nil
}

// getDuration accepts Go durations ("90s", "2h") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: parse duration %q: %w", key, raw, err)
	}
	return v, nil
}
