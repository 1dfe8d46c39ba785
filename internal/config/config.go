package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env             string
	HTTPAddr        string
	UpstreamBaseURL string
	StoreSlug       string
	FlavorMarker    string

	StorageDriver string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int64
	DatabaseURL   string

	RabbitMQURL    string
	EventsExchange string

	OrderRequestTimeout       time.Duration
	OrderRetryInterval        time.Duration
	OrderRetryWindow          time.Duration
	MenuFetchTimeout          time.Duration
	MenuStreamReconnectDelay  time.Duration
	ConnectivityProbeInterval time.Duration
	WSHeartbeatInterval       time.Duration
	CorsAllowedOrigins        []string

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStorePrefix          string
	ObjectStoreStorageClass    string
}

// source resolves settings from the environment, falling back to the
// values read from AGENT_CONFIG_FILE.
type source struct {
	file map[string]string
}

func Load() (Config, error) {
	var src source
	if path := strings.TrimSpace(os.Getenv("AGENT_CONFIG_FILE")); path != "" {
		values, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = values
	}

	cfg := Config{
		Env:             src.getEnv("APP_ENV", "development"),
		HTTPAddr:        src.getEnv("HTTP_ADDR", "127.0.0.1:8087"),
		UpstreamBaseURL: strings.TrimRight(src.getEnv("UPSTREAM_BASE_URL", "http://localhost:8086/api"), "/"),
		StoreSlug:       src.getEnv("STORE_SLUG", ""),
		FlavorMarker:    src.getEnv("FLAVOR_GROUP_MARKER", "sabores"),

		StorageDriver: strings.ToLower(src.getEnv("STORAGE_DRIVER", "sqlite")),
		SQLitePath:    src.getEnv("SQLITE_PATH", "order-agent.db"),
		RedisAddr:     src.getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: src.getEnv("REDIS_PASSWORD", ""),
		RedisDB:       src.getEnvInt64("REDIS_DB", 0),
		DatabaseURL:   src.getEnv("DATABASE_URL", ""),

		RabbitMQURL:    src.getEnv("RABBITMQ_URL", ""),
		EventsExchange: src.getEnv("EVENTS_EXCHANGE", "ordering.events"),

		OrderRequestTimeout:       src.getEnvDuration("ORDER_REQUEST_TIMEOUT", 15*time.Second),
		OrderRetryInterval:        src.getEnvDuration("ORDER_RETRY_INTERVAL", 5*time.Second),
		OrderRetryWindow:          src.getEnvDuration("ORDER_RETRY_WINDOW", 2*time.Minute),
		MenuFetchTimeout:          src.getEnvDuration("MENU_FETCH_TIMEOUT", 10*time.Second),
		MenuStreamReconnectDelay:  src.getEnvDuration("MENU_STREAM_RECONNECT_DELAY", 3*time.Second),
		ConnectivityProbeInterval: src.getEnvDuration("CONNECTIVITY_PROBE_INTERVAL", 5*time.Second),
		WSHeartbeatInterval:       src.getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),
		CorsAllowedOrigins:        splitCSV(src.getEnv("CORS_ALLOWED_ORIGINS", "")),

		// Object store (Cloudflare R2 / S3-compatible)
		ObjectStoreEndpoint:        src.getEnvFirst([]string{"OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT"}, ""),
		ObjectStoreRegion:          src.getEnvFirst([]string{"OBJECT_STORE_REGION", "R2_REGION"}, "auto"),
		ObjectStoreAccessKeyID:     src.getEnvFirst([]string{"OBJECT_STORE_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID"}, ""),
		ObjectStoreSecretAccessKey: src.getEnvFirst([]string{"OBJECT_STORE_SECRET_ACCESS_KEY", "R2_SECRET_ACCESS_KEY"}, ""),
		ObjectStoreBucket:          src.getEnvFirst([]string{"OBJECT_STORE_BUCKET", "R2_BUCKET"}, ""),
		ObjectStorePrefix:          src.getEnv("OBJECT_STORE_PREFIX", "order-agent"),
		ObjectStoreStorageClass:    src.getEnvFirst([]string{"OBJECT_STORE_STORAGE_CLASS", "R2_STORAGE_CLASS"}, "STANDARD"),
	}

	if cfg.StoreSlug == "" {
		return cfg, fmt.Errorf("STORE_SLUG is required")
	}
	if cfg.OrderRequestTimeout <= 0 {
		cfg.OrderRequestTimeout = 15 * time.Second
	}
	if cfg.OrderRetryInterval <= 0 {
		cfg.OrderRetryInterval = 5 * time.Second
	}

	// Back-compat: allow R2_ACCOUNT_ID -> endpoint
	if strings.TrimSpace(cfg.ObjectStoreEndpoint) == "" {
		accountID := strings.TrimSpace(src.lookup("R2_ACCOUNT_ID"))
		if accountID != "" {
			cfg.ObjectStoreEndpoint = "https://" + accountID + ".r2.cloudflarestorage.com"
		}
	}

	return cfg, nil
}

// readFile parses a flat YAML mapping of environment variable names to
// values, e.g. `STORE_SLUG: pizzaria`.
func readFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	values := make(map[string]string, len(doc))
	for k, v := range doc {
		key := strings.ToUpper(strings.TrimSpace(k))
		switch t := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				parts = append(parts, fmt.Sprint(p))
			}
			values[key] = strings.Join(parts, ",")
		default:
			values[key] = fmt.Sprint(t)
		}
	}
	return values, nil
}

func (s source) lookup(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(s.file[key])
}

func (s source) getEnv(key, fallback string) string {
	value := s.lookup(key)
	if value == "" {
		return fallback
	}
	return value
}

func (s source) getEnvFirst(keys []string, fallback string) string {
	for _, k := range keys {
		value := s.lookup(k)
		if value != "" {
			return value
		}
	}
	return fallback
}

func (s source) getEnvInt64(key string, fallback int64) int64 {
	value := s.lookup(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := s.lookup(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
