package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	RealtimeWebsocket = "websocket"
	RealtimeNATS      = "nats"

	SessionSQLite   = "sqlite"
	SessionPostgres = "pgx"

	ShareStoreSession = "session"
	ShareStoreMemory  = "memory"
	ShareStoreRedis   = "redis"
)

type Config struct {
	// File is the YAML file the values were read from, empty when none.
	File string

	APIURL             string
	HTTPTimeout        time.Duration
	APIRateLimitRPS    float64
	APIRateLimitBurst  int
	ContractValidation bool

	BreakerEnabled      bool
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration

	RealtimeTransport  string
	RealtimeURL        string
	NATSURL            string
	NATSProgressPrefix string

	SessionDriver string
	SessionDSN    string

	ShareStore     string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ShareAccessTTL time.Duration

	UploadGrace    time.Duration
	UploadMaxBytes int64
	ChatGreeting   string

	LogLevel  string
	LogFormat string
	LogFile   string

	MetricsAddr   string
	WatchDebounce time.Duration
}

// Load resolves every key from the environment, then from the YAML file named
// by PRASHNLY_CONFIG (or the default location when it exists), then from the
// built-in default.
func Load() (Config, error) {
	src, path, err := loadFile()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		File: path,

		APIURL:             src.mustEnv("API_URL", "http://localhost:5000"),
		HTTPTimeout:        src.mustEnvSeconds("HTTP_TIMEOUT_SECONDS", 30),
		APIRateLimitRPS:    src.mustEnvFloat("API_RATE_LIMIT_RPS", 10),
		APIRateLimitBurst:  src.mustEnvInt("API_RATE_LIMIT_BURST", 20),
		ContractValidation: src.mustEnvBool("CONTRACT_VALIDATION", true),

		BreakerEnabled:      src.mustEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:  src.mustEnvInt("BREAKER_MIN_REQUESTS", 5),
		BreakerFailureRatio: src.mustEnvFloat("BREAKER_FAILURE_RATIO", 0.6),
		BreakerOpenTimeout:  src.mustEnvSeconds("BREAKER_OPEN_TIMEOUT_SECONDS", 15),

		RealtimeTransport:  strings.ToLower(src.mustEnv("REALTIME_TRANSPORT", RealtimeWebsocket)),
		RealtimeURL:        src.mustEnv("REALTIME_URL", "ws://localhost:5000/ws"),
		NATSURL:            src.mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSProgressPrefix: src.mustEnv("NATS_PROGRESS_PREFIX", "uploadProgress"),

		SessionDriver: strings.ToLower(src.mustEnv("SESSION_DRIVER", SessionSQLite)),
		SessionDSN:    src.mustEnv("SESSION_DSN", defaultSessionPath()),

		ShareStore:     strings.ToLower(src.mustEnv("SHARE_STORE", ShareStoreMemory)),
		RedisAddr:      src.mustEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  src.mustEnv("REDIS_PASSWORD", ""),
		RedisDB:        src.mustEnvInt("REDIS_DB", 0),
		ShareAccessTTL: src.mustEnvSeconds("SHARE_ACCESS_TTL_SECONDS", 3600),

		UploadGrace:    src.mustEnvMillis("UPLOAD_GRACE_MS", 1500),
		UploadMaxBytes: int64(src.mustEnvInt("UPLOAD_MAX_BYTES", 25<<20)),
		ChatGreeting:   src.mustEnv("CHAT_GREETING", ""),

		LogLevel:  src.mustEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(src.mustEnv("LOG_FORMAT", "json")),
		LogFile:   src.mustEnv("LOG_FILE", ""),

		MetricsAddr:   src.mustEnv("METRICS_ADDR", ""),
		WatchDebounce: src.mustEnvMillis("WATCH_DEBOUNCE_MS", 750),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.RealtimeTransport {
	case RealtimeWebsocket, RealtimeNATS:
	default:
		return fmt.Errorf("config: unknown REALTIME_TRANSPORT %q", c.RealtimeTransport)
	}
	switch c.SessionDriver {
	case SessionSQLite, SessionPostgres:
	default:
		return fmt.Errorf("config: unknown SESSION_DRIVER %q", c.SessionDriver)
	}
	switch c.ShareStore {
	case ShareStoreSession, ShareStoreMemory, ShareStoreRedis:
	default:
		return fmt.Errorf("config: unknown SHARE_STORE %q", c.ShareStore)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown LOG_FORMAT %q", c.LogFormat)
	}
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("config: API_URL is empty")
	}
	return nil
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "prashnly")
	}
	return ".prashnly"
}

func defaultSessionPath() string {
	return filepath.Join(configDir(), "session.db")
}

func loadFile() (source, string, error) {
	path := os.Getenv("PRASHNLY_CONFIG")
	explicit := path != ""
	if !explicit {
		path = filepath.Join(configDir(), "config.yaml")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return source{}, "", nil
		}
		return source{}, "", fmt.Errorf("config: read %s: %w", path, err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return source{}, "", fmt.Errorf("config: parse %s: %w", path, err)
	}
	file := make(map[string]string, len(values))
	for key, value := range values {
		if value == nil {
			continue
		}
		file[strings.ToUpper(strings.TrimSpace(key))] = fmt.Sprint(value)
	}
	return source{file: file}, path, nil
}

// source holds the values of the config file, keyed like the environment.
type source struct {
	file map[string]string
}

func (s source) mustEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := s.file[key]; v != "" {
		return v
	}
	return fallback
}

func (s source) mustEnvInt(key string, fallback int) int {
	v := s.mustEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	v := s.mustEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	v := s.mustEnv(key, "")
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) mustEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(s.mustEnvInt(key, fallback)) * time.Second
}

func (s source) mustEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(s.mustEnvInt(key, fallback)) * time.Millisecond
}
