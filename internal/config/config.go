package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type BackendConfig struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration
}

// FallbackConfig controls what the request client serves when the backend
// cannot be reached.
type FallbackConfig struct {
	Mode    string
	Methods []string
}

type CacheConfig struct {
	Backend       string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type PollConfig struct {
	LogsInterval   time.Duration
	FeedInterval   time.Duration
	StatusInterval time.Duration
}

// StorageConfig points at an S3-compatible bucket used to archive uploaded
// clips. Archiving is off unless endpoint, keys and bucket are all set.
type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
}

func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != "" && s.Bucket != ""
}

type UploadConfig struct {
	MaxBytes int64
	Dir      string
}

type LogConfig struct {
	Level string
	File  string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	Backend     BackendConfig
	Fallback    FallbackConfig
	Cache       CacheConfig
	DB          DBConfig
	Poll        PollConfig
	Storage     StorageConfig
	Upload      UploadConfig
	Log         LogConfig
}

const (
	FallbackMock  = "mock"
	FallbackCache = "cache"
	FallbackOff   = "off"

	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// Load reads app.env (if present) and the environment. An explicit file path
// overrides the default search locations.
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("app")
		v.SetConfigType("env")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("./deploy")
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && file != "" {
		return nil, fmt.Errorf("read config %s: %w", file, err)
	}

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		Backend: BackendConfig{
			BaseURL:       strings.TrimRight(v.GetString("BACKEND_URL"), "/"),
			Timeout:       v.GetDuration("BACKEND_TIMEOUT"),
			UploadTimeout: v.GetDuration("UPLOAD_TIMEOUT"),
		},
		Fallback: FallbackConfig{
			Mode:    strings.ToLower(strings.TrimSpace(v.GetString("FALLBACK_MODE"))),
			Methods: splitList(v.GetString("FALLBACK_METHODS")),
		},
		Cache: CacheConfig{
			Backend:       strings.ToLower(strings.TrimSpace(v.GetString("CACHE_BACKEND"))),
			TTL:           v.GetDuration("CACHE_TTL"),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Poll: PollConfig{
			LogsInterval:   v.GetDuration("POLL_LOGS_INTERVAL"),
			FeedInterval:   v.GetDuration("POLL_FEED_INTERVAL"),
			StatusInterval: v.GetDuration("POLL_STATUS_INTERVAL"),
		},
		Storage: StorageConfig{
			Endpoint:      strings.TrimSpace(v.GetString("R2_ENDPOINT")),
			AccessKey:     strings.TrimSpace(v.GetString("R2_ACCESS_KEY_ID")),
			SecretKey:     strings.TrimSpace(v.GetString("R2_SECRET_ACCESS_KEY")),
			Bucket:        strings.TrimSpace(v.GetString("R2_BUCKET")),
			Region:        strings.TrimSpace(v.GetString("R2_REGION")),
			PublicBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("R2_PUBLIC_BASE_URL")), "/"),
		},
		Upload: UploadConfig{
			MaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
			Dir:      v.GetString("UPLOAD_DIR"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
			File:  v.GetString("LOG_FILE"),
		},
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3000
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8001"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 10 * time.Second
	}
	if cfg.Backend.UploadTimeout == 0 {
		cfg.Backend.UploadTimeout = 5 * time.Minute
	}
	if cfg.Fallback.Mode == "" {
		cfg.Fallback.Mode = FallbackMock
	}
	if len(cfg.Fallback.Methods) == 0 {
		cfg.Fallback.Methods = []string{"GET"}
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheMemory
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}
	if cfg.Cache.RedisAddr == "" {
		cfg.Cache.RedisAddr = "localhost:6379"
	}
	if cfg.Poll.LogsInterval == 0 {
		cfg.Poll.LogsInterval = 2 * time.Second
	}
	if cfg.Poll.FeedInterval == 0 {
		cfg.Poll.FeedInterval = 3 * time.Second
	}
	if cfg.Poll.StatusInterval == 0 {
		cfg.Poll.StatusInterval = 30 * time.Second
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "auto"
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 512 << 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", cfg.Backend.BaseURL)
	}
	switch cfg.Fallback.Mode {
	case FallbackMock, FallbackCache, FallbackOff:
	default:
		return fmt.Errorf("FALLBACK_MODE must be one of mock, cache, off, got %q", cfg.Fallback.Mode)
	}
	switch cfg.Cache.Backend {
	case CacheMemory, CacheRedis:
	case CachePostgres:
		if cfg.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required when CACHE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of memory, redis, postgres, got %q", cfg.Cache.Backend)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
