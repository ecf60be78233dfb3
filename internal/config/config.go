package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

type PostgresConfig struct {
	DSN              string
	MaxOpen          int
	MaxIdle          int
	ConnMaxLifetime  time.Duration
	StatementTimeout time.Duration
	Migrate          bool
}

type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

type StorageConfig struct {
	Endpoint   string
	PublicURL  string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
	Region     string
}

type SecurityConfig struct {
	JWTAccessSecret  string
	SignatureSecret  string
	RequireSignature bool
}

type CacheConfig struct {
	Enabled    bool
	Prefix     string
	CatalogTTL time.Duration
	AccessTTL  time.Duration
}

type FeedConfig struct {
	ContinueWatchingLimit int
	NewItemWindowDays     int
	DefaultCategory       string
}

type EventsConfig struct {
	Stream string
	MaxLen int64
}

type SchedulerConfig struct {
	Enabled        bool
	IntegritySweep string
}

type WorkerConfig struct {
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	MinIdle       time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Cache            CacheConfig
	Feed             FeedConfig
	Events           EventsConfig
	Scheduler        SchedulerConfig
	Worker           WorkerConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("MEMBERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Security.JWTAccessSecret == "" {
		return errors.New("config: security.jwtaccesssecret is required")
	}
	if c.Security.RequireSignature && c.Security.SignatureSecret == "" {
		return errors.New("config: security.signaturesecret is required when security.requiresignature is set")
	}
	if c.Feed.ContinueWatchingLimit < 1 || c.Feed.ContinueWatchingLimit > 100 {
		return errors.New("config: feed.continuewatchinglimit must be between 1 and 100")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return errors.New("config: http.requesttimeout must be positive")
	}
	return nil
}

// setDefaults registers every key, secrets included: viper only unmarshals
// environment overrides for keys it already knows about.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("allowcorsorigins", "")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.requesttimeout", "15s")
	v.SetDefault("http.maxuploadbytes", 10<<20)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.statementtimeout", "10s")
	v.SetDefault("postgres.migrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dialtimeout", "2s")
	v.SetDefault("redis.commandtimeout", "500ms")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicurl", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucketname", "catalog-media")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.jwtaccesssecret", "")
	v.SetDefault("security.signaturesecret", "")
	v.SetDefault("security.requiresignature", false)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.prefix", "members")
	v.SetDefault("cache.catalogttl", "10m")
	v.SetDefault("cache.accessttl", "5m")

	v.SetDefault("feed.continuewatchinglimit", 10)
	v.SetDefault("feed.newitemwindowdays", 7)
	v.SetDefault("feed.defaultcategory", "Outros")

	v.SetDefault("events.stream", "catalog:events")
	v.SetDefault("events.maxlen", 10000)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.integritysweep", "0 30 3 * * *")

	v.SetDefault("worker.group", "catalog-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "10s")
	v.SetDefault("worker.minidle", "2m")
}
