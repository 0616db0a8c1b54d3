package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	DB      DBConfig      `mapstructure:"db"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Dedup   DedupConfig   `mapstructure:"dedup"`
	Storage StorageConfig `mapstructure:"storage"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DBConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DedupConfig struct {
	CooldownFrames    int64 `mapstructure:"cooldown_frames"`
	MaxEntries        int   `mapstructure:"max_entries"`
	EvictAfterWindows int64 `mapstructure:"evict_after_windows"`
	MaxSources        int   `mapstructure:"max_sources"`
}

type StorageConfig struct {
	ImageDir string `mapstructure:"image_dir"`
}

type AdminConfig struct {
	ConfirmDeleteToken string `mapstructure:"confirm_delete_token"`
}

type IngestConfig struct {
	Source string      `mapstructure:"source"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:license_plates.db?_pragma=busy_timeout(5000)&_time_format=sqlite")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("dedup.cooldown_frames", 30)
	v.SetDefault("dedup.max_entries", 10000)
	v.SetDefault("dedup.evict_after_windows", 10)
	v.SetDefault("dedup.max_sources", 64)
	v.SetDefault("storage.image_dir", "detected_plates")
	v.SetDefault("admin.confirm_delete_token", "YES_DELETE_ALL")
	v.SetDefault("ingest.source", "webcam")
	v.SetDefault("ingest.kafka.enabled", false)
	v.SetDefault("ingest.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("ingest.kafka.topic", "lpr.observations")
	v.SetDefault("ingest.kafka.group_id", "lpr-service")
}

// Load reads configuration from the optional file at path and from LPR_*
// environment variables, which take precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported db.driver %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return errors.New("db.dsn is required")
	}
	if c.Dedup.CooldownFrames < 0 {
		return errors.New("dedup.cooldown_frames must not be negative")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required when auth is enabled")
	}
	if c.Admin.ConfirmDeleteToken == "" {
		return errors.New("admin.confirm_delete_token must not be empty")
	}
	if c.Ingest.Kafka.Enabled && (len(c.Ingest.Kafka.Brokers) == 0 || c.Ingest.Kafka.Topic == "") {
		return errors.New("ingest.kafka requires brokers and topic")
	}
	return nil
}
