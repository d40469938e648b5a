package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	SourceRedis = "redis"
	SourceHTTP  = "http"
)

type Config struct {
	Interval       time.Duration `yaml:"interval"`
	GracePeriod    time.Duration `yaml:"grace_period"`
	Facilities     []string      `yaml:"facilities"`
	SnapshotMaxAge time.Duration `yaml:"snapshot_max_age"`
	HTTPAddr       string        `yaml:"http_addr"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`

	Snapshot Snapshot `yaml:"snapshot"`
	Database Database `yaml:"database"`
	Notify   Notify   `yaml:"notify"`
}

type Snapshot struct {
	Source        string `yaml:"source"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisKey      string `yaml:"redis_key"`
	URL           string `yaml:"url"`
}

type Database struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns a lib/pq connection string.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type Notify struct {
	SessionsWebhook string        `yaml:"sessions_webhook"`
	AlertsWebhook   string        `yaml:"alerts_webhook"`
	KafkaBrokers    []string      `yaml:"kafka_brokers"`
	KafkaTopic      string        `yaml:"kafka_topic"`
	Timeout         time.Duration `yaml:"timeout"`
}

func Defaults() Config {
	return Config{
		Interval:    10 * time.Second,
		GracePeriod: 45 * time.Second,
		HTTPAddr:    ":8080",
		LogLevel:    "info",
		LogFormat:   "json",
		Snapshot: Snapshot{
			Source:    SourceRedis,
			RedisAddr: "localhost:6379",
			RedisKey:  "vatsim:datafeed",
			URL:       "https://data.vatsim.net/v3/vatsim-data.json",
		},
		Database: Database{
			Host:    "localhost",
			Port:    "5432",
			SSLMode: "disable",
		},
		Notify: Notify{
			KafkaTopic: "controller-activity",
			Timeout:    5 * time.Second,
		},
	}
}

// LoadEnvFile loads a .env file into the process environment. An empty
// path means ".env" in the working directory.
func LoadEnvFile(path string) error {
	if path == "" {
		return godotenv.Load()
	}
	return godotenv.Load(path)
}

// Load builds the configuration from defaults, the optional YAML file at
// path and the environment, in that order of precedence (lowest first).
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	durationVar := func(dst *time.Duration, keys ...string) {
		for _, key := range keys {
			s, ok := os.LookupEnv(key)
			if !ok || s == "" {
				continue
			}
			d, err := parseDuration(s)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			} else {
				*dst = d
			}
			return
		}
	}
	stringVar := func(dst *string, key string) {
		if s, ok := os.LookupEnv(key); ok && s != "" {
			*dst = s
		}
	}
	listVar := func(dst *[]string, key string) {
		if s, ok := os.LookupEnv(key); ok && s != "" {
			*dst = splitList(s)
		}
	}

	durationVar(&cfg.Interval, "RECONCILE_INTERVAL", "UPDATE_INTERVAL")
	durationVar(&cfg.GracePeriod, "GRACE_PERIOD")
	durationVar(&cfg.SnapshotMaxAge, "SNAPSHOT_MAX_AGE")
	durationVar(&cfg.Notify.Timeout, "NOTIFY_TIMEOUT")
	listVar(&cfg.Facilities, "FACILITIES")
	stringVar(&cfg.HTTPAddr, "HTTP_ADDR")
	stringVar(&cfg.LogLevel, "LOG_LEVEL")
	stringVar(&cfg.LogFormat, "LOG_FORMAT")

	stringVar(&cfg.Snapshot.Source, "SNAPSHOT_SOURCE")
	stringVar(&cfg.Snapshot.RedisAddr, "REDIS_ADDR")
	stringVar(&cfg.Snapshot.RedisPassword, "REDIS_PASSWORD")
	stringVar(&cfg.Snapshot.RedisKey, "SNAPSHOT_REDIS_KEY")
	stringVar(&cfg.Snapshot.URL, "DATAFEED_URL")
	if s := os.Getenv("REDIS_DB"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("REDIS_DB: %w", err))
		} else {
			cfg.Snapshot.RedisDB = n
		}
	}

	stringVar(&cfg.Database.Host, "DB_HOST")
	stringVar(&cfg.Database.Port, "DB_PORT")
	stringVar(&cfg.Database.User, "DB_USER")
	stringVar(&cfg.Database.Password, "DB_PASSWORD")
	stringVar(&cfg.Database.Name, "DB_NAME")
	stringVar(&cfg.Database.SSLMode, "DB_SSLMODE")

	stringVar(&cfg.Notify.SessionsWebhook, "DISCORD_SESSIONS_WEBHOOK")
	stringVar(&cfg.Notify.AlertsWebhook, "DISCORD_ALERTS_WEBHOOK")
	listVar(&cfg.Notify.KafkaBrokers, "KAFKA_BROKERS")
	stringVar(&cfg.Notify.KafkaTopic, "KAFKA_NOTIFY_TOPIC")

	return errors.Join(errs...)
}

// parseDuration accepts Go durations ("10s") and bare integers, which are
// read as seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports missing or inconsistent settings. It is the only place
// the service refuses to start over configuration.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Facilities) == 0 {
		errs = append(errs, errors.New("facilities must be set (FACILITIES)"))
	}
	if c.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}
	if c.GracePeriod < 0 {
		errs = append(errs, errors.New("grace_period must not be negative"))
	}
	if c.SnapshotMaxAge < 0 {
		errs = append(errs, errors.New("snapshot_max_age must not be negative"))
	}
	switch c.Snapshot.Source {
	case SourceRedis:
		if c.Snapshot.RedisAddr == "" || c.Snapshot.RedisKey == "" {
			errs = append(errs, errors.New("snapshot.redis_addr and snapshot.redis_key must be set for the redis source"))
		}
	case SourceHTTP:
		if c.Snapshot.URL == "" {
			errs = append(errs, errors.New("snapshot.url must be set for the http source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown snapshot source %q", c.Snapshot.Source))
	}
	if len(c.Notify.KafkaBrokers) > 0 && c.Notify.KafkaTopic == "" {
		errs = append(errs, errors.New("notify.kafka_topic must be set when kafka brokers are configured"))
	}
	return errors.Join(errs...)
}
