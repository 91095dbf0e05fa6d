package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	DB       DBConfig       `mapstructure:"db"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Log      LogConfig      `mapstructure:"log"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Seed     SeedConfig     `mapstructure:"seed"`

	SentryDSN string `mapstructure:"sentry_dsn"`
	// Port and CORSOrigins keep their historical top-level env names.
	Port        string `mapstructure:"port"`
	CORSOrigins string `mapstructure:"cors_origins"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Timezone string `mapstructure:"timezone"`
}

type DBConfig struct {
	Driver   string `mapstructure:"driver"` // postgres | sqlite
	DSN      string `mapstructure:"dsn"`    // sqlite file path, or a full postgres DSN override
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`
	AccessExpiry  time.Duration `mapstructure:"access_expiry"`
	RefreshExpiry time.Duration `mapstructure:"refresh_expiry"`
}

type ServerConfig struct {
	RateLimit int `mapstructure:"rate_limit"` // requests per minute per IP, 0 disables
	BodyLimit int `mapstructure:"body_limit"`
}

type StorageConfig struct {
	Driver   string `mapstructure:"driver"` // local | bolt | b2
	Dir      string `mapstructure:"dir"`
	BoltPath string `mapstructure:"bolt_path"`
	B2KeyID  string `mapstructure:"b2_key_id"`
	B2AppKey string `mapstructure:"b2_app_key"`
	B2Bucket string `mapstructure:"b2_bucket"`
}

type ReminderConfig struct {
	Schedule string        `mapstructure:"schedule"`
	LeadTime time.Duration `mapstructure:"lead_time"`
}

type LogConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	PurgeSchedule string        `mapstructure:"purge_schedule"`
	PersistErrors bool          `mapstructure:"persist_errors"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type SeedConfig struct {
	ReviewerEmail    string `mapstructure:"reviewer_email"`
	ReviewerPassword string `mapstructure:"reviewer_password"`
}

// Load reads .env (if present), the optional config file and the environment.
// Environment keys are the upper-cased config keys with "." replaced by "_",
// e.g. db.host -> DB_HOST, jwt.secret -> JWT_SECRET.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings serve cannot run without.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if c.DB.Driver == "postgres" && c.DB.DSN == "" && c.DB.Password == "" {
		return errors.New("DB_PASSWORD environment variable is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	return nil
}

// PostgresDSN builds the postgres connection string.
func (c *DBConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=UTC"
}

// Location is the calendar used for due-today computations and cron schedules.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.App.Timezone)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.timezone", "Asia/Manila")

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "nutrition_reports")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_expiry", "15m")
	v.SetDefault("jwt.refresh_expiry", "168h")

	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.body_limit", 25*1024*1024)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.dir", "data/uploads")
	v.SetDefault("storage.bolt_path", "data/attachments.db")
	v.SetDefault("storage.b2_key_id", "")
	v.SetDefault("storage.b2_app_key", "")
	v.SetDefault("storage.b2_bucket", "")

	v.SetDefault("reminder.schedule", "0 8 * * *")
	v.SetDefault("reminder.lead_time", "72h")

	v.SetDefault("log.retention", "720h")
	v.SetDefault("log.purge_schedule", "@daily")
	v.SetDefault("log.persist_errors", true)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "nutrition")

	v.SetDefault("seed.reviewer_email", "")
	v.SetDefault("seed.reviewer_password", "")

	v.SetDefault("sentry_dsn", "")
	v.SetDefault("port", "8080")
	v.SetDefault("cors_origins", "*")
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
