package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Notify       NotifyConfig
	Geofence     GeofenceConfig
	PubSub       PubSubConfig
	Cron         CronConfig
	GCP          GCPConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DONTFORGET_APP_ENV" required:"true"`
	Port         string `envconfig:"DONTFORGET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DONTFORGET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DONTFORGET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DONTFORGET_DB_DSN"`
	Driver string `envconfig:"DONTFORGET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DONTFORGET_DB_HOST"`
	LegacyPort     int    `envconfig:"DONTFORGET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DONTFORGET_DB_USER"`
	LegacyPassword string `envconfig:"DONTFORGET_DB_PASSWORD"`
	LegacyName     string `envconfig:"DONTFORGET_DB_NAME"`
	LegacySSLMode  string `envconfig:"DONTFORGET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DONTFORGET_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DONTFORGET_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DONTFORGET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DONTFORGET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DONTFORGET_REDIS_URL"`
	Address      string        `envconfig:"DONTFORGET_REDIS_ADDR"`
	Password     string        `envconfig:"DONTFORGET_REDIS_PASSWORD"`
	DB           int           `envconfig:"DONTFORGET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DONTFORGET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DONTFORGET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DONTFORGET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DONTFORGET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DONTFORGET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DONTFORGET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DONTFORGET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DONTFORGET_JWT_EXPIRATION_MINUTES" default:"43200"`
}

// NotifyConfig shapes scheduled notification content and timing.
type NotifyConfig struct {
	// HourOfDay is the local hour expiry notifications fire at.
	HourOfDay int    `envconfig:"DONTFORGET_NOTIFY_HOUR" default:"9"`
	Timezone  string `envconfig:"DONTFORGET_NOTIFY_TIMEZONE" default:"Local"`
	// DebounceWindow suppresses repeated proximity alerts for the same
	// region crossing direction.
	DebounceWindow time.Duration `envconfig:"DONTFORGET_NOTIFY_DEBOUNCE_WINDOW" default:"30m"`
}

// Location resolves the configured timezone.
func (n NotifyConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(n.Timezone)
	if tz == "" || strings.EqualFold(tz, "Local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid notify timezone %q: %w", tz, err)
	}
	return loc, nil
}

// GeofenceConfig bounds region monitoring, which is a limited platform resource.
type GeofenceConfig struct {
	MonitorLimit int `envconfig:"DONTFORGET_GEOFENCE_MONITOR_LIMIT" default:"20"`
}

type PubSubConfig struct {
	NotificationTopic    string `envconfig:"DONTFORGET_PUBSUB_NOTIFICATION_TOPIC" default:"df-notification-commands"`
	GeofenceCommandTopic string `envconfig:"DONTFORGET_PUBSUB_GEOFENCE_COMMAND_TOPIC" default:"df-geofence-commands"`
	GeofenceEventSub     string `envconfig:"DONTFORGET_PUBSUB_GEOFENCE_EVENT_SUBSCRIPTION"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"DONTFORGET_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"DONTFORGET_CRON_LOCK_TTL" default:"25h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"DONTFORGET_GCP_PROJECT_ID"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DONTFORGET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DONTFORGET_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
