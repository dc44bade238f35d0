// Package config defines the linkbio configuration shared by the landing page
// host, the collector and the migration tool.
package config

import (
	"errors"
	"time"

	"github.com/jonesrussell/linkbio/internal/domain"
	"github.com/jonesrussell/linkbio/internal/sink"
	infraconfig "github.com/jonesrussell/linkbio/infrastructure/config"
)

// Default configuration values.
const (
	defaultServiceName    = "linkbio"
	defaultServicePort    = 8080
	defaultCollectorName  = "linkbio-collector"
	defaultCollectorPort  = 8094
	defaultVersion        = "0.1.0"
	defaultBufferSize     = 1000
	defaultFlushThreshold = 100
	defaultFlushInterval  = time.Second
	defaultRemoteDriver   = sink.DriverREST
	defaultStorageBackend = StorageMemory
	defaultSessionTTL     = 30 * time.Minute
	defaultProfileMaxAge  = 365 * 24 * time.Hour
	defaultJWTExpiry      = 24 * time.Hour
	defaultStatsDays      = 30
	defaultMaxRequests    = 60
	defaultRateWindow     = time.Minute
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig              `yaml:"service"`
	Collector CollectorConfig            `yaml:"collector"`
	Profile   domain.Profile             `yaml:"profile"`
	Remote    RemoteConfig               `yaml:"remote"`
	Storage   StorageConfig              `yaml:"storage"`
	Database  infraconfig.DatabaseConfig `yaml:"database"`
	Dashboard DashboardConfig            `yaml:"dashboard"`
	RateLimit RateLimitConfig            `yaml:"rate_limit"`
	Logging   infraconfig.LoggingConfig  `yaml:"logging"`
}

// ServiceConfig configures the landing page host.
type ServiceConfig struct {
	Name           string   `yaml:"name"`
	Version        string   `yaml:"version"`
	Port           int      `env:"LINKBIO_PORT"   yaml:"port"`
	Debug          bool     `env:"APP_DEBUG"      yaml:"debug"`
	CORSOrigins    []string `env:"CORS_ORIGINS"   yaml:"cors_origins"`
	MetricsEnabled bool     `env:"METRICS_ENABLED" yaml:"metrics_enabled"`
	// StaticDir is served at / when set, usually the sitebuild output.
	StaticDir string `env:"LINKBIO_STATIC_DIR" yaml:"static_dir"`
}

// CollectorConfig configures the ingestion and dashboard service.
type CollectorConfig struct {
	Name           string        `yaml:"name"`
	Port           int           `env:"COLLECTOR_PORT" yaml:"port"`
	BufferSize     int           `yaml:"buffer_size"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	FlushThreshold int           `yaml:"flush_threshold"`
}

// RemoteConfig addresses the remote sink used by the tracker.
type RemoteConfig struct {
	Driver  string `env:"ANALYTICS_DRIVER"  yaml:"driver"`
	URL     string `env:"SUPABASE_URL"      yaml:"url"`
	AnonKey string `env:"SUPABASE_ANON_KEY" yaml:"anon_key"`
}

// StorageConfig selects where visitor scopes and tallies live.
type StorageConfig struct {
	Backend       string                  `env:"STORAGE_BACKEND" yaml:"backend"`
	SessionTTL    time.Duration           `yaml:"session_ttl"`
	ProfileMaxAge time.Duration           `yaml:"profile_max_age"`
	SecureCookies bool                    `env:"SECURE_COOKIES" yaml:"secure_cookies"`
	Redis         infraconfig.RedisConfig `yaml:"redis"`
}

// DashboardConfig configures dashboard sign-in.
type DashboardConfig struct {
	AllowedEmail string        `env:"ALLOWED_EMAIL"      yaml:"allowed_email"`
	Password     string        `env:"DASHBOARD_PASSWORD" yaml:"password"`
	JWTSecret    string        `env:"AUTH_JWT_SECRET"    yaml:"jwt_secret"`
	JWTExpiry    time.Duration `yaml:"jwt_expiry"`
	DefaultDays  int           `yaml:"default_days"`
	Timezone     string        `env:"DASHBOARD_TIMEZONE" yaml:"timezone"`
}

// Location resolves Timezone, an IANA name whose midnight starts "today".
func (d DashboardConfig) Location() (*time.Location, error) {
	return time.LoadLocation(d.Timezone)
}

// RateLimitConfig limits requests per client IP.
type RateLimitConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// Load loads configuration from path.
func Load(path string) (*Config, error) {
	return infraconfig.LoadWithDefaults[Config](path, setDefaults)
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setCollectorDefaults(&cfg.Collector)
	setStorageDefaults(&cfg.Storage)
	setDashboardDefaults(&cfg.Dashboard)
	setRateLimitDefaults(&cfg.RateLimit)

	if cfg.Remote.Driver == "" {
		cfg.Remote.Driver = defaultRemoteDriver
	}
	cfg.Database.SetDefaults()
	cfg.Logging.SetDefaults()
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
}

func setCollectorDefaults(c *CollectorConfig) {
	if c.Name == "" {
		c.Name = defaultCollectorName
	}
	if c.Port == 0 {
		c.Port = defaultCollectorPort
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.FlushThreshold == 0 {
		c.FlushThreshold = defaultFlushThreshold
	}
}

func setStorageDefaults(s *StorageConfig) {
	if s.Backend == "" {
		s.Backend = defaultStorageBackend
	}
	if s.SessionTTL == 0 {
		s.SessionTTL = defaultSessionTTL
	}
	if s.ProfileMaxAge == 0 {
		s.ProfileMaxAge = defaultProfileMaxAge
	}
	s.Redis.SetDefaults()
}

func setDashboardDefaults(d *DashboardConfig) {
	if d.JWTExpiry == 0 {
		d.JWTExpiry = defaultJWTExpiry
	}
	if d.DefaultDays == 0 {
		d.DefaultDays = defaultStatsDays
	}
	if d.Timezone == "" {
		d.Timezone = "Local"
	}
}

func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.MaxRequests == 0 {
		rl.MaxRequests = defaultMaxRequests
	}
	if rl.Window == 0 {
		rl.Window = defaultRateWindow
	}
}

// ValidateLinkPage validates what the landing page host needs. Remote sink
// settings are not validated here; an unusable sink only disables tracking.
func (c *Config) ValidateLinkPage() error {
	if err := infraconfig.ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := infraconfig.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Storage.Backend != StorageMemory && c.Storage.Backend != StorageRedis {
		return &infraconfig.ValidationError{Field: "storage.backend", Message: "must be memory or redis"}
	}
	if len(c.Profile.Links) == 0 {
		return &infraconfig.ValidationError{Field: "profile.links", Message: "at least one link is required"}
	}

	seen := make(map[string]struct{}, len(c.Profile.Links))
	for _, l := range c.Profile.Links {
		if l.ID == "" {
			return &infraconfig.ValidationError{Field: "profile.links.id", Message: "is required"}
		}
		if _, dup := seen[l.ID]; dup {
			return &infraconfig.ValidationError{Field: "profile.links.id", Message: "duplicate id " + l.ID}
		}
		seen[l.ID] = struct{}{}
		if err := infraconfig.ValidateURL("profile.links."+l.ID+".url", l.URL); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCollector validates what the collector and dashboard need.
func (c *Config) ValidateCollector() error {
	return errors.Join(
		infraconfig.ValidatePort("collector.port", c.Collector.Port),
		infraconfig.ValidateLogLevel(c.Logging.Level),
		infraconfig.ValidateRequired("remote.anon_key", c.Remote.AnonKey),
		infraconfig.ValidateRequired("dashboard.allowed_email", c.Dashboard.AllowedEmail),
		infraconfig.ValidateRequired("dashboard.password", c.Dashboard.Password),
		infraconfig.ValidateRequired("dashboard.jwt_secret", c.Dashboard.JWTSecret),
		c.validateTimezone(),
	)
}

func (c *Config) validateTimezone() error {
	if _, err := c.Dashboard.Location(); err != nil {
		return &infraconfig.ValidationError{Field: "dashboard.timezone", Message: err.Error()}
	}
	return nil
}
