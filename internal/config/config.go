package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of both binaries.
type Config struct {
	// ServerAddress is the gRPC address the trigger dials and the server listens on.
	ServerAddress string `yaml:"server_addr"`
	// HTTPAddress is the listen address of the HTTP API.
	HTTPAddress string `yaml:"http_addr"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// UserID is the default user the trigger raises alerts for.
	UserID string `yaml:"user_id,omitempty"`
	// Contacts selects the contact directory backend.
	Contacts ContactsConfig `yaml:"contacts"`
	// Transport selects how notifications are delivered.
	Transport TransportConfig `yaml:"transport"`
	// Dispatch tunes the fan-out.
	Dispatch DispatchConfig `yaml:"dispatch"`
	// Locator tunes the location cascade of the trigger.
	Locator LocatorConfig `yaml:"locator"`
	// LocationStore configures where the server keeps last dispatched coordinates.
	LocationStore LocationStoreConfig `yaml:"location_store"`
}

// ContactsConfig selects the contact directory.
type ContactsConfig struct {
	// Backend is "file" or "postgres".
	Backend string `yaml:"backend"`
	// File is the YAML directory path for the file backend.
	File string `yaml:"file,omitempty"`
	// DatabaseURL is the PostgreSQL DSN for the postgres backend.
	DatabaseURL string `yaml:"database_url,omitempty"`
}

// TransportConfig selects the notification transport.
type TransportConfig struct {
	// Kind is "console", "smtp" or "nats".
	Kind string `yaml:"kind"`
	// SMTP holds mail server settings for the smtp kind.
	SMTP SMTPConfig `yaml:"smtp,omitempty"`
	// NATS holds bus settings for the nats kind.
	NATS NATSConfig `yaml:"nats,omitempty"`
}

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	From     string `yaml:"from"`
}

// NATSConfig holds message bus settings.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// DispatchConfig tunes the fan-out.
type DispatchConfig struct {
	// Concurrency bounds parallel sends per dispatch.
	Concurrency int `yaml:"concurrency"`
	// SendTimeout bounds a single send.
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// LocatorConfig tunes the location cascade.
type LocatorConfig struct {
	// GPSDAddress is the gpsd endpoint; empty disables GPS.
	GPSDAddress string `yaml:"gpsd_addr,omitempty"`
	// GPSTimeout bounds the GPS query.
	GPSTimeout time.Duration `yaml:"gps_timeout"`
	// ProviderTimeout bounds each IP provider query.
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	// Providers lists IP geolocation endpoints in the order they are tried.
	Providers []string `yaml:"providers"`
	// LastLocationFile keeps the last resolved coordinate for degraded alerts.
	LastLocationFile string `yaml:"last_location_file"`
}

// LocationStoreConfig configures the server side last-location store.
type LocationStoreConfig struct {
	// RedisAddress enables the Redis store when set.
	RedisAddress string `yaml:"redis_addr,omitempty"`
	// RedisPassword authenticates against Redis.
	RedisPassword string `yaml:"redis_password,omitempty"`
	// TTL is how long a stored coordinate stays available.
	TTL time.Duration `yaml:"ttl"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "sos-beacon-settings.yaml"
	// DefaultEnvFilename is the optional dotenv file read before settings.
	DefaultEnvFilename = ".env"
	// DefaultContactsFilename is the default YAML contact directory.
	DefaultContactsFilename = "sos-beacon-contacts.yaml"
	// DefaultLastLocationFilename is where the trigger keeps its last fix.
	DefaultLastLocationFilename = "sos-beacon-last-location.json"

	// DefaultServerAddress is written by Default for a fresh settings file.
	DefaultServerAddress = "127.0.0.1:50051"
	// DefaultHTTPAddress is the default HTTP listen address.
	DefaultHTTPAddress = ":8080"
	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second
	// DefaultConcurrency is the default number of parallel sends.
	DefaultConcurrency = 8
	// DefaultSendTimeout bounds one notification attempt.
	DefaultSendTimeout = 15 * time.Second
	// DefaultGPSTimeout bounds the GPS query.
	DefaultGPSTimeout = 10 * time.Second
	// DefaultProviderTimeout bounds one IP provider query.
	DefaultProviderTimeout = 5 * time.Second
	// DefaultLocationTTL is how long the server remembers a dispatched coordinate.
	DefaultLocationTTL = 24 * time.Hour
	// DefaultSMTPPort is the submission port.
	DefaultSMTPPort = 587

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o600
)

// Default returns starter settings: the local server with the file directory
// and the console transport. Validate fills the remaining defaults.
func Default() *Config {
	return &Config{
		ServerAddress: DefaultServerAddress,
		Contacts:      ContactsConfig{Backend: BackendFile},
		Transport:     TransportConfig{Kind: TransportConsole},
	}
}

// Backends and transports understood by the server.
const (
	BackendFile      = "file"
	BackendPostgres  = "postgres"
	TransportConsole = "console"
	TransportSMTP    = "smtp"
	TransportNATS    = "nats"
)

// DefaultProviders returns the IP geolocation endpoints used when none are configured.
func DefaultProviders() []string {
	return []string{
		"https://ipapi.co/json/",
		"https://ipinfo.io/json",
		"https://geolocation-db.com/json/",
	}
}

// Environment variables that override secrets from the YAML file.
const (
	envSMTPPassword  = "SOS_SMTP_PASSWORD"
	envDatabaseURL   = "SOS_DATABASE_URL"
	envRedisPassword = "SOS_REDIS_PASSWORD"
	envNATSURL       = "SOS_NATS_URL"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errDatabaseURLRequired is returned for the postgres backend without a DSN.
	errDatabaseURLRequired = errors.New("contacts.database_url must be provided for the postgres backend")
	// errSMTPRequired is returned for the smtp transport without host or sender.
	errSMTPRequired = errors.New("transport.smtp.host and transport.smtp.from must be provided")
	// errNATSRequired is returned for the nats transport without a URL.
	errNATSRequired = errors.New("transport.nats.url must be provided")
)

// Load reads configuration from the provided path, applies environment
// overrides and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	if err := godotenv.Load(DefaultEnvFilename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", DefaultEnvFilename, err)
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults.
//
//nolint:cyclop,funlen // A flat list of checks reads better than helpers here.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.HTTPAddress == "" {
		settings.HTTPAddress = DefaultHTTPAddress
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	switch settings.Contacts.Backend {
	case "", BackendFile:
		settings.Contacts.Backend = BackendFile
		if settings.Contacts.File == "" {
			settings.Contacts.File = DefaultContactsFilename
		}
	case BackendPostgres:
		if settings.Contacts.DatabaseURL == "" {
			return errDatabaseURLRequired
		}
	default:
		return fmt.Errorf("unknown contacts backend %q", settings.Contacts.Backend)
	}

	switch settings.Transport.Kind {
	case "", TransportConsole:
		settings.Transport.Kind = TransportConsole
	case TransportSMTP:
		if settings.Transport.SMTP.Host == "" || settings.Transport.SMTP.From == "" {
			return errSMTPRequired
		}

		if settings.Transport.SMTP.Port <= 0 {
			settings.Transport.SMTP.Port = DefaultSMTPPort
		}
	case TransportNATS:
		if settings.Transport.NATS.URL == "" {
			return errNATSRequired
		}
	default:
		return fmt.Errorf("unknown transport kind %q", settings.Transport.Kind)
	}

	if settings.Dispatch.Concurrency <= 0 {
		settings.Dispatch.Concurrency = DefaultConcurrency
	}

	if settings.Dispatch.SendTimeout <= 0 {
		settings.Dispatch.SendTimeout = DefaultSendTimeout
	}

	if settings.Locator.GPSTimeout <= 0 {
		settings.Locator.GPSTimeout = DefaultGPSTimeout
	}

	if settings.Locator.ProviderTimeout <= 0 {
		settings.Locator.ProviderTimeout = DefaultProviderTimeout
	}

	if len(settings.Locator.Providers) == 0 {
		settings.Locator.Providers = DefaultProviders()
	}

	for _, provider := range settings.Locator.Providers {
		if _, err := url.ParseRequestURI(provider); err != nil {
			return fmt.Errorf("invalid location provider URI %q: %w", provider, err)
		}
	}

	if settings.Locator.LastLocationFile == "" {
		settings.Locator.LastLocationFile = DefaultLastLocationFilename
	}

	if settings.LocationStore.TTL <= 0 {
		settings.LocationStore.TTL = DefaultLocationTTL
	}

	return nil
}

// applyEnv lets secrets come from the environment instead of the YAML file.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envSMTPPassword)); v != "" {
		cfg.Transport.SMTP.Password = v
	}

	if v := strings.TrimSpace(os.Getenv(envDatabaseURL)); v != "" {
		cfg.Contacts.DatabaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv(envRedisPassword)); v != "" {
		cfg.LocationStore.RedisPassword = v
	}

	if v := strings.TrimSpace(os.Getenv(envNATSURL)); v != "" {
		cfg.Transport.NATS.URL = v
	}
}
