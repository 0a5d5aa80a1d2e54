package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // container images often ship without zoneinfo

	"marpro/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig        `yaml:"app"`
	Database    DatabaseConfig   `yaml:"database"`
	Redis       RedisConfig      `yaml:"redis"`
	Backup      BackupConfig     `yaml:"backup"`
	Monitoring  MonitoringConfig `yaml:"monitoring"`
	Logging     LoggingConfig    `yaml:"logging"`
	API         APIConfig        `yaml:"api"`
	Admin       AdminConfig      `yaml:"admin"`
	Mail        MailConfig       `yaml:"mail"`
	Telegram    TelegramConfig   `yaml:"telegram"`
	Google      GoogleConfig     `yaml:"google"`
	Exports     ExportConfig     `yaml:"exports"`
	CatalogPath string           `yaml:"catalog_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

// APIAuthConfig holds the partner API keys for the gRPC service.
type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AdminConfig struct {
	PasswordHash  string        `yaml:"password_hash"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	LoginAttempts int           `yaml:"login_attempts"`
	LoginWindow   time.Duration `yaml:"login_window"`
}

type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
	ReplyTo  string `yaml:"reply_to"`
}

type TelegramConfig struct {
	BotToken        string  `yaml:"bot_token"`
	OperatorChatIDs []int64 `yaml:"operator_chat_ids"`
	Debug           bool    `yaml:"debug"`
}

type ExportConfig struct {
	MaxRangeDays int `yaml:"max_range_days"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	TimeZone    string `yaml:"time_zone"`
}

type DatabaseConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	CredentialsFile     string `yaml:"credentials_file"`
	CalendarID          string `yaml:"calendar_id"`
	OrdersSpreadsheetID string `yaml:"orders_spreadsheet_id"`
}

// CalendarEnabled reports whether bookings are mirrored to Google Calendar.
func (g GoogleConfig) CalendarEnabled() bool {
	return g.CredentialsFile != "" && g.CalendarID != ""
}

func (g GoogleConfig) SheetsEnabled() bool {
	return g.CredentialsFile != "" && g.OrdersSpreadsheetID != ""
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// expand environment variables before parsing YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if strings.TrimSpace(c.Admin.PasswordHash) == "" {
		return errors.New("admin password hash is required")
	}
	if len(c.Admin.SessionSecret) < 32 {
		return errors.New("admin session secret must be at least 32 bytes")
	}

	if c.Mail.Enabled {
		if c.Mail.Host == "" || c.Mail.From == "" {
			return errors.New("mail host and from address are required when mail is enabled")
		}
	}

	if c.API.GRPC.Enabled && c.API.Auth.Enabled {
		seen := make(map[string]bool, len(c.API.Auth.APIKeys))
		for _, k := range c.API.Auth.APIKeys {
			if k.Key == "" {
				return fmt.Errorf("api key for client '%s' is empty", k.Name)
			}
			if seen[k.Key] {
				return fmt.Errorf("duplicate api key for client '%s'", k.Name)
			}
			seen[k.Key] = true
		}
	}

	if _, err := time.LoadLocation(c.App.TimeZone); err != nil {
		return fmt.Errorf("invalid app time zone %q: %w", c.App.TimeZone, err)
	}

	return nil
}

// Location returns the business time zone used for "today".
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "marpro"
	}
	if c.App.TimeZone == "" {
		c.App.TimeZone = "Europe/Prague"
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = 5 * time.Second
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 5
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Admin.SessionTTL == 0 {
		c.Admin.SessionTTL = models.DefaultSessionTTL
	}
	if c.Admin.LoginAttempts == 0 {
		c.Admin.LoginAttempts = models.LoginAttempts
	}
	if c.Admin.LoginWindow == 0 {
		c.Admin.LoginWindow = models.LoginWindow
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Exports.MaxRangeDays == 0 {
		c.Exports.MaxRangeDays = 366
	}
	if c.CatalogPath == "" {
		c.CatalogPath = "configs/catalog.yaml"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
}
