package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

type GRPC struct {
	Addr string `yaml:"addr" env:"GRPC_ADDR"` // пусто — gRPC не поднимаем
}

type Logging struct {
	Env       string `yaml:"env" env:"APP_ENV"` // dev|stage|prod
	Service   string `yaml:"service"`
	Version   string `yaml:"version"`
	Backend   string `yaml:"backend"` // std|zap
	Level     string `yaml:"level"`
	AddSource bool   `yaml:"addSource"`
	Debug     bool   `yaml:"debug"`
}

type Postgres struct {
	DSN               string        `yaml:"dsn" env:"DATABASE_URL"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
	Migrate           bool          `yaml:"migrate"`
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER"` // postgres|memory
}

// Live — параметры рассылки live-событий.
type Live struct {
	BufferSize int           `yaml:"bufferSize"`
	Heartbeat  time.Duration `yaml:"heartbeat"`
	StaleAfter time.Duration `yaml:"staleAfter"`
	ReapEvery  time.Duration `yaml:"reapEvery"`
}

type Security struct {
	JWTSecret         string        `yaml:"jwtSecret" env:"JWT_SECRET"`
	Issuer            string        `yaml:"issuer"`
	TokenTTL          time.Duration `yaml:"tokenTTL"`
	BcryptCost        int           `yaml:"bcryptCost"`
	MinPasswordLength int           `yaml:"minPasswordLength"`
}

type Brevo struct {
	BaseURL     string `yaml:"baseURL"`
	APIKey      string `yaml:"apiKey" env:"BREVO_API_KEY"`
	SenderEmail string `yaml:"senderEmail" env:"BREVO_SENDER_EMAIL"`
	SenderName  string `yaml:"senderName"`
}

type SendGrid struct {
	APIKey      string `yaml:"apiKey" env:"SENDGRID_API_KEY"`
	SenderEmail string `yaml:"senderEmail" env:"SENDGRID_SENDER_EMAIL"`
	SenderName  string `yaml:"senderName"`
}

type WATI struct {
	BaseURL            string `yaml:"baseURL" env:"WATI_BASE_URL"`
	APIToken           string `yaml:"apiToken" env:"WATI_API_TOKEN"`
	TemplateQR         string `yaml:"templateQR"`
	TemplateEntry      string `yaml:"templateEntry"`
	BroadcastName      string `yaml:"broadcastName"`
	ChannelNumber      string `yaml:"channelNumber"`
	DefaultCountryCode string `yaml:"defaultCountryCode"`
}

const (
	EmailBrevo    = "brevo"
	EmailSendGrid = "sendgrid"
)

type Notify struct {
	PublicBaseURL string        `yaml:"publicBaseURL" env:"PUBLIC_BASE_URL"`
	Concurrency   int           `yaml:"concurrency"`
	Timeout       time.Duration `yaml:"timeout"`
	Timezone      string        `yaml:"timezone"`
	EmailProvider string        `yaml:"emailProvider"` // brevo|sendgrid
	Brevo         Brevo         `yaml:"brevo"`
	SendGrid      SendGrid      `yaml:"sendgrid"`
	WATI          WATI          `yaml:"wati"`
}

type BootstrapAdmin struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email" env:"ADMIN_EMAIL"`
	Password string `yaml:"password" env:"ADMIN_PASSWORD"`
}

type Config struct {
	HTTP           HTTP           `yaml:"http"`
	GRPC           GRPC           `yaml:"grpc"`
	Logging        Logging        `yaml:"logging"`
	Postgres       Postgres       `yaml:"postgres"`
	Storage        Storage        `yaml:"storage"`
	Live           Live           `yaml:"live"`
	Security       Security       `yaml:"security"`
	Notify         Notify         `yaml:"notify"`
	BootstrapAdmin BootstrapAdmin `yaml:"bootstrapAdmin"`
}

// LoadConfig читает yaml (CONFIG_PATH или ./config/config.yaml),
// затем накладывает переменные окружения.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverPostgres
	}
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if c.Security.JWTSecret == "" {
		return errors.New("security.jwtSecret is required")
	}
	if c.Security.BcryptCost != 0 && (c.Security.BcryptCost < 4 || c.Security.BcryptCost > 18) {
		return errors.New("security.bcryptCost must be in [4..18]")
	}

	// установка дефолтов, если значения не указаны
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout <= 0 {
		c.HTTP.IdleTimeout = 120 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "attendance-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Live.BufferSize <= 0 {
		c.Live.BufferSize = 64
	}
	if c.Live.Heartbeat <= 0 {
		c.Live.Heartbeat = 25 * time.Second
	}
	if c.Live.StaleAfter <= 0 {
		c.Live.StaleAfter = 3 * c.Live.Heartbeat
	}
	if c.Live.ReapEvery <= 0 {
		c.Live.ReapEvery = c.Live.Heartbeat
	}
	if c.Security.Issuer == "" {
		c.Security.Issuer = "attendance-service"
	}
	if c.Security.TokenTTL <= 0 {
		c.Security.TokenTTL = 12 * time.Hour
	}
	if c.Security.MinPasswordLength <= 0 {
		c.Security.MinPasswordLength = 6
	}
	if c.Notify.Concurrency <= 0 {
		c.Notify.Concurrency = 5
	}
	if c.Notify.Timeout <= 0 {
		c.Notify.Timeout = 20 * time.Second
	}
	if c.Notify.Timezone == "" {
		c.Notify.Timezone = "Asia/Kolkata"
	}
	if _, err := time.LoadLocation(c.Notify.Timezone); err != nil {
		return fmt.Errorf("notify.timezone: %w", err)
	}
	c.Notify.EmailProvider = strings.ToLower(strings.TrimSpace(c.Notify.EmailProvider))
	if c.Notify.EmailProvider == "" {
		c.Notify.EmailProvider = EmailBrevo
	}
	if c.Notify.EmailProvider != EmailBrevo && c.Notify.EmailProvider != EmailSendGrid {
		return fmt.Errorf("notify.emailProvider: unknown provider %q", c.Notify.EmailProvider)
	}
	if c.Notify.Brevo.BaseURL == "" {
		c.Notify.Brevo.BaseURL = "https://api.brevo.com"
	}
	if c.Notify.Brevo.SenderName == "" {
		c.Notify.Brevo.SenderName = "Workshop Team"
	}
	if c.Notify.SendGrid.SenderName == "" {
		c.Notify.SendGrid.SenderName = "Workshop Team"
	}
	if c.Notify.WATI.DefaultCountryCode == "" {
		c.Notify.WATI.DefaultCountryCode = "91"
	}
	if c.Notify.WATI.BroadcastName == "" {
		c.Notify.WATI.BroadcastName = "workshop_broadcast"
	}
	c.Notify.PublicBaseURL = strings.TrimRight(c.Notify.PublicBaseURL, "/")
	c.Notify.WATI.BaseURL = strings.TrimRight(c.Notify.WATI.BaseURL, "/")
	c.Notify.Brevo.BaseURL = strings.TrimRight(c.Notify.Brevo.BaseURL, "/")
	if c.BootstrapAdmin.Name == "" {
		c.BootstrapAdmin.Name = "System Admin"
	}
	return nil
}
