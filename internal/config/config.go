package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Lark     LarkConfig     `mapstructure:"lark"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Inbox    InboxConfig    `mapstructure:"inbox"`
	Client   ClientConfig   `mapstructure:"client"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// AuthConfig holds session token and role configuration
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	Issuer        string        `mapstructure:"issuer"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	ApproverRoles []string      `mapstructure:"approver_roles"`
}

// LarkConfig holds Lark API configuration. Without credentials,
// notifications are logged instead of sent.
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
}

// OpenAIConfig holds OpenAI API configuration. Without a key, capture uses
// the keyword extractor.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds file storage configuration
type StorageConfig struct {
	BaseDir         string `mapstructure:"base_dir"`
	ReceiptMaxPages int    `mapstructure:"receipt_max_pages"`
}

// InboxConfig holds the drop folder worker configuration
type InboxConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Dir            string        `mapstructure:"dir"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	CaptureTimeout time.Duration `mapstructure:"capture_timeout"`
}

// ClientConfig holds the settings of the remote client used by operator tools
type ClientConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from a YAML file, a .env file and environment
// variables. An empty configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("EXPENSED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv sets variables from a .env file without overriding the
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	err := gotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_bytes", 10<<20)

	// Database defaults
	v.SetDefault("database.path", "data/expenses.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.migrations_dir", "")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "expense-desk")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.approver_roles", []string{"admin", "manager", "finance_admin"})

	// Lark defaults
	v.SetDefault("lark.app_id", "")
	v.SetDefault("lark.app_secret", "")

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.timeout", 60*time.Second)

	// Storage defaults
	v.SetDefault("storage.base_dir", "data/files")
	v.SetDefault("storage.receipt_max_pages", 3)

	// Inbox defaults
	v.SetDefault("inbox.enabled", true)
	v.SetDefault("inbox.dir", "inbox")
	v.SetDefault("inbox.poll_interval", 10*time.Second)
	v.SetDefault("inbox.batch_size", 20)
	v.SetDefault("inbox.capture_timeout", 30*time.Second)

	// Client defaults
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.timeout", 30*time.Second)
	v.SetDefault("client.max_attempts", 1)
	v.SetDefault("client.backoff", 500*time.Millisecond)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional names of credentials
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"auth.jwt_secret": {"EXPENSED_AUTH_JWT_SECRET", "JWT_SECRET"},
		"lark.app_id":     {"EXPENSED_LARK_APP_ID", "LARK_APP_ID"},
		"lark.app_secret": {"EXPENSED_LARK_APP_SECRET", "LARK_APP_SECRET"},
		"openai.api_key":  {"EXPENSED_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"openai.base_url": {"EXPENSED_OPENAI_BASE_URL", "OPENAI_BASE_URL"},
		"database.path":   {"EXPENSED_DATABASE_PATH", "DATABASE_PATH"},
		"client.base_url": {"EXPENSED_CLIENT_BASE_URL", "EXPENSED_URL"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	// Validate database
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate auth
	if _, err := c.ApproverRoles(); err != nil {
		return err
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	// Lark credentials come as a pair
	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}

	// Validate inbox worker
	if c.Inbox.Enabled {
		if c.Inbox.Dir == "" {
			return fmt.Errorf("inbox.dir is required when the inbox is enabled")
		}
		if c.Inbox.PollInterval <= 0 {
			return fmt.Errorf("inbox.poll_interval must be positive")
		}
		if c.Inbox.BatchSize <= 0 {
			return fmt.Errorf("inbox.batch_size must be positive")
		}
	}

	// Validate client
	if c.Client.MaxAttempts < 1 {
		return fmt.Errorf("client.max_attempts must be at least 1")
	}

	return nil
}

// ValidateServe checks the settings only the server needs
func (c *Config) ValidateServe() error {
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	return nil
}

// ApproverRoles parses the configured approver roles
func (c *Config) ApproverRoles() ([]entity.Role, error) {
	if len(c.Auth.ApproverRoles) == 0 {
		return nil, fmt.Errorf("auth.approver_roles must name at least one role")
	}
	roles := make([]entity.Role, 0, len(c.Auth.ApproverRoles))
	for _, raw := range c.Auth.ApproverRoles {
		role, err := entity.ParseRole(raw)
		if err != nil {
			return nil, fmt.Errorf("auth.approver_roles: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, nil
}
