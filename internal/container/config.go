// Package container provides dependency injection and lifecycle management
// for the expense desk following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Auth configuration
	Auth AuthConfig

	// Lark API configuration
	Lark LarkConfig

	// OpenAI configuration
	OpenAI OpenAIConfig

	// Storage configuration
	Storage StorageConfig

	// Worker configuration
	Worker WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// MigrationsDir replaces the embedded migrations when set
	MigrationsDir string
}

// AuthConfig holds session token and approval authority settings.
type AuthConfig struct {
	JWTSecret     string
	Issuer        string
	TokenTTL      time.Duration
	ApproverRoles []entity.Role
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID     string
	AppSecret string
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Empty selects the keyword extractor.
	APIKey string

	// BaseURL overrides the API endpoint
	BaseURL string

	// Model is the model to use (e.g., "gpt-4o-mini")
	Model string

	// Temperature controls randomness (0.0-1.0)
	Temperature float32

	// Timeout for API calls
	Timeout time.Duration
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// BaseDir is the root of receipts and the inbox
	BaseDir string

	// ReceiptMaxPages caps the PDF pages read from a receipt
	ReceiptMaxPages int
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	InboxEnabled        bool
	InboxDir            string
	InboxPollInterval   time.Duration
	InboxBatchSize      int
	InboxCaptureTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/expenses.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Auth: AuthConfig{
			Issuer:        "expense-desk",
			TokenTTL:      24 * time.Hour,
			ApproverRoles: []entity.Role{entity.RoleAdmin, entity.RoleManager, entity.RoleFinanceAdmin},
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
			Timeout:     60 * time.Second,
		},
		Storage: StorageConfig{
			BaseDir:         "data/files",
			ReceiptMaxPages: 3,
		},
		Worker: WorkerConfig{
			InboxEnabled:        true,
			InboxDir:            "inbox",
			InboxPollInterval:   10 * time.Second,
			InboxBatchSize:      20,
			InboxCaptureTimeout: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Worker.InboxEnabled && c.Worker.InboxBatchSize <= 0 {
		return fmt.Errorf("inbox batch size must be positive")
	}
	return nil
}
