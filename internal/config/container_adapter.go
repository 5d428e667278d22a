package config

import (
	"github.com/garyjia/expense-desk/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	roles, err := c.ApproverRoles()
	if err != nil {
		return nil, err
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Auth: container.AuthConfig{
			JWTSecret:     c.Auth.JWTSecret,
			Issuer:        c.Auth.Issuer,
			TokenTTL:      c.Auth.TokenTTL,
			ApproverRoles: roles,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
		},
		OpenAI: container.OpenAIConfig{
			APIKey:      c.OpenAI.APIKey,
			BaseURL:     c.OpenAI.BaseURL,
			Model:       c.OpenAI.Model,
			Temperature: c.OpenAI.Temperature,
			Timeout:     c.OpenAI.Timeout,
		},
		Storage: container.StorageConfig{
			BaseDir:         c.Storage.BaseDir,
			ReceiptMaxPages: c.Storage.ReceiptMaxPages,
		},
		Worker: container.WorkerConfig{
			InboxEnabled:        c.Inbox.Enabled,
			InboxDir:            c.Inbox.Dir,
			InboxPollInterval:   c.Inbox.PollInterval,
			InboxBatchSize:      c.Inbox.BatchSize,
			InboxCaptureTimeout: c.Inbox.CaptureTimeout,
		},
	}, nil
}
