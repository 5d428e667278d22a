package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/garyjia/expense-desk/internal/interfaces/http"
	"github.com/garyjia/expense-desk/pkg/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the inbox worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateServe(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		logger.Info("Starting expense desk",
			zap.Int("port", cfg.Server.Port),
			zap.Bool("inbox_enabled", cfg.Inbox.Enabled))

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := startContainer(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := c.Close(); err != nil {
				logger.Error("Failed to close container", zap.Error(err))
			}
		}()

		services := c.Services()
		server := httpapi.NewServer(httpapi.ServerConfig{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
		}, httpapi.Services{
			Auth:     services.Auth,
			Expenses: services.Expenses,
			Profiles: services.Profiles,
			Catalog:  services.Catalog,
			Capture:  services.Capture,
		}, utils.NewKVLogger(logger))

		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		logger.Info("Server exited successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
