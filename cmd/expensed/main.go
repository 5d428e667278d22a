// Command expensed runs the expense desk backend and its operator tools.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/expense-desk/internal/config"
	"github.com/garyjia/expense-desk/internal/container"
	"github.com/garyjia/expense-desk/pkg/utils"
)

var (
	flagConfig string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "expensed",
	Short: "Expense approval desk",
	Long:  "expensed serves the expense desk API and provides operator commands for migrations, seeding, capture and export.",
	// Errors are printed once by main
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "configs/config.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "force debug logging")
}

// loadConfig reads the configuration named by --config
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if flagDebug {
		cfg.Logger.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return logger, nil
}

// openContainer starts a container for a one-shot command. The inbox
// worker is left off so the command never races the running server.
func openContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*container.Container, error) {
	cfg.Inbox.Enabled = false
	return startContainer(ctx, cfg, logger)
}

func startContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*container.Container, error) {
	containerCfg, err := cfg.ToContainerConfig()
	if err != nil {
		return nil, err
	}
	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("start container: %w", err)
	}
	return c, nil
}

// withContainer loads configuration, starts a one-shot container and runs fn
func withContainer(ctx context.Context, fn func(ctx context.Context, c *container.Container, logger *zap.Logger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := openContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c, logger)
}
