package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-desk/internal/application/dispatcher"
	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/application/service"
	"github.com/garyjia/expense-desk/internal/application/workflow"
	"github.com/garyjia/expense-desk/internal/infrastructure/capture"
	"github.com/garyjia/expense-desk/internal/infrastructure/export"
	infraLark "github.com/garyjia/expense-desk/internal/infrastructure/external/lark"
	"github.com/garyjia/expense-desk/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-desk/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-desk/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-desk/internal/infrastructure/receipt"
	"github.com/garyjia/expense-desk/internal/infrastructure/storage"
	"github.com/garyjia/expense-desk/internal/infrastructure/worker"
	"github.com/garyjia/expense-desk/migrations"
	"github.com/garyjia/expense-desk/pkg/auth"
	"github.com/garyjia/expense-desk/pkg/database"
	"github.com/garyjia/expense-desk/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// ExternalBundle holds the adapters of external systems.
type ExternalBundle struct {
	Messenger   port.Messenger
	Extractor   port.Extractor
	Reader      port.DocumentTextReader
	Spreadsheet port.SpreadsheetWriter
}

// ProvideDatabase opens the database and applies pending migrations.
// Embedded migrations are used unless a migrations directory is configured.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(conn, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrations(cfg.MigrationsDir)
	} else {
		err = migrator.Run(migrations.FS)
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories on top of the transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Expense:  repository.NewExpenseRepository(db, logger),
		History:  repository.NewHistoryRepository(db, logger),
		Profile:  repository.NewProfileRepository(db, logger),
		Category: repository.NewCategoryRepository(db, logger),
		Rule:     repository.NewRuleRepository(db, logger),
	}, nil
}

// ProvideMessenger returns the Lark messenger, or a logging stand-in when
// no Lark credentials are configured.
func ProvideMessenger(cfg *LarkConfig, logger *zap.Logger) port.Messenger {
	larkCfg := infraLark.Config{AppID: cfg.AppID, AppSecret: cfg.AppSecret}
	if !larkCfg.Enabled() {
		logger.Info("Lark is not configured, notifications will be logged")
		return infraLark.NewLogMessenger(logger)
	}
	return infraLark.NewMessenger(infraLark.NewSDKClient(larkCfg, logger), logger)
}

// ProvideExtractor returns the OpenAI extractor, or the keyword extractor
// when no API key is configured. categories are offered to the model.
func ProvideExtractor(cfg *OpenAIConfig, categories []string, logger *zap.Logger) port.Extractor {
	if cfg.APIKey == "" {
		logger.Info("OpenAI is not configured, capture uses keyword extraction")
		return capture.NewKeywordExtractor()
	}
	return openai.NewExtractor(openai.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Categories:  categories,
		Timeout:     cfg.Timeout,
	}, logger)
}

// ProvideExternal creates every external adapter.
func ProvideExternal(cfg *Config, repos *RepositoryBundle, logger *zap.Logger) (*ExternalBundle, error) {
	if cfg == nil || repos == nil {
		return nil, fmt.Errorf("config and repositories are required")
	}

	categories, err := repos.Category.List(context.Background(), true)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}

	return &ExternalBundle{
		Messenger:   ProvideMessenger(&cfg.Lark, logger),
		Extractor:   ProvideExtractor(&cfg.OpenAI, names, logger),
		Reader:      receipt.NewPDFTextReader(cfg.Storage.ReceiptMaxPages, logger),
		Spreadsheet: export.NewSpreadsheetWriter(logger),
	}, nil
}

// ProvideStorage creates the local file store.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return storage.NewLocalStore(cfg.BaseDir, logger), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher"))),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	External   *ExternalBundle
	Storage    port.FileStorage
	Auth       *AuthConfig
	Logger     *zap.Logger
}

// ProvideServices creates the lifecycle engine and all application services,
// and subscribes the notification service to lifecycle events.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.External == nil || deps.Auth == nil {
		return nil, fmt.Errorf("external adapters and auth config are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := utils.NewKVLogger(deps.Logger.Named("service"))
	policy := workflow.NewRolePolicy(deps.Auth.ApproverRoles)

	engine := workflow.NewEngine(
		deps.Repos.Expense,
		deps.Repos.History,
		deps.TxManager,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithPolicy(policy),
	)

	expenses := service.NewExpenseService(
		deps.Repos.Expense,
		deps.Repos.History,
		deps.TxManager,
		engine,
		policy,
		deps.Dispatcher,
		serviceLogger,
	)

	notifications := service.NewNotificationService(
		deps.Repos.Profile,
		deps.External.Messenger,
		deps.Auth.ApproverRoles,
		serviceLogger,
	)
	notifications.Register(deps.Dispatcher)

	jwtManager := auth.NewJWTManager(deps.Auth.JWTSecret, deps.Auth.Issuer, deps.Auth.TokenTTL)

	return &ServiceBundle{
		Engine:   engine,
		Policy:   policy,
		Auth:     service.NewAuthService(deps.Repos.Profile, jwtManager, serviceLogger),
		Expenses: expenses,
		Profiles: service.NewProfileService(deps.Repos.Profile, policy, deps.Dispatcher, serviceLogger),
		Catalog:  service.NewCatalogService(deps.Repos.Category, deps.Repos.Rule, serviceLogger),
		Capture: service.NewCaptureService(
			expenses,
			deps.External.Extractor,
			deps.External.Reader,
			deps.Storage,
			serviceLogger,
		),
		Notification: notifications,
	}, nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Repos     *RepositoryBundle
	Storage   port.FileStorage
	Capture   service.CaptureService
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers creates and registers all background workers.
// Returns a *worker.Manager with all workers registered but not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.Manager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Storage == nil || deps.Capture == nil {
		return nil, fmt.Errorf("storage and capture service are required")
	}
	if deps.WorkerCfg == nil {
		return nil, fmt.Errorf("worker config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewManager(deps.Logger)
	if !deps.WorkerCfg.InboxEnabled {
		return manager, nil
	}

	inboxCfg := worker.InboxWorkerConfig{
		Dir:            deps.WorkerCfg.InboxDir,
		PollInterval:   deps.WorkerCfg.InboxPollInterval,
		BatchSize:      deps.WorkerCfg.InboxBatchSize,
		CaptureTimeout: deps.WorkerCfg.InboxCaptureTimeout,
	}
	manager.Register(worker.NewInboxWorker(
		inboxCfg,
		deps.Storage,
		deps.Repos.Profile,
		deps.Capture,
		deps.Logger,
	))

	return manager, nil
}
