package worker

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"go.uber.org/zap"
)

// Capturer turns one raw capture into a draft expense
type Capturer interface {
	Capture(ctx context.Context, caller entity.Identity, input port.CaptureInput) (*entity.Expense, error)
}

// ProfileFinder resolves the owner of an inbox folder
type ProfileFinder interface {
	GetByEmail(ctx context.Context, email string) (*entity.Profile, error)
}

// InboxWorkerConfig holds configuration for the inbox worker
type InboxWorkerConfig struct {
	// Dir is the inbox root relative to the storage base. Each subdirectory
	// is named after the email of the profile that owns its files.
	Dir            string
	PollInterval   time.Duration
	BatchSize      int
	CaptureTimeout time.Duration
}

// DefaultInboxWorkerConfig returns default configuration
func DefaultInboxWorkerConfig() InboxWorkerConfig {
	return InboxWorkerConfig{
		Dir:            "inbox",
		PollInterval:   10 * time.Second,
		BatchSize:      20,
		CaptureTimeout: 30 * time.Second,
	}
}

// Folders that processed files are moved into, below each user folder
const (
	processedDir = "processed"
	failedDir    = "failed"
)

// InboxStats counts the outcome of one or more polls
type InboxStats struct {
	Captured int
	Failed   int
}

// InboxWorker polls a drop folder and captures every file it finds as a
// draft expense of the folder's owner
type InboxWorker struct {
	config   InboxWorkerConfig
	storage  port.FileStorage
	profiles ProfileFinder
	capturer Capturer
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	stats   InboxStats
}

// NewInboxWorker creates a new inbox worker
func NewInboxWorker(config InboxWorkerConfig, storage port.FileStorage, profiles ProfileFinder, capturer Capturer, logger *zap.Logger) *InboxWorker {
	defaults := DefaultInboxWorkerConfig()
	if config.Dir == "" {
		config.Dir = defaults.Dir
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.CaptureTimeout <= 0 {
		config.CaptureTimeout = defaults.CaptureTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboxWorker{
		config:   config,
		storage:  storage,
		profiles: profiles,
		capturer: capturer,
		logger:   logger,
	}
}

// Name returns the worker name for identification
func (w *InboxWorker) Name() string {
	return "InboxWorker"
}

// Start begins the polling loop
func (w *InboxWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("inbox worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true

	w.logger.Info("InboxWorker started",
		zap.String("dir", w.config.Dir),
		zap.Duration("poll_interval", w.config.PollInterval))

	go w.pollLoop(ctx, w.done)
	return nil
}

// Stop terminates the polling loop and waits for the current poll to finish
func (w *InboxWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("InboxWorker stopped",
		zap.Int("captured", stats.Captured),
		zap.Int("failed", stats.Failed))
	return nil
}

// Stats returns the totals since the worker was created
func (w *InboxWorker) Stats() InboxStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *InboxWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil {
				w.logger.Error("Failed to process inbox", zap.Error(err))
			}
		}
	}
}

// ProcessOnce captures up to BatchSize files across all user folders
func (w *InboxWorker) ProcessOnce(ctx context.Context) (InboxStats, error) {
	var stats InboxStats

	owners, err := w.storage.Dirs(ctx, w.config.Dir)
	if err != nil {
		return stats, fmt.Errorf("list inbox owners: %w", err)
	}

	for _, owner := range owners {
		if ctx.Err() != nil || stats.Captured+stats.Failed >= w.config.BatchSize {
			break
		}
		dir := path.Join(w.config.Dir, owner)
		files, err := w.storage.List(ctx, dir)
		if err != nil {
			w.logger.Error("Failed to list inbox folder", zap.String("dir", dir), zap.Error(err))
			continue
		}
		if len(files) == 0 {
			continue
		}

		caller, lookupErr := w.resolveOwner(ctx, owner)
		for _, file := range files {
			if ctx.Err() != nil || stats.Captured+stats.Failed >= w.config.BatchSize {
				break
			}
			err := lookupErr
			if err == nil {
				err = w.captureFile(ctx, caller, file)
			}
			if err != nil {
				w.logger.Warn("Failed to capture inbox file",
					zap.String("file", file),
					zap.String("owner", owner),
					zap.Error(err))
				stats.Failed++
				w.moveTo(ctx, file, failedDir)
				continue
			}
			stats.Captured++
			w.moveTo(ctx, file, processedDir)
		}
	}

	w.mu.Lock()
	w.stats.Captured += stats.Captured
	w.stats.Failed += stats.Failed
	w.mu.Unlock()

	if stats.Captured+stats.Failed > 0 {
		w.logger.Info("Inbox processed",
			zap.Int("captured", stats.Captured),
			zap.Int("failed", stats.Failed))
	}
	return stats, nil
}

func (w *InboxWorker) resolveOwner(ctx context.Context, email string) (entity.Identity, error) {
	profile, err := w.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return entity.Identity{}, fmt.Errorf("no profile for inbox %q: %w", email, err)
		}
		return entity.Identity{}, fmt.Errorf("resolve inbox owner: %w", err)
	}
	return entity.Identity{UserID: profile.ID, Email: profile.Email, Role: profile.Role}, nil
}

func (w *InboxWorker) captureFile(ctx context.Context, caller entity.Identity, file string) error {
	content, err := w.storage.Read(ctx, file)
	if err != nil {
		return err
	}

	input, err := CaptureInputFor(path.Base(file), content)
	if err != nil {
		return err
	}

	captureCtx, cancel := context.WithTimeout(ctx, w.config.CaptureTimeout)
	defer cancel()

	expense, err := w.capturer.Capture(captureCtx, caller, input)
	if err != nil {
		return err
	}
	w.logger.Info("Captured inbox file",
		zap.String("file", file),
		zap.String("expense_id", expense.ID),
		zap.String("source", string(expense.Source)))
	return nil
}

// moveTo relocates a handled file so the next poll skips it
func (w *InboxWorker) moveTo(ctx context.Context, file, folder string) {
	target := path.Join(path.Dir(file), folder, path.Base(file))
	if err := w.storage.Move(ctx, file, target); err != nil {
		w.logger.Error("Failed to move inbox file",
			zap.String("file", file),
			zap.String("folder", folder),
			zap.Error(err))
	}
}

// CaptureInputFor builds a capture from a dropped file. The extension picks
// the source channel: documents and images are receipts, .eml files are
// emails, .csv files are bank statements and plain text is an SMS.
func CaptureInputFor(fileName string, content []byte) (port.CaptureInput, error) {
	input := port.CaptureInput{FileName: fileName}
	switch strings.ToLower(path.Ext(fileName)) {
	case ".pdf":
		input.Source = entity.SourceReceipt
		input.MimeType = "application/pdf"
		input.Content = content
	case ".png":
		input.Source = entity.SourceReceipt
		input.MimeType = "image/png"
		input.Content = content
	case ".jpg", ".jpeg":
		input.Source = entity.SourceReceipt
		input.MimeType = "image/jpeg"
		input.Content = content
	case ".eml":
		input.Source = entity.SourceEmail
		input.Text = string(content)
	case ".csv":
		input.Source = entity.SourceBankStatement
		input.Text = string(content)
	case ".txt", ".sms":
		input.Source = entity.SourceSMS
		input.Text = string(content)
	default:
		return input, entity.Invalidf("unsupported inbox file %q", fileName)
	}
	return input, nil
}
