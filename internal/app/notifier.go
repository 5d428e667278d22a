package app

import (
	"sync"

	"go.uber.org/zap"
)

// Level is the severity of a notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a transient, non-blocking message for the user
type Notification struct {
	Level   Level
	Title   string
	Message string
	Kind    Kind
}

// Notifier shows transient notifications
type Notifier interface {
	Notify(n Notification)
}

func notifySuccess(n Notifier, message string) {
	n.Notify(Notification{Level: LevelSuccess, Title: "Success", Message: message, Kind: KindOK})
}

func notifyError(n Notifier, message string, res Result) {
	n.Notify(Notification{Level: LevelError, Title: "Error", Message: message, Kind: res.Kind})
}

// notifyIndeterminate reports an action whose outcome is unknown. The
// caller reloads so the list shows what the server actually holds.
func notifyIndeterminate(n Notifier, res Result) {
	n.Notify(Notification{
		Level:   LevelError,
		Title:   "Outcome unknown",
		Message: "The request may have been applied. The list has been refreshed.",
		Kind:    res.Kind,
	})
}

// LogNotifier writes notifications to a zap logger
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the notification at info or warn level
func (l *LogNotifier) Notify(n Notification) {
	fields := []zap.Field{
		zap.String("title", n.Title),
		zap.String("kind", string(n.Kind)),
	}
	if n.Level == LevelError {
		l.logger.Warn(n.Message, fields...)
		return
	}
	l.logger.Info(n.Message, fields...)
}

// Recorder keeps notifications in memory
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify records n
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of every recorded notification
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Reset discards recorded notifications
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
