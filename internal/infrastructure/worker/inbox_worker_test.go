package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfiles map[string]*entity.Profile

func (f fakeProfiles) GetByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	if p, ok := f[email]; ok {
		return p, nil
	}
	return nil, entity.ErrNotFound
}

type fakeCapturer struct {
	mu     sync.Mutex
	inputs []port.CaptureInput
	users  []string
	err    error
}

func (f *fakeCapturer) Capture(ctx context.Context, caller entity.Identity, input port.CaptureInput) (*entity.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, input)
	f.users = append(f.users, caller.UserID)
	return &entity.Expense{ID: "exp-1", Source: input.Source}, nil
}

func (f *fakeCapturer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func newInboxFixture(t *testing.T, capturer *fakeCapturer) (*InboxWorker, *storage.LocalStore) {
	t.Helper()
	store := storage.NewLocalStore(t.TempDir(), nil)
	profiles := fakeProfiles{
		"ana@corp.io": {ID: "user-ana", Email: "ana@corp.io", Role: entity.RoleEmployee},
	}
	w := NewInboxWorker(InboxWorkerConfig{Dir: "inbox", PollInterval: 10 * time.Millisecond}, store, profiles, capturer, nil)
	return w, store
}

func TestInboxWorker_ProcessOnce(t *testing.T) {
	ctx := context.Background()
	capturer := &fakeCapturer{}
	w, store := newInboxFixture(t, capturer)

	require.NoError(t, store.Save(ctx, "inbox/ana@corp.io/lunch.txt", []byte("Chipotle $14.20")))
	require.NoError(t, store.Save(ctx, "inbox/ana@corp.io/hotel.pdf", []byte("%PDF")))
	require.NoError(t, store.Save(ctx, "inbox/ana@corp.io/notes.docx", []byte("?")))
	require.NoError(t, store.Save(ctx, "inbox/ghost@corp.io/taxi.txt", []byte("Uber $9")))

	stats, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, InboxStats{Captured: 2, Failed: 2}, stats)

	require.Len(t, capturer.inputs, 2)
	assert.Equal(t, entity.SourceReceipt, capturer.inputs[0].Source)
	assert.Equal(t, []byte("%PDF"), capturer.inputs[0].Content)
	assert.Equal(t, entity.SourceSMS, capturer.inputs[1].Source)
	assert.Equal(t, "Chipotle $14.20", capturer.inputs[1].Text)
	assert.Equal(t, []string{"user-ana", "user-ana"}, capturer.users)

	assert.True(t, store.Exists(ctx, "inbox/ana@corp.io/processed/lunch.txt"))
	assert.True(t, store.Exists(ctx, "inbox/ana@corp.io/processed/hotel.pdf"))
	assert.True(t, store.Exists(ctx, "inbox/ana@corp.io/failed/notes.docx"))
	assert.True(t, store.Exists(ctx, "inbox/ghost@corp.io/failed/taxi.txt"))

	again, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, InboxStats{}, again)
	assert.Equal(t, InboxStats{Captured: 2, Failed: 2}, w.Stats())
}

func TestInboxWorker_CaptureFailureMovesToFailed(t *testing.T) {
	ctx := context.Background()
	capturer := &fakeCapturer{err: errors.New("extractor down")}
	w, store := newInboxFixture(t, capturer)

	require.NoError(t, store.Save(ctx, "inbox/ana@corp.io/a.eml", []byte("Subject: receipt")))

	stats, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.True(t, store.Exists(ctx, "inbox/ana@corp.io/failed/a.eml"))
}

func TestInboxWorker_BatchSize(t *testing.T) {
	ctx := context.Background()
	capturer := &fakeCapturer{}
	w, store := newInboxFixture(t, capturer)
	w.config.BatchSize = 1

	require.NoError(t, store.Save(ctx, "inbox/ana@corp.io/1.txt", []byte("a")))
	require.NoError(t, store.Save(ctx, "inbox/ana@corp.io/2.txt", []byte("b")))

	stats, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Captured)
	assert.True(t, store.Exists(ctx, "inbox/ana@corp.io/2.txt"))
}

func TestInboxWorker_StartStop(t *testing.T) {
	ctx := context.Background()
	capturer := &fakeCapturer{}
	w, store := newInboxFixture(t, capturer)

	require.NoError(t, store.Save(ctx, "inbox/ana@corp.io/1.txt", []byte("a")))

	m := NewManager(nil)
	m.Register(w)
	require.NoError(t, m.StartAll(ctx))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(ctx))

	assert.Eventually(t, func() bool { return capturer.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Equal(t, 1, m.Count())
}

func TestCaptureInputFor(t *testing.T) {
	tests := []struct {
		file    string
		source  entity.Source
		mime    string
		wantErr bool
	}{
		{file: "r.PDF", source: entity.SourceReceipt, mime: "application/pdf"},
		{file: "r.jpeg", source: entity.SourceReceipt, mime: "image/jpeg"},
		{file: "m.eml", source: entity.SourceEmail},
		{file: "bank.csv", source: entity.SourceBankStatement},
		{file: "sms.txt", source: entity.SourceSMS},
		{file: "a.zip", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			input, err := CaptureInputFor(tt.file, []byte("x"))
			if tt.wantErr {
				assert.ErrorIs(t, err, entity.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.source, input.Source)
			assert.Equal(t, tt.mime, input.MimeType)
		})
	}
}
