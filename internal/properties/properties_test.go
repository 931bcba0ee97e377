package properties

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/diagnostics"
	"github.com/GriffinCanCode/insights/internal/pipeline"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type handle struct{}

func (handle) Track(*telemetry.Item)                      {}
func (handle) Logger() diagnostics.Logger                 { return diagnostics.Nop{} }
func (handle) Version() string                            { return "2.0.0" }
func (handle) TransmissionControls() [][]pipeline.Channel { return nil }

func TestStores(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "nested"))
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get("ai_user")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Set("ai_user", []byte(`{"id":"u"}`)))
			got, err := store.Get("ai_user")
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"u"}`, string(got))

			require.NoError(t, store.Set("ai_user", []byte(`{"id":"v"}`)))
			got, err = store.Get("ai_user")
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"v"}`, string(got))

			require.NoError(t, store.Remove("ai_user"))
			require.NoError(t, store.Remove("ai_user"))
			_, err = store.Get("ai_user")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, fs.Set("../escape", []byte("x")))
	_, err = fs.Get("a/b")
	assert.Error(t, err)
}

func TestSessionRenewalAndExpiration(t *testing.T) {
	tests := []struct {
		name   string
		steps  []time.Duration
		sameID bool
	}{
		{name: "activity within renewal keeps session", steps: []time.Duration{10 * time.Minute, 10 * time.Minute, 10 * time.Minute}, sameID: true},
		{name: "idle past renewal starts new session", steps: []time.Duration{31 * time.Minute}, sameID: false},
		{name: "age past expiration starts new session", steps: []time.Duration{20 * time.Minute, 20 * time.Minute, 20 * time.Minute, 20 * time.Minute}, sameID: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClock()
			m := NewSessionManager(NewMemoryStore(), SessionOptions{
				Renewal:    30 * time.Minute,
				Expiration: time.Hour,
				Now:        c.Now,
			})

			first := m.Update()
			assert.True(t, first.IsFirst)
			last := first
			for _, step := range tt.steps {
				c.Advance(step)
				last = m.Update()
			}
			assert.Equal(t, tt.sameID, first.ID == last.ID)
			assert.Equal(t, !tt.sameID, last.IsFirst)
		})
	}
}

func TestSessionRestoredFromLiveRecord(t *testing.T) {
	c := newClock()
	store := NewMemoryStore()
	opts := SessionOptions{Renewal: 30 * time.Minute, Expiration: 24 * time.Hour, Now: c.Now}

	original := NewSessionManager(store, opts).Update()

	c.Advance(5 * time.Minute)
	restored := NewSessionManager(store, opts).Update()
	assert.Equal(t, original.ID, restored.ID)
	assert.False(t, restored.IsFirst)
}

func TestSessionRestoredFromBackup(t *testing.T) {
	c := newClock()
	store := NewMemoryStore()
	opts := SessionOptions{
		Renewal:         30 * time.Minute,
		Expiration:      24 * time.Hour,
		CookiesDisabled: true,
		Now:             c.Now,
	}

	m := NewSessionManager(store, opts)
	original := m.Update()
	_, err := store.Get(SessionKey)
	assert.ErrorIs(t, err, ErrNotFound, "live record must not be written with cookies disabled")

	require.NoError(t, m.Backup())

	c.Advance(time.Minute)
	restored := NewSessionManager(store, opts).Update()
	assert.Equal(t, original.ID, restored.ID)
}

func TestBackupSkippedWhenStorageDisabled(t *testing.T) {
	store := NewMemoryStore()
	m := NewSessionManager(store, SessionOptions{
		Renewal:         time.Minute,
		Expiration:      time.Hour,
		StorageDisabled: true,
	})
	m.Update()

	require.NoError(t, m.Backup())
	_, err := store.Get(SessionBackupKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredStoredSessionIsReplaced(t *testing.T) {
	c := newClock()
	store := NewMemoryStore()
	opts := SessionOptions{Renewal: 30 * time.Minute, Expiration: 24 * time.Hour, Now: c.Now}

	original := NewSessionManager(store, opts).Update()
	c.Advance(2 * time.Hour)

	fresh := NewSessionManager(store, opts).Update()
	assert.NotEqual(t, original.ID, fresh.ID)
	assert.True(t, fresh.IsFirst)
}

func TestCorruptRecordReported(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(SessionKey, []byte("not json")))

	var ids []diagnostics.MessageID
	logger := loggerFunc(func(id diagnostics.MessageID) { ids = append(ids, id) })

	s := NewSessionManager(store, SessionOptions{Renewal: time.Minute, Expiration: time.Hour, Logger: logger}).Update()
	assert.NotEmpty(t, s.ID)
	assert.Contains(t, ids, diagnostics.FailedToRestoreSession)
}

type loggerFunc func(diagnostics.MessageID)

func (f loggerFunc) WarnToConsole(string) {}

func (f loggerFunc) ThrowInternal(_ diagnostics.Severity, id diagnostics.MessageID, _ string, _ map[string]any) {
	f(id)
}

func TestStageTagsItems(t *testing.T) {
	store := NewMemoryStore()
	stage := New(WithStore(store))
	require.NoError(t, stage.Initialize(config.Resolve(nil), handle{}, nil))
	assert.Equal(t, Identifier, stage.Identifier())

	first := telemetry.Event{Name: "a"}.Item(nil)
	assert.True(t, stage.ProcessTelemetry(first))
	second := telemetry.Event{Name: "b"}.Item(nil)
	stage.ProcessTelemetry(second)

	assert.NotEmpty(t, first.Tag(telemetry.TagSessionID))
	assert.Equal(t, first.Tag(telemetry.TagSessionID), second.Tag(telemetry.TagSessionID))
	assert.Equal(t, "true", first.Tag(telemetry.TagSessionIsNew))
	assert.Empty(t, second.Tag(telemetry.TagSessionIsNew))
	assert.Equal(t, stage.UserID(), first.Tag(telemetry.TagUserID))
	assert.Equal(t, DeviceType, first.Tag(telemetry.TagDeviceType))
	assert.Equal(t, "go:2.0.0", first.Tag(telemetry.TagSDKVersion))
	assert.NotEmpty(t, first.Tag(telemetry.TagDeviceOS))
}

func TestStageKeepsExistingTags(t *testing.T) {
	stage := New(WithStore(NewMemoryStore()))
	require.NoError(t, stage.Initialize(config.Resolve(nil), handle{}, nil))

	item := telemetry.Event{Name: "a"}.Item(nil)
	item.SetTag(telemetry.TagUserID, "known-user")
	stage.ProcessTelemetry(item)

	assert.Equal(t, "known-user", item.Tag(telemetry.TagUserID))
}

func TestUserPersistedAcrossStages(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Resolve(&config.Configuration{StorageDir: dir})

	first := New()
	require.NoError(t, first.Initialize(cfg, handle{}, nil))
	second := New()
	require.NoError(t, second.Initialize(cfg, handle{}, nil))

	assert.NotEmpty(t, first.UserID())
	assert.Equal(t, first.UserID(), second.UserID())
	_, err := os.Stat(filepath.Join(dir, UserKey+".json"))
	assert.NoError(t, err)
}

func TestUserNotPersistedWithCookiesDisabled(t *testing.T) {
	store := NewMemoryStore()
	cfg := config.Resolve(&config.Configuration{IsCookieUseDisabled: config.FlagOf(true)})

	stage := New(WithStore(store))
	require.NoError(t, stage.Initialize(cfg, handle{}, nil))

	assert.NotEmpty(t, stage.UserID())
	_, err := store.Get(UserKey)
	assert.ErrorIs(t, err, ErrNotFound)
}
