package properties

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/diagnostics"
	"github.com/GriffinCanCode/insights/internal/monitoring"
	"github.com/GriffinCanCode/insights/internal/pipeline"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

// Identifier is the enrichment stage's identifier.
const Identifier = "AppInsightsPropertiesPlugin"

// DeviceType is reported for every process.
const DeviceType = "Other"

type userRecord struct {
	ID       string    `json:"id"`
	Acquired time.Time `json:"acquired"`
}

// Stage stamps session, user, device and SDK context onto every item.
type Stage struct {
	store   Store
	now     func() time.Time
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	session *SessionManager
	userID  string
	version string
}

// Option customizes a Stage.
type Option func(*Stage)

// WithStore replaces the file store built from storageDir.
func WithStore(store Store) Option {
	return func(s *Stage) {
		s.store = store
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Stage) {
		s.now = now
	}
}

// WithMetrics counts started sessions.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Stage) {
		s.metrics = m
	}
}

// New creates an uninitialized stage.
func New(opts ...Option) *Stage {
	s := &Stage{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Identifier implements pipeline.Stage.
func (s *Stage) Identifier() string {
	return Identifier
}

// Initialize implements pipeline.Stage. An unusable storage directory falls
// back to an in-memory store.
func (s *Stage) Initialize(cfg *config.Resolved, core pipeline.Handle, _ []pipeline.Stage) error {
	if cfg == nil {
		return pipeline.ErrNilConfig
	}

	var logger diagnostics.Logger = diagnostics.Nop{}
	version := ""
	if core != nil {
		logger = core.Logger()
		version = core.Version()
	}

	store := s.store
	if store == nil {
		fs, err := NewFileStore(cfg.StorageDir)
		if err != nil {
			logger.ThrowInternal(diagnostics.Warning, diagnostics.SessionStorageFailed,
				"Session storage unavailable, using memory", map[string]any{"exception": err.Error()})
			store = NewMemoryStore()
		} else {
			store = fs
		}
	}

	manager := NewSessionManager(store, SessionOptions{
		Renewal:         cfg.SessionRenewal,
		Expiration:      cfg.SessionExpiration,
		CookiesDisabled: cfg.IsCookieUseDisabled,
		StorageDisabled: cfg.IsStorageUseDisabled,
		Now:             s.now,
		Logger:          logger,
		OnStart: func(Session) {
			if s.metrics != nil {
				s.metrics.SessionsStarted.Inc()
			}
		},
	})

	userID := loadUser(store, cfg.IsCookieUseDisabled, s.now(), logger)

	s.mu.Lock()
	s.store = store
	s.session = manager
	s.userID = userID
	s.version = version
	s.mu.Unlock()
	return nil
}

// SessionManager returns the session manager, or nil before Initialize.
func (s *Stage) SessionManager() *SessionManager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// UserID returns the anonymous user id.
func (s *Stage) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// ProcessTelemetry implements pipeline.Processor. Tags already on the item
// win.
func (s *Stage) ProcessTelemetry(item *telemetry.Item) bool {
	s.mu.RLock()
	manager, userID, version := s.session, s.userID, s.version
	s.mu.RUnlock()

	if manager != nil {
		session := manager.Update()
		item.SetTagIfAbsent(telemetry.TagSessionID, session.ID)
		if session.IsFirst {
			item.SetTagIfAbsent(telemetry.TagSessionIsNew, "true")
		}
	}
	if userID != "" {
		item.SetTagIfAbsent(telemetry.TagUserID, userID)
	}
	item.SetTagIfAbsent(telemetry.TagDeviceOS, runtime.GOOS+"/"+runtime.GOARCH)
	item.SetTagIfAbsent(telemetry.TagDeviceType, DeviceType)
	if version != "" {
		item.SetTagIfAbsent(telemetry.TagSDKVersion, "go:"+version)
	}
	return true
}

func loadUser(store Store, cookiesDisabled bool, now time.Time, logger diagnostics.Logger) string {
	if cookiesDisabled {
		return uuid.NewString()
	}

	data, err := store.Get(UserKey)
	if err == nil {
		var rec userRecord
		if err = sonic.Unmarshal(data, &rec); err == nil && rec.ID != "" {
			return rec.ID
		}
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		logger.ThrowInternal(diagnostics.Warning, diagnostics.SessionStorageFailed,
			"Failed to read user record", map[string]any{"exception": err.Error()})
	}

	rec := userRecord{ID: uuid.NewString(), Acquired: now}
	if data, err := sonic.Marshal(rec); err == nil {
		if err := store.Set(UserKey, data); err != nil {
			logger.ThrowInternal(diagnostics.Warning, diagnostics.SessionStorageFailed,
				"Failed to store user record", map[string]any{"exception": err.Error()})
		}
	}
	return rec.ID
}
