package properties

import (
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/GriffinCanCode/insights/internal/diagnostics"
)

// Record keys.
const (
	SessionKey       = "ai_session"
	SessionBackupKey = "ai_session_backup"
	UserKey          = "ai_user"
)

// rewriteInterval throttles live-record writes while a session is renewed.
const rewriteInterval = time.Minute

// Session is the current user session.
type Session struct {
	ID       string    `json:"id"`
	Acquired time.Time `json:"acquired"`
	Renewed  time.Time `json:"renewed"`
	// IsFirst is set on the first item of a newly started session.
	IsFirst bool `json:"-"`
}

// Expired reports whether the session must be replaced at now.
func (s Session) Expired(now time.Time, renewal, expiration time.Duration) bool {
	if s.ID == "" {
		return true
	}
	return now.Sub(s.Acquired) > expiration || now.Sub(s.Renewed) > renewal
}

// SessionOptions configures a SessionManager.
type SessionOptions struct {
	Renewal         time.Duration
	Expiration      time.Duration
	CookiesDisabled bool
	StorageDisabled bool
	Now             func() time.Time
	Logger          diagnostics.Logger
	OnStart         func(Session)
}

// SessionManager owns the session lifecycle: restore, renew, replace and
// back up.
type SessionManager struct {
	opts  SessionOptions
	store Store

	mu        sync.Mutex
	current   Session
	loaded    bool
	announced bool
	written   time.Time
}

// NewSessionManager creates a manager backed by store.
func NewSessionManager(store Store, opts SessionOptions) *SessionManager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = diagnostics.Nop{}
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &SessionManager{opts: opts, store: store}
}

// Update renews the current session, starting a new one when it has expired,
// and returns it.
func (m *SessionManager) Update() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.Now()
	if !m.loaded {
		m.loaded = true
		if s, ok := m.restore(); ok {
			m.current = s
			m.announced = true
		}
	}

	if m.current.Expired(now, m.opts.Renewal, m.opts.Expiration) {
		m.current = Session{ID: uuid.NewString(), Acquired: now, Renewed: now}
		m.announced = false
		m.writeLive(now)
		if m.opts.OnStart != nil {
			m.opts.OnStart(m.current)
		}
	} else {
		m.current.Renewed = now
		if now.Sub(m.written) >= rewriteInterval {
			m.writeLive(now)
		}
	}

	out := m.current
	out.IsFirst = !m.announced
	m.announced = true
	return out
}

// Current returns the session without renewing it.
func (m *SessionManager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Backup writes the session to the backup record. It is a no-op when
// storage use is disabled or no session has started.
func (m *SessionManager) Backup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.opts.StorageDisabled || m.current.ID == "" {
		return nil
	}
	data, err := sonic.Marshal(m.current)
	if err == nil {
		err = m.store.Set(SessionBackupKey, data)
	}
	if err != nil {
		m.opts.Logger.ThrowInternal(diagnostics.Warning, diagnostics.FailedToBackupSession,
			"Failed to back up session", map[string]any{"exception": err.Error()})
	}
	return err
}

func (m *SessionManager) restore() (Session, bool) {
	now := m.opts.Now()
	if !m.opts.CookiesDisabled {
		if s, ok := m.read(SessionKey); ok && !s.Expired(now, m.opts.Renewal, m.opts.Expiration) {
			return s, true
		}
	}
	if !m.opts.StorageDisabled {
		if s, ok := m.read(SessionBackupKey); ok && !s.Expired(now, m.opts.Renewal, m.opts.Expiration) {
			return s, true
		}
	}
	return Session{}, false
}

func (m *SessionManager) read(key string) (Session, bool) {
	data, err := m.store.Get(key)
	if errors.Is(err, ErrNotFound) {
		return Session{}, false
	}
	var s Session
	if err == nil {
		err = sonic.Unmarshal(data, &s)
	}
	if err != nil {
		m.opts.Logger.ThrowInternal(diagnostics.Warning, diagnostics.FailedToRestoreSession,
			"Failed to restore session", map[string]any{"key": key, "exception": err.Error()})
		return Session{}, false
	}
	return s, s.ID != ""
}

func (m *SessionManager) writeLive(now time.Time) {
	if m.opts.CookiesDisabled {
		return
	}
	data, err := sonic.Marshal(m.current)
	if err == nil {
		err = m.store.Set(SessionKey, data)
	}
	if err != nil {
		m.opts.Logger.ThrowInternal(diagnostics.Warning, diagnostics.SessionStorageFailed,
			"Failed to store session", map[string]any{"exception": err.Error()})
		return
	}
	m.written = now
}
