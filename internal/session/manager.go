// Package session owns the credential pair and renews it.
//
// A Manager holds zero or one domain.Session. Renewal is single-flight:
// however many goroutines ask for a refresh while one is running, a single
// request goes to the service and every caller observes its outcome. A
// failed renewal clears the session; the user must log in again.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/mmcdole/rolo/internal/domain"
)

const refreshKey = "refresh"

// Refresher performs the remote refresh call
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (domain.Session, error)
}

// Manager implements the token lifecycle
type Manager struct {
	refresher Refresher
	store     domain.TokenStore
	logger    *slog.Logger

	mu      sync.RWMutex
	current *domain.Session // nil when logged out

	// storeMu is held across a change of current and the matching store
	// write, so the store always ends in the state of the last change.
	// Lock order: storeMu, then mu.
	storeMu sync.Mutex

	group singleflight.Group
}

// NewManager creates a manager and restores any session persisted in store
func NewManager(refresher Refresher, store domain.TokenStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{refresher: refresher, store: store, logger: logger}
	m.restore()
	return m
}

func (m *Manager) restore() {
	if m.store == nil {
		return
	}
	sess, ok, err := m.store.Load()
	if err != nil {
		m.logger.Warn("failed to load stored session", "error", err)
		return
	}
	if ok {
		m.mu.Lock()
		m.current = &sess
		m.mu.Unlock()
		m.logger.Debug("restored session")
	}
}

// AccessToken returns the current access token without blocking on renewal
func (m *Manager) AccessToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return "", false
	}
	return m.current.AccessToken, true
}

// Session returns a copy of the current session
func (m *Manager) Session() (domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return domain.Session{}, false
	}
	return *m.current, true
}

// Begin installs a new session and persists it. A session missing either
// token is ignored.
func (m *Manager) Begin(sess domain.Session) {
	if !sess.Complete() {
		m.logger.Error("ignoring partial session")
		return
	}
	m.install(sess)
	if exp, ok := m.Expiry(); ok {
		m.logger.Info("session started", "expires", exp.Format(time.RFC3339))
	} else {
		m.logger.Info("session started")
	}
}

// End clears the session and the token store. Safe to call repeatedly.
func (m *Manager) End() {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	m.clearStore()
}

// Refresh renews the session. Callers arriving while a renewal is in
// flight wait for it and receive its result. Errors wrap
// domain.ErrAuthExpired and leave the manager without a session.
func (m *Manager) Refresh(ctx context.Context) (domain.Session, error) {
	return m.refresh(ctx, "")
}

// RefreshIfStale renews the session unless rejected is no longer the
// current access token, in which case a renewal already happened and the
// current session is returned. With no session at all the previous
// renewal failed and ErrAuthExpired is returned without a remote call.
func (m *Manager) RefreshIfStale(ctx context.Context, rejected string) (domain.Session, error) {
	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()

	if current == nil {
		return domain.Session{}, domain.ErrAuthExpired
	}
	if current.AccessToken != rejected {
		return *current, nil
	}
	return m.refresh(ctx, rejected)
}

func (m *Manager) refresh(ctx context.Context, rejected string) (domain.Session, error) {
	v, err, shared := m.group.Do(refreshKey, func() (any, error) {
		return m.doRefresh(ctx, rejected)
	})
	if shared {
		m.logger.Debug("joined in-flight refresh")
	}
	if err != nil {
		return domain.Session{}, err
	}
	return v.(domain.Session), nil
}

// doRefresh runs inside the single flight. The staleness check is repeated
// here because a cycle may have finished between the caller's check and
// its entry into the flight.
func (m *Manager) doRefresh(ctx context.Context, rejected string) (domain.Session, error) {
	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()

	if current == nil {
		return domain.Session{}, domain.ErrAuthExpired
	}
	if rejected != "" && current.AccessToken != rejected {
		return *current, nil
	}

	// The renewal belongs to every waiter, not only the caller that started it
	ctx = context.WithoutCancel(ctx)

	m.logger.Debug("refreshing session")
	sess, err := m.refresher.Refresh(ctx, current.RefreshToken)
	if err == nil && !sess.Complete() {
		err = fmt.Errorf("refresh returned a partial session")
	}
	if err != nil {
		m.logger.Warn("session refresh failed, clearing session", "error", err)
		m.endIfCurrent(current)
		return domain.Session{}, fmt.Errorf("%w: %w", domain.ErrAuthExpired, err)
	}

	// Logout or a new login during the renewal wins over its result
	m.storeMu.Lock()
	m.mu.Lock()
	if m.current != current {
		replaced := m.current
		m.mu.Unlock()
		m.storeMu.Unlock()
		if replaced == nil {
			return domain.Session{}, domain.ErrAuthExpired
		}
		return *replaced, nil
	}
	m.current = &sess
	m.mu.Unlock()
	m.persist(sess)
	m.storeMu.Unlock()

	m.logger.Info("session refreshed")
	return sess, nil
}

// endIfCurrent clears the session only if s is still installed
func (m *Manager) endIfCurrent(s *domain.Session) {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.mu.Unlock()
	m.clearStore()
}

func (m *Manager) clearStore() {
	if m.store != nil {
		if err := m.store.Clear(); err != nil {
			m.logger.Warn("failed to clear stored session", "error", err)
		}
	}
}

func (m *Manager) install(sess domain.Session) {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	m.current = &sess
	m.mu.Unlock()
	m.persist(sess)
}

func (m *Manager) persist(sess domain.Session) {
	if m.store != nil {
		if err := m.store.Save(sess); err != nil {
			m.logger.Warn("failed to persist session", "error", err)
		}
	}
}

// Expiry reads the exp claim of the access token. The token is not
// verified; the result is informational only. Opaque tokens report false.
func (m *Manager) Expiry() (time.Time, bool) {
	token, ok := m.AccessToken()
	if !ok {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
