// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/helios-robotics/roverops/internal/domain/model"
	"github.com/helios-robotics/roverops/internal/domain/port/driven"
)

// TokenSource supplies the current bearer token to outbound-request owners.
// An empty token with a nil error means "no usable session"; callers decide
// whether to degrade to an unauthenticated request.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Compile-time interface satisfaction check.
var _ TokenSource = (*SessionManager)(nil)

// SessionManager owns the credential lifecycle: it is the only writer of the
// in-memory session and of the persisted shadow copy, and the sole path
// through which other components obtain a bearer token.
type SessionManager struct {
	api   driven.RoverAPI
	store driven.SessionStore

	// refreshMargin is how much remaining lifetime a token must have to be
	// handed out without a refresh. It must exceed one refresh round-trip.
	refreshMargin time.Duration
	now           func() time.Time

	// refreshMu serializes refresh exchanges so overlapping AccessToken
	// calls cannot race a single-use refresh token.
	refreshMu sync.Mutex

	mu      sync.Mutex
	session model.Session
}

// NewSessionManager creates a SessionManager. The session starts absent;
// call Restore to pick up a persisted one.
func NewSessionManager(api driven.RoverAPI, store driven.SessionStore, refreshMargin time.Duration) *SessionManager {
	return &SessionManager{
		api:           api,
		store:         store,
		refreshMargin: refreshMargin,
		now:           time.Now,
	}
}

// Restore loads a persisted session if one exists. It never fails: a
// missing, malformed, or undecryptable persisted session simply leaves the
// manager unauthenticated.
func (m *SessionManager) Restore(ctx context.Context) {
	loaded, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			slog.Debug("session persistence disabled, starting unauthenticated")
		} else {
			slog.Warn("session restore failed, starting unauthenticated", "error", err)
		}
		return
	}
	if loaded.IsZero() {
		return
	}

	m.mu.Lock()
	m.session = loaded
	m.mu.Unlock()

	slog.Info("session restored", "username", loaded.Username,
		"expires_at", loaded.Tokens.ExpiresAt)
}

// Login exchanges operator credentials for a session. A backend rejection
// surfaces as *model.AuthenticationError for the caller to display.
func (m *SessionManager) Login(ctx context.Context, username, password string) error {
	grant, err := m.api.Login(ctx, username, password)
	if err != nil {
		return err
	}

	m.setSession(ctx, model.Session{
		Username: username,
		Tokens: model.TokenPair{
			AccessToken:  grant.AccessToken,
			RefreshToken: grant.RefreshToken,
			ExpiresAt:    grant.ExpiresAt,
		},
	})
	slog.Info("logged in", "username", username)
	return nil
}

// Register creates an account and then logs in with the same credentials.
// A backend rejection surfaces as *model.RegistrationError.
func (m *SessionManager) Register(ctx context.Context, username, email, password string) error {
	if err := m.api.Register(ctx, username, email, password); err != nil {
		return err
	}
	return m.Login(ctx, username, password)
}

// Logout clears the in-memory and persisted session. No network call.
func (m *SessionManager) Logout(ctx context.Context) {
	m.clearSession(ctx)
	slog.Info("logged out")
}

// AccessToken returns the current access token if its remaining lifetime
// exceeds the refresh margin, refreshing it otherwise. An empty token with
// a nil error means there is no usable session; no caller ever receives a
// near-expiry token.
func (m *SessionManager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.session.IsZero() {
		m.mu.Unlock()
		return "", nil
	}
	if m.session.Tokens.ExpiresAt.Sub(m.now()) >= m.refreshMargin {
		token := m.session.Tokens.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()

	return m.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new pair. Any failure clears
// all credential state (fail closed: an unrefreshable session is no
// session) and returns empty without error. Overlapping calls are
// serialized; a caller that waited behind a successful refresh reuses its
// result instead of spending another refresh token.
func (m *SessionManager) Refresh(ctx context.Context) (string, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	if m.session.IsZero() {
		m.mu.Unlock()
		return "", nil
	}
	if m.session.Tokens.ExpiresAt.Sub(m.now()) >= m.refreshMargin {
		token := m.session.Tokens.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	refreshToken := m.session.Tokens.RefreshToken
	username := m.session.Username
	m.mu.Unlock()

	grant, err := m.api.Refresh(ctx, refreshToken)
	if err != nil {
		slog.Warn("token refresh failed, clearing session", "error", err)
		m.clearSession(ctx)
		return "", nil
	}

	m.setSession(ctx, model.Session{
		Username: username,
		Tokens: model.TokenPair{
			AccessToken:  grant.AccessToken,
			RefreshToken: grant.RefreshToken,
			ExpiresAt:    grant.ExpiresAt,
		},
	})
	return grant.AccessToken, nil
}

// Status returns the read-only session view for the presentation layer.
func (m *SessionManager) Status() model.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return model.SessionStatus{
		Authenticated: !m.session.IsZero(),
		Username:      m.session.Username,
		ExpiresAt:     m.session.Tokens.ExpiresAt,
	}
}

// IsAuthenticated reports whether a session is held. It says nothing about
// token freshness; AccessToken handles that.
func (m *SessionManager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.session.IsZero()
}

// setSession installs a new session and persists the shadow copy. A
// persistence failure downgrades to a log line; the in-memory session
// remains valid for this process.
func (m *SessionManager) setSession(ctx context.Context, s model.Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	if err := m.store.Save(ctx, s); err != nil && !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		slog.Warn("session persist failed", "error", err)
	}
}

// clearSession drops the in-memory session and the persisted shadow copy.
func (m *SessionManager) clearSession(ctx context.Context) {
	m.mu.Lock()
	m.session = model.Session{}
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil && !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		slog.Warn("session clear failed", "error", err)
	}
}
