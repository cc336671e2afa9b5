package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/helios-robotics/roverops/internal/domain/model"
	"github.com/helios-robotics/roverops/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo is the SQLite implementation of the SessionStore port.
// Token values are encrypted with AES-256-GCM before write and decrypted
// after read; the username and expiry are stored in the clear.
type SessionRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when persistence is disabled.
}

// NewSessionRepo creates a SessionRepo. key must be 32 bytes for AES-256-GCM,
// or nil to disable persistence (all operations return ErrEncryptionKeyNotSet).
func NewSessionRepo(db *DB, key []byte) *SessionRepo {
	return &SessionRepo{db: db, key: key}
}

// Save persists the session, replacing any previous one. The table holds at
// most one row.
func (r *SessionRepo) Save(ctx context.Context, s model.Session) error {
	if r.key == nil {
		return driven.ErrEncryptionKeyNotSet
	}

	access, err := r.encrypt(s.Tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	refresh, err := r.encrypt(s.Tokens.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}

	const query = `INSERT OR REPLACE INTO session (id, username, access_token, refresh_token, expires_at, updated_at)
		VALUES (1, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
	_, err = r.db.Writer.ExecContext(ctx, query,
		s.Username, access, refresh, s.Tokens.ExpiresAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load retrieves the persisted session. A missing row, an incomplete row,
// an unparseable expiry, or an undecryptable token all load as a zero
// session without error; a stale or corrupt store must never block startup.
func (r *SessionRepo) Load(ctx context.Context) (model.Session, error) {
	if r.key == nil {
		return model.Session{}, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT username, access_token, refresh_token, expires_at FROM session WHERE id = 1`
	var username, access, refresh, expiresAt string
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&username, &access, &refresh, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, nil
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("load session: %w", err)
	}

	if username == "" || access == "" || refresh == "" || expiresAt == "" {
		return model.Session{}, nil
	}

	expiry, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		slog.Warn("persisted session has malformed expiry, discarding", "error", err)
		return model.Session{}, nil
	}

	accessPlain, err := r.decrypt(access)
	if err != nil {
		slog.Warn("persisted access token undecryptable, discarding session", "error", err)
		return model.Session{}, nil
	}
	refreshPlain, err := r.decrypt(refresh)
	if err != nil {
		slog.Warn("persisted refresh token undecryptable, discarding session", "error", err)
		return model.Session{}, nil
	}

	return model.Session{
		Username: username,
		Tokens: model.TokenPair{
			AccessToken:  accessPlain,
			RefreshToken: refreshPlain,
			ExpiresAt:    expiry,
		},
	}, nil
}

// Clear removes any persisted session.
func (r *SessionRepo) Clear(ctx context.Context) error {
	if r.key == nil {
		return driven.ErrEncryptionKeyNotSet
	}

	const query = `DELETE FROM session WHERE id = 1`
	if _, err := r.db.Writer.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce prepended to the ciphertext.
func (r *SessionRepo) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *SessionRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
