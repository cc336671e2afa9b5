package model

import "time"

// TokenPair is one issued credential set. A pair is always replaced
// wholesale on refresh, never mutated field by field.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Session is the authenticated operator state: the identity plus its
// current token pair. A zero Session means "no session".
type Session struct {
	Username string
	Tokens   TokenPair
}

// IsZero reports whether the session carries no credentials. Restore
// produces a zero session for absent or malformed persisted state.
func (s Session) IsZero() bool {
	return s.Username == "" || s.Tokens.AccessToken == "" || s.Tokens.RefreshToken == ""
}

// SessionStatus is the read-only view of the session handed to the
// presentation layer.
type SessionStatus struct {
	Authenticated bool
	Username      string
	ExpiresAt     time.Time
}
