package driven

import (
	"context"
	"errors"

	"github.com/helios-robotics/roverops/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by SessionStore operations when
// ROVEROPS_SECRET_KEY has not been configured. Callers treat it as "no
// persistence", not as a failure.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set ROVEROPS_SECRET_KEY")

// SessionStore is the driven port for session persistence across process
// restarts. The adapter layer owns encryption; this interface operates on
// plaintext values at the domain boundary.
//
// Only the session manager writes through this port.
type SessionStore interface {
	// Save persists the session wholesale, replacing any previous one.
	Save(ctx context.Context, s model.Session) error

	// Load retrieves the persisted session. It returns (zero, nil) when no
	// session is stored or when the stored row is incomplete or cannot be
	// decoded; persistence problems never surface as a usable session.
	Load(ctx context.Context) (model.Session, error)

	// Clear removes any persisted session. Clearing an empty store is not
	// an error.
	Clear(ctx context.Context) error
}
