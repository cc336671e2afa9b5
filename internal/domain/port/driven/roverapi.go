package driven

import (
	"context"
	"time"

	"github.com/helios-robotics/roverops/internal/domain/model"
)

// TokenGrant is the backend's token envelope, with the relative expiry
// already resolved against the local clock by the adapter.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// MapSnapshot is the backend's map endpoint response.
type MapSnapshot struct {
	Status string
	Image  string
}

// RoverAPI is the driven port for the rover backend's REST surface.
// The telemetry websocket is a separate port (TelemetryDialer) because its
// lifecycle is a long-lived link rather than a request/response exchange.
type RoverAPI interface {
	// Login exchanges operator credentials for a token grant. A backend
	// rejection is returned as *model.AuthenticationError.
	Login(ctx context.Context, username, password string) (TokenGrant, error)

	// Register creates an account. A backend rejection is returned as
	// *model.RegistrationError. It does not log in.
	Register(ctx context.Context, username, email, password string) error

	// Refresh exchanges a refresh token for a new grant. Any failure,
	// network or rejection, means the session is unrecoverable.
	Refresh(ctx context.Context, refreshToken string) (TokenGrant, error)

	// SendTeleop posts one drive command. token may be empty, in which case
	// the request is sent unauthenticated and the backend decides.
	SendTeleop(ctx context.Context, token string, direction model.Direction) error

	// FetchMapSnapshot retrieves the current map image.
	FetchMapSnapshot(ctx context.Context, token string) (MapSnapshot, error)

	// ControlSlam drives the backend SLAM process and returns its reported
	// state ("running" or "stopped").
	ControlSlam(ctx context.Context, token string, action model.SlamAction) (string, error)

	// Health probes the backend liveness endpoint.
	Health(ctx context.Context) error
}
