package driven

import "context"

// TelemetryLink is one established duplex telemetry connection.
type TelemetryLink interface {
	// ReadMessage blocks until the next frame arrives or the link fails.
	ReadMessage() ([]byte, error)

	// Close terminates the link. Closing unblocks a pending ReadMessage.
	Close() error
}

// TelemetryDialer is the driven port for establishing the telemetry link.
// The access token must be resolved before dialing; it travels as a
// connection-time credential, not a per-message header.
type TelemetryDialer interface {
	Dial(ctx context.Context, token string) (TelemetryLink, error)
}
