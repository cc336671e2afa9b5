// Package telemetry implements the TelemetryDialer port over websocket.
package telemetry

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/helios-robotics/roverops/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.TelemetryDialer = (*Dialer)(nil)
	_ driven.TelemetryLink   = (*link)(nil)
)

// Dialer establishes websocket connections to the telemetry endpoint.
type Dialer struct {
	endpoint string
	ws       *websocket.Dialer
}

// NewDialer creates a Dialer for the given ws:// or wss:// endpoint.
func NewDialer(endpoint string) *Dialer {
	return &Dialer{
		endpoint: endpoint,
		ws:       websocket.DefaultDialer,
	}
}

// Dial opens the telemetry link. The access token rides as a query parameter
// because the websocket handshake cannot carry a deferred credential lookup;
// an empty token dials unauthenticated.
func (d *Dialer) Dial(ctx context.Context, token string) (driven.TelemetryLink, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse telemetry endpoint %q: %w", d.endpoint, err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := d.ws.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial telemetry %s: %w", u.Host, err)
	}

	return &link{conn: conn}, nil
}

// link wraps one websocket connection behind the TelemetryLink port.
type link struct {
	conn *websocket.Conn
}

func (l *link) ReadMessage() ([]byte, error) {
	_, data, err := l.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read telemetry frame: %w", err)
	}
	return data, nil
}

func (l *link) Close() error {
	return l.conn.Close()
}
