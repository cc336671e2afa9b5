package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/helios-robotics/roverops/internal/domain/model"
	"github.com/helios-robotics/roverops/internal/domain/port/driven"
)

// CameraStream owns the camera link with the same connect/reconnect
// discipline as the telemetry synchronizer, but it keeps only the most
// recent frame. Video is freshest-wins; there is no history to merge.
type CameraStream struct {
	dialer driven.TelemetryDialer
	tokens TokenSource

	reconnectDelay time.Duration
	now            func() time.Time

	mu    sync.RWMutex
	frame *model.CameraFrame
	state model.LinkState
}

// NewCameraStream creates a CameraStream. Nothing connects until Run.
func NewCameraStream(dialer driven.TelemetryDialer, tokens TokenSource, reconnectDelay time.Duration) *CameraStream {
	return &CameraStream{
		dialer:         dialer,
		tokens:         tokens,
		reconnectDelay: reconnectDelay,
		now:            time.Now,
		state:          model.LinkConnecting,
	}
}

// Run connects and keeps the camera link alive until the context is
// canceled.
func (c *CameraStream) Run(ctx context.Context) {
	for {
		c.setState(model.LinkConnecting)

		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			slog.Warn("camera token fetch failed, dialing unauthenticated", "error", err)
			token = ""
		}
		if ctx.Err() != nil {
			c.setState(model.LinkClosed)
			return
		}

		link, err := c.dialer.Dial(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				c.setState(model.LinkClosed)
				return
			}
			slog.Warn("camera dial failed", "error", err)
			c.setState(model.LinkError)
			if !c.waitReconnect(ctx) {
				c.setState(model.LinkClosed)
				return
			}
			continue
		}

		c.setState(model.LinkOpen)
		slog.Info("camera link open")

		c.readLoop(ctx, link)

		if ctx.Err() != nil {
			c.setState(model.LinkClosed)
			return
		}
		if !c.waitReconnect(ctx) {
			c.setState(model.LinkClosed)
			return
		}
	}
}

// readLoop consumes frames until the link fails or the context is canceled.
func (c *CameraStream) readLoop(ctx context.Context, link driven.TelemetryLink) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = link.Close()
		case <-done:
		}
	}()

	for {
		data, err := link.ReadMessage()
		if err != nil {
			_ = link.Close()
			if ctx.Err() == nil {
				slog.Warn("camera link lost", "error", err)
				c.setState(model.LinkError)
			}
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame stores one inbound frame. Malformed or imageless frames are
// logged and dropped.
func (c *CameraStream) handleFrame(data []byte) {
	var frame model.CameraFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		slog.Warn("malformed camera frame dropped", "error", err)
		return
	}
	if frame.RGB == "" {
		slog.Warn("camera frame without image dropped", "status", frame.Status)
		return
	}
	frame.ReceivedAt = c.now()

	c.mu.Lock()
	c.frame = &frame
	c.mu.Unlock()
}

func (c *CameraStream) waitReconnect(ctx context.Context) bool {
	timer := time.NewTimer(c.reconnectDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *CameraStream) setState(state model.LinkState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// Latest returns a copy of the most recent frame, or nil before the first
// one arrives.
func (c *CameraStream) Latest() *model.CameraFrame {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.frame == nil {
		return nil
	}
	frame := *c.frame
	return &frame
}

// State returns the current camera link state.
func (c *CameraStream) State() model.LinkState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
