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

// Synchronizer owns the telemetry link: it dials with a fresh token, merges
// partial frames into the latest full snapshot, keeps a bounded encoder
// history, and re-dials after a fixed delay whenever the link drops. It
// never gives up; a locally-tethered control session wants the link back as
// soon as the rover does.
type Synchronizer struct {
	dialer driven.TelemetryDialer
	tokens TokenSource

	reconnectDelay time.Duration
	historyDepth   int
	now            func() time.Time

	mu         sync.RWMutex
	snapshot   model.TelemetrySnapshot
	history    []model.EncoderSample
	state      model.LinkState
	lastUpdate time.Time

	// updates coalesces change notifications for the presentation layer.
	updates chan struct{}
}

// NewSynchronizer creates a Synchronizer. Nothing connects until Run.
func NewSynchronizer(dialer driven.TelemetryDialer, tokens TokenSource, reconnectDelay time.Duration, historyDepth int) *Synchronizer {
	return &Synchronizer{
		dialer:         dialer,
		tokens:         tokens,
		reconnectDelay: reconnectDelay,
		historyDepth:   historyDepth,
		now:            time.Now,
		state:          model.LinkConnecting,
		updates:        make(chan struct{}, 1),
	}
}

// Run connects and keeps the link alive until the context is canceled.
// Teardown is the only terminal transition: it stops reconnect scheduling
// and discards any token lookup that resolves afterwards.
func (s *Synchronizer) Run(ctx context.Context) {
	for {
		s.setState(model.LinkConnecting)

		// The handshake cannot carry an async credential lookup, so the
		// token is resolved up front and rides as a connection parameter.
		token, err := s.tokens.AccessToken(ctx)
		if err != nil {
			slog.Warn("telemetry token fetch failed, dialing unauthenticated", "error", err)
			token = ""
		}
		if ctx.Err() != nil {
			// Torn down while the lookup was in flight.
			s.setState(model.LinkClosed)
			return
		}

		link, err := s.dialer.Dial(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				s.setState(model.LinkClosed)
				return
			}
			slog.Warn("telemetry dial failed", "error", err)
			s.setState(model.LinkError)
			if !s.waitReconnect(ctx) {
				s.setState(model.LinkClosed)
				return
			}
			continue
		}

		s.setState(model.LinkOpen)
		slog.Info("telemetry link open")

		s.readLoop(ctx, link)

		if ctx.Err() != nil {
			s.setState(model.LinkClosed)
			return
		}
		if !s.waitReconnect(ctx) {
			s.setState(model.LinkClosed)
			return
		}
	}
}

// readLoop consumes frames until the link fails or the context is canceled.
// The link is always closed on the way out.
func (s *Synchronizer) readLoop(ctx context.Context, link driven.TelemetryLink) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		// Closing the link is what unblocks a pending ReadMessage on
		// teardown.
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
				slog.Warn("telemetry link lost", "error", err)
				s.setState(model.LinkError)
			}
			return
		}
		s.handleFrame(data)
	}
}

// handleFrame merges one inbound frame. Malformed frames are logged and
// dropped; they never alter state or tear down the connection.
func (s *Synchronizer) handleFrame(data []byte) {
	var update model.TelemetryUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		slog.Warn("malformed telemetry frame dropped", "error", err)
		return
	}

	receivedAt := s.now()

	s.mu.Lock()
	s.snapshot.Apply(update)

	if update.Encoders.HasReadings() {
		base := model.EncoderSample{
			FrontLeft:  s.snapshot.Encoders.FrontLeft,
			FrontRight: s.snapshot.Encoders.FrontRight,
			RearLeft:   s.snapshot.Encoders.RearLeft,
			RearRight:  s.snapshot.Encoders.RearRight,
		}
		if n := len(s.history); n > 0 {
			base = s.history[n-1]
		}
		s.history = append(s.history, base.NextSample(receivedAt, update.Encoders))
		if len(s.history) > s.historyDepth {
			s.history = s.history[1:]
		}
	}

	s.lastUpdate = receivedAt
	s.mu.Unlock()

	s.notify()
}

// waitReconnect sleeps the fixed reconnect delay. It returns false when the
// synchronizer was torn down while waiting.
func (s *Synchronizer) waitReconnect(ctx context.Context) bool {
	timer := time.NewTimer(s.reconnectDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Synchronizer) setState(state model.LinkState) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// notify signals subscribers without ever blocking; a pending notification
// already covers this change.
func (s *Synchronizer) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Updates is the change notification channel for the presentation layer.
// It coalesces: one receive may cover several changes.
func (s *Synchronizer) Updates() <-chan struct{} {
	return s.updates
}

// Snapshot returns the current merged telemetry snapshot.
func (s *Synchronizer) Snapshot() model.TelemetrySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// History returns a copy of the encoder history, oldest first.
func (s *Synchronizer) History() []model.EncoderSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.EncoderSample, len(s.history))
	copy(out, s.history)
	return out
}

// State returns the current link state.
func (s *Synchronizer) State() model.LinkState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastUpdate returns the receipt time of the most recent accepted frame.
func (s *Synchronizer) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}
