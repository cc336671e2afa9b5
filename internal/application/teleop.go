package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/helios-robotics/roverops/internal/domain/model"
)

// TeleopSender is the slice of the rover API the dispatcher needs.
type TeleopSender interface {
	SendTeleop(ctx context.Context, token string, direction model.Direction) error
}

// sendTimeout bounds a single command round-trip. Commands are
// fire-and-forget; a slow command must not stall the repeat cadence.
const sendTimeout = 2 * time.Second

// Dispatcher turns discrete press/release intents into the continuously
// repeated command stream the rover's motor watchdog expects. At most one
// hold is active; starting a new one cancels the previous.
type Dispatcher struct {
	sender TeleopSender
	tokens TokenSource

	// interval is the repeat cadence. It must stay strictly below the
	// backend watchdog timeout or holds would stutter-stop.
	interval time.Duration

	mu     sync.Mutex
	held   model.Direction
	cancel context.CancelFunc
	closed bool
}

// NewDispatcher creates a Dispatcher. No command is sent until Start.
func NewDispatcher(sender TeleopSender, tokens TokenSource, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		tokens:   tokens,
		interval: interval,
	}
}

// Start begins repeating the given direction. Any active hold is canceled
// first. The held intent records the operator's direction; the wire
// direction goes through the polarity remap.
func (d *Dispatcher) Start(direction model.Direction) {
	if direction == model.DirectionStop || direction == model.DirectionNone {
		d.Stop()
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.held = direction
	d.mu.Unlock()

	go d.repeat(ctx, direction.Remap())
}

// Stop cancels any active hold, clears the held intent, and sends exactly
// one stop command. Calling it when already stopped is a no-op beyond that
// send, so key-up, window blur, and the space bar can each call it freely.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.held = model.DirectionNone
	closed := d.closed
	d.mu.Unlock()

	if closed {
		return
	}

	// The stop must not block the input path and must not be discardable
	// by a later Start, so it runs on its own context.
	go d.send(context.Background(), model.DirectionStop)
}

// Held returns the operator's current held intent, pre-remap, for UI
// highlighting.
func (d *Dispatcher) Held() model.Direction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.held
}

// Close cancels any active hold so no command outlives the console. It does
// not send a stop; teardown only guarantees the repetition ends.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.held = model.DirectionNone
}

// repeat sends immediately, then on every tick until the hold is canceled.
func (d *Dispatcher) repeat(ctx context.Context, wire model.Direction) {
	d.send(ctx, wire)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.send(ctx, wire)
		}
	}
}

// send transmits one command. A token fetch failure degrades to an
// unauthenticated send; the backend is the authority on rejecting those.
// Send failures are logged only; a dropped command must never throw into
// the input path.
func (d *Dispatcher) send(ctx context.Context, direction model.Direction) {
	token, err := d.tokens.AccessToken(ctx)
	if err != nil {
		slog.Warn("teleop token fetch failed, sending unauthenticated", "error", err)
		token = ""
	}

	// A Stop may have won the race while the token resolved; a stale hold
	// command must not reach the rover.
	if ctx.Err() != nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := d.sender.SendTeleop(sendCtx, token, direction); err != nil {
		slog.Warn("teleop send failed", "direction", direction, "error", err)
	}
}
