package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helios-robotics/roverops/internal/domain/model"
)

// recordingSender captures every transmitted command.
type recordingSender struct {
	mu    sync.Mutex
	sends []sentCommand
}

type sentCommand struct {
	Token     string
	Direction model.Direction
}

func (r *recordingSender) SendTeleop(_ context.Context, token string, direction model.Direction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, sentCommand{Token: token, Direction: direction})
	return nil
}

func (r *recordingSender) all() []sentCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentCommand(nil), r.sends...)
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends)
}

func (r *recordingSender) countOf(d model.Direction) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sends {
		if s.Direction == d {
			n++
		}
	}
	return n
}

// blockingTokens holds every AccessToken call until released.
type blockingTokens struct {
	release chan struct{}
}

func (b *blockingTokens) AccessToken(_ context.Context) (string, error) {
	<-b.release
	return "T", nil
}

const testInterval = 10 * time.Millisecond

func newTestDispatcher(sender TeleopSender) *Dispatcher {
	d := NewDispatcher(sender, &staticTokens{token: "T"}, testInterval)
	return d
}

func TestStart_RemapsPolarityButKeepsIntent(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(sender)
	defer d.Close()

	d.Start(model.DirectionForward)

	require.Eventually(t, func() bool { return sender.count() >= 1 }, time.Second, time.Millisecond)
	assert.Equal(t, model.DirectionBackward, sender.all()[0].Direction, "forward is inverted on the wire")
	assert.Equal(t, model.DirectionForward, d.Held(), "held intent stays pre-remap")
}

func TestStart_TurnsPassThrough(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(sender)
	defer d.Close()

	d.Start(model.DirectionLeft)

	require.Eventually(t, func() bool { return sender.count() >= 1 }, time.Second, time.Millisecond)
	assert.Equal(t, model.DirectionLeft, sender.all()[0].Direction)
}

func TestStart_RepeatsOnInterval(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(sender)
	defer d.Close()

	d.Start(model.DirectionRight)

	require.Eventually(t, func() bool { return sender.count() >= 4 }, time.Second, time.Millisecond)
	for _, s := range sender.all() {
		assert.Equal(t, model.DirectionRight, s.Direction)
		assert.Equal(t, "T", s.Token)
	}
}

func TestStart_SecondHoldReplacesFirst(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(sender)
	defer d.Close()

	d.Start(model.DirectionForward)
	require.Eventually(t, func() bool { return sender.count() >= 1 }, time.Second, time.Millisecond)

	d.Start(model.DirectionLeft)
	assert.Equal(t, model.DirectionLeft, d.Held())

	// Wait for the first hold's ticker to be certainly dead, then confirm
	// only the replacement keeps sending.
	require.Eventually(t, func() bool { return sender.countOf(model.DirectionLeft) >= 2 }, time.Second, time.Millisecond)
	backwardsBefore := sender.countOf(model.DirectionBackward)
	require.Eventually(t, func() bool { return sender.countOf(model.DirectionLeft) >= 5 }, time.Second, time.Millisecond)
	assert.Equal(t, backwardsBefore, sender.countOf(model.DirectionBackward),
		"replaced hold must stop repeating")
}

func TestStop_SendsExactlyOneStopAndHaltsRepetition(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(sender)
	defer d.Close()

	d.Start(model.DirectionLeft)
	require.Eventually(t, func() bool { return sender.count() >= 2 }, time.Second, time.Millisecond)

	d.Stop()
	assert.Equal(t, model.DirectionNone, d.Held())

	require.Eventually(t, func() bool { return sender.countOf(model.DirectionStop) == 1 }, time.Second, time.Millisecond)

	// No movement command may fire after the stop settles.
	time.Sleep(3 * testInterval)
	settled := sender.count()
	time.Sleep(5 * testInterval)
	assert.Equal(t, settled, sender.count())
	assert.Equal(t, 1, sender.countOf(model.DirectionStop))
}

func TestStop_WhenIdleStillSendsOneStop(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(sender)
	defer d.Close()

	d.Stop()

	require.Eventually(t, func() bool { return sender.countOf(model.DirectionStop) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, sender.count())
}

func TestStart_StopDirectionActsAsStop(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(sender)
	defer d.Close()

	d.Start(model.DirectionStop)

	require.Eventually(t, func() bool { return sender.countOf(model.DirectionStop) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, model.DirectionNone, d.Held())
}

func TestStaleStartDiscardedAfterStop(t *testing.T) {
	sender := &recordingSender{}
	tokens := &blockingTokens{release: make(chan struct{})}
	d := NewDispatcher(sender, tokens, testInterval)
	defer d.Close()

	// The hold's first send is stuck resolving its token when the stop
	// arrives; once the token resolves, the stale command must be dropped.
	d.Start(model.DirectionForward)
	d.Stop()
	close(tokens.release)

	require.Eventually(t, func() bool { return sender.countOf(model.DirectionStop) == 1 }, time.Second, time.Millisecond)
	time.Sleep(3 * testInterval)
	assert.Zero(t, sender.countOf(model.DirectionBackward), "stale hold command must not reach the rover")
	assert.Zero(t, sender.countOf(model.DirectionForward))
}

func TestTokenFailureDegradesToUnauthenticated(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, &staticTokens{err: errors.New("store down")}, testInterval)
	defer d.Close()

	d.Start(model.DirectionLeft)

	require.Eventually(t, func() bool { return sender.count() >= 1 }, time.Second, time.Millisecond)
	assert.Empty(t, sender.all()[0].Token)
}

func TestClose_CancelsWithoutSendingStop(t *testing.T) {
	sender := &recordingSender{}
	d := newTestDispatcher(sender)

	d.Start(model.DirectionRight)
	require.Eventually(t, func() bool { return sender.count() >= 1 }, time.Second, time.Millisecond)

	d.Close()

	time.Sleep(3 * testInterval)
	settled := sender.count()
	time.Sleep(3 * testInterval)
	assert.Equal(t, settled, sender.count(), "no command may fire after teardown")
	assert.Zero(t, sender.countOf(model.DirectionStop))

	// Post-teardown inputs are ignored entirely.
	d.Start(model.DirectionLeft)
	d.Stop()
	time.Sleep(2 * testInterval)
	assert.Equal(t, settled, sender.count())
}
