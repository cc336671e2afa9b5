package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/helios-robotics/roverops/internal/domain/model"
	"github.com/helios-robotics/roverops/internal/domain/port/driven"
)

// MapFetcher is the slice of the rover API the map feed needs.
type MapFetcher interface {
	FetchMapSnapshot(ctx context.Context, token string) (driven.MapSnapshot, error)
}

// MapFeed polls the backend's map snapshot endpoint on a fixed cadence and
// retains the latest good frame. It polls regardless of outcome; the map is
// its own always-retry loop, independent of the telemetry link.
type MapFeed struct {
	api      MapFetcher
	tokens   TokenSource
	interval time.Duration
	now      func() time.Time

	mu     sync.RWMutex
	latest *model.MapFrame
}

// NewMapFeed creates a MapFeed. Nothing polls until Run.
func NewMapFeed(api MapFetcher, tokens TokenSource, interval time.Duration) *MapFeed {
	return &MapFeed{
		api:      api,
		tokens:   tokens,
		interval: interval,
		now:      time.Now,
	}
}

// Run polls immediately, then on the configured interval, until the context
// is canceled.
func (f *MapFeed) Run(ctx context.Context) {
	f.poll(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("map feed stopped")
			return
		case <-ticker.C:
			f.poll(ctx)
		}
	}
}

// poll fetches one snapshot. Failures and non-ok statuses are logged and
// skipped; the previous frame stays available.
func (f *MapFeed) poll(ctx context.Context) {
	token, err := f.tokens.AccessToken(ctx)
	if err != nil {
		slog.Warn("map token fetch failed, fetching unauthenticated", "error", err)
		token = ""
	}
	if ctx.Err() != nil {
		return
	}

	snap, err := f.api.FetchMapSnapshot(ctx, token)
	if err != nil {
		slog.Debug("map snapshot fetch failed", "error", err)
		return
	}
	if snap.Status != "ok" || snap.Image == "" {
		slog.Debug("map snapshot not ready", "status", snap.Status)
		return
	}

	f.mu.Lock()
	f.latest = &model.MapFrame{Image: snap.Image, FetchedAt: f.now()}
	f.mu.Unlock()
}

// Latest returns the most recent good frame, or nil when none has arrived.
func (f *MapFeed) Latest() *model.MapFrame {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.latest == nil {
		return nil
	}
	frame := *f.latest
	return &frame
}
