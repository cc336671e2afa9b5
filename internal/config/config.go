// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// BackendURL is the base URL of the rover backend's REST surface.
	BackendURL string
	// TelemetryURL is the telemetry websocket endpoint. Defaults to
	// BackendURL with the scheme rewritten to ws(s) and path /ws/telemetry.
	TelemetryURL string
	// CameraURL is the camera stream websocket endpoint, derived the same
	// way with path /ws/zed.
	CameraURL  string
	ListenAddr string
	DBPath     string
	// SecretKey is the 32-byte AES-256 key for session persistence,
	// hex-encoded in the environment. nil disables persistence.
	SecretKey []byte

	// RefreshMargin is how much remaining token lifetime counts as fresh.
	// It must comfortably exceed one refresh round-trip.
	RefreshMargin time.Duration
	// CommandInterval is the teleop repeat cadence. It must stay strictly
	// below the backend's motor watchdog timeout.
	CommandInterval time.Duration
	// ReconnectDelay is the fixed wait before re-dialing telemetry.
	ReconnectDelay time.Duration
	// MapPollInterval is the map snapshot polling cadence.
	MapPollInterval time.Duration
	// HistoryDepth is the encoder history buffer capacity.
	HistoryDepth int
}

// Load reads configuration from environment variables and returns a validated
// Config. Every variable has a default; only malformed values fail.
// ROVEROPS_SECRET_KEY is optional; without it the session survives only for
// the lifetime of the process.
func Load() (*Config, error) {
	backendURL := "http://127.0.0.1:8000"
	if v, ok := os.LookupEnv("ROVEROPS_BACKEND_URL"); ok {
		backendURL = v
	}
	if _, err := url.Parse(backendURL); err != nil {
		return nil, fmt.Errorf("ROVEROPS_BACKEND_URL is not a valid URL %q: %w", backendURL, err)
	}

	telemetryURL := ""
	if v, ok := os.LookupEnv("ROVEROPS_TELEMETRY_URL"); ok {
		telemetryURL = v
	} else {
		derived, err := deriveStreamURL(backendURL, "/ws/telemetry")
		if err != nil {
			return nil, err
		}
		telemetryURL = derived
	}

	cameraURL := ""
	if v, ok := os.LookupEnv("ROVEROPS_CAMERA_URL"); ok {
		cameraURL = v
	} else {
		derived, err := deriveStreamURL(backendURL, "/ws/zed")
		if err != nil {
			return nil, err
		}
		cameraURL = derived
	}

	listenAddr := "127.0.0.1:8090"
	if v, ok := os.LookupEnv("ROVEROPS_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "roverops.db"
	if v, ok := os.LookupEnv("ROVEROPS_DB_PATH"); ok {
		dbPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("ROVEROPS_SECRET_KEY"); ok && v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("ROVEROPS_SECRET_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("ROVEROPS_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	refreshMargin, err := durationEnv("ROVEROPS_REFRESH_MARGIN", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	commandInterval, err := durationEnv("ROVEROPS_COMMAND_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return nil, err
	}
	reconnectDelay, err := durationEnv("ROVEROPS_RECONNECT_DELAY", 1500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	mapPollInterval, err := durationEnv("ROVEROPS_MAP_POLL_INTERVAL", time.Second)
	if err != nil {
		return nil, err
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"ROVEROPS_REFRESH_MARGIN", refreshMargin},
		{"ROVEROPS_COMMAND_INTERVAL", commandInterval},
		{"ROVEROPS_RECONNECT_DELAY", reconnectDelay},
		{"ROVEROPS_MAP_POLL_INTERVAL", mapPollInterval},
	} {
		if d.value <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}

	historyDepth := 60
	if v, ok := os.LookupEnv("ROVEROPS_HISTORY_DEPTH"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("ROVEROPS_HISTORY_DEPTH must be a positive integer, got %q", v)
		}
		historyDepth = parsed
	}

	return &Config{
		BackendURL:      backendURL,
		TelemetryURL:    telemetryURL,
		CameraURL:       cameraURL,
		ListenAddr:      listenAddr,
		DBPath:          dbPath,
		SecretKey:       secretKey,
		RefreshMargin:   refreshMargin,
		CommandInterval: commandInterval,
		ReconnectDelay:  reconnectDelay,
		MapPollInterval: mapPollInterval,
		HistoryDepth:    historyDepth,
	}, nil
}

// durationEnv parses an optional duration environment variable.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return parsed, nil
}

// deriveStreamURL rewrites the backend base URL into a websocket endpoint
// at the given path.
func deriveStreamURL(backendURL, path string) (string, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return "", fmt.Errorf("derive stream URL from %q: %w", backendURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = path
	return u.String(), nil
}
