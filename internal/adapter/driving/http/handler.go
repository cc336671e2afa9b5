// Package httphandler is the HTTP driving adapter: the local JSON API any
// presentation layer uses to observe and drive the console core.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/helios-robotics/roverops/internal/application"
	"github.com/helios-robotics/roverops/internal/domain/model"
	"github.com/helios-robotics/roverops/internal/domain/port/driven"
)

// Handler serves the console's local REST API.
type Handler struct {
	session    *application.SessionManager
	telemetry  *application.Synchronizer
	dispatcher *application.Dispatcher
	camera     *application.CameraStream
	mapFeed    *application.MapFeed
	slam       *application.SlamService
	backend    driven.RoverAPI
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	session *application.SessionManager,
	telemetry *application.Synchronizer,
	dispatcher *application.Dispatcher,
	camera *application.CameraStream,
	mapFeed *application.MapFeed,
	slam *application.SlamService,
	backend driven.RoverAPI,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		session:    session,
		telemetry:  telemetry,
		dispatcher: dispatcher,
		camera:     camera,
		mapFeed:    mapFeed,
		slam:       slam,
		backend:    backend,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/session", h.GetSession)
	mux.HandleFunc("GET /api/v1/telemetry", h.GetTelemetry)
	mux.HandleFunc("GET /api/v1/telemetry/history", h.GetTelemetryHistory)
	mux.HandleFunc("POST /api/v1/teleop", h.Teleop)
	mux.HandleFunc("GET /api/v1/camera", h.GetCamera)
	mux.HandleFunc("GET /api/v1/map", h.GetMap)
	mux.HandleFunc("POST /api/v1/slam", h.Slam)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Login authenticates the operator. Credential rejections carry the
// backend's message for inline display on the login form.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if err := h.session.Login(r.Context(), req.Username, req.Password); err != nil {
		var authErr *model.AuthenticationError
		if errors.As(err, &authErr) {
			writeError(w, http.StatusUnauthorized, authErr.Message)
			return
		}
		h.logger.Error("login failed", "error", err)
		writeError(w, http.StatusBadGateway, "backend unreachable")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(h.session.Status()))
}

// Register creates an account and logs in with the same credentials.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email, and password are required")
		return
	}

	if err := h.session.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		var regErr *model.RegistrationError
		var authErr *model.AuthenticationError
		switch {
		case errors.As(err, &regErr):
			writeError(w, http.StatusUnprocessableEntity, regErr.Message)
		case errors.As(err, &authErr):
			writeError(w, http.StatusUnauthorized, authErr.Message)
		default:
			h.logger.Error("registration failed", "error", err)
			writeError(w, http.StatusBadGateway, "backend unreachable")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(h.session.Status()))
}

// Logout clears the session. Always succeeds.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// GetSession returns the current session status.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(h.session.Status()))
}

// GetTelemetry returns the merged snapshot, link state, and held intent.
func (h *Handler) GetTelemetry(w http.ResponseWriter, r *http.Request) {
	resp := TelemetryResponse{
		LinkState:  string(h.telemetry.State()),
		HeldIntent: string(h.dispatcher.Held()),
		Snapshot:   toSnapshotResponse(h.telemetry.Snapshot()),
	}
	if last := h.telemetry.LastUpdate(); !last.IsZero() {
		resp.LastUpdate = last.UTC().Format(time.RFC3339Nano)
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetTelemetryHistory returns the encoder history, oldest first.
func (h *Handler) GetTelemetryHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toHistoryResponse(h.telemetry.History()))
}

// Teleop applies one drive intent. "stop" halts repetition; any movement
// direction starts (or replaces) a hold. The UI posts "stop" on key-up,
// window blur, and the space bar.
func (h *Handler) Teleop(w http.ResponseWriter, r *http.Request) {
	var req TeleopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	direction, err := model.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if direction == model.DirectionStop {
		h.dispatcher.Stop()
	} else {
		h.dispatcher.Start(direction)
	}

	w.WriteHeader(http.StatusAccepted)
}

// GetCamera returns the latest camera frame plus its link state, or 404
// before the first frame arrives.
func (h *Handler) GetCamera(w http.ResponseWriter, r *http.Request) {
	frame := h.camera.Latest()
	if frame == nil {
		writeError(w, http.StatusNotFound, "no camera frame yet")
		return
	}

	writeJSON(w, http.StatusOK, CameraResponse{
		LinkState:  string(h.camera.State()),
		Timestamp:  frame.Timestamp,
		RGB:        frame.RGB,
		Depth:      frame.Depth,
		Source:     frame.Source,
		Status:     frame.Status,
		ReceivedAt: frame.ReceivedAt.UTC().Format(time.RFC3339Nano),
	})
}

// GetMap returns the latest map frame, or 404 before the first good fetch.
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	frame := h.mapFeed.Latest()
	if frame == nil {
		writeError(w, http.StatusNotFound, "no map snapshot yet")
		return
	}

	writeJSON(w, http.StatusOK, MapResponse{
		Image:     frame.Image,
		FetchedAt: frame.FetchedAt.UTC().Format(time.RFC3339),
	})
}

// Slam relays a SLAM control action to the backend.
func (h *Handler) Slam(w http.ResponseWriter, r *http.Request) {
	var req SlamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.slam.Control(r.Context(), req.Action)
	if err != nil {
		if !model.ValidSlamAction(req.Action) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("slam control failed", "action", req.Action, "error", err)
		writeError(w, http.StatusBadGateway, "slam control failed")
		return
	}

	writeJSON(w, http.StatusOK, SlamResponse{State: state})
}

// Health reports console liveness plus backend reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	backend := "ok"
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.backend.Health(ctx); err != nil {
		backend = "unreachable"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Backend: backend,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}
