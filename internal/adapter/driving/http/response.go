package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/helios-robotics/roverops/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// SessionResponse is the JSON representation of the operator session.
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// TelemetryResponse is the merged snapshot plus link observability fields.
type TelemetryResponse struct {
	LinkState  string           `json:"link_state"`
	LastUpdate string           `json:"last_update,omitempty"`
	HeldIntent string           `json:"held_intent,omitempty"`
	Snapshot   SnapshotResponse `json:"snapshot"`
}

// SnapshotResponse is the JSON representation of the telemetry snapshot.
type SnapshotResponse struct {
	Timestamp string           `json:"timestamp"`
	Encoders  EncodersResponse `json:"encoders"`
	Jetson    JetsonResponse   `json:"jetson"`
	Power     PowerResponse    `json:"power"`
	Motor     MotorResponse    `json:"motor"`
}

// EncodersResponse mirrors the rover's camelCase encoder field names.
type EncodersResponse struct {
	FrontLeft  int `json:"frontLeft"`
	FrontRight int `json:"frontRight"`
	RearLeft   int `json:"rearLeft"`
	RearRight  int `json:"rearRight"`
}

// JetsonResponse is the compute thermal group.
type JetsonResponse struct {
	CPUTemp float64 `json:"cpuTemp"`
	GPUTemp float64 `json:"gpuTemp"`
}

// PowerResponse is the power group.
type PowerResponse struct {
	Voltage float64 `json:"voltage"`
	SOC     float64 `json:"soc"`
}

// MotorResponse is the motor metrics group.
type MotorResponse struct {
	TorqueOzIn   float64 `json:"torqueOzIn"`
	SpeedRPM     float64 `json:"speedRpm"`
	CurrentMA    float64 `json:"currentMa"`
	OutputPowerW float64 `json:"outputPowerW"`
	InputPowerW  float64 `json:"inputPowerW"`
	Efficiency   float64 `json:"efficiency"`
}

// HistoryEntryResponse is one encoder history sample.
type HistoryEntryResponse struct {
	At         string `json:"at"`
	FrontLeft  int    `json:"frontLeft"`
	FrontRight int    `json:"frontRight"`
	RearLeft   int    `json:"rearLeft"`
	RearRight  int    `json:"rearRight"`
}

// CameraResponse is the latest camera frame plus its link state.
type CameraResponse struct {
	LinkState  string `json:"link_state"`
	Timestamp  string `json:"timestamp"`
	RGB        string `json:"rgb"`
	Depth      string `json:"depth"`
	Source     string `json:"source"`
	Status     string `json:"status"`
	ReceivedAt string `json:"received_at"`
}

// MapResponse is the latest map frame.
type MapResponse struct {
	Image     string `json:"image"`
	FetchedAt string `json:"fetched_at"`
}

// SlamResponse is the backend-reported SLAM state.
type SlamResponse struct {
	State string `json:"state"`
}

// HealthResponse is the console health endpoint body.
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Time    string `json:"time"`
}

// LoginRequest is the JSON body for the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the JSON body for the register endpoint.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TeleopRequest is the JSON body for the teleop endpoint.
type TeleopRequest struct {
	Direction string `json:"direction"`
}

// SlamRequest is the JSON body for the SLAM control endpoint.
type SlamRequest struct {
	Action string `json:"action"`
}

// toSessionResponse converts a session status to its JSON representation.
func toSessionResponse(s model.SessionStatus) SessionResponse {
	resp := SessionResponse{
		Authenticated: s.Authenticated,
		Username:      s.Username,
	}
	if s.Authenticated && !s.ExpiresAt.IsZero() {
		resp.ExpiresAt = s.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// toSnapshotResponse converts the merged telemetry snapshot.
func toSnapshotResponse(s model.TelemetrySnapshot) SnapshotResponse {
	return SnapshotResponse{
		Timestamp: s.Timestamp,
		Encoders: EncodersResponse{
			FrontLeft:  s.Encoders.FrontLeft,
			FrontRight: s.Encoders.FrontRight,
			RearLeft:   s.Encoders.RearLeft,
			RearRight:  s.Encoders.RearRight,
		},
		Jetson: JetsonResponse{
			CPUTemp: s.Jetson.CPUTemp,
			GPUTemp: s.Jetson.GPUTemp,
		},
		Power: PowerResponse{
			Voltage: s.Power.Voltage,
			SOC:     s.Power.SOC,
		},
		Motor: MotorResponse{
			TorqueOzIn:   s.Motor.TorqueOzIn,
			SpeedRPM:     s.Motor.SpeedRPM,
			CurrentMA:    s.Motor.CurrentMA,
			OutputPowerW: s.Motor.OutputPowerW,
			InputPowerW:  s.Motor.InputPowerW,
			Efficiency:   s.Motor.Efficiency,
		},
	}
}

// toHistoryResponse converts the encoder history, oldest first.
func toHistoryResponse(samples []model.EncoderSample) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(samples))
	for _, s := range samples {
		out = append(out, HistoryEntryResponse{
			At:         s.At.UTC().Format(time.RFC3339Nano),
			FrontLeft:  s.FrontLeft,
			FrontRight: s.FrontRight,
			RearLeft:   s.RearLeft,
			RearRight:  s.RearRight,
		})
	}
	return out
}
