package model

import "time"

// CameraFrame is one frame from the rover's stereo camera stream. RGB and
// Depth are base64 data URLs encoded rover-side; Depth is empty in RGB-only
// builds but the key stays on the wire. Source distinguishes a live capture
// from the rover's synthetic fallback feed.
type CameraFrame struct {
	Timestamp string `json:"timestamp"`
	RGB       string `json:"rgb"`
	Depth     string `json:"depth"`
	Source    string `json:"source"`
	Status    string `json:"status"`

	// ReceivedAt is the console's receipt time, stamped locally.
	ReceivedAt time.Time `json:"-"`
}
