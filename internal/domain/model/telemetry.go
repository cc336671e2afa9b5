package model

import "time"

// TelemetrySnapshot is the merged view of every sensor group the rover
// reports. Fields only ever change when an inbound frame explicitly carries
// them; a group absent from a frame keeps its prior values.
type TelemetrySnapshot struct {
	Timestamp string
	Encoders  EncoderReadings
	Jetson    ThermalReadings
	Power     PowerReadings
	Motor     MotorReadings
}

// EncoderReadings are the four wheel encoder counts.
type EncoderReadings struct {
	FrontLeft  int
	FrontRight int
	RearLeft   int
	RearRight  int
}

// ThermalReadings are the compute-board temperatures in degrees Celsius.
type ThermalReadings struct {
	CPUTemp float64
	GPUTemp float64
}

// PowerReadings are the battery bus voltage and state of charge.
type PowerReadings struct {
	Voltage float64
	SOC     float64
}

// MotorReadings are the representative drive motor characteristics.
type MotorReadings struct {
	TorqueOzIn   float64
	SpeedRPM     float64
	CurrentMA    float64
	OutputPowerW float64
	InputPowerW  float64
	Efficiency   float64
}

// TelemetryUpdate is one inbound frame: a partial snapshot where every
// group and every field within a group is optional. JSON tags mirror the
// backend's camelCase wire names.
type TelemetryUpdate struct {
	Timestamp *string        `json:"timestamp"`
	Encoders  *EncoderUpdate `json:"encoders"`
	Jetson    *ThermalUpdate `json:"jetson"`
	Power     *PowerUpdate   `json:"power"`
	Motor     *MotorUpdate   `json:"motor"`
}

// EncoderUpdate carries any subset of the wheel encoder counts.
type EncoderUpdate struct {
	FrontLeft  *int `json:"frontLeft"`
	FrontRight *int `json:"frontRight"`
	RearLeft   *int `json:"rearLeft"`
	RearRight  *int `json:"rearRight"`
}

// HasReadings reports whether the update carries at least one encoder
// count. An empty encoders object on the wire decodes to a non-nil update
// with every field absent; it is not encoder-bearing.
func (u *EncoderUpdate) HasReadings() bool {
	if u == nil {
		return false
	}
	return u.FrontLeft != nil || u.FrontRight != nil || u.RearLeft != nil || u.RearRight != nil
}

// ThermalUpdate carries any subset of the compute thermals.
type ThermalUpdate struct {
	CPUTemp *float64 `json:"cpuTemp"`
	GPUTemp *float64 `json:"gpuTemp"`
}

// PowerUpdate carries any subset of the power readings.
type PowerUpdate struct {
	Voltage *float64 `json:"voltage"`
	SOC     *float64 `json:"soc"`
}

// MotorUpdate carries any subset of the motor readings.
type MotorUpdate struct {
	TorqueOzIn   *float64 `json:"torqueOzIn"`
	SpeedRPM     *float64 `json:"speedRpm"`
	CurrentMA    *float64 `json:"currentMa"`
	OutputPowerW *float64 `json:"outputPowerW"`
	InputPowerW  *float64 `json:"inputPowerW"`
	Efficiency   *float64 `json:"efficiency"`
}

// Apply merges a partial update into the snapshot. Only fields present in
// the update are overwritten; an explicit zero in the update is a real
// value and does overwrite.
func (s *TelemetrySnapshot) Apply(u TelemetryUpdate) {
	if u.Timestamp != nil {
		s.Timestamp = *u.Timestamp
	}
	if u.Encoders != nil {
		applyInt(&s.Encoders.FrontLeft, u.Encoders.FrontLeft)
		applyInt(&s.Encoders.FrontRight, u.Encoders.FrontRight)
		applyInt(&s.Encoders.RearLeft, u.Encoders.RearLeft)
		applyInt(&s.Encoders.RearRight, u.Encoders.RearRight)
	}
	if u.Jetson != nil {
		applyFloat(&s.Jetson.CPUTemp, u.Jetson.CPUTemp)
		applyFloat(&s.Jetson.GPUTemp, u.Jetson.GPUTemp)
	}
	if u.Power != nil {
		applyFloat(&s.Power.Voltage, u.Power.Voltage)
		applyFloat(&s.Power.SOC, u.Power.SOC)
	}
	if u.Motor != nil {
		applyFloat(&s.Motor.TorqueOzIn, u.Motor.TorqueOzIn)
		applyFloat(&s.Motor.SpeedRPM, u.Motor.SpeedRPM)
		applyFloat(&s.Motor.CurrentMA, u.Motor.CurrentMA)
		applyFloat(&s.Motor.OutputPowerW, u.Motor.OutputPowerW)
		applyFloat(&s.Motor.InputPowerW, u.Motor.InputPowerW)
		applyFloat(&s.Motor.Efficiency, u.Motor.Efficiency)
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func applyFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

// EncoderSample is one history entry: the wheel encoder counts as of a
// local receipt time. Fields missing from the triggering frame are carried
// forward from the previous sample so the history never has gaps.
type EncoderSample struct {
	At         time.Time
	FrontLeft  int
	FrontRight int
	RearLeft   int
	RearRight  int
}

// NextSample builds the history entry for an encoder-bearing update,
// starting from this sample's values and overwriting whatever the update
// carries. The receipt time is supplied by the caller.
func (e EncoderSample) NextSample(at time.Time, u *EncoderUpdate) EncoderSample {
	next := e
	next.At = at
	if u != nil {
		applyInt(&next.FrontLeft, u.FrontLeft)
		applyInt(&next.FrontRight, u.FrontRight)
		applyInt(&next.RearLeft, u.RearLeft)
		applyInt(&next.RearRight, u.RearRight)
	}
	return next
}

// LinkState describes the telemetry connection.
type LinkState string

const (
	LinkConnecting LinkState = "connecting"
	LinkOpen       LinkState = "open"
	LinkClosed     LinkState = "closed"
	LinkError      LinkState = "error"
)
