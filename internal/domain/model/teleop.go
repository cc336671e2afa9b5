package model

import "fmt"

// Direction is a discrete drive command understood by the rover backend.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionLeft     Direction = "left"
	DirectionRight    Direction = "right"
	DirectionStop     Direction = "stop"
	// DirectionNone is the dispatcher's idle held intent; it is never
	// transmitted on the wire.
	DirectionNone Direction = ""
)

// ParseDirection validates a direction string from the API layer.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionForward, DirectionBackward, DirectionLeft, DirectionRight, DirectionStop:
		return d, nil
	default:
		return DirectionNone, fmt.Errorf("unknown direction %q", s)
	}
}

// Remap translates an operator intent into the wire direction. The drive
// controller's forward axis is inverted relative to the camera view, so
// forward and backward are swapped before transmission; turns pass through.
func (d Direction) Remap() Direction {
	switch d {
	case DirectionForward:
		return DirectionBackward
	case DirectionBackward:
		return DirectionForward
	default:
		return d
	}
}
