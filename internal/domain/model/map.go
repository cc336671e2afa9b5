package model

import "time"

// MapFrame is one successfully fetched map snapshot: a data-URI encoded
// image plus the local fetch time.
type MapFrame struct {
	Image     string
	FetchedAt time.Time
}

// SlamAction is a SLAM process control verb.
type SlamAction string

const (
	SlamStart  SlamAction = "start"
	SlamStop   SlamAction = "stop"
	SlamStatus SlamAction = "status"
)

// ValidSlamAction reports whether s is a known control verb.
func ValidSlamAction(s string) bool {
	switch SlamAction(s) {
	case SlamStart, SlamStop, SlamStatus:
		return true
	}
	return false
}
