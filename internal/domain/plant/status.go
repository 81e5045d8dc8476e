package plant

import (
	"errors"
	"fmt"
)

var errUnknownStatus = errors.New("unknown plant status")

// Status is the health classification of a single plant.
type Status int

const (
	// StatusOnline means the plant is reachable and producing.
	StatusOnline Status = iota
	// StatusWarning means the plant is reachable but its output is zero.
	StatusWarning
	// StatusOffline means the plant could not be reached.
	StatusOffline
)

// String returns the lowercase label used in logs and JSON views.
func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusWarning:
		return "warning"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// MarshalText lets Status appear as a label in JSON maps and documents.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a label produced by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	for _, candidate := range []Status{StatusOnline, StatusWarning, StatusOffline} {
		if candidate.String() == string(text) {
			*s = candidate

			return nil
		}
	}

	return fmt.Errorf("%w: %q", errUnknownStatus, text)
}

// StatusOf classifies one snapshot.
func StatusOf(s Snapshot) Status {
	switch {
	case !s.IsOnline:
		return StatusOffline
	case s.Power > 0:
		return StatusOnline
	default:
		return StatusWarning
	}
}
