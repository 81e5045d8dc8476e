package alarm

import (
	"errors"
	"fmt"
	"time"
)

var errUnknownState = errors.New("unknown alarm state")

// State is the alarm currently in effect. Exactly one is active at a time.
type State int

const (
	// StateSilent means no tone is sounding.
	StateSilent State = iota
	// StateZeroPowerAlert means a reachable plant produces nothing.
	StateZeroPowerAlert
	// StateOfflineAlert means at least one plant is unreachable.
	StateOfflineAlert
)

// String returns the snake_case label used in logs and the control API.
func (s State) String() string {
	switch s {
	case StateSilent:
		return "silent"
	case StateZeroPowerAlert:
		return "zero_power_alert"
	case StateOfflineAlert:
		return "offline_alert"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear as a label in JSON documents.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a label produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateSilent, StateZeroPowerAlert, StateOfflineAlert} {
		if candidate.String() == string(text) {
			*s = candidate

			return nil
		}
	}

	return fmt.Errorf("%w: %q", errUnknownState, text)
}

// Variant selects the tone pitch.
type Variant int

const (
	// VariantNormal uses the configured frequency.
	VariantNormal Variant = iota
	// VariantElevated uses a higher pitch for the critical case.
	VariantElevated
)

// String returns the label of the variant.
func (v Variant) String() string {
	if v == VariantElevated {
		return "elevated"
	}

	return "normal"
}

// Variant returns the tone variant for a sounding state.
// The second result is false for StateSilent.
func (s State) Variant() (Variant, bool) {
	switch s {
	case StateOfflineAlert:
		return VariantElevated, true
	case StateZeroPowerAlert:
		return VariantNormal, true
	default:
		return VariantNormal, false
	}
}

// Condition is the pair of flags produced by one classification.
type Condition struct {
	// OfflinePresent is true if any plant is offline.
	OfflinePresent bool `json:"offline_present"`
	// ZeroPowerPresent is true if the zero-power alarm applies to any plant.
	ZeroPowerPresent bool `json:"zero_power_present"`
}

// Desired returns the state the condition calls for. Offline wins over zero power.
func (c Condition) Desired() State {
	switch {
	case c.OfflinePresent:
		return StateOfflineAlert
	case c.ZeroPowerPresent:
		return StateZeroPowerAlert
	default:
		return StateSilent
	}
}

// Actor identifies who issued a control command.
type Actor struct {
	// Hostname is the machine name where the command was issued.
	Hostname string `json:"hostname"`
	// Username is the system user who issued it.
	Username string `json:"username"`
}

// String renders the actor as user@host.
func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	return a.Username + "@" + a.Hostname
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// Status is the observable alarm record.
type Status struct {
	// State is the alarm in effect.
	State State `json:"state"`
	// Condition is the pair last seen by the debouncer.
	Condition Condition `json:"condition"`
	// Since is when State was last changed.
	Since time.Time `json:"since"`
	// SilencedBy is the actor of the last manual silence, if any.
	SilencedBy *Actor `json:"silenced_by,omitempty"`
	// SilencedAt is when the last manual silence happened.
	SilencedAt time.Time `json:"silenced_at"`
}

// Clone returns a copy of the status to avoid leaking internal references.
func (s *Status) Clone() *Status {
	return &Status{
		State:      s.State,
		Condition:  s.Condition,
		Since:      s.Since,
		SilencedBy: s.SilencedBy.Clone(),
		SilencedAt: s.SilencedAt,
	}
}
