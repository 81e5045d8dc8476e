// Package alarm implements the console alarm state machine: debounced
// transitions between silent, zero-power and offline alerts, plus a manual
// silence with a cooldown.
package alarm
