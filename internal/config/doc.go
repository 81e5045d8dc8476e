// Package config defines the connection settings used by the binaries and
// provides helpers to load, validate and save them in YAML format.
//
// The Config type holds the plant service URL, the settings store location,
// the control and feed addresses and the audio device selection.
package config
