// Package packager produces the release manifest consumed by the updater.
//
// It saves the connection settings every installation starts from, checks
// that the plant service answers, hashes the release binaries and writes
// solar-monitor-version.yaml next to them.
package packager
