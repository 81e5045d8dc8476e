// Package remote is the HTTP client of the plant service: plant snapshots,
// forced updates and the background monitoring switch.
package remote
