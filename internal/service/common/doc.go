// Package common holds helpers shared by several services.
//
// It provides a lightweight client of the console control API with timeouts
// and utilities to detect the current system actor (hostname/username) for
// the audit trail.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
