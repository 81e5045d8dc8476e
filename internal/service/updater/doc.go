// Package updater downloads and applies solar-monitor releases.
//
// A release is described by a YAML manifest published next to the binaries
// in the update folder. The updater compares the manifest with the installed
// version and file checksums, stops running solar-monitor processes, applies
// the new files atomically with SHA-512 verification and restarts the
// console.
package updater
