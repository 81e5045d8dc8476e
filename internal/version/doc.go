// Package version exposes build metadata for the solar-monitor binaries.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags.
// Short and Full render the version for CLI output, UserAgent for HTTP calls.
package version
