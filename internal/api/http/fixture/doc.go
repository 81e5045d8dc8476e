// Package fixture is a local stand-in for the plant service. It serves the
// same HTTP API as the real service from a YAML fleet file, so the console
// can be developed and tested without upstream connectors.
package fixture
