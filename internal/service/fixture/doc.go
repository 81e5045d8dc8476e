// Package fixture runs solar-fixture, a stand-in plant service that serves
// a fleet described in a YAML file. It is used for demos and integration
// tests of the console.
package fixture
