// Package console runs the solar-monitor console.
//
// Console owns the event loop and every component confined to it: the
// poller, the alarm controller and the audio signaler. Control commands
// arrive from other goroutines (the gRPC control API) and are posted to the
// loop. Run is the solar-console entry point that wires configuration,
// settings persistence, renderers and transports around a Console.
package console
