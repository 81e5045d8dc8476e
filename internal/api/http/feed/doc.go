// Package feed publishes the console view over HTTP and WebSocket for
// external dashboards. The Hub is a poller.Renderer: every rendered view is
// kept as the latest one and pushed to all connected sockets.
package feed
