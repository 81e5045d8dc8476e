// Package render holds the poller.Renderer implementations that ship with
// the console: a structured-log renderer, a styled terminal renderer and a
// fan-out that feeds several renderers at once.
package render
