// Package client implements solar-ctl, the command-line remote for a running
// console.
//
// The commands connect to the console control API, identify the operator by
// hostname and username, and log the resulting console report. Watch polls
// the console and reports alarm transitions as they happen.
package client
