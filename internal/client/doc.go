// Package client provides the HTTP client used by the CLI to talk to a
// running reelvault daemon.
package client
