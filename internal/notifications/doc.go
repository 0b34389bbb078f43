// Package notifications publishes conversion lifecycle events. Every event
// reaches in-process subscribers (the SSE feed); completion and failure
// events are additionally pushed to an ntfy topic when one is configured.
package notifications
