// Package api contains the conversion service and the transport DTOs shared
// by the HTTP server and the CLI. The service validates requests, creates
// and enqueues jobs, and maps store errors onto stable API semantics.
package api
