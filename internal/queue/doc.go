// Package queue provides the durable conversion backlog and the bounded
// worker pool that drains it. The backlog lives in the shared SQLite
// database, so jobs enqueued before a shutdown resume processing on the next
// start. Worker failures and panics are isolated per job.
package queue
