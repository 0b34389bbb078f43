// Package jobs persists conversion jobs in SQLite and enforces their
// lifecycle: pending jobs wait in the queue, processing jobs report monotonic
// progress, and terminal jobs (completed, failed, cancelled) never change
// again. Status transitions are guarded in SQL so concurrent workers and API
// handlers cannot race a job into an invalid state.
package jobs
