package jobs

import "errors"

// ErrNotFound indicates the referenced job does not exist.
var ErrNotFound = errors.New("job not found")

// ErrConflict indicates the operation clashes with the job's current state,
// such as enqueueing a duplicate conversion or deleting a running job.
var ErrConflict = errors.New("job state conflict")
