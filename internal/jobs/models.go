package jobs

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus validates a user-supplied status string.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := statusSet[status]; !ok {
		return "", fmt.Errorf("unknown job status %q", raw)
	}
	return status, nil
}

// Terminal reports whether the status is a final state that cannot change.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the job still occupies the queue or a worker.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusProcessing
}

// Job represents one conversion of a library video with a specific preset.
type Job struct {
	ID         int64
	VideoID    int64
	BatchID    string
	PresetID   string
	InputPath  string
	OutputPath string
	// OutputSizeBytes is the size of the converted artifact, recorded when
	// the job completes.
	OutputSizeBytes int64
	// DeleteOriginal asks the processor to remove the source file after a
	// successful conversion.
	DeleteOriginal bool
	Status         Status
	Progress       float64
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// NewJob carries the fields needed to create a conversion job.
type NewJob struct {
	VideoID        int64
	BatchID        string
	PresetID       string
	InputPath      string
	OutputPath     string
	DeleteOriginal bool
}

// BatchStats aggregates the per-status counts of a batch.
type BatchStats struct {
	BatchID    string
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

// Done reports whether no job in the batch can still make progress.
func (b BatchStats) Done() bool {
	return b.Total > 0 && b.Pending == 0 && b.Processing == 0
}

// QueueStats aggregates job counts across the whole store.
type QueueStats struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}
