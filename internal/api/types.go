package api

import (
	"time"

	"reelvault/internal/jobs"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ConversionJob describes a job in a transport-friendly format.
type ConversionJob struct {
	ID              int64   `json:"id"`
	VideoID         int64   `json:"videoId"`
	BatchID         string  `json:"batchId,omitempty"`
	PresetID        string  `json:"presetId"`
	InputPath       string  `json:"inputPath"`
	OutputPath      string  `json:"outputPath,omitempty"`
	OutputSizeBytes int64   `json:"outputSizeBytes,omitempty"`
	DeleteOriginal  bool    `json:"deleteOriginal,omitempty"`
	Status          string  `json:"status"`
	Progress        float64 `json:"progress"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	UpdatedAt       string  `json:"updatedAt,omitempty"`
	StartedAt       string  `json:"startedAt,omitempty"`
	CompletedAt     string  `json:"completedAt,omitempty"`
}

// FromJob converts a persisted job into its DTO.
func FromJob(job *jobs.Job) ConversionJob {
	dto := ConversionJob{
		ID:              job.ID,
		VideoID:         job.VideoID,
		BatchID:         job.BatchID,
		PresetID:        job.PresetID,
		InputPath:       job.InputPath,
		OutputPath:      job.OutputPath,
		OutputSizeBytes: job.OutputSizeBytes,
		DeleteOriginal:  job.DeleteOriginal,
		Status:          string(job.Status),
		Progress:        job.Progress,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       formatTime(job.CreatedAt),
		UpdatedAt:       formatTime(job.UpdatedAt),
	}
	if job.StartedAt != nil {
		dto.StartedAt = formatTime(*job.StartedAt)
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = formatTime(*job.CompletedAt)
	}
	return dto
}

// FromJobs converts a slice of persisted jobs.
func FromJobs(list []*jobs.Job) []ConversionJob {
	out := make([]ConversionJob, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(dateTimeFormat)
}

// CreateJobsRequest asks for one or more videos to be converted with a
// preset. All jobs created by one request share a batch.
type CreateJobsRequest struct {
	VideoIDs []int64 `json:"videoIds"`
	PresetID string  `json:"presetId"`
	// DeleteOriginal removes each source file after its conversion succeeds.
	DeleteOriginal bool `json:"deleteOriginal,omitempty"`
}

// CreateJobsResponse reports the created batch. Videos that could not be
// enqueued are listed with the reason while the rest of the batch proceeds.
type CreateJobsResponse struct {
	BatchID  string          `json:"batchId"`
	Jobs     []ConversionJob `json:"jobs"`
	Rejected []RejectedVideo `json:"rejected,omitempty"`
}

// RejectedVideo explains why a video was left out of a batch.
type RejectedVideo struct {
	VideoID int64  `json:"videoId"`
	Reason  string `json:"reason"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []ConversionJob `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job ConversionJob `json:"job"`
}

// BatchResponse reports aggregate batch progress.
type BatchResponse struct {
	BatchID    string          `json:"batchId"`
	Total      int             `json:"total"`
	Pending    int             `json:"pending"`
	Processing int             `json:"processing"`
	Completed  int             `json:"completed"`
	Failed     int             `json:"failed"`
	Cancelled  int             `json:"cancelled"`
	Done       bool            `json:"done"`
	Jobs       []ConversionJob `json:"jobs"`
}

// StatusResponse summarizes daemon and queue state.
type StatusResponse struct {
	Running    bool           `json:"running"`
	PID        int            `json:"pid"`
	Workers    int            `json:"workers"`
	InFlight   int            `json:"inFlight"`
	Waiting    int            `json:"waiting"`
	JobCounts  map[string]int `json:"jobCounts"`
	DBPath     string         `json:"dbPath,omitempty"`
	APIVersion string         `json:"apiVersion"`
}

// ClearedResponse reports how many records an operation affected.
type ClearedResponse struct {
	Cleared int64 `json:"cleared"`
}

// PresetInfo describes a conversion preset for API consumers.
type PresetInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Codec        string `json:"codec"`
	TargetWidth  int    `json:"targetWidth,omitempty"`
	Quality      int    `json:"quality"`
	AudioBitrate int    `json:"audioBitrate"`
	Container    string `json:"container"`
}

// VideoInfo describes a library video for API consumers.
type VideoInfo struct {
	ID              int64   `json:"id"`
	Path            string  `json:"path"`
	Title           string  `json:"title"`
	SizeBytes       int64   `json:"sizeBytes"`
	DurationSeconds float64 `json:"durationSeconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Bitrate         int64   `json:"bitrate"`
	Codec           string  `json:"codec"`
}
