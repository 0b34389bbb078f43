package notifications

import "time"

// EventType labels the conversion lifecycle moments published to subscribers.
type EventType string

const (
	EventJobQueued      EventType = "conversion:queued"
	EventJobStarted     EventType = "conversion:started"
	EventJobProgress    EventType = "conversion:progress"
	EventJobCompleted   EventType = "conversion:completed"
	EventJobFailed      EventType = "conversion:failed"
	EventJobCancelled   EventType = "conversion:cancelled"
	EventBatchCompleted EventType = "conversion:batch-completed"
)

// Event is the payload delivered to subscribers and pushed over SSE.
type Event struct {
	Type      EventType `json:"type"`
	JobID     int64     `json:"job_id,omitempty"`
	VideoID   int64     `json:"video_id,omitempty"`
	BatchID   string    `json:"batch_id,omitempty"`
	PresetID  string    `json:"preset_id,omitempty"`
	Progress  float64   `json:"progress,omitempty"`
	Message   string    `json:"message,omitempty"`
	Completed int       `json:"completed,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	Total     int       `json:"total,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
