package protocol

import "time"

// JobStarted announces that a synthesis job was admitted and is producing
// audio. Transcript text never rides the bus; only its length does.
type JobStarted struct {
	JobID     string    `json:"job_id"`
	Engine    string    `json:"engine"`
	Voice     string    `json:"voice,omitempty"`
	TextChars int       `json:"text_chars"`
	Timestamp time.Time `json:"timestamp"`
}

// JobCompleted announces the outcome of a finished synthesis job.
type JobCompleted struct {
	JobID      string    `json:"job_id"`
	Engine     string    `json:"engine"`
	Chunks     int       `json:"chunks"`
	Bytes      int64     `json:"bytes"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	SubjectJobStarted   = "tts.job.started"
	SubjectJobCompleted = "tts.job.completed"
)
